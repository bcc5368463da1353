package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTolerance bounds how stale a webhook timestamp may be before the
// event is rejected as a possible replay.
const DefaultTolerance = 5 * time.Minute

var (
	ErrInvalidSignature = errors.New("webhook signature verification failed")
	ErrStaleTimestamp   = errors.New("webhook timestamp outside tolerance")
)

// Event is a verified notification from the processor.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// Intent extracts the payment intent carried in the event payload.
func (e *Event) Intent() (*Intent, error) {
	var intent Intent
	if err := json.Unmarshal(e.Data.Object, &intent); err != nil {
		return nil, fmt.Errorf("decode event object: %w", err)
	}
	if intent.ID == "" {
		return nil, errors.New("event object is not a payment intent")
	}
	return &intent, nil
}

// ConstructEvent verifies the signature header against the shared secret and
// decodes the payload. The header carries a unix timestamp and one or more
// hex HMAC-SHA256 signatures over "<timestamp>.<payload>":
//
//	t=1718000000,v1=5257a869e7...
//
// Nothing is decoded before the signature checks out.
func ConstructEvent(payload []byte, sigHeader, secret string) (Event, error) {
	return constructEventAt(payload, sigHeader, secret, time.Now())
}

func constructEventAt(payload []byte, sigHeader, secret string, now time.Time) (Event, error) {
	ts, sigs, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return Event{}, err
	}

	age := now.Sub(time.Unix(ts, 0))
	if age > DefaultTolerance || age < -DefaultTolerance {
		return Event{}, ErrStaleTimestamp
	}

	expected := Signature(ts, payload, secret)
	verified := false
	for _, sig := range sigs {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			verified = true
			break
		}
	}
	if !verified {
		return Event{}, ErrInvalidSignature
	}

	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	return event, nil
}

// Signature computes the hex HMAC-SHA256 signature for a timestamped payload.
func Signature(ts int64, payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureHeader renders a header the way the processor would; used when
// simulating deliveries.
func SignatureHeader(ts int64, payload []byte, secret string) string {
	return fmt.Sprintf("t=%d,v1=%s", ts, Signature(ts, payload, secret))
}

func parseSignatureHeader(header string) (int64, []string, error) {
	var ts int64
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			parsed, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return 0, nil, ErrInvalidSignature
			}
			ts = parsed
		case "v1":
			sigs = append(sigs, v)
		}
	}
	if ts == 0 || len(sigs) == 0 {
		return 0, nil, ErrInvalidSignature
	}
	return ts, sigs, nil
}
