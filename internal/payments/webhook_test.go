package payments

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

const testSecret = "whsec_test"

var intentPayload = []byte(`{
	"id": "evt_1",
	"type": "payment_intent.succeeded",
	"data": {
		"object": {
			"id": "pi_123",
			"client_secret": "pi_123_secret",
			"amount": 2500,
			"currency": "usd",
			"status": "succeeded"
		}
	}
}`)

func TestConstructEvent_ValidSignature(t *testing.T) {
	now := time.Now()
	header := SignatureHeader(now.Unix(), intentPayload, testSecret)

	event, err := constructEventAt(intentPayload, header, testSecret, now)
	if err != nil {
		t.Fatalf("construct event: %v", err)
	}
	if event.ID != "evt_1" || event.Type != "payment_intent.succeeded" {
		t.Fatalf("unexpected event: %+v", event)
	}

	intent, err := event.Intent()
	if err != nil {
		t.Fatalf("extract intent: %v", err)
	}
	if intent.ID != "pi_123" || intent.Status != "succeeded" || intent.Amount != 2500 {
		t.Fatalf("unexpected intent: %+v", intent)
	}
}

func TestConstructEvent_WrongSecret(t *testing.T) {
	now := time.Now()
	header := SignatureHeader(now.Unix(), intentPayload, "whsec_other")

	_, err := constructEventAt(intentPayload, header, testSecret, now)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestConstructEvent_TamperedPayload(t *testing.T) {
	now := time.Now()
	header := SignatureHeader(now.Unix(), intentPayload, testSecret)

	tampered := append([]byte(nil), intentPayload...)
	tampered[len(tampered)-2] = ' '

	_, err := constructEventAt(tampered, header, testSecret, now)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestConstructEvent_StaleTimestamp(t *testing.T) {
	now := time.Now()
	ts := now.Add(-DefaultTolerance - time.Minute).Unix()
	header := SignatureHeader(ts, intentPayload, testSecret)

	_, err := constructEventAt(intentPayload, header, testSecret, now)
	if !errors.Is(err, ErrStaleTimestamp) {
		t.Fatalf("expected ErrStaleTimestamp, got %v", err)
	}
}

func TestConstructEvent_MalformedHeader(t *testing.T) {
	now := time.Now()

	for _, header := range []string{"", "t=notanumber,v1=abc", "v1=abc", "t=123"} {
		if _, err := constructEventAt(intentPayload, header, testSecret, now); !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("header %q: expected ErrInvalidSignature, got %v", header, err)
		}
	}
}

func TestConstructEvent_SecondSignatureAccepted(t *testing.T) {
	now := time.Now()
	valid := Signature(now.Unix(), intentPayload, testSecret)
	header := fmt.Sprintf("t=%d,v1=deadbeef,v1=%s", now.Unix(), valid)

	if _, err := constructEventAt(intentPayload, header, testSecret, now); err != nil {
		t.Fatalf("expected rotation-style header to verify, got %v", err)
	}
}

func TestEventIntent_RejectsNonIntentObject(t *testing.T) {
	event := Event{}
	event.Data.Object = []byte(`{"object": "charge"}`)

	if _, err := event.Intent(); err == nil {
		t.Fatal("expected error for object without intent id")
	}
}
