package order

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront-api/internal/domain"
	"storefront-api/internal/migrate"
	outboxrepo "storefront-api/internal/repository/outbox"
)

func TestPostgres_PlaceRejectsShortStockWithoutTouchingAnything(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()
	resetTables(ctx, t, pool)

	boardID := insertProduct(ctx, t, pool, "Board", 2000, 5)
	hatID := insertProduct(ctx, t, pool, "Hat", 800, 1)
	basketID := insertBasket(ctx, t, pool, "u_1")

	repo := NewPostgres(pool)
	_, err := repo.Place(ctx, PlaceInput{
		BasketID: basketID,
		Order: domain.Order{
			BuyerID: "u_1",
			Items: []domain.OrderItem{
				{ProductID: boardID, Name: "Board", PriceCents: 2000, Quantity: 2},
				{ProductID: hatID, Name: "Hat", PriceCents: 800, Quantity: 3},
			},
			SubtotalCents:   6400,
			Status:          domain.OrderStatusPending,
			PaymentIntentID: "pi_short",
		},
	})
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	// One short line must leave every line's stock untouched.
	if got := stockOf(ctx, t, pool, boardID); got != 5 {
		t.Fatalf("board stock changed: %d", got)
	}
	if got := stockOf(ctx, t, pool, hatID); got != 1 {
		t.Fatalf("hat stock changed: %d", got)
	}
	if got := countRows(ctx, t, pool, "orders"); got != 0 {
		t.Fatalf("expected no order rows, got %d", got)
	}

	var active bool
	if err := pool.QueryRow(ctx, `SELECT active FROM baskets WHERE id = $1`, basketID).Scan(&active); err != nil {
		t.Fatalf("load basket: %v", err)
	}
	if !active {
		t.Fatal("basket must stay active when placement fails")
	}
}

func TestPostgres_PlaceRetryWithSameIntentIsStockNeutral(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()
	resetTables(ctx, t, pool)

	boardID := insertProduct(ctx, t, pool, "Board", 2000, 10)
	basketID := insertBasket(ctx, t, pool, "u_1")

	repo := NewPostgres(pool)
	first, err := repo.Place(ctx, placeOrder(basketID, "pi_retry", boardID, 3))
	if err != nil {
		t.Fatalf("first Place: %v", err)
	}
	if got := stockOf(ctx, t, pool, boardID); got != 7 {
		t.Fatalf("expected stock 7 after first placement, got %d", got)
	}

	second, err := repo.Place(ctx, placeOrder(basketID, "pi_retry", boardID, 4))
	if err != nil {
		t.Fatalf("second Place: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("retry produced a new order: %s then %s", first.ID, second.ID)
	}
	if got := countRows(ctx, t, pool, "orders"); got != 1 {
		t.Fatalf("expected one order row, got %d", got)
	}

	// The earlier attempt's decrement is given back before the new one is
	// taken, so only the latest snapshot counts against stock.
	if got := stockOf(ctx, t, pool, boardID); got != 6 {
		t.Fatalf("expected stock 6 after retry, got %d", got)
	}

	var qty int
	if err := pool.QueryRow(ctx, `SELECT quantity FROM order_items WHERE order_id = $1::uuid`, second.ID).Scan(&qty); err != nil {
		t.Fatalf("load order item: %v", err)
	}
	if qty != 4 {
		t.Fatalf("expected snapshot quantity 4, got %d", qty)
	}
}

func TestPostgres_RestockPaymentFailedReplayDoesNotDoubleCredit(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()
	resetTables(ctx, t, pool)

	boardID := insertProduct(ctx, t, pool, "Board", 2000, 10)
	basketID := insertBasket(ctx, t, pool, "u_1")

	repo := NewPostgres(pool)
	if _, err := repo.Place(ctx, placeOrder(basketID, "pi_fail", boardID, 3)); err != nil {
		t.Fatalf("Place: %v", err)
	}
	if got := stockOf(ctx, t, pool, boardID); got != 7 {
		t.Fatalf("expected stock 7 after placement, got %d", got)
	}

	order, err := repo.RestockPaymentFailed(ctx, "pi_fail", nil)
	if err != nil {
		t.Fatalf("RestockPaymentFailed: %v", err)
	}
	if order.Status != domain.OrderStatusPaymentFailed {
		t.Fatalf("expected PaymentFailed, got %s", order.Status)
	}
	if got := stockOf(ctx, t, pool, boardID); got != 10 {
		t.Fatalf("expected stock restored to 10, got %d", got)
	}

	// At-least-once delivery: the same notification arriving again must not
	// credit the stock a second time.
	if _, err := repo.RestockPaymentFailed(ctx, "pi_fail", nil); err != nil {
		t.Fatalf("replayed RestockPaymentFailed: %v", err)
	}
	if got := stockOf(ctx, t, pool, boardID); got != 10 {
		t.Fatalf("replay double-credited stock: %d", got)
	}
}

func TestPostgres_RestockPaymentFailedWithoutOrder(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()
	resetTables(ctx, t, pool)

	repo := NewPostgres(pool)
	if _, err := repo.RestockPaymentFailed(ctx, "pi_absent", nil); !errors.Is(err, domain.ErrOrderMissing) {
		t.Fatalf("expected ErrOrderMissing, got %v", err)
	}
}

func TestPostgres_MarkPaymentReceivedReplayEmitsOneEvent(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()
	resetTables(ctx, t, pool)

	boardID := insertProduct(ctx, t, pool, "Board", 2000, 10)
	basketID := insertBasket(ctx, t, pool, "u_1")

	repo := NewPostgres(pool)
	if _, err := repo.Place(ctx, placeOrder(basketID, "pi_ok", boardID, 2)); err != nil {
		t.Fatalf("Place: %v", err)
	}

	event := func() *outboxrepo.Message {
		return &outboxrepo.Message{
			EventID:   uuid.New(),
			Topic:     "order-events",
			Key:       "pi_ok",
			EventType: "order.payment_received",
			Payload:   []byte(`{}`),
		}
	}

	order, err := repo.MarkPaymentReceived(ctx, "pi_ok", event())
	if err != nil {
		t.Fatalf("MarkPaymentReceived: %v", err)
	}
	if order.Status != domain.OrderStatusPaymentReceived {
		t.Fatalf("expected PaymentReceived, got %s", order.Status)
	}

	if _, err := repo.MarkPaymentReceived(ctx, "pi_ok", event()); err != nil {
		t.Fatalf("replayed MarkPaymentReceived: %v", err)
	}
	if got := countRows(ctx, t, pool, "outbox"); got != 1 {
		t.Fatalf("expected one outbox event, got %d", got)
	}
}

func placeOrder(basketID, intentID, productID string, quantity int) PlaceInput {
	return PlaceInput{
		BasketID: basketID,
		Order: domain.Order{
			BuyerID: "u_1",
			Items: []domain.OrderItem{
				{ProductID: productID, Name: "Board", PriceCents: 2000, Quantity: quantity},
			},
			SubtotalCents:   2000 * int64(quantity),
			Status:          domain.OrderStatusPending,
			PaymentIntentID: intentID,
		},
	}
}

func testPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	if err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return pool
}

func resetTables(ctx context.Context, t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	if _, err := pool.Exec(ctx, `TRUNCATE outbox, order_items, orders, basket_items, baskets, products RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func insertProduct(ctx context.Context, t *testing.T, pool *pgxpool.Pool, name string, priceCents int64, stock int) string {
	t.Helper()
	var id string
	err := pool.QueryRow(ctx, `
INSERT INTO products (name, price_cents, quantity_in_stock)
VALUES ($1, $2, $3)
RETURNING id::text
`, name, priceCents, stock).Scan(&id)
	if err != nil {
		t.Fatalf("insert product: %v", err)
	}
	return id
}

func insertBasket(ctx context.Context, t *testing.T, pool *pgxpool.Pool, userID string) string {
	t.Helper()
	var id string
	err := pool.QueryRow(ctx, `
INSERT INTO baskets (user_id, active, payment_intent_id)
VALUES ($1, TRUE, 'pi_seed')
RETURNING id::text
`, userID).Scan(&id)
	if err != nil {
		t.Fatalf("insert basket: %v", err)
	}
	return id
}

func stockOf(ctx context.Context, t *testing.T, pool *pgxpool.Pool, productID string) int {
	t.Helper()
	var stock int
	if err := pool.QueryRow(ctx, `SELECT quantity_in_stock FROM products WHERE id = $1`, productID).Scan(&stock); err != nil {
		t.Fatalf("load stock: %v", err)
	}
	return stock
}

func countRows(ctx context.Context, t *testing.T, pool *pgxpool.Pool, table string) int {
	t.Helper()
	var count int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+table).Scan(&count); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return count
}
