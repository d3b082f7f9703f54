package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// PostgresRepository stores orders, payment events and the outbox in one database
// so an order change and its event commit together.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(cred *Credentials) (*PostgresRepository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) RunMigrations(cred *Credentials) error {
	return migratePostgres(r.db, cred.MigrationsDirPath)
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

const orderColumns = `id, user_id, items, shipping_address, expected_delivery_date, delivery_date,
	payment_method, payment_result, items_price, shipping_price, tax_price, total_price,
	is_paid, paid_at, is_delivered, delivered_at, COALESCE(idempotency_key, ''), created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		order       domain.Order
		itemsJSON   []byte
		addressJSON []byte
		resultJSON  []byte
		paidAt      sql.NullTime
		deliveredAt sql.NullTime
	)
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&itemsJSON,
		&addressJSON,
		&order.ExpectedDeliveryDate,
		&order.DeliveryDate,
		&order.PaymentMethod,
		&resultJSON,
		&order.ItemsPrice,
		&order.ShippingPrice,
		&order.TaxPrice,
		&order.TotalPrice,
		&order.IsPaid,
		&paidAt,
		&order.IsDelivered,
		&deliveredAt,
		&order.IdempotencyKey,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	if err := json.Unmarshal(addressJSON, &order.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}
	if len(resultJSON) > 0 {
		var result domain.PaymentResult
		if err := json.Unmarshal(resultJSON, &result); err != nil {
			return nil, fmt.Errorf("unmarshal payment result: %w", err)
		}
		order.PaymentResult = &result
	}
	if paidAt.Valid {
		t := paidAt.Time
		order.PaidAt = &t
	}
	if deliveredAt.Valid {
		t := deliveredAt.Time
		order.DeliveredAt = &t
	}
	return &order, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// marshalResult returns an untyped nil for a missing result so the column is NULL.
func marshalResult(result *domain.PaymentResult) (any, error) {
	if result == nil {
		return nil, nil
	}
	b, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func orderEventPayload(order *domain.Order, at time.Time) ([]byte, error) {
	return json.Marshal(domain.OrderEvent{
		OrderID:    order.ID.String(),
		UserID:     order.UserID,
		Items:      domain.OrderLines(order.Items),
		TotalPrice: order.TotalPrice,
		OccurredAt: at,
	})
}

func insertOutboxEvent(ctx context.Context, tx *sql.Tx, aggregateID, eventType string, payload []byte) error {
	query := `INSERT INTO outbox_events (aggregate_id, event_type, payload) VALUES ($1, $2, $3)`
	if _, err := tx.ExecContext(ctx, query, aggregateID, eventType, payload); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

// CreateOrder inserts the order and its OrderCreated outbox event in one transaction.
func (r *PostgresRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}
	addressJSON, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("failed to marshal shipping address: %w", err)
	}
	resultJSON, err := marshalResult(order.PaymentResult)
	if err != nil {
		return fmt.Errorf("failed to marshal payment result: %w", err)
	}

	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	payload, err := orderEventPayload(order, now)
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `INSERT INTO orders (id, user_id, items, shipping_address, expected_delivery_date, delivery_date,
	          payment_method, payment_result, items_price, shipping_price, tax_price, total_price,
	          is_paid, paid_at, is_delivered, delivered_at, idempotency_key, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NULLIF($17, ''), $18, $19)`

	_, insertErr := tx.ExecContext(ctx, query,
		order.ID,
		order.UserID,
		itemsJSON,
		addressJSON,
		order.ExpectedDeliveryDate,
		order.DeliveryDate,
		order.PaymentMethod,
		resultJSON,
		order.ItemsPrice,
		order.ShippingPrice,
		order.TaxPrice,
		order.TotalPrice,
		order.IsPaid,
		nullTime(order.PaidAt),
		order.IsDelivered,
		nullTime(order.DeliveredAt),
		order.IdempotencyKey,
		order.CreatedAt,
		order.UpdatedAt)

	if insertErr != nil {
		var pqErr *pq.Error
		if errors.As(insertErr, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateCheckout
		}
		return fmt.Errorf("insert order: %w", insertErr)
	}

	if err := insertOutboxEvent(ctx, tx, order.ID.String(), domain.EventOrderCreated, payload); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	return order, nil
}

func (r *PostgresRepository) GetOrderByIdempotencyKey(ctx context.Context, userID, key string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 AND idempotency_key = $2`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, userID, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by idempotency key: %w", err)
	}
	return order, nil
}

func (r *PostgresRepository) ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders by user id: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return orders, nil
}

// SetPaymentResult records the provider order id before capture. Paid orders are left alone.
func (r *PostgresRepository) SetPaymentResult(ctx context.Context, id uuid.UUID, result domain.PaymentResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal payment result: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET payment_result = $2, updated_at = NOW() WHERE id = $1 AND NOT is_paid`,
		id, resultJSON)
	if err != nil {
		return fmt.Errorf("update payment result: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		if _, err := r.GetOrderByID(ctx, id); err != nil {
			return err
		}
		return domain.ErrAlreadyPaid
	}
	return nil
}

func lockOrder(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	order, err := scanOrder(tx.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock order: %w", err)
	}
	return order, nil
}

// ApplyPayment marks the order paid under a row lock. The provider event id is
// recorded in the same transaction; a replayed id yields ErrDuplicatePaymentEvent
// and an already paid order yields domain.ErrAlreadyPaid, both without changes.
func (r *PostgresRepository) ApplyPayment(ctx context.Context, id uuid.UUID, p PaymentUpdate) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	order, err := lockOrder(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if p.EventID != "" {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO payment_events (event_id, order_id, provider) VALUES ($1, $2, $3)
			 ON CONFLICT (event_id) DO NOTHING`,
			p.EventID, id, p.Provider)
		if err != nil {
			return nil, fmt.Errorf("insert payment event: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return order, ErrDuplicatePaymentEvent
		}
	}

	if err := order.MarkPaid(p.Result, p.PaidAt.UTC()); err != nil {
		// keep the event row so the replay is recognised next time
		if errors.Is(err, domain.ErrAlreadyPaid) {
			if cErr := tx.Commit(); cErr != nil {
				return nil, fmt.Errorf("commit payment event: %w", cErr)
			}
		}
		return order, err
	}

	resultJSON, err := marshalResult(order.PaymentResult)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment result: %w", err)
	}
	order.UpdatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx,
		`UPDATE orders SET is_paid = TRUE, paid_at = $2, payment_result = $3, updated_at = $4 WHERE id = $1`,
		id, nullTime(order.PaidAt), resultJSON, order.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update order paid: %w", err)
	}

	payload, err := orderEventPayload(order, order.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order event: %w", err)
	}
	if err := insertOutboxEvent(ctx, tx, order.ID.String(), domain.EventOrderPaid, payload); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit payment: %w", err)
	}
	return order, nil
}

func (r *PostgresRepository) MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	order, err := lockOrder(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := order.MarkDelivered(at.UTC()); err != nil {
		return order, err
	}
	order.UpdatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx,
		`UPDATE orders SET is_delivered = TRUE, delivered_at = $2, updated_at = $3 WHERE id = $1`,
		id, nullTime(order.DeliveredAt), order.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update order delivered: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delivery: %w", err)
	}
	return order, nil
}

func (r *PostgresRepository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `SELECT id, aggregate_id, event_type, payload, created_at
	          FROM outbox_events WHERE processed_at IS NULL ORDER BY id LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(&e.ID, &e.AggregateId, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (r *PostgresRepository) MarkEventAsProcessed(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE outbox_events SET processed_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark outbox event processed: %w", err)
	}
	return nil
}

// CountUnprocessedEvents feeds the outbox backlog gauge.
func (r *PostgresRepository) CountUnprocessedEvents(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox_events WHERE processed_at IS NULL`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count outbox events: %w", err)
	}
	return n, nil
}
