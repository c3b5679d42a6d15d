package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orbitlabs/orbit-api/internal/model"
)

// ErrOrderNotFound is returned when an order id does not exist.
var ErrOrderNotFound = errors.New("order not found")

const orderColumns = `id, user_id, COALESCE(batch_id, ''), image_count, payment_status,
	processing_stage, processing_completion_percentage, error_message,
	notification_status, created_at, processing_started_at, completed_at`

// OrderRepository wraps all order SQL used by the workflow and workers.
type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	err := row.Scan(
		&o.ID, &o.UserID, &o.BatchID, &o.ImageCount, &o.PaymentStatus,
		&o.ProcessingStage, &o.CompletionPercentage, &o.ErrorMessage,
		&o.NotificationStatus, &o.CreatedAt, &o.ProcessingStartedAt, &o.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return &o, nil
}

// Get returns an order by id.
func (r *OrderRepository) Get(ctx context.Context, id string) (*model.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id)
	return scanOrder(row)
}

// FindPending returns orders eligible for processing: payment completed and
// stage still initializing, oldest first, capped at limit. The second return
// value is the total count of eligible orders regardless of the cap.
func (r *OrderRepository) FindPending(ctx context.Context, limit int) ([]model.Order, int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM orders
		WHERE payment_status='completed' AND processing_stage='initializing'
	`).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count pending orders: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE payment_status='completed' AND processing_stage='initializing'
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("select pending orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, *o)
	}
	return orders, total, rows.Err()
}

// ResetStuck finds orders that claim to be processing but whose
// processing_started_at is older than the timeout, and resets them to
// initializing with an explanatory note. This is the only liveness recovery
// for workflows that died without updating their own state.
func (r *OrderRepository) ResetStuck(ctx context.Context, timeout time.Duration) ([]model.Order, error) {
	cutoff := time.Now().UTC().Add(-timeout)
	note := fmt.Sprintf("reset after being stuck in processing for over %s", timeout)
	rows, err := r.pool.Query(ctx, `
		UPDATE orders
		SET processing_stage='initializing',
			error_message=$1,
			processing_started_at=NULL
		WHERE processing_stage='processing' AND processing_started_at < $2
		RETURNING `+orderColumns, note, cutoff)
	if err != nil {
		return nil, fmt.Errorf("reset stuck orders: %w", err)
	}
	defer rows.Close()

	var reset []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		reset = append(reset, *o)
	}
	return reset, rows.Err()
}

// MarkProcessing transitions an order into the processing stage. The update
// is conditional on the current stage so a second concurrent invocation
// observes false instead of re-stamping the order. Orders in the error stage
// are claimable too; that is how recovery runs pick up previously failed
// work.
func (r *OrderRepository) MarkProcessing(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders
		SET processing_stage='processing',
			processing_started_at=now(),
			processing_completion_percentage=0,
			error_message=NULL
		WHERE id=$1 AND processing_stage IN ('initializing', 'error')
	`, id)
	if err != nil {
		return false, fmt.Errorf("mark order processing: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateProgress stores the completion percentage for an in-flight order.
func (r *OrderRepository) UpdateProgress(ctx context.Context, id string, percentage int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE orders SET processing_completion_percentage=$1
		WHERE id=$2 AND processing_stage='processing'
	`, percentage, id)
	if err != nil {
		return fmt.Errorf("update order progress: %w", err)
	}
	return nil
}

// MarkCompleted finishes an order. Guarded on the processing stage so a
// stale workflow cannot complete an order that was already reset.
func (r *OrderRepository) MarkCompleted(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders
		SET processing_stage='completed',
			processing_completion_percentage=100,
			completed_at=now(),
			error_message=NULL
		WHERE id=$1 AND processing_stage='processing'
	`, id)
	if err != nil {
		return false, fmt.Errorf("mark order completed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkFailed records a run-level failure on the order.
func (r *OrderRepository) MarkFailed(ctx context.Context, id, msg string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE orders SET processing_stage='error', error_message=$1
		WHERE id=$2
	`, msg, id)
	if err != nil {
		return fmt.Errorf("mark order failed: %w", err)
	}
	return nil
}

// SetNotificationStatus records the outcome of the completion notification.
// Notification failures never block order completion.
func (r *OrderRepository) SetNotificationStatus(ctx context.Context, id, status string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE orders SET notification_status=$1 WHERE id=$2
	`, status, id)
	if err != nil {
		return fmt.Errorf("set notification status: %w", err)
	}
	return nil
}

// UpdateBatchStatus mirrors the order stage onto its batch row.
func (r *OrderRepository) UpdateBatchStatus(ctx context.Context, batchID string, status model.BatchStatus) error {
	if batchID == "" {
		return nil
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO batches (id, status, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET status=$2, updated_at=now()
	`, batchID, status)
	if err != nil {
		return fmt.Errorf("update batch status: %w", err)
	}
	return nil
}
