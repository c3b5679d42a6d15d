package worker

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// TypeCompletionNotify sends the customer completion email for an order.
	TypeCompletionNotify = "notify:completion"
	// TypeStuckSweep resets orders abandoned mid-processing.
	TypeStuckSweep = "orders:sweep"
)

// CompletionNotifyPayload carries the order whose completion email is due.
type CompletionNotifyPayload struct {
	OrderID string `json:"orderId"`
}

// NewCompletionNotifyTask builds the notification task. Notification
// failures get two redeliveries and never escalate beyond that.
func NewCompletionNotifyTask(orderID string) (*asynq.Task, error) {
	payload, err := json.Marshal(CompletionNotifyPayload{OrderID: orderID})
	if err != nil {
		return nil, fmt.Errorf("marshal notify payload: %w", err)
	}
	return asynq.NewTask(TypeCompletionNotify, payload,
		asynq.MaxRetry(2),
		asynq.Timeout(time.Minute),
	), nil
}

// NewStuckSweepTask builds the periodic stuck-order sweep task.
func NewStuckSweepTask() *asynq.Task {
	return asynq.NewTask(TypeStuckSweep, nil,
		asynq.MaxRetry(1),
		asynq.Timeout(time.Minute),
	)
}

// RetryDelay implements the fixed notification retry spacing; everything
// else falls back to asynq's default backoff.
func RetryDelay(n int, err error, task *asynq.Task) time.Duration {
	if task.Type() == TypeCompletionNotify {
		return 5 * time.Second
	}
	return asynq.DefaultRetryDelayFunc(n, err, task)
}
