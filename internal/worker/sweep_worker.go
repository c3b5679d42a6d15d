package worker

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/hibiken/asynq"

	"github.com/orbitlabs/orbit-api/internal/model"
	"github.com/orbitlabs/orbit-api/internal/retry"
)

// StuckResetter is the slice of the order repository the sweep needs.
type StuckResetter interface {
	ResetStuck(ctx context.Context, timeout time.Duration) ([]model.Order, error)
}

// SweepWorker periodically rescues orders whose workflow died without
// updating its own state.
type SweepWorker struct {
	orders  StuckResetter
	timeout time.Duration
}

func NewSweepWorker(orders StuckResetter, timeout time.Duration) *SweepWorker {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &SweepWorker{orders: orders, timeout: timeout}
}

// HandleStuckSweep resets stuck orders back to initializing so the next
// discovery pass picks them up.
func (w *SweepWorker) HandleStuckSweep(ctx context.Context, t *asynq.Task) error {
	var reset []model.Order
	_, err := retry.Do(ctx, func(ctx context.Context) error {
		var innerErr error
		reset, innerErr = w.orders.ResetStuck(ctx, w.timeout)
		if innerErr != nil {
			return retry.Wrap(retry.CategoryDatabase, innerErr, "reset stuck orders")
		}
		return nil
	}, nil)
	if err != nil {
		return err
	}

	for _, o := range reset {
		log.Warnf("reset stuck order %s (processing since %v)", o.ID, o.ProcessingStartedAt)
	}
	if len(reset) > 0 {
		log.Infof("stuck order sweep reset %d orders", len(reset))
	}
	return nil
}
