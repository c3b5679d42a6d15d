package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"github.com/hibiken/asynq"

	"github.com/orbitlabs/orbit-api/internal/client"
)

// NotificationRecorder persists the notification outcome on the order.
type NotificationRecorder interface {
	SetNotificationStatus(ctx context.Context, id, status string) error
}

// EmailSender is the slice of the email client the worker needs.
type EmailSender interface {
	SendOrderCompletion(ctx context.Context, orderID string) (*client.NotificationResult, error)
}

// NotifyWorker delivers completion emails queued by the workflow.
type NotifyWorker struct {
	email  EmailSender
	orders NotificationRecorder
}

func NewNotifyWorker(email EmailSender, orders NotificationRecorder) *NotifyWorker {
	return &NotifyWorker{email: email, orders: orders}
}

// HandleCompletionNotify sends one completion email. A returned error makes
// asynq redeliver the task; the recorded status tracks the latest outcome
// so operators can see stuck notifications on the order row.
func (w *NotifyWorker) HandleCompletionNotify(ctx context.Context, t *asynq.Task) error {
	var payload CompletionNotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		// malformed payloads can never succeed; drop instead of retrying
		log.Errorf("notify task with bad payload: %v", err)
		return nil
	}

	result, err := w.email.SendOrderCompletion(ctx, payload.OrderID)
	if err != nil {
		w.record(ctx, payload.OrderID, "failed")
		return fmt.Errorf("send completion email for order %s: %w", payload.OrderID, err)
	}
	if !result.Success {
		w.record(ctx, payload.OrderID, "failed")
		return fmt.Errorf("email function rejected order %s: %s", payload.OrderID, result.Error)
	}

	log.Infof("completion email sent for order %s (email id %s)", payload.OrderID, result.EmailID)
	w.record(ctx, payload.OrderID, "sent")
	return nil
}

func (w *NotifyWorker) record(ctx context.Context, orderID, status string) {
	if err := w.orders.SetNotificationStatus(ctx, orderID, status); err != nil {
		log.Warnf("record notification status for order %s: %v", orderID, err)
	}
}
