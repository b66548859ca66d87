package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"order-workflow/internal/models"
	"order-workflow/internal/notify"
	"order-workflow/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// NotificationWorker drains the notification topic and pushes each event to
// the recipient's device. Delivery is at-least-once; a failed push leaves the
// offset uncommitted so the event comes around again.
type NotificationWorker struct {
	consumer  *notify.Consumer
	deliverer notify.Deliverer
	logger    *zap.Logger
}

// NewNotificationWorker creates a notification dispatch worker
func NewNotificationWorker(consumer *notify.Consumer, deliverer notify.Deliverer) *NotificationWorker {
	return &NotificationWorker{
		consumer:  consumer,
		deliverer: deliverer,
		logger:    util.GetLogger(),
	}
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification worker")
	return w.consumer.StartConsuming(ctx, w.handleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	w.logger.Info("Stopping notification worker")
	return w.consumer.Close()
}

func (w *NotificationWorker) handleMessage(ctx context.Context, msg kafka.Message) error {
	var event models.NotificationEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		// Poison message, log and drop rather than redeliver forever.
		w.logger.Error("Failed to unmarshal notification event", zap.Error(err))
		return nil
	}

	if err := w.deliverer.Deliver(ctx, event); err != nil {
		util.PushDeliveriesFailed.Inc()
		w.logger.Error("Failed to deliver push notification",
			zap.String("event_id", event.EventID),
			zap.String("kind", event.Kind),
			zap.Error(err))
		return fmt.Errorf("deliver %s: %w", event.EventID, err)
	}

	util.PushDeliveriesTotal.Inc()
	return nil
}
