package notify

import (
	"context"
	"math/rand"
	"time"

	"order-workflow/internal/models"

	"go.uber.org/zap"
)

// Deliverer hands a notification to the device push provider.
type Deliverer interface {
	Deliver(ctx context.Context, event models.NotificationEvent) error
}

// SimulatedDeliverer stands in for the real push provider: it logs the
// delivery after a short provider-shaped latency. Useful for local runs and
// load tests without a provider account.
type SimulatedDeliverer struct {
	logger *zap.Logger
}

// NewSimulatedDeliverer creates a logging push deliverer
func NewSimulatedDeliverer(logger *zap.Logger) *SimulatedDeliverer {
	return &SimulatedDeliverer{logger: logger}
}

// Deliver simulates a push to the recipient's device
func (d *SimulatedDeliverer) Deliver(ctx context.Context, event models.NotificationEvent) error {
	latency := time.Duration(20+rand.Intn(80)) * time.Millisecond
	select {
	case <-time.After(latency):
	case <-ctx.Done():
		return ctx.Err()
	}

	fields := []zap.Field{
		zap.String("event_id", event.EventID),
		zap.String("kind", event.Kind),
		zap.String("order_id", event.OrderID.String()),
	}
	if event.RecipientID != nil {
		fields = append(fields, zap.String("recipient_id", event.RecipientID.String()))
	}
	if event.RecipientRole != "" {
		fields = append(fields, zap.String("recipient_role", string(event.RecipientRole)))
	}

	d.logger.Info("Push notification delivered", fields...)
	return nil
}
