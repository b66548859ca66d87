package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"order-workflow/internal/models"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

type fakeDeliverer struct {
	delivered []models.NotificationEvent
	fail      bool
}

func (d *fakeDeliverer) Deliver(_ context.Context, event models.NotificationEvent) error {
	if d.fail {
		return errors.New("push provider down")
	}
	d.delivered = append(d.delivered, event)
	return nil
}

func message(t *testing.T, event models.NotificationEvent) kafka.Message {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Key: []byte("order-" + event.OrderID.String()), Value: payload}
}

func TestHandleMessageDelivers(t *testing.T) {
	deliverer := &fakeDeliverer{}
	w := &NotificationWorker{deliverer: deliverer, logger: testLogger()}

	recipient := uuid.New()
	event := models.ToActor(recipient, models.NotifyOrderAssigned, uuid.New())

	err := w.handleMessage(context.Background(), message(t, event))
	require.NoError(t, err)
	require.Len(t, deliverer.delivered, 1)
	assert.Equal(t, models.NotifyOrderAssigned, deliverer.delivered[0].Kind)
	assert.Equal(t, recipient, *deliverer.delivered[0].RecipientID)
}

func TestHandleMessageDeliveryFailureRedelivers(t *testing.T) {
	deliverer := &fakeDeliverer{fail: true}
	w := &NotificationWorker{deliverer: deliverer, logger: testLogger()}

	event := models.ToActor(uuid.New(), models.NotifyOutForDelivery, uuid.New())

	// The error propagates so the offset stays uncommitted.
	err := w.handleMessage(context.Background(), message(t, event))
	assert.Error(t, err)
}

func TestHandleMessageDropsPoisonPayload(t *testing.T) {
	deliverer := &fakeDeliverer{}
	w := &NotificationWorker{deliverer: deliverer, logger: testLogger()}

	err := w.handleMessage(context.Background(), kafka.Message{Value: []byte("not json")})
	assert.NoError(t, err)
	assert.Empty(t, deliverer.delivered)
}
