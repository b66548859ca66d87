package lifecycle

import (
	"testing"

	"order-workflow/internal/models"
	"order-workflow/internal/pricing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin  = models.Actor{ID: uuid.New(), Name: "dispatch", Role: models.RoleAdministrator}
	client = models.Actor{ID: uuid.New(), Name: "bistro", Role: models.RoleClient}
	driver = models.Actor{ID: uuid.New(), Name: "van-1", Role: models.RoleDriver}
)

func placedOrder(t *testing.T) *models.Order {
	t.Helper()
	m := New()
	order, events, err := m.Place(client, PlaceRequest{
		Lines: []models.OrderLine{
			{ProductID: uuid.New(), Quantity: 5},
			{ProductID: uuid.New(), Quantity: 3},
		},
		DeliveryAddress: "12 Market St",
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.NotifyNewOrderPlaced, events[0].Kind)
	assert.Equal(t, models.RoleAdministrator, events[0].RecipientRole)
	return order
}

func quotesFor(order *models.Order) map[uuid.UUID]pricing.Quote {
	quotes := make(map[uuid.UUID]pricing.Quote)
	for _, line := range order.Lines {
		quotes[line.ProductID] = pricing.Quote{
			Cost: decimal.NewFromInt(2),
			Sell: decimal.NewFromInt(3),
		}
	}
	return quotes
}

func advanceTo(t *testing.T, state models.State) *models.Order {
	t.Helper()
	m := New()
	order := placedOrder(t)
	if state == models.StatePlaced {
		return order
	}

	_, err := m.Confirm(order, admin)
	require.NoError(t, err)
	if state == models.StateConfirmed {
		return order
	}

	_, err = m.SetPricing(order, admin, quotesFor(order), pricing.Policy{})
	require.NoError(t, err)
	if state == models.StatePriced {
		return order
	}

	_, err = m.AssignDriver(order, admin, driver)
	require.NoError(t, err)
	if state == models.StateAssigned {
		return order
	}

	_, err = m.MarkDelivered(order, driver)
	require.NoError(t, err)
	if state == models.StateAwaitingReceipt {
		return order
	}

	_, err = m.ConfirmReceipt(order, client)
	require.NoError(t, err)
	require.Equal(t, models.StateCompleted, order.State)
	return order
}

func TestPlaceValidations(t *testing.T) {
	m := New()

	_, _, err := m.Place(admin, PlaceRequest{
		Lines:           []models.OrderLine{{ProductID: uuid.New(), Quantity: 1}},
		DeliveryAddress: "somewhere",
	})
	assert.Equal(t, RejectForbidden, KindOf(err))

	_, _, err = m.Place(client, PlaceRequest{DeliveryAddress: "somewhere"})
	assert.Equal(t, RejectPreconditionFailed, KindOf(err))

	_, _, err = m.Place(client, PlaceRequest{
		Lines: []models.OrderLine{{ProductID: uuid.New(), Quantity: 1}},
	})
	assert.Equal(t, RejectPreconditionFailed, KindOf(err))

	_, _, err = m.Place(client, PlaceRequest{
		Lines:           []models.OrderLine{{ProductID: uuid.New(), Quantity: 0}},
		DeliveryAddress: "somewhere",
	})
	assert.Equal(t, RejectPreconditionFailed, KindOf(err))

	dup := uuid.New()
	_, _, err = m.Place(client, PlaceRequest{
		Lines: []models.OrderLine{
			{ProductID: dup, Quantity: 1},
			{ProductID: dup, Quantity: 2},
		},
		DeliveryAddress: "somewhere",
	})
	assert.Equal(t, RejectPreconditionFailed, KindOf(err))
}

func TestPlaceInitialState(t *testing.T) {
	order := placedOrder(t)

	assert.Equal(t, models.StatePlaced, order.State)
	assert.Equal(t, client.ID, order.ClientID)
	assert.Equal(t, int64(1), order.Version)
	assert.Nil(t, order.DriverID)
	assert.False(t, order.PlacedAt.IsZero())
	for _, line := range order.Lines {
		assert.Equal(t, order.ID, line.OrderID)
		assert.False(t, line.Priced())
	}
}

func TestConfirmGuards(t *testing.T) {
	m := New()

	order := placedOrder(t)
	_, err := m.Confirm(order, client)
	assert.Equal(t, RejectForbidden, KindOf(err))
	assert.Equal(t, models.StatePlaced, order.State)

	_, err = m.Confirm(order, admin)
	require.NoError(t, err)
	assert.Equal(t, models.StateConfirmed, order.State)
	assert.NotNil(t, order.ConfirmedAt)

	_, err = m.Confirm(order, admin)
	assert.Equal(t, RejectInvalidTransition, KindOf(err))
}

func TestSetPricingRequiresEveryLinePriced(t *testing.T) {
	m := New()
	order := advanceTo(t, models.StateConfirmed)

	partial := quotesFor(order)
	delete(partial, order.Lines[0].ProductID)

	_, err := m.SetPricing(order, admin, partial, pricing.Policy{})
	assert.Equal(t, RejectPreconditionFailed, KindOf(err))
	assert.Equal(t, models.StateConfirmed, order.State)
	assert.False(t, order.Lines[0].Priced())

	_, err = m.SetPricing(order, admin, quotesFor(order), pricing.Policy{})
	require.NoError(t, err)
	assert.Equal(t, models.StatePriced, order.State)
	assert.NotNil(t, order.PricedAt)
	for _, line := range order.Lines {
		assert.True(t, line.Priced())
	}
}

func TestSetPricingWrongState(t *testing.T) {
	m := New()
	order := placedOrder(t)

	_, err := m.SetPricing(order, admin, quotesFor(order), pricing.Policy{})
	assert.Equal(t, RejectInvalidTransition, KindOf(err))
}

func TestSetPricingUnderpricingPolicy(t *testing.T) {
	m := New()
	order := advanceTo(t, models.StateConfirmed)

	quotes := make(map[uuid.UUID]pricing.Quote)
	for _, line := range order.Lines {
		quotes[line.ProductID] = pricing.Quote{
			Cost: decimal.NewFromInt(5),
			Sell: decimal.NewFromInt(4),
		}
	}

	_, err := m.SetPricing(order, admin, quotes, pricing.Policy{RejectUnderpricing: true})
	assert.Equal(t, RejectInvalidPricing, KindOf(err))
	assert.Equal(t, models.StateConfirmed, order.State)

	warnings, err := m.SetPricing(order, admin, quotes, pricing.Policy{})
	require.NoError(t, err)
	assert.NotEmpty(t, warnings)
	assert.Equal(t, models.StatePriced, order.State)
}

func TestAssignDriver(t *testing.T) {
	m := New()
	order := advanceTo(t, models.StatePriced)

	_, err := m.AssignDriver(order, client, driver)
	assert.Equal(t, RejectForbidden, KindOf(err))

	_, err = m.AssignDriver(order, admin, client)
	assert.Equal(t, RejectPreconditionFailed, KindOf(err))

	events, err := m.AssignDriver(order, admin, driver)
	require.NoError(t, err)
	assert.Equal(t, models.StateAssigned, order.State)
	require.NotNil(t, order.DriverID)
	assert.Equal(t, driver.ID, *order.DriverID)
	assert.NotNil(t, order.AssignedAt)

	require.Len(t, events, 2)
	assert.Equal(t, models.NotifyOrderAssigned, events[0].Kind)
	assert.Equal(t, driver.ID, *events[0].RecipientID)
	assert.Equal(t, models.NotifyOutForDelivery, events[1].Kind)
	assert.Equal(t, order.ClientID, *events[1].RecipientID)

	_, err = m.AssignDriver(order, admin, driver)
	assert.Equal(t, RejectInvalidTransition, KindOf(err))
}

func TestMarkDeliveredOnlyAssignedDriver(t *testing.T) {
	m := New()
	order := advanceTo(t, models.StateAssigned)

	otherDriver := models.Actor{ID: uuid.New(), Role: models.RoleDriver}
	_, err := m.MarkDelivered(order, otherDriver)
	assert.Equal(t, RejectForbidden, KindOf(err))
	assert.Equal(t, models.StateAssigned, order.State)

	_, err = m.MarkDelivered(order, admin)
	assert.Equal(t, RejectForbidden, KindOf(err))

	events, err := m.MarkDelivered(order, driver)
	require.NoError(t, err)
	assert.Equal(t, models.StateAwaitingReceipt, order.State)
	assert.NotNil(t, order.DeliveredAt)
	require.Len(t, events, 1)
	assert.Equal(t, models.NotifyAwaitingConfirmation, events[0].Kind)
}

func TestConfirmReceiptOnlyOwningClient(t *testing.T) {
	m := New()
	order := advanceTo(t, models.StateAwaitingReceipt)

	stranger := models.Actor{ID: uuid.New(), Role: models.RoleClient}
	_, err := m.ConfirmReceipt(order, stranger)
	assert.Equal(t, RejectForbidden, KindOf(err))

	_, err = m.ConfirmReceipt(order, client)
	require.NoError(t, err)
	assert.Equal(t, models.StateCompleted, order.State)
	assert.NotNil(t, order.CompletedAt)
}

func TestConfirmReceiptIdempotentRejection(t *testing.T) {
	m := New()
	order := advanceTo(t, models.StateCompleted)
	completedAt := order.CompletedAt

	for i := 0; i < 2; i++ {
		_, err := m.ConfirmReceipt(order, client)
		assert.Equal(t, RejectInvalidTransition, KindOf(err))
		var rej *Rejection
		require.ErrorAs(t, err, &rej)
		assert.Equal(t, models.StateCompleted, rej.State)
	}
	assert.Equal(t, completedAt, order.CompletedAt)
}

func TestCancelWindow(t *testing.T) {
	m := New()

	for _, state := range []models.State{
		models.StatePlaced, models.StateConfirmed, models.StatePriced, models.StateAssigned,
	} {
		order := advanceTo(t, state)
		events, err := m.Cancel(order, admin, "supplier out of stock")
		require.NoError(t, err, "cancel from %s", state)
		assert.Equal(t, models.StateCancelled, order.State)
		require.NotNil(t, order.CancelReason)
		assert.NotEmpty(t, events)
	}

	for _, state := range []models.State{
		models.StateAwaitingReceipt, models.StateCompleted,
	} {
		order := advanceTo(t, state)
		_, err := m.Cancel(order, admin, "too late")
		assert.Equal(t, RejectInvalidTransition, KindOf(err), "cancel from %s", state)
	}
}

func TestCancelByOwningClientOnly(t *testing.T) {
	m := New()
	order := placedOrder(t)

	stranger := models.Actor{ID: uuid.New(), Role: models.RoleClient}
	_, err := m.Cancel(order, stranger, "not mine")
	assert.Equal(t, RejectForbidden, KindOf(err))

	_, err = m.Cancel(order, driver, "driver cannot cancel")
	assert.Equal(t, RejectForbidden, KindOf(err))

	_, err = m.Cancel(order, client, "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, models.StateCancelled, order.State)
}

func TestCancelNotifiesPriorParticipants(t *testing.T) {
	m := New()
	order := advanceTo(t, models.StateAssigned)

	events, err := m.Cancel(order, admin, "client closed")
	require.NoError(t, err)

	kinds := make(map[string]int)
	var driverNotified bool
	for _, event := range events {
		kinds[event.Kind]++
		if event.RecipientID != nil && *event.RecipientID == driver.ID {
			driverNotified = true
		}
	}
	assert.Equal(t, 3, kinds[models.NotifyOrderCancelled])
	assert.True(t, driverNotified)
}

func TestCancelledOrderRejectsEverything(t *testing.T) {
	m := New()
	order := advanceTo(t, models.StatePlaced)
	_, err := m.Cancel(order, admin, "dup order")
	require.NoError(t, err)

	_, err = m.Confirm(order, admin)
	assert.Equal(t, RejectInvalidTransition, KindOf(err))
	_, err = m.SetPricing(order, admin, quotesFor(order), pricing.Policy{})
	assert.Equal(t, RejectInvalidTransition, KindOf(err))
	_, err = m.AssignDriver(order, admin, driver)
	assert.Equal(t, RejectInvalidTransition, KindOf(err))
	_, err = m.Cancel(order, admin, "again")
	assert.Equal(t, RejectInvalidTransition, KindOf(err))
	assert.True(t, order.State.Terminal())
}
