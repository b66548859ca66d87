// Package lifecycle implements the order state machine. Every transition
// validates the calling actor, the current state and the edge preconditions
// before mutating anything, and reports the notifications to push as a result
// of the change. The machine itself is pure: it never touches storage and
// never blocks.
package lifecycle

import (
	"errors"
	"time"

	"order-workflow/internal/models"
	"order-workflow/internal/pricing"

	"github.com/google/uuid"
)

// Machine validates and applies order lifecycle transitions.
type Machine struct {
	now func() time.Time
}

// New creates a state machine using wall-clock time.
func New() *Machine {
	return &Machine{now: func() time.Time { return time.Now().UTC() }}
}

// PlaceRequest is the client's initial order submission.
type PlaceRequest struct {
	Lines           []models.OrderLine
	DeliveryAddress string
	ClientComment   *string
}

// Place creates a new order in PLACED for the calling client. This is the only
// way an order comes into existence.
func (m *Machine) Place(actor models.Actor, req PlaceRequest) (*models.Order, []models.NotificationEvent, error) {
	if actor.Role != models.RoleClient {
		return nil, nil, Reject(RejectForbidden, "", "only a client may place an order, got role %s", actor.Role)
	}
	if len(req.Lines) == 0 {
		return nil, nil, Reject(RejectPreconditionFailed, "", "order has no lines")
	}
	if req.DeliveryAddress == "" {
		return nil, nil, Reject(RejectPreconditionFailed, "", "delivery address is required")
	}

	seen := make(map[uuid.UUID]struct{}, len(req.Lines))
	for _, line := range req.Lines {
		if line.Quantity <= 0 {
			return nil, nil, Reject(RejectPreconditionFailed, "", "quantity must be positive for product %s", line.ProductID)
		}
		if _, dup := seen[line.ProductID]; dup {
			return nil, nil, Reject(RejectPreconditionFailed, "", "duplicate line for product %s", line.ProductID)
		}
		seen[line.ProductID] = struct{}{}
	}

	order := &models.Order{
		ID:              uuid.New(),
		ClientID:        actor.ID,
		State:           models.StatePlaced,
		Version:         1,
		DeliveryAddress: req.DeliveryAddress,
		ClientComment:   req.ClientComment,
		PlacedAt:        m.now(),
	}
	for _, line := range req.Lines {
		order.Lines = append(order.Lines, models.OrderLine{
			OrderID:   order.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		})
	}

	events := []models.NotificationEvent{
		models.ToRole(models.RoleAdministrator, models.NotifyNewOrderPlaced, order.ID),
	}
	return order, events, nil
}

// Confirm moves PLACED to CONFIRMED, which enters the order into the
// purchasing worksheet.
func (m *Machine) Confirm(order *models.Order, actor models.Actor) ([]models.NotificationEvent, error) {
	if actor.Role != models.RoleAdministrator {
		return nil, Reject(RejectForbidden, order.State, "only an administrator may confirm an order")
	}
	if order.State != models.StatePlaced {
		return nil, Reject(RejectInvalidTransition, order.State, "cannot confirm an order in state %s", order.State)
	}

	now := m.now()
	order.State = models.StateConfirmed
	order.ConfirmedAt = &now
	return nil, nil
}

// SetPricing moves CONFIRMED to PRICED, storing cost and sell price on every
// line. Quotes are validated through the pricing calculator; underpricing
// warnings surface to the caller without blocking the transition.
func (m *Machine) SetPricing(order *models.Order, actor models.Actor, quotes map[uuid.UUID]pricing.Quote, policy pricing.Policy) ([]string, error) {
	if actor.Role != models.RoleAdministrator {
		return nil, Reject(RejectForbidden, order.State, "only an administrator may price an order")
	}
	if order.State != models.StateConfirmed {
		return nil, Reject(RejectInvalidTransition, order.State, "cannot price an order in state %s", order.State)
	}

	priced, err := pricing.Price(order.Lines, quotes, policy)
	if err != nil {
		if errors.Is(err, pricing.ErrMissingQuote) {
			return nil, Reject(RejectPreconditionFailed, order.State, "%v", err)
		}
		return nil, Reject(RejectInvalidPricing, order.State, "%v", err)
	}

	for i := range order.Lines {
		quote := quotes[order.Lines[i].ProductID]
		cost, sell := quote.Cost, quote.Sell
		order.Lines[i].CostPrice = &cost
		order.Lines[i].SellPrice = &sell
	}

	now := m.now()
	order.State = models.StatePriced
	order.PricedAt = &now
	return priced.Warnings, nil
}

// AssignDriver moves PRICED to ASSIGNED, binding the order to one driver.
// Exactly one assignment ever succeeds per order; the racing administrator
// loses the version compare-and-swap at save time.
func (m *Machine) AssignDriver(order *models.Order, actor models.Actor, driver models.Actor) ([]models.NotificationEvent, error) {
	if actor.Role != models.RoleAdministrator {
		return nil, Reject(RejectForbidden, order.State, "only an administrator may assign a driver")
	}
	if order.State != models.StatePriced {
		return nil, Reject(RejectInvalidTransition, order.State, "cannot assign a driver to an order in state %s", order.State)
	}
	if order.DriverID != nil {
		return nil, Reject(RejectPreconditionFailed, order.State, "order already assigned to driver %s", *order.DriverID)
	}
	if driver.Role != models.RoleDriver {
		return nil, Reject(RejectPreconditionFailed, order.State, "assignee %s is not a driver", driver.ID)
	}
	for _, line := range order.Lines {
		if !line.Priced() {
			return nil, Reject(RejectPreconditionFailed, order.State, "line for product %s is not priced", line.ProductID)
		}
	}

	now := m.now()
	driverID := driver.ID
	order.State = models.StateAssigned
	order.DriverID = &driverID
	order.AssignedAt = &now

	events := []models.NotificationEvent{
		models.ToActor(driver.ID, models.NotifyOrderAssigned, order.ID),
		models.ToActor(order.ClientID, models.NotifyOutForDelivery, order.ID),
	}
	return events, nil
}

// MarkDelivered records the physical delivery. Only the assigned driver may
// call it. The order passes through OUT_FOR_DELIVERY and lands in
// AWAITING_CLIENT_CONFIRMATION within the same transition.
func (m *Machine) MarkDelivered(order *models.Order, actor models.Actor) ([]models.NotificationEvent, error) {
	if actor.Role != models.RoleDriver {
		return nil, Reject(RejectForbidden, order.State, "only a driver may mark an order delivered")
	}
	if order.State != models.StateAssigned {
		return nil, Reject(RejectInvalidTransition, order.State, "cannot mark delivered an order in state %s", order.State)
	}
	if order.DriverID == nil || *order.DriverID != actor.ID {
		return nil, Reject(RejectForbidden, order.State, "order is not assigned to driver %s", actor.ID)
	}

	now := m.now()
	order.State = models.StateAwaitingReceipt
	order.DeliveredAt = &now

	events := []models.NotificationEvent{
		models.ToActor(order.ClientID, models.NotifyAwaitingConfirmation, order.ID),
	}
	return events, nil
}

// ConfirmReceipt finalizes the order. Only the owning client may call it;
// afterwards the state is terminal and profit becomes visible in analytics.
func (m *Machine) ConfirmReceipt(order *models.Order, actor models.Actor) ([]models.NotificationEvent, error) {
	if actor.Role != models.RoleClient {
		return nil, Reject(RejectForbidden, order.State, "only a client may confirm receipt")
	}
	if order.State != models.StateAwaitingReceipt {
		return nil, Reject(RejectInvalidTransition, order.State, "cannot confirm receipt of an order in state %s", order.State)
	}
	if order.ClientID != actor.ID {
		return nil, Reject(RejectForbidden, order.State, "order does not belong to client %s", actor.ID)
	}

	now := m.now()
	order.State = models.StateCompleted
	order.CompletedAt = &now
	return nil, nil
}

// Cancel terminates the order. Allowed for the administrator or the owning
// client, and only before the driver has picked up the goods; from
// OUT_FOR_DELIVERY onwards cancellation is an out-of-band exception, not a
// transition.
func (m *Machine) Cancel(order *models.Order, actor models.Actor, reason string) ([]models.NotificationEvent, error) {
	switch actor.Role {
	case models.RoleAdministrator:
	case models.RoleClient:
		if order.ClientID != actor.ID {
			return nil, Reject(RejectForbidden, order.State, "order does not belong to client %s", actor.ID)
		}
	default:
		return nil, Reject(RejectForbidden, order.State, "role %s may not cancel an order", actor.Role)
	}

	switch order.State {
	case models.StatePlaced, models.StateConfirmed, models.StatePriced, models.StateAssigned:
	default:
		return nil, Reject(RejectInvalidTransition, order.State, "cannot cancel an order in state %s", order.State)
	}

	now := m.now()
	order.State = models.StateCancelled
	order.CancelReason = &reason
	order.CancelledAt = &now

	// Everyone who touched the order so far hears about the cancellation.
	events := []models.NotificationEvent{
		models.ToActor(order.ClientID, models.NotifyOrderCancelled, order.ID),
		models.ToRole(models.RoleAdministrator, models.NotifyOrderCancelled, order.ID),
	}
	if order.DriverID != nil {
		events = append(events, models.ToActor(*order.DriverID, models.NotifyOrderCancelled, order.ID))
	}
	return events, nil
}
