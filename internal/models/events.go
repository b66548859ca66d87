package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification kinds, one per transition that pushes an update
const (
	NotifyNewOrderPlaced       = "NEW_ORDER_PLACED"
	NotifyOrderAssigned        = "ORDER_ASSIGNED"
	NotifyOutForDelivery       = "OUT_FOR_DELIVERY"
	NotifyAwaitingConfirmation = "AWAITING_CONFIRMATION"
	NotifyOrderCancelled       = "ORDER_CANCELLED"
)

// NotificationEvent is a fire-and-forget push message produced by a successful
// state transition. RecipientID addresses a single actor; RecipientRole fans
// out to every actor holding that role (administrator broadcast). The engine
// keeps no acknowledgement state for it.
type NotificationEvent struct {
	EventID       string     `json:"event_id"`
	Kind          string     `json:"kind"`
	OrderID       uuid.UUID  `json:"order_id"`
	RecipientID   *uuid.UUID `json:"recipient_id,omitempty"`
	RecipientRole Role       `json:"recipient_role,omitempty"`
	EmittedAt     time.Time  `json:"emitted_at"`
}

// ToActor addresses a notification to a single actor.
func ToActor(id uuid.UUID, kind string, orderID uuid.UUID) NotificationEvent {
	return NotificationEvent{
		EventID:     uuid.New().String(),
		Kind:        kind,
		OrderID:     orderID,
		RecipientID: &id,
		EmittedAt:   time.Now().UTC(),
	}
}

// ToRole addresses a notification to every actor holding a role.
func ToRole(role Role, kind string, orderID uuid.UUID) NotificationEvent {
	return NotificationEvent{
		EventID:       uuid.New().String(),
		Kind:          kind,
		OrderID:       orderID,
		RecipientRole: role,
		EmittedAt:     time.Now().UTC(),
	}
}
