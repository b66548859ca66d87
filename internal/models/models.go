package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Role of an authenticated actor
type Role string

const (
	RoleAdministrator Role = "administrator"
	RoleClient        Role = "client"
	RoleDriver        Role = "driver"
)

// Actor represents an authenticated party (administrator, client restaurant, or driver)
type Actor struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Role      Role      `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// State of an order in its lifecycle
type State string

// Order lifecycle states. OUT_FOR_DELIVERY is a transient hop inside the
// MarkDelivered transition; an order is never persisted in it.
const (
	StatePlaced          State = "PLACED"
	StateConfirmed       State = "CONFIRMED"
	StatePriced          State = "PRICED"
	StateAssigned        State = "ASSIGNED"
	StateOutForDelivery  State = "OUT_FOR_DELIVERY"
	StateAwaitingReceipt State = "AWAITING_CLIENT_CONFIRMATION"
	StateCompleted       State = "COMPLETED"
	StateCancelled       State = "CANCELLED"
)

// Terminal reports whether no further transition can leave the state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// Order represents one purchasing transaction from one client
type Order struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	ClientID        uuid.UUID  `db:"client_id" json:"client_id"`
	DriverID        *uuid.UUID `db:"driver_id" json:"driver_id,omitempty"`
	State           State      `db:"state" json:"state"`
	Version         int64      `db:"version" json:"version"`
	DeliveryAddress string     `db:"delivery_address" json:"delivery_address"`
	ClientComment   *string    `db:"client_comment" json:"client_comment,omitempty"`
	CancelReason    *string    `db:"cancel_reason" json:"cancel_reason,omitempty"`
	PlacedAt        time.Time  `db:"placed_at" json:"placed_at"`
	ConfirmedAt     *time.Time `db:"confirmed_at" json:"confirmed_at,omitempty"`
	PricedAt        *time.Time `db:"priced_at" json:"priced_at,omitempty"`
	AssignedAt      *time.Time `db:"assigned_at" json:"assigned_at,omitempty"`
	DeliveredAt     *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
	CompletedAt     *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt     *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`

	Lines []OrderLine `db:"-" json:"lines,omitempty"`
}

// OrderLine represents one product quantity within an order. Cost and sell
// price stay nil until the administrator prices the order; they are always
// set together.
type OrderLine struct {
	OrderID   uuid.UUID        `db:"order_id" json:"order_id"`
	ProductID uuid.UUID        `db:"product_id" json:"product_id"`
	Quantity  int              `db:"quantity" json:"quantity"`
	CostPrice *decimal.Decimal `db:"cost_price" json:"cost_price,omitempty"`
	SellPrice *decimal.Decimal `db:"sell_price" json:"sell_price,omitempty"`
}

// Priced reports whether both prices are set on the line.
func (l OrderLine) Priced() bool {
	return l.CostPrice != nil && l.SellPrice != nil
}

// Product represents a catalog entry, read-only from this subsystem
type Product struct {
	ID        uuid.UUID `db:"id" json:"id"`
	SKU       string    `db:"sku" json:"sku"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// WorksheetEntry is one row of the purchasing worksheet: outstanding confirmed
// demand for a product, drillable per client. Derived, never persisted.
type WorksheetEntry struct {
	ProductID     uuid.UUID         `json:"product_id"`
	TotalQuantity int               `json:"total_quantity"`
	PerClient     map[uuid.UUID]int `json:"per_client"`
}
