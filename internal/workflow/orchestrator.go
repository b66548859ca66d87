// Package workflow is the public entry point of the order engine. Every
// command follows the same template: authenticate via the identity gate, load
// the order, run the pure state machine transition, save under the version
// compare-and-swap, then emit notifications post-commit. A version conflict
// retries the whole cycle a bounded number of times; nothing else is ever
// retried automatically.
package workflow

import (
	"context"
	"errors"
	"time"

	"order-workflow/internal/identity"
	"order-workflow/internal/lifecycle"
	"order-workflow/internal/models"
	"order-workflow/internal/notify"
	"order-workflow/internal/pricing"
	"order-workflow/internal/store"
	"order-workflow/internal/util"
	"order-workflow/internal/worksheet"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultRetryAttempts bounds the authorize+load+transition+save cycle on
// version conflicts.
const DefaultRetryAttempts = 3

// Repository is the narrow contract the orchestrator needs from the durable
// store. *store.Store satisfies it; tests substitute an in-memory fake.
type Repository interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	SaveOrder(ctx context.Context, order *models.Order, expectedVersion int64) error
	ListConfirmedOrders(ctx context.Context) ([]models.Order, error)
	ListOrdersByClient(ctx context.Context, clientID uuid.UUID) ([]models.Order, error)
	GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	GetActorByID(ctx context.Context, id uuid.UUID) (*models.Actor, error)
	ListAdministrators(ctx context.Context) ([]models.Actor, error)
}

// Orchestrator drives the order lifecycle on behalf of authenticated actors.
type Orchestrator struct {
	repo          Repository
	gate          identity.Gate
	sink          notify.Sink
	machine       *lifecycle.Machine
	policy        pricing.Policy
	retryAttempts int
	logger        *zap.Logger
}

// NewOrchestrator creates a workflow orchestrator
func NewOrchestrator(repo Repository, gate identity.Gate, sink notify.Sink, policy pricing.Policy, retryAttempts int) *Orchestrator {
	if retryAttempts <= 0 {
		retryAttempts = DefaultRetryAttempts
	}
	return &Orchestrator{
		repo:          repo,
		gate:          gate,
		sink:          sink,
		machine:       lifecycle.New(),
		policy:        policy,
		retryAttempts: retryAttempts,
		logger:        util.GetLogger(),
	}
}

// PlaceOrderRequest is a client's order submission
type PlaceOrderRequest struct {
	Lines           []PlaceOrderLine `json:"lines" binding:"required,min=1"`
	DeliveryAddress string           `json:"delivery_address" binding:"required"`
	ClientComment   *string          `json:"client_comment,omitempty"`
}

// PlaceOrderLine is one requested product quantity
type PlaceOrderLine struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1"`
}

// SetPricingRequest carries the administrator's per-line cost and sell prices
type SetPricingRequest struct {
	Lines []PricingLine `json:"lines" binding:"required,min=1"`
}

// PricingLine is one product's quote
type PricingLine struct {
	ProductID uuid.UUID       `json:"product_id" binding:"required"`
	CostPrice decimal.Decimal `json:"cost_price"`
	SellPrice decimal.Decimal `json:"sell_price"`
}

// PlaceOrder creates a new order for the calling client in PLACED and
// notifies administrators.
func (o *Orchestrator) PlaceOrder(ctx context.Context, credential string, req PlaceOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "Orchestrator.PlaceOrder")
	defer span.End()

	actor, err := o.authenticate(ctx, credential)
	if err != nil {
		return nil, err
	}

	productIDs := make([]uuid.UUID, len(req.Lines))
	lines := make([]models.OrderLine, len(req.Lines))
	for i, line := range req.Lines {
		productIDs[i] = line.ProductID
		lines[i] = models.OrderLine{ProductID: line.ProductID, Quantity: line.Quantity}
	}

	products, err := o.repo.GetProductsByIDs(ctx, productIDs)
	if err != nil {
		return nil, lifecycle.Reject(lifecycle.RejectRepository, "", "product lookup failed: %v", err)
	}
	if len(products) != len(req.Lines) {
		return nil, lifecycle.Reject(lifecycle.RejectPreconditionFailed, "", "some products not found")
	}

	order, events, err := o.machine.Place(actor, lifecycle.PlaceRequest{
		Lines:           lines,
		DeliveryAddress: req.DeliveryAddress,
		ClientComment:   req.ClientComment,
	})
	if err != nil {
		o.countRejection("PlaceOrder", err)
		return nil, err
	}

	if err := o.repo.CreateOrder(ctx, order); err != nil {
		return nil, lifecycle.Reject(lifecycle.RejectRepository, "", "failed to create order: %v", err)
	}

	util.TransitionsTotal.WithLabelValues("PlaceOrder").Inc()
	o.logger.Info("Order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("client_id", order.ClientID.String()))

	o.emit(ctx, events)
	return order, nil
}

// ConfirmOrder moves a placed order into CONFIRMED, entering it into the
// purchasing worksheet.
func (o *Orchestrator) ConfirmOrder(ctx context.Context, credential string, orderID uuid.UUID) (*models.Order, error) {
	order, _, err := o.run(ctx, "ConfirmOrder", credential, orderID,
		func(ctx context.Context, actor models.Actor, order *models.Order) ([]models.NotificationEvent, []string, error) {
			events, err := o.machine.Confirm(order, actor)
			return events, nil, err
		})
	return order, err
}

// SetPricing prices every line of a confirmed order. Underpricing warnings
// are returned alongside the order when policy allows them through.
func (o *Orchestrator) SetPricing(ctx context.Context, credential string, orderID uuid.UUID, req SetPricingRequest) (*models.Order, []string, error) {
	quotes := make(map[uuid.UUID]pricing.Quote, len(req.Lines))
	for _, line := range req.Lines {
		quotes[line.ProductID] = pricing.Quote{Cost: line.CostPrice, Sell: line.SellPrice}
	}

	return o.run(ctx, "SetPricing", credential, orderID,
		func(ctx context.Context, actor models.Actor, order *models.Order) ([]models.NotificationEvent, []string, error) {
			warnings, err := o.machine.SetPricing(order, actor, quotes, o.policy)
			return nil, warnings, err
		})
}

// AssignDriver binds a priced order to one driver. Exactly one concurrent
// assignment wins; the loser surfaces Conflict with the order's actual state.
func (o *Orchestrator) AssignDriver(ctx context.Context, credential string, orderID, driverID uuid.UUID) (*models.Order, error) {
	order, _, err := o.run(ctx, "AssignDriver", credential, orderID,
		func(ctx context.Context, actor models.Actor, order *models.Order) ([]models.NotificationEvent, []string, error) {
			driver, err := o.repo.GetActorByID(ctx, driverID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return nil, nil, lifecycle.Reject(lifecycle.RejectPreconditionFailed, order.State, "driver %s not found", driverID)
				}
				return nil, nil, err
			}
			events, err := o.machine.AssignDriver(order, actor, *driver)
			return events, nil, err
		})
	return order, err
}

// MarkDelivered records the physical delivery by the assigned driver.
func (o *Orchestrator) MarkDelivered(ctx context.Context, credential string, orderID uuid.UUID) (*models.Order, error) {
	order, _, err := o.run(ctx, "MarkDelivered", credential, orderID,
		func(ctx context.Context, actor models.Actor, order *models.Order) ([]models.NotificationEvent, []string, error) {
			events, err := o.machine.MarkDelivered(order, actor)
			return events, nil, err
		})
	return order, err
}

// ConfirmReceipt finalizes the order on the owning client's confirmation.
func (o *Orchestrator) ConfirmReceipt(ctx context.Context, credential string, orderID uuid.UUID) (*models.Order, error) {
	order, _, err := o.run(ctx, "ConfirmReceipt", credential, orderID,
		func(ctx context.Context, actor models.Actor, order *models.Order) ([]models.NotificationEvent, []string, error) {
			events, err := o.machine.ConfirmReceipt(order, actor)
			return events, nil, err
		})
	return order, err
}

// CancelOrder terminates the order before pickup and notifies every prior
// participant.
func (o *Orchestrator) CancelOrder(ctx context.Context, credential string, orderID uuid.UUID, reason string) (*models.Order, error) {
	order, _, err := o.run(ctx, "CancelOrder", credential, orderID,
		func(ctx context.Context, actor models.Actor, order *models.Order) ([]models.NotificationEvent, []string, error) {
			events, err := o.machine.Cancel(order, actor, reason)
			return events, nil, err
		})
	return order, err
}

// GetWorksheet computes the live purchasing worksheet over every currently
// confirmed order. Administrator only.
func (o *Orchestrator) GetWorksheet(ctx context.Context, credential string) ([]models.WorksheetEntry, error) {
	ctx, span := util.StartSpan(ctx, "Orchestrator.GetWorksheet")
	defer span.End()

	actor, err := o.authenticate(ctx, credential)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAdministrator {
		return nil, lifecycle.Reject(lifecycle.RejectForbidden, "", "only an administrator may read the purchasing worksheet")
	}

	orders, err := o.repo.ListConfirmedOrders(ctx)
	if err != nil {
		return nil, lifecycle.Reject(lifecycle.RejectRepository, "", "failed to list confirmed orders: %v", err)
	}

	util.WorksheetBuildsTotal.Inc()
	return worksheet.Build(orders), nil
}

// OrderView is an order as seen by one actor, with profit totals when the
// caller is allowed to see them.
type OrderView struct {
	Order    *models.Order   `json:"order"`
	Totals   *pricing.Result `json:"totals,omitempty"`
	Warnings []string        `json:"warnings,omitempty"`
}

// GetOrder returns one order to an authorized viewer: administrators see any
// order, clients their own, drivers their assignments. Cost prices and profit
// are administrator-only; completed orders expose their profit totals.
func (o *Orchestrator) GetOrder(ctx context.Context, credential string, orderID uuid.UUID) (*OrderView, error) {
	ctx, span := util.StartSpan(ctx, "Orchestrator.GetOrder")
	defer span.End()

	actor, err := o.authenticate(ctx, credential)
	if err != nil {
		return nil, err
	}

	order, err := o.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch actor.Role {
	case models.RoleAdministrator:
	case models.RoleClient:
		if order.ClientID != actor.ID {
			return nil, lifecycle.Reject(lifecycle.RejectForbidden, order.State, "order does not belong to client %s", actor.ID)
		}
	case models.RoleDriver:
		if order.DriverID == nil || *order.DriverID != actor.ID {
			return nil, lifecycle.Reject(lifecycle.RejectForbidden, order.State, "order is not assigned to driver %s", actor.ID)
		}
	}

	view := &OrderView{Order: order}
	if actor.Role == models.RoleAdministrator {
		if order.State == models.StateCompleted {
			if totals, err := pricing.Totals(order.Lines); err == nil {
				view.Totals = &totals
			}
		}
	} else {
		// Cost prices are the distributor's margin, not the counterparty's business.
		for i := range order.Lines {
			order.Lines[i].CostPrice = nil
		}
	}
	return view, nil
}

// ListClientOrders returns the calling client's own orders, newest first.
func (o *Orchestrator) ListClientOrders(ctx context.Context, credential string) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "Orchestrator.ListClientOrders")
	defer span.End()

	actor, err := o.authenticate(ctx, credential)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleClient {
		return nil, lifecycle.Reject(lifecycle.RejectForbidden, "", "only a client may list own orders")
	}

	orders, err := o.repo.ListOrdersByClient(ctx, actor.ID)
	if err != nil {
		return nil, lifecycle.Reject(lifecycle.RejectRepository, "", "failed to list orders: %v", err)
	}
	return orders, nil
}

type transitionFunc func(ctx context.Context, actor models.Actor, order *models.Order) ([]models.NotificationEvent, []string, error)

// run executes the authorize -> load -> transition -> save cycle, retrying
// the whole cycle on version conflicts up to the bounded attempt count. A
// transition that stops being valid after a conflict (somebody else won the
// race) surfaces as Conflict carrying the order's actual state, so the caller
// can re-present it instead of silently retrying the original intent.
func (o *Orchestrator) run(ctx context.Context, event, credential string, orderID uuid.UUID, fn transitionFunc) (*models.Order, []string, error) {
	ctx, span := util.StartSpan(ctx, "Orchestrator."+event)
	defer span.End()

	start := time.Now()
	defer func() {
		util.TransitionLatency.WithLabelValues(event).Observe(time.Since(start).Seconds())
	}()

	conflicted := false
	for attempt := 0; attempt < o.retryAttempts; attempt++ {
		actor, err := o.authenticate(ctx, credential)
		if err != nil {
			o.countRejection(event, err)
			return nil, nil, err
		}

		order, err := o.loadOrder(ctx, orderID)
		if err != nil {
			o.countRejection(event, err)
			return nil, nil, err
		}
		expected := order.Version

		events, warnings, err := fn(ctx, actor, order)
		if err != nil {
			var rej *lifecycle.Rejection
			if errors.As(err, &rej) {
				if conflicted && (rej.Kind == lifecycle.RejectInvalidTransition || rej.Kind == lifecycle.RejectPreconditionFailed) {
					err = lifecycle.Reject(lifecycle.RejectConflict, rej.State, "order changed concurrently: %s", rej.Reason)
				}
				o.countRejection(event, err)
				return nil, nil, err
			}
			return nil, nil, lifecycle.Reject(lifecycle.RejectRepository, order.State, "%v", err)
		}

		if err := o.repo.SaveOrder(ctx, order, expected); err != nil {
			if errors.Is(err, store.ErrVersionConflict) {
				conflicted = true
				util.ConflictRetriesTotal.Inc()
				o.logger.Warn("Version conflict, retrying command",
					zap.String("event", event),
					zap.String("order_id", orderID.String()),
					zap.Int("attempt", attempt+1))
				continue
			}
			if errors.Is(err, store.ErrNotFound) {
				return nil, nil, lifecycle.Reject(lifecycle.RejectNotFound, "", "order %s not found", orderID)
			}
			return nil, nil, lifecycle.Reject(lifecycle.RejectRepository, order.State, "failed to save order: %v", err)
		}

		util.TransitionsTotal.WithLabelValues(event).Inc()
		for _, warning := range warnings {
			o.logger.Warn("Pricing warning",
				zap.String("order_id", orderID.String()),
				zap.String("warning", warning))
		}

		o.emit(ctx, events)
		return order, warnings, nil
	}

	util.ConflictsExhaustedTotal.Inc()
	err := lifecycle.Reject(lifecycle.RejectConflict, "", "order %s: gave up after %d conflicting attempts", orderID, o.retryAttempts)
	o.countRejection(event, err)
	return nil, nil, err
}

func (o *Orchestrator) authenticate(ctx context.Context, credential string) (models.Actor, error) {
	actor, err := o.gate.Authenticate(ctx, credential)
	if err != nil {
		if errors.Is(err, identity.ErrUnauthenticated) {
			return models.Actor{}, lifecycle.Reject(lifecycle.RejectUnauthenticated, "", "%v", err)
		}
		return models.Actor{}, lifecycle.Reject(lifecycle.RejectRepository, "", "identity gate failed: %v", err)
	}
	return actor, nil
}

func (o *Orchestrator) loadOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := o.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, lifecycle.Reject(lifecycle.RejectNotFound, "", "order %s not found", orderID)
		}
		return nil, lifecycle.Reject(lifecycle.RejectRepository, "", "failed to load order: %v", err)
	}
	return order, nil
}

// emit hands notification events to the sink after the transition has
// committed. Role-addressed events fan out to every actor holding the role.
// Failures are logged, counted and discarded; they never surface to the
// caller because the state change is already durable.
func (o *Orchestrator) emit(ctx context.Context, events []models.NotificationEvent) {
	for _, event := range events {
		targets := []models.NotificationEvent{event}

		if event.RecipientRole == models.RoleAdministrator {
			admins, err := o.repo.ListAdministrators(ctx)
			if err != nil {
				o.logger.Error("Failed to expand administrator broadcast",
					zap.String("event_id", event.EventID), zap.Error(err))
			} else {
				targets = targets[:0]
				for _, admin := range admins {
					targets = append(targets, models.ToActor(admin.ID, event.Kind, event.OrderID))
				}
			}
		}

		for _, target := range targets {
			if err := o.sink.Emit(ctx, target); err != nil {
				util.NotificationsFailedTotal.Inc()
				o.logger.Error("Failed to emit notification",
					zap.String("event_id", target.EventID),
					zap.String("kind", target.Kind),
					zap.String("order_id", target.OrderID.String()),
					zap.Error(err))
				continue
			}
			util.NotificationsEmittedTotal.Inc()
		}
	}
}

func (o *Orchestrator) countRejection(event string, err error) {
	util.TransitionsRejectedTotal.WithLabelValues(event, string(lifecycle.KindOf(err))).Inc()
}
