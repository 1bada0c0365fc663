package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-orders/kds"
	"github.com/yeremiapane/restaurant-orders/metrics"
	"github.com/yeremiapane/restaurant-orders/models"
	"github.com/yeremiapane/restaurant-orders/utils"
)

const (
	DefaultOrderLimit = 100
	MaxOrderLimit     = 1000
)

// OrderStore is the persistence the order lifecycle needs. Lookups return
// ErrNotFound when the row is absent.
type OrderStore interface {
	FindTable(ctx context.Context, id uint) (*models.Table, error)
	// FindTableByRef matches the table id first, then the table number.
	FindTableByRef(ctx context.Context, ref uint) (*models.Table, error)
	FindProduct(ctx context.Context, id uint) (*models.Product, error)
	// CreateOrder persists the order and its items as one unit.
	CreateOrder(ctx context.Context, order *models.Order) error
	// FindOrder loads the order with its table and items' products.
	FindOrder(ctx context.Context, id uint) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, order *models.Order) error
	ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error)
	// ListOrdersByStatus returns matching orders oldest first.
	ListOrdersByStatus(ctx context.Context, statuses ...models.OrderStatus) ([]models.Order, error)
	CountOrders(ctx context.Context) (int64, error)
}

// Broadcaster delivers events to connected clients.
type Broadcaster interface {
	Broadcast(ev kds.Event) kds.BroadcastResult
}

// TransitionPolicy decides whether SetOrderStatus follows the lifecycle
// graph.
type TransitionPolicy int

const (
	// PermissiveTransitions allows any known status from any status.
	PermissiveTransitions TransitionPolicy = iota
	// StrictTransitions rejects moves the lifecycle graph does not allow.
	StrictTransitions
)

func (p TransitionPolicy) String() string {
	if p == StrictTransitions {
		return "strict"
	}
	return "permissive"
}

// Allows reports whether from -> to is accepted under p. to must be valid.
func (p TransitionPolicy) Allows(from, to models.OrderStatus) bool {
	if p == StrictTransitions {
		return models.CanTransition(from, to)
	}
	return to.Valid()
}

// OrderLine is one requested line of a new order. Quantity 0 means 1.
type OrderLine struct {
	ProductID uint          `json:"product_id" binding:"required"`
	Quantity  int           `json:"quantity"`
	Extras    models.Extras `json:"extras"`
}

type CreateOrderRequest struct {
	TableID       uint        `json:"table_id" binding:"required"`
	Items         []OrderLine `json:"items"`
	CustomerNotes string      `json:"customer_notes"`
}

type OrderFilter struct {
	Skip    int
	Limit   int
	Status  models.OrderStatus
	TableID uint
}

type OrderStats struct {
	TotalOrders int64 `json:"total_orders"`
}

// NotificationKind is what a table asks staff for.
type NotificationKind string

const (
	NotifyWaiter NotificationKind = "waiter"
	NotifyBill   NotificationKind = "bill"
)

// OrderService runs the order lifecycle and emits its events after every
// commit.
type OrderService struct {
	store  OrderStore
	events Broadcaster
	clock  clockwork.Clock
	policy TransitionPolicy
}

func NewOrderService(store OrderStore, events Broadcaster, clock clockwork.Clock, policy TransitionPolicy) *OrderService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &OrderService{
		store:  store,
		events: events,
		clock:  clock,
		policy: policy,
	}
}

func (s *OrderService) Policy() TransitionPolicy { return s.policy }

// CreateOrder places a pending order for a table. Lines whose product does
// not exist are skipped; the total is the sum of the remaining subtotals.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*models.Order, error) {
	for _, line := range req.Items {
		if line.Quantity < 0 {
			return nil, fmt.Errorf("product %d: %w", line.ProductID, ErrInvalidQuantity)
		}
	}

	table, err := s.store.FindTable(ctx, req.TableID)
	if err != nil {
		return nil, fmt.Errorf("table %d: %w", req.TableID, err)
	}

	now := s.clock.Now()
	order := &models.Order{
		TableID:       table.ID,
		Status:        models.StatusPending,
		CustomerNotes: req.CustomerNotes,
		CreatedAt:     now,
		UpdatedAt:     now,
		Items:         make([]models.OrderItem, 0, len(req.Items)),
	}

	var total float64
	for _, line := range req.Items {
		product, err := s.store.FindProduct(ctx, line.ProductID)
		if errors.Is(err, ErrNotFound) {
			utils.InfoLogger.WithFields(logrus.Fields{
				"table_id":   table.ID,
				"product_id": line.ProductID,
			}).Warn("skipping order line for unknown product")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("product %d: %w", line.ProductID, err)
		}

		qty := line.Quantity
		if qty == 0 {
			qty = 1
		}
		extras := line.Extras
		if extras == nil {
			extras = models.Extras{}
		}
		subtotal := product.Price * float64(qty)
		total += subtotal
		order.Items = append(order.Items, models.OrderItem{
			ProductID: product.ID,
			Product:   product,
			Quantity:  qty,
			UnitPrice: product.Price,
			Extras:    extras,
			Subtotal:  subtotal,
			CreatedAt: now,
		})
	}
	order.TotalAmount = total

	if err := s.store.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	order.Table = *table
	metrics.OrdersCreatedTotal.Inc()

	utils.InfoLogger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"table_id": table.ID,
		"items":    len(order.Items),
		"total":    order.TotalAmount,
	}).Info("order created")

	s.emit(orderCreatedEvent(order))
	return order, nil
}

// SetOrderStatus changes the status of an order and announces it.
func (s *OrderService) SetOrderStatus(ctx context.Context, id uint, status string) (*models.Order, error) {
	next := models.OrderStatus(status)
	if !next.Valid() {
		return nil, fmt.Errorf("%q: %w", status, ErrInvalidStatus)
	}

	order, err := s.store.FindOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("order %d: %w", id, err)
	}
	if !s.policy.Allows(order.Status, next) {
		return nil, fmt.Errorf("order %d %s -> %s: %w", id, order.Status, next, ErrIllegalTransition)
	}

	prev := order.Status
	order.Status = next
	order.UpdatedAt = s.clock.Now()
	if err := s.store.UpdateOrderStatus(ctx, order); err != nil {
		return nil, fmt.Errorf("update order %d: %w", id, err)
	}
	metrics.OrderStatusChangesTotal.WithLabelValues(string(next)).Inc()

	utils.InfoLogger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"from":     prev,
		"to":       next,
	}).Info("order status changed")

	s.emit(kds.NewOrderUpdatedEvent(kds.OrderUpdatedPayload{
		ID:        order.ID,
		Status:    string(order.Status),
		TableName: order.Table.Name,
	}))
	return order, nil
}

// NotifyTable sends a waiter call or bill request to admin clients. ref is a
// table id or, failing that, a table number. An empty kind means waiter.
func (s *OrderService) NotifyTable(ctx context.Context, ref uint, kind NotificationKind) (kds.BroadcastResult, error) {
	var evKind kds.EventKind
	switch kind {
	case "", NotifyWaiter:
		kind = NotifyWaiter
		evKind = kds.EventWaiterCall
	case NotifyBill:
		evKind = kds.EventBillRequest
	default:
		return kds.BroadcastResult{}, fmt.Errorf("%q: %w", kind, ErrInvalidNotification)
	}

	table, err := s.store.FindTableByRef(ctx, ref)
	if err != nil {
		return kds.BroadcastResult{}, fmt.Errorf("table %d: %w", ref, err)
	}

	message := fmt.Sprintf("%s is calling a waiter", table.Name)
	if kind == NotifyBill {
		message = fmt.Sprintf("%s requests the bill", table.Name)
	}
	metrics.TableNotificationsTotal.WithLabelValues(string(kind)).Inc()

	res := s.emit(kds.NewTableCallEvent(evKind, kds.TableCallPayload{
		TableID:   table.ID,
		TableName: table.Name,
		Message:   message,
		Timestamp: s.clock.Now().Format("15:04"),
	}))
	return res, nil
}

// ListOrders returns orders newest first. A zero Limit means
// DefaultOrderLimit.
func (s *OrderService) ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	if filter.Limit == 0 {
		filter.Limit = DefaultOrderLimit
	}
	if filter.Limit < 1 || filter.Limit > MaxOrderLimit {
		return nil, fmt.Errorf("limit %d out of range 1..%d: %w", filter.Limit, MaxOrderLimit, ErrInvalidFilter)
	}
	if filter.Skip < 0 {
		return nil, fmt.Errorf("skip %d: %w", filter.Skip, ErrInvalidFilter)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%q: %w", filter.Status, ErrInvalidStatus)
	}
	return s.store.ListOrders(ctx, filter)
}

func (s *OrderService) GetOrder(ctx context.Context, id uint) (*models.Order, error) {
	order, err := s.store.FindOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("order %d: %w", id, err)
	}
	return order, nil
}

// KitchenQueue returns the orders the kitchen still has to work on, oldest
// first.
func (s *OrderService) KitchenQueue(ctx context.Context) ([]models.Order, error) {
	return s.store.ListOrdersByStatus(ctx, models.StatusPending, models.StatusPreparing)
}

func (s *OrderService) OrderStats(ctx context.Context) (OrderStats, error) {
	n, err := s.store.CountOrders(ctx)
	if err != nil {
		return OrderStats{}, err
	}
	return OrderStats{TotalOrders: n}, nil
}

// emit never fails the operation that produced the event.
func (s *OrderService) emit(ev kds.Event) kds.BroadcastResult {
	if s.events == nil {
		return kds.BroadcastResult{Kind: ev.Kind, Audience: ev.Kind.Audience()}
	}
	return s.events.Broadcast(ev)
}

func orderCreatedEvent(order *models.Order) kds.Event {
	items := make([]kds.OrderItemSnapshot, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, kds.OrderItemSnapshot{
			ProductName: it.ProductName(),
			Quantity:    it.Quantity,
			Subtotal:    it.Subtotal,
			Extras:      extrasJSON(it.Extras),
		})
	}
	return kds.NewOrderCreatedEvent(kds.OrderCreatedPayload{
		ID:            order.ID,
		TableID:       order.TableID,
		TableName:     order.Table.Name,
		Status:        string(order.Status),
		CustomerNotes: order.CustomerNotes,
		TotalAmount:   order.TotalAmount,
		CreatedAt:     order.CreatedAt,
		Items:         items,
	})
}

func extrasJSON(e models.Extras) json.RawMessage {
	if len(e) == 0 {
		return json.RawMessage(`{}`)
	}
	b, err := json.Marshal(e)
	if err != nil {
		utils.ErrorLogger.Errorf("encode extras: %v", err)
		return json.RawMessage(`{}`)
	}
	return b
}
