// Package notifications fans order lifecycle events out to interested
// parties after the owning transaction has committed. Dispatch is
// fire-and-forget: a failed notification never affects the committed
// order or payment.
package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nexus-commerce/api/models"
)

const (
	EventOrderCreated     = "order.created"
	EventOrderStatus      = "order.status_changed"
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"
	EventPaymentRefunded  = "payment.refunded"
)

type OrderEventItem struct {
	ProductID *uuid.UUID      `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type OrderEvent struct {
	EventType     string               `json:"event_type"`
	OrderID       uuid.UUID            `json:"order_id"`
	UserID        *uuid.UUID           `json:"user_id"`
	Status        models.OrderStatus   `json:"status"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	TotalAmount   decimal.Decimal      `json:"total_amount"`
	Items         []OrderEventItem     `json:"items,omitempty"`
	OccurredAt    time.Time            `json:"occurred_at"`
}

// NewOrderEvent builds the confirmation payload for an order.
func NewOrderEvent(eventType string, order *models.Order) OrderEvent {
	event := OrderEvent{
		EventType:     eventType,
		OrderID:       order.ID,
		UserID:        order.UserID,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		TotalAmount:   order.TotalAmount,
		OccurredAt:    time.Now().UTC(),
	}
	for _, item := range order.Items {
		event.Items = append(event.Items, OrderEventItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	return event
}

// Dispatcher delivers order events. Implementations must not block the
// request path on delivery failures; they log and move on.
type Dispatcher interface {
	DispatchOrderEvent(ctx context.Context, event OrderEvent)
}

// Multi fans one event out to several dispatchers.
type Multi []Dispatcher

func (m Multi) DispatchOrderEvent(ctx context.Context, event OrderEvent) {
	for _, d := range m {
		d.DispatchOrderEvent(ctx, event)
	}
}

// Nop discards events. Used in tests.
type Nop struct{}

func (Nop) DispatchOrderEvent(context.Context, OrderEvent) {}
