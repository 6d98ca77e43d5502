// Package notify defines the customer notifications emitted by the order
// lifecycle. Delivery is best-effort and happens after the originating
// transaction has committed.
package notify

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies a notification.
type Kind string

const (
	KindOrderConfirmed   Kind = "order_confirmed"
	KindOrderCancelled   Kind = "order_cancelled"
	KindEquipmentReturn  Kind = "equipment_return_reminder"
	KindReviewInvitation Kind = "review_invitation"
)

// Message is the payload of every notification kind.
type Message struct {
	Kind          Kind
	OrderID       int64
	OrderNumber   string
	CustomerEmail string
	CustomerName  string
	MenuTitle     string
	ServiceDate   time.Time
	ServiceTime   string
	GuestCount    int
	Total         decimal.Decimal
	Reason        string
	OccurredAt    time.Time
}

// Notifier emits customer notifications, one method per kind.
type Notifier interface {
	OrderConfirmed(ctx context.Context, m Message) error
	OrderCancelled(ctx context.Context, m Message) error
	EquipmentReturnReminder(ctx context.Context, m Message) error
	ReviewInvitation(ctx context.Context, m Message) error
}

// Nop discards every notification.
type Nop struct{}

var _ Notifier = Nop{}

func (Nop) OrderConfirmed(context.Context, Message) error          { return nil }
func (Nop) OrderCancelled(context.Context, Message) error          { return nil }
func (Nop) EquipmentReturnReminder(context.Context, Message) error { return nil }
func (Nop) ReviewInvitation(context.Context, Message) error        { return nil }
