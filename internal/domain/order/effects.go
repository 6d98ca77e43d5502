package order

import (
	"context"
	"strings"
	"time"

	"github.com/xenking/catering-orders/internal/domain/notify"
	"github.com/xenking/catering-orders/internal/domain/stats"
)

// notify schedules a customer notification after commit.
func (s *Service) notify(ctx context.Context, o *Order, kind notify.Kind) {
	msg := messageOf(o, kind, s.timestamp())
	var send func(context.Context, notify.Message) error
	switch kind {
	case notify.KindOrderConfirmed:
		send = s.notifier.OrderConfirmed
	case notify.KindOrderCancelled:
		send = s.notifier.OrderCancelled
	case notify.KindEquipmentReturn:
		send = s.notifier.EquipmentReturnReminder
	case notify.KindReviewInvitation:
		send = s.notifier.ReviewInvitation
	default:
		return
	}
	s.effects.Go(ctx, "notify."+string(kind), func(ctx context.Context) error {
		return send(ctx, msg)
	})
}

// pushSnapshot schedules a mirror upsert after commit.
func (s *Service) pushSnapshot(ctx context.Context, o *Order) {
	snap := SnapshotOf(o)
	s.effects.Go(ctx, "stats.upsert", func(ctx context.Context) error {
		return s.mirror.UpsertSnapshot(ctx, snap)
	})
}

func messageOf(o *Order, kind notify.Kind, at time.Time) notify.Message {
	return notify.Message{
		Kind:          kind,
		OrderID:       o.ID,
		OrderNumber:   o.Number,
		CustomerEmail: o.Customer.Email,
		CustomerName:  o.Customer.FirstName,
		MenuTitle:     o.Menu.Title,
		ServiceDate:   o.ServiceDate,
		ServiceTime:   o.ServiceTime,
		GuestCount:    o.GuestCount,
		Total:         o.Total(),
		Reason:        o.CancellationReason,
		OccurredAt:    at,
	}
}

// SnapshotOf builds the reporting view of o.
func SnapshotOf(o *Order) stats.Snapshot {
	var menuID *int64
	if o.MenuID != nil {
		id := *o.MenuID
		menuID = &id
	}
	return stats.Snapshot{
		OrderID:       o.ID,
		OrderNumber:   o.Number,
		MenuID:        menuID,
		MenuTitle:     o.Menu.Title,
		CustomerID:    o.CustomerID,
		CustomerName:  strings.TrimSpace(o.Customer.FirstName + " " + o.Customer.LastName),
		OrderedAt:     o.CreatedAt,
		ServiceDate:   o.ServiceDate,
		GuestCount:    o.GuestCount,
		MenuPrice:     o.MenuPrice,
		DeliveryPrice: o.DeliveryPrice,
		Total:         o.Total(),
		Status:        string(o.Status),
		Version:       o.Version,
	}
}
