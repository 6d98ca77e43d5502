package notify

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// Sink transports an encoded notification to a broker.
type Sink interface {
	Publish(ctx context.Context, key string, body []byte) error
}

// Publisher is a Notifier that encodes messages as JSON and hands them to a
// Sink keyed by order number. Email rendering happens downstream.
type Publisher struct {
	sink Sink
}

var _ Notifier = (*Publisher)(nil)

// NewPublisher returns a Publisher writing to sink.
func NewPublisher(sink Sink) *Publisher {
	return &Publisher{sink: sink}
}

func (p *Publisher) OrderConfirmed(ctx context.Context, m Message) error {
	return p.publish(ctx, KindOrderConfirmed, m)
}

func (p *Publisher) OrderCancelled(ctx context.Context, m Message) error {
	return p.publish(ctx, KindOrderCancelled, m)
}

func (p *Publisher) EquipmentReturnReminder(ctx context.Context, m Message) error {
	return p.publish(ctx, KindEquipmentReturn, m)
}

func (p *Publisher) ReviewInvitation(ctx context.Context, m Message) error {
	return p.publish(ctx, KindReviewInvitation, m)
}

func (p *Publisher) publish(ctx context.Context, kind Kind, m Message) error {
	m.Kind = kind
	if err := p.sink.Publish(ctx, m.OrderNumber, Encode(m)); err != nil {
		return errors.Wrapf(err, "publish %s for %s", kind, m.OrderNumber)
	}
	return nil
}

// Encode renders m as a JSON document.
func Encode(m Message) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()
	e.FieldStart("kind")
	e.Str(string(m.Kind))
	e.FieldStart("orderId")
	e.Int64(m.OrderID)
	e.FieldStart("orderNumber")
	e.Str(m.OrderNumber)
	e.FieldStart("customerEmail")
	e.Str(m.CustomerEmail)
	e.FieldStart("customerName")
	e.Str(m.CustomerName)
	e.FieldStart("menuTitle")
	e.Str(m.MenuTitle)
	e.FieldStart("serviceDate")
	e.Str(m.ServiceDate.Format(time.DateOnly))
	e.FieldStart("serviceTime")
	e.Str(m.ServiceTime)
	e.FieldStart("guestCount")
	e.Int(m.GuestCount)
	e.FieldStart("total")
	e.Num(jx.Num(m.Total.StringFixed(2)))
	if m.Reason != "" {
		e.FieldStart("reason")
		e.Str(m.Reason)
	}
	e.FieldStart("occurredAt")
	e.Str(m.OccurredAt.UTC().Format(time.RFC3339Nano))
	e.ObjEnd()

	return append([]byte(nil), e.Bytes()...)
}
