package notify

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Log is a Notifier that only writes notifications to the request logger.
// It is the default when no broker is configured.
type Log struct{}

var _ Notifier = Log{}

func (Log) OrderConfirmed(ctx context.Context, m Message) error {
	return logMessage(ctx, KindOrderConfirmed, m)
}

func (Log) OrderCancelled(ctx context.Context, m Message) error {
	return logMessage(ctx, KindOrderCancelled, m)
}

func (Log) EquipmentReturnReminder(ctx context.Context, m Message) error {
	return logMessage(ctx, KindEquipmentReturn, m)
}

func (Log) ReviewInvitation(ctx context.Context, m Message) error {
	return logMessage(ctx, KindReviewInvitation, m)
}

func logMessage(ctx context.Context, kind Kind, m Message) error {
	zctx.From(ctx).Info("Notification",
		zap.String("kind", string(kind)),
		zap.String("order_number", m.OrderNumber),
		zap.String("email", m.CustomerEmail),
	)
	return nil
}
