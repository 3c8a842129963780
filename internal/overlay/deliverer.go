package overlay

import (
	"context"

	"overlay-router/internal/common/logging"
)

// DelivererFunc adapts a function to routing.LocalDeliverer
type DelivererFunc func(ctx context.Context, protocolName string, payload []byte) error

func (f DelivererFunc) Deliver(ctx context.Context, protocolName string, payload []byte) error {
	return f(ctx, protocolName, payload)
}

// LogDeliverer records local deliveries in the log. It is the sink used when
// no application is attached to the node.
type LogDeliverer struct {
	Logger logging.Logger
}

func (d LogDeliverer) Deliver(ctx context.Context, protocolName string, payload []byte) error {
	logger := d.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	logger.WithContext(ctx).Info("Delivered message to local member",
		logging.String("protocol", protocolName),
		logging.Int("bytes", len(payload)),
	)
	return nil
}
