package channel

import (
	"context"

	"ragbridge/pkg/bus"
)

// Handler receives the lifecycle callbacks of an ingress adapter.
type Handler interface {
	// OnStart is called once after the adapter is subscribed to addresses.
	OnStart(ctx context.Context, addresses []string)
	// OnMessage is called for every inbound message, one at a time.
	OnMessage(ctx context.Context, envelope bus.InboundEnvelope) error
}

// Adapter bridges one external transport (for example an AMQP broker) into the dispatcher.
type Adapter interface {
	Name() string
	Run(context.Context, Handler) error
}
