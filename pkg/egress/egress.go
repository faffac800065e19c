// Package egress correlates finished results with their egress queue and hands them off.
package egress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ragbridge/pkg/bus"
	"ragbridge/pkg/routing"
)

var (
	// ErrUnknownOrigin means the result table has no entry for a result's origin.
	// The result is dropped.
	ErrUnknownOrigin = errors.New("unknown result origin")

	// ErrRejected means the translator refused a callback.
	ErrRejected = errors.New("result rejected")
)

// Producer sends one message to a broker address.
type Producer interface {
	Send(ctx context.Context, address string, body string) error
}

// Sink delivers a result for origin and reports the egress queue it went to.
type Sink interface {
	Deliver(ctx context.Context, origin string, body string) (destination string, err error)
}

// Correlator resolves origins through the result table and sends through a Producer.
type Correlator struct {
	table    *routing.Table
	producer Producer
	events   *bus.MessageBus
	log      *slog.Logger
}

// Option customizes a Correlator.
type Option func(*Correlator)

// WithEvents publishes delivered/dropped/failed events on mb.
func WithEvents(mb *bus.MessageBus) Option {
	return func(c *Correlator) {
		c.events = mb
	}
}

func NewCorrelator(table *routing.Table, producer Producer, log *slog.Logger, opts ...Option) (*Correlator, error) {
	if table == nil {
		return nil, errors.New("routing table is required")
	}
	if producer == nil {
		return nil, errors.New("producer is required")
	}
	if log == nil {
		log = slog.Default()
	}

	c := &Correlator{
		table:    table,
		producer: producer,
		log:      log.With("component", "egress.correlator"),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Correlate pairs a result with the egress queue of its origin.
func (c *Correlator) Correlate(origin string, body string) (bus.OutboundEnvelope, error) {
	destination, ok := c.table.Resolve(origin)
	if !ok {
		return bus.OutboundEnvelope{}, fmt.Errorf("%w: %s", ErrUnknownOrigin, origin)
	}

	return bus.OutboundEnvelope{Destination: destination, Body: body}, nil
}

// Deliver sends body to the egress queue of origin.
//
// An unknown origin is logged and dropped; the returned error wraps
// ErrUnknownOrigin so synchronous callers can report it.
func (c *Correlator) Deliver(ctx context.Context, origin string, body string) (string, error) {
	envelope, err := c.Correlate(origin, body)
	if err != nil {
		c.log.Warn("Unknown result origin, result dropped", "origin", origin)
		c.publish(ctx, bus.Event{Type: bus.EventDropped, Source: origin})
		return "", err
	}

	if err := c.producer.Send(ctx, envelope.Destination, envelope.Body); err != nil {
		c.publish(ctx, bus.Event{Type: bus.EventFailed, Source: origin, Destination: envelope.Destination, Error: err.Error()})
		return envelope.Destination, fmt.Errorf("deliver %s result to %s: %w", origin, envelope.Destination, err)
	}

	c.log.Info("Result delivered", "origin", origin, "destination", envelope.Destination)
	c.publish(ctx, bus.Event{Type: bus.EventDelivered, Source: origin, Destination: envelope.Destination})
	return envelope.Destination, nil
}

func (c *Correlator) publish(ctx context.Context, event bus.Event) {
	if c.events != nil {
		c.events.PublishEvent(ctx, event)
	}
}
