// Package dispatch applies the ingress routing table to inbound envelopes.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ragbridge/pkg/bus"
	"ragbridge/pkg/routing"
)

// IndexDestination is what Dispatch reports for an index trigger.
const IndexDestination = "index"

var ErrNoIndexTrigger = errors.New("no index trigger configured")

// Pusher appends a payload to a work-queue topic.
type Pusher interface {
	Push(ctx context.Context, topic string, payload string) error
}

// IndexTrigger runs one indexing pass. It blocks until the pass ends.
type IndexTrigger interface {
	Trigger(ctx context.Context, body string) error
}

type Dispatcher struct {
	table  *routing.Table
	queue  Pusher
	index  IndexTrigger
	events *bus.MessageBus
	log    *slog.Logger
}

type Option func(*Dispatcher)

// WithIndexTrigger sets the collaborator invoked for index-trigger sources.
func WithIndexTrigger(trigger IndexTrigger) Option {
	return func(d *Dispatcher) {
		d.index = trigger
	}
}

// WithEvents publishes routed/ignored/indexed/failed events on mb.
func WithEvents(mb *bus.MessageBus) Option {
	return func(d *Dispatcher) {
		d.events = mb
	}
}

func New(table *routing.Table, queue Pusher, log *slog.Logger, opts ...Option) (*Dispatcher, error) {
	if table == nil {
		return nil, errors.New("routing table is required")
	}
	if queue == nil {
		return nil, errors.New("work queue is required")
	}
	if log == nil {
		log = slog.Default()
	}

	d := &Dispatcher{
		table: table,
		queue: queue,
		log:   log.With("component", "dispatch"),
	}
	for _, opt := range opts {
		opt(d)
	}

	return d, nil
}

// OnStart implements channel.Handler.
func (d *Dispatcher) OnStart(_ context.Context, addresses []string) {
	d.log.Info("Listening on ingress queues", "addresses", addresses)
}

// OnMessage implements channel.Handler.
func (d *Dispatcher) OnMessage(ctx context.Context, envelope bus.InboundEnvelope) error {
	_, err := d.Dispatch(ctx, envelope)
	return err
}

// Dispatch routes one envelope and returns the destination it went to:
// a work-queue topic, IndexDestination, or routing.Ignored.
func (d *Dispatcher) Dispatch(ctx context.Context, envelope bus.InboundEnvelope) (string, error) {
	decision := d.table.Route(envelope.Source)

	switch decision.Kind {
	case routing.KindForward:
		if err := d.queue.Push(ctx, decision.Destination, envelope.Body); err != nil {
			d.publish(ctx, bus.Event{Type: bus.EventFailed, Source: envelope.Source, Destination: decision.Destination, Error: err.Error()})
			return "", fmt.Errorf("push to %s: %w", decision.Destination, err)
		}
		d.log.Info("Message routed", "source", envelope.Source, "destination", decision.Destination)
		d.publish(ctx, bus.Event{Type: bus.EventRouted, Source: envelope.Source, Destination: decision.Destination})
		return decision.Destination, nil

	case routing.KindIndex:
		if d.index == nil {
			return "", ErrNoIndexTrigger
		}
		d.log.Info("Index trigger received", "source", envelope.Source)
		if err := d.index.Trigger(ctx, envelope.Body); err != nil {
			d.publish(ctx, bus.Event{Type: bus.EventFailed, Source: envelope.Source, Destination: IndexDestination, Error: err.Error()})
			return "", fmt.Errorf("trigger indexing: %w", err)
		}
		d.publish(ctx, bus.Event{Type: bus.EventIndexed, Source: envelope.Source, Destination: IndexDestination})
		return IndexDestination, nil

	default:
		d.log.Warn("Unknown ingress queue, message ignored", "source", envelope.Source)
		d.publish(ctx, bus.Event{Type: bus.EventIgnored, Source: envelope.Source, Destination: routing.Ignored})
		return routing.Ignored, nil
	}
}

func (d *Dispatcher) publish(ctx context.Context, event bus.Event) {
	if d.events != nil {
		d.events.PublishEvent(ctx, event)
	}
}
