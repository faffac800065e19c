// Package artemis connects the pipeline to an AMQP 1.0 broker such as ActiveMQ Artemis.
package artemis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"ragbridge/pkg/bus"
	"ragbridge/pkg/channel"
	"ragbridge/pkg/config"

	"github.com/Azure/go-amqp"
	"golang.org/x/sync/errgroup"
)

const (
	channelName         = "artemis"
	messagePreviewLimit = 240
	defaultDialTimeout  = 10 * time.Second

	// Receivers hand envelopes straight to the dispatch loop, so a slow
	// handler holds back further accepts instead of queueing them in memory.
	inboundBuffer = 0
)

// receiver is the subset of *amqp.Receiver the adapter drives.
type receiver interface {
	Receive(ctx context.Context, opts *amqp.ReceiveOptions) (*amqp.Message, error)
	AcceptMessage(ctx context.Context, msg *amqp.Message) error
}

type subscription struct {
	address  string
	receiver receiver
}

// subscribeFunc opens one receiver per address and returns a func that tears the connection down.
type subscribeFunc func(ctx context.Context, addresses []string) ([]subscription, func(), error)

// Adapter is the ingress multiplexer: one connection, one session, one receiver per address.
//
// Every receiver feeds a shared bus tagged with its address, and a single loop
// hands envelopes to the handler in arrival order.
type Adapter struct {
	addresses []string
	subscribe subscribeFunc
	log       *slog.Logger
}

// NewAdapter validates broker configuration and constructs an adapter for addresses.
func NewAdapter(cfg config.BrokerConfig, addresses []string, log *slog.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("broker.url is required")
	}
	if len(addresses) == 0 {
		return nil, errors.New("at least one ingress address is required")
	}
	if log == nil {
		log = slog.Default()
	}

	dialTimeout := time.Duration(cfg.DialTimeoutSeconds) * time.Second
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}

	a := &Adapter{
		addresses: append([]string(nil), addresses...),
		log:       log.With("component", "channel.artemis"),
	}
	a.subscribe = func(ctx context.Context, addresses []string) ([]subscription, func(), error) {
		return dialSubscriptions(ctx, cfg.URL, dialTimeout, addresses, a.log)
	}

	return a, nil
}

// Name returns the channel identifier used in status and logs.
func (a *Adapter) Name() string {
	return channelName
}

// Run subscribes to every address and dispatches messages until ctx is cancelled.
//
// A failed connection or a broken receiver ends Run with an error; cancellation ends it with nil.
func (a *Adapter) Run(ctx context.Context, handler channel.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}

	subs, closeConn, err := a.subscribe(ctx, a.addresses)
	if err != nil {
		return err
	}
	defer closeConn()

	messages := bus.NewMessageBusWithBuffer(inboundBuffer)
	defer messages.Close()

	handler.OnStart(ctx, a.addresses)
	a.log.Info("Broker channel started", "addresses", strings.Join(a.addresses, ","))

	group, groupCtx := errgroup.WithContext(ctx)
	for _, sub := range subs {
		group.Go(func() error {
			return a.receiveLoop(groupCtx, sub, messages)
		})
	}

	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		for {
			envelope, ok := messages.ConsumeInbound(groupCtx)
			if !ok {
				return
			}
			if err := handler.OnMessage(ctx, envelope); err != nil {
				a.log.Error("Failed to process inbound message", "source", envelope.Source, "error", err)
			}
		}
	}()

	err = group.Wait()
	messages.Close()
	<-dispatched

	if ctx.Err() != nil {
		return nil
	}

	return err
}

func (a *Adapter) receiveLoop(ctx context.Context, sub subscription, messages *bus.MessageBus) error {
	for {
		msg, err := sub.receiver.Receive(ctx, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("receive from %s: %w", sub.address, err)
		}

		if err := sub.receiver.AcceptMessage(ctx, msg); err != nil {
			a.log.Warn("Failed to accept message", "source", sub.address, "error", err)
		}

		envelope := bus.InboundEnvelope{Source: sub.address, Body: MessageBody(msg)}
		a.log.Info("Received message", "source", envelope.Source, "body", previewText(envelope.Body))

		if !messages.PublishInbound(ctx, envelope) {
			return nil
		}
	}
}

func dialSubscriptions(ctx context.Context, brokerURL string, timeout time.Duration, addresses []string, log *slog.Logger) ([]subscription, func(), error) {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log.Info("Connecting to broker", "url", redactURL(brokerURL))
	conn, err := amqp.Dial(dialCtx, brokerURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("dial broker: %w", err)
	}
	closeConn := func() { _ = conn.Close() }

	session, err := conn.NewSession(dialCtx, nil)
	if err != nil {
		closeConn()
		return nil, nil, fmt.Errorf("open session: %w", err)
	}

	subs := make([]subscription, 0, len(addresses))
	for _, address := range addresses {
		link, err := session.NewReceiver(dialCtx, address, nil)
		if err != nil {
			closeConn()
			return nil, nil, fmt.Errorf("subscribe to %s: %w", address, err)
		}
		log.Info("Subscribed to queue", "address", address)
		subs = append(subs, subscription{address: address, receiver: link})
	}

	return subs, closeConn, nil
}

// MessageBody extracts the text payload of a message.
//
// Producers using an AMQP value section (the usual string body) and producers
// using data sections are both accepted.
func MessageBody(msg *amqp.Message) string {
	if msg == nil {
		return ""
	}

	switch value := msg.Value.(type) {
	case string:
		return value
	case []byte:
		return string(value)
	case nil:
	default:
		return fmt.Sprint(value)
	}

	if len(msg.Data) > 0 {
		return string(bytes.Join(msg.Data, nil))
	}

	return ""
}

// redactURL hides the password of a broker URL for logging.
func redactURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}

	return parsed.Redacted()
}

// previewText returns a bounded log-safe preview of message text.
func previewText(text string) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) <= messagePreviewLimit {
		return trimmed
	}

	return trimmed[:messagePreviewLimit] + "..."
}
