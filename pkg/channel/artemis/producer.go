package artemis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ragbridge/pkg/config"

	"github.com/Azure/go-amqp"
	"github.com/google/uuid"
)

// sendLink is the subset of *amqp.Sender the producer drives.
type sendLink interface {
	Send(ctx context.Context, msg *amqp.Message, opts *amqp.SendOptions) error
	Close(ctx context.Context) error
}

// openSenderFunc opens a fresh connection with one sender on address.
type openSenderFunc func(ctx context.Context, address string) (sendLink, func() error, error)

// OneShotProducer sends each message over its own connection.
//
// Every Send dials, opens a session and a sender, sends exactly one message and
// closes the connection. Nothing is pooled, so concurrent sends may complete in
// any order.
type OneShotProducer struct {
	open    openSenderFunc
	timeout time.Duration
	log     *slog.Logger
}

// NewOneShotProducer builds a producer for the configured broker.
func NewOneShotProducer(cfg config.BrokerConfig, log *slog.Logger) (*OneShotProducer, error) {
	brokerURL := strings.TrimSpace(cfg.URL)
	if brokerURL == "" {
		return nil, errors.New("broker.url is required")
	}
	if log == nil {
		log = slog.Default()
	}

	timeout := time.Duration(cfg.DialTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}

	return &OneShotProducer{
		open: func(ctx context.Context, address string) (sendLink, func() error, error) {
			return dialSender(ctx, brokerURL, address)
		},
		timeout: timeout,
		log:     log.With("component", "channel.artemis.producer"),
	}, nil
}

// Send delivers body to address and returns once the broker settled it.
func (p *OneShotProducer) Send(ctx context.Context, address string, body string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	startedAt := time.Now()
	link, closeConn, err := p.open(ctx, address)
	if err != nil {
		return err
	}
	defer func() { _ = closeConn() }()

	messageID := uuid.NewString()
	msg := &amqp.Message{
		Properties: &amqp.MessageProperties{MessageID: messageID},
		Value:      body,
	}

	if err := link.Send(ctx, msg, nil); err != nil {
		return fmt.Errorf("send to %s: %w", address, err)
	}
	if err := link.Close(ctx); err != nil {
		p.log.Debug("Failed to close sender", "address", address, "error", err)
	}

	p.log.Info("Message sent", "address", address, "message_id", messageID, "body", previewText(body), "duration_ms", time.Since(startedAt).Milliseconds())
	return nil
}

func dialSender(ctx context.Context, brokerURL string, address string) (sendLink, func() error, error) {
	conn, err := amqp.Dial(ctx, brokerURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("dial broker: %w", err)
	}

	session, err := conn.NewSession(ctx, nil)
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open session: %w", err)
	}

	sender, err := session.NewSender(ctx, address, nil)
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open sender for %s: %w", address, err)
	}

	return sender, conn.Close, nil
}
