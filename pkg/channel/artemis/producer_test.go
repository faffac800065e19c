package artemis

import (
	"context"
	"errors"
	"testing"
	"time"

	"ragbridge/pkg/config"

	"github.com/Azure/go-amqp"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	sent    []*amqp.Message
	sendErr error
	closed  bool
}

func (s *recordingSender) Send(_ context.Context, msg *amqp.Message, _ *amqp.SendOptions) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) Close(context.Context) error {
	s.closed = true
	return nil
}

func TestOneShotProducerOpensFreshConnectionPerMessage(t *testing.T) {
	t.Parallel()

	producer, err := NewOneShotProducer(config.BrokerConfig{URL: "amqp://localhost:5672"}, testLogger())
	require.NoError(t, err)

	var opened []string
	var senders []*recordingSender
	connClosed := 0
	producer.open = func(_ context.Context, address string) (sendLink, func() error, error) {
		opened = append(opened, address)
		sender := &recordingSender{}
		senders = append(senders, sender)
		return sender, func() error { connClosed++; return nil }, nil
	}

	require.NoError(t, producer.Send(context.Background(), "chat.out", "first"))
	require.NoError(t, producer.Send(context.Background(), "email.out", "second"))

	require.Equal(t, []string{"chat.out", "email.out"}, opened)
	require.Equal(t, 2, connClosed)
	require.Len(t, senders, 2)

	for i, body := range []string{"first", "second"} {
		require.Len(t, senders[i].sent, 1)
		msg := senders[i].sent[0]
		require.Equal(t, body, msg.Value)
		require.NotNil(t, msg.Properties)
		require.NotEmpty(t, msg.Properties.MessageID)
		require.True(t, senders[i].closed)
	}
	require.NotEqual(t, senders[0].sent[0].Properties.MessageID, senders[1].sent[0].Properties.MessageID)
}

func TestOneShotProducerClosesConnectionOnSendFailure(t *testing.T) {
	t.Parallel()

	producer, err := NewOneShotProducer(config.BrokerConfig{URL: "amqp://localhost:5672"}, testLogger())
	require.NoError(t, err)

	connClosed := false
	producer.open = func(context.Context, string) (sendLink, func() error, error) {
		return &recordingSender{sendErr: errors.New("rejected")}, func() error { connClosed = true; return nil }, nil
	}

	err = producer.Send(context.Background(), "chat.out", "x")
	require.ErrorContains(t, err, "send to chat.out")
	require.True(t, connClosed)
}

func TestOneShotProducerAppliesTimeout(t *testing.T) {
	t.Parallel()

	producer, err := NewOneShotProducer(config.BrokerConfig{URL: "amqp://localhost:5672", DialTimeoutSeconds: 1}, testLogger())
	require.NoError(t, err)

	producer.open = func(ctx context.Context, _ string) (sendLink, func() error, error) {
		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		require.WithinDuration(t, time.Now().Add(time.Second), deadline, 200*time.Millisecond)
		return nil, nil, errors.New("dial broker: timeout")
	}

	require.Error(t, producer.Send(context.Background(), "chat.out", "x"))
}

func TestNewOneShotProducerRequiresURL(t *testing.T) {
	t.Parallel()

	_, err := NewOneShotProducer(config.BrokerConfig{}, nil)
	require.Error(t, err)
}
