package egress

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ragbridge/pkg/bus"
	"ragbridge/pkg/config"
	"ragbridge/pkg/routing"

	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	address string
	body    string
}

type recordingProducer struct {
	sent []sentMessage
	err  error
}

func (p *recordingProducer) Send(_ context.Context, address string, body string) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, sentMessage{address: address, body: body})
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCorrelator(t *testing.T, producer Producer, opts ...Option) *Correlator {
	t.Helper()

	table, err := routing.FromConfig(config.Default())
	require.NoError(t, err)
	correlator, err := NewCorrelator(table, producer, testLogger(), opts...)
	require.NoError(t, err)
	return correlator
}

func TestCorrelatorSendsToMatchingEgressQueue(t *testing.T) {
	t.Parallel()

	producer := &recordingProducer{}
	correlator := newTestCorrelator(t, producer)

	for origin, want := range map[string]string{
		"chats":               "chat.out",
		"email":               "email.out",
		routing.IndexerOrigin: "index.out",
	} {
		destination, err := correlator.Deliver(context.Background(), origin, "body-"+origin)
		require.NoError(t, err)
		require.Equal(t, want, destination)
	}

	require.Len(t, producer.sent, 3)
	for _, msg := range producer.sent {
		require.Contains(t, []string{"chat.out", "email.out", "index.out"}, msg.address)
	}
}

func TestCorrelatorDropsUnknownOrigin(t *testing.T) {
	t.Parallel()

	producer := &recordingProducer{}
	mb := bus.NewMessageBus()
	defer mb.Close()
	events, unsubscribe := mb.SubscribeEvents(context.Background(), 4)
	defer unsubscribe()

	correlator := newTestCorrelator(t, producer, WithEvents(mb))

	destination, err := correlator.Deliver(context.Background(), "sms", "x")
	require.ErrorIs(t, err, ErrUnknownOrigin)
	require.Empty(t, destination)
	require.Empty(t, producer.sent)

	select {
	case event := <-events:
		require.Equal(t, bus.EventDropped, event.Type)
		require.Equal(t, "sms", event.Source)
	case <-time.After(time.Second):
		t.Fatal("expected dropped event")
	}
}

func TestCorrelateIsTotalOverResultTable(t *testing.T) {
	t.Parallel()

	correlator := newTestCorrelator(t, &recordingProducer{})

	envelope, err := correlator.Correlate(routing.IndexerOrigin, `{"status":"ok","count":0}`)
	require.NoError(t, err)
	require.Equal(t, bus.OutboundEnvelope{Destination: "index.out", Body: `{"status":"ok","count":0}`}, envelope)

	_, err = correlator.Correlate("sms", "x")
	require.ErrorIs(t, err, ErrUnknownOrigin)
}

func TestCorrelatorReportsProducerFailure(t *testing.T) {
	t.Parallel()

	producer := &recordingProducer{err: errors.New("broker down")}
	correlator := newTestCorrelator(t, producer)

	destination, err := correlator.Deliver(context.Background(), "chats", "x")
	require.ErrorContains(t, err, "broker down")
	require.Equal(t, "chat.out", destination)
}

func TestNewCorrelatorValidation(t *testing.T) {
	t.Parallel()

	_, err := NewCorrelator(nil, &recordingProducer{}, nil)
	require.Error(t, err)

	table, err := routing.FromConfig(config.Default())
	require.NoError(t, err)
	_, err = NewCorrelator(table, nil, nil)
	require.Error(t, err)
}

func TestCallbackSinkPostsRAGResult(t *testing.T) {
	t.Parallel()

	var got RAGResultRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/result/rag", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(CallbackResponse{Status: "ok", Message: "Результат отправлен в email.out", Queue: "email.out"})
	}))
	defer server.Close()

	sink, err := NewCallbackSink(server.URL+"/", time.Second, testLogger())
	require.NoError(t, err)

	destination, err := sink.Deliver(context.Background(), "email", "answer")
	require.NoError(t, err)
	require.Equal(t, "email.out", destination)
	require.Equal(t, RAGResultRequest{SourceQueue: "email", Result: "answer"}, got)
}

func TestCallbackSinkPostsIndexerResult(t *testing.T) {
	t.Parallel()

	var path string
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(CallbackResponse{Status: "ok", Queue: "index.out"})
	}))
	defer server.Close()

	sink, err := NewCallbackSink(server.URL, time.Second, testLogger())
	require.NoError(t, err)

	_, err = sink.Deliver(context.Background(), routing.IndexerOrigin, `{"status":"ok","count":3}`)
	require.NoError(t, err)
	require.Equal(t, "/result/indexer", path)
	require.Equal(t, map[string]any{"result": `{"status":"ok","count":3}`}, got)
}

func TestCallbackSinkRejected(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(CallbackResponse{Status: "error", Message: "Неизвестная очередь-источник: sms"})
	}))
	defer server.Close()

	sink, err := NewCallbackSink(server.URL, time.Second, testLogger())
	require.NoError(t, err)

	_, err = sink.Deliver(context.Background(), "sms", "x")
	require.ErrorIs(t, err, ErrRejected)
	require.ErrorContains(t, err, "sms")
}

func TestCallbackSinkNonJSONResponse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer server.Close()

	sink, err := NewCallbackSink(server.URL, time.Second, testLogger())
	require.NoError(t, err)

	_, err = sink.Deliver(context.Background(), "chats", "x")
	require.ErrorContains(t, err, "status 502")
}

func TestNewCallbackSinkRequiresURL(t *testing.T) {
	t.Parallel()

	_, err := NewCallbackSink("  ", 0, nil)
	require.Error(t, err)
}
