// Package gateway runs the translator: the HTTP router, the broker ingress and
// the result endpoints that hand answers to the egress correlator.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"ragbridge/pkg/bus"
	"ragbridge/pkg/channel"
	"ragbridge/pkg/egress"
	"ragbridge/pkg/server"

	"golang.org/x/sync/errgroup"
)

const eventBuffer = 256

// Dispatcher routes one inbound envelope.
type Dispatcher interface {
	channel.Handler
	Dispatch(ctx context.Context, envelope bus.InboundEnvelope) (string, error)
}

// Pinger reports backend reachability for readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Sources names the ingress addresses the direct HTTP endpoints impersonate.
type Sources struct {
	Chat  string
	Email string
	Index string
}

// Options wires a Service. Ingress, Queue and Listener are optional.
type Options struct {
	Addr       string
	Listener   net.Listener
	Sources    Sources
	Dispatcher Dispatcher
	Sink       egress.Sink
	Ingress    channel.Adapter
	Events     *bus.MessageBus
	Queue      Pinger
}

type Service struct {
	addr       string
	listener   net.Listener
	sources    Sources
	dispatcher Dispatcher
	sink       egress.Sink
	ingress    channel.Adapter
	events     *bus.MessageBus
	queue      Pinger
	log        *slog.Logger

	mu           sync.RWMutex
	startedAt    time.Time
	counters     map[bus.EventType]int64
	ingressState channelState
}

type channelState struct {
	Name    string `json:"name"`
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

type statusResponse struct {
	Status        string                  `json:"status"`
	UptimeSeconds int64                   `json:"uptime_seconds"`
	QueueError    string                  `json:"queue_error,omitempty"`
	Ingress       *channelState           `json:"ingress,omitempty"`
	Counters      map[bus.EventType]int64 `json:"counters"`
}

func NewService(opts Options, log *slog.Logger) (*Service, error) {
	if opts.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	if opts.Sink == nil {
		return nil, errors.New("result sink is required")
	}
	if opts.Addr == "" && opts.Listener == nil {
		return nil, errors.New("listen address is required")
	}
	if log == nil {
		log = slog.Default()
	}

	events := opts.Events
	if events == nil {
		events = bus.NewMessageBus()
	}

	s := &Service{
		addr:       opts.Addr,
		listener:   opts.Listener,
		sources:    opts.Sources,
		dispatcher: opts.Dispatcher,
		sink:       opts.Sink,
		ingress:    opts.Ingress,
		events:     events,
		queue:      opts.Queue,
		log:        log.With("component", "gateway.service"),
		counters:   make(map[bus.EventType]int64),
	}
	if s.ingress != nil {
		s.ingressState = channelState{Name: s.ingress.Name()}
	}

	return s, nil
}

// Run serves HTTP and, when configured, the broker ingress until ctx is
// cancelled or either of them fails. Both are joined before Run returns.
func (s *Service) Run(ctx context.Context) error {
	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)

	events, unsubscribe := s.events.SubscribeEvents(gctx, eventBuffer)
	defer unsubscribe()
	g.Go(func() error {
		for event := range events {
			s.count(event)
		}
		return nil
	})

	g.Go(func() error {
		if s.listener != nil {
			return server.ServeListener(gctx, s.listener, s.Handler(), s.log)
		}
		return server.Serve(gctx, s.addr, s.Handler(), s.log)
	})

	if s.ingress != nil {
		g.Go(func() error {
			s.setIngressState(true, nil)
			err := s.ingress.Run(gctx, s.dispatcher)
			s.setIngressState(false, err)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("run %s ingress: %w", s.ingress.Name(), err)
			}
			return nil
		})
	}

	return g.Wait()
}

func (s *Service) count(event bus.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[event.Type]++
}

func (s *Service) setIngressState(running bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ingressState.Running = running
	s.ingressState.Error = errorString(err)
}

func (s *Service) handleReady(w http.ResponseWriter, r *http.Request) {
	var queueErr error
	if s.queue != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		queueErr = s.queue.Ping(ctx)
		cancel()
	}

	statusCode := http.StatusOK
	status := "ready"
	if !s.isReady(queueErr) {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	payload := s.currentStatus(status)
	payload.QueueError = errorString(queueErr)
	server.WriteJSON(w, statusCode, payload)
}

func (s *Service) currentStatus(status string) statusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uptime := int64(0)
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}

	counters := make(map[bus.EventType]int64, len(s.counters))
	for eventType, n := range s.counters {
		counters[eventType] = n
	}

	var ingress *channelState
	if s.ingress != nil {
		state := s.ingressState
		ingress = &state
	}

	return statusResponse{
		Status:        status,
		UptimeSeconds: uptime,
		Ingress:       ingress,
		Counters:      counters,
	}
}

func (s *Service) isReady(queueErr error) bool {
	if queueErr != nil {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.ingress != nil && !s.ingressState.Running {
		return false
	}

	return true
}

func errorString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
