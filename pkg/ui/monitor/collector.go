package monitor

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// QueueLen reports the pending depth of one work-queue topic.
type QueueLen interface {
	Len(ctx context.Context, topic string) (int64, error)
}

// Service is a health endpoint shown on the dashboard.
type Service struct {
	Name string
	URL  string
}

type TopicDepth struct {
	Topic string
	Depth int64
	Err   string
}

type ServiceHealth struct {
	Name    string
	Healthy bool
	Detail  string
	Latency time.Duration
}

// Snapshot is one refresh of the dashboard.
type Snapshot struct {
	At       time.Time
	Depths   []TopicDepth
	Services []ServiceHealth
}

// Collector gathers queue depths and service health.
type Collector struct {
	queue    QueueLen
	topics   []string
	services []Service
	client   *http.Client
}

func NewCollector(queue QueueLen, topics []string, services []Service, timeout time.Duration) *Collector {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	return &Collector{
		queue:    queue,
		topics:   append([]string(nil), topics...),
		services: append([]Service(nil), services...),
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *Collector) Collect(ctx context.Context) Snapshot {
	snapshot := Snapshot{At: time.Now().UTC()}

	for _, topic := range c.topics {
		depth := TopicDepth{Topic: topic}
		if c.queue == nil {
			depth.Err = "no queue"
		} else if n, err := c.queue.Len(ctx, topic); err != nil {
			depth.Err = err.Error()
		} else {
			depth.Depth = n
		}
		snapshot.Depths = append(snapshot.Depths, depth)
	}

	for _, svc := range c.services {
		snapshot.Services = append(snapshot.Services, c.checkService(ctx, svc))
	}

	return snapshot
}

func (c *Collector) checkService(ctx context.Context, svc Service) ServiceHealth {
	health := ServiceHealth{Name: svc.Name}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(svc.URL, "/")+"/health", nil)
	if err != nil {
		health.Detail = err.Error()
		return health
	}

	started := time.Now()
	resp, err := c.client.Do(req)
	health.Latency = time.Since(started)
	if err != nil {
		health.Detail = err.Error()
		return health
	}
	_ = resp.Body.Close()

	health.Healthy = resp.StatusCode == http.StatusOK
	health.Detail = fmt.Sprintf("HTTP %d", resp.StatusCode)
	return health
}
