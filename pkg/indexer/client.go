package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultTriggerTimeout = 300 * time.Second

// Client triggers indexing runs on a remote indexer service.
type Client struct {
	url  string
	http *http.Client
	log  *slog.Logger
}

func NewClient(url string, timeout time.Duration, log *slog.Logger) (*Client, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("indexer url is required")
	}
	if timeout <= 0 {
		timeout = defaultTriggerTimeout
	}
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		url:  url,
		http: &http.Client{Timeout: timeout},
		log:  log.With("component", "indexer.client"),
	}, nil
}

// Trigger posts body to the indexer and waits for the run to finish.
// The run's own status does not make Trigger fail; only transport and HTTP errors do.
func (c *Client) Trigger(ctx context.Context, body string) error {
	if strings.TrimSpace(body) == "" {
		body = "{}"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("build index request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	startedAt := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call indexer: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read indexer response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("indexer returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var outcome Outcome
	if err := json.Unmarshal(raw, &outcome); err == nil {
		c.log.Info("Indexing run finished", "status", outcome.Status, "count", outcome.Count, "duration_ms", time.Since(startedAt).Milliseconds())
	}
	return nil
}
