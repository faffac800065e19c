package egress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"ragbridge/pkg/routing"
)

const defaultCallbackTimeout = 10 * time.Second

// RAGResultRequest is the body of POST /result/rag.
type RAGResultRequest struct {
	SourceQueue string `json:"source_queue"`
	Result      string `json:"result"`
}

// IndexerResultRequest is the body of POST /result/indexer.
type IndexerResultRequest struct {
	Result string `json:"result"`
}

// CallbackResponse is the translator's answer to a result callback.
type CallbackResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Queue   string `json:"queue,omitempty"`
}

// CallbackSink hands results to the translator over HTTP instead of the broker.
type CallbackSink struct {
	baseURL string
	client  *http.Client
	log     *slog.Logger
}

func NewCallbackSink(baseURL string, timeout time.Duration, log *slog.Logger) (*CallbackSink, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("translator url is required")
	}
	if timeout <= 0 {
		timeout = defaultCallbackTimeout
	}
	if log == nil {
		log = slog.Default()
	}

	return &CallbackSink{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		log:     log.With("component", "egress.callback"),
	}, nil
}

// Deliver posts body to /result/indexer for indexing outcomes and to /result/rag otherwise.
func (s *CallbackSink) Deliver(ctx context.Context, origin string, body string) (string, error) {
	path := "/result/rag"
	var payload any = RAGResultRequest{SourceQueue: origin, Result: body}
	if origin == routing.IndexerOrigin {
		path = "/result/indexer"
		payload = IndexerResultRequest{Result: body}
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode callback: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("build callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	startedAt := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read %s response: %w", path, err)
	}

	var decoded CallbackResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("post %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if decoded.Status != "ok" {
		s.log.Warn("Translator rejected result", "origin", origin, "message", decoded.Message)
		return "", fmt.Errorf("%w: %s", ErrRejected, decoded.Message)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("post %s: status %d", path, resp.StatusCode)
	}

	s.log.Info("Result handed to translator", "origin", origin, "queue", decoded.Queue, "duration_ms", time.Since(startedAt).Milliseconds())
	return decoded.Queue, nil
}
