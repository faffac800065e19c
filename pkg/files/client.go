package files

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultClientTimeout = 30 * time.Second

// Client reads documents from a remote file service.
type Client struct {
	baseURL      string
	http         *http.Client
	maxReadBytes int64
}

func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("file service url is required")
	}
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}

	return &Client{
		baseURL:      baseURL,
		http:         &http.Client{Timeout: timeout},
		maxReadBytes: DefaultMaxReadBytes + 1,
	}, nil
}

// List returns the document names the service exposes.
func (c *Client) List(ctx context.Context) ([]string, error) {
	raw, err := c.get(ctx, "/files")
	if err != nil {
		return nil, err
	}

	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, fmt.Errorf("decode file list: %w", err)
	}
	return names, nil
}

// Fetch returns the text content of one document.
func (c *Client) Fetch(ctx context.Context, name string) (string, error) {
	raw, err := c.get(ctx, "/file/"+url.PathEscape(name))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxReadBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, NewError(ErrorNotFound, path)
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, NewError(ErrorIO, fmt.Sprintf("get %s: status %d", path, resp.StatusCode))
	}

	return raw, nil
}
