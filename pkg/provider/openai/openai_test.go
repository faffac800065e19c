package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ragbridge/pkg/config"

	"github.com/openai/openai-go/v3/option"
)

func TestNewRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := New(config.EmbedderConfig{Model: "text-embedding-3-small"}, 10)
	if err == nil {
		t.Fatal("expected error when API key is missing")
	}
}

func TestNewUsesConfiguredAPIKeyEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("TEST_OPENAI_API_KEY", "sk-test")

	client, err := New(config.EmbedderConfig{APIKeyEnv: "TEST_OPENAI_API_KEY", Model: "text-embedding-3-small"}, 10)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if client == nil {
		t.Fatal("expected client")
	}
}

func TestNewFallsBackToDefaultAPIKeyEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-default")
	t.Setenv("TEST_OPENAI_API_KEY", "")

	client, err := New(config.EmbedderConfig{APIKeyEnv: "TEST_OPENAI_API_KEY", Model: "text-embedding-3-small"}, 10)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if client.Dimension() != 10 {
		t.Fatalf("Dimension() = %d, want 10", client.Dimension())
	}
}

func TestEmbedRequestsConfiguredDimensions(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	var request map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&request)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"text-embedding-3-small","data":[` +
			`{"object":"embedding","index":1,"embedding":[0.3,0.4]},` +
			`{"object":"embedding","index":0,"embedding":[0.1,0.2]}],` +
			`"usage":{"prompt_tokens":2,"total_tokens":2}}`))
	}))
	defer server.Close()

	client, err := New(config.EmbedderConfig{Model: "openai/text-embedding-3-small", BaseURL: server.URL + "/v1/"}, 2, option.WithMaxRetries(0))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	vectors, err := client.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(vectors) != 2 || vectors[0][0] != float32(0.1) || vectors[1][1] != float32(0.4) {
		t.Fatalf("unexpected vectors %v", vectors)
	}
	if request["model"] != "text-embedding-3-small" {
		t.Fatalf("model = %v, want text-embedding-3-small", request["model"])
	}
	if request["dimensions"] != float64(2) {
		t.Fatalf("dimensions = %v, want 2", request["dimensions"])
	}
}

func TestEmbedRejectsWrongDimension(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"m","data":[{"object":"embedding","index":0,"embedding":[0.1]}],"usage":{"prompt_tokens":1,"total_tokens":1}}`))
	}))
	defer server.Close()

	client, err := New(config.EmbedderConfig{Model: "m", BaseURL: server.URL + "/v1/"}, 2, option.WithMaxRetries(0))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if _, err := client.Embed(context.Background(), []string{"x"}); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestNormalizeModel(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain model", input: "text-embedding-3-small", want: "text-embedding-3-small"},
		{name: "openai prefix", input: "openai/text-embedding-3-large", want: "text-embedding-3-large"},
		{name: "other provider", input: "cohere/embed", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeModel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("normalizeModel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("normalizeModel(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
