package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ngmigrate/internal/apperr"
)

func TestNewClient(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	testCases := []struct {
		name        string
		config      Config
		wantBackend string
		wantModel   string
		wantErr     error
	}{
		{
			name:        "ollama with defaults",
			config:      Config{Backend: "ollama"},
			wantBackend: "ollama",
			wantModel:   "llama3.2",
		},
		{
			name:        "openai client",
			config:      Config{Backend: "openai", Model: "gpt-4o", APIKey: "k"},
			wantBackend: "openai",
			wantModel:   "gpt-4o",
		},
		{
			name:    "disabled backend",
			config:  Config{Backend: "disabled"},
			wantErr: ErrNotConfigured,
		},
		{
			name:    "unknown backend",
			config:  Config{Backend: "bard"},
			wantErr: ErrUnsupportedBackend,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := NewClient(tc.config)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewClient() error = %v", err)
			}
			if c.Backend() != tc.wantBackend || c.Model() != tc.wantModel {
				t.Errorf("got %s/%s, want %s/%s", c.Backend(), c.Model(), tc.wantBackend, tc.wantModel)
			}
		})
	}
}

func TestNewClient_OpenAIMissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewClient(Config{Backend: "openai"})
	if err == nil || !strings.Contains(err.Error(), "API key required") {
		t.Fatalf("expected missing key error, got %v", err)
	}
}

func newTestOpenAI(url string) *OpenAIClient {
	c := NewOpenAIClient("test-key", "gpt-test", 0.2)
	c.baseURL = url
	return c
}

func TestOpenAIClient_Complete(t *testing.T) {
	var got openAIRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer token")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  hello  "},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	text, err := newTestOpenAI(server.URL).Complete(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if text != "hello" {
		t.Errorf("text = %q, want hello", text)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "user" {
		t.Errorf("unexpected messages: %+v", got.Messages)
	}
	if got.Temperature != 0.2 || got.Model != "gpt-test" {
		t.Errorf("unexpected request: %+v", got)
	}
}

func TestOpenAIClient_Errors(t *testing.T) {
	testCases := []struct {
		name     string
		status   int
		body     string
		wantKind apperr.Kind
	}{
		{"non-2xx", http.StatusBadGateway, `oops`, apperr.UpstreamUnavailable},
		{"api error", http.StatusOK, `{"error":{"message":"bad key","type":"auth"}}`, apperr.UpstreamUnavailable},
		{"no choices", http.StatusOK, `{"choices":[]}`, apperr.InvalidUpstreamResponse},
		{"not json", http.StatusOK, `<html>`, apperr.InvalidUpstreamResponse},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer server.Close()

			_, err := newTestOpenAI(server.URL).Complete(context.Background(), "", "p")
			if got := apperr.KindOf(err); got != tc.wantKind {
				t.Errorf("kind = %s, want %s (err: %v)", got, tc.wantKind, err)
			}
		})
	}
}

func TestOpenAIClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestOpenAI(server.URL).Complete(ctx, "", "p")
	if got := apperr.KindOf(err); got != apperr.UpstreamTimeout {
		t.Errorf("kind = %s, want %s (err: %v)", got, apperr.UpstreamTimeout, err)
	}
}

func TestOllamaClient_Complete(t *testing.T) {
	var got struct {
		Model   string `json:"model"`
		System  string `json:"system"`
		Prompt  string `json:"prompt"`
		Options struct {
			Temperature *float64 `json:"temperature"`
		} `json:"options"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{"model":"llama-test","response":"  hi  ","done":true}`))
	}))
	defer server.Close()

	c, err := NewOllamaClient(server.URL, "llama-test", 0.3, 0)
	if err != nil {
		t.Fatal(err)
	}
	text, err := c.Complete(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if text != "hi" {
		t.Errorf("text = %q, want hi", text)
	}
	if got.Model != "llama-test" || got.System != "sys" || got.Prompt != "user" {
		t.Errorf("unexpected request: %+v", got)
	}
	if got.Options.Temperature == nil || *got.Options.Temperature != 0.3 {
		t.Errorf("temperature = %v, want 0.3", got.Options.Temperature)
	}
}
