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

	"github.com/FatimahAdwan/survey-alignment/config"
)

func newTestConfig(url string) *config.Config {
	return &config.Config{
		LLM: config.LLMConfig{
			APIURL:      url,
			APIKey:      "test-key",
			Model:       "gpt-4",
			MaxTokens:   256,
			Temperature: 0.3,
		},
	}
}

func TestNewClient(t *testing.T) {
	client := NewClient(newTestConfig("https://api.example.com/v1/"))

	if client.BaseURL != "https://api.example.com/v1" {
		t.Errorf("expected trailing slash trimmed, got %s", client.BaseURL)
	}
	if client.APIKey != "test-key" {
		t.Errorf("expected APIKey test-key, got %s", client.APIKey)
	}
	if client.Model != "gpt-4" {
		t.Errorf("expected Model gpt-4, got %s", client.Model)
	}
	if client.MaxTokens != 256 {
		t.Errorf("expected MaxTokens 256, got %d", client.MaxTokens)
	}
	if client.Client == nil {
		t.Error("expected HTTP client to be initialized")
	}
}

func TestClientGenerate(t *testing.T) {
	var got ChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST method, got %s", r.Method)
		}
		if r.URL.Path != "/chat/completions" {
			t.Errorf("expected path /chat/completions, got %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected Authorization header: %s", auth)
		}
		json.NewDecoder(r.Body).Decode(&got)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ChatResponse{
			ID:    "test-id",
			Model: "gpt-4",
			Choices: []ChatChoice{
				{Message: ChatMessage{Role: RoleAssistant, Content: "How clear are the goals?"}, FinishReason: "stop"},
			},
		})
	}))
	defer server.Close()

	client := NewClient(newTestConfig(server.URL))
	text, err := client.Generate(context.Background(), "system prompt", []ChatMessage{{Role: RoleUser, Content: "context"}})
	if err != nil {
		t.Fatalf("Generate() unexpected error: %v", err)
	}
	if text != "How clear are the goals?" {
		t.Errorf("unexpected text: %s", text)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != RoleSystem || got.Messages[1].Content != "context" {
		t.Errorf("unexpected request messages: %+v", got.Messages)
	}
	if got.Model != "gpt-4" || got.MaxTokens != 256 {
		t.Errorf("unexpected request fields: %+v", got)
	}
}

func TestClientAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limit exceeded","type":"requests"}}`))
	}))
	defer server.Close()

	client := NewClient(newTestConfig(server.URL))
	_, err := client.Chat(context.Background(), []ChatMessage{{Role: RoleUser, Content: "hi"}})
	if err == nil || !strings.Contains(err.Error(), "rate limit exceeded") {
		t.Fatalf("expected API error, got %v", err)
	}
	if !IsRateLimitError(err) {
		t.Fatalf("expected rate limit classification for %v", err)
	}
}

func TestClientNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"x","choices":[]}`))
	}))
	defer server.Close()

	client := NewClient(newTestConfig(server.URL))
	_, err := client.Chat(context.Background(), nil)
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestClientHonoursContextTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := NewClient(newTestConfig(server.URL))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Chat(ctx, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
