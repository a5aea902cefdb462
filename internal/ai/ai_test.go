package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/suPer8Hu/personachat/internal/common"
)

type stubProvider struct {
	name  string
	calls int
}

func (s *stubProvider) Name() string { return s.name }
func (s *stubProvider) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	s.calls++
	return "ok", nil
}
func (s *stubProvider) ListModels(context.Context) []string { return []string{"m1"} }

func TestRegistry_CaseInsensitiveLookup(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubProvider{name: "Groq"})

	for _, name := range []string{"groq", "GROQ", " Groq "} {
		if _, err := reg.Get(name); err != nil {
			t.Fatalf("Get(%q): %v", name, err)
		}
	}
}

func TestRegistry_UnknownIsNotFound(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubProvider{name: "groq"})

	_, err := reg.Get("nonexistent")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRegistry_NamesSorted(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubProvider{name: "ollama"})
	reg.Register(&stubProvider{name: "groq"})
	names := reg.Names()
	if len(names) != 2 || names[0] != "groq" || names[1] != "ollama" {
		t.Fatalf("unexpected names: %v", names)
	}
}

func TestOpenRouter_MissingKeyIsConfigurationError(t *testing.T) {
	if _, err := NewOpenRouterProvider("", "", "", ""); !common.IsConfigurationError(err) {
		t.Fatalf("constructor: expected ConfigurationError, got %v", err)
	}

	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits++ }))
	defer srv.Close()

	p := &OpenRouterProvider{BaseURL: srv.URL, Client: srv.Client()}
	_, err := p.Generate(context.Background(), GenerateRequest{Model: "m", Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if !common.IsConfigurationError(err) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if hits != 0 {
		t.Fatalf("no network call expected without a key, got %d", hits)
	}
}

func TestOpenRouter_GenerateSendsHistory(t *testing.T) {
	var got openRouterChatReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing bearer token")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"pong"}}]}`))
	}))
	defer srv.Close()

	p, err := NewOpenRouterProvider(srv.URL, "key", "", "")
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	reply, err := p.Generate(context.Background(), GenerateRequest{
		Model:       "openrouter/auto",
		Temperature: 0.7,
		Messages: []Message{
			{Role: RoleSystem, Content: "ctx"},
			{Role: RoleUser, Content: "ping"},
		},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if reply != "pong" {
		t.Fatalf("unexpected reply %q", reply)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "ping" {
		t.Fatalf("unexpected upstream messages: %+v", got.Messages)
	}
	if got.Temperature != 0.7 {
		t.Fatalf("expected temperature 0.7, got %v", got.Temperature)
	}
}

func TestOpenRouter_Non2xxIsProviderError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("overloaded"))
	}))
	defer srv.Close()

	p, _ := NewOpenRouterProvider(srv.URL, "key", "", "")
	_, err := p.Generate(context.Background(), GenerateRequest{Model: "m", Messages: []Message{{Role: RoleUser, Content: "x"}}})
	pe, ok := common.AsProviderError(err)
	if !ok {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if pe.Status != http.StatusServiceUnavailable || pe.Msg != "overloaded" {
		t.Fatalf("unexpected provider error: %+v", pe)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one attempt, got %d", calls)
	}
}

func TestOpenRouter_ListModelsLiveAndFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"id":"a/one"},{"id":"b/two"}]}`))
	}))
	p, _ := NewOpenRouterProvider(srv.URL, "key", "", "")

	first := p.ListModels(context.Background())
	second := p.ListModels(context.Background())
	if len(first) != 2 || first[0] != "a/one" {
		t.Fatalf("unexpected live models: %v", first)
	}
	if len(second) != len(first) || second[1] != first[1] {
		t.Fatalf("listing should be stable: %v vs %v", first, second)
	}

	srv.Close()
	fallback := p.ListModels(context.Background())
	if len(fallback) != len(openRouterFallbackModels) || fallback[0] != "gpt-3.5-turbo" {
		t.Fatalf("expected static fallback, got %v", fallback)
	}
}

func TestOllama_GenerateAndTags(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/chat":
			var req ollamaChatReq
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req.Model != "llama3:latest" {
				t.Errorf("expected default model, got %q", req.Model)
			}
			_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"hi"}}`))
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models":[{"name":"llama3:latest"},{"name":"phi3"}]}`))
		}
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "")
	reply, err := p.Generate(context.Background(), GenerateRequest{Messages: []Message{{Role: RoleUser, Content: "hey"}}})
	if err != nil || reply != "hi" {
		t.Fatalf("generate: reply=%q err=%v", reply, err)
	}
	models := p.ListModels(context.Background())
	if len(models) != 2 || models[1] != "phi3" {
		t.Fatalf("unexpected models: %v", models)
	}
}

func TestOllama_ListModelsFallsBackToConfiguredModel(t *testing.T) {
	p := NewOllamaProvider("http://127.0.0.1:1", "mistral")
	models := p.ListModels(context.Background())
	if len(models) != 1 || models[0] != "mistral" {
		t.Fatalf("unexpected fallback: %v", models)
	}
}

func TestOpenAICompat_GenerateAndAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		if body.Model == "bad" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"invalid api key","type":"invalid_request_error"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"hello"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	p, err := NewGroqProvider(srv.URL+"/v1", "gsk")
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	reply, err := p.Generate(context.Background(), GenerateRequest{Model: "llama3-8b-8192", Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if err != nil || reply != "hello" {
		t.Fatalf("generate: reply=%q err=%v", reply, err)
	}

	_, err = p.Generate(context.Background(), GenerateRequest{Model: "bad", Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	pe, ok := common.AsProviderError(err)
	if !ok || pe.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 ProviderError, got %v", err)
	}
}

func TestOpenAICompat_StaticModelsIdempotent(t *testing.T) {
	p, _ := NewGroqProvider("", "gsk")
	a := p.ListModels(context.Background())
	b := p.ListModels(context.Background())
	if len(a) != 2 || a[0] != b[0] || a[1] != b[1] {
		t.Fatalf("expected identical static catalogs: %v %v", a, b)
	}
}

func TestRateLimited_CanceledWaitIsProviderError(t *testing.T) {
	inner := &stubProvider{name: "groq"}
	p := NewRateLimited(inner, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Generate(ctx, GenerateRequest{})
	if _, ok := common.AsProviderError(err); !ok {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if inner.calls != 0 {
		t.Fatalf("inner provider must not be called")
	}
	if p.Name() != "groq" {
		t.Fatalf("wrapper should keep the provider name")
	}
}

func TestNewRateLimited_ZeroIsPassthrough(t *testing.T) {
	inner := &stubProvider{name: "x"}
	if p := NewRateLimited(inner, 0); p != Provider(inner) {
		t.Fatalf("rpm 0 should return the provider unchanged")
	}
}

func TestSplitGeminiTurns(t *testing.T) {
	system, history, last, err := splitGeminiTurns([]Message{
		{Role: RoleUser, Content: "q1"},
		{Role: RoleAssistant, Content: "a1"},
		{Role: RoleSystem, Content: "context"},
		{Role: RoleUser, Content: "q2"},
	})
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if last != "q2" {
		t.Fatalf("expected last user turn q2, got %q", last)
	}
	if len(system) != 1 || len(history) != 2 || history[1].Role != "model" {
		t.Fatalf("unexpected split: system=%d history=%+v", len(system), history)
	}

	if _, _, _, err := splitGeminiTurns([]Message{{Role: RoleSystem, Content: "x"}}); err == nil {
		t.Fatalf("expected error without a user turn")
	}
}

func TestClampTemperature(t *testing.T) {
	if clampTemperature(-1) != 0 || clampTemperature(2) != 1 || clampTemperature(0.7) != 0.7 {
		t.Fatalf("clamp out of range")
	}
}
