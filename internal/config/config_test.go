package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.HistoryLimit != 10 {
		t.Errorf("expected history_limit 10, got %d", cfg.HistoryLimit)
	}
	if cfg.Temperature != 0.7 {
		t.Errorf("expected temperature 0.7, got %v", cfg.Temperature)
	}
	if cfg.RAG.TopK != 3 {
		t.Errorf("expected rag.top_k 3, got %d", cfg.RAG.TopK)
	}
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "personachat.yml")
	yml := `
default_provider: openrouter
history_limit: 20
provider_timeout: 30s
rag:
  collection: notes
  top_k: 5
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("PERSONACHAT_HISTORY_LIMIT", "15")
	t.Setenv("PERSONACHAT_RAG__TOP_K", "7")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultProvider != "openrouter" {
		t.Errorf("default_provider: got %q", cfg.DefaultProvider)
	}
	if cfg.HistoryLimit != 15 {
		t.Errorf("env should override yaml history_limit, got %d", cfg.HistoryLimit)
	}
	if cfg.RAG.Collection != "notes" {
		t.Errorf("rag.collection: got %q", cfg.RAG.Collection)
	}
	if cfg.RAG.TopK != 7 {
		t.Errorf("rag.top_k: got %d", cfg.RAG.TopK)
	}
	if cfg.ProviderTimeout != 30*time.Second {
		t.Errorf("provider_timeout: got %s", cfg.ProviderTimeout)
	}
	// untouched keys keep defaults
	if cfg.RAG.Trigger != "/rag " {
		t.Errorf("rag.trigger: got %q", cfg.RAG.Trigger)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultModel != "llama3-8b-8192" {
		t.Errorf("default_model: got %q", cfg.DefaultModel)
	}
}

func TestLoad_CredentialFallback(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "gsk-test")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers.Groq.APIKey != "gsk-test" {
		t.Errorf("expected groq key from GROQ_API_KEY, got %q", cfg.Providers.Groq.APIKey)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"history too large", func(c *Config) { c.HistoryLimit = 500 }},
		{"temperature above one", func(c *Config) { c.Temperature = 1.5 }},
		{"overlap >= chunk size", func(c *Config) { c.RAG.ChunkOverlap = c.RAG.ChunkSize }},
		{"unknown embedder", func(c *Config) { c.Embedding.Provider = "word2vec" }},
		{"empty trigger", func(c *Config) { c.RAG.Trigger = " " }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
