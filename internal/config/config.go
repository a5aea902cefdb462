package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "PERSONACHAT_"

type ProviderConfig struct {
	BaseURL string `koanf:"base_url"`
	APIKey  string `koanf:"api_key"`
	Model   string `koanf:"model"`
}

type ProvidersConfig struct {
	Groq       ProviderConfig `koanf:"groq"`
	OpenRouter ProviderConfig `koanf:"openrouter"`
	Google     ProviderConfig `koanf:"google"`
	Together   ProviderConfig `koanf:"together"`
	OpenAI     ProviderConfig `koanf:"openai"`
	Ollama     ProviderConfig `koanf:"ollama"`

	OpenRouterSiteURL string `koanf:"openrouter_site_url"`
	OpenRouterAppName string `koanf:"openrouter_app_name"`
}

type RAGConfig struct {
	Trigger          string `koanf:"trigger"`
	Collection       string `koanf:"collection"`
	TopK             int    `koanf:"top_k"`
	MaxContextTokens int    `koanf:"max_context_tokens"`
	ChunkSize        int    `koanf:"chunk_size"`
	ChunkOverlap     int    `koanf:"chunk_overlap"`
}

type EmbeddingConfig struct {
	Provider   string `koanf:"provider"`
	Model      string `koanf:"model"`
	Dimensions int    `koanf:"dimensions"`
	BaseURL    string `koanf:"base_url"`
	APIKey     string `koanf:"api_key"`
}

type PluginsConfig struct {
	// Order overrides the built-in registration order. Unlisted plugins follow.
	Order    []string `koanf:"order"`
	Disabled []string `koanf:"disabled"`

	TavilyAPIKey  string `koanf:"tavily_api_key"`
	TavilyBaseURL string `koanf:"tavily_base_url"`
	E2BAPIKey     string `koanf:"e2b_api_key"`
	E2BBaseURL    string `koanf:"e2b_base_url"`
}

type Config struct {
	HTTPAddr string `koanf:"http_addr"`
	DBDSN    string `koanf:"db_dsn"`

	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	// rabbitMQ, empty URL disables async chat jobs
	RabbitURL         string        `koanf:"rabbit_url"`
	RabbitQueue       string        `koanf:"rabbit_queue"`
	WorkerConcurrency int           `koanf:"worker_concurrency"`
	JobMaxRetries     int           `koanf:"job_max_retries"`
	JobRetryDelay     time.Duration `koanf:"job_retry_delay"`
	LockTTL           time.Duration `koanf:"lock_ttl"`

	HistoryLimit     int           `koanf:"history_limit"`
	Temperature      float64       `koanf:"temperature"`
	MaxTokens        int           `koanf:"max_tokens"`
	DefaultProvider  string        `koanf:"default_provider"`
	DefaultModel     string        `koanf:"default_model"`
	ProviderTimeout  time.Duration `koanf:"provider_timeout"`
	RetrievalTimeout time.Duration `koanf:"retrieval_timeout"`
	ProviderRPM      int           `koanf:"provider_rpm"`

	VectorPath string `koanf:"vector_path"`

	RAG       RAGConfig       `koanf:"rag"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	Providers ProvidersConfig `koanf:"providers"`
	Plugins   PluginsConfig   `koanf:"plugins"`
}

func DefaultConfig() *Config {
	return &Config{
		HTTPAddr:          ":8000",
		DBDSN:             "file:personachat.db?_pragma=foreign_keys(1)",
		RabbitQueue:       "chat_jobs",
		WorkerConcurrency: 2,
		JobMaxRetries:     3,
		JobRetryDelay:     5 * time.Second,
		LockTTL:           2 * time.Minute,

		HistoryLimit:     10,
		Temperature:      0.7,
		DefaultProvider:  "groq",
		DefaultModel:     "llama3-8b-8192",
		ProviderTimeout:  60 * time.Second,
		RetrievalTimeout: 10 * time.Second,

		VectorPath: "data/vectors.gob.gz",

		RAG: RAGConfig{
			Trigger:          "/rag ",
			Collection:       "personachat_docs",
			TopK:             3,
			MaxContextTokens: 2000,
			ChunkSize:        1000,
			ChunkOverlap:     200,
		},
		Embedding: EmbeddingConfig{
			Provider:   "ollama",
			Model:      "nomic-embed-text",
			Dimensions: 768,
		},
		Providers: ProvidersConfig{
			Groq:       ProviderConfig{BaseURL: "https://api.groq.com/openai/v1"},
			OpenRouter: ProviderConfig{BaseURL: "https://openrouter.ai/api/v1"},
			Together:   ProviderConfig{BaseURL: "https://api.together.xyz/v1"},
			OpenAI:     ProviderConfig{BaseURL: "https://api.openai.com/v1"},
			Ollama:     ProviderConfig{BaseURL: "http://localhost:11434", Model: "llama3:latest"},
		},
		Plugins: PluginsConfig{
			TavilyBaseURL: "https://api.tavily.com",
			E2BBaseURL:    "https://api.e2b.dev",
		},
	}
}

// Load reads .env (if present), the YAML file at path (if present), then
// PERSONACHAT_* environment overrides. Nested keys use a double underscore:
// PERSONACHAT_RAG__TOP_K -> rag.top_k.
func Load(path string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	k := koanf.New(".")
	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	cfg.applyCredentialEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// applyCredentialEnv falls back to the vendor's conventional variable
// when no prefixed key was configured.
func (c *Config) applyCredentialEnv() {
	fill := func(dst *string, name string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = os.Getenv(name)
		}
	}
	fill(&c.Providers.Groq.APIKey, "GROQ_API_KEY")
	fill(&c.Providers.OpenRouter.APIKey, "OPENROUTER_API_KEY")
	fill(&c.Providers.Google.APIKey, "GOOGLE_API_KEY")
	fill(&c.Providers.Together.APIKey, "TOGETHER_API_KEY")
	fill(&c.Providers.OpenAI.APIKey, "OPENAI_API_KEY")
	fill(&c.Plugins.TavilyAPIKey, "TAVILY_API_KEY")
	fill(&c.Plugins.E2BAPIKey, "E2B_API_KEY")
	if c.Embedding.Provider == "openai" {
		fill(&c.Embedding.APIKey, "OPENAI_API_KEY")
	}
}

func (c *Config) Validate() error {
	if c.DBDSN == "" {
		return fmt.Errorf("db_dsn is required")
	}
	if c.HistoryLimit <= 0 || c.HistoryLimit > 100 {
		return fmt.Errorf("history_limit must be in 1..100, got %d", c.HistoryLimit)
	}
	if c.Temperature < 0 || c.Temperature > 1 {
		return fmt.Errorf("temperature must be in [0,1], got %v", c.Temperature)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be non-negative")
	}
	if c.ProviderTimeout <= 0 || c.RetrievalTimeout <= 0 {
		return fmt.Errorf("provider_timeout and retrieval_timeout must be positive")
	}
	if c.ProviderRPM < 0 {
		return fmt.Errorf("provider_rpm must be non-negative")
	}
	if c.WorkerConcurrency <= 0 || c.WorkerConcurrency > 50 {
		return fmt.Errorf("worker_concurrency must be in 1..50, got %d", c.WorkerConcurrency)
	}
	if c.JobMaxRetries < 0 {
		return fmt.Errorf("job_max_retries must be non-negative")
	}
	if strings.TrimSpace(c.RAG.Trigger) == "" {
		return fmt.Errorf("rag.trigger is required")
	}
	if c.RAG.TopK <= 0 {
		return fmt.Errorf("rag.top_k must be positive")
	}
	if c.RAG.ChunkSize <= 0 || c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("rag.chunk_overlap must be in [0, chunk_size)")
	}
	switch c.Embedding.Provider {
	case "", "ollama", "openai":
	default:
		return fmt.Errorf("invalid embedding.provider %q: must be ollama or openai", c.Embedding.Provider)
	}
	return nil
}
