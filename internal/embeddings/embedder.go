package embeddings

import (
	"context"
	"fmt"
	"strings"

	"github.com/suPer8Hu/personachat/internal/common"
	"github.com/suPer8Hu/personachat/internal/config"
)

// Embedder turns text into fixed-size vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns one vector per input, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Name() string
}

// New builds the embedder named by cfg.Provider. An empty provider disables
// retrieval and yields a nil Embedder.
func New(cfg config.EmbeddingConfig) (Embedder, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "":
		return nil, nil
	case "ollama":
		return NewOllamaEmbedder(cfg.Model, cfg.Dimensions, cfg.BaseURL), nil
	case "openai":
		e, err := NewOpenAIEmbedder(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Dimensions)
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, common.NewConfigurationError("embedding", fmt.Sprintf("unknown provider %q", cfg.Provider))
	}
}
