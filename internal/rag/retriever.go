package rag

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/tiktoken-go/tokenizer"

	"github.com/suPer8Hu/personachat/internal/common"
	"github.com/suPer8Hu/personachat/internal/config"
	"github.com/suPer8Hu/personachat/internal/embeddings"
	"github.com/suPer8Hu/personachat/internal/vectorstore"
)

const blockSeparator = "\n---\n"

// Retriever builds the context block for a query. It never fails: every
// error is logged and reported as empty context.
type Retriever struct {
	embedder  embeddings.Embedder
	index     vectorstore.Index
	timeout   time.Duration
	maxTokens int
	codec     tokenizer.Codec

	mu         sync.RWMutex
	collection string
	topK       int
}

func NewRetriever(emb embeddings.Embedder, idx vectorstore.Index, cfg config.RAGConfig, timeout time.Duration) *Retriever {
	r := &Retriever{
		embedder:   emb,
		index:      idx,
		timeout:    timeout,
		maxTokens:  cfg.MaxContextTokens,
		collection: cfg.Collection,
		topK:       cfg.TopK,
	}
	if r.topK <= 0 {
		r.topK = 3
	}
	if r.maxTokens > 0 {
		codec, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err != nil {
			log.Printf("[rag] tokenizer unavailable, context is not truncated: %v", err)
		} else {
			r.codec = codec
		}
	}
	return r
}

// Configure changes the collection and k used by later retrievals. Zero
// values keep the current setting.
func (r *Retriever) Configure(collection string, topK int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if strings.TrimSpace(collection) != "" {
		r.collection = collection
	}
	if topK > 0 {
		r.topK = topK
	}
}

func (r *Retriever) Settings() (collection string, topK int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collection, r.topK
}

func (r *Retriever) Retrieve(ctx context.Context, query string) string {
	if r == nil || r.embedder == nil || r.index == nil {
		return ""
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	collection, k := r.Settings()

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		log.Printf("[rag] %v", &common.RetrievalError{Stage: "embed", Err: err})
		return ""
	}
	hits, err := r.index.Search(ctx, collection, vec, k)
	if err != nil {
		log.Printf("[rag] %v", &common.RetrievalError{Stage: "search", Err: err})
		return ""
	}
	if len(hits) == 0 {
		return ""
	}

	blocks := make([]string, 0, len(hits))
	for _, h := range hits {
		blocks = append(blocks, FormatBlock(h))
	}
	return r.truncate(strings.Join(blocks, blockSeparator))
}

func FormatBlock(h vectorstore.Hit) string {
	source := h.Metadata["source"]
	if source == "" {
		source = "Unknown"
	}
	return fmt.Sprintf("Source: %s (Score: %.2f)\nContent: %s", source, h.Score, h.Content)
}

func (r *Retriever) truncate(text string) string {
	if r.codec == nil || r.maxTokens <= 0 {
		return text
	}
	ids, _, err := r.codec.Encode(text)
	if err != nil || len(ids) <= r.maxTokens {
		return text
	}
	cut, err := r.codec.Decode(ids[:r.maxTokens])
	if err != nil {
		return text
	}
	return cut
}

// MatchTrigger reports whether text starts with trigger, ignoring case and
// surrounding whitespace, and returns the trimmed remainder. An empty
// remainder is not a match.
func MatchTrigger(text, trigger string) (string, bool) {
	if trigger == "" {
		return "", false
	}
	t := strings.TrimLeft(text, " \t\r\n")
	if len(t) < len(trigger) || !strings.EqualFold(t[:len(trigger)], trigger) {
		return "", false
	}
	query := strings.TrimSpace(t[len(trigger):])
	if query == "" {
		return "", false
	}
	return query, true
}
