package plugins

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/suPer8Hu/personachat/internal/plugin"
	"github.com/suPer8Hu/personachat/internal/rag"
	"github.com/suPer8Hu/personachat/internal/vectorstore"
)

// RAGDocs reports on the document collection and owns the retrieval
// settings exposed through the plugin API.
type RAGDocs struct {
	index     vectorstore.Index
	retriever *rag.Retriever
}

func NewRAGDocs() *RAGDocs { return &RAGDocs{} }

func (*RAGDocs) ID() string   { return "rag_docs" }
func (*RAGDocs) Name() string { return "RAG Documents" }
func (*RAGDocs) Description() string {
	return "Lists indexed documents via /docs and configures retrieval"
}

func (d *RAGDocs) Init(host *plugin.Host) error {
	if host == nil {
		return nil
	}
	d.index = host.Index
	d.retriever = host.Retriever
	return nil
}

func (d *RAGDocs) ProcessInput(ctx context.Context, text string, pc *plugin.Context) plugin.Result {
	if strings.ToLower(strings.TrimSpace(text)) != "/docs" {
		return plugin.Pass()
	}
	pc.BypassAI = true
	if d.index == nil || d.retriever == nil {
		return plugin.Replace("Document retrieval is not configured.")
	}
	collection, k := d.retriever.Settings()
	return plugin.Replace(fmt.Sprintf("Collection %s holds %d document chunks. Retrieval returns the top %d.",
		collection, d.index.Count(collection), k))
}

func (*RAGDocs) ProcessOutput(context.Context, string, *plugin.Context) plugin.Result {
	return plugin.Pass()
}

func (*RAGDocs) SettingsSchema() map[string]any {
	return map[string]any{
		"collection": map[string]any{"type": "string", "description": "vector collection searched by /rag"},
		"top_k":      map[string]any{"type": "integer", "minimum": 1, "maximum": 20},
	}
}

func (d *RAGDocs) UpdateSettings(s map[string]any) error {
	var collection string
	if v, ok := s["collection"]; ok {
		str, isString := v.(string)
		if !isString || strings.TrimSpace(str) == "" {
			return fmt.Errorf("collection must be a non-empty string")
		}
		collection = str
	}
	var k int
	if v, ok := s["top_k"]; ok {
		n, err := toInt(v)
		if err != nil || n < 1 || n > 20 {
			return fmt.Errorf("top_k must be an integer in 1..20")
		}
		k = n
	}
	if d.retriever != nil {
		d.retriever.Configure(collection, k)
	}
	return nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("not an integer: %v", n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		return int(i), err
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}
