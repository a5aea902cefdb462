package rag

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/suPer8Hu/personachat/internal/common"
	"github.com/suPer8Hu/personachat/internal/embeddings"
	"github.com/suPer8Hu/personachat/internal/vectorstore"
)

type Ingestor struct {
	Embedder     embeddings.Embedder
	Index        vectorstore.Index
	ChunkSize    int
	ChunkOverlap int
}

// Ingest chunks text, embeds every chunk and upserts it into collection
// under fresh ids. It returns the number of stored chunks.
func (in *Ingestor) Ingest(ctx context.Context, collection, source, text string) (int, error) {
	if in.Embedder == nil {
		return 0, common.NewConfigurationError("embedding", "no embedder configured")
	}
	chunks := Split(text, in.ChunkSize, in.ChunkOverlap)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("document %s contains no text", source)
	}

	vecs, err := in.Embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return 0, &common.RetrievalError{Stage: "embed", Err: err}
	}
	if len(vecs) != len(chunks) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vecs), len(chunks))
	}

	dim := in.Embedder.Dimensions()
	if dim == 0 {
		dim = len(vecs[0])
	}
	if err := in.Index.EnsureCollection(ctx, collection, dim); err != nil {
		return 0, err
	}

	docs := make([]vectorstore.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = vectorstore.Document{
			ID:        uuid.NewString(),
			Content:   c,
			Metadata:  map[string]string{"source": source},
			Embedding: vecs[i],
		}
	}
	if err := in.Index.Upsert(ctx, collection, docs); err != nil {
		return 0, err
	}
	return len(docs), nil
}
