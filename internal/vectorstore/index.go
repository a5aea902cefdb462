package vectorstore

import "context"

// Document is one stored chunk. Embedding is always precomputed by the caller.
type Document struct {
	ID        string
	Content   string
	Metadata  map[string]string
	Embedding []float32
}

type Hit struct {
	ID       string
	Content  string
	Metadata map[string]string
	Score    float32
}

// Index is a store of named collections of embedded documents.
type Index interface {
	// EnsureCollection creates the collection if it is missing.
	EnsureCollection(ctx context.Context, name string, dim int) error
	Upsert(ctx context.Context, collection string, docs []Document) error
	// Search returns at most k hits ordered by descending similarity. A
	// missing or empty collection yields no hits and no error.
	Search(ctx context.Context, collection string, vec []float32, k int) ([]Hit, error)
	Count(collection string) int
	DeleteCollection(name string) error
}
