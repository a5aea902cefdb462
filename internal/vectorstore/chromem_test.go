package vectorstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, idx *ChromemIndex) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, idx.EnsureCollection(ctx, "docs", 3))
	require.NoError(t, idx.Upsert(ctx, "docs", []Document{
		{ID: "a", Content: "alpha", Metadata: map[string]string{"source": "a.txt"}, Embedding: []float32{1, 0, 0}},
		{ID: "b", Content: "beta", Metadata: map[string]string{"source": "b.txt"}, Embedding: []float32{0, 1, 0}},
		{ID: "c", Content: "gamma", Metadata: map[string]string{"source": "c.txt"}, Embedding: []float32{0.9, 0.1, 0}},
	}))
}

func TestChromemIndex_SearchOrdersBySimilarity(t *testing.T) {
	idx := NewChromemIndex()
	seed(t, idx)

	hits, err := idx.Search(context.Background(), "docs", []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.Equal(t, "a", hits[0].ID)
	require.Equal(t, "c", hits[1].ID)
	require.GreaterOrEqual(t, hits[0].Score, hits[1].Score)
	require.Equal(t, "a.txt", hits[0].Metadata["source"])
}

func TestChromemIndex_KLargerThanCollection(t *testing.T) {
	idx := NewChromemIndex()
	seed(t, idx)

	hits, err := idx.Search(context.Background(), "docs", []float32{0, 1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	require.Equal(t, 3, idx.Count("docs"))
}

func TestChromemIndex_MissingCollectionIsEmpty(t *testing.T) {
	idx := NewChromemIndex()
	hits, err := idx.Search(context.Background(), "nope", []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	require.Empty(t, hits)
	require.Equal(t, 0, idx.Count("nope"))
}

func TestChromemIndex_RejectsWrongDimension(t *testing.T) {
	idx := NewChromemIndex()
	seed(t, idx)

	err := idx.Upsert(context.Background(), "docs", []Document{{ID: "d", Content: "x", Embedding: []float32{1, 0}}})
	require.Error(t, err)
	require.Error(t, idx.EnsureCollection(context.Background(), "docs", 5))

	err = idx.Upsert(context.Background(), "docs", []Document{{ID: "e", Content: "no vector"}})
	require.ErrorIs(t, err, errNoEmbedder)
}

func TestChromemIndex_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "vectors.gob.gz")

	idx := NewChromemIndex()
	seed(t, idx)
	require.NoError(t, idx.Save(path))

	loaded := NewChromemIndex()
	require.NoError(t, loaded.Load(path))
	require.Equal(t, 3, loaded.Count("docs"))

	hits, err := loaded.Search(context.Background(), "docs", []float32{0, 1, 0}, 1)
	require.NoError(t, err)
	require.Equal(t, "beta", hits[0].Content)
}

func TestChromemIndex_LoadMissingFile(t *testing.T) {
	idx := NewChromemIndex()
	require.NoError(t, idx.Load(filepath.Join(t.TempDir(), "absent.gob.gz")))
	require.Equal(t, 0, idx.Count("docs"))
}

func TestChromemIndex_DeleteCollection(t *testing.T) {
	idx := NewChromemIndex()
	seed(t, idx)
	require.NoError(t, idx.DeleteCollection("docs"))
	require.Equal(t, 0, idx.Count("docs"))
}

func TestChromemIndex_ConcurrentWritersKeepEachOthersDocuments(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.gob.gz")

	base := NewChromemIndex()
	seed(t, base)
	require.NoError(t, base.Save(path))

	// a long running server and a one-shot ingest both start from the same snapshot
	server := NewChromemIndex()
	require.NoError(t, server.Load(path))
	ingest := NewChromemIndex()
	require.NoError(t, ingest.Load(path))

	require.NoError(t, ingest.EnsureCollection(ctx, "docs", 3))
	require.NoError(t, ingest.Upsert(ctx, "docs", []Document{{ID: "d", Content: "delta", Embedding: []float32{0, 0, 1}}}))
	require.NoError(t, ingest.Save(path))

	require.NoError(t, server.EnsureCollection(ctx, "docs", 3))
	require.NoError(t, server.Upsert(ctx, "docs", []Document{{ID: "e", Content: "epsilon", Embedding: []float32{0, 1, 1}}}))
	require.NoError(t, server.Save(path))
	require.Equal(t, 5, server.Count("docs"))

	fresh := NewChromemIndex()
	require.NoError(t, fresh.Load(path))
	require.Equal(t, 5, fresh.Count("docs"))

	hits, err := fresh.Search(ctx, "docs", []float32{0, 0, 1}, 1)
	require.NoError(t, err)
	require.Equal(t, "delta", hits[0].Content)
}

func TestChromemIndex_SavedDeletionSticks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.gob.gz")

	idx := NewChromemIndex()
	seed(t, idx)
	require.NoError(t, idx.Save(path))

	require.NoError(t, idx.DeleteCollection("docs"))
	require.NoError(t, idx.Save(path))

	fresh := NewChromemIndex()
	require.NoError(t, fresh.Load(path))
	require.Equal(t, 0, fresh.Count("docs"))
}
