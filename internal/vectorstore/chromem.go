package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	chromem "github.com/philippgille/chromem-go"
)

var errNoEmbedder = errors.New("vectorstore: documents must carry a precomputed embedding")

// precomputed is handed to chromem so that a missing vector fails loudly
// instead of triggering a remote embedding call.
func precomputed(context.Context, string) ([]float32, error) {
	return nil, errNoEmbedder
}

// ChromemIndex keeps collections in memory and snapshots them to a gzipped
// gob file. The sidecar lock file serialises writers; Save re-reads the
// snapshot under that lock and replays only this index's own changes on top,
// so a server and an ingest run sharing the file keep each other's documents.
type ChromemIndex struct {
	mu   sync.RWMutex
	db   *chromem.DB
	dims map[string]int

	// changes made since the last Load or Save
	pendingMu sync.Mutex
	added     map[string][]chromem.Document
	deleted   map[string]bool
}

func NewChromemIndex() *ChromemIndex {
	s := &ChromemIndex{db: chromem.NewDB(), dims: make(map[string]int)}
	s.resetPending()
	return s
}

func (s *ChromemIndex) resetPending() {
	s.pendingMu.Lock()
	s.added = make(map[string][]chromem.Document)
	s.deleted = make(map[string]bool)
	s.pendingMu.Unlock()
}

func (s *ChromemIndex) EnsureCollection(ctx context.Context, name string, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if have, ok := s.dims[name]; ok && dim > 0 && have > 0 && have != dim {
		return fmt.Errorf("collection %q has dimension %d, got %d", name, have, dim)
	}
	md := map[string]string{}
	if dim > 0 {
		md["dimension"] = strconv.Itoa(dim)
	}
	if _, err := s.db.GetOrCreateCollection(name, md, precomputed); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	if dim > 0 {
		s.dims[name] = dim
	}
	s.pendingMu.Lock()
	delete(s.deleted, name)
	s.pendingMu.Unlock()
	return nil
}

func (s *ChromemIndex) Upsert(ctx context.Context, collection string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	// held for the whole write so Save cannot swap the collection underneath
	s.mu.RLock()
	defer s.mu.RUnlock()
	col := s.db.GetCollection(collection, precomputed)
	dim := s.dims[collection]
	if col == nil {
		return fmt.Errorf("collection %q does not exist", collection)
	}

	chromDocs := make([]chromem.Document, len(docs))
	for i, d := range docs {
		if len(d.Embedding) == 0 {
			return errNoEmbedder
		}
		if dim > 0 && len(d.Embedding) != dim {
			return fmt.Errorf("document %s has dimension %d, collection expects %d", d.ID, len(d.Embedding), dim)
		}
		chromDocs[i] = chromem.Document{
			ID:        d.ID,
			Content:   d.Content,
			Metadata:  d.Metadata,
			Embedding: d.Embedding,
		}
	}
	if err := col.AddDocuments(ctx, chromDocs, runtime.NumCPU()); err != nil {
		return err
	}
	s.pendingMu.Lock()
	s.added[collection] = append(s.added[collection], chromDocs...)
	s.pendingMu.Unlock()
	return nil
}

func (s *ChromemIndex) Search(ctx context.Context, collection string, vec []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	col := s.db.GetCollection(collection, precomputed)
	s.mu.RUnlock()
	if col == nil {
		return nil, nil
	}

	// chromem-go requires nResults <= collection size.
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := col.QueryEmbedding(ctx, vec, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}
	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = Hit{ID: r.ID, Content: r.Content, Metadata: r.Metadata, Score: r.Similarity}
	}
	return hits, nil
}

func (s *ChromemIndex) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col := s.db.GetCollection(collection, precomputed)
	if col == nil {
		return 0
	}
	return col.Count()
}

func (s *ChromemIndex) DeleteCollection(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.dims, name)
	s.pendingMu.Lock()
	delete(s.added, name)
	s.deleted[name] = true
	s.pendingMu.Unlock()
	return s.db.DeleteCollection(name)
}

// Save writes every collection to path, gzipped when path ends in .gz.
// Documents another process saved since this index last read the file are
// kept: the snapshot is reloaded first and local changes are applied on top.
func (s *ChromemIndex) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock %s: %w", path, err)
	}
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mergeFromFile(path); err != nil {
		return err
	}
	if err := s.db.ExportToFile(path, strings.HasSuffix(path, ".gz"), ""); err != nil {
		return err
	}
	s.resetPending()
	return nil
}

// mergeFromFile replaces the collections found at path with their on-disk
// state and replays pending changes. Callers hold s.mu and the file lock.
func (s *ChromemIndex) mergeFromFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := s.db.ImportFromFile(path, ""); err != nil {
		return fmt.Errorf("import from file: %w", err)
	}

	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	for name := range s.deleted {
		if err := s.db.DeleteCollection(name); err != nil {
			return fmt.Errorf("delete collection %q: %w", name, err)
		}
	}
	for name, docs := range s.added {
		md := map[string]string{}
		if dim := s.dims[name]; dim > 0 {
			md["dimension"] = strconv.Itoa(dim)
		}
		col, err := s.db.GetOrCreateCollection(name, md, precomputed)
		if err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
		if err := col.AddDocuments(context.Background(), docs, runtime.NumCPU()); err != nil {
			return fmt.Errorf("replay %q: %w", name, err)
		}
	}
	return nil
}

// Load replaces the in-memory collections with the snapshot at path. A
// missing file leaves the index empty.
func (s *ChromemIndex) Load(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	lock := flock.New(path + ".lock")
	if err := lock.RLock(); err != nil {
		return fmt.Errorf("lock %s: %w", path, err)
	}
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.ImportFromFile(path, ""); err != nil {
		return fmt.Errorf("import from file: %w", err)
	}
	s.dims = make(map[string]int)
	s.resetPending()
	return nil
}
