package ai

import (
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/suPer8Hu/personachat/internal/common"
)

type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (r *Registry) Register(p Provider) {
	name := normalize(p.Name())
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

// Get resolves a provider case-insensitively. Unknown names never fall back
// to another provider.
func (r *Registry) Get(name string) (Provider, error) {
	key := normalize(name)
	r.mu.RLock()
	p, ok := r.providers[key]
	r.mu.RUnlock()
	if !ok {
		return nil, common.NewNotFound("provider", name)
	}
	return p, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.providers))
	for name := range r.providers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Close releases SDK clients held by registered providers.
func (r *Registry) Close() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var first error
	for _, p := range r.providers {
		if u, ok := p.(interface{ Unwrap() Provider }); ok {
			p = u.Unwrap()
		}
		if c, ok := p.(io.Closer); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}
