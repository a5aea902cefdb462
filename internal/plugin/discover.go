package plugin

import (
	"context"
	"log"
	"sort"
)

// Discover instantiates every factory, initializes it against host and
// restores its persisted state. Units listed in order come first, in that
// order; the rest keep factory order. Units in disabled start disabled
// unless a stored state says otherwise. A unit whose Init fails is left out.
func Discover(ctx context.Context, host *Host, factories []Factory, store StateStore, order, disabled []string) *Chain {
	chain := NewChain(store)

	states := map[string]State{}
	if store != nil {
		loaded, err := store.LoadAll(ctx)
		if err != nil {
			log.Printf("[plugin] load states failed, using defaults: %v", err)
		} else {
			states = loaded
		}
	}

	units := make([]Unit, 0, len(factories))
	for _, f := range factories {
		u := f()
		if in, ok := u.(Initializer); ok {
			if err := in.Init(host); err != nil {
				log.Printf("[plugin] %s skipped: init failed: %v", u.ID(), err)
				continue
			}
		}
		units = append(units, u)
	}

	rank := make(map[string]int, len(order))
	for i, id := range order {
		rank[id] = i
	}
	sort.SliceStable(units, func(i, j int) bool {
		ri, iok := rank[units[i].ID()]
		rj, jok := rank[units[j].ID()]
		switch {
		case iok && jok:
			return ri < rj
		case iok:
			return true
		default:
			return false
		}
	})

	off := make(map[string]bool, len(disabled))
	for _, id := range disabled {
		off[id] = true
	}

	for _, u := range units {
		enabled := !off[u.ID()]
		var settings map[string]any
		if st, ok := states[u.ID()]; ok {
			enabled = st.Enabled
			s, err := st.Settings()
			if err != nil {
				log.Printf("[plugin] %v", err)
			} else if cfg, ok := u.(Configurable); ok && len(s) > 0 {
				if err := cfg.UpdateSettings(s); err != nil {
					log.Printf("[plugin] %s stored settings rejected: %v", u.ID(), err)
				} else {
					settings = s
				}
			}
		}
		if err := chain.Add(u, enabled, settings); err != nil {
			log.Printf("[plugin] %v", err)
			continue
		}
		log.Printf("[plugin] registered %s enabled=%v", u.ID(), enabled)
	}
	return chain
}
