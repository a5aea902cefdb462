package plugin

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/suPer8Hu/personachat/internal/common"
)

const (
	PhaseInput  = "input"
	PhaseOutput = "output"
)

type entry struct {
	unit     Unit
	enabled  bool
	settings map[string]any
}

// Chain runs enabled units in registration order. Mutations take the write
// lock; each phase runs over a snapshot taken under the read lock.
type Chain struct {
	mu      sync.RWMutex
	entries []*entry
	byID    map[string]*entry
	store   StateStore
}

func NewChain(store StateStore) *Chain {
	return &Chain{byID: make(map[string]*entry), store: store}
}

// Add appends u to the chain. A duplicate id is rejected.
func (c *Chain) Add(u Unit, enabled bool, settings map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.byID[u.ID()]; dup {
		return fmt.Errorf("plugin %s already registered", u.ID())
	}
	if settings == nil {
		settings = map[string]any{}
	}
	e := &entry{unit: u, enabled: enabled, settings: settings}
	c.entries = append(c.entries, e)
	c.byID[u.ID()] = e
	return nil
}

func (c *Chain) enabledUnits() []Unit {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Unit, 0, len(c.entries))
	for _, e := range c.entries {
		if e.enabled {
			out = append(out, e.unit)
		}
	}
	return out
}

type InputOutcome struct {
	Text string
	// ShortCircuited is set when a unit ended the phase early.
	ShortCircuited bool
	// Bypassed means Text is the final response and no model is called. It
	// is also set when a unit raised BypassAI without replacing the text.
	Bypassed bool
}

func (c *Chain) RunInput(ctx context.Context, text string, pc *Context) InputOutcome {
	current := text
	for _, u := range c.enabledUnits() {
		bypass := pc.BypassAI
		res := invoke(ctx, u, PhaseInput, current, pc)
		if res.Err != nil {
			pc.BypassAI = bypass
			logFailure(u, PhaseInput, res.Err)
			continue
		}
		if res.Text == nil {
			continue
		}
		current = *res.Text
		if pc.BypassAI {
			return InputOutcome{Text: current, ShortCircuited: true, Bypassed: true}
		}
		if current == "" {
			return InputOutcome{Text: "", ShortCircuited: true}
		}
	}
	return InputOutcome{Text: current, Bypassed: pc.BypassAI}
}

func (c *Chain) RunOutput(ctx context.Context, text string, pc *Context) string {
	current := text
	for _, u := range c.enabledUnits() {
		res := invoke(ctx, u, PhaseOutput, current, pc)
		if res.Err != nil {
			logFailure(u, PhaseOutput, res.Err)
			continue
		}
		if res.Text != nil {
			current = *res.Text
		}
	}
	return current
}

// invoke runs one hook and turns a panic into a failed Result.
func invoke(ctx context.Context, u Unit, phase, text string, pc *Context) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Fail(fmt.Errorf("panic: %v", r))
		}
	}()
	if phase == PhaseInput {
		return u.ProcessInput(ctx, text, pc)
	}
	return u.ProcessOutput(ctx, text, pc)
}

func logFailure(u Unit, phase string, err error) {
	log.Printf("[plugin] %v", &common.PluginExecutionError{Plugin: u.ID(), Phase: phase, Err: err})
}

type Info struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	Enabled        bool           `json:"enabled"`
	SettingsSchema map[string]any `json:"settings_schema,omitempty"`
	Settings       map[string]any `json:"settings,omitempty"`
}

func (c *Chain) List() []Info {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Info, 0, len(c.entries))
	for _, e := range c.entries {
		info := Info{
			ID:          e.unit.ID(),
			Name:        e.unit.Name(),
			Description: e.unit.Description(),
			Enabled:     e.enabled,
		}
		if cfg, ok := e.unit.(Configurable); ok {
			info.SettingsSchema = cfg.SettingsSchema()
			info.Settings = copySettings(e.settings)
		}
		out = append(out, info)
	}
	return out
}

func (c *Chain) Get(id string) (Info, error) {
	for _, info := range c.List() {
		if info.ID == id {
			return info, nil
		}
	}
	return Info{}, common.NewNotFound("plugin", id)
}

func (c *Chain) Enable(ctx context.Context, id string) error  { return c.setEnabled(ctx, id, true) }
func (c *Chain) Disable(ctx context.Context, id string) error { return c.setEnabled(ctx, id, false) }

func (c *Chain) setEnabled(ctx context.Context, id string, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.byID[id]
	if !ok {
		return common.NewNotFound("plugin", id)
	}
	if err := c.persist(ctx, id, enabled, e.settings); err != nil {
		return err
	}
	e.enabled = enabled
	return nil
}

// UpdateSettings merges settings into the unit's current settings, applies
// them and persists the result. A failed save restores the previous settings.
func (c *Chain) UpdateSettings(ctx context.Context, id string, settings map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.byID[id]
	if !ok {
		return common.NewNotFound("plugin", id)
	}
	cfg, ok := e.unit.(Configurable)
	if !ok {
		return common.NewConfigurationError("plugin "+id, "plugin has no settings")
	}

	merged := copySettings(e.settings)
	for k, v := range settings {
		merged[k] = v
	}
	if err := cfg.UpdateSettings(merged); err != nil {
		return common.NewConfigurationError("plugin "+id, err.Error())
	}
	if err := c.persist(ctx, id, e.enabled, merged); err != nil {
		// the unit must not run with settings the store never recorded
		if rerr := cfg.UpdateSettings(e.settings); rerr != nil {
			log.Printf("[plugin] restore settings for %s failed: %v", id, rerr)
		}
		return err
	}
	e.settings = merged
	return nil
}

func (c *Chain) persist(ctx context.Context, id string, enabled bool, settings map[string]any) error {
	if c.store == nil {
		return nil
	}
	if err := c.store.Save(ctx, id, enabled, settings); err != nil {
		return fmt.Errorf("save plugin state %s: %w", id, err)
	}
	return nil
}

func copySettings(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
