package plugin

import (
	"context"
	"errors"
	"fmt"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/suPer8Hu/personachat/internal/common"
)

type stubUnit struct {
	id       string
	input    func(text string, pc *Context) Result
	output   func(text string, pc *Context) Result
	inCalls  int
	outCalls int
}

func (s *stubUnit) ID() string          { return s.id }
func (s *stubUnit) Name() string        { return s.id }
func (s *stubUnit) Description() string { return "stub " + s.id }

func (s *stubUnit) ProcessInput(ctx context.Context, text string, pc *Context) Result {
	s.inCalls++
	if s.input == nil {
		return Pass()
	}
	return s.input(text, pc)
}

func (s *stubUnit) ProcessOutput(ctx context.Context, text string, pc *Context) Result {
	s.outCalls++
	if s.output == nil {
		return Pass()
	}
	return s.output(text, pc)
}

type configurableUnit struct {
	stubUnit
	applied map[string]any
}

func (c *configurableUnit) SettingsSchema() map[string]any {
	return map[string]any{"greeting": map[string]any{"type": "string"}}
}

func (c *configurableUnit) UpdateSettings(s map[string]any) error {
	if v, ok := s["greeting"]; ok {
		if _, isString := v.(string); !isString {
			return errors.New("greeting must be a string")
		}
	}
	c.applied = s
	return nil
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&State{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func mustAdd(t *testing.T, c *Chain, units ...Unit) {
	t.Helper()
	for _, u := range units {
		if err := c.Add(u, true, nil); err != nil {
			t.Fatalf("add %s: %v", u.ID(), err)
		}
	}
}

func TestRunInput_BypassShortCircuits(t *testing.T) {
	hello := &stubUnit{id: "hello", input: func(text string, pc *Context) Result {
		if text == "/hello" {
			pc.BypassAI = true
			return Replace("Plugin Response: Hello there!")
		}
		return Pass()
	}}
	later := &stubUnit{id: "later"}

	c := NewChain(nil)
	mustAdd(t, c, hello, later)

	pc := NewContext("c1", "groq", "m")
	out := c.RunInput(context.Background(), "/hello", pc)
	if !out.Bypassed || !out.ShortCircuited || out.Text != "Plugin Response: Hello there!" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if later.inCalls != 0 {
		t.Fatalf("units after a bypass must not run")
	}
}

func TestRunInput_EmptyReplacementShortCircuits(t *testing.T) {
	eat := &stubUnit{id: "eat", input: func(string, *Context) Result { return Replace("") }}
	later := &stubUnit{id: "later"}

	c := NewChain(nil)
	mustAdd(t, c, eat, later)

	out := c.RunInput(context.Background(), "anything", NewContext("", "", ""))
	if !out.ShortCircuited || out.Bypassed || out.Text != "" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if later.inCalls != 0 {
		t.Fatalf("units after an empty replacement must not run")
	}
}

func TestRunInput_BypassWithoutReplacement(t *testing.T) {
	flag := &stubUnit{id: "flag", input: func(_ string, pc *Context) Result {
		pc.BypassAI = true
		return Pass()
	}}
	later := &stubUnit{id: "later"}

	c := NewChain(nil)
	mustAdd(t, c, flag, later)

	pc := NewContext("", "", "")
	out := c.RunInput(context.Background(), "as is", pc)
	if !out.Bypassed || out.ShortCircuited || out.Text != "as is" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if later.inCalls != 1 {
		t.Fatalf("without a replacement the phase keeps running")
	}
}

func TestRunInput_LastWriterWins(t *testing.T) {
	a := &stubUnit{id: "a", input: func(text string, _ *Context) Result { return Replace(text + "-a") }}
	b := &stubUnit{id: "b", input: func(text string, _ *Context) Result { return Replace(text + "-b") }}
	none := &stubUnit{id: "none"}

	c := NewChain(nil)
	mustAdd(t, c, a, none, b)

	out := c.RunInput(context.Background(), "x", NewContext("", "", ""))
	if out.Text != "x-a-b" || out.ShortCircuited {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestRunInput_FailuresAreIsolated(t *testing.T) {
	failing := &stubUnit{id: "failing", input: func(_ string, pc *Context) Result {
		pc.BypassAI = true
		return Fail(errors.New("boom"))
	}}
	panicking := &stubUnit{id: "panicking", input: func(string, *Context) Result { panic("kaboom") }}
	upper := &stubUnit{id: "upper", input: func(text string, _ *Context) Result { return Replace(text + "!") }}

	c := NewChain(nil)
	mustAdd(t, c, failing, panicking, upper)

	pc := NewContext("", "", "")
	out := c.RunInput(context.Background(), "hi", pc)
	if out.Text != "hi!" || out.ShortCircuited || out.Bypassed {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if pc.BypassAI {
		t.Fatalf("a failed hook must not leave bypass set")
	}
	if upper.inCalls != 1 {
		t.Fatalf("later unit should still run")
	}
}

func TestRunOutput_EveryUnitRuns(t *testing.T) {
	a := &stubUnit{id: "a", output: func(text string, _ *Context) Result { return Replace("") }}
	b := &stubUnit{id: "b", output: func(string, *Context) Result { panic("bad") }}
	d := &stubUnit{id: "d", output: func(text string, _ *Context) Result { return Replace(text + "done") }}

	c := NewChain(nil)
	mustAdd(t, c, a, b, d)

	got := c.RunOutput(context.Background(), "reply", NewContext("", "", ""))
	if got != "done" {
		t.Fatalf("unexpected output %q", got)
	}
	if a.outCalls != 1 || b.outCalls != 1 || d.outCalls != 1 {
		t.Fatalf("every enabled unit should run once")
	}
}

func TestChain_DisabledUnitsAreSkipped(t *testing.T) {
	a := &stubUnit{id: "a", input: func(text string, _ *Context) Result { return Replace("changed") }}
	c := NewChain(nil)
	mustAdd(t, c, a)

	if err := c.Disable(context.Background(), "a"); err != nil {
		t.Fatalf("disable: %v", err)
	}
	out := c.RunInput(context.Background(), "orig", NewContext("", "", ""))
	if out.Text != "orig" || a.inCalls != 0 {
		t.Fatalf("disabled unit ran: %+v", out)
	}

	if err := c.Enable(context.Background(), "missing"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestChain_StatePersistsAcrossDiscovery(t *testing.T) {
	db := openTestDB(t)
	store := NewGormStateStore(db)
	factories := []Factory{
		func() Unit { return &stubUnit{id: "one"} },
		func() Unit { return &configurableUnit{stubUnit: stubUnit{id: "two"}} },
	}

	chain := Discover(context.Background(), &Host{}, factories, store, nil, nil)
	if err := chain.Disable(context.Background(), "one"); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if err := chain.UpdateSettings(context.Background(), "two", map[string]any{"greeting": "hey"}); err != nil {
		t.Fatalf("update settings: %v", err)
	}

	again := Discover(context.Background(), &Host{}, factories, store, nil, nil)
	list := again.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 plugins, got %d", len(list))
	}
	if list[0].ID != "one" || list[0].Enabled {
		t.Fatalf("expected one to stay disabled: %+v", list[0])
	}
	if list[1].Settings["greeting"] != "hey" {
		t.Fatalf("expected restored settings: %+v", list[1])
	}
}

func TestChain_UpdateSettingsValidation(t *testing.T) {
	c := NewChain(nil)
	plain := &stubUnit{id: "plain"}
	conf := &configurableUnit{stubUnit: stubUnit{id: "conf"}}
	mustAdd(t, c, plain, conf)

	if err := c.UpdateSettings(context.Background(), "plain", map[string]any{"x": 1}); !common.IsConfigurationError(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if err := c.UpdateSettings(context.Background(), "conf", map[string]any{"greeting": 5}); !common.IsConfigurationError(err) {
		t.Fatalf("expected rejected settings, got %v", err)
	}
	if err := c.UpdateSettings(context.Background(), "ghost", nil); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

type brokenStore struct{}

func (brokenStore) LoadAll(context.Context) (map[string]State, error) { return nil, nil }

func (brokenStore) Save(context.Context, string, bool, map[string]any) error {
	return errors.New("disk full")
}

func TestChain_UpdateSettingsRollsBackOnSaveFailure(t *testing.T) {
	c := NewChain(brokenStore{})
	conf := &configurableUnit{stubUnit: stubUnit{id: "conf"}}
	if err := c.Add(conf, true, map[string]any{"greeting": "hi"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := c.UpdateSettings(context.Background(), "conf", map[string]any{"greeting": "hey"}); err == nil {
		t.Fatalf("expected save failure to surface")
	}
	if conf.applied["greeting"] != "hi" {
		t.Fatalf("unit kept unsaved settings: %+v", conf.applied)
	}
	info, err := c.Get("conf")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if info.Settings["greeting"] != "hi" {
		t.Fatalf("chain kept unsaved settings: %+v", info.Settings)
	}
}

type failingInit struct{ stubUnit }

func (f *failingInit) Init(*Host) error { return errors.New("missing dependency") }

func TestDiscover_OrderDisabledAndInitFailures(t *testing.T) {
	factories := []Factory{
		func() Unit { return &stubUnit{id: "a"} },
		func() Unit { return &failingInit{stubUnit{id: "broken"}} },
		func() Unit { return &stubUnit{id: "b"} },
		func() Unit { return &stubUnit{id: "c"} },
	}

	chain := Discover(context.Background(), &Host{}, factories, nil, []string{"c", "a"}, []string{"b"})
	list := chain.List()
	if len(list) != 3 {
		t.Fatalf("expected broken plugin to be skipped, got %d", len(list))
	}
	want := []string{"c", "a", "b"}
	for i, id := range want {
		if list[i].ID != id {
			t.Fatalf("position %d: want %s got %s", i, id, list[i].ID)
		}
	}
	if list[2].Enabled {
		t.Fatalf("b should start disabled")
	}
	if _, err := chain.Get("broken"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("broken plugin should be absent")
	}
}

func TestChain_DuplicateIDRejected(t *testing.T) {
	c := NewChain(nil)
	mustAdd(t, c, &stubUnit{id: "a"})
	if err := c.Add(&stubUnit{id: "a"}, true, nil); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}
