package plugin

import (
	"context"

	"github.com/suPer8Hu/personachat/internal/ai"
	"github.com/suPer8Hu/personachat/internal/config"
	"github.com/suPer8Hu/personachat/internal/embeddings"
	"github.com/suPer8Hu/personachat/internal/rag"
	"github.com/suPer8Hu/personachat/internal/vectorstore"
)

// Context is shared by every hook of one request. A unit sets BypassAI to
// answer the user itself.
type Context struct {
	ConversationID string
	Provider       string
	Model          string
	BypassAI       bool
	Values         map[string]any
}

func NewContext(conversationID, provider, model string) *Context {
	return &Context{
		ConversationID: conversationID,
		Provider:       provider,
		Model:          model,
		Values:         make(map[string]any),
	}
}

// Result is what a hook returns. A nil Text with a nil Err means no change.
type Result struct {
	Text *string
	Err  error
}

func Replace(text string) Result { return Result{Text: &text} }

func Pass() Result { return Result{} }

func Fail(err error) Result { return Result{Err: err} }

type Unit interface {
	ID() string
	Name() string
	Description() string
	ProcessInput(ctx context.Context, text string, pc *Context) Result
	ProcessOutput(ctx context.Context, text string, pc *Context) Result
}

// Configurable units expose runtime settings.
type Configurable interface {
	SettingsSchema() map[string]any
	UpdateSettings(settings map[string]any) error
}

// Initializer units receive the host collaborators once at discovery.
type Initializer interface {
	Init(host *Host) error
}

// Host carries what plugins may use. Nil fields are features that are not
// configured.
type Host struct {
	Config    *config.Config
	Providers *ai.Registry
	Index     vectorstore.Index
	Embedder  embeddings.Embedder
	Ingestor  *rag.Ingestor
	Retriever *rag.Retriever
}

type Factory func() Unit
