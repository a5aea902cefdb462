package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/suPer8Hu/personachat/internal/ai"
	"github.com/suPer8Hu/personachat/internal/common"
	"github.com/suPer8Hu/personachat/internal/config"
	"github.com/suPer8Hu/personachat/internal/plugin"
	"github.com/suPer8Hu/personachat/internal/rag"
)

const ragInstruction = "Use the following context to answer the user's question:\n"

// ErrAsyncDisabled is returned by SubmitJob when no job publisher is wired.
var ErrAsyncDisabled = errors.New("async chat jobs are disabled")

// Retriever supplies context for a RAG-triggered message. It never fails.
type Retriever interface {
	Retrieve(ctx context.Context, query string) string
}

// JobPublisher hands a queued job id to the worker fleet.
type JobPublisher interface {
	PublishJob(ctx context.Context, jobID string) error
}

type Options struct {
	HistoryLimit    int
	Temperature     float64
	MaxTokens       int
	ProviderTimeout time.Duration
	RAGTrigger      string
	DefaultProvider string
	DefaultModel    string
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		HistoryLimit:    cfg.HistoryLimit,
		Temperature:     cfg.Temperature,
		MaxTokens:       cfg.MaxTokens,
		ProviderTimeout: cfg.ProviderTimeout,
		RAGTrigger:      cfg.RAG.Trigger,
		DefaultProvider: cfg.DefaultProvider,
		DefaultModel:    cfg.DefaultModel,
	}
}

type Service struct {
	store     Store
	jobs      JobStore
	providers *ai.Registry
	chain     *plugin.Chain
	retriever Retriever
	locker    Locker
	publisher JobPublisher
	opts      Options
}

// NewService wires the pipeline. retriever and locker may be nil; a nil
// locker falls back to an in-process KeyedMutex.
func NewService(repo *Repo, providers *ai.Registry, chain *plugin.Chain, retriever Retriever, locker Locker, opts Options) *Service {
	if opts.HistoryLimit <= 0 || opts.HistoryLimit > 100 {
		opts.HistoryLimit = 10
	}
	if opts.ProviderTimeout <= 0 {
		opts.ProviderTimeout = 60 * time.Second
	}
	if locker == nil {
		locker = NewKeyedMutex()
	}
	if chain == nil {
		chain = plugin.NewChain(nil)
	}
	return &Service{
		store:     repo,
		jobs:      repo,
		providers: providers,
		chain:     chain,
		retriever: retriever,
		locker:    locker,
		opts:      opts,
	}
}

// SetPublisher enables SubmitJob.
func (s *Service) SetPublisher(p JobPublisher) { s.publisher = p }

type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
	Provider       string `json:"provider,omitempty"`
	Model          string `json:"model,omitempty"`
}

type ChatResult struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversation_id"`
}

// HandleChat runs one turn: input hooks, optional retrieval, the provider
// call, output hooks, then persistence of the user and assistant messages.
// Nothing is persisted when the provider fails or ctx is cancelled.
func (s *Service) HandleChat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	providerName, model := s.resolveNames(req.Provider, req.Model)
	provider, err := s.providers.Get(providerName)
	if err != nil {
		return nil, err
	}

	convID := strings.TrimSpace(req.ConversationID)
	create := convID == ""
	if create {
		if convID, err = common.NewULID(); err != nil {
			return nil, err
		}
	} else if _, err := s.store.GetConversation(ctx, convID); err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, convID)
	if err != nil {
		return nil, fmt.Errorf("lock conversation %s: %w", convID, err)
	}
	defer unlock()

	var history []ai.Message
	if !create {
		past, err := s.store.ListMessages(ctx, convID, s.opts.HistoryLimit)
		if err != nil {
			return nil, err
		}
		history = make([]ai.Message, 0, len(past)+2)
		for _, m := range past {
			history = append(history, ai.Message{Role: ai.Role(m.Role), Content: m.Content})
		}
	}

	pc := plugin.NewContext(convID, providerName, model)
	in := s.chain.RunInput(ctx, req.Message, pc)
	userText := in.Text

	// an empty replacement only ends the hook phase; the provider still runs
	if in.Bypassed || pc.BypassAI {
		if err := s.store.SaveTurn(ctx, convID, create, &Message{Role: RoleUser, Content: userText}); err != nil {
			return nil, err
		}
		return &ChatResult{Response: userText, ConversationID: convID}, nil
	}

	var userMeta map[string]any
	var ragContext string
	if query, ok := rag.MatchTrigger(userText, s.opts.RAGTrigger); ok {
		userMeta = map[string]any{"rag_trigger": strings.TrimSpace(userText)}
		userText = query
		if s.retriever != nil {
			ragContext = s.retriever.Retrieve(ctx, query)
		}
	}

	msgs := history
	if ragContext != "" {
		msgs = append(msgs, ai.Message{Role: ai.RoleSystem, Content: ragInstruction + ragContext})
	}
	msgs = append(msgs, ai.Message{Role: ai.RoleUser, Content: userText})

	pctx, cancel := context.WithTimeout(ctx, s.opts.ProviderTimeout)
	reply, err := provider.Generate(pctx, ai.GenerateRequest{
		Messages:    msgs,
		Model:       model,
		Temperature: s.opts.Temperature,
		MaxTokens:   s.opts.MaxTokens,
	})
	cancel()
	if err != nil {
		log.Printf("[HandleChat] provider=%s model=%s conversation=%s err=%v", providerName, model, convID, err)
		return nil, err
	}

	final := s.chain.RunOutput(ctx, reply, pc)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	assistant := &Message{
		Role:     RoleAssistant,
		Content:  final,
		Metadata: map[string]any{"provider": providerName},
	}
	if model != "" {
		assistant.ModelUsed = &model
	}
	user := &Message{Role: RoleUser, Content: userText, Metadata: userMeta}
	if err := s.store.SaveTurn(ctx, convID, create, user, assistant); err != nil {
		return nil, err
	}
	return &ChatResult{Response: final, ConversationID: convID}, nil
}

func (s *Service) resolveNames(provider, model string) (string, string) {
	provider = strings.TrimSpace(provider)
	model = strings.TrimSpace(model)
	if provider == "" {
		provider = s.opts.DefaultProvider
		if model == "" {
			model = s.opts.DefaultModel
		}
	}
	return provider, model
}

func (s *Service) CreateConversation(ctx context.Context, title string) (*Conversation, error) {
	return s.store.CreateConversation(ctx, title)
}

func (s *Service) ListConversations(ctx context.Context) ([]Conversation, error) {
	return s.store.ListConversations(ctx)
}

// History returns the conversation's messages, oldest first.
func (s *Service) History(ctx context.Context, convID string, limit int) ([]Message, error) {
	if _, err := s.store.GetConversation(ctx, convID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, convID, limit)
}

func (s *Service) DeleteConversation(ctx context.Context, convID string) error {
	ok, err := s.store.DeleteConversation(ctx, convID)
	if err != nil {
		return err
	}
	if !ok {
		return common.NewNotFound("conversation", convID)
	}
	return nil
}

func (s *Service) RenameConversation(ctx context.Context, convID, title string) error {
	if strings.TrimSpace(title) == "" {
		return common.NewConfigurationError("title", "title must not be empty")
	}
	ok, err := s.store.RenameConversation(ctx, convID, title)
	if err != nil {
		return err
	}
	if !ok {
		return common.NewNotFound("conversation", convID)
	}
	return nil
}

// SubmitJob validates req, records a queued job and publishes it.
func (s *Service) SubmitJob(ctx context.Context, req ChatRequest) (*Job, error) {
	if s.publisher == nil {
		return nil, ErrAsyncDisabled
	}
	providerName, model := s.resolveNames(req.Provider, req.Model)
	if _, err := s.providers.Get(providerName); err != nil {
		return nil, err
	}
	if req.ConversationID != "" {
		if _, err := s.store.GetConversation(ctx, req.ConversationID); err != nil {
			return nil, err
		}
	}

	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	job := &Job{
		ID:             id,
		ConversationID: req.ConversationID,
		Message:        req.Message,
		Provider:       providerName,
		Model:          model,
		Status:         JobQueued,
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	if err := s.publisher.PublishJob(ctx, job.ID); err != nil {
		_ = s.jobs.MarkJobFailed(ctx, job.ID, "publish failed: "+err.Error())
		return nil, fmt.Errorf("publish job %s: %w", job.ID, err)
	}
	return job, nil
}

func (s *Service) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.jobs.GetJob(ctx, id)
}

// RunJob executes a queued job. Pipeline failures are recorded on the job
// and are not returned; a returned error means the job state could not be
// read or written and the delivery should be retried.
func (s *Service) RunJob(ctx context.Context, jobID string) error {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	claimed, err := s.jobs.MarkJobRunning(ctx, jobID)
	if err != nil {
		return err
	}
	if !claimed {
		log.Printf("[RunJob] job=%s already %s, skipping", jobID, job.Status)
		return nil
	}

	res, err := s.HandleChat(ctx, ChatRequest{
		Message:        job.Message,
		ConversationID: job.ConversationID,
		Provider:       job.Provider,
		Model:          job.Model,
	})

	// status writes must land even when the worker is shutting down
	wctx := context.WithoutCancel(ctx)
	if err != nil {
		if ctx.Err() != nil {
			// interrupted, not failed: hand the job back for redelivery
			if rerr := s.jobs.ReleaseJob(wctx, jobID); rerr != nil {
				log.Printf("[RunJob] release job=%s: %v", jobID, rerr)
			}
			return ctx.Err()
		}
		return s.jobs.MarkJobFailed(wctx, jobID, err.Error())
	}
	return s.jobs.MarkJobSucceeded(wctx, jobID, res.ConversationID, res.Response)
}
