package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/suPer8Hu/personachat/internal/common"
)

// OpenAICompatProvider serves any backend that speaks the OpenAI chat
// completions API (Groq, Together, OpenAI itself).
type OpenAICompatProvider struct {
	name   string
	apiKey string
	client *openai.Client
	models []string
	// liveModels asks the backend for its catalog before using models.
	liveModels bool
}

func NewOpenAICompatProvider(name, baseURL, apiKey string, models []string, liveModels bool) (*OpenAICompatProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, missingKey(name)
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAICompatProvider{
		name:       name,
		apiKey:     apiKey,
		client:     openai.NewClientWithConfig(cfg),
		models:     models,
		liveModels: liveModels,
	}, nil
}

func NewGroqProvider(baseURL, apiKey string) (*OpenAICompatProvider, error) {
	return NewOpenAICompatProvider("groq", baseURL, apiKey,
		[]string{"llama3-8b-8192", "mixtral-8x7b-32768"}, false)
}

func NewTogetherProvider(baseURL, apiKey string) (*OpenAICompatProvider, error) {
	return NewOpenAICompatProvider("together", baseURL, apiKey, []string{
		"togethercomputer/llama-2-70b-chat",
		"togethercomputer/llama-3-70b",
		"mistralai/Mixtral-8x7B-Instruct-v0.1",
	}, false)
}

func NewOpenAIProvider(baseURL, apiKey string) (*OpenAICompatProvider, error) {
	return NewOpenAICompatProvider("openai", baseURL, apiKey,
		[]string{"gpt-4o-mini", "gpt-4o"}, true)
}

func (p *OpenAICompatProvider) Name() string { return p.name }

func (p *OpenAICompatProvider) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if p.client == nil || strings.TrimSpace(p.apiKey) == "" {
		return "", missingKey(p.name)
	}
	if strings.TrimSpace(req.Model) == "" {
		return "", common.NewConfigurationError(p.name, "model is required")
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(clampTemperature(req.Temperature)),
	})
	if err != nil {
		return "", p.translate(err)
	}
	if len(resp.Choices) == 0 {
		return "", &common.ProviderError{Provider: p.name, Status: http.StatusOK, Msg: "empty response"}
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAICompatProvider) ListModels(ctx context.Context) []string {
	if !p.liveModels {
		return p.models
	}
	list, err := p.client.ListModels(ctx)
	if err != nil || len(list.Models) == 0 {
		return p.models
	}
	out := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		out = append(out, m.ID)
	}
	return out
}

func (p *OpenAICompatProvider) translate(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &common.ProviderError{Provider: p.name, Status: apiErr.HTTPStatusCode, Msg: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &common.ProviderError{Provider: p.name, Status: reqErr.HTTPStatusCode, Msg: reqErr.Error(), Err: err}
	}
	return transportError(p.name, err)
}
