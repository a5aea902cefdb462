package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/suPer8Hu/personachat/internal/common"
)

var geminiModels = []string{"gemini-pro", "gemini-1.5-pro", "gemini-ultra"}

// GeminiProvider uses the Google Generative AI SDK. System messages are sent
// as the model's system instruction.
type GeminiProvider struct {
	apiKey string
	client *genai.Client
}

func NewGeminiProvider(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, missingKey("google")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiProvider{apiKey: apiKey, client: client}, nil
}

func (p *GeminiProvider) Name() string { return "google" }

func (p *GeminiProvider) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}

func (p *GeminiProvider) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if p.client == nil || strings.TrimSpace(p.apiKey) == "" {
		return "", missingKey("google")
	}
	if strings.TrimSpace(req.Model) == "" {
		return "", common.NewConfigurationError("google", "model is required")
	}

	system, history, last, err := splitGeminiTurns(req.Messages)
	if err != nil {
		return "", err
	}

	model := p.client.GenerativeModel(req.Model)
	model.SetTemperature(float32(clampTemperature(req.Temperature)))
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if len(system) > 0 {
		model.SystemInstruction = &genai.Content{Parts: system}
	}

	cs := model.StartChat()
	cs.History = history

	resp, err := cs.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return "", translateGemini(err)
	}

	var b strings.Builder
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
	}
	if b.Len() == 0 {
		return "", &common.ProviderError{Provider: "google", Msg: "empty response"}
	}
	return b.String(), nil
}

func (p *GeminiProvider) ListModels(context.Context) []string { return geminiModels }

// splitGeminiTurns separates system text from the chat history and pulls out
// the final user turn that SendMessage needs.
func splitGeminiTurns(msgs []Message) (system []genai.Part, history []*genai.Content, last string, err error) {
	lastUser := -1
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser {
			lastUser = i
			break
		}
	}
	if lastUser < 0 {
		return nil, nil, "", &common.ProviderError{Provider: "google", Msg: "no user message to send"}
	}

	for i, m := range msgs {
		if i == lastUser {
			continue
		}
		switch m.Role {
		case RoleSystem:
			system = append(system, genai.Text(m.Content))
		case RoleUser:
			history = append(history, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Content)}})
		case RoleAssistant:
			history = append(history, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(m.Content)}})
		}
	}
	return system, history, msgs[lastUser].Content, nil
}

func translateGemini(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &common.ProviderError{Provider: "google", Status: gerr.Code, Msg: gerr.Message, Err: err}
	}
	return transportError("google", err)
}
