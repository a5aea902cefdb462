package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/suPer8Hu/personachat/internal/common"
)

var openRouterFallbackModels = []string{"gpt-3.5-turbo", "gpt-4", "claude-2"}

type OpenRouterProvider struct {
	BaseURL string
	APIKey  string
	SiteURL string
	AppName string
	Client  *http.Client
}

type openRouterMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openRouterChatReq struct {
	Model       string          `json:"model"`
	Messages    []openRouterMsg `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Stream      bool            `json:"stream"`
}

type openRouterChatResp struct {
	Choices []struct {
		Message openRouterMsg `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type openRouterModelsResp struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

func NewOpenRouterProvider(baseURL, apiKey, siteURL, appName string) (*OpenRouterProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, missingKey("openrouter")
	}
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	return &OpenRouterProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		SiteURL: siteURL,
		AppName: appName,
		Client:  &http.Client{Timeout: 90 * time.Second},
	}, nil
}

func (p *OpenRouterProvider) Name() string { return "openrouter" }

func (p *OpenRouterProvider) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if strings.TrimSpace(p.APIKey) == "" {
		return "", missingKey("openrouter")
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		return "", common.NewConfigurationError("openrouter", "model is required")
	}

	reqBody := openRouterChatReq{
		Model:       model,
		Temperature: clampTemperature(req.Temperature),
		MaxTokens:   req.MaxTokens,
		Messages: func() []openRouterMsg {
			out := make([]openRouterMsg, 0, len(req.Messages))
			for _, m := range req.Messages {
				out = append(out, openRouterMsg{Role: string(m.Role), Content: m.Content})
			}
			return out
		}(),
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/chat/completions", p.BaseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.APIKey)
	if p.SiteURL != "" {
		httpReq.Header.Set("HTTP-Referer", p.SiteURL)
	}
	if p.AppName != "" {
		httpReq.Header.Set("X-Title", p.AppName)
	}

	resp, err := p.Client.Do(httpReq)
	if err != nil {
		return "", transportError("openrouter", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", statusError("openrouter", resp)
	}

	var decoded openRouterChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", &common.ProviderError{Provider: "openrouter", Status: resp.StatusCode, Msg: "decode response", Err: err}
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", &common.ProviderError{Provider: "openrouter", Status: resp.StatusCode, Msg: decoded.Error.Message}
	}
	if len(decoded.Choices) == 0 {
		return "", &common.ProviderError{Provider: "openrouter", Status: resp.StatusCode, Msg: "empty response"}
	}
	return decoded.Choices[0].Message.Content, nil
}

// ListModels queries the public model catalog.
func (p *OpenRouterProvider) ListModels(ctx context.Context) []string {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"/models", nil)
	if err != nil {
		return openRouterFallbackModels
	}
	resp, err := p.Client.Do(httpReq)
	if err != nil {
		return openRouterFallbackModels
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return openRouterFallbackModels
	}

	var decoded openRouterModelsResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil || len(decoded.Data) == 0 {
		return openRouterFallbackModels
	}
	out := make([]string, 0, len(decoded.Data))
	for _, m := range decoded.Data {
		out = append(out, m.ID)
	}
	return out
}
