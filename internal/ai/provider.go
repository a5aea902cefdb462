package ai

import "context"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

type GenerateRequest struct {
	Messages    []Message
	Model       string
	Temperature float64
	// MaxTokens of 0 leaves the limit to the backend.
	MaxTokens int
}

// Provider is one chat-completion backend. Implementations make at most one
// upstream attempt per Generate call.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	// ListModels never fails; live listings fall back to a static catalog.
	ListModels(ctx context.Context) []string
}

func clampTemperature(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}
