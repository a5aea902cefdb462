package ai

import (
	"context"
	"log"

	"github.com/suPer8Hu/personachat/internal/config"
)

// BuildRegistry constructs every configured backend. A backend that fails to
// initialize (typically a missing key) is left out of the registry.
func BuildRegistry(ctx context.Context, cfg *config.Config) *Registry {
	reg := NewRegistry()
	pc := cfg.Providers

	add := func(name string, p Provider, err error) {
		if err != nil {
			log.Printf("[ai] provider %s disabled: %v", name, err)
			return
		}
		reg.Register(NewRateLimited(p, cfg.ProviderRPM))
	}

	groq, err := NewGroqProvider(pc.Groq.BaseURL, pc.Groq.APIKey)
	add("groq", groq, err)

	openRouter, err := NewOpenRouterProvider(pc.OpenRouter.BaseURL, pc.OpenRouter.APIKey, pc.OpenRouterSiteURL, pc.OpenRouterAppName)
	add("openrouter", openRouter, err)

	gemini, err := NewGeminiProvider(ctx, pc.Google.APIKey)
	add("google", gemini, err)

	together, err := NewTogetherProvider(pc.Together.BaseURL, pc.Together.APIKey)
	add("together", together, err)

	openAI, err := NewOpenAIProvider(pc.OpenAI.BaseURL, pc.OpenAI.APIKey)
	add("openai", openAI, err)

	add("ollama", NewOllamaProvider(pc.Ollama.BaseURL, pc.Ollama.Model), nil)

	log.Printf("[ai] initialized providers: %v", reg.Names())
	return reg
}
