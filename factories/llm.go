package factories

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"chatspeak/core"
	openaillm "chatspeak/services/openai/llm"
)

// LLMFactoryConfig selects a chat provider by identifier. Every provider
// speaks the OpenAI chat protocol and is served by the same client with a
// provider-specific base URL.
type LLMFactoryConfig struct {
	Provider string           `json:"provider"`
	Config   openaillm.Config `json:"config"`
}

type compatibleProvider struct {
	baseURL string
	model   string
}

// Default base URLs and models for OpenAI-compatible providers.
var compatibleProviders = map[string]compatibleProvider{
	"openai":     {baseURL: "https://api.openai.com/v1", model: "gpt-4o-mini"},
	"gemini":     {baseURL: "https://generativelanguage.googleapis.com/v1beta/openai", model: "gemini-2.0-flash"},
	"google":     {baseURL: "https://generativelanguage.googleapis.com/v1beta/openai", model: "gemini-2.0-flash"},
	"together":   {baseURL: "https://api.together.xyz/v1", model: "meta-llama/Llama-3.3-70B-Instruct-Turbo"},
	"groq":       {baseURL: "https://api.groq.com/openai/v1", model: "llama-3.3-70b-versatile"},
	"deepseek":   {baseURL: "https://api.deepseek.com/v1", model: "deepseek-chat"},
	"openrouter": {baseURL: "https://openrouter.ai/api/v1", model: "openai/gpt-4o"},
	"fireworks":  {baseURL: "https://api.fireworks.ai/inference/v1", model: "accounts/fireworks/models/llama-v3p3-70b-instruct"},
	"cerebras":   {baseURL: "https://api.cerebras.ai/v1", model: "llama-3.3-70b"},
	"xai":        {baseURL: "https://api.x.ai/v1", model: "grok-3"},
	"mistral":    {baseURL: "https://api.mistral.ai/v1", model: "mistral-large-latest"},
	"perplexity": {baseURL: "https://api.perplexity.ai", model: "sonar-pro"},
}

// LLMProviders lists the accepted provider identifiers.
func LLMProviders() []string {
	names := make([]string, 0, len(compatibleProviders))
	for name := range compatibleProviders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuildChatProvider constructs a core.ChatProvider from the given factory
// config, applying the provider's default base URL and model where unset.
// A model written as "models/<name>" is accepted for Gemini.
func BuildChatProvider(config LLMFactoryConfig, logger *core.Logger) (core.ChatProvider, error) {
	name := strings.ToLower(strings.TrimSpace(config.Provider))
	if name == "" {
		return nil, errors.New("LLMFactoryConfig: no provider specified")
	}
	defaults, ok := compatibleProviders[name]
	if !ok {
		return nil, fmt.Errorf("LLMFactoryConfig: unknown provider %q (supported: %s)", config.Provider, strings.Join(LLMProviders(), ", "))
	}

	cfg := config.Config
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.baseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaults.model
	}
	cfg.Model = strings.TrimPrefix(cfg.Model, "models/")

	provider, err := openaillm.NewOpenAIChatProvider(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("LLMFactoryConfig: %s: %w", name, err)
	}
	return provider, nil
}
