package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"chatspeak/core"

	"github.com/sashabaranov/go-openai"
)

// OpenAIChatProvider implements core.ChatProvider against any endpoint that
// speaks the OpenAI chat completions protocol (OpenAI, Gemini, Groq, ...).
type OpenAIChatProvider struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	streaming   bool
	system      string
	logger      *core.Logger
}

// Config holds the configuration for an OpenAI-compatible chat provider
type Config struct {
	APIKey       string  `json:"api_key"`
	BaseURL      string  `json:"base_url,omitempty"`
	Model        string  `json:"model"`
	MaxTokens    int     `json:"max_tokens,omitempty"`
	Temperature  float32 `json:"temperature,omitempty"`
	Streaming    bool    `json:"streaming,omitempty"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
}

// NewOpenAIChatProvider creates a provider. The API key and model are required.
func NewOpenAIChatProvider(config Config, logger *core.Logger) (*OpenAIChatProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("chat provider API key is required")
	}
	if config.Model == "" {
		return nil, errors.New("chat provider model is required")
	}
	if logger == nil {
		logger = core.GetLogger()
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
	}

	return &OpenAIChatProvider{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       config.Model,
		maxTokens:   config.MaxTokens,
		temperature: config.Temperature,
		streaming:   config.Streaming,
		system:      config.SystemPrompt,
		logger:      logger.With(map[string]interface{}{"component": "chat_provider", "model": config.Model}),
	}, nil
}

// Model returns the configured model name.
func (p *OpenAIChatProvider) Model() string {
	return p.model
}

// NewConversation starts an empty conversation, seeded with the system prompt
// when one is configured.
func (p *OpenAIChatProvider) NewConversation(sessionID string) (core.Conversation, error) {
	c := &Conversation{provider: p, sessionID: sessionID}
	if p.system != "" {
		c.messages = append(c.messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: p.system,
		})
	}
	return c, nil
}

// Conversation is the full message history of one session. The history only
// grows on a successful turn.
type Conversation struct {
	provider  *OpenAIChatProvider
	sessionID string

	mu       sync.Mutex
	messages []openai.ChatCompletionMessage
}

// SendMessage sends prompt with the whole history and records the exchange.
func (c *Conversation) SendMessage(ctx context.Context, prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	msgs := make([]openai.ChatCompletionMessage, len(c.messages), len(c.messages)+1)
	copy(msgs, c.messages)
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	req := openai.ChatCompletionRequest{
		Model:       c.provider.model,
		Messages:    msgs,
		MaxTokens:   c.provider.maxTokens,
		Temperature: c.provider.temperature,
	}

	var (
		reply string
		err   error
	)
	if c.provider.streaming {
		reply, err = c.provider.runStreamingCompletion(ctx, req)
	} else {
		reply, err = c.provider.runNonStreamingCompletion(ctx, req)
	}
	if err != nil {
		return "", err
	}

	c.messages = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: reply})
	c.provider.logger.Debug("completion received", "session_id", c.sessionID, "history_len", len(c.messages))
	return reply, nil
}

// History returns a copy of the conversation, system prompt included.
func (c *Conversation) History() []core.LLMMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]core.LLMMessage, 0, len(c.messages))
	for _, m := range c.messages {
		out = append(out, core.LLMMessage{Role: convertRole(m.Role), Message: m.Content})
	}
	return out
}

func (p *OpenAIChatProvider) runNonStreamingCompletion(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAIChatProvider) runStreamingCompletion(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	req.Stream = true
	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create completion stream: %w", err)
	}
	defer stream.Close()

	var sb strings.Builder
	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("completion stream failed: %w", err)
		}
		if len(response.Choices) > 0 {
			sb.WriteString(response.Choices[0].Delta.Content)
		}
	}
	return sb.String(), nil
}

func convertRole(role string) core.LLMMessageRole {
	switch role {
	case openai.ChatMessageRoleSystem:
		return core.LLMMessageRoleSystem
	case openai.ChatMessageRoleAssistant:
		return core.LLMMessageRoleAssistant
	default:
		return core.LLMMessageRoleUser
	}
}
