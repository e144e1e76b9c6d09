package core

import "context"

type LLMMessageRole string

const (
	LLMMessageRoleUser      LLMMessageRole = "user"
	LLMMessageRoleAssistant LLMMessageRole = "assistant"
	LLMMessageRoleSystem    LLMMessageRole = "system"
)

// LLMMessage represents a message exchanged with the LLM.
type LLMMessage struct {
	Role    LLMMessageRole `json:"role"`    // Role of the message sender (e.g., user, assistant, system).
	Message string         `json:"message"` // Content of the message.
}

// LLMContext is the ordered history of one conversation.
type LLMContext struct {
	Messages []LLMMessage
}

func (c *LLMContext) AddSystemMessage(text string) {
	c.Messages = append(c.Messages, LLMMessage{Role: LLMMessageRoleSystem, Message: text})
}

func (c *LLMContext) AddUserMessage(text string) {
	c.Messages = append(c.Messages, LLMMessage{Role: LLMMessageRoleUser, Message: text})
}

func (c *LLMContext) AddAssistantMessage(text string) {
	c.Messages = append(c.Messages, LLMMessage{Role: LLMMessageRoleAssistant, Message: text})
}

// GetLastAssistantMessage returns the most recent assistant message, or "".
func (c *LLMContext) GetLastAssistantMessage() string {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == LLMMessageRoleAssistant {
			return c.Messages[i].Message
		}
	}
	return ""
}

// Turns counts completed user/assistant exchanges.
func (c *LLMContext) Turns() int {
	n := 0
	for _, m := range c.Messages {
		if m.Role == LLMMessageRoleAssistant {
			n++
		}
	}
	return n
}

// Conversation is one multi-turn dialogue held by a language-model provider.
// SendMessage appends the prompt and the reply to the conversation history.
// Implementations need not be safe for concurrent SendMessage calls; callers
// serialize turns per conversation.
type Conversation interface {
	SendMessage(ctx context.Context, prompt string) (string, error)
	History() []LLMMessage
}

// ChatProvider creates conversations bound to a model.
type ChatProvider interface {
	NewConversation(sessionID string) (Conversation, error)
}
