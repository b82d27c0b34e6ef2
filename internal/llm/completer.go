// Package llm provides chat completion via OpenAI-compatible APIs.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

var (
	// ErrCompletionFailed indicates the model call failed or returned
	// no choices.
	ErrCompletionFailed = errors.New("chat completion failed")

	// ErrInvalidConfig indicates invalid completer configuration.
	ErrInvalidConfig = errors.New("invalid llm configuration")

	// ErrEmptyMessages indicates an empty prompt.
	ErrEmptyMessages = errors.New("empty or nil messages")
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a chat prompt.
type Message struct {
	Role    Role
	Content string
}

// Completer produces a chat completion for a message sequence.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Config holds configuration for the OpenAI-compatible completer.
type Config struct {
	// BaseURL is the API base URL, e.g. https://api.openai.com/v1.
	BaseURL string

	// Model is the chat model, e.g. gpt-4o-mini.
	Model string

	// APIKey authenticates the request.
	APIKey string
}

// OpenAICompleter implements Completer via langchaingo.
type OpenAICompleter struct {
	llm    *openai.LLM
	config Config
}

// NewOpenAICompleter creates a completer for the configured endpoint.
func NewOpenAICompleter(config Config) (*OpenAICompleter, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if config.Model == "" {
		return nil, fmt.Errorf("%w: model required", ErrInvalidConfig)
	}

	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = "placeholder"
	}

	llm, err := openai.New(
		openai.WithBaseURL(config.BaseURL),
		openai.WithModel(config.Model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	return &OpenAICompleter{llm: llm, config: config}, nil
}

// Complete sends the messages and returns the assistant reply text.
func (c *OpenAICompleter) Complete(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", ErrEmptyMessages
	}

	content := make([]llms.MessageContent, len(messages))
	for i, m := range messages {
		content[i] = llms.TextParts(chatMessageType(m.Role), m.Content)
	}

	resp, err := c.llm.GenerateContent(ctx, content)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrCompletionFailed)
	}

	return strings.TrimSpace(resp.Choices[0].Content), nil
}

func chatMessageType(role Role) schema.ChatMessageType {
	switch role {
	case RoleSystem:
		return schema.ChatMessageTypeSystem
	case RoleAssistant:
		return schema.ChatMessageTypeAI
	default:
		return schema.ChatMessageTypeHuman
	}
}
