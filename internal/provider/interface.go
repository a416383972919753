// Package provider selects and constructs the LLM backend used for answer
// generation at runtime. Supported backends: Google Gemini, Ollama, OpenAI,
// Azure OpenAI.
package provider

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Backend enumerates the supported LLM inference providers.
type Backend string

const (
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
)

// Completer produces a single text completion for an assembled prompt.
// Implementations must be safe to call from multiple goroutines.
type Completer interface {
	// Complete sends the prompt as one user message and returns the model's
	// text reply.
	Complete(ctx context.Context, prompt string) (string, error)
}

// chatCompleter adapts an eino chat model to the Completer interface.
type chatCompleter struct {
	model model.ToolCallingChatModel
}

// NewCompleter wraps an eino chat model as a Completer.
func NewCompleter(m model.ToolCallingChatModel) (Completer, error) {
	if m == nil {
		return nil, fmt.Errorf("provider: chat model must not be nil")
	}
	return &chatCompleter{model: m}, nil
}

// Complete sends the prompt as a single user message and returns the text
// content of the reply.
func (c *chatCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	msg, err := c.model.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return "", fmt.Errorf("provider: generate: %w", err)
	}
	if msg == nil || msg.Content == "" {
		return "", fmt.Errorf("provider: model returned an empty reply")
	}
	return msg.Content, nil
}
