// Package llmprovider implements the LLM abstraction: a single Generate
// operation that normalizes OpenAI-chat-style (system message prepended to
// the messages array) and Anthropic-messages-style (system passed as a
// top-level field) backends at the boundary, so callers write one prompt
// shape regardless of backend. Grounded on manifold's internal/llm
// provider.go/openai_client.go shapes and internal/llm/anthropic/client.go,
// collapsed from the teacher's many backends (MLX, Gemini, llama.cpp) down
// to the two this module needs.
package llmprovider

import (
	"context"
	"fmt"
	"os"

	"github.com/Zach-hammad/repotoire-sub004/internal/errs"
)

// Role is a chat message role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in a conversation.
type Message struct {
	Role    Role
	Content string
}

// Request bundles the inputs to a single Generate call.
type Request struct {
	Messages    []Message
	System      string
	MaxTokens   int
	Temperature float64
}

// LLM is the provider-agnostic chat-completion contract.
type LLM interface {
	// Generate produces the assistant's reply text for req.
	Generate(ctx context.Context, req Request) (string, error)
	Backend() string
}

// Backend names a supported LLM backend.
type Backend string

const (
	BackendOpenAI    Backend = "openai"
	BackendAnthropic Backend = "anthropic"
)

// New constructs an LLM for the named backend and model, reading the
// backend's credential directly from the environment the way the teacher's
// config layer does for its own completion backends.
func New(backend Backend, model string) (LLM, error) {
	switch backend {
	case BackendOpenAI:
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, errs.NewValidation("OPENAI_API_KEY", "credential not set")
		}
		return newOpenAIClient(apiKey, model), nil
	case BackendAnthropic:
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, errs.NewValidation("ANTHROPIC_API_KEY", "credential not set")
		}
		return newAnthropicClient(apiKey, model), nil
	default:
		return nil, errs.NewValidation("backend", fmt.Sprintf("unsupported llm backend %q", backend))
	}
}
