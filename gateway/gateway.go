// Package gateway defines the boundary to the external agent invocation
// provider: agent handles, shared conversations and turn generation.
package gateway

import (
	"context"
	"fmt"
)

// Role identifies who produced a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single entry in a shared conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// AgentHandle identifies a provider-side agent resource.
type AgentHandle struct {
	Name         string `json:"name"`
	Instructions string `json:"instructions"`
	Model        string `json:"model"`
	Version      string `json:"version"`
}

// GenerateResult carries one generated turn and its reported token usage.
type GenerateResult struct {
	Text       string `json:"text"`
	TokensUsed int    `json:"tokens_used"`
}

// Gateway is the agent invocation provider boundary. Implementations are
// thin adapters; retry policy belongs to callers.
type Gateway interface {
	// EnsureAgent resolves or creates the provider-side agent. Calling it
	// repeatedly with the same name, instructions and model returns the
	// same handle without creating duplicate resources; the instruction
	// fingerprint doubles as the idempotency key.
	EnsureAgent(ctx context.Context, name, instructions, model string) (*AgentHandle, error)

	// CreateConversation opens a new shared conversation and returns its id.
	CreateConversation(ctx context.Context) (string, error)

	// AppendAndGenerate appends input to the conversation (an empty string
	// means "produce the agent's next turn with no new user input") and
	// requests a generation attributed to the handle.
	AppendAndGenerate(ctx context.Context, conversationID string, handle *AgentHandle, input string) (*GenerateResult, error)
}

// ProviderError indicates the upstream provider failed to produce a turn.
// It is fatal to the run in progress; no retries happen at this layer.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s failed", e.Provider, e.Op)
	}
	return fmt.Sprintf("%s: %s failed: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError wraps an upstream failure.
func NewProviderError(provider, op string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Op: op, Err: err}
}
