// Package anthropic implements the agent invocation gateway on top of the
// Anthropic messages API.
package anthropic

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
	"github.com/sweetpotato0/mountdoom/gateway"
	"github.com/sweetpotato0/mountdoom/pkg/logging"
	"github.com/sweetpotato0/mountdoom/tokenizer"
)

var errNoContent = errors.New("no content returned from Anthropic")

// Config holds Anthropic gateway configuration
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int64
	Temperature float64
}

// DefaultConfig returns default Anthropic configuration
func DefaultConfig() *Config {
	return &Config{
		Model:       "claude-sonnet-4-5-20250929",
		MaxTokens:   4096,
		Temperature: 0.7,
	}
}

// Gateway implements gateway.Gateway using the official Anthropic SDK.
type Gateway struct {
	config        *Config
	client        anthropic.Client
	conversations *gateway.ConversationStore
	counter       tokenizer.Counter
	logger        *slog.Logger

	mu     sync.Mutex
	agents map[string]*gateway.AgentHandle
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithTokenCounter sets a fallback token counter used when the provider
// reports zero usage.
func WithTokenCounter(counter tokenizer.Counter) Option {
	return func(g *Gateway) {
		g.counter = counter
	}
}

// New creates a new Anthropic gateway.
func New(config *Config, opts ...Option) *Gateway {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Model == "" {
		config.Model = "claude-sonnet-4-5-20250929"
	}

	options := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		options = append(options, option.WithBaseURL(config.BaseURL))
	}
	client := anthropic.NewClient(options...)

	g := &Gateway{
		config:        config,
		client:        client,
		conversations: gateway.NewConversationStore(),
		logger:        logging.WithComponent("gateway.anthropic"),
		agents:        make(map[string]*gateway.AgentHandle),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// EnsureAgent resolves or builds the agent handle keyed by the instruction
// fingerprint.
func (g *Gateway) EnsureAgent(ctx context.Context, name, instructions, model string) (*gateway.AgentHandle, error) {
	if model == "" {
		model = g.config.Model
	}
	version := gateway.Fingerprint(instructions)
	key := name + "@" + version

	g.mu.Lock()
	defer g.mu.Unlock()
	if handle, ok := g.agents[key]; ok {
		return handle, nil
	}
	handle := &gateway.AgentHandle{
		Name:         name,
		Instructions: instructions,
		Model:        model,
		Version:      version,
	}
	g.agents[key] = handle
	return handle, nil
}

// CreateConversation opens a new shared conversation.
func (g *Gateway) CreateConversation(ctx context.Context) (string, error) {
	return g.conversations.Create(), nil
}

// AppendAndGenerate appends input to the conversation and generates the
// agent's next turn.
func (g *Gateway) AppendAndGenerate(ctx context.Context, conversationID string, handle *gateway.AgentHandle, input string) (*gateway.GenerateResult, error) {
	if input != "" {
		if err := g.conversations.Append(conversationID, gateway.Message{Role: gateway.RoleUser, Content: input}); err != nil {
			return nil, gateway.NewProviderError("anthropic", "append", err)
		}
	}

	history, err := g.conversations.History(conversationID)
	if err != nil {
		return nil, gateway.NewProviderError("anthropic", "generate", err)
	}

	messages := make([]anthropic.MessageParam, 0, len(history)+1)
	for _, msg := range history {
		switch msg.Role {
		case gateway.RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case gateway.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	// The messages API rejects empty conversations; an empty-input first
	// turn still needs one user entry to prompt the agent's opening.
	if len(messages) == 0 {
		messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock("(begin)")))
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(handle.Model),
		Messages:  messages,
		MaxTokens: g.config.MaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: handle.Instructions},
		},
	}
	if g.config.Temperature > 0 {
		params.Temperature = param.NewOpt(g.config.Temperature)
	}

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return nil, gateway.NewProviderError("anthropic", "generate", err)
	}
	if len(resp.Content) == 0 {
		return nil, gateway.NewProviderError("anthropic", "generate", errNoContent)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := sb.String()

	tokens := int(resp.Usage.InputTokens + resp.Usage.OutputTokens)
	if tokens == 0 && g.counter != nil {
		tokens = g.counter.Count(text)
		g.logger.Debug("provider reported zero usage, estimated tokens locally",
			"conversation_id", conversationID, "tokens", tokens)
	}

	if err := g.conversations.Append(conversationID, gateway.Message{Role: gateway.RoleAssistant, Content: text}); err != nil {
		return nil, gateway.NewProviderError("anthropic", "append", err)
	}

	return &gateway.GenerateResult{Text: text, TokensUsed: tokens}, nil
}
