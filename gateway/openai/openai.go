// Package openai implements the agent invocation gateway on top of the
// OpenAI chat completions API.
package openai

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/sweetpotato0/mountdoom/gateway"
	"github.com/sweetpotato0/mountdoom/pkg/logging"
	"github.com/sweetpotato0/mountdoom/tokenizer"
)

var errNoChoices = errors.New("no choices returned from OpenAI")

// Config holds OpenAI gateway configuration
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int64
	Temperature float64
}

// DefaultConfig returns default OpenAI configuration
func DefaultConfig() *Config {
	return &Config{
		Model:       "gpt-4o-mini",
		MaxTokens:   2000,
		Temperature: 0.7,
	}
}

// Gateway implements gateway.Gateway using the official OpenAI SDK. Shared
// conversations are tracked client-side; each generation replays the
// conversation history with the agent's instructions as the system prompt.
type Gateway struct {
	config        *Config
	client        openaisdk.Client
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

// New creates a new OpenAI gateway.
func New(config *Config, opts ...Option) *Gateway {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}

	options := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		options = append(options, option.WithBaseURL(config.BaseURL))
	}
	client := openaisdk.NewClient(options...)

	g := &Gateway{
		config:        config,
		client:        client,
		conversations: gateway.NewConversationStore(),
		logger:        logging.WithComponent("gateway.openai"),
		agents:        make(map[string]*gateway.AgentHandle),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// EnsureAgent resolves or builds the agent handle. The instruction
// fingerprint keys the handle, so repeated calls with identical inputs
// return the same handle and never create duplicate resources.
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
			return nil, gateway.NewProviderError("openai", "append", err)
		}
	}

	history, err := g.conversations.History(conversationID)
	if err != nil {
		return nil, gateway.NewProviderError("openai", "generate", err)
	}

	messages := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(history)+1)
	messages = append(messages, openaisdk.SystemMessage(handle.Instructions))
	for _, msg := range history {
		switch msg.Role {
		case gateway.RoleUser:
			messages = append(messages, openaisdk.UserMessage(msg.Content))
		case gateway.RoleAssistant:
			messages = append(messages, openaisdk.AssistantMessage(msg.Content))
		}
	}

	params := openaisdk.ChatCompletionNewParams{
		Messages: messages,
		Model:    openaisdk.ChatModel(handle.Model),
	}
	if g.config.Temperature > 0 {
		params.Temperature = param.NewOpt(g.config.Temperature)
	}
	if g.config.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(g.config.MaxTokens)
	}

	completion, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, gateway.NewProviderError("openai", "generate", err)
	}
	if len(completion.Choices) == 0 {
		return nil, gateway.NewProviderError("openai", "generate", errNoChoices)
	}

	text := completion.Choices[0].Message.Content
	tokens := int(completion.Usage.TotalTokens)
	if tokens == 0 && g.counter != nil {
		tokens = g.counter.Count(text)
		g.logger.Debug("provider reported zero usage, estimated tokens locally",
			"conversation_id", conversationID, "tokens", tokens)
	}

	if err := g.conversations.Append(conversationID, gateway.Message{Role: gateway.RoleAssistant, Content: text}); err != nil {
		return nil, gateway.NewProviderError("openai", "append", err)
	}

	return &gateway.GenerateResult{Text: text, TokensUsed: tokens}, nil
}
