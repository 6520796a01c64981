// Package turngen produces single agent turns with transparent reuse of
// prior identical results.
package turngen

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sweetpotato0/mountdoom/cache"
	"github.com/sweetpotato0/mountdoom/gateway"
	"github.com/sweetpotato0/mountdoom/pkg/logging"
	"github.com/sweetpotato0/mountdoom/pkg/telemetry"
)

// TurnResult is one generated (or replayed) agent turn.
type TurnResult struct {
	ResponseText   string `json:"response_text"`
	TokensUsed     int    `json:"tokens_used"`
	ConversationID string `json:"conversation_id"`
	FromCache      bool   `json:"from_cache"`
}

// Service resolves an agent's current instruction version, consults the
// response cache, and falls back to the gateway on a miss. For a fixed
// (input, agent, version) triple, repeated Invoke calls return identical
// results after the first successful generation and incur no further
// provider cost.
type Service struct {
	registry    *Registry
	gateway     gateway.Gateway
	cache       cache.Cache
	fingerprint gateway.FingerprintFunc
	logger      *slog.Logger
	tracer      trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithFingerprint overrides the instruction version function; mainly
// useful for tests.
func WithFingerprint(fn gateway.FingerprintFunc) Option {
	return func(s *Service) {
		s.fingerprint = fn
	}
}

// NewService creates a turn-generation service.
func NewService(registry *Registry, gw gateway.Gateway, c cache.Cache, opts ...Option) *Service {
	s := &Service{
		registry:    registry,
		gateway:     gw,
		cache:       c,
		fingerprint: gateway.Fingerprint,
		logger:      logging.WithComponent("turngen"),
		tracer:      telemetry.Tracer("turngen"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry exposes the agent definitions backing this service.
func (s *Service) Registry() *Registry {
	return s.registry
}

// Invoke produces one turn for the agent in a fresh conversation.
func (s *Service) Invoke(ctx context.Context, agentID, input string) (*TurnResult, error) {
	return s.invoke(ctx, agentID, input, "")
}

// InvokeInConversation produces one turn for the agent inside a
// caller-supplied conversation, for use inside a larger orchestrated run.
func (s *Service) InvokeInConversation(ctx context.Context, conversationID, agentID, input string) (*TurnResult, error) {
	return s.invoke(ctx, agentID, input, conversationID)
}

func (s *Service) invoke(ctx context.Context, agentID, input, conversationID string) (result *TurnResult, err error) {
	ctx, span := s.tracer.Start(ctx, "turngen.invoke",
		trace.WithAttributes(attribute.String("agent.id", agentID)))
	defer func() { telemetry.End(span, err) }()

	def, err := s.registry.Get(agentID)
	if err != nil {
		return nil, err
	}
	version := s.fingerprint(def.Instructions)

	if record, ok := s.cache.Find(ctx, input, def.Name, version); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		s.logger.Debug("cache hit", "agent", def.Name, "version", version)
		return &TurnResult{
			ResponseText:   record.ResponseText,
			TokensUsed:     record.TokensUsed,
			ConversationID: record.ConversationID,
			FromCache:      true,
		}, nil
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	handle, err := s.gateway.EnsureAgent(ctx, def.Name, def.Instructions, def.Model)
	if err != nil {
		return nil, fmt.Errorf("ensure agent %s: %w", def.Name, err)
	}

	if conversationID == "" {
		conversationID, err = s.gateway.CreateConversation(ctx)
		if err != nil {
			return nil, fmt.Errorf("create conversation: %w", err)
		}
	}

	generated, err := s.gateway.AppendAndGenerate(ctx, conversationID, handle, input)
	if err != nil {
		return nil, err
	}

	record := &cache.Record{
		Prompt:         input,
		AgentName:      def.Name,
		AgentVersion:   version,
		ResponseText:   generated.Text,
		TokensUsed:     generated.TokensUsed,
		ConversationID: conversationID,
		CreatedAt:      time.Now().UTC(),
	}
	// Best effort: a storage hiccup must not lose the generated result.
	if err := s.cache.Save(ctx, record); err != nil {
		s.logger.Warn("failed to persist cache record",
			"agent", def.Name, "version", version, "error", err)
	}

	return &TurnResult{
		ResponseText:   generated.Text,
		TokensUsed:     generated.TokensUsed,
		ConversationID: conversationID,
		FromCache:      false,
	}, nil
}
