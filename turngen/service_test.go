package turngen

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sweetpotato0/mountdoom/cache"
	"github.com/sweetpotato0/mountdoom/gateway"
	"github.com/sweetpotato0/mountdoom/store"
)

// scriptedGateway returns canned responses and counts generate calls.
type scriptedGateway struct {
	conversations *gateway.ConversationStore
	generateCalls int
	response      string
	tokens        int
	failOnCall    int // fail when the generate call counter reaches this, if > 0
}

func newScriptedGateway(response string, tokens int) *scriptedGateway {
	return &scriptedGateway{
		conversations: gateway.NewConversationStore(),
		response:      response,
		tokens:        tokens,
	}
}

func (g *scriptedGateway) EnsureAgent(ctx context.Context, name, instructions, model string) (*gateway.AgentHandle, error) {
	return &gateway.AgentHandle{
		Name:         name,
		Instructions: instructions,
		Model:        model,
		Version:      gateway.Fingerprint(instructions),
	}, nil
}

func (g *scriptedGateway) CreateConversation(ctx context.Context) (string, error) {
	return g.conversations.Create(), nil
}

func (g *scriptedGateway) AppendAndGenerate(ctx context.Context, conversationID string, handle *gateway.AgentHandle, input string) (*gateway.GenerateResult, error) {
	g.generateCalls++
	if g.failOnCall > 0 && g.generateCalls >= g.failOnCall {
		return nil, gateway.NewProviderError("scripted", "generate", errors.New("upstream down"))
	}
	return &gateway.GenerateResult{Text: g.response, TokensUsed: g.tokens}, nil
}

// savelessCache wraps a cache and fails every save.
type savelessCache struct {
	cache.Cache
}

func (c *savelessCache) Save(ctx context.Context, record *cache.Record) error {
	return errors.New("disk full")
}

func newTestService(gw gateway.Gateway) *Service {
	return NewService(DefaultRegistry(), gw, cache.NewDocumentCache(store.NewInMemoryStore(), ""))
}

func TestInvokeCacheMissThenHit(t *testing.T) {
	ctx := context.Background()
	gw := newScriptedGateway("Generated reply", 42)
	svc := newTestService(gw)

	first, err := svc.Invoke(ctx, AgentC2Message, "X")
	if err != nil {
		t.Fatalf("First invoke failed: %v", err)
	}
	if first.FromCache {
		t.Error("First invoke should not come from cache")
	}
	if gw.generateCalls != 1 {
		t.Errorf("Expected 1 gateway call, got %d", gw.generateCalls)
	}

	second, err := svc.Invoke(ctx, AgentC2Message, "X")
	if err != nil {
		t.Fatalf("Second invoke failed: %v", err)
	}
	if !second.FromCache {
		t.Error("Second invoke should come from cache")
	}
	if gw.generateCalls != 1 {
		t.Errorf("Cached invoke must issue zero gateway calls, got %d total", gw.generateCalls)
	}
	if second.ResponseText != first.ResponseText || second.TokensUsed != first.TokensUsed {
		t.Error("Cached result must be identical to the generated one")
	}
	if second.ConversationID != first.ConversationID {
		t.Error("Cached result should carry the original conversation id")
	}
}

func TestInvokeDifferentInputMisses(t *testing.T) {
	ctx := context.Background()
	gw := newScriptedGateway("reply", 5)
	svc := newTestService(gw)

	svc.Invoke(ctx, AgentC2Message, "X")
	svc.Invoke(ctx, AgentC2Message, "Y")

	if gw.generateCalls != 2 {
		t.Errorf("Expected 2 gateway calls for distinct inputs, got %d", gw.generateCalls)
	}
}

func TestInvokeInstructionChangeInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	gw := newScriptedGateway("reply", 5)
	registry := DefaultRegistry()
	svc := NewService(registry, gw, cache.NewDocumentCache(store.NewInMemoryStore(), ""))

	if _, err := svc.Invoke(ctx, AgentC2Message, "X"); err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}

	def, _ := registry.Get(AgentC2Message)
	def.Instructions += "\nBe more concise."
	registry.Upsert(def)

	result, err := svc.Invoke(ctx, AgentC2Message, "X")
	if err != nil {
		t.Fatalf("Invoke after instruction change failed: %v", err)
	}
	if result.FromCache {
		t.Error("Changed instructions must invalidate prior cache entries")
	}
	if gw.generateCalls != 2 {
		t.Errorf("Expected 2 gateway calls, got %d", gw.generateCalls)
	}
}

func TestInvokeSaveFailureStillReturnsResult(t *testing.T) {
	ctx := context.Background()
	gw := newScriptedGateway("survives", 9)
	base := cache.NewDocumentCache(store.NewInMemoryStore(), "")
	svc := NewService(DefaultRegistry(), gw, &savelessCache{Cache: base})

	result, err := svc.Invoke(ctx, AgentC2Message, "X")
	if err != nil {
		t.Fatalf("Invoke should survive cache save failure, got %v", err)
	}
	if result.ResponseText != "survives" {
		t.Errorf("Unexpected response: %s", result.ResponseText)
	}
}

func TestInvokeUnknownAgent(t *testing.T) {
	svc := newTestService(newScriptedGateway("x", 1))

	if _, err := svc.Invoke(context.Background(), "no_such_agent", "X"); err == nil {
		t.Error("Expected error for unknown agent id")
	}
}

func TestInvokeProviderErrorPropagates(t *testing.T) {
	gw := newScriptedGateway("x", 1)
	gw.failOnCall = 1
	svc := newTestService(gw)

	_, err := svc.Invoke(context.Background(), AgentC2Message, "X")
	var provErr *gateway.ProviderError
	if !errors.As(err, &provErr) {
		t.Errorf("Expected ProviderError, got %v", err)
	}
}

func TestInvokeInConversationReusesID(t *testing.T) {
	ctx := context.Background()
	gw := newScriptedGateway("reply", 3)
	svc := newTestService(gw)

	convID, _ := gw.CreateConversation(ctx)
	result, err := svc.InvokeInConversation(ctx, convID, AgentC2Message, "hello")
	if err != nil {
		t.Fatalf("InvokeInConversation failed: %v", err)
	}
	if result.ConversationID != convID {
		t.Errorf("Expected conversation id %s, got %s", convID, result.ConversationID)
	}
}

func TestRegistryDefaults(t *testing.T) {
	r := DefaultRegistry()

	for _, id := range []string{
		AgentPersonaGeneration, AgentTranscriptParsing, AgentPromptValidation,
		AgentC2Message, AgentRepresentative, AgentCustomer,
	} {
		def, err := r.Get(id)
		if err != nil {
			t.Errorf("Expected built-in agent %s: %v", id, err)
			continue
		}
		if def.Instructions == "" {
			t.Errorf("Agent %s has empty instructions", id)
		}
	}

	// Returned definitions are copies; mutating one must not affect the registry.
	def, _ := r.Get(AgentC2Message)
	def.Instructions = "mutated"
	fresh, _ := r.Get(AgentC2Message)
	if fresh.Instructions == "mutated" {
		t.Error("Registry definitions should be copied on Get")
	}
}

func TestRepresentativeInstructionsCarrySignals(t *testing.T) {
	r := DefaultRegistry()
	def, err := r.Get(AgentRepresentative)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	for _, signal := range []string{EndOfCallSignal, TransferSignal} {
		if !strings.Contains(def.Instructions, signal) {
			t.Errorf("Representative instructions should mention %s", signal)
		}
	}
}
