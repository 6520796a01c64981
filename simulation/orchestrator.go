package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	mderrors "github.com/sweetpotato0/mountdoom/errors"
	"github.com/sweetpotato0/mountdoom/gateway"
	"github.com/sweetpotato0/mountdoom/pkg/logging"
	"github.com/sweetpotato0/mountdoom/pkg/telemetry"
	"github.com/sweetpotato0/mountdoom/store"
	"github.com/sweetpotato0/mountdoom/turngen"
)

// DefaultMaxTurns bounds the total number of turns across both roles.
const DefaultMaxTurns = 15

// DefaultCollection is the document store collection holding run records.
const DefaultCollection = "simulation_runs"

// Simulator orchestrates one simulation run at a time per call; multiple
// runs may execute concurrently, each under its own conversation id.
type Simulator struct {
	gateway    gateway.Gateway
	turns      *turngen.Service
	store      store.DocumentStore
	prompts    *promptBuilder
	collection string
	maxTurns   int
	logger     *slog.Logger
	tracer     trace.Tracer
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithMaxTurns overrides the default turn bound.
func WithMaxTurns(n int) Option {
	return func(s *Simulator) {
		if n > 0 {
			s.maxTurns = n
		}
	}
}

// WithCollection overrides the run collection name.
func WithCollection(name string) Option {
	return func(s *Simulator) {
		if name != "" {
			s.collection = name
		}
	}
}

// NewSimulator creates a simulator over the given gateway, turn service and
// document store.
func NewSimulator(gw gateway.Gateway, turns *turngen.Service, ds store.DocumentStore, opts ...Option) (*Simulator, error) {
	prompts, err := newPromptBuilder()
	if err != nil {
		return nil, fmt.Errorf("simulation: build prompt templates: %w", err)
	}
	s := &Simulator{
		gateway:    gw,
		turns:      turns,
		store:      ds,
		prompts:    prompts,
		collection: DefaultCollection,
		maxTurns:   DefaultMaxTurns,
		logger:     logging.WithComponent("simulation"),
		tracer:     telemetry.Tracer("simulation"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Simulate drives a bounded two-role conversation to completion and
// persists the transcript. maxTurns caps total turns across both roles;
// zero selects the configured default, negative is rejected.
//
// The returned run carries status Completed or Failed; on provider failure
// the partial transcript is persisted and returned alongside the error.
func (s *Simulator) Simulate(ctx context.Context, props Properties, maxTurns int) (run *SimulationRun, err error) {
	if err := props.Validate(); err != nil {
		return nil, err
	}
	if maxTurns < 0 {
		return nil, fmt.Errorf("%w: max turns must be positive, got %d", mderrors.ErrInvalidInput, maxTurns)
	}
	if maxTurns == 0 {
		maxTurns = s.maxTurns
	}

	ctx, span := s.tracer.Start(ctx, "simulation.run",
		trace.WithAttributes(attribute.Int("simulation.max_turns", maxTurns)))
	defer func() { telemetry.End(span, err) }()

	repDef, err := s.turns.Registry().Get(turngen.AgentRepresentative)
	if err != nil {
		return nil, err
	}
	// The representative's context is conversation history only; persona
	// properties never reach its instructions or inputs.
	repHandle, err := s.gateway.EnsureAgent(ctx, repDef.Name, repDef.Instructions, repDef.Model)
	if err != nil {
		return nil, fmt.Errorf("ensure representative agent: %w", err)
	}

	conversationID, err := s.gateway.CreateConversation(ctx)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	span.SetAttributes(attribute.String("conversation.id", conversationID))

	now := time.Now().UTC()
	run = &SimulationRun{
		ConversationID: conversationID,
		Properties:     props,
		Status:         StatusOngoing,
		StartTime:      now,
		CreatedAt:      now,
	}

	for {
		select {
		case <-ctx.Done():
			// Turns already generated were paid for; keep them.
			s.logger.Warn("simulation cancelled, persisting partial run",
				"conversation_id", conversationID, "turns", len(run.Turns))
			s.finish(ctx, run)
			return run, ctx.Err()
		default:
		}

		// Representative turn. An empty input on the first turn signals an
		// empty conversation; the agent's instructions carry the greeting rule.
		input := ""
		if len(run.Turns) > 0 {
			input = run.lastContent(RoleCustomer)
		}
		generated, genErr := s.gateway.AppendAndGenerate(ctx, conversationID, repHandle, input)
		if genErr != nil {
			return s.fail(ctx, run, genErr)
		}
		run.appendTurn(RoleRepresentative, generated.Text, generated.TokensUsed)

		// Termination by phrase takes precedence over the turn bound.
		if signal, done := detectTermination(generated.Text); done {
			s.logger.Info("termination signal detected",
				"conversation_id", conversationID, "signal", signal, "turns", len(run.Turns))
			run.Status = StatusCompleted
			break
		}
		if len(run.Turns) >= maxTurns {
			run.Status = StatusCompleted
			break
		}

		// Customer turn, via the caching turn service: the same persona and
		// history prefix may recur across eval runs.
		customerPrompt, promptErr := s.prompts.buildCustomerPrompt(props, run.Turns)
		if promptErr != nil {
			return s.fail(ctx, run, promptErr)
		}
		result, invokeErr := s.turns.Invoke(ctx, turngen.AgentCustomer, customerPrompt)
		if invokeErr != nil {
			return s.fail(ctx, run, invokeErr)
		}
		run.appendTurn(RoleCustomer, result.ResponseText, result.TokensUsed)

		if len(run.Turns) >= maxTurns {
			run.Status = StatusCompleted
			break
		}
	}

	span.SetAttributes(attribute.Int("simulation.turns", len(run.Turns)))
	if err := s.finish(ctx, run); err != nil {
		return run, err
	}
	return run, nil
}

// fail marks the run failed, persists whatever turns exist for
// observability, and surfaces the provider error.
func (s *Simulator) fail(ctx context.Context, run *SimulationRun, cause error) (*SimulationRun, error) {
	run.Status = StatusFailed
	if err := s.finish(ctx, run); err != nil {
		s.logger.Error("failed to persist failed run",
			"conversation_id", run.ConversationID, "error", err)
	}
	return run, cause
}

// finish finalizes totals and persists the run exactly once, retrying the
// write once before surfacing the error: losing the final record loses the
// run's value.
func (s *Simulator) finish(ctx context.Context, run *SimulationRun) error {
	run.finalize(time.Now().UTC())

	// Persistence must survive caller cancellation.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	err := s.store.Put(ctx, s.collection, run.ConversationID, run)
	if err == nil {
		return nil
	}
	s.logger.Warn("final run write failed, retrying once",
		"conversation_id", run.ConversationID, "error", err)
	if err := s.store.Put(ctx, s.collection, run.ConversationID, run); err != nil {
		return fmt.Errorf("persist simulation run %s: %w", run.ConversationID, err)
	}
	return nil
}

// detectTermination scans a representative message for a termination signal.
func detectTermination(content string) (string, bool) {
	if strings.Contains(content, turngen.EndOfCallSignal) {
		return turngen.EndOfCallSignal, true
	}
	if strings.Contains(content, turngen.TransferSignal) {
		return turngen.TransferSignal, true
	}
	return "", false
}
