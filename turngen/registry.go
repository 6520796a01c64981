package turngen

import (
	"fmt"
	"sync"

	mderrors "github.com/sweetpotato0/mountdoom/errors"
)

// Built-in agent ids exposed by the service.
const (
	AgentPersonaGeneration = "persona_generation"
	AgentTranscriptParsing = "transcript_parsing"
	AgentPromptValidation  = "prompt_validation"
	AgentC2Message         = "c2_message_generation"
	AgentRepresentative    = "simulation_representative"
	AgentCustomer          = "simulation_customer"
)

// Termination signals the representative agent is instructed to emit
// verbatim. The orchestrator scans representative turns for these.
const (
	EndOfCallSignal = "END_OF_CALL"
	TransferSignal  = "TRANSFER_TO_SUPERVISOR"
)

const representativeInstructions = `You are a customer service representative for a telecommunications company.
If the conversation is empty, greet the customer warmly and ask how you can help; do not wait for input.
Work the customer's issue step by step using only what they have told you in this conversation.
When the issue is resolved and the customer has nothing further, close politely and include the exact phrase ` + EndOfCallSignal + ` in your message.
If the customer demands escalation or you cannot resolve the issue, include the exact phrase ` + TransferSignal + ` in your message.`

const customerInstructions = `You are role-playing a customer contacting a service representative.
Stay in character for the persona described in each prompt: pursue the stated intent, express the stated sentiment, and keep the conversation on the stated subject.
Respond with a single conversational message; never break character or mention that you are simulated.`

// Definition describes a named agent: its display name, instruction text
// and model. The instruction text is the unit of versioning; editing it
// invalidates any cached responses for the agent.
type Definition struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Instructions string `json:"instructions"`
	Model        string `json:"model"`
}

// Registry holds agent definitions by id.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		defs: make(map[string]*Definition),
	}
}

// DefaultRegistry returns a registry pre-loaded with the built-in agents.
// The model field is left empty so each gateway applies its configured
// default.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Upsert(&Definition{
		ID:           AgentPersonaGeneration,
		Name:         "Persona Generator",
		Instructions: "Generate a realistic customer persona as JSON with fields: name, intent, sentiment, subject, background.",
	})
	r.Upsert(&Definition{
		ID:           AgentTranscriptParsing,
		Name:         "Transcript Parser",
		Instructions: "Parse the provided call transcript into a JSON array of {speaker, text} turns, preserving order.",
	})
	r.Upsert(&Definition{
		ID:           AgentPromptValidation,
		Name:         "Prompt Validator",
		Instructions: "Review the provided agent prompt for contradictions, missing guardrails and ambiguity; reply with a JSON list of findings.",
	})
	r.Upsert(&Definition{
		ID:           AgentC2Message,
		Name:         "C2 Message Generator",
		Instructions: "Produce the next message for the given conversational context, matching tone and intent.",
	})
	r.Upsert(&Definition{
		ID:           AgentRepresentative,
		Name:         "Service Representative",
		Instructions: representativeInstructions,
	})
	r.Upsert(&Definition{
		ID:           AgentCustomer,
		Name:         "Simulated Customer",
		Instructions: customerInstructions,
	})
	return r
}

// Get returns the definition for the agent id.
func (r *Registry) Get(id string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[id]
	if !ok {
		return nil, fmt.Errorf("agent %q: %w", id, mderrors.ErrNotFound)
	}
	copied := *def
	return &copied, nil
}

// Upsert registers or replaces a definition.
func (r *Registry) Upsert(def *Definition) {
	if def == nil || def.ID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *def
	r.defs[def.ID] = &copied
}

// List returns all definitions.
func (r *Registry) List() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Definition, 0, len(r.defs))
	for _, def := range r.defs {
		copied := *def
		out = append(out, &copied)
	}
	return out
}
