// Package simulation drives bounded two-role conversation simulations
// between a service representative agent and a persona-driven customer
// agent sharing one conversation.
package simulation

import (
	"fmt"
	"time"

	"github.com/sweetpotato0/mountdoom/config"
	mderrors "github.com/sweetpotato0/mountdoom/errors"
)

// Role identifies which simulated party produced a turn.
type Role string

const (
	RoleRepresentative Role = "representative"
	RoleCustomer       Role = "customer"
)

// Status is the lifecycle state of a simulation run.
type Status string

const (
	// StatusOngoing marks a run still in progress, or one persisted
	// mid-flight after cancellation.
	StatusOngoing Status = "ongoing"

	// StatusCompleted marks a run that reached a termination signal or the
	// turn bound. Terminal.
	StatusCompleted Status = "completed"

	// StatusFailed marks a run aborted by a provider failure. Terminal.
	StatusFailed Status = "failed"
)

// ConversationTurn is one generated message. Turns are immutable once
// appended; their order is the transcript.
type ConversationTurn struct {
	Role       Role   `json:"role" bson:"role"`
	Content    string `json:"content" bson:"content"`
	TokensUsed int    `json:"tokens_used" bson:"tokens_used"`
}

// Properties is the session-scoped customer persona, supplied once at
// start and never mutated. The representative role is never given
// visibility into this record.
type Properties struct {
	CustomerIntent      string `json:"customer_intent" bson:"customer_intent"`
	CustomerSentiment   string `json:"customer_sentiment" bson:"customer_sentiment"`
	ConversationSubject string `json:"conversation_subject" bson:"conversation_subject"`
}

// Validate rejects empty persona fields before any provider work begins.
func (p Properties) Validate() error {
	v := config.NewValidator()
	v.RequireNonEmpty("customer_intent", p.CustomerIntent)
	v.RequireNonEmpty("customer_sentiment", p.CustomerSentiment)
	v.RequireNonEmpty("conversation_subject", p.ConversationSubject)
	if err := v.Err(); err != nil {
		return fmt.Errorf("%w: %v", mderrors.ErrInvalidInput, err)
	}
	return nil
}

// SimulationRun is the persisted record of one simulation. It is keyed by
// the gateway-assigned conversation id, so a retried run against the same
// provider conversation overwrites rather than duplicates.
type SimulationRun struct {
	ConversationID  string             `json:"conversation_id" bson:"conversation_id"`
	Properties      Properties         `json:"properties" bson:"properties"`
	Turns           []ConversationTurn `json:"turns" bson:"turns"`
	Status          Status             `json:"status" bson:"status"`
	TotalTokensUsed int                `json:"total_tokens_used" bson:"total_tokens_used"`
	StartTime       time.Time          `json:"start_time" bson:"start_time"`
	EndTime         time.Time          `json:"end_time" bson:"end_time"`
	CreatedAt       time.Time          `json:"created_at" bson:"created_at"`
}

// appendTurn records a generated turn in transcript order.
func (r *SimulationRun) appendTurn(role Role, content string, tokens int) {
	r.Turns = append(r.Turns, ConversationTurn{
		Role:       role,
		Content:    content,
		TokensUsed: tokens,
	})
}

// lastContent returns the content of the most recent turn by the role.
func (r *SimulationRun) lastContent(role Role) string {
	for i := len(r.Turns) - 1; i >= 0; i-- {
		if r.Turns[i].Role == role {
			return r.Turns[i].Content
		}
	}
	return ""
}

// finalize stamps totals and the end time. Called exactly once at loop exit.
func (r *SimulationRun) finalize(now time.Time) {
	total := 0
	for _, turn := range r.Turns {
		total += turn.TokensUsed
	}
	r.TotalTokensUsed = total
	r.EndTime = now
}
