// Package cache provides deterministic reuse of generated agent responses,
// keyed by the exact prompt, agent name and agent instruction version.
// Caching is a pure optimization: lookup failures must never block
// generation, so Find reports misses instead of errors.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Record is a previously generated response. Records are written once per
// unique (prompt, agent, version) triple and never updated.
type Record struct {
	Prompt         string    `json:"prompt" bson:"prompt"`
	AgentName      string    `json:"agent_name" bson:"agent_name"`
	AgentVersion   string    `json:"agent_version" bson:"agent_version"`
	ResponseText   string    `json:"response_text" bson:"response_text"`
	TokensUsed     int       `json:"tokens_used" bson:"tokens_used"`
	ConversationID string    `json:"conversation_id" bson:"conversation_id"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
}

// Cache looks up and stores response records.
type Cache interface {
	// Find returns the cached record for the exact key triple, or reports
	// a miss. Backend failures are soft: logged and reported as a miss.
	Find(ctx context.Context, prompt, agentName, agentVersion string) (*Record, bool)

	// Save persists a record. Races writing the same key are acceptable;
	// duplicate entries are consistent and ties break by latest CreatedAt.
	Save(ctx context.Context, record *Record) error
}

// Key derives the storage key for a (prompt, agent, version) triple.
func Key(prompt, agentName, agentVersion string) string {
	h := sha256.New()
	h.Write([]byte(prompt))
	h.Write([]byte{0})
	h.Write([]byte(agentName))
	h.Write([]byte{0})
	h.Write([]byte(agentVersion))
	return hex.EncodeToString(h.Sum(nil))
}
