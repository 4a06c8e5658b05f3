// Package model defines the core memory data types.
package model

import "time"

// Scope is a memory's position in the lifecycle tier ordering.
type Scope string

const (
	ScopeShort    Scope = "short"
	ScopeMedium   Scope = "medium"
	ScopeLong     Scope = "long"
	ScopeEpisodic Scope = "episodic"
)

// AllScopes lists every scope in lifecycle order.
var AllScopes = []Scope{ScopeShort, ScopeMedium, ScopeLong, ScopeEpisodic}

// DefaultRecallScopes are the tiers searched by cross-session recall.
// Short-term is excluded: it represents in-progress context.
var DefaultRecallScopes = []Scope{ScopeMedium, ScopeLong, ScopeEpisodic}

var scopeRank = map[Scope]int{
	ScopeShort:    0,
	ScopeMedium:   1,
	ScopeLong:     2,
	ScopeEpisodic: 3,
}

// Rank returns the scope's position in the lifecycle ordering
// (short < medium < long < episodic). Unknown scopes rank -1.
func (s Scope) Rank() int {
	if r, ok := scopeRank[s]; ok {
		return r
	}
	return -1
}

// Valid reports whether s is one of the four lifecycle scopes.
func (s Scope) Valid() bool {
	_, ok := scopeRank[s]
	return ok
}

// MaxScope returns the higher of two scopes in lifecycle order.
func MaxScope(a, b Scope) Scope {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Importance bounds. Importance is set by the caller's heuristic at
// write time and only ever adjusted upward by consolidation.
const (
	ImportanceMin     = 0.0
	ImportanceMax     = 10.0
	ImportanceDefault = 5.0
)

// ClampImportance clamps v to the nominal importance range.
func ClampImportance(v float64) float64 {
	if v < ImportanceMin {
		return ImportanceMin
	}
	if v > ImportanceMax {
		return ImportanceMax
	}
	return v
}

// OwnerKeys identifies who a memory belongs to. At least one key must
// be set; queries match any of the set keys.
type OwnerKeys struct {
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	VisitorID string `json:"visitor_id,omitempty"`
}

// Empty reports whether no owner key is set.
func (o OwnerKeys) Empty() bool {
	return o.SessionID == "" && o.UserID == "" && o.VisitorID == ""
}

// Memory represents a stored memory entry.
type Memory struct {
	ID                string     `json:"id"`
	SessionID         string     `json:"session_id,omitempty"`
	UserID            string     `json:"user_id,omitempty"`
	VisitorID         string     `json:"visitor_id,omitempty"`
	Scope             Scope      `json:"scope"`
	Content           string     `json:"content"`
	Summary           string     `json:"summary,omitempty"`
	Importance        float64    `json:"importance"`
	Embedding         []float32  `json:"embedding,omitempty"`
	EmbeddingProvider string     `json:"embedding_provider,omitempty"`
	Tags              []string   `json:"tags,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	LastReferencedAt  *time.Time `json:"last_referenced_at,omitempty"`
	AccessCount       int        `json:"access_count"`
	MergedFrom        int        `json:"merged_from,omitempty"`
	ConsolidatedAt    *time.Time `json:"consolidated_at,omitempty"`
}

// Owner returns the memory's owner keys.
func (m *Memory) Owner() OwnerKeys {
	return OwnerKeys{SessionID: m.SessionID, UserID: m.UserID, VisitorID: m.VisitorID}
}

// EmbeddingText is the canonical string used for embedding generation:
// the summary when present, otherwise the raw content.
func (m *Memory) EmbeddingText() string {
	if m.Summary != "" {
		return m.Summary
	}
	return m.Content
}

// HasEmbedding reports whether the memory carries a stored vector.
func (m *Memory) HasEmbedding() bool {
	return len(m.Embedding) > 0
}
