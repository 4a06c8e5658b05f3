// Package store provides the memory storage interface and SQLite implementation.
package store

import (
	"context"
	"time"

	"github.com/mnemo-ai/mnemo/internal/model"
)

// CandidateParams holds parameters for fetching recall candidates.
type CandidateParams struct {
	Owner  model.OwnerKeys
	Scopes []model.Scope
	Limit  int
}

// ListParams holds parameters for listing memories.
type ListParams struct {
	Owner  model.OwnerKeys
	Scopes []model.Scope
	Tags   []string
	Limit  int // 0 means no limit
}

// Store defines the memory storage interface.
type Store interface {
	// Create persists a new memory, assigning ID and CreatedAt when
	// unset. Returns the stored record.
	Create(ctx context.Context, m *model.Memory) (*model.Memory, error)

	// Get retrieves a memory by id.
	Get(ctx context.Context, id string) (*model.Memory, error)

	// Candidates returns memories for the owner within the given
	// scopes, ordered by importance descending, bounded to limit.
	Candidates(ctx context.Context, p CandidateParams) ([]model.Memory, error)

	// List returns memories for the owner, newest first.
	List(ctx context.Context, p ListParams) ([]model.Memory, error)

	// Count returns the number of memories for the owner.
	Count(ctx context.Context, owner model.OwnerKeys) (int, error)

	// Touch records recall access: last_referenced_at = at and
	// access_count incremented, for each id.
	Touch(ctx context.Context, ids []string, at time.Time) error

	// SetScopeImportance moves a memory to a new scope with an
	// adjusted importance (promotion).
	SetScopeImportance(ctx context.Context, id string, scope model.Scope, importance float64) error

	// SetEmbedding backfills a memory's vector and provider tag.
	SetEmbedding(ctx context.Context, id, provider string, vec []float32) error

	// Delete hard-deletes the given memories.
	Delete(ctx context.Context, ids []string) error

	// Close closes the store.
	Close() error
}
