// Package memory implements the tiered conversational memory
// operations: saving memories with embeddings, recalling the most
// relevant ones for a query, and consolidating tiers.
package memory

import (
	"context"
	"log/slog"

	"github.com/mnemo-ai/mnemo/internal/embedding"
	"github.com/mnemo-ai/mnemo/internal/store"
)

// Embedder is the gateway surface the service depends on.
type Embedder interface {
	// Embed produces a vector with the full fallback chain.
	Embed(ctx context.Context, text, provider string) (*embedding.Result, error)
	// EmbedStrict fails instead of degrading to the hash fallback.
	EmbedStrict(ctx context.Context, text, provider string) (*embedding.Result, error)
}

// Defaults are per-call fallbacks for the three operations. Zero
// values take the built-in defaults.
type Defaults struct {
	RecallLimit         int
	MaxMemories         int
	ImportanceThreshold float64
}

const (
	defaultRecallLimit         = 5
	defaultMaxMemories         = 100
	defaultImportanceThreshold = 0.7
)

// Service exposes the memory subsystem to the conversational
// orchestrator. All operations are stateless request handlers; shared
// state lives in the store and the gateway's cache/limiters.
type Service struct {
	store    store.Store
	embedder Embedder
	logger   *slog.Logger
	defaults Defaults
}

// NewService wires a memory service.
func NewService(st store.Store, embedder Embedder, logger *slog.Logger, defaults Defaults) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if defaults.RecallLimit <= 0 {
		defaults.RecallLimit = defaultRecallLimit
	}
	if defaults.MaxMemories <= 0 {
		defaults.MaxMemories = defaultMaxMemories
	}
	if defaults.ImportanceThreshold <= 0 {
		defaults.ImportanceThreshold = defaultImportanceThreshold
	}
	return &Service{
		store:    st,
		embedder: embedder,
		logger:   logger,
		defaults: defaults,
	}
}
