package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mnemo-ai/mnemo/internal/embedding"
	"github.com/mnemo-ai/mnemo/internal/model"
	"github.com/mnemo-ai/mnemo/internal/store"
)

// RecallParams holds parameters for recalling memories.
type RecallParams struct {
	Owner    model.OwnerKeys
	Query    string
	Scopes   []model.Scope // default: medium, long, episodic
	Limit    int           // default from service config
	Provider string        // embedding provider override
}

// RecalledMemory is a memory annotated with its ranking score and how
// the score was produced (vector similarity or importance fallback).
type RecalledMemory struct {
	model.Memory
	Score        float64 `json:"score"`
	VectorScored bool    `json:"vector_scored"`
}

// Recall returns the top-K memories most relevant to the query.
//
// Candidates are pre-filtered by importance (the candidate set is
// bounded to the limit, not a full scan). Candidates whose stored
// vector matches the query vector's provider and dimensionality are
// scored by cosine similarity; all others fall back to importance/10
// so vectorless memories stay competitive. Query-embedding failure
// degrades the whole call to pure importance ranking; it never fails
// the caller.
func (s *Service) Recall(ctx context.Context, p RecallParams) ([]RecalledMemory, error) {
	if p.Owner.Empty() {
		return nil, fmt.Errorf("recall: at least one owner key required: %w", model.ErrInvalidRequest)
	}

	limit := p.Limit
	if limit <= 0 {
		limit = s.defaults.RecallLimit
	}
	scopes := p.Scopes
	if len(scopes) == 0 {
		scopes = model.DefaultRecallScopes
	}

	candidates, err := s.store.Candidates(ctx, store.CandidateParams{
		Owner:  p.Owner,
		Scopes: scopes,
		Limit:  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("recall: fetch candidates: %w", err)
	}
	if len(candidates) == 0 {
		return []RecalledMemory{}, nil
	}

	query, err := s.embedder.Embed(ctx, p.Query, p.Provider)
	if err != nil {
		s.logger.Warn("query embedding failed, using importance ranking", "error", err)
		query = nil
	}

	results := make([]RecalledMemory, 0, len(candidates))
	for _, m := range candidates {
		score := m.Importance / model.ImportanceMax
		vectorScored := false
		if query != nil && m.HasEmbedding() &&
			m.EmbeddingProvider == query.Provider && len(m.Embedding) == query.Dims {
			score = embedding.CosineSimilarity(query.Vector, m.Embedding)
			vectorScored = true
		}
		results = append(results, RecalledMemory{Memory: m, Score: score, VectorScored: vectorScored})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}

	// Access bookkeeping is best-effort: a failed update must not fail
	// the recall.
	now := time.Now().UTC()
	ids := make([]string, len(results))
	for i := range results {
		ids[i] = results[i].ID
	}
	if err := s.store.Touch(ctx, ids, now); err != nil {
		s.logger.Warn("recall bookkeeping failed", "error", err)
	} else {
		for i := range results {
			results[i].AccessCount++
			at := now
			results[i].LastReferencedAt = &at
		}
	}

	return results, nil
}
