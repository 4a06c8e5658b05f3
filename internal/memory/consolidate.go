package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mnemo-ai/mnemo/internal/embedding"
	"github.com/mnemo-ai/mnemo/internal/model"
	"github.com/mnemo-ai/mnemo/internal/store"
	"github.com/mnemo-ai/mnemo/internal/textprep"
)

// Consolidation rules. Thresholds sit on the same axis as stored
// importance; promotion multipliers clamp at the importance ceiling.
const (
	shortPromoteAccessCount = 3
	shortPromoteAge         = 2 * time.Hour
	shortPromoteImportance  = 0.5
	shortPromoteBoost       = 1.1

	mediumPromoteAge   = 24 * time.Hour
	mediumPromoteBoost = 1.05

	pruneImportanceBelow = 0.3

	mergeGroupAbove      = 2 // groups larger than this collapse
	mergeImportanceBoost = 1.2
	mergeDelimiter       = "\n---\n"
)

// ConsolidateParams holds parameters for a consolidation pass.
type ConsolidateParams struct {
	Owner               model.OwnerKeys
	MaxMemories         int     // 0 uses the service default
	ImportanceThreshold float64 // 0 uses the service default
}

// Action records one consolidation step.
type Action struct {
	Type      string      `json:"type"` // backfill | upgrade | prune | merge
	ID        string      `json:"id,omitempty"`
	From      model.Scope `json:"from,omitempty"`
	To        model.Scope `json:"to,omitempty"`
	MergedIDs []string    `json:"merged_ids,omitempty"`
	NewID     string      `json:"new_id,omitempty"`
}

// Report summarizes a consolidation pass.
type Report struct {
	InitialCount int      `json:"initial_count"`
	FinalCount   int      `json:"final_count"`
	Actions      []Action `json:"actions"`
}

// Consolidate runs one maintenance pass over an owner's memories:
// embedding backfill, tier promotion, pruning, and merging, in that
// order. Each action is attempted independently; per-record failures
// are logged and skipped. Re-running with no intervening writes
// performs no further actions, since every rule re-evaluates current
// state.
func (s *Service) Consolidate(ctx context.Context, p ConsolidateParams) (*Report, error) {
	if p.Owner.Empty() {
		return nil, fmt.Errorf("consolidate: at least one owner key required: %w", model.ErrInvalidRequest)
	}

	maxMemories := p.MaxMemories
	if maxMemories <= 0 {
		maxMemories = s.defaults.MaxMemories
	}
	threshold := p.ImportanceThreshold
	if threshold <= 0 {
		threshold = s.defaults.ImportanceThreshold
	}

	memories, err := s.store.List(ctx, store.ListParams{Owner: p.Owner})
	if err != nil {
		return nil, fmt.Errorf("consolidate: list memories: %w", err)
	}

	report := &Report{InitialCount: len(memories), Actions: []Action{}}
	now := time.Now().UTC()

	s.backfillEmbeddings(ctx, memories, report)
	s.promote(ctx, memories, now, threshold, report)
	remaining := s.prune(ctx, memories, maxMemories, report)
	count := s.merge(ctx, remaining, now, report)

	report.FinalCount = count
	return report, nil
}

// backfillEmbeddings gives vectorless (or hash-tagged) records one
// attempt at a real embedding. The hash fallback is skipped here so a
// failed backfill can succeed on a later pass.
func (s *Service) backfillEmbeddings(ctx context.Context, memories []model.Memory, report *Report) {
	for i := range memories {
		m := &memories[i]
		if m.HasEmbedding() && m.EmbeddingProvider != embedding.HashProviderName {
			continue
		}
		res, err := s.embedder.EmbedStrict(ctx, m.EmbeddingText(), "")
		if err != nil {
			s.logger.Warn("embedding backfill failed", "id", m.ID, "error", err)
			continue
		}
		if err := s.store.SetEmbedding(ctx, m.ID, res.Provider, res.Vector); err != nil {
			s.logger.Warn("embedding backfill write failed", "id", m.ID, "error", err)
			continue
		}
		m.Embedding = res.Vector
		m.EmbeddingProvider = res.Provider
		report.Actions = append(report.Actions, Action{Type: "backfill", ID: m.ID})
	}
}

// promote applies the forward-only tier promotions. Scope never moves
// backward; importance never decreases.
func (s *Service) promote(ctx context.Context, memories []model.Memory, now time.Time, threshold float64, report *Report) {
	// Short → medium: frequently accessed, or aged and important.
	for i := range memories {
		m := &memories[i]
		if m.Scope != model.ScopeShort {
			continue
		}
		age := now.Sub(m.CreatedAt)
		if m.AccessCount > shortPromoteAccessCount ||
			(age > shortPromoteAge && m.Importance > shortPromoteImportance) {
			s.upgrade(ctx, m, model.ScopeMedium, shortPromoteBoost, report)
		}
	}

	// Medium → long: aged a day past creation and above the threshold.
	// Records promoted in this same pass are re-evaluated against the
	// current state, same as a record that was already medium.
	for i := range memories {
		m := &memories[i]
		if m.Scope != model.ScopeMedium {
			continue
		}
		age := now.Sub(m.CreatedAt)
		if age > mediumPromoteAge && m.Importance >= threshold {
			s.upgrade(ctx, m, model.ScopeLong, mediumPromoteBoost, report)
		}
	}
}

func (s *Service) upgrade(ctx context.Context, m *model.Memory, to model.Scope, boost float64, report *Report) {
	importance := model.ClampImportance(m.Importance * boost)
	if err := s.store.SetScopeImportance(ctx, m.ID, to, importance); err != nil {
		s.logger.Warn("promotion failed", "id", m.ID, "to", to, "error", err)
		return
	}
	report.Actions = append(report.Actions, Action{Type: "upgrade", ID: m.ID, From: m.Scope, To: to})
	m.Scope = to
	m.Importance = importance
}

// prune deletes the lowest-importance short-scope records while the
// owner is over the memory ceiling. Other tiers are never pruned.
// Returns the surviving records.
func (s *Service) prune(ctx context.Context, memories []model.Memory, maxMemories int, report *Report) []model.Memory {
	count := len(memories)
	if count <= maxMemories {
		return memories
	}

	type candidate struct {
		idx        int
		importance float64
	}
	var candidates []candidate
	for i := range memories {
		if memories[i].Scope == model.ScopeShort && memories[i].Importance < pruneImportanceBelow {
			candidates = append(candidates, candidate{idx: i, importance: memories[i].Importance})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].importance < candidates[j].importance
	})

	deleted := make(map[int]bool)
	for _, c := range candidates {
		if count <= maxMemories {
			break
		}
		id := memories[c.idx].ID
		if err := s.store.Delete(ctx, []string{id}); err != nil {
			s.logger.Warn("prune failed", "id", id, "error", err)
			continue
		}
		deleted[c.idx] = true
		count--
		report.Actions = append(report.Actions, Action{Type: "prune", ID: id})
	}

	remaining := memories[:0:0]
	for i := range memories {
		if !deleted[i] {
			remaining = append(remaining, memories[i])
		}
	}
	return remaining
}

// merge groups the remaining memories by a coarse content-prefix
// similarity key and collapses any group larger than mergeGroupAbove
// into one new record, then deletes the originals (create-then-delete
// avoids data loss on partial failure). Returns the final count.
func (s *Service) merge(ctx context.Context, memories []model.Memory, now time.Time, report *Report) int {
	count := len(memories)

	groups := make(map[string][]model.Memory)
	for _, m := range memories {
		key := textprep.MergeKey(m.Content, textprep.DefaultMergePrefix)
		groups[key] = append(groups[key], m)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		group := groups[key]
		if len(group) <= mergeGroupAbove {
			continue
		}

		sort.Slice(group, func(i, j int) bool {
			return group[i].CreatedAt.Before(group[j].CreatedAt)
		})

		merged := s.buildMerged(ctx, group, now)
		created, err := s.store.Create(ctx, merged)
		if err != nil {
			s.logger.Warn("merge create failed", "key", key, "error", err)
			continue
		}

		ids := make([]string, 0, len(group))
		for _, m := range group {
			if err := s.store.Delete(ctx, []string{m.ID}); err != nil {
				s.logger.Warn("merge delete failed", "id", m.ID, "error", err)
				continue
			}
			ids = append(ids, m.ID)
			count--
		}
		count++

		report.Actions = append(report.Actions, Action{Type: "merge", MergedIDs: ids, NewID: created.ID})
	}

	return count
}

// buildMerged assembles the replacement record for a merge group:
// highest scope wins, importance is the boosted group average, tags
// are unioned, contents are joined with a delimiter.
func (s *Service) buildMerged(ctx context.Context, group []model.Memory, now time.Time) *model.Memory {
	scope := group[0].Scope
	total := 0.0
	tagSet := make(map[string]bool)
	contents := make([]string, 0, len(group))
	for _, m := range group {
		scope = model.MaxScope(scope, m.Scope)
		total += m.Importance
		for _, t := range m.Tags {
			tagSet[t] = true
		}
		contents = append(contents, m.Content)
	}
	var tags []string
	for t := range tagSet {
		tags = append(tags, t)
	}
	sort.Strings(tags)

	consolidatedAt := now
	merged := &model.Memory{
		SessionID:      group[0].SessionID,
		UserID:         group[0].UserID,
		VisitorID:      group[0].VisitorID,
		Scope:          scope,
		Content:        strings.Join(contents, mergeDelimiter),
		Importance:     model.ClampImportance(total / float64(len(group)) * mergeImportanceBoost),
		Tags:           tags,
		CreatedAt:      now,
		MergedFrom:     len(group),
		ConsolidatedAt: &consolidatedAt,
	}

	// Merged records get a freshly computed embedding; originals'
	// vectors are never reused or mutated.
	if res, err := s.embedder.Embed(ctx, merged.EmbeddingText(), ""); err != nil {
		s.logger.Warn("merge embedding failed", "error", err)
	} else {
		merged.Embedding = res.Vector
		merged.EmbeddingProvider = res.Provider
	}

	return merged
}
