package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mnemo-ai/mnemo/internal/model"
)

// SaveParams holds parameters for saving a memory.
type SaveParams struct {
	Owner      model.OwnerKeys
	Scope      model.Scope
	Content    string
	Summary    string
	Importance *float64 // nil means mid-range default
	Tags       []string
	Provider   string // embedding provider override, empty for default
}

// Save validates the request, attaches an embedding, and persists the
// record. Embedding failure is not fatal: the record is stored without
// a vector and remains retrievable through importance ranking until a
// consolidation pass backfills it.
func (s *Service) Save(ctx context.Context, p SaveParams) (*model.Memory, error) {
	if p.Owner.Empty() {
		return nil, fmt.Errorf("save: at least one owner key required: %w", model.ErrInvalidRequest)
	}
	if !p.Scope.Valid() {
		return nil, fmt.Errorf("save: invalid scope %q: %w", p.Scope, model.ErrInvalidRequest)
	}
	if strings.TrimSpace(p.Content) == "" {
		return nil, fmt.Errorf("save: content required: %w", model.ErrInvalidRequest)
	}

	importance := model.ImportanceDefault
	if p.Importance != nil {
		importance = model.ClampImportance(*p.Importance)
	}

	m := &model.Memory{
		SessionID:  p.Owner.SessionID,
		UserID:     p.Owner.UserID,
		VisitorID:  p.Owner.VisitorID,
		Scope:      p.Scope,
		Content:    p.Content,
		Summary:    p.Summary,
		Importance: importance,
		Tags:       p.Tags,
		CreatedAt:  time.Now().UTC(),
	}

	res, err := s.embedder.Embed(ctx, m.EmbeddingText(), p.Provider)
	if err != nil {
		s.logger.Warn("embedding failed, saving without vector",
			"provider", p.Provider, "error", err)
	} else {
		m.Embedding = res.Vector
		m.EmbeddingProvider = res.Provider
	}

	return s.store.Create(ctx, m)
}
