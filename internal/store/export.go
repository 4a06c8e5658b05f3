package store

import (
	"context"

	"github.com/mnemo-ai/mnemo/internal/model"
)

// ExportAll returns every memory in the database, oldest first.
func (s *SQLiteStore) ExportAll(ctx context.Context) ([]model.Memory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+memoryColumns+` FROM memories ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectMemories(rows)
}

// Import stores memories from an export, keeping their ids, vectors,
// and bookkeeping intact. Returns the number imported.
func (s *SQLiteStore) Import(ctx context.Context, memories []model.Memory) (int, error) {
	imported := 0
	for i := range memories {
		m := memories[i]
		if _, err := s.Create(ctx, &m); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}
