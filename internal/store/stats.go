package store

import (
	"context"
	"os"
)

// Stats holds database statistics.
type Stats struct {
	DBPath         string       `json:"db_path"`
	DBSizeBytes    int64        `json:"db_size_bytes"`
	TotalMemories  int          `json:"total_memories"`
	WithEmbeddings int          `json:"with_embeddings"`
	Scopes         []ScopeStats `json:"scopes"`
	Owners         []OwnerStats `json:"owners"`
}

// ScopeStats holds per-tier counts.
type ScopeStats struct {
	Scope         string  `json:"scope"`
	Count         int     `json:"count"`
	AvgImportance float64 `json:"avg_importance"`
}

// OwnerStats holds per-owner counts. Owner is whichever key is set,
// user first.
type OwnerStats struct {
	Owner string `json:"owner"`
	Count int    `json:"count"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath}

	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&st.TotalMemories)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories WHERE embedding IS NOT NULL`).Scan(&st.WithEmbeddings)

	rows, err := s.db.QueryContext(ctx, `
		SELECT scope, COUNT(*), AVG(importance)
		FROM memories GROUP BY scope
		ORDER BY COUNT(*) DESC`)
	if err != nil {
		return st, err
	}
	defer rows.Close()
	for rows.Next() {
		var sc ScopeStats
		rows.Scan(&sc.Scope, &sc.Count, &sc.AvgImportance)
		st.Scopes = append(st.Scopes, sc)
	}

	orows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(user_id, session_id, visitor_id, ''), COUNT(*)
		FROM memories
		GROUP BY COALESCE(user_id, session_id, visitor_id, '')
		ORDER BY COUNT(*) DESC`)
	if err != nil {
		return st, err
	}
	defer orows.Close()
	for orows.Next() {
		var o OwnerStats
		orows.Scan(&o.Owner, &o.Count)
		st.Owners = append(st.Owners, o)
	}

	return st, nil
}
