package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/mnemo-ai/mnemo/internal/model"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	entropy *rand.Rand
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id                 TEXT PRIMARY KEY,
		session_id         TEXT,
		user_id            TEXT,
		visitor_id         TEXT,
		scope              TEXT NOT NULL,
		content            TEXT NOT NULL,
		summary            TEXT,
		importance         REAL NOT NULL,
		embedding          TEXT,
		embedding_provider TEXT,
		tags               TEXT,
		created_at         TEXT NOT NULL,
		last_referenced_at TEXT,
		access_count       INTEGER NOT NULL DEFAULT 0,
		merged_from        INTEGER NOT NULL DEFAULT 0,
		consolidated_at    TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_memories_session ON memories(session_id);
	CREATE INDEX IF NOT EXISTS idx_memories_user ON memories(user_id);
	CREATE INDEX IF NOT EXISTS idx_memories_visitor ON memories(visitor_id);
	CREATE INDEX IF NOT EXISTS idx_memories_scope ON memories(scope);
	CREATE INDEX IF NOT EXISTS idx_memories_importance ON memories(importance DESC);
	CREATE INDEX IF NOT EXISTS idx_memories_created ON memories(created_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

const memoryColumns = `id, session_id, user_id, visitor_id, scope, content, summary,
	importance, embedding, embedding_provider, tags, created_at,
	last_referenced_at, access_count, merged_from, consolidated_at`

// ownerClause builds the any-of owner filter. At least one key must be set.
func ownerClause(o model.OwnerKeys) (string, []interface{}, error) {
	if o.Empty() {
		return "", nil, fmt.Errorf("owner keys required: %w", model.ErrInvalidRequest)
	}
	var parts []string
	var args []interface{}
	if o.SessionID != "" {
		parts = append(parts, "session_id = ?")
		args = append(args, o.SessionID)
	}
	if o.UserID != "" {
		parts = append(parts, "user_id = ?")
		args = append(args, o.UserID)
	}
	if o.VisitorID != "" {
		parts = append(parts, "visitor_id = ?")
		args = append(args, o.VisitorID)
	}
	return "(" + strings.Join(parts, " OR ") + ")", args, nil
}

func scopeClause(scopes []model.Scope) (string, []interface{}) {
	if len(scopes) == 0 {
		return "", nil
	}
	marks := make([]string, len(scopes))
	args := make([]interface{}, len(scopes))
	for i, sc := range scopes {
		marks[i] = "?"
		args[i] = string(sc)
	}
	return "scope IN (" + strings.Join(marks, ", ") + ")", args
}

func (s *SQLiteStore) Create(ctx context.Context, m *model.Memory) (*model.Memory, error) {
	if m.ID == "" {
		m.ID = s.newID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	var tagsJSON, embJSON *string
	if len(m.Tags) > 0 {
		b, _ := json.Marshal(m.Tags)
		v := string(b)
		tagsJSON = &v
	}
	if len(m.Embedding) > 0 {
		b, _ := json.Marshal(m.Embedding)
		v := string(b)
		embJSON = &v
	}

	var lastRef, consolidated *string
	if m.LastReferencedAt != nil {
		v := m.LastReferencedAt.UTC().Format(time.RFC3339)
		lastRef = &v
	}
	if m.ConsolidatedAt != nil {
		v := m.ConsolidatedAt.UTC().Format(time.RFC3339)
		consolidated = &v
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memories (`+memoryColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, nullable(m.SessionID), nullable(m.UserID), nullable(m.VisitorID),
		string(m.Scope), m.Content, nullable(m.Summary), m.Importance,
		embJSON, nullable(m.EmbeddingProvider), tagsJSON,
		m.CreatedAt.Format(time.RFC3339), lastRef, m.AccessCount,
		m.MergedFrom, consolidated)
	if err != nil {
		return nil, fmt.Errorf("insert memory: %w", err)
	}

	return m, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.Memory, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+memoryColumns+` FROM memories WHERE id = ?`, id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("memory not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *SQLiteStore) Candidates(ctx context.Context, p CandidateParams) ([]model.Memory, error) {
	ownerSQL, args, err := ownerClause(p.Owner)
	if err != nil {
		return nil, err
	}
	where := []string{ownerSQL}
	if sc, scArgs := scopeClause(p.Scopes); sc != "" {
		where = append(where, sc)
		args = append(args, scArgs...)
	}

	limit := p.Limit
	if limit <= 0 {
		limit = 5
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+memoryColumns+` FROM memories
		 WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY importance DESC, created_at DESC
		 LIMIT ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectMemories(rows)
}

func (s *SQLiteStore) List(ctx context.Context, p ListParams) ([]model.Memory, error) {
	ownerSQL, args, err := ownerClause(p.Owner)
	if err != nil {
		return nil, err
	}
	where := []string{ownerSQL}
	if sc, scArgs := scopeClause(p.Scopes); sc != "" {
		where = append(where, sc)
		args = append(args, scArgs...)
	}
	for _, tag := range p.Tags {
		where = append(where, "tags LIKE ?")
		args = append(args, "%\""+tag+"\"%")
	}

	query := `SELECT ` + memoryColumns + ` FROM memories
		 WHERE ` + strings.Join(where, " AND ") + `
		 ORDER BY created_at DESC`
	if p.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, p.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectMemories(rows)
}

func (s *SQLiteStore) Count(ctx context.Context, owner model.OwnerKeys) (int, error) {
	ownerSQL, args, err := ownerClause(owner)
	if err != nil {
		return 0, err
	}
	var n int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memories WHERE `+ownerSQL, args...).Scan(&n)
	return n, err
}

func (s *SQLiteStore) Touch(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	marks := make([]string, len(ids))
	args := []interface{}{at.UTC().Format(time.RFC3339)}
	for i, id := range ids {
		marks[i] = "?"
		args = append(args, id)
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE memories
		 SET last_referenced_at = ?, access_count = access_count + 1
		 WHERE id IN (`+strings.Join(marks, ", ")+`)`, args...)
	return err
}

func (s *SQLiteStore) SetScopeImportance(ctx context.Context, id string, scope model.Scope, importance float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET scope = ?, importance = ? WHERE id = ?`,
		string(scope), importance, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("memory not found: %s", id)
	}
	return nil
}

func (s *SQLiteStore) SetEmbedding(ctx context.Context, id, provider string, vec []float32) error {
	b, _ := json.Marshal(vec)
	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET embedding = ?, embedding_provider = ? WHERE id = ?`,
		string(b), provider, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("memory not found: %s", id)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	marks := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		marks[i] = "?"
		args[i] = id
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM memories WHERE id IN (`+strings.Join(marks, ", ")+`)`, args...)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMemory(row scanner) (model.Memory, error) {
	var m model.Memory
	var sessionID, userID, visitorID, summary sql.NullString
	var embJSON, provider, tagsJSON, lastRef, consolidated sql.NullString
	var scope, createdAt string

	err := row.Scan(
		&m.ID, &sessionID, &userID, &visitorID, &scope, &m.Content, &summary,
		&m.Importance, &embJSON, &provider, &tagsJSON, &createdAt,
		&lastRef, &m.AccessCount, &m.MergedFrom, &consolidated,
	)
	if err != nil {
		return m, err
	}

	m.SessionID = sessionID.String
	m.UserID = userID.String
	m.VisitorID = visitorID.String
	m.Scope = model.Scope(scope)
	m.Summary = summary.String
	m.EmbeddingProvider = provider.String
	m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if embJSON.Valid {
		json.Unmarshal([]byte(embJSON.String), &m.Embedding)
	}
	if tagsJSON.Valid {
		json.Unmarshal([]byte(tagsJSON.String), &m.Tags)
	}
	if lastRef.Valid {
		t, _ := time.Parse(time.RFC3339, lastRef.String)
		m.LastReferencedAt = &t
	}
	if consolidated.Valid {
		t, _ := time.Parse(time.RFC3339, consolidated.String)
		m.ConsolidatedAt = &t
	}

	return m, nil
}

func collectMemories(rows *sql.Rows) ([]model.Memory, error) {
	var memories []model.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}
