package memory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/mnemo-ai/mnemo/internal/embedding"
	"github.com/mnemo-ai/mnemo/internal/model"
	"github.com/mnemo-ai/mnemo/internal/store"
)

// fakeEmbedder serves canned vectors by text and fails on demand.
type fakeEmbedder struct {
	provider   string
	dims       int
	vectors    map[string]embedding.Vector
	fail       bool
	strictFail bool
	calls      int
}

func (e *fakeEmbedder) result(text string) *embedding.Result {
	vec, ok := e.vectors[text]
	if !ok {
		vec = make(embedding.Vector, e.dims)
		for i := range vec {
			vec[i] = 1
		}
	}
	return &embedding.Result{Vector: vec, Provider: e.provider, Dims: len(vec)}
}

func (e *fakeEmbedder) Embed(_ context.Context, text, _ string) (*embedding.Result, error) {
	e.calls++
	if e.fail {
		return nil, errors.New("embedder down")
	}
	return e.result(text), nil
}

func (e *fakeEmbedder) EmbedStrict(_ context.Context, text, _ string) (*embedding.Result, error) {
	e.calls++
	if e.fail || e.strictFail {
		return nil, errors.New("embedder down")
	}
	return e.result(text), nil
}

func newTestService(t *testing.T, e *fakeEmbedder) (*Service, store.Store) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	svc := NewService(st, e, slog.New(slog.NewTextHandler(io.Discard, nil)), Defaults{})
	return svc, st
}

// seed inserts a memory directly, bypassing Save, so tests control
// timestamps, counters, and vectors exactly.
func seed(t *testing.T, st store.Store, m model.Memory) *model.Memory {
	t.Helper()
	if m.UserID == "" && m.SessionID == "" && m.VisitorID == "" {
		m.UserID = "u1"
	}
	if m.Scope == "" {
		m.Scope = model.ScopeMedium
	}
	if m.Content == "" {
		m.Content = "seed content"
	}
	if m.Importance == 0 {
		m.Importance = model.ImportanceDefault
	}
	created, err := st.Create(context.Background(), &m)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return created
}

func hoursAgo(h float64) time.Time {
	return time.Now().UTC().Add(-time.Duration(h * float64(time.Hour)))
}
