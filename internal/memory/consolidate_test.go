package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/mnemo-ai/mnemo/internal/model"
	"github.com/mnemo-ai/mnemo/internal/store"
)

func TestConsolidateRequiresOwner(t *testing.T) {
	svc, _ := newTestService(t, &fakeEmbedder{provider: "fake", dims: 4})

	_, err := svc.Consolidate(context.Background(), ConsolidateParams{})
	if !errors.Is(err, model.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

func actionsOfType(report *Report, typ string) []Action {
	var out []Action
	for _, a := range report.Actions {
		if a.Type == typ {
			out = append(out, a)
		}
	}
	return out
}

func TestConsolidatePromotesAgedImportantShort(t *testing.T) {
	svc, st := newTestService(t, &fakeEmbedder{provider: "fake", dims: 4})
	ctx := context.Background()
	owner := model.OwnerKeys{UserID: "u1"}

	m := seed(t, st, model.Memory{
		Scope: model.ScopeShort, Content: "aged and important",
		Importance: 0.6, CreatedAt: hoursAgo(3),
	})
	fresh := seed(t, st, model.Memory{
		Scope: model.ScopeShort, Content: "fresh, stays put",
		Importance: 0.6,
	})

	report, err := svc.Consolidate(ctx, ConsolidateParams{Owner: owner})
	if err != nil {
		t.Fatalf("consolidate: %v", err)
	}
	upgrades := actionsOfType(report, "upgrade")
	if len(upgrades) != 1 || upgrades[0].ID != m.ID {
		t.Fatalf("expected one upgrade for %s, got %+v", m.ID, upgrades)
	}
	if upgrades[0].From != model.ScopeShort || upgrades[0].To != model.ScopeMedium {
		t.Errorf("wrong transition: %s -> %s", upgrades[0].From, upgrades[0].To)
	}

	stored, err := st.Get(ctx, m.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Scope != model.ScopeMedium {
		t.Errorf("scope = %s, want medium", stored.Scope)
	}
	if math.Abs(stored.Importance-0.66) > 1e-9 {
		t.Errorf("importance = %v, want 0.66", stored.Importance)
	}

	unchanged, err := st.Get(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if unchanged.Scope != model.ScopeShort {
		t.Errorf("fresh memory promoted to %s", unchanged.Scope)
	}
}

func TestConsolidatePromotesFrequentlyAccessedShort(t *testing.T) {
	svc, st := newTestService(t, &fakeEmbedder{provider: "fake", dims: 4})
	ctx := context.Background()

	m := seed(t, st, model.Memory{
		Scope: model.ScopeShort, Content: "hot but brand new",
		Importance: 0.4, AccessCount: 4,
	})

	report, err := svc.Consolidate(ctx, ConsolidateParams{Owner: model.OwnerKeys{UserID: "u1"}})
	if err != nil {
		t.Fatalf("consolidate: %v", err)
	}
	if len(actionsOfType(report, "upgrade")) != 1 {
		t.Fatalf("expected one upgrade, got %+v", report.Actions)
	}
	stored, _ := st.Get(ctx, m.ID)
	if stored.Scope != model.ScopeMedium {
		t.Errorf("scope = %s, want medium", stored.Scope)
	}
}

func TestConsolidatePromotesMediumToLong(t *testing.T) {
	svc, st := newTestService(t, &fakeEmbedder{provider: "fake", dims: 4})
	ctx := context.Background()

	m := seed(t, st, model.Memory{
		Scope: model.ScopeMedium, Content: "a day old and above threshold",
		Importance: 0.8, CreatedAt: hoursAgo(25),
	})
	below := seed(t, st, model.Memory{
		Scope: model.ScopeMedium, Content: "a day old but below threshold",
		Importance: 0.5, CreatedAt: hoursAgo(25),
	})

	if _, err := svc.Consolidate(ctx, ConsolidateParams{Owner: model.OwnerKeys{UserID: "u1"}}); err != nil {
		t.Fatalf("consolidate: %v", err)
	}

	stored, _ := st.Get(ctx, m.ID)
	if stored.Scope != model.ScopeLong {
		t.Errorf("scope = %s, want long", stored.Scope)
	}
	if math.Abs(stored.Importance-0.84) > 1e-9 {
		t.Errorf("importance = %v, want 0.84", stored.Importance)
	}
	kept, _ := st.Get(ctx, below.ID)
	if kept.Scope != model.ScopeMedium {
		t.Errorf("below-threshold memory promoted to %s", kept.Scope)
	}
}

func TestConsolidatePromotesThroughBothTiersInOnePass(t *testing.T) {
	svc, st := newTestService(t, &fakeEmbedder{provider: "fake", dims: 4})
	ctx := context.Background()

	m := seed(t, st, model.Memory{
		Scope: model.ScopeShort, Content: "old enough for two hops",
		Importance: 0.8, CreatedAt: hoursAgo(26),
	})

	report, err := svc.Consolidate(ctx, ConsolidateParams{Owner: model.OwnerKeys{UserID: "u1"}})
	if err != nil {
		t.Fatalf("consolidate: %v", err)
	}
	upgrades := actionsOfType(report, "upgrade")
	if len(upgrades) != 2 {
		t.Fatalf("expected two upgrades, got %+v", upgrades)
	}

	stored, _ := st.Get(ctx, m.ID)
	if stored.Scope != model.ScopeLong {
		t.Errorf("scope = %s, want long", stored.Scope)
	}
	// 0.8 * 1.1 * 1.05
	if math.Abs(stored.Importance-0.924) > 1e-9 {
		t.Errorf("importance = %v, want 0.924", stored.Importance)
	}
}

func TestConsolidatePrunesOnlyLowImportanceShort(t *testing.T) {
	svc, st := newTestService(t, &fakeEmbedder{provider: "fake", dims: 4})
	ctx := context.Background()
	owner := model.OwnerKeys{UserID: "u1"}

	// 105 total: 98 prunable short, 4 medium, 3 short above the floor.
	for i := 0; i < 98; i++ {
		seed(t, st, model.Memory{
			Scope:      model.ScopeShort,
			Content:    fmt.Sprintf("scratch %03d distinct filler", i),
			Importance: 0.1 + float64(i)*0.001,
		})
	}
	for i := 0; i < 4; i++ {
		seed(t, st, model.Memory{
			Scope:      model.ScopeMedium,
			Content:    fmt.Sprintf("durable %03d distinct filler", i),
			Importance: 0.2,
		})
	}
	for i := 0; i < 3; i++ {
		seed(t, st, model.Memory{
			Scope:      model.ScopeShort,
			Content:    fmt.Sprintf("keeper %03d distinct filler", i),
			Importance: 0.5,
		})
	}

	report, err := svc.Consolidate(ctx, ConsolidateParams{Owner: owner})
	if err != nil {
		t.Fatalf("consolidate: %v", err)
	}
	prunes := actionsOfType(report, "prune")
	if len(prunes) != 5 {
		t.Fatalf("expected 5 prunes, got %d", len(prunes))
	}
	if report.InitialCount != 105 || report.FinalCount != 100 {
		t.Errorf("counts = %d -> %d, want 105 -> 100", report.InitialCount, report.FinalCount)
	}

	count, err := st.Count(ctx, owner)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 100 {
		t.Errorf("stored count = %d, want 100", count)
	}

	// Medium and above-floor short records all survive.
	survivors, err := st.List(ctx, store.ListParams{Owner: owner})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, m := range survivors {
		if m.Scope == model.ScopeShort && m.Importance < 0.105 {
			t.Errorf("lowest-importance record %s survived pruning", m.ID)
		}
	}
}

func TestConsolidatePruneSkippedUnderCeiling(t *testing.T) {
	svc, st := newTestService(t, &fakeEmbedder{provider: "fake", dims: 4})
	ctx := context.Background()

	seed(t, st, model.Memory{Scope: model.ScopeShort, Content: "tiny but safe", Importance: 0.1})

	report, err := svc.Consolidate(ctx, ConsolidateParams{Owner: model.OwnerKeys{UserID: "u1"}})
	if err != nil {
		t.Fatalf("consolidate: %v", err)
	}
	if len(actionsOfType(report, "prune")) != 0 {
		t.Error("pruning ran below the memory ceiling")
	}
}

func TestConsolidateMergesSimilarContent(t *testing.T) {
	svc, st := newTestService(t, &fakeEmbedder{provider: "fake", dims: 4})
	ctx := context.Background()
	owner := model.OwnerKeys{UserID: "u1"}

	a := seed(t, st, model.Memory{
		Scope: model.ScopeShort, Content: "user prefers dark mode in the editor",
		Importance: 2, Tags: []string{"prefs", "ui"}, CreatedAt: hoursAgo(1.0),
	})
	b := seed(t, st, model.Memory{
		Scope: model.ScopeMedium, Content: "User prefers dark mode in the terminal too",
		Importance: 4, Tags: []string{"ui"}, CreatedAt: hoursAgo(0.5),
	})
	c := seed(t, st, model.Memory{
		Scope: model.ScopeLong, Content: "user  prefers dark  mode in the docs viewer",
		Importance: 6, CreatedAt: hoursAgo(0.2),
	})
	unrelated := seed(t, st, model.Memory{
		Scope: model.ScopeShort, Content: "completely different subject matter", Importance: 3,
	})

	report, err := svc.Consolidate(ctx, ConsolidateParams{Owner: owner})
	if err != nil {
		t.Fatalf("consolidate: %v", err)
	}
	merges := actionsOfType(report, "merge")
	if len(merges) != 1 {
		t.Fatalf("expected one merge, got %+v", report.Actions)
	}
	if len(merges[0].MergedIDs) != 3 {
		t.Errorf("merged %d records, want 3", len(merges[0].MergedIDs))
	}
	if report.FinalCount != 2 {
		t.Errorf("final count = %d, want 2", report.FinalCount)
	}

	merged, err := st.Get(ctx, merges[0].NewID)
	if err != nil {
		t.Fatalf("get merged: %v", err)
	}
	if merged.Scope != model.ScopeLong {
		t.Errorf("merged scope = %s, want the group's highest (long)", merged.Scope)
	}
	// (2+4+6)/3 * 1.2
	if math.Abs(merged.Importance-4.8) > 1e-9 {
		t.Errorf("merged importance = %v, want 4.8", merged.Importance)
	}
	if merged.MergedFrom != 3 || merged.ConsolidatedAt == nil {
		t.Errorf("provenance missing: merged_from=%d", merged.MergedFrom)
	}
	if got := strings.Join(merged.Tags, ","); got != "prefs,ui" {
		t.Errorf("tags = %q, want sorted union", got)
	}
	if !strings.HasPrefix(merged.Content, a.Content) || !strings.Contains(merged.Content, b.Content) {
		t.Errorf("merged content missing originals: %q", merged.Content)
	}

	for _, id := range []string{a.ID, b.ID, c.ID} {
		if _, err := st.Get(ctx, id); err == nil {
			t.Errorf("original %s still present after merge", id)
		}
	}
	if _, err := st.Get(ctx, unrelated.ID); err != nil {
		t.Errorf("unrelated memory deleted: %v", err)
	}
}

func TestConsolidateDoesNotMergePairs(t *testing.T) {
	svc, st := newTestService(t, &fakeEmbedder{provider: "fake", dims: 4})
	ctx := context.Background()

	seed(t, st, model.Memory{Content: "user prefers dark mode in the editor", Importance: 2})
	seed(t, st, model.Memory{Content: "user prefers dark mode in the shell", Importance: 2})

	report, err := svc.Consolidate(ctx, ConsolidateParams{Owner: model.OwnerKeys{UserID: "u1"}})
	if err != nil {
		t.Fatalf("consolidate: %v", err)
	}
	if len(actionsOfType(report, "merge")) != 0 {
		t.Error("groups of two must not merge")
	}
}

func TestConsolidateBackfillsMissingAndHashVectors(t *testing.T) {
	e := &fakeEmbedder{provider: "fake", dims: 4}
	svc, st := newTestService(t, e)
	ctx := context.Background()

	vectorless := seed(t, st, model.Memory{Content: "stored during an outage", Importance: 3})
	hashed := seed(t, st, model.Memory{
		Content: "stored with the deterministic stand-in", Importance: 3,
		Embedding: []float32{0.5, 0.5, 0.5, 0.5}, EmbeddingProvider: "hash",
	})
	intact := seed(t, st, model.Memory{
		Content: "already has a proper vector", Importance: 3,
		Embedding: []float32{1, 0, 0, 0}, EmbeddingProvider: "fake",
	})

	report, err := svc.Consolidate(ctx, ConsolidateParams{Owner: model.OwnerKeys{UserID: "u1"}})
	if err != nil {
		t.Fatalf("consolidate: %v", err)
	}
	backfills := actionsOfType(report, "backfill")
	if len(backfills) != 2 {
		t.Fatalf("expected 2 backfills, got %+v", backfills)
	}

	for _, id := range []string{vectorless.ID, hashed.ID, intact.ID} {
		m, err := st.Get(ctx, id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		if m.EmbeddingProvider != "fake" || !m.HasEmbedding() {
			t.Errorf("memory %s: provider=%q", id, m.EmbeddingProvider)
		}
	}
}

func TestConsolidateBackfillFailureSkipsRecord(t *testing.T) {
	e := &fakeEmbedder{provider: "fake", dims: 4, strictFail: true}
	svc, st := newTestService(t, e)
	ctx := context.Background()

	m := seed(t, st, model.Memory{Content: "still waiting for a vector", Importance: 3})

	report, err := svc.Consolidate(ctx, ConsolidateParams{Owner: model.OwnerKeys{UserID: "u1"}})
	if err != nil {
		t.Fatalf("a failed backfill must not fail the pass: %v", err)
	}
	if len(actionsOfType(report, "backfill")) != 0 {
		t.Error("failed backfill recorded as an action")
	}
	stored, _ := st.Get(ctx, m.ID)
	if stored.HasEmbedding() {
		t.Error("vector appeared despite strict-embed failure")
	}
}

func TestConsolidateIdempotent(t *testing.T) {
	svc, st := newTestService(t, &fakeEmbedder{provider: "fake", dims: 4})
	ctx := context.Background()
	owner := model.OwnerKeys{UserID: "u1"}

	seed(t, st, model.Memory{
		Scope: model.ScopeShort, Content: "user prefers dark mode in the editor",
		Importance: 0.6, CreatedAt: hoursAgo(3),
	})
	seed(t, st, model.Memory{
		Scope: model.ScopeShort, Content: "user prefers dark mode in the shell",
		Importance: 0.4, CreatedAt: hoursAgo(1),
	})
	seed(t, st, model.Memory{
		Scope: model.ScopeShort, Content: "user prefers dark mode in the docs",
		Importance: 0.4, CreatedAt: hoursAgo(1),
	})

	first, err := svc.Consolidate(ctx, ConsolidateParams{Owner: owner})
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	if len(first.Actions) == 0 {
		t.Fatal("first pass should act")
	}

	second, err := svc.Consolidate(ctx, ConsolidateParams{Owner: owner})
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if len(second.Actions) != 0 {
		t.Errorf("second pass repeated work: %+v", second.Actions)
	}
}
