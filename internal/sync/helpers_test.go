package sync

import (
	"bytes"
	"context"
	"errors"
	"log"
	"path/filepath"
	gosync "sync"
	"testing"

	"github.com/Guan-Eric/FitLife/internal/plan"
	"github.com/Guan-Eric/FitLife/internal/store"
)

const testUser = "user-1"

var errInjected = errors.New("injected store failure")

// setupTestStore opens a fresh SQLite store in a temporary directory.
func setupTestStore(t *testing.T) *store.SQLite {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// testLogger captures engine output for assertions.
func testLogger() (*log.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return log.New(&buf, "[sync] ", 0), &buf
}

// seedCatalog writes a few catalog exercises.
func seedCatalog(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()
	catalog := map[string]store.Fields{
		"squat": {"id": "squat", "name": "Barbell Squat", "cardio": false, "category": "strength", "primaryMuscles": []string{"quadriceps"}},
		"bench": {"id": "bench", "name": "Bench Press", "cardio": false, "category": "strength", "primaryMuscles": []string{"chest"}},
		"row":   {"id": "row", "name": "Barbell Row", "cardio": false, "category": "strength", "primaryMuscles": []string{"lats"}},
		"run":   {"id": "run", "name": "Running", "cardio": true, "category": "cardio", "primaryMuscles": []string{"quadriceps"}},
	}
	for id, f := range catalog {
		if err := s.Set(ctx, store.CatalogDoc(id), f); err != nil {
			t.Fatalf("failed to seed catalog %s: %v", id, err)
		}
	}
}

// planWithDay creates a plan with one day holding the given catalog
// exercises.
func planWithDay(t *testing.T, e *Engine, exerciseIDs ...string) plan.Plan {
	t.Helper()
	ctx := context.Background()

	p, err := e.CreatePlan(ctx, testUser)
	if err != nil {
		t.Fatalf("CreatePlan() failed: %v", err)
	}
	p, err = e.AddDay(ctx, testUser, p)
	if err != nil {
		t.Fatalf("AddDay() failed: %v", err)
	}
	for _, id := range exerciseIDs {
		p, err = e.AddExercise(ctx, testUser, p, p.Days[0].ID, id)
		if err != nil {
			t.Fatalf("AddExercise(%s) failed: %v", id, err)
		}
	}
	return p
}

// storedSets reads an exercise's set array straight from the store.
func storedSets(t *testing.T, s store.Store, p plan.Plan, dayID, exerciseID string) []plan.Set {
	t.Helper()
	doc, err := s.Get(context.Background(), store.ExerciseDoc(testUser, p.ID, dayID, exerciseID))
	if err != nil {
		t.Fatalf("failed to read exercise: %v", err)
	}
	ex, err := DecodeExercise(doc)
	if err != nil {
		t.Fatalf("failed to decode exercise: %v", err)
	}
	return ex.Sets
}

// faultStore fails the failAt-th Delete call (1-based).
type faultStore struct {
	store.Store

	mu      gosync.Mutex
	deletes int
	failAt  int
}

func (f *faultStore) Delete(ctx context.Context, path store.Path) error {
	f.mu.Lock()
	f.deletes++
	n := f.deletes
	f.mu.Unlock()

	if f.failAt > 0 && n == f.failAt {
		return errInjected
	}
	return f.Store.Delete(ctx, path)
}

// failingUpdates fails every Update on paths in fail.
type failingUpdates struct {
	store.Store
	fail map[store.Path]bool
}

func (f *failingUpdates) Update(ctx context.Context, path store.Path, fields store.Fields) error {
	if f.fail[path] {
		return errInjected
	}
	return f.Store.Update(ctx, path, fields)
}

// barrierStore holds the first n Get calls until all n have read, so that
// n concurrent read-modify-write operations all start from the same
// snapshot.
type barrierStore struct {
	store.Store

	n       int
	mu      gosync.Mutex
	arrived int
	release chan struct{}
}

func newBarrierStore(s store.Store, n int) *barrierStore {
	return &barrierStore{Store: s, n: n, release: make(chan struct{})}
}

func (b *barrierStore) Get(ctx context.Context, path store.Path) (*store.Document, error) {
	doc, err := b.Store.Get(ctx, path)

	b.mu.Lock()
	b.arrived++
	k := b.arrived
	if k == b.n {
		close(b.release)
	}
	b.mu.Unlock()

	if k <= b.n {
		select {
		case <-b.release:
		case <-ctx.Done():
		}
	}
	return doc, err
}

// recorder collects events.
type recorder struct {
	mu     gosync.Mutex
	events []Event
}

func (r *recorder) Notify(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}
