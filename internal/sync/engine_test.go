package sync

import (
	"context"
	"errors"
	"reflect"
	"strings"
	gosync "sync"
	"testing"

	"github.com/Guan-Eric/FitLife/internal/journal"
	"github.com/Guan-Eric/FitLife/internal/plan"
	"github.com/Guan-Eric/FitLife/internal/store"
)

func TestCreatePlan_SelfReferencingID(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	e := New(s, Options{})

	p, err := e.CreatePlan(ctx, testUser)
	if err != nil {
		t.Fatalf("CreatePlan() failed: %v", err)
	}
	if p.ID == "" || p.Name != plan.DefaultPlanName {
		t.Fatalf("plan = %+v", p)
	}

	doc, err := s.Get(ctx, store.PlanDoc(testUser, p.ID))
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if doc.Data["id"] != p.ID {
		t.Errorf("stored id field = %v, want %s", doc.Data["id"], p.ID)
	}
}

func TestOperations_RequireUser(t *testing.T) {
	ctx := context.Background()
	e := New(setupTestStore(t), Options{})

	if _, err := e.CreatePlan(ctx, ""); !errors.Is(err, ErrNoUser) {
		t.Errorf("CreatePlan() error = %v, want ErrNoUser", err)
	}
	if _, err := e.AddDay(ctx, "", plan.Plan{ID: "p"}); !errors.Is(err, ErrNoUser) {
		t.Errorf("AddDay() error = %v, want ErrNoUser", err)
	}
}

func TestOperations_RejectSlashIDs(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	seedCatalog(t, s)
	e := New(s, Options{})
	p := planWithDay(t, e, "squat")
	dayID := p.Days[0].ID

	tests := []struct {
		name string
		call func() error
	}{
		{"CreatePlan user", func() error { _, err := e.CreatePlan(ctx, "u/Plans/x"); return err }},
		{"ListPlans user", func() error { _, err := e.ListPlans(ctx, testUser+"/Plans"); return err }},
		{"DeletePlan plan", func() error { return e.DeletePlan(ctx, testUser, p.ID+"/Days/"+dayID) }},
		{"DeleteDay day", func() error { _, err := e.DeleteDay(ctx, testUser, p, dayID+"/Exercise/squat"); return err }},
		{"AddExercise catalog", func() error { _, err := e.AddExercise(ctx, testUser, p, dayID, "squat/x"); return err }},
		{"AddSet plan", func() error {
			bad := p
			bad.ID = "other/Days/x"
			_, err := e.AddSet(ctx, testUser, bad, dayID, "squat")
			return err
		}},
		{"ResumePlan plan", func() error { return e.ResumePlan(ctx, testUser, "a/b") }},
		{"Resume user", func() error { _, err := e.Resume(ctx, "a/b"); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, store.ErrInvalidPath) {
				t.Errorf("error = %v, want ErrInvalidPath", err)
			}
		})
	}

	n, err := s.Count(ctx, store.PlanDoc(testUser, p.ID))
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if n != 3 {
		t.Errorf("plan has %d documents after rejected calls, want 3", n)
	}
}

func TestAddDay(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	rec := &recorder{}
	e := New(s, Options{Notifier: rec})

	p, err := e.CreatePlan(ctx, testUser)
	if err != nil {
		t.Fatalf("CreatePlan() failed: %v", err)
	}
	next, err := e.AddDay(ctx, testUser, p)
	if err != nil {
		t.Fatalf("AddDay() failed: %v", err)
	}

	if len(p.Days) != 0 {
		t.Errorf("input tree mutated")
	}
	if len(next.Days) != 1 {
		t.Fatalf("len(days) = %d, want 1", len(next.Days))
	}
	day := next.Days[0]
	if day.Name != plan.DefaultDayName || day.PlanID != p.ID || day.ID == "" {
		t.Errorf("day = %+v", day)
	}

	doc, err := s.Get(ctx, store.DayDoc(testUser, p.ID, day.ID))
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if doc.Data["id"] != day.ID {
		t.Errorf("day document id field = %v, want %s", doc.Data["id"], day.ID)
	}

	want := []EventType{EventPlanCreated, EventDayAdded}
	if got := rec.types(); !reflect.DeepEqual(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestAddDay_WithoutPlanID(t *testing.T) {
	e := New(setupTestStore(t), Options{})
	in := plan.Plan{Name: "draft"}

	out, err := e.AddDay(context.Background(), testUser, in)
	if !errors.Is(err, plan.ErrNoPlanID) {
		t.Errorf("AddDay() error = %v, want ErrNoPlanID", err)
	}
	if !reflect.DeepEqual(out, in) {
		t.Errorf("AddDay() changed the tree on failure")
	}
}

func TestRenameDayAndPlan(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	e := New(s, Options{})
	p := planWithDay(t, e)

	p, err := e.RenameDay(ctx, testUser, p, 0, "Legs")
	if err != nil {
		t.Fatalf("RenameDay() failed: %v", err)
	}
	p, err = e.RenamePlan(ctx, testUser, p, "Strength Block")
	if err != nil {
		t.Fatalf("RenamePlan() failed: %v", err)
	}

	day, _ := s.Get(ctx, store.DayDoc(testUser, p.ID, p.Days[0].ID))
	if day.Data["name"] != "Legs" {
		t.Errorf("stored day name = %v", day.Data["name"])
	}
	doc, _ := s.Get(ctx, store.PlanDoc(testUser, p.ID))
	if doc.Data["name"] != "Strength Block" || p.Name != "Strength Block" {
		t.Errorf("plan name not updated")
	}

	if _, err := e.RenameDay(ctx, testUser, p, 4, "x"); !errors.Is(err, ErrStaleIndex) {
		t.Errorf("RenameDay(out of range) error = %v, want ErrStaleIndex", err)
	}
}

func TestAddExercise(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	seedCatalog(t, s)
	e := New(s, Options{})
	p := planWithDay(t, e, "squat")

	ex := p.Days[0].Exercises[0]
	if ex.ID != "squat" || ex.Name != "Barbell Squat" {
		t.Errorf("exercise = %+v", ex)
	}
	if ex.Sets == nil || len(ex.Sets) != 0 {
		t.Errorf("new exercise sets = %#v, want empty", ex.Sets)
	}
	if got := storedSets(t, s, p, p.Days[0].ID, "squat"); len(got) != 0 {
		t.Errorf("stored sets = %+v, want empty", got)
	}

	if _, err := e.AddExercise(ctx, testUser, p, p.Days[0].ID, "squat"); !errors.Is(err, ErrDuplicateExercise) {
		t.Errorf("AddExercise(duplicate) error = %v, want ErrDuplicateExercise", err)
	}
	if _, err := e.AddExercise(ctx, testUser, p, p.Days[0].ID, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("AddExercise(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := e.AddExercise(ctx, testUser, p, "no-day", "bench"); !errors.Is(err, ErrUnknownDay) {
		t.Errorf("AddExercise(no day) error = %v, want ErrUnknownDay", err)
	}
}

func TestDeleteExercise(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	seedCatalog(t, s)
	e := New(s, Options{})
	p := planWithDay(t, e, "squat", "bench")
	dayID := p.Days[0].ID

	p, err := e.DeleteExercise(ctx, testUser, p, dayID, "squat")
	if err != nil {
		t.Fatalf("DeleteExercise() failed: %v", err)
	}
	if len(p.Days[0].Exercises) != 1 || p.Days[0].Exercises[0].ID != "bench" {
		t.Errorf("exercises = %+v", p.Days[0].Exercises)
	}
	if _, err := s.Get(ctx, store.ExerciseDoc(testUser, p.ID, dayID, "squat")); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("exercise document still present: %v", err)
	}
}

func TestSetLifecycle(t *testing.T) {
	for _, mode := range []AppendMode{AppendLegacy, AppendVersioned} {
		t.Run(string(mode), func(t *testing.T) {
			ctx := context.Background()
			s := setupTestStore(t)
			seedCatalog(t, s)
			e := New(s, Options{AppendMode: mode})
			p := planWithDay(t, e, "squat")
			dayID := p.Days[0].ID

			var err error
			for i := 0; i < 3; i++ {
				p, err = e.AddSet(ctx, testUser, p, dayID, "squat")
				if err != nil {
					t.Fatalf("AddSet() failed: %v", err)
				}
			}
			p, err = e.UpdateSet(ctx, testUser, p, 0, 0, 1, plan.PropReps, 8)
			if err != nil {
				t.Fatalf("UpdateSet() failed: %v", err)
			}
			p, err = e.UpdateSet(ctx, testUser, p, 0, 0, 1, plan.PropWeightDuration, 102.5)
			if err != nil {
				t.Fatalf("UpdateSet() failed: %v", err)
			}
			p, err = e.DeleteSet(ctx, testUser, p, 0, 0, 0)
			if err != nil {
				t.Fatalf("DeleteSet() failed: %v", err)
			}

			local := p.Days[0].Exercises[0].Sets
			if len(local) != 2 || local[0].Reps != 8 || local[0].WeightDuration != 102.5 {
				t.Errorf("local sets = %+v", local)
			}
			if stored := storedSets(t, s, p, dayID, "squat"); !reflect.DeepEqual(stored, local) {
				t.Errorf("stored sets = %+v, local = %+v", stored, local)
			}

			if _, err := e.DeleteSet(ctx, testUser, p, 0, 0, 2); !errors.Is(err, ErrStaleIndex) {
				t.Errorf("DeleteSet(out of range) error = %v, want ErrStaleIndex", err)
			}
			if _, err := e.UpdateSet(ctx, testUser, p, 0, 0, 0, plan.Property("tempo"), 1); err == nil {
				t.Errorf("UpdateSet(unknown property) succeeded")
			}
		})
	}
}

func TestAddSet_Identity(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	seedCatalog(t, s)

	legacy := New(s, Options{AppendMode: AppendLegacy})
	p := planWithDay(t, legacy, "squat")
	p, err := legacy.AddSet(ctx, testUser, p, p.Days[0].ID, "squat")
	if err != nil {
		t.Fatalf("AddSet() failed: %v", err)
	}
	legacySet := p.Days[0].Exercises[0].Sets[0]
	if legacySet.ID == "" || legacySet.Reps != 0 || legacySet.WeightDuration != 0 {
		t.Errorf("legacy set = %+v, want zero values with an id", legacySet)
	}
	p, err = legacy.UpdateSetByID(ctx, testUser, p, p.Days[0].ID, "squat", legacySet.ID, plan.PropReps, 8)
	if err != nil {
		t.Fatalf("UpdateSetByID() on legacy set failed: %v", err)
	}
	if got := storedSets(t, s, p, p.Days[0].ID, "squat"); got[0].Reps != 8 {
		t.Errorf("stored legacy set = %+v, want reps 8", got[0])
	}

	versioned := New(s, Options{})
	p, err = versioned.AddSet(ctx, testUser, p, p.Days[0].ID, "squat")
	if err != nil {
		t.Fatalf("AddSet() failed: %v", err)
	}
	if got := p.Days[0].Exercises[0].Sets[1]; got.ID == "" || got.Reps != 0 || got.WeightDuration != 0 {
		t.Errorf("versioned set = %+v, want zero values with an id", got)
	}
}

// TestAddSet_ConcurrentAppends issues two appends that both read the
// exercise before either writes.
func TestAddSet_ConcurrentAppends(t *testing.T) {
	tests := []struct {
		mode AppendMode
		want int
	}{
		{AppendLegacy, 1},
		{AppendVersioned, 2},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			ctx := context.Background()
			s := setupTestStore(t)
			seedCatalog(t, s)
			p := planWithDay(t, New(s, Options{}), "squat")
			dayID := p.Days[0].ID

			logger, _ := testLogger()
			e := New(newBarrierStore(s, 2), Options{AppendMode: tt.mode, Logger: logger})

			var wg gosync.WaitGroup
			errs := make(chan error, 2)
			for i := 0; i < 2; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := e.AddSet(ctx, testUser, p, dayID, "squat")
					errs <- err
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				if err != nil {
					t.Fatalf("AddSet() failed: %v", err)
				}
			}

			if got := len(storedSets(t, s, p, dayID, "squat")); got != tt.want {
				t.Errorf("stored sets = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestUpdateSet_DetectsStaleTree(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	seedCatalog(t, s)
	e := New(s, Options{})
	p := planWithDay(t, e, "squat")
	dayID := p.Days[0].ID

	p, err := e.AddSet(ctx, testUser, p, dayID, "squat")
	if err != nil {
		t.Fatalf("AddSet() failed: %v", err)
	}
	stale := p

	// Another client deletes the set the stale tree still shows.
	if _, err := e.DeleteSet(ctx, testUser, p, 0, 0, 0); err != nil {
		t.Fatalf("DeleteSet() failed: %v", err)
	}

	out, err := e.UpdateSet(ctx, testUser, stale, 0, 0, 0, plan.PropReps, 5)
	if !errors.Is(err, ErrStaleIndex) {
		t.Fatalf("UpdateSet(stale) error = %v, want ErrStaleIndex", err)
	}
	if !reflect.DeepEqual(out, stale) {
		t.Errorf("UpdateSet() changed the tree on failure")
	}
	if got := storedSets(t, s, p, dayID, "squat"); len(got) != 0 {
		t.Errorf("stale write reached the store: %+v", got)
	}
}

func TestSetByID(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	seedCatalog(t, s)
	e := New(s, Options{})
	p := planWithDay(t, e, "bench")
	dayID := p.Days[0].ID

	var err error
	for i := 0; i < 3; i++ {
		p, err = e.AddSet(ctx, testUser, p, dayID, "bench")
		if err != nil {
			t.Fatalf("AddSet() failed: %v", err)
		}
	}
	stale := p
	target := p.Days[0].Exercises[0].Sets[2].ID

	// Shift indices under the stale tree.
	if _, err := e.DeleteSetByID(ctx, testUser, p, dayID, "bench", p.Days[0].Exercises[0].Sets[0].ID); err != nil {
		t.Fatalf("DeleteSetByID() failed: %v", err)
	}

	p, err = e.UpdateSetByID(ctx, testUser, stale, dayID, "bench", target, plan.PropReps, 5)
	if err != nil {
		t.Fatalf("UpdateSetByID() failed: %v", err)
	}
	sets := p.Days[0].Exercises[0].Sets
	if len(sets) != 2 {
		t.Fatalf("tree not refreshed from store: %d sets", len(sets))
	}
	if sets[1].ID != target || sets[1].Reps != 5 {
		t.Errorf("sets = %+v, want reps=5 on %s", sets, target)
	}

	if _, err := e.UpdateSetByID(ctx, testUser, p, dayID, "bench", "nope", plan.PropReps, 1); !errors.Is(err, ErrUnknownSet) {
		t.Errorf("UpdateSetByID(missing) error = %v, want ErrUnknownSet", err)
	}

	// Deleting an already deleted set is a refresh.
	p, err = e.DeleteSetByID(ctx, testUser, stale, dayID, "bench", stale.Days[0].Exercises[0].Sets[0].ID)
	if err != nil {
		t.Fatalf("DeleteSetByID(gone) failed: %v", err)
	}
	if len(p.Days[0].Exercises[0].Sets) != 2 {
		t.Errorf("sets = %+v", p.Days[0].Exercises[0].Sets)
	}
}

func TestDeleteDay_Cascade(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	seedCatalog(t, s)
	e := New(s, Options{})
	p := planWithDay(t, e, "squat", "bench", "row")
	dayID := p.Days[0].ID

	p, err := e.DeleteDay(ctx, testUser, p, dayID)
	if err != nil {
		t.Fatalf("DeleteDay() failed: %v", err)
	}
	if len(p.Days) != 0 {
		t.Errorf("days = %+v", p.Days)
	}

	n, err := s.Count(ctx, store.DayDoc(testUser, p.ID, dayID))
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if n != 0 {
		t.Errorf("%d documents left under the day, want 0", n)
	}
}

// TestDeleteDay_PartialFailure fails the third exercise delete.
func TestDeleteDay_PartialFailure(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	seedCatalog(t, s)
	p := planWithDay(t, New(s, Options{}), "squat", "bench", "row")
	dayID := p.Days[0].ID

	logger, buf := testLogger()
	e := New(&faultStore{Store: s, failAt: 3}, Options{Logger: logger})

	out, err := e.DeleteDay(ctx, testUser, p, dayID)
	var cerr *CascadeError
	if !errors.As(err, &cerr) {
		t.Fatalf("DeleteDay() error = %v, want *CascadeError", err)
	}
	if !errors.Is(err, errInjected) {
		t.Errorf("cascade error does not wrap the store failure")
	}
	if cerr.Completed != 2 || len(cerr.Remaining) != 2 {
		t.Errorf("cascade = completed %d, remaining %v", cerr.Completed, cerr.Remaining)
	}
	if cerr.Remaining[1] != store.DayDoc(testUser, p.ID, dayID) {
		t.Errorf("last remaining = %s, want the day", cerr.Remaining[1])
	}
	if !reflect.DeepEqual(out, p) {
		t.Errorf("tree changed on failure")
	}
	if !strings.Contains(buf.String(), "WARNING: delete_day failed") {
		t.Errorf("failure not logged: %q", buf.String())
	}

	exs, err := s.List(ctx, store.ExerciseCol(testUser, p.ID, dayID))
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(exs) != 1 {
		t.Errorf("orphaned exercises = %d, want 1", len(exs))
	}
	if _, err := s.Get(ctx, store.DayDoc(testUser, p.ID, dayID)); err != nil {
		t.Errorf("day document missing after partial cascade: %v", err)
	}
}

func TestDeleteDay_JournalResume(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	seedCatalog(t, s)
	p := planWithDay(t, New(s, Options{}), "squat", "bench", "row")
	dayID := p.Days[0].ID

	j, err := journal.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() failed: %v", err)
	}
	defer j.Close()

	logger, _ := testLogger()
	faulty := New(&faultStore{Store: s, failAt: 3}, Options{Logger: logger, Journal: j})
	_, err = faulty.DeleteDay(ctx, testUser, p, dayID)
	var cerr *CascadeError
	if !errors.As(err, &cerr) || cerr.EntryID == "" {
		t.Fatalf("DeleteDay() error = %v, want journaled *CascadeError", err)
	}

	pending, err := j.Pending(ctx, testUser, p.ID)
	if err != nil {
		t.Fatalf("Pending() failed: %v", err)
	}
	if len(pending) != 1 || len(pending[0].Remaining()) != 2 {
		t.Fatalf("pending = %+v", pending)
	}

	rec := &recorder{}
	healthy := New(s, Options{Logger: logger, Journal: j, Notifier: rec})
	if err := healthy.ResumePlan(ctx, testUser, p.ID); err != nil {
		t.Fatalf("ResumePlan() failed: %v", err)
	}

	n, err := s.Count(ctx, store.DayDoc(testUser, p.ID, dayID))
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if n != 0 {
		t.Errorf("%d documents left after resume, want 0", n)
	}
	if pending, _ := j.Pending(ctx, testUser, ""); len(pending) != 0 {
		t.Errorf("journal not drained: %d entries", len(pending))
	}
	if got := rec.types(); len(got) != 1 || got[0] != EventCascadeResumed {
		t.Errorf("events = %v", got)
	}
}

func TestDeletePlan(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	seedCatalog(t, s)
	e := New(s, Options{})
	p := planWithDay(t, e, "squat", "run")
	p, err := e.AddDay(ctx, testUser, p)
	if err != nil {
		t.Fatalf("AddDay() failed: %v", err)
	}
	other := planWithDay(t, e, "bench")

	if err := e.DeletePlan(ctx, testUser, p.ID); err != nil {
		t.Fatalf("DeletePlan() failed: %v", err)
	}

	n, _ := s.Count(ctx, store.PlanDoc(testUser, p.ID))
	if n != 0 {
		t.Errorf("%d documents left under deleted plan", n)
	}
	n, _ = s.Count(ctx, store.PlanDoc(testUser, other.ID))
	if n != 3 {
		t.Errorf("other plan has %d documents, want 3", n)
	}
}

func TestSavePlan(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	seedCatalog(t, s)
	e := New(s, Options{})
	p := planWithDay(t, e, "squat")
	dayID := p.Days[0].ID

	edited := plan.RenamePlan(p, "Hypertrophy")
	edited = plan.UpdateDay(edited, 0, "Lower")
	edited = plan.ReplaceSets(edited, dayID, "squat", []plan.Set{{Reps: 10, WeightDuration: 60}, {Reps: 8, WeightDuration: 70}})

	if _, err := e.SavePlan(ctx, testUser, edited); err != nil {
		t.Fatalf("SavePlan() failed: %v", err)
	}

	doc, _ := s.Get(ctx, store.PlanDoc(testUser, p.ID))
	if doc.Data["name"] != "Hypertrophy" {
		t.Errorf("plan name = %v", doc.Data["name"])
	}
	day, _ := s.Get(ctx, store.DayDoc(testUser, p.ID, dayID))
	if day.Data["name"] != "Lower" {
		t.Errorf("day name = %v", day.Data["name"])
	}
	if got := storedSets(t, s, p, dayID, "squat"); len(got) != 2 || got[1].WeightDuration != 70 {
		t.Errorf("stored sets = %+v", got)
	}
}

func TestSavePlan_FailureModes(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*store.SQLite, plan.Plan, plan.Plan) {
		s := setupTestStore(t)
		seedCatalog(t, s)
		p := planWithDay(t, New(s, Options{}), "squat")
		edited := plan.RenamePlan(p, "Renamed")
		edited = plan.UpdateDay(edited, 0, "Renamed Day")
		return s, p, edited
	}

	t.Run("sequential keeps earlier writes", func(t *testing.T) {
		s, p, edited := setup(t)
		logger, _ := testLogger()
		dayPath := store.DayDoc(testUser, p.ID, p.Days[0].ID)
		e := New(&failingUpdates{Store: s, fail: map[store.Path]bool{dayPath: true}}, Options{Logger: logger})

		_, err := e.SavePlan(ctx, testUser, edited)
		var cerr *CascadeError
		if !errors.As(err, &cerr) {
			t.Fatalf("SavePlan() error = %v, want *CascadeError", err)
		}
		if cerr.Completed != 1 || len(cerr.Remaining) != 2 {
			t.Errorf("cascade = completed %d, remaining %d", cerr.Completed, len(cerr.Remaining))
		}
		doc, _ := s.Get(ctx, store.PlanDoc(testUser, p.ID))
		if doc.Data["name"] != "Renamed" {
			t.Errorf("plan name = %v, want the committed rename", doc.Data["name"])
		}
	})

	t.Run("transactional rolls back", func(t *testing.T) {
		s, p, edited := setup(t)
		logger, _ := testLogger()
		e := New(s, Options{Logger: logger, Transactional: true})

		// A day the store has never seen makes the last write fail.
		ghost, err := plan.AddDay(edited, plan.Day{ID: "ghost", Name: "Ghost"})
		if err != nil {
			t.Fatalf("plan.AddDay() failed: %v", err)
		}
		_, err = e.SavePlan(ctx, testUser, ghost)
		if !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("SavePlan() error = %v, want ErrNotFound", err)
		}
		var cerr *CascadeError
		if errors.As(err, &cerr) {
			t.Errorf("transactional failure reported as partial cascade")
		}

		doc, _ := s.Get(ctx, store.PlanDoc(testUser, p.ID))
		if doc.Data["name"] != plan.DefaultPlanName {
			t.Errorf("plan name = %v, want rollback to %q", doc.Data["name"], plan.DefaultPlanName)
		}
	})
}

func TestTransactional_FallsBackWithoutTransactor(t *testing.T) {
	s := setupTestStore(t)
	logger, buf := testLogger()
	e := New(&faultStore{Store: s}, Options{Logger: logger, Transactional: true})

	if e.transactional {
		t.Errorf("engine kept transactional mode over a non-transactional store")
	}
	if !strings.Contains(buf.String(), "does not support transactions") {
		t.Errorf("missing warning: %q", buf.String())
	}
}

func TestImportPlan(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	e := New(s, Options{})

	p := plan.Plan{
		ID:   "imported",
		Name: "5x5",
		Days: []plan.Day{{
			ID:   "a",
			Name: "Workout A",
			Exercises: []plan.Exercise{
				{ID: "squat", Name: "Squat", Sets: []plan.Set{{Reps: 5, WeightDuration: 100}}},
				{ID: "bench", Name: "Bench"},
			},
		}},
	}
	if _, err := e.ImportPlan(ctx, testUser, p); err != nil {
		t.Fatalf("ImportPlan() failed: %v", err)
	}

	n, _ := s.Count(ctx, store.PlanDoc(testUser, "imported"))
	if n != 4 {
		t.Errorf("imported %d documents, want 4", n)
	}
	if got := storedSets(t, s, p, "a", "bench"); got == nil || len(got) != 0 {
		t.Errorf("bench sets = %#v, want empty", got)
	}

	if _, err := e.ImportPlan(ctx, testUser, plan.Plan{Name: "no id"}); err == nil {
		t.Errorf("ImportPlan(invalid) succeeded")
	}
}

func TestListPlans(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	e := New(s, Options{})

	var ids []string
	for i := 0; i < 3; i++ {
		p, err := e.CreatePlan(ctx, testUser)
		if err != nil {
			t.Fatalf("CreatePlan() failed: %v", err)
		}
		ids = append(ids, p.ID)
	}
	if _, err := e.CreatePlan(ctx, "someone-else"); err != nil {
		t.Fatalf("CreatePlan() failed: %v", err)
	}

	plans, err := e.ListPlans(ctx, testUser)
	if err != nil {
		t.Fatalf("ListPlans() failed: %v", err)
	}
	if len(plans) != 3 {
		t.Fatalf("len(plans) = %d, want 3", len(plans))
	}
	for i, p := range plans {
		if p.ID != ids[i] {
			t.Errorf("plans[%d] = %s, want %s", i, p.ID, ids[i])
		}
	}
}

func TestMetricUnits(t *testing.T) {
	ctx := context.Background()
	e := New(setupTestStore(t), Options{})

	metric, err := e.MetricUnits(ctx, testUser)
	if err != nil || metric {
		t.Fatalf("MetricUnits() = %v, %v; want false, nil", metric, err)
	}

	if err := e.SetMetricUnits(ctx, testUser, true); err != nil {
		t.Fatalf("SetMetricUnits() failed: %v", err)
	}
	metric, err = e.MetricUnits(ctx, testUser)
	if err != nil || !metric {
		t.Errorf("MetricUnits() = %v, %v; want true, nil", metric, err)
	}

	if err := e.SetMetricUnits(ctx, testUser, false); err != nil {
		t.Fatalf("SetMetricUnits() failed: %v", err)
	}
	if metric, _ := e.MetricUnits(ctx, testUser); metric {
		t.Errorf("MetricUnits() = true after reset")
	}
}

func TestParseAppendMode(t *testing.T) {
	tests := []struct {
		in      string
		want    AppendMode
		wantErr bool
	}{
		{"", AppendVersioned, false},
		{"legacy", AppendLegacy, false},
		{"versioned", AppendVersioned, false},
		{"atomic", "", true},
	}
	for _, tt := range tests {
		got, err := ParseAppendMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseAppendMode(%q) = %q, %v", tt.in, got, err)
		}
	}
}

// TestSavePlan_ResumeKeepsNewerEdits interrupts a journaled save, edits
// the plan through a healthy engine and then replays the save.
func TestSavePlan_ResumeKeepsNewerEdits(t *testing.T) {
	tests := []struct {
		name      string
		editFirst bool
		wantDay   string
		wantSets  int
	}{
		{"no edits in between", false, "Renamed Day", 0},
		{"newer edits survive", true, "Newer", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := setupTestStore(t)
			seedCatalog(t, s)
			p := planWithDay(t, New(s, Options{}), "squat")
			dayID := p.Days[0].ID
			edited := plan.UpdateDay(plan.RenamePlan(p, "Renamed"), 0, "Renamed Day")

			j, err := journal.OpenInMemory()
			if err != nil {
				t.Fatalf("OpenInMemory() failed: %v", err)
			}
			defer j.Close()

			logger, buf := testLogger()
			dayPath := store.DayDoc(testUser, p.ID, dayID)
			faulty := New(&failingUpdates{Store: s, fail: map[store.Path]bool{dayPath: true}}, Options{Logger: logger, Journal: j})
			if _, err := faulty.SavePlan(ctx, testUser, edited); err == nil {
				t.Fatal("SavePlan() succeeded, want the day write to fail")
			}

			healthy := New(s, Options{Logger: logger, Journal: j})
			if tt.editFirst {
				next, err := healthy.AddSet(ctx, testUser, p, dayID, "squat")
				if err != nil {
					t.Fatalf("AddSet() failed: %v", err)
				}
				if _, err := healthy.RenameDay(ctx, testUser, next, 0, "Newer"); err != nil {
					t.Fatalf("RenameDay() failed: %v", err)
				}
			}

			if err := healthy.ResumePlan(ctx, testUser, p.ID); err != nil {
				t.Fatalf("ResumePlan() failed: %v", err)
			}

			if got := len(storedSets(t, s, p, dayID, "squat")); got != tt.wantSets {
				t.Errorf("stored sets = %d, want %d", got, tt.wantSets)
			}
			day, err := s.Get(ctx, dayPath)
			if err != nil {
				t.Fatalf("Get() failed: %v", err)
			}
			if day.Data["name"] != tt.wantDay {
				t.Errorf("day name = %v, want %q", day.Data["name"], tt.wantDay)
			}
			if pending, _ := j.Pending(ctx, testUser, ""); len(pending) != 0 {
				t.Errorf("journal not drained: %d entries", len(pending))
			}
			if tt.editFirst && !strings.Contains(buf.String(), "dropping stale step") {
				t.Errorf("dropped steps not logged: %q", buf.String())
			}
		})
	}
}

// TestResume_DeleteRemovesLaterChildren adds documents under a parent whose
// delete cascade was interrupted, then resumes the cascade.
func TestResume_DeleteRemovesLaterChildren(t *testing.T) {
	tests := []struct {
		name   string
		delete func(e *Engine, p plan.Plan) error
		add    func(t *testing.T, e *Engine, p plan.Plan)
		root   func(p plan.Plan) store.Path
	}{
		{
			name: "delete_day",
			delete: func(e *Engine, p plan.Plan) error {
				_, err := e.DeleteDay(context.Background(), testUser, p, p.Days[0].ID)
				return err
			},
			add: func(t *testing.T, e *Engine, p plan.Plan) {
				if _, err := e.AddExercise(context.Background(), testUser, p, p.Days[0].ID, "bench"); err != nil {
					t.Fatalf("AddExercise() failed: %v", err)
				}
			},
			root: func(p plan.Plan) store.Path { return store.DayDoc(testUser, p.ID, p.Days[0].ID) },
		},
		{
			name: "delete_plan",
			delete: func(e *Engine, p plan.Plan) error {
				return e.DeletePlan(context.Background(), testUser, p.ID)
			},
			add: func(t *testing.T, e *Engine, p plan.Plan) {
				ctx := context.Background()
				p, err := e.AddDay(ctx, testUser, p)
				if err != nil {
					t.Fatalf("AddDay() failed: %v", err)
				}
				if _, err := e.AddExercise(ctx, testUser, p, p.Days[1].ID, "row"); err != nil {
					t.Fatalf("AddExercise() failed: %v", err)
				}
				if _, err := e.AddExercise(ctx, testUser, p, p.Days[0].ID, "bench"); err != nil {
					t.Fatalf("AddExercise() failed: %v", err)
				}
			},
			root: func(p plan.Plan) store.Path { return store.PlanDoc(testUser, p.ID) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := setupTestStore(t)
			seedCatalog(t, s)
			p := planWithDay(t, New(s, Options{}), "squat")

			j, err := journal.OpenInMemory()
			if err != nil {
				t.Fatalf("OpenInMemory() failed: %v", err)
			}
			defer j.Close()

			logger, _ := testLogger()
			faulty := New(&faultStore{Store: s, failAt: 1}, Options{Logger: logger, Journal: j})
			var cerr *CascadeError
			if err := tt.delete(faulty, p); !errors.As(err, &cerr) {
				t.Fatalf("delete error = %v, want *CascadeError", err)
			}

			healthy := New(s, Options{Logger: logger, Journal: j})
			tt.add(t, healthy, p)

			if err := healthy.ResumePlan(ctx, testUser, p.ID); err != nil {
				t.Fatalf("ResumePlan() failed: %v", err)
			}
			n, err := s.Count(ctx, tt.root(p))
			if err != nil {
				t.Fatalf("Count() failed: %v", err)
			}
			if n != 0 {
				t.Errorf("%d documents left under %s, want 0", n, tt.root(p))
			}
		})
	}
}
