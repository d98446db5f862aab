package sync

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/Guan-Eric/FitLife/internal/plan"
	"github.com/Guan-Eric/FitLife/internal/store"
)

// setsMutation computes a new set array from the stored one. It returns
// changed=false when no write is needed.
type setsMutation func(stored []plan.Set) (next []plan.Set, changed bool, err error)

// AddSet appends a zero-valued set to the exercise. The stored set array is
// read first because the tree may be behind the store; the tree then takes
// the array that was written.
func (e *Engine) AddSet(ctx context.Context, userID string, p plan.Plan, dayID, exerciseID string) (next plan.Plan, err error) {
	defer e.track("add_set", time.Now(), &err)
	if err := requireUser(userID, p.ID, dayID, exerciseID); err != nil {
		return p, err
	}
	if _, _, err := locate(p, dayID, exerciseID); err != nil {
		return p, err
	}
	path := store.ExerciseDoc(userID, p.ID, dayID, exerciseID)

	var sets []plan.Set
	if e.appendMode == AppendLegacy {
		sets, err = e.appendUnguarded(ctx, path)
	} else {
		sets, err = e.rewriteSets(ctx, "add_set", path, func(stored []plan.Set) ([]plan.Set, bool, error) {
			return append(slices.Clip(stored), plan.NewSet()), true, nil
		})
	}
	if err != nil {
		return p, err
	}

	idx := len(sets) - 1
	e.notify(Event{Type: EventSetAdded, UserID: userID, PlanID: p.ID, DayID: dayID, ExerciseID: exerciseID, SetIndex: &idx, SetID: sets[idx].ID})
	return plan.ReplaceSets(p, dayID, exerciseID, sets), nil
}

// appendUnguarded is the read-then-write append with no version check.
func (e *Engine) appendUnguarded(ctx context.Context, path store.Path) ([]plan.Set, error) {
	doc, err := e.store.Get(ctx, path)
	if err != nil {
		return nil, opErr("add_set", path, err)
	}
	ex, err := DecodeExercise(doc)
	if err != nil {
		return nil, opErr("add_set", path, err)
	}
	sets := append(ex.Sets, plan.NewSet())
	if err := e.store.Update(ctx, path, store.Fields{"sets": sets}); err != nil {
		return nil, opErr("add_set", path, err)
	}
	return sets, nil
}

// UpdateSet sets one property of the set at the index triple and rewrites
// the exercise's whole set array. In versioned mode the write is refused
// with ErrStaleIndex if the stored array no longer matches the tree the
// indices came from.
func (e *Engine) UpdateSet(ctx context.Context, userID string, p plan.Plan, dayIndex, exerciseIndex, setIndex int, prop plan.Property, value float64) (next plan.Plan, err error) {
	defer e.track("update_set", time.Now(), &err)
	if err := requireUser(userID, p.ID); err != nil {
		return p, err
	}
	if _, err := plan.ParseProperty(string(prop)); err != nil {
		return p, err
	}
	if _, ok := p.SetAt(dayIndex, exerciseIndex, setIndex); !ok {
		return p, fmt.Errorf("%w: set %d/%d/%d", ErrStaleIndex, dayIndex, exerciseIndex, setIndex)
	}

	next = plan.UpdateSet(p, dayIndex, exerciseIndex, setIndex, prop, value)
	if err := e.writeIndexed(ctx, "update_set", userID, p, next, dayIndex, exerciseIndex); err != nil {
		return p, err
	}

	day := p.Days[dayIndex]
	e.notify(Event{Type: EventSetUpdated, UserID: userID, PlanID: p.ID, DayID: day.ID, ExerciseID: day.Exercises[exerciseIndex].ID, SetIndex: &setIndex})
	return next, nil
}

// DeleteSet removes the set at the index triple and rewrites the
// exercise's whole set array.
func (e *Engine) DeleteSet(ctx context.Context, userID string, p plan.Plan, dayIndex, exerciseIndex, setIndex int) (next plan.Plan, err error) {
	defer e.track("delete_set", time.Now(), &err)
	if err := requireUser(userID, p.ID); err != nil {
		return p, err
	}
	if _, ok := p.SetAt(dayIndex, exerciseIndex, setIndex); !ok {
		return p, fmt.Errorf("%w: set %d/%d/%d", ErrStaleIndex, dayIndex, exerciseIndex, setIndex)
	}

	next = plan.DeleteSet(p, dayIndex, exerciseIndex, setIndex)
	if err := e.writeIndexed(ctx, "delete_set", userID, p, next, dayIndex, exerciseIndex); err != nil {
		return p, err
	}

	day := p.Days[dayIndex]
	e.notify(Event{Type: EventSetDeleted, UserID: userID, PlanID: p.ID, DayID: day.ID, ExerciseID: day.Exercises[exerciseIndex].ID, SetIndex: &setIndex})
	return next, nil
}

// writeIndexed persists the set array of next at (dayIndex, exerciseIndex).
func (e *Engine) writeIndexed(ctx context.Context, op, userID string, before, next plan.Plan, dayIndex, exerciseIndex int) error {
	day := before.Days[dayIndex]
	ex := day.Exercises[exerciseIndex]
	path := store.ExerciseDoc(userID, before.ID, day.ID, ex.ID)
	sets := next.Days[dayIndex].Exercises[exerciseIndex].Sets

	if e.appendMode == AppendLegacy {
		if err := e.store.Update(ctx, path, store.Fields{"sets": sets}); err != nil {
			return opErr(op, path, err)
		}
		return nil
	}

	_, err := e.rewriteSets(ctx, op, path, func(stored []plan.Set) ([]plan.Set, bool, error) {
		if !slices.Equal(stored, ex.Sets) {
			return nil, false, fmt.Errorf("%w: %s has %d stored sets, tree has %d", ErrStaleIndex, path, len(stored), len(ex.Sets))
		}
		return sets, true, nil
	})
	return err
}

// UpdateSetByID sets one property of the set with the given id. The change
// is applied to the stored array, so it lands on the right set no matter
// how the array was reordered since the tree was loaded.
func (e *Engine) UpdateSetByID(ctx context.Context, userID string, p plan.Plan, dayID, exerciseID, setID string, prop plan.Property, value float64) (next plan.Plan, err error) {
	defer e.track("update_set_by_id", time.Now(), &err)
	if err := requireUser(userID, p.ID, dayID, exerciseID); err != nil {
		return p, err
	}
	if _, err := plan.ParseProperty(string(prop)); err != nil {
		return p, err
	}
	if _, _, err := locate(p, dayID, exerciseID); err != nil {
		return p, err
	}

	path := store.ExerciseDoc(userID, p.ID, dayID, exerciseID)
	sets, err := e.rewriteSets(ctx, "update_set_by_id", path, func(stored []plan.Set) ([]plan.Set, bool, error) {
		k := plan.SetIndex(stored, setID)
		if k < 0 {
			return nil, false, fmt.Errorf("%w: %s", ErrUnknownSet, setID)
		}
		out := slices.Clone(stored)
		switch prop {
		case plan.PropReps:
			out[k].Reps = value
		case plan.PropWeightDuration:
			out[k].WeightDuration = value
		}
		return out, true, nil
	})
	if err != nil {
		return p, err
	}

	e.notify(Event{Type: EventSetUpdated, UserID: userID, PlanID: p.ID, DayID: dayID, ExerciseID: exerciseID, SetID: setID})
	return plan.ReplaceSets(p, dayID, exerciseID, sets), nil
}

// DeleteSetByID removes the set with the given id. Deleting a set that is
// already gone only refreshes the tree.
func (e *Engine) DeleteSetByID(ctx context.Context, userID string, p plan.Plan, dayID, exerciseID, setID string) (next plan.Plan, err error) {
	defer e.track("delete_set_by_id", time.Now(), &err)
	if err := requireUser(userID, p.ID, dayID, exerciseID); err != nil {
		return p, err
	}
	if _, _, err := locate(p, dayID, exerciseID); err != nil {
		return p, err
	}

	path := store.ExerciseDoc(userID, p.ID, dayID, exerciseID)
	sets, err := e.rewriteSets(ctx, "delete_set_by_id", path, func(stored []plan.Set) ([]plan.Set, bool, error) {
		k := plan.SetIndex(stored, setID)
		if k < 0 {
			return stored, false, nil
		}
		return slices.Delete(slices.Clone(stored), k, k+1), true, nil
	})
	if err != nil {
		return p, err
	}

	e.notify(Event{Type: EventSetDeleted, UserID: userID, PlanID: p.ID, DayID: dayID, ExerciseID: exerciseID, SetID: setID})
	return plan.ReplaceSets(p, dayID, exerciseID, sets), nil
}

// rewriteSets reads the exercise, applies mutate and writes the result
// guarded by the version it read. A version conflict means another writer
// got in between; the loop starts over from a fresh read, at most
// e.maxRetries more times.
func (e *Engine) rewriteSets(ctx context.Context, op string, path store.Path, mutate setsMutation) ([]plan.Set, error) {
	for attempt := 0; ; attempt++ {
		doc, err := e.store.Get(ctx, path)
		if err != nil {
			return nil, opErr(op, path, err)
		}
		ex, err := DecodeExercise(doc)
		if err != nil {
			return nil, opErr(op, path, err)
		}

		sets, changed, err := mutate(ex.Sets)
		if err != nil {
			return nil, err
		}
		if !changed {
			return sets, nil
		}
		if sets == nil {
			sets = []plan.Set{}
		}

		err = e.store.UpdateIfVersion(ctx, path, store.Fields{"sets": sets}, doc.Version)
		if err == nil {
			return sets, nil
		}
		if !errors.Is(err, store.ErrVersionConflict) {
			return nil, opErr(op, path, err)
		}

		appendConflicts.Inc()
		if attempt >= e.maxRetries {
			return nil, opErr(op, path, fmt.Errorf("gave up after %d attempts: %w", attempt+1, err))
		}
		e.logger.Printf("Version conflict on %s, retrying (%d/%d)", path, attempt+1, e.maxRetries)
	}
}
