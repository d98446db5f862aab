package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/Guan-Eric/FitLife/internal/plan"
	"github.com/Guan-Eric/FitLife/internal/store"
)

// AddExercise copies the catalog exercise catalogID into the day with an
// empty set sequence. The copy keeps the catalog id as its own id.
func (e *Engine) AddExercise(ctx context.Context, userID string, p plan.Plan, dayID, catalogID string) (next plan.Plan, err error) {
	defer e.track("add_exercise", time.Now(), &err)
	if err := requireUser(userID, p.ID, dayID, catalogID); err != nil {
		return p, err
	}

	i := p.DayIndex(dayID)
	if i < 0 {
		return p, fmt.Errorf("%w: %s", ErrUnknownDay, dayID)
	}
	if p.Days[i].ExerciseIndex(catalogID) >= 0 {
		return p, fmt.Errorf("%w: %s", ErrDuplicateExercise, catalogID)
	}

	src := store.CatalogDoc(catalogID)
	doc, err := e.store.Get(ctx, src)
	if err != nil {
		return p, opErr("add_exercise", src, err)
	}
	ex, err := DecodeExercise(doc)
	if err != nil {
		return p, opErr("add_exercise", src, err)
	}
	ex.ID = catalogID
	ex.Sets = []plan.Set{}

	fields, err := exerciseFields(ex)
	if err != nil {
		return p, err
	}
	path := store.ExerciseDoc(userID, p.ID, dayID, catalogID)
	if err := e.store.Set(ctx, path, fields); err != nil {
		return p, opErr("add_exercise", path, err)
	}

	e.notify(Event{Type: EventExerciseAdded, UserID: userID, PlanID: p.ID, DayID: dayID, ExerciseID: catalogID, Name: ex.Name})
	return plan.AddExercise(p, dayID, ex), nil
}

// DeleteExercise deletes one exercise document.
func (e *Engine) DeleteExercise(ctx context.Context, userID string, p plan.Plan, dayID, exerciseID string) (next plan.Plan, err error) {
	defer e.track("delete_exercise", time.Now(), &err)
	if err := requireUser(userID, p.ID, dayID, exerciseID); err != nil {
		return p, err
	}

	path := store.ExerciseDoc(userID, p.ID, dayID, exerciseID)
	if err := e.store.Delete(ctx, path); err != nil {
		return p, opErr("delete_exercise", path, err)
	}

	e.notify(Event{Type: EventExerciseDeleted, UserID: userID, PlanID: p.ID, DayID: dayID, ExerciseID: exerciseID})
	return plan.DeleteExercise(p, dayID, exerciseID), nil
}
