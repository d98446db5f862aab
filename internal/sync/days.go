package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/Guan-Eric/FitLife/internal/journal"
	"github.com/Guan-Eric/FitLife/internal/plan"
	"github.com/Guan-Eric/FitLife/internal/store"
)

// AddDay creates a placeholder day under the plan and appends the stored
// copy to the tree. The day's id only exists after the create call, so it
// takes a second write to put the id on the document and a read to get the
// canonical body back.
func (e *Engine) AddDay(ctx context.Context, userID string, p plan.Plan) (next plan.Plan, err error) {
	defer e.track("add_day", time.Now(), &err)
	if err := requireUser(userID, p.ID); err != nil {
		return p, err
	}
	if p.ID == "" {
		return p, plan.ErrNoPlanID
	}

	col := store.DaysCol(userID, p.ID)
	id, err := e.store.Create(ctx, col, store.Fields{"name": plan.DefaultDayName, "planId": p.ID})
	if err != nil {
		return p, opErr("add_day", col, err)
	}
	path := col.Doc(id)
	if err := e.store.Update(ctx, path, store.Fields{"id": id}); err != nil {
		return p, opErr("add_day", path, err)
	}
	doc, err := e.store.Get(ctx, path)
	if err != nil {
		return p, opErr("add_day", path, err)
	}
	day, err := DecodeDay(doc)
	if err != nil {
		return p, opErr("add_day", path, err)
	}

	next, err = plan.AddDay(p, day)
	if err != nil {
		return p, err
	}
	e.notify(Event{Type: EventDayAdded, UserID: userID, PlanID: p.ID, DayID: day.ID, Name: day.Name})
	return next, nil
}

// RenameDay renames the day at dayIndex.
func (e *Engine) RenameDay(ctx context.Context, userID string, p plan.Plan, dayIndex int, name string) (next plan.Plan, err error) {
	defer e.track("rename_day", time.Now(), &err)
	if err := requireUser(userID, p.ID); err != nil {
		return p, err
	}
	if dayIndex < 0 || dayIndex >= len(p.Days) {
		return p, fmt.Errorf("%w: day %d of %d", ErrStaleIndex, dayIndex, len(p.Days))
	}

	day := p.Days[dayIndex]
	path := store.DayDoc(userID, p.ID, day.ID)
	if err := e.store.Update(ctx, path, store.Fields{"name": name}); err != nil {
		return p, opErr("rename_day", path, err)
	}

	e.notify(Event{Type: EventDayRenamed, UserID: userID, PlanID: p.ID, DayID: day.ID, Name: name})
	return plan.UpdateDay(p, dayIndex, name), nil
}

// DeleteDay deletes every exercise document of the day and then the day
// itself. The exercise list is read from the store, not the tree, so
// exercises the tree never saw are removed too.
func (e *Engine) DeleteDay(ctx context.Context, userID string, p plan.Plan, dayID string) (next plan.Plan, err error) {
	defer e.track("delete_day", time.Now(), &err)
	if err := requireUser(userID, p.ID, dayID); err != nil {
		return p, err
	}
	if p.ID == "" {
		return p, plan.ErrNoPlanID
	}

	col := store.ExerciseCol(userID, p.ID, dayID)
	exs, err := e.store.List(ctx, col)
	if err != nil {
		return p, opErr("delete_day", col, err)
	}

	steps := make([]journal.Step, 0, len(exs)+1)
	for _, ex := range exs {
		steps = append(steps, journal.Step{Op: journal.OpDelete, Path: ex.Path})
	}
	steps = append(steps, journal.Step{Op: journal.OpDelete, Path: store.DayDoc(userID, p.ID, dayID), Sweep: true})

	if err := e.runCascade(ctx, "delete_day", userID, p.ID, steps); err != nil {
		return p, err
	}

	e.notify(Event{Type: EventDayDeleted, UserID: userID, PlanID: p.ID, DayID: dayID})
	return plan.DeleteDay(p, dayID), nil
}
