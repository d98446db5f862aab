package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Guan-Eric/FitLife/internal/journal"
	"github.com/Guan-Eric/FitLife/internal/plan"
	"github.com/Guan-Eric/FitLife/internal/store"
)

// CreatePlan creates an empty plan named plan.DefaultPlanName. The store
// issues the id, the id is written back onto the document, and the
// document is re-read so the returned plan is the stored one.
func (e *Engine) CreatePlan(ctx context.Context, userID string) (p plan.Plan, err error) {
	defer e.track("create_plan", time.Now(), &err)
	if err := requireUser(userID); err != nil {
		return plan.Plan{}, err
	}

	col := store.PlansCol(userID)
	id, err := e.store.Create(ctx, col, store.Fields{"name": plan.DefaultPlanName})
	if err != nil {
		return plan.Plan{}, opErr("create_plan", col, err)
	}
	path := col.Doc(id)
	if err := e.store.Update(ctx, path, store.Fields{"id": id}); err != nil {
		return plan.Plan{}, opErr("create_plan", path, err)
	}
	doc, err := e.store.Get(ctx, path)
	if err != nil {
		return plan.Plan{}, opErr("create_plan", path, err)
	}
	p, err = DecodePlan(doc)
	if err != nil {
		return plan.Plan{}, opErr("create_plan", path, err)
	}

	e.notify(Event{Type: EventPlanCreated, UserID: userID, PlanID: p.ID, Name: p.Name})
	return p, nil
}

// ListPlans returns the user's plans without their days, oldest first.
func (e *Engine) ListPlans(ctx context.Context, userID string) (plans []plan.Plan, err error) {
	defer e.track("list_plans", time.Now(), &err)
	if err := requireUser(userID); err != nil {
		return nil, err
	}

	col := store.PlansCol(userID)
	docs, err := e.store.List(ctx, col)
	if err != nil {
		return nil, opErr("list_plans", col, err)
	}
	SortDocuments(docs)

	plans = make([]plan.Plan, 0, len(docs))
	for _, doc := range docs {
		p, err := DecodePlan(doc)
		if err != nil {
			e.logger.Printf("WARNING: skipping unreadable plan %s: %v", doc.Path, err)
			continue
		}
		plans = append(plans, p)
	}
	return plans, nil
}

// RenamePlan updates the plan's name field.
func (e *Engine) RenamePlan(ctx context.Context, userID string, p plan.Plan, name string) (next plan.Plan, err error) {
	defer e.track("rename_plan", time.Now(), &err)
	if err := requireUser(userID, p.ID); err != nil {
		return p, err
	}
	if p.ID == "" {
		return p, plan.ErrNoPlanID
	}

	path := store.PlanDoc(userID, p.ID)
	if err := e.store.Update(ctx, path, store.Fields{"name": name}); err != nil {
		return p, opErr("rename_plan", path, err)
	}

	e.notify(Event{Type: EventPlanRenamed, UserID: userID, PlanID: p.ID, Name: name})
	return plan.RenamePlan(p, name), nil
}

// DeletePlan removes the plan with every day and exercise below it,
// children first.
func (e *Engine) DeletePlan(ctx context.Context, userID, planID string) (err error) {
	defer e.track("delete_plan", time.Now(), &err)
	if err := requireUser(userID, planID); err != nil {
		return err
	}

	daysCol := store.DaysCol(userID, planID)
	days, err := e.store.List(ctx, daysCol)
	if err != nil {
		return opErr("delete_plan", daysCol, err)
	}

	var steps []journal.Step
	for _, day := range days {
		exCol := store.ExerciseCol(userID, planID, day.ID)
		exs, err := e.store.List(ctx, exCol)
		if err != nil {
			return opErr("delete_plan", exCol, err)
		}
		for _, ex := range exs {
			steps = append(steps, journal.Step{Op: journal.OpDelete, Path: ex.Path})
		}
		steps = append(steps, journal.Step{Op: journal.OpDelete, Path: day.Path, Sweep: true})
	}
	steps = append(steps, journal.Step{Op: journal.OpDelete, Path: store.PlanDoc(userID, planID), Sweep: true})

	if err := e.runCascade(ctx, "delete_plan", userID, planID, steps); err != nil {
		return err
	}

	e.notify(Event{Type: EventPlanDeleted, UserID: userID, PlanID: planID})
	return nil
}

// SavePlan persists an edited tree: the plan name, then each day name,
// then each exercise's name and sets, one write after another. Without a
// journal or transactions a failure leaves every earlier write committed
// and every later one unattempted.
func (e *Engine) SavePlan(ctx context.Context, userID string, p plan.Plan) (next plan.Plan, err error) {
	defer e.track("save_plan", time.Now(), &err)
	if err := requireUser(userID, treeIDs(p)...); err != nil {
		return p, err
	}
	if p.ID == "" {
		return p, plan.ErrNoPlanID
	}

	steps := []journal.Step{{
		Op:     journal.OpUpdate,
		Path:   store.PlanDoc(userID, p.ID),
		Fields: store.Fields{"name": p.Name},
	}}
	for _, d := range p.Days {
		steps = append(steps, journal.Step{
			Op:     journal.OpUpdate,
			Path:   store.DayDoc(userID, p.ID, d.ID),
			Fields: store.Fields{"name": d.Name},
		})
		for _, ex := range d.Exercises {
			sets := ex.Sets
			if sets == nil {
				sets = []plan.Set{}
			}
			steps = append(steps, journal.Step{
				Op:     journal.OpUpdate,
				Path:   store.ExerciseDoc(userID, p.ID, d.ID, ex.ID),
				Fields: store.Fields{"name": ex.Name, "sets": sets},
			})
		}
	}

	if err := e.runCascade(ctx, "save_plan", userID, p.ID, steps); err != nil {
		return p, err
	}

	e.notify(Event{Type: EventPlanSaved, UserID: userID, PlanID: p.ID, Name: p.Name})
	return p, nil
}

// ImportPlan writes a complete tree (typically read from a plan file) under
// the ids it already carries, replacing any documents at those paths.
func (e *Engine) ImportPlan(ctx context.Context, userID string, p plan.Plan) (next plan.Plan, err error) {
	defer e.track("import_plan", time.Now(), &err)
	if err := requireUser(userID); err != nil {
		return p, err
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("invalid plan: %w", err)
	}

	steps := []journal.Step{{
		Op:     journal.OpSet,
		Path:   store.PlanDoc(userID, p.ID),
		Fields: store.Fields{"id": p.ID, "name": p.Name},
	}}
	for _, d := range p.Days {
		steps = append(steps, journal.Step{
			Op:     journal.OpSet,
			Path:   store.DayDoc(userID, p.ID, d.ID),
			Fields: store.Fields{"id": d.ID, "name": d.Name, "planId": p.ID},
		})
		for _, ex := range d.Exercises {
			fields, err := exerciseFields(ex)
			if err != nil {
				return p, err
			}
			steps = append(steps, journal.Step{
				Op:     journal.OpSet,
				Path:   store.ExerciseDoc(userID, p.ID, d.ID, ex.ID),
				Fields: fields,
			})
		}
	}

	if err := e.runCascade(ctx, "import_plan", userID, p.ID, steps); err != nil {
		return p, err
	}

	e.notify(Event{Type: EventPlanImported, UserID: userID, PlanID: p.ID, Name: p.Name})
	return p, nil
}

// MetricUnits reports the user's unit preference. A user without a profile
// document gets the default (false).
func (e *Engine) MetricUnits(ctx context.Context, userID string) (metric bool, err error) {
	defer e.track("metric_units", time.Now(), &err)
	if err := requireUser(userID); err != nil {
		return false, err
	}

	path := store.UserDoc(userID)
	doc, err := e.store.Get(ctx, path)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, opErr("metric_units", path, err)
	}
	v, _ := doc.Data["metricUnits"].(bool)
	return v, nil
}

// SetMetricUnits stores the user's unit preference, creating the profile
// document if needed.
func (e *Engine) SetMetricUnits(ctx context.Context, userID string, metric bool) (err error) {
	defer e.track("set_metric_units", time.Now(), &err)
	if err := requireUser(userID); err != nil {
		return err
	}

	path := store.UserDoc(userID)
	err = e.store.Update(ctx, path, store.Fields{"metricUnits": metric})
	if errors.Is(err, store.ErrNotFound) {
		err = e.store.Set(ctx, path, store.Fields{"metricUnits": metric})
	}
	if err != nil {
		return opErr("set_metric_units", path, err)
	}
	return nil
}
