// Package sync keeps the document store in step with edits to a plan tree.
//
// Overview
//
// Every Engine method takes the caller's current tree, performs the store
// calls for one mutation, and returns the next tree. The in-memory half of
// each mutation comes from package plan; this package adds the store half
// and folds server-issued ids and server-held set arrays back into the
// result. On failure a method returns its input tree unchanged together
// with the error, and logs the failure.
//
//	intent ──► plan.<Op> (next tree)
//	              │
//	              ▼
//	         Engine.<Op> ──► store.Create / Update / Delete ...
//	              │
//	              ▼
//	   ids and set arrays merged into the returned tree
//
// Identity
//
// Every call names the acting user explicitly. Documents live under
// Users/{userID}, so two users never share a path.
//
// Appending sets
//
// A set append reads the exercise, appends one zero-valued set, and writes
// the whole array back. In AppendLegacy mode that write is unconditional,
// and two appends racing on the same exercise can lose one set. The default
// AppendVersioned mode makes the write conditional on the version read and
// retries from a fresh read on conflict, so both sets survive.
//
// Cascades
//
// DeleteDay, DeletePlan, SavePlan and ImportPlan write several documents in
// a fixed order, children before parents. By default a failure stops the
// cascade with a *CascadeError listing the paths never written; nothing is
// rolled back. Two options close that gap:
//
//   - Options.Journal records each cascade before it starts and marks steps
//     done as they land. Resume and ResumePlan replay what is left.
//   - Options.Transactional runs the cascade in one store transaction.
//
// Usage
//
//	engine := sync.New(s, sync.Options{Journal: j, Notifier: hub})
//
//	p, err := engine.CreatePlan(ctx, uid)
//	p, err = engine.AddDay(ctx, uid, p)
//	p, err = engine.AddExercise(ctx, uid, p, p.Days[0].ID, "Barbell_Squat")
//	p, err = engine.AddSet(ctx, uid, p, p.Days[0].ID, "Barbell_Squat")
//	p, err = engine.UpdateSet(ctx, uid, p, 0, 0, 0, plan.PropReps, 5)
//
// Metrics
//
// Operations are counted and timed with Prometheus collectors registered on
// the default registry:
//
//	fitlife_sync_operations_total{op,result}
//	fitlife_sync_operation_duration_seconds{op}
//	fitlife_sync_append_conflicts_total
//	fitlife_sync_partial_cascades_total{op}
package sync
