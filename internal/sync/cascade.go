package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Guan-Eric/FitLife/internal/journal"
	"github.com/Guan-Eric/FitLife/internal/store"
)

// runCascade applies steps in order.
//
// With transactions enabled every step runs in one store transaction and
// either all of them land or none do. Otherwise the steps run one by one
// and the first failure stops the cascade with a *CascadeError; when a
// journal is configured the unfinished steps stay recorded there for
// Resume.
func (e *Engine) runCascade(ctx context.Context, kind, userID, planID string, steps []journal.Step) error {
	if e.transactional {
		return e.runInTx(ctx, kind, steps)
	}

	var entry *journal.Entry
	if e.journal != nil {
		if err := e.pinVersions(ctx, kind, steps); err != nil {
			return err
		}
		entry = &journal.Entry{Kind: kind, UserID: userID, PlanID: planID, Steps: steps}
		if err := e.journal.Begin(ctx, entry); err != nil {
			return fmt.Errorf("failed to journal %s: %w", kind, err)
		}
	}

	for i, st := range steps {
		if err := st.Apply(ctx, e.store); err != nil {
			partialCascades.WithLabelValues(kind).Inc()
			cerr := &CascadeError{
				Op:        kind,
				Completed: i,
				Remaining: stepPaths(steps[i:]),
				Err:       opErr(kind, st.Path, err),
			}
			if entry != nil {
				cerr.EntryID = entry.ID
			}
			return cerr
		}
		if entry != nil {
			if err := e.journal.MarkDone(ctx, entry, i); err != nil {
				// The step itself landed. A replay deletes nothing new and
				// finds a pinned update's version already moved on.
				e.logger.Printf("Warning: failed to mark %s step %d done: %v", kind, i, err)
			}
		}
	}

	if entry != nil {
		if err := e.journal.Complete(ctx, entry); err != nil {
			e.logger.Printf("Warning: failed to complete journal entry %s: %v", entry.ID, err)
		}
	}
	return nil
}

// pinVersions records the current version of every document an update
// step will overwrite, so a later replay cannot clobber edits made after
// the cascade began. Documents that do not exist stay unpinned.
func (e *Engine) pinVersions(ctx context.Context, kind string, steps []journal.Step) error {
	for i := range steps {
		if steps[i].Op != journal.OpUpdate {
			continue
		}
		doc, err := e.store.Get(ctx, steps[i].Path)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return opErr(kind, steps[i].Path, err)
		}
		steps[i].Version = doc.Version
	}
	return nil
}

func (e *Engine) runInTx(ctx context.Context, kind string, steps []journal.Step) error {
	tx := e.store.(store.Transactor)

	var failed store.Path
	err := tx.RunInTx(ctx, func(s store.Store) error {
		for _, st := range steps {
			if err := st.Apply(ctx, s); err != nil {
				failed = st.Path
				return err
			}
		}
		return nil
	})
	if err != nil {
		return opErr(kind, failed, fmt.Errorf("rolled back: %w", err))
	}
	return nil
}

func stepPaths(steps []journal.Step) []store.Path {
	out := make([]store.Path, len(steps))
	for i, st := range steps {
		out[i] = st.Path
	}
	return out
}

// Resume replays every unfinished cascade of the user (of every user when
// userID is empty). Entries that fail again stay in the journal; the
// returned error joins their failures. It returns the number of entries
// completed.
func (e *Engine) Resume(ctx context.Context, userID string) (completed int, err error) {
	defer e.track("resume", time.Now(), &err)
	if err := store.CheckID(userID); err != nil {
		return 0, err
	}
	return e.resume(ctx, userID, "")
}

// ResumePlan replays unfinished cascades of one plan.
func (e *Engine) ResumePlan(ctx context.Context, userID, planID string) (err error) {
	defer e.track("resume_plan", time.Now(), &err)
	if err := requireUser(userID, planID); err != nil {
		return err
	}
	_, err = e.resume(ctx, userID, planID)
	return err
}

func (e *Engine) resume(ctx context.Context, userID, planID string) (int, error) {
	if e.journal == nil {
		return 0, nil
	}

	entries, err := e.journal.Pending(ctx, userID, planID)
	if err != nil {
		return 0, fmt.Errorf("failed to read journal: %w", err)
	}

	var (
		completed int
		errs      []error
	)
	for _, entry := range entries {
		if err := e.replay(ctx, entry); err != nil {
			e.logger.Printf("WARNING: failed to resume %s %s: %v", entry.Kind, entry.ID, err)
			errs = append(errs, err)
			continue
		}
		completed++
		e.logger.Printf("Resumed %s for plan %s (%d steps)", entry.Kind, entry.PlanID, len(entry.Steps))
		e.notify(Event{Type: EventCascadeResumed, UserID: entry.UserID, PlanID: entry.PlanID, Name: entry.Kind})
	}
	return completed, errors.Join(errs...)
}

// replay applies the steps of entry that are not yet done. An update whose
// target has since disappeared, or has been written since the cascade
// began, is dropped. A parent delete first removes every child document,
// including children added after the cascade was journaled.
func (e *Engine) replay(ctx context.Context, entry *journal.Entry) error {
	for _, i := range entry.Remaining() {
		st := entry.Steps[i]
		var err error
		if st.Op == journal.OpDelete && st.Sweep {
			err = e.sweep(ctx, entry.Kind, st.Path)
		}
		if err == nil {
			err = st.Replay(ctx, e.store)
		}
		switch {
		case st.Op != journal.OpUpdate:
		case errors.Is(err, store.ErrNotFound):
			e.logger.Printf("Warning: %s no longer exists, skipping %s step", st.Path, entry.Kind)
			err = nil
		case errors.Is(err, store.ErrVersionConflict):
			e.logger.Printf("Warning: %s changed since %s began, dropping stale step", st.Path, entry.Kind)
			err = nil
		}
		if err != nil {
			return &CascadeError{
				Op:        entry.Kind,
				Completed: len(entry.Steps) - len(entry.Remaining()),
				Remaining: remainingPaths(entry),
				EntryID:   entry.ID,
				Err:       opErr(entry.Kind, st.Path, err),
			}
		}
		if err := e.journal.MarkDone(ctx, entry, i); err != nil {
			return fmt.Errorf("failed to mark step done: %w", err)
		}
	}
	if err := e.journal.Complete(ctx, entry); err != nil {
		return fmt.Errorf("failed to complete journal entry: %w", err)
	}
	return nil
}

func remainingPaths(entry *journal.Entry) []store.Path {
	idx := entry.Remaining()
	out := make([]store.Path, len(idx))
	for k, i := range idx {
		out[k] = entry.Steps[i].Path
	}
	return out
}

// sweep deletes every document below the document at path, deepest first.
func (e *Engine) sweep(ctx context.Context, kind string, path store.Path) error {
	for _, name := range childCollections(path) {
		col := path.Collection(name)
		docs, err := e.store.List(ctx, col)
		if err != nil {
			return fmt.Errorf("failed to list %s: %w", col, err)
		}
		for _, d := range docs {
			if err := e.sweep(ctx, kind, d.Path); err != nil {
				return err
			}
			if err := e.store.Delete(ctx, d.Path); err != nil {
				return fmt.Errorf("failed to delete %s: %w", d.Path, err)
			}
			e.logger.Printf("Removed %s left under %s by %s", d.Path, path, kind)
		}
	}
	return nil
}

// childCollections names the sub-collections a plan or day document owns.
func childCollections(doc store.Path) []string {
	switch doc.Parent().ID() {
	case store.Plans:
		return []string{store.Days}
	case store.Days:
		return []string{store.Exercise}
	default:
		return nil
	}
}
