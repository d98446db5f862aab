package sync

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Guan-Eric/FitLife/internal/store"
)

var (
	// ErrStaleIndex is returned when an index triple does not address a set
	// in the tree (or in the stored exercise) it was computed against.
	ErrStaleIndex = errors.New("stale set index")

	// ErrNoUser is returned when an operation is called without a user id.
	ErrNoUser = errors.New("user id is required")

	// ErrUnknownDay is returned when a day id is not part of the plan tree.
	ErrUnknownDay = errors.New("day not in plan")

	// ErrUnknownExercise is returned when an exercise id is not part of the day.
	ErrUnknownExercise = errors.New("exercise not in day")

	// ErrDuplicateExercise is returned when a catalog exercise is added twice
	// to the same day.
	ErrDuplicateExercise = errors.New("exercise already in day")

	// ErrUnknownSet is returned by the id-addressed set operations.
	ErrUnknownSet = errors.New("set not found")
)

// OpError is a failed store call made on behalf of an engine operation.
type OpError struct {
	Op   string
	Path store.Path
	Err  error
}

func (e *OpError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// CascadeError reports a multi-document operation that stopped partway.
// Writes before the failing step are committed; Remaining lists the paths
// that were never written, starting with the one that failed.
type CascadeError struct {
	Op        string
	Completed int
	Remaining []store.Path
	// EntryID names the journal entry holding the remaining steps, if the
	// engine has a journal.
	EntryID string
	Err     error
}

func (e *CascadeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s interrupted after %d of %d writes", e.Op, e.Completed, e.Completed+len(e.Remaining))
	if e.EntryID != "" {
		fmt.Fprintf(&b, " (journal entry %s)", e.EntryID)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *CascadeError) Unwrap() error { return e.Err }
