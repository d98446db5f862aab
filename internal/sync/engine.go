package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/Guan-Eric/FitLife/internal/journal"
	"github.com/Guan-Eric/FitLife/internal/plan"
	"github.com/Guan-Eric/FitLife/internal/store"
)

// AppendMode selects how an exercise's set array is rewritten.
type AppendMode string

const (
	// AppendLegacy reads the exercise, appends locally and writes the whole
	// array back. Two concurrent appends can both read the same array, and
	// the later write then silently drops the earlier set.
	AppendLegacy AppendMode = "legacy"

	// AppendVersioned guards the write with the document version and
	// retries from a fresh read when another writer got there first.
	AppendVersioned AppendMode = "versioned"
)

// DefaultMaxAppendRetries bounds the versioned retry loop.
const DefaultMaxAppendRetries = 5

// ParseAppendMode validates a configured append mode.
func ParseAppendMode(s string) (AppendMode, error) {
	switch AppendMode(s) {
	case "":
		return AppendVersioned, nil
	case AppendLegacy, AppendVersioned:
		return AppendMode(s), nil
	default:
		return "", fmt.Errorf("unknown append mode %q (want %q or %q)", s, AppendLegacy, AppendVersioned)
	}
}

// Journal is the subset of *journal.Journal the engine needs.
type Journal interface {
	Begin(ctx context.Context, e *journal.Entry) error
	MarkDone(ctx context.Context, e *journal.Entry, i int) error
	Complete(ctx context.Context, e *journal.Entry) error
	Pending(ctx context.Context, userID, planID string) ([]*journal.Entry, error)
}

// Options configures an Engine. The zero value is usable.
type Options struct {
	// Logger defaults to stderr with a "[sync] " prefix.
	Logger *log.Logger

	// Journal, when set, records every cascade before it starts so an
	// interrupted cascade can be resumed.
	Journal Journal

	// Notifier receives an Event after each successful mutation.
	Notifier Notifier

	// AppendMode defaults to AppendVersioned.
	AppendMode AppendMode

	// MaxAppendRetries defaults to DefaultMaxAppendRetries.
	MaxAppendRetries int

	// Transactional runs cascades inside one store transaction when the
	// store implements store.Transactor.
	Transactional bool
}

// Engine applies plan mutations to the store and folds the results back
// into the caller's tree. It holds no per-plan state and is safe for
// concurrent use; the store provides per-document atomicity and nothing
// more.
type Engine struct {
	store         store.Store
	logger        *log.Logger
	journal       Journal
	notifier      Notifier
	appendMode    AppendMode
	maxRetries    int
	transactional bool
}

// New creates an Engine over s.
//
// Example:
//
//	s, err := store.Open(".fitlife/fitlife.db")
//	if err != nil {
//	    return err
//	}
//	engine := sync.New(s, sync.Options{})
//	p, err := engine.CreatePlan(ctx, uid)
func New(s store.Store, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	mode := opts.AppendMode
	if mode == "" {
		mode = AppendVersioned
	}
	retries := opts.MaxAppendRetries
	if retries <= 0 {
		retries = DefaultMaxAppendRetries
	}

	e := &Engine{
		store:         s,
		logger:        logger,
		journal:       opts.Journal,
		notifier:      opts.Notifier,
		appendMode:    mode,
		maxRetries:    retries,
		transactional: opts.Transactional,
	}
	if e.transactional {
		if _, ok := s.(store.Transactor); !ok {
			logger.Printf("Warning: store %T does not support transactions; cascades run step by step", s)
			e.transactional = false
		}
	}
	return e
}

// AppendMode reports the configured append strategy.
func (e *Engine) AppendMode() AppendMode {
	return e.appendMode
}

// track records metrics for an operation and logs its failure. It is
// deferred with a pointer to the operation's named error result.
func (e *Engine) track(op string, start time.Time, errp *error) {
	result := "ok"
	if *errp != nil {
		result = "error"
		e.logger.Printf("WARNING: %s failed: %v", op, *errp)
	}
	operationsTotal.WithLabelValues(op, result).Inc()
	operationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (e *Engine) notify(ev Event) {
	if e.notifier == nil {
		return
	}
	ev.Timestamp = time.Now()
	e.notifier.Notify(ev)
}

func opErr(op string, path store.Path, err error) error {
	return &OpError{Op: op, Path: path, Err: err}
}

// requireUser checks the acting user and every other id the operation
// joins into a store path. An id containing '/' would address a different
// subtree, so it is refused.
func requireUser(userID string, ids ...string) error {
	if userID == "" {
		return ErrNoUser
	}
	if err := store.CheckID(userID); err != nil {
		return err
	}
	for _, id := range ids {
		if err := store.CheckID(id); err != nil {
			return err
		}
	}
	return nil
}

// treeIDs lists the plan, day and exercise ids of p.
func treeIDs(p plan.Plan) []string {
	ids := []string{p.ID}
	for _, d := range p.Days {
		ids = append(ids, d.ID)
		for _, ex := range d.Exercises {
			ids = append(ids, ex.ID)
		}
	}
	return ids
}

// toFields converts a value to a store body through its JSON encoding.
func toFields(v any) (store.Fields, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	var f store.Fields
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return f, nil
}

func exerciseFields(ex plan.Exercise) (store.Fields, error) {
	if ex.Sets == nil {
		ex.Sets = []plan.Set{}
	}
	return toFields(ex)
}

// DecodePlan builds a plan node (without days) from its document.
func DecodePlan(doc *store.Document) (plan.Plan, error) {
	var p plan.Plan
	if err := doc.Decode(&p); err != nil {
		return plan.Plan{}, err
	}
	if p.ID == "" {
		p.ID = doc.ID
	}
	p.Days = nil
	return p, nil
}

// DecodeDay builds a day node (without exercises) from its document.
func DecodeDay(doc *store.Document) (plan.Day, error) {
	var d plan.Day
	if err := doc.Decode(&d); err != nil {
		return plan.Day{}, err
	}
	if d.ID == "" {
		d.ID = doc.ID
	}
	d.Exercises = nil
	return d, nil
}

// DecodeExercise builds an exercise node from its document.
func DecodeExercise(doc *store.Document) (plan.Exercise, error) {
	var ex plan.Exercise
	if err := doc.Decode(&ex); err != nil {
		return plan.Exercise{}, err
	}
	if ex.ID == "" {
		ex.ID = doc.ID
	}
	if ex.Sets == nil {
		ex.Sets = []plan.Set{}
	}
	return ex, nil
}

// SortDocuments orders documents by creation time, then id. Collections
// come back from the store unordered, so every reader that presents days or
// exercises in sequence sorts with this.
func SortDocuments(docs []*store.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.Before(docs[j].CreatedAt)
		}
		return docs[i].ID < docs[j].ID
	})
}

func locate(p plan.Plan, dayID, exerciseID string) (int, int, error) {
	i := p.DayIndex(dayID)
	if i < 0 {
		return -1, -1, fmt.Errorf("%w: %s", ErrUnknownDay, dayID)
	}
	j := p.Days[i].ExerciseIndex(exerciseID)
	if j < 0 {
		return i, -1, fmt.Errorf("%w: %s", ErrUnknownExercise, exerciseID)
	}
	return i, j, nil
}
