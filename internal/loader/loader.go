// Package loader rebuilds a complete plan tree from the document store.
//
// A plan is stored as one document per node, so loading it takes one read
// for the plan, one list for its days, and one list per day for that day's
// exercises. By default the per-day lists run one after another and the
// load takes the sum of their round trips; Options.Concurrency bounds a
// parallel fan-out instead.
//
// The store returns collections unordered. Days and exercises are sorted
// by document creation time, then id, which is the order they were added.
package loader

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Guan-Eric/FitLife/internal/plan"
	"github.com/Guan-Eric/FitLife/internal/store"
	"github.com/Guan-Eric/FitLife/internal/sync"
)

// Resumer finishes interrupted cascades of a plan before it is read.
type Resumer interface {
	ResumePlan(ctx context.Context, userID, planID string) error
}

// Options configures a Loader.
type Options struct {
	// Logger defaults to stderr with a "[loader] " prefix.
	Logger *log.Logger

	// Concurrency is the number of day lists in flight at once. Values
	// below 2 load days sequentially.
	Concurrency int

	// Resumer, when set, is asked to finish pending cascades of the plan
	// first. A resume failure is logged and the load goes ahead.
	Resumer Resumer

	// Verbose logs a summary line for every load.
	Verbose bool
}

// Loader reads plan trees. It is safe for concurrent use.
type Loader struct {
	store       store.Store
	logger      *log.Logger
	concurrency int
	resumer     Resumer
	verbose     bool
}

// New creates a Loader over s.
func New(s store.Store, opts Options) *Loader {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[loader] ", log.LstdFlags)
	}
	conc := opts.Concurrency
	if conc < 1 {
		conc = 1
	}
	return &Loader{
		store:       s,
		logger:      logger,
		concurrency: conc,
		resumer:     opts.Resumer,
		verbose:     opts.Verbose,
	}
}

// Load reads the plan and all of its days and exercises. A missing plan
// yields an error matching store.ErrNotFound.
func (l *Loader) Load(ctx context.Context, userID, planID string) (plan.Plan, error) {
	start := time.Now()
	if userID == "" {
		return plan.Plan{}, sync.ErrNoUser
	}
	for _, id := range []string{userID, planID} {
		if err := store.CheckID(id); err != nil {
			return plan.Plan{}, err
		}
	}

	if l.resumer != nil {
		if err := l.resumer.ResumePlan(ctx, userID, planID); err != nil {
			l.logger.Printf("WARNING: failed to resume pending cascades for plan %s: %v", planID, err)
		}
	}

	doc, err := l.store.Get(ctx, store.PlanDoc(userID, planID))
	if err != nil {
		return plan.Plan{}, fmt.Errorf("failed to load plan %s: %w", planID, err)
	}
	p, err := sync.DecodePlan(doc)
	if err != nil {
		return plan.Plan{}, fmt.Errorf("failed to load plan %s: %w", planID, err)
	}

	dayDocs, err := l.store.List(ctx, store.DaysCol(userID, planID))
	if err != nil {
		return plan.Plan{}, fmt.Errorf("failed to list days of plan %s: %w", planID, err)
	}
	sync.SortDocuments(dayDocs)

	var days []plan.Day
	for _, d := range dayDocs {
		day, err := sync.DecodeDay(d)
		if err != nil {
			l.logger.Printf("WARNING: skipping unreadable day %s: %v", d.Path, err)
			continue
		}
		days = append(days, day)
	}

	if err := l.loadExercises(ctx, userID, planID, days); err != nil {
		return plan.Plan{}, err
	}
	p.Days = days

	if l.verbose {
		nd, ne, ns := p.Counts()
		l.logger.Printf("Loaded plan %s: days=%d exercises=%d sets=%d queries=%d in %v",
			planID, nd, ne, ns, 2+nd, time.Since(start))
	}
	return p, nil
}

// loadExercises fills in days[i].Exercises for every day.
func (l *Loader) loadExercises(ctx context.Context, userID, planID string, days []plan.Day) error {
	if l.concurrency <= 1 {
		for i := range days {
			exs, err := l.exercises(ctx, userID, planID, days[i].ID)
			if err != nil {
				return err
			}
			days[i].Exercises = exs
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i := range days {
		g.Go(func() error {
			exs, err := l.exercises(gctx, userID, planID, days[i].ID)
			if err != nil {
				return err
			}
			days[i].Exercises = exs
			return nil
		})
	}
	return g.Wait()
}

func (l *Loader) exercises(ctx context.Context, userID, planID, dayID string) ([]plan.Exercise, error) {
	docs, err := l.store.List(ctx, store.ExerciseCol(userID, planID, dayID))
	if err != nil {
		return nil, fmt.Errorf("failed to list exercises of day %s: %w", dayID, err)
	}
	sync.SortDocuments(docs)

	var exs []plan.Exercise
	for _, d := range docs {
		ex, err := sync.DecodeExercise(d)
		if err != nil {
			l.logger.Printf("WARNING: skipping unreadable exercise %s: %v", d.Path, err)
			continue
		}
		exs = append(exs, ex)
	}
	return exs, nil
}
