// Package loadtest drives concurrent set appends and plan loads against a
// real store and reports latency and lost updates.
//
// The append race is the interesting measurement: every writer appends to
// the same exercise at once. In legacy append mode concurrent
// read-modify-write cycles overwrite each other and the stored set count
// falls short of the successful appends. Versioned mode should lose
// nothing.
package loadtest

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/Guan-Eric/FitLife/internal/loader"
	"github.com/Guan-Eric/FitLife/internal/plan"
	"github.com/Guan-Eric/FitLife/internal/store"
	fitsync "github.com/Guan-Eric/FitLife/internal/sync"
)

const (
	fixtureUser     = "loadtest-user"
	fixtureExercise = "Loadtest_Squat"
)

// LatencyStats captures performance metrics from load tests.
type LatencyStats struct {
	Min        time.Duration
	Max        time.Duration
	Mean       time.Duration
	P50        time.Duration // Median
	P95        time.Duration
	P99        time.Duration
	Operations int
	Errors     int
	Durations  []time.Duration
}

// Options configures a Fixture.
type Options struct {
	AppendMode fitsync.AppendMode

	// MaxAppendRetries bounds the versioned retry loop. Races with many
	// writers need more than the engine default.
	MaxAppendRetries int

	// Days and Exercises size the plan used by the load benchmark. The
	// append race always targets the first exercise of the first day.
	Days      int
	Exercises int

	// Logger receives engine and loader output; nil discards it.
	Logger *log.Logger
}

// Fixture is a populated store with one plan ready for load testing.
type Fixture struct {
	Store  *store.SQLite
	Engine *fitsync.Engine
	Loader *loader.Loader
	UserID string
	Plan   plan.Plan
}

// RaceResult summarizes an append race.
type RaceResult struct {
	Mode      fitsync.AppendMode
	Writers   int
	Attempted int
	Succeeded int
	Stored    int
	Lost      int
	Latency   *LatencyStats
}

// CreateFixture opens a store at dbPath and builds a plan with opts.Days
// days of opts.Exercises exercises each.
func CreateFixture(ctx context.Context, dbPath string, opts Options) (*Fixture, error) {
	if opts.Days < 1 {
		opts.Days = 1
	}
	if opts.Exercises < 1 {
		opts.Exercises = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	s, err := store.OpenContext(ctx, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	s.RawDB().SetMaxOpenConns(64)
	s.RawDB().SetMaxIdleConns(16)
	s.RawDB().SetConnMaxLifetime(10 * time.Minute)

	f := &Fixture{
		Store: s,
		Engine: fitsync.New(s, fitsync.Options{
			Logger:           logger,
			AppendMode:       opts.AppendMode,
			MaxAppendRetries: opts.MaxAppendRetries,
		}),
		Loader: loader.New(s, loader.Options{Logger: logger}),
		UserID: fixtureUser,
	}
	if err := f.populate(ctx, opts.Days, opts.Exercises); err != nil {
		_ = s.Close()
		return nil, err
	}
	return f, nil
}

func (f *Fixture) populate(ctx context.Context, days, exercises int) error {
	for i := 0; i < exercises; i++ {
		id := catalogID(i)
		err := f.Store.Set(ctx, store.CatalogDoc(id), store.Fields{
			"id":             id,
			"name":           fmt.Sprintf("Loadtest exercise %d", i),
			"cardio":         i%4 == 3,
			"primaryMuscles": []string{"quadriceps"},
		})
		if err != nil {
			return fmt.Errorf("failed to seed catalog: %w", err)
		}
	}

	p, err := f.Engine.CreatePlan(ctx, f.UserID)
	if err != nil {
		return fmt.Errorf("failed to create plan: %w", err)
	}
	for d := 0; d < days; d++ {
		if p, err = f.Engine.AddDay(ctx, f.UserID, p); err != nil {
			return fmt.Errorf("failed to add day: %w", err)
		}
		dayID := p.Days[d].ID
		for x := 0; x < exercises; x++ {
			if p, err = f.Engine.AddExercise(ctx, f.UserID, p, dayID, catalogID(x)); err != nil {
				return fmt.Errorf("failed to add exercise: %w", err)
			}
		}
	}
	f.Plan = p
	return nil
}

func catalogID(i int) string {
	if i == 0 {
		return fixtureExercise
	}
	return fmt.Sprintf("%s_%d", fixtureExercise, i)
}

// Close closes the fixture's store.
func (f *Fixture) Close() error {
	if f.Store != nil {
		return f.Store.Close()
	}
	return nil
}

// RunAppendRace starts numWriters goroutines that each append
// appendsPerWriter sets to the same exercise, all from the same starting
// tree, and compares the stored set count with the appends that reported
// success.
func (f *Fixture) RunAppendRace(ctx context.Context, numWriters, appendsPerWriter int) (*RaceResult, error) {
	dayID := f.Plan.Days[0].ID
	path := store.ExerciseDoc(f.UserID, f.Plan.ID, dayID, fixtureExercise)

	before, err := f.storedSets(ctx, path)
	if err != nil {
		return nil, err
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		durations []time.Duration
		errCount  int
		succeeded int
	)

	start := make(chan struct{})
	for i := 0; i < numWriters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tree := f.Plan
			local := make([]time.Duration, 0, appendsPerWriter)
			ok, failed := 0, 0

			<-start
			for j := 0; j < appendsPerWriter; j++ {
				t0 := time.Now()
				next, err := f.Engine.AddSet(ctx, f.UserID, tree, dayID, fixtureExercise)
				local = append(local, time.Since(t0))
				if err != nil {
					failed++
					continue
				}
				tree = next
				ok++
			}

			mu.Lock()
			durations = append(durations, local...)
			errCount += failed
			succeeded += ok
			mu.Unlock()
		}()
	}
	close(start)
	wg.Wait()

	after, err := f.storedSets(ctx, path)
	if err != nil {
		return nil, err
	}

	stats := computeLatencyStats(durations)
	stats.Errors = errCount

	stored := after - before
	return &RaceResult{
		Mode:      f.Engine.AppendMode(),
		Writers:   numWriters,
		Attempted: numWriters * appendsPerWriter,
		Succeeded: succeeded,
		Stored:    stored,
		Lost:      succeeded - stored,
		Latency:   stats,
	}, nil
}

func (f *Fixture) storedSets(ctx context.Context, path store.Path) (int, error) {
	doc, err := f.Store.Get(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("failed to read exercise: %w", err)
	}
	ex, err := fitsync.DecodeExercise(doc)
	if err != nil {
		return 0, err
	}
	return len(ex.Sets), nil
}

// RunConcurrentLoads has numReaders goroutines each load the fixture plan
// loadsPerReader times through l, recording the latency of each load.
func (f *Fixture) RunConcurrentLoads(ctx context.Context, l *loader.Loader, numReaders, loadsPerReader int) (*LatencyStats, error) {
	if l == nil {
		l = f.Loader
	}
	wantDays, wantExercises, _ := f.Plan.Counts()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		durations []time.Duration
		firstErr  error
		errCount  int
	)

	for i := 0; i < numReaders; i++ {
		wg.Add(1)
		go func(reader int) {
			defer wg.Done()
			local := make([]time.Duration, 0, loadsPerReader)

			for j := 0; j < loadsPerReader; j++ {
				t0 := time.Now()
				p, err := l.Load(ctx, f.UserID, f.Plan.ID)
				local = append(local, time.Since(t0))
				if err == nil {
					if d, e, _ := p.Counts(); d != wantDays || e != wantExercises {
						err = fmt.Errorf("loaded %d days and %d exercises, want %d and %d", d, e, wantDays, wantExercises)
					}
				}
				if err != nil {
					mu.Lock()
					errCount++
					if firstErr == nil {
						firstErr = fmt.Errorf("reader %d load %d failed: %w", reader, j, err)
					}
					mu.Unlock()
				}
			}

			mu.Lock()
			durations = append(durations, local...)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	if errCount == len(durations) {
		if firstErr == nil {
			firstErr = fmt.Errorf("no loads were run")
		}
		return nil, fmt.Errorf("no successful loads completed: %w", firstErr)
	}

	stats := computeLatencyStats(durations)
	stats.Errors = errCount
	return stats, nil
}

// computeLatencyStats calculates statistics from a slice of durations.
func computeLatencyStats(durations []time.Duration) *LatencyStats {
	if len(durations) == 0 {
		return &LatencyStats{}
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return &LatencyStats{
		Min:        sorted[0],
		Max:        sorted[len(sorted)-1],
		Mean:       sum / time.Duration(len(durations)),
		P50:        sorted[len(sorted)*50/100],
		P95:        sorted[len(sorted)*95/100],
		P99:        sorted[len(sorted)*99/100],
		Operations: len(durations),
		Durations:  sorted,
	}
}

// PrintStats writes latency statistics to w.
func (s *LatencyStats) PrintStats(w io.Writer) {
	fmt.Fprintf(w, "Latency Statistics:\n")
	fmt.Fprintf(w, "  Operations:    %d\n", s.Operations)
	fmt.Fprintf(w, "  Errors:        %d\n", s.Errors)
	fmt.Fprintf(w, "  Min:           %v\n", s.Min)
	fmt.Fprintf(w, "  P50 (Median):  %v\n", s.P50)
	fmt.Fprintf(w, "  Mean:          %v\n", s.Mean)
	fmt.Fprintf(w, "  P95:           %v\n", s.P95)
	fmt.Fprintf(w, "  P99:           %v\n", s.P99)
	fmt.Fprintf(w, "  Max:           %v\n", s.Max)
}

// PrintResult writes a race summary to w.
func (r *RaceResult) PrintResult(w io.Writer) {
	fmt.Fprintf(w, "Append race (%s mode, %d writers):\n", r.Mode, r.Writers)
	fmt.Fprintf(w, "  Attempted:     %d\n", r.Attempted)
	fmt.Fprintf(w, "  Succeeded:     %d\n", r.Succeeded)
	fmt.Fprintf(w, "  Stored:        %d\n", r.Stored)
	fmt.Fprintf(w, "  Lost updates:  %d\n", r.Lost)
	if r.Latency != nil {
		r.Latency.PrintStats(w)
	}
}
