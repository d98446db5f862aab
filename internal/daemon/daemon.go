package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Guan-Eric/FitLife/internal/plan"
)

const (
	// ProcessedDir receives files that were imported.
	ProcessedDir = "processed"
	// FailedDir receives files that could not be read or imported.
	FailedDir = "failed"
)

// Engine is the part of the sync engine the daemon drives.
type Engine interface {
	ImportPlan(ctx context.Context, userID string, p plan.Plan) (plan.Plan, error)
	Resume(ctx context.Context, userID string) (int, error)
}

// Config holds configuration for the daemon.
type Config struct {
	// DebounceInterval is how long a file must be quiet before it is
	// imported. This batches the create and write events of one save.
	DebounceInterval time.Duration

	// ResumeInterval is how often interrupted cascades are replayed.
	// Zero disables the periodic resume.
	ResumeInterval time.Duration

	// Logger for daemon activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceInterval: 250 * time.Millisecond,
		ResumeInterval:   30 * time.Second,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Stats counts what the daemon has done since it was created.
type Stats struct {
	Imported int64
	Failed   int64
	Resumed  int64
}

// Daemon imports plan files dropped into an inbox directory and
// periodically finishes interrupted cascades.
type Daemon struct {
	engine Engine
	inbox  string
	userID string
	config *Config

	watcher       *FileWatcher
	changeQueue   map[string]time.Time // path -> last event
	changeQueueMu sync.Mutex

	imported atomic.Int64
	failed   atomic.Int64
	resumed  atomic.Int64

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a daemon importing files from inbox into userID's plans.
//
// Use Start() to begin watching.
func New(engine Engine, inbox, userID string) (*Daemon, error) {
	return NewWithConfig(engine, inbox, userID, DefaultConfig())
}

// NewWithConfig creates a daemon with custom configuration.
func NewWithConfig(engine Engine, inbox, userID string, config *Config) (*Daemon, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if inbox == "" {
		return nil, fmt.Errorf("inbox cannot be empty")
	}
	if userID == "" {
		return nil, fmt.Errorf("userID cannot be empty")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = DefaultConfig().Logger
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = DefaultConfig().DebounceInterval
	}

	watcher, err := NewFileWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		engine:      engine,
		inbox:       inbox,
		userID:      userID,
		config:      config,
		watcher:     watcher,
		changeQueue: make(map[string]time.Time),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Start runs the daemon until ctx is cancelled or Stop is called.
//
// The daemon will:
// 1. Create the inbox and its processed/ and failed/ subdirectories
// 2. Import every plan file already in the inbox
// 3. Watch the inbox and import new or changed files after debouncing
// 4. Replay pending cascades every ResumeInterval
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting daemon")

	for _, dir := range []string{d.inbox, d.processedDir(), d.failedDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	if _, err := d.ScanInbox(ctx); err != nil {
		return fmt.Errorf("initial scan failed: %w", err)
	}

	if err := d.watcher.Start(d.inbox); err != nil {
		return err
	}
	d.config.Logger.Printf("Watching: %s", d.inbox)

	d.wg.Add(2)
	go d.watchFileEvents()
	go d.processChangeQueue()
	if d.config.ResumeInterval > 0 {
		d.wg.Add(1)
		go d.resumeLoop()
	}

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon. It is safe to call more than once.
func (d *Daemon) Stop() error {
	d.stopOnce.Do(func() {
		d.config.Logger.Println("Stopping daemon")
		d.cancel()

		if err := d.watcher.Stop(); err != nil {
			d.config.Logger.Printf("Error closing watcher: %v", err)
		}

		d.wg.Wait()
		d.config.Logger.Println("Daemon stopped")
	})
	return nil
}

// Stats returns the daemon's counters.
func (d *Daemon) Stats() Stats {
	return Stats{
		Imported: d.imported.Load(),
		Failed:   d.failed.Load(),
		Resumed:  d.resumed.Load(),
	}
}

// ScanInbox imports every plan file currently in the inbox, in name order,
// and returns how many were imported.
func (d *Daemon) ScanInbox(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(d.inbox)
	if err != nil {
		return 0, fmt.Errorf("failed to read inbox: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !IsPlanFile(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(d.inbox, e.Name()))
	}
	sort.Strings(paths)

	if len(paths) > 0 {
		d.config.Logger.Printf("Importing %d plan files from inbox", len(paths))
	}
	n := 0
	for _, path := range paths {
		if err := d.importFile(ctx, path); err != nil {
			d.config.Logger.Printf("Warning: failed to import %s: %v", path, err)
			continue
		}
		n++
	}
	return n, nil
}

// importFile imports one plan file and moves it to processed/ on success
// or failed/ otherwise. A file that has disappeared is ignored.
func (d *Daemon) importFile(ctx context.Context, path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	p, err := plan.ReadPlanFile(path)
	if err == nil {
		_, err = d.engine.ImportPlan(ctx, d.userID, *p)
	}
	if err != nil {
		d.failed.Add(1)
		d.move(path, d.failedDir())
		return err
	}

	d.imported.Add(1)
	d.config.Logger.Printf("Imported plan %s (%s) from %s", p.ID, p.Name, filepath.Base(path))
	d.move(path, d.processedDir())
	return nil
}

func (d *Daemon) move(path, dir string) {
	dest := filepath.Join(dir, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		d.config.Logger.Printf("Warning: failed to move %s to %s: %v", path, dir, err)
	}
}

func (d *Daemon) processedDir() string { return filepath.Join(d.inbox, ProcessedDir) }

func (d *Daemon) failedDir() string { return filepath.Join(d.inbox, FailedDir) }

// watchFileEvents queues create and modify events. Deletes are ignored:
// the daemon itself moves every file it handles out of the inbox.
func (d *Daemon) watchFileEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events():
			if !ok {
				return
			}
			if event.Op == OpDelete {
				continue
			}
			d.queueChange(event.Path)

		case err, ok := <-d.watcher.Errors():
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

func (d *Daemon) queueChange(path string) {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()

	d.changeQueue[path] = time.Now()
}

func (d *Daemon) processChangeQueue() {
	defer d.wg.Done()

	tick := d.config.DebounceInterval / 2
	if tick <= 0 {
		tick = d.config.DebounceInterval
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.processPendingChanges()
		}
	}
}

// processPendingChanges imports files that have been quiet for a full
// debounce interval.
func (d *Daemon) processPendingChanges() {
	now := time.Now()
	var ready []string

	d.changeQueueMu.Lock()
	for path, queuedAt := range d.changeQueue {
		if now.Sub(queuedAt) < d.config.DebounceInterval {
			continue
		}
		ready = append(ready, path)
		delete(d.changeQueue, path)
	}
	d.changeQueueMu.Unlock()

	sort.Strings(ready)
	for _, path := range ready {
		if err := d.importFile(d.ctx, path); err != nil {
			d.config.Logger.Printf("Error importing %s: %v", path, err)
		}
	}
}

func (d *Daemon) resumeLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.ResumeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.ResumeNow(d.ctx)
		}
	}
}

// ResumeNow replays pending cascades once and returns how many finished.
func (d *Daemon) ResumeNow(ctx context.Context) int {
	n, err := d.engine.Resume(ctx, d.userID)
	if err != nil {
		d.config.Logger.Printf("Error resuming cascades: %v", err)
	}
	if n > 0 {
		d.resumed.Add(int64(n))
		d.config.Logger.Printf("Resumed %d pending cascades", n)
	}
	return n
}
