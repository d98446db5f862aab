// Package journal is a write-ahead log of multi-document cascades.
//
// Before a cascade (deleting a Day or a Plan, saving a whole plan) issues
// its first store call, the complete list of steps is written here. Each
// step is marked done as soon as the store acknowledges it, and the entry
// is removed once every step has landed. An entry that survives a crash or
// a failed store call therefore describes exactly the writes that are still
// owed, and Pending hands them back for replay.
//
// Entries live in a Badger database keyed by
//
//	cascade/{userID}/{planID}/{entryID}
//
// with ULID entry ids, so a prefix scan returns a plan's entries in the
// order they were begun.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/oklog/ulid/v2"

	"github.com/Guan-Eric/FitLife/internal/store"
)

const keyPrefix = "cascade/"

// ErrUnknownEntry is returned when an entry is not in the journal.
var ErrUnknownEntry = errors.New("journal entry not found")

// Op is the store call a step performs.
type Op string

const (
	OpDelete Op = "delete"
	OpUpdate Op = "update"
	OpSet    Op = "set"
)

// Step is one pending store call.
type Step struct {
	Op     Op           `json:"op"`
	Path   store.Path   `json:"path"`
	Fields store.Fields `json:"fields,omitempty"`

	// Version is the document version an update step was computed
	// against. Zero means unpinned.
	Version int64 `json:"version,omitempty"`

	// Sweep marks a delete of a parent document whose children must be
	// re-listed and removed before it on replay.
	Sweep bool `json:"sweep,omitempty"`

	Done bool `json:"done"`
}

// Apply performs the step against s.
func (st Step) Apply(ctx context.Context, s store.Store) error {
	switch st.Op {
	case OpDelete:
		return s.Delete(ctx, st.Path)
	case OpUpdate:
		return s.Update(ctx, st.Path, st.Fields)
	case OpSet:
		return s.Set(ctx, st.Path, st.Fields)
	default:
		return fmt.Errorf("unknown journal op %q", st.Op)
	}
}

// Replay performs the step during recovery. A pinned update only lands if
// the document is still at Version; otherwise it fails with
// store.ErrVersionConflict and the newer document is left alone.
func (st Step) Replay(ctx context.Context, s store.Store) error {
	if st.Op == OpUpdate && st.Version > 0 {
		return s.UpdateIfVersion(ctx, st.Path, st.Fields, st.Version)
	}
	return st.Apply(ctx, s)
}

// Entry is one journaled cascade.
type Entry struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	UserID    string    `json:"userId"`
	PlanID    string    `json:"planId"`
	Steps     []Step    `json:"steps"`
	CreatedAt time.Time `json:"createdAt"`
}

// Remaining returns the indices of steps not yet marked done.
func (e *Entry) Remaining() []int {
	var out []int
	for i, st := range e.Steps {
		if !st.Done {
			out = append(out, i)
		}
	}
	return out
}

func (e *Entry) key() []byte {
	return []byte(keyPrefix + e.UserID + "/" + e.PlanID + "/" + e.ID)
}

// Config configures Open.
type Config struct {
	// Path is the Badger directory. Ignored when InMemory is set.
	Path string

	InMemory bool

	// SyncWrites fsyncs every write. The journal is only useful if it
	// survives a crash, so Open defaults this to true for on-disk journals.
	SyncWrites bool

	// Logger receives Badger's warnings and errors. Nil discards them.
	Logger *log.Logger

	// GCInterval runs value log GC periodically. Zero disables it.
	GCInterval time.Duration
}

// Journal is safe for concurrent use.
type Journal struct {
	db     *badger.DB
	logger *log.Logger
	stopGC chan struct{}
	gcDone chan struct{}
}

// Open opens the journal described by cfg.
func Open(cfg Config) (*Journal, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent journal")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("failed to create journal directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path).WithSyncWrites(true)
	}
	if cfg.SyncWrites {
		opts = opts.WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1)

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
		opts = opts.WithLogger(nil)
	} else {
		opts = opts.WithLogger(&badgerLogger{logger: logger})
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	j := &Journal{db: db, logger: logger}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		j.stopGC = make(chan struct{})
		j.gcDone = make(chan struct{})
		go j.runGC(cfg.GCInterval)
	}
	return j, nil
}

// OpenInMemory opens a journal that lives only as long as the process.
func OpenInMemory() (*Journal, error) {
	return Open(Config{InMemory: true})
}

// Close stops GC and closes the database.
func (j *Journal) Close() error {
	if j.stopGC != nil {
		close(j.stopGC)
		<-j.gcDone
	}
	if err := j.db.Close(); err != nil {
		return fmt.Errorf("failed to close journal: %w", err)
	}
	return nil
}

// Begin assigns e an id and creation time and persists it.
func (j *Journal) Begin(ctx context.Context, e *Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.UserID == "" || e.PlanID == "" {
		return fmt.Errorf("journal entry requires user and plan ids")
	}
	if strings.Contains(e.UserID, "/") || strings.Contains(e.PlanID, "/") {
		return fmt.Errorf("journal entry ids must not contain '/' (user %q, plan %q)", e.UserID, e.PlanID)
	}
	if len(e.Steps) == 0 {
		return fmt.Errorf("journal entry %q has no steps", e.Kind)
	}
	e.ID = ulid.Make().String()
	e.CreatedAt = time.Now().UTC()
	return j.put(e)
}

// MarkDone records that step i of e has been applied.
func (j *Journal) MarkDone(ctx context.Context, e *Entry, i int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if i < 0 || i >= len(e.Steps) {
		return fmt.Errorf("step %d out of range for entry %s", i, e.ID)
	}
	e.Steps[i].Done = true
	return j.put(e)
}

// Complete removes e from the journal.
func (j *Journal) Complete(ctx context.Context, e *Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := j.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(e.key())
	})
	if err != nil {
		return fmt.Errorf("failed to complete journal entry %s: %w", e.ID, err)
	}
	return nil
}

// Get returns a stored entry.
func (j *Journal) Get(ctx context.Context, userID, planID, id string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := (&Entry{UserID: userID, PlanID: planID, ID: id}).key()

	var e Entry
	err := j.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntry, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read journal entry %s: %w", id, err)
	}
	return &e, nil
}

// Pending returns unfinished entries in the order they were begun.
// An empty planID selects every plan of the user; an empty userID selects
// the whole journal.
func (j *Journal) Pending(ctx context.Context, userID, planID string) ([]*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := keyPrefix
	if userID != "" {
		prefix += userID + "/"
		if planID != "" {
			prefix += planID + "/"
		}
	}

	var entries []*Entry
	err := j.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			var e Entry
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			})
			if err != nil {
				// Keep scanning; one corrupt entry must not hide the rest.
				j.logger.Printf("WARNING: skipping unreadable journal entry %s: %v", strings.TrimPrefix(string(item.Key()), keyPrefix), err)
				continue
			}
			entries = append(entries, &e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan journal: %w", err)
	}
	return entries, nil
}

func (j *Journal) put(e *Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal journal entry: %w", err)
	}
	err = j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(e.key(), data)
	})
	if err != nil {
		return fmt.Errorf("failed to write journal entry %s: %w", e.ID, err)
	}
	return nil
}

func (j *Journal) runGC(interval time.Duration) {
	defer close(j.gcDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.stopGC:
			return
		case <-ticker.C:
			if err := j.db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				j.logger.Printf("Warning: journal value log GC failed: %v", err)
			}
		}
	}
}

// badgerLogger forwards Badger's internal logging to a *log.Logger.
// Info and debug chatter is dropped.
type badgerLogger struct {
	logger *log.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Printf("ERROR: badger: "+format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Printf("WARNING: badger: "+format, args...)
}

func (l *badgerLogger) Infof(string, ...interface{}) {}

func (l *badgerLogger) Debugf(string, ...interface{}) {}
