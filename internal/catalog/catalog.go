// Package catalog manages the shared exercise catalog that day exercises
// are copied from.
package catalog

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"slices"
	"strings"

	"github.com/Guan-Eric/FitLife/internal/plan"
	"github.com/Guan-Eric/FitLife/internal/store"
	"github.com/Guan-Eric/FitLife/internal/sync"
)

// maxLineSize bounds one JSONL record. Catalog entries carry their full
// instructions, so the bufio default is too small.
const maxLineSize = 1 << 20

// Entry is one catalog record in an import file.
type Entry struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Cardio           *bool    `json:"cardio,omitempty"`
	Category         string   `json:"category"`
	Equipment        string   `json:"equipment"`
	Level            string   `json:"level"`
	Instructions     []string `json:"instructions"`
	PrimaryMuscles   []string `json:"primaryMuscles"`
	SecondaryMuscles []string `json:"secondaryMuscles"`
}

// Exercise converts the entry to a template exercise with no sets. A
// missing id is derived from the name, muscles are lowercased, and cardio
// defaults to whether the category is "cardio".
func (e Entry) Exercise() (plan.Exercise, error) {
	name := strings.TrimSpace(e.Name)
	if name == "" {
		return plan.Exercise{}, fmt.Errorf("name is required")
	}
	id := e.ID
	if id == "" {
		id = ID(name)
	}
	if strings.ContainsRune(id, '/') {
		return plan.Exercise{}, fmt.Errorf("id %q must not contain '/'", id)
	}
	cardio := strings.EqualFold(e.Category, "cardio")
	if e.Cardio != nil {
		cardio = *e.Cardio
	}
	return plan.Exercise{
		ID:               id,
		Name:             name,
		Cardio:           cardio,
		Category:         e.Category,
		Equipment:        e.Equipment,
		Level:            e.Level,
		Instructions:     e.Instructions,
		PrimaryMuscles:   lower(e.PrimaryMuscles),
		SecondaryMuscles: lower(e.SecondaryMuscles),
		Sets:             []plan.Set{},
	}, nil
}

// ID derives a catalog id from an exercise name: "Barbell Squat" becomes
// "Barbell_Squat". Characters that cannot appear in a path segment are
// dropped.
func ID(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r == ' ' || r == '-':
			b.WriteByte('_')
		case r == '/' || r == '\\':
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func lower(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}

// ImportResult summarizes an import.
type ImportResult struct {
	Imported int
	Skipped  int
	Errors   []string
}

// Catalog reads and writes catalog documents under Exercises/.
type Catalog struct {
	store  store.Store
	logger *log.Logger
}

// New creates a Catalog over s.
func New(s store.Store, logger *log.Logger) *Catalog {
	if logger == nil {
		logger = log.New(os.Stderr, "[catalog] ", log.LstdFlags)
	}
	return &Catalog{store: s, logger: logger}
}

// ImportFile imports a JSONL file, one entry per line.
func (c *Catalog) ImportFile(ctx context.Context, path string) (*ImportResult, error) {
	// #nosec G304 - controlled path from CLI
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog file: %w", err)
	}
	defer f.Close()
	return c.Import(ctx, f)
}

// Import reads JSONL entries from r and writes each one to Exercises/{id},
// replacing any entry with the same id. Bad lines are recorded in the
// result and skipped; store failures abort the import.
func (c *Catalog) Import(ctx context.Context, r io.Reader) (*ImportResult, error) {
	result := &ImportResult{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var entry Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: invalid JSON: %v", lineNum, err))
			continue
		}
		ex, err := entry.Exercise()
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", lineNum, err))
			continue
		}

		if err := c.Put(ctx, ex); err != nil {
			return result, err
		}
		result.Imported++
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("failed to read catalog at line %d: %w", lineNum+1, err)
	}

	if result.Skipped > 0 {
		c.logger.Printf("Warning: skipped %d catalog entries", result.Skipped)
	}
	return result, nil
}

// Put writes one template exercise.
func (c *Catalog) Put(ctx context.Context, ex plan.Exercise) error {
	ex.Sets = []plan.Set{}
	data, err := json.Marshal(ex)
	if err != nil {
		return fmt.Errorf("failed to marshal catalog entry %s: %w", ex.ID, err)
	}
	var fields store.Fields
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("failed to marshal catalog entry %s: %w", ex.ID, err)
	}
	if err := c.store.Set(ctx, store.CatalogDoc(ex.ID), fields); err != nil {
		return fmt.Errorf("failed to write catalog entry %s: %w", ex.ID, err)
	}
	return nil
}

// Get reads one template. A missing id matches store.ErrNotFound.
func (c *Catalog) Get(ctx context.Context, id string) (plan.Exercise, error) {
	doc, err := c.store.Get(ctx, store.CatalogDoc(id))
	if err != nil {
		return plan.Exercise{}, fmt.Errorf("failed to get catalog entry %s: %w", id, err)
	}
	return sync.DecodeExercise(doc)
}

// ByMuscle returns every template whose primary muscles include muscle,
// compared case-insensitively, sorted by name.
func (c *Catalog) ByMuscle(ctx context.Context, muscle string) ([]plan.Exercise, error) {
	key := strings.ToLower(strings.TrimSpace(muscle))
	return c.list(ctx, store.ArrayContains("primaryMuscles", key))
}

// List returns the whole catalog sorted by name.
func (c *Catalog) List(ctx context.Context) ([]plan.Exercise, error) {
	return c.list(ctx)
}

func (c *Catalog) list(ctx context.Context, filters ...store.Filter) ([]plan.Exercise, error) {
	docs, err := c.store.List(ctx, store.CatalogCol(), filters...)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}
	out := make([]plan.Exercise, 0, len(docs))
	for _, d := range docs {
		ex, err := sync.DecodeExercise(d)
		if err != nil {
			c.logger.Printf("WARNING: skipping unreadable catalog entry %s: %v", d.Path, err)
			continue
		}
		out = append(out, ex)
	}
	sortByName(out)
	return out, nil
}

func sortByName(exs []plan.Exercise) {
	slices.SortFunc(exs, func(a, b plan.Exercise) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
