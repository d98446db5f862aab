package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrVersionConflict is matched by every *ConflictError.
	ErrVersionConflict = errors.New("document version conflict")

	// ErrInvalidPath is returned for malformed document or collection paths.
	ErrInvalidPath = errors.New("invalid path")
)

// ConflictError reports a conditional write whose expected version did not
// match the stored one.
type ConflictError struct {
	Path     Path
	Expected int64
	Current  int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("version conflict on %s: expected %d, current %d", e.Path, e.Expected, e.Current)
}

// Is lets errors.Is(err, ErrVersionConflict) match.
func (e *ConflictError) Is(target error) bool {
	return target == ErrVersionConflict
}

// Fields is a partial or complete document body.
type Fields map[string]any

// Document is one stored document with its bookkeeping columns.
type Document struct {
	Path      Path
	ID        string
	Data      Fields
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time

	raw []byte
}

// Decode unmarshals the document body into v.
func (d *Document) Decode(v any) error {
	if err := json.Unmarshal(d.raw, v); err != nil {
		return fmt.Errorf("failed to decode document %s: %w", d.Path, err)
	}
	return nil
}

// FilterOp selects how a Filter compares a field.
type FilterOp string

const (
	OpEq            FilterOp = "=="
	OpArrayContains FilterOp = "array-contains"
)

// Filter restricts a List call.
type Filter struct {
	Field string
	Op    FilterOp
	Value any
}

// Eq matches documents whose field equals v.
func Eq(field string, v any) Filter {
	return Filter{Field: field, Op: OpEq, Value: v}
}

// ArrayContains matches documents whose array field contains v.
func ArrayContains(field string, v any) Filter {
	return Filter{Field: field, Op: OpArrayContains, Value: v}
}

// Store is a hierarchical document store. Each call is atomic for the one
// document it touches; sequences of calls are not.
type Store interface {
	// Create stores fields under a new generated id in collection.
	Create(ctx context.Context, collection Path, fields Fields) (string, error)
	// Set creates or fully replaces the document at path.
	Set(ctx context.Context, path Path, fields Fields) error
	// Get returns ErrNotFound when the document is absent.
	Get(ctx context.Context, path Path) (*Document, error)
	// List returns the documents of collection in no particular order.
	List(ctx context.Context, collection Path, filters ...Filter) ([]*Document, error)
	// Update merges fields into an existing document. A nil value removes
	// the field.
	Update(ctx context.Context, path Path, fields Fields) error
	// UpdateIfVersion is Update guarded by the document version.
	UpdateIfVersion(ctx context.Context, path Path, fields Fields, version int64) error
	// Delete removes the document. Sub-collections are left in place.
	Delete(ctx context.Context, path Path) error
}

// Transactor is implemented by stores that can run several writes
// atomically.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(tx Store) error) error
}
