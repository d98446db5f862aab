package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/oklog/ulid/v2"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLite is a Store backed by an embedded SQLite database in WAL mode.
// Every document is one row keyed by its full path.
type SQLite struct {
	conn *sql.DB
	q    querier
	path string
	inTx bool
}

var (
	_ Store      = (*SQLite)(nil)
	_ Transactor = (*SQLite)(nil)
)

// Open opens (creating if needed) the document database at path and
// initializes its schema.
//
// The caller MUST call Close() when done.
func Open(path string) (*SQLite, error) {
	return OpenContext(context.Background(), path)
}

// OpenContext is Open with context support.
func OpenContext(ctx context.Context, path string) (*SQLite, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Pragmas go in the DSN so that every pooled connection gets them.
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)&_pragma=synchronous(normal)", path)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &SQLite{conn: conn, q: conn, path: path}
	if err := s.initSchema(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// RawDB returns the underlying sql.DB connection.
func (s *SQLite) RawDB() *sql.DB {
	return s.conn
}

// Close checkpoints the WAL and closes the database.
func (s *SQLite) Close() error {
	if s.inTx || s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	s.conn = nil
	return nil
}

func (s *SQLite) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		path TEXT PRIMARY KEY,
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		data TEXT NOT NULL,  -- JSON object
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);
	`
	if _, err := s.q.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Create stores fields under a new ULID in collection.
func (s *SQLite) Create(ctx context.Context, collection Path, fields Fields) (string, error) {
	if err := collection.validate(false); err != nil {
		return "", err
	}
	data, err := marshalFields(fields)
	if err != nil {
		return "", err
	}

	id := ulid.Make().String()
	now := timestamp()
	query := `
	INSERT INTO documents (path, collection, id, data, version, created_at, updated_at)
	VALUES (?, ?, ?, ?, 1, ?, ?)
	`
	if _, err := s.q.ExecContext(ctx, query, string(collection.Doc(id)), string(collection), id, data, now, now); err != nil {
		return "", fmt.Errorf("failed to create document in %s: %w", collection, err)
	}
	return id, nil
}

// Set creates the document or replaces its whole body, keeping its
// creation time.
func (s *SQLite) Set(ctx context.Context, path Path, fields Fields) error {
	if err := path.validate(true); err != nil {
		return err
	}
	data, err := marshalFields(fields)
	if err != nil {
		return err
	}

	now := timestamp()
	query := `
	INSERT INTO documents (path, collection, id, data, version, created_at, updated_at)
	VALUES (?, ?, ?, ?, 1, ?, ?)
	ON CONFLICT(path) DO UPDATE SET
		data = excluded.data,
		version = documents.version + 1,
		updated_at = excluded.updated_at
	`
	if _, err := s.q.ExecContext(ctx, query, string(path), string(path.Parent()), path.ID(), data, now, now); err != nil {
		return fmt.Errorf("failed to set document %s: %w", path, err)
	}
	return nil
}

// Get reads one document.
func (s *SQLite) Get(ctx context.Context, path Path) (*Document, error) {
	if err := path.validate(true); err != nil {
		return nil, err
	}

	query := `
	SELECT path, id, data, version, created_at, updated_at
	FROM documents
	WHERE path = ?
	`
	doc, err := scanDocument(s.q.QueryRowContext(ctx, query, string(path)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s: %w", path, err)
	}
	return doc, nil
}

// List returns every document directly inside collection that matches all
// filters.
func (s *SQLite) List(ctx context.Context, collection Path, filters ...Filter) ([]*Document, error) {
	if err := collection.validate(false); err != nil {
		return nil, err
	}

	conditions := []string{"collection = ?"}
	args := []any{string(collection)}

	for _, f := range filters {
		jsonPath := "$." + f.Field
		switch f.Op {
		case OpEq:
			conditions = append(conditions, "json_extract(data, ?) = ?")
			args = append(args, jsonPath, f.Value)
		case OpArrayContains:
			conditions = append(conditions, "EXISTS (SELECT 1 FROM json_each(data, ?) WHERE json_each.value = ?)")
			args = append(args, jsonPath, f.Value)
		default:
			return nil, fmt.Errorf("unsupported filter operator %q", f.Op)
		}
	}

	query := `
	SELECT path, id, data, version, created_at, updated_at
	FROM documents
	WHERE ` + strings.Join(conditions, " AND ")

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", collection, err)
	}
	return docs, nil
}

// Update merges fields into the document with JSON merge-patch semantics.
func (s *SQLite) Update(ctx context.Context, path Path, fields Fields) error {
	if err := path.validate(true); err != nil {
		return err
	}
	data, err := marshalFields(fields)
	if err != nil {
		return err
	}

	query := `
	UPDATE documents
	SET data = json_patch(data, ?), version = version + 1, updated_at = ?
	WHERE path = ?
	`
	res, err := s.q.ExecContext(ctx, query, data, timestamp(), string(path))
	if err != nil {
		return fmt.Errorf("failed to update document %s: %w", path, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update document %s: %w", path, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return nil
}

// UpdateIfVersion applies Update only while the stored version equals
// version. On mismatch it returns a *ConflictError carrying the current
// version.
func (s *SQLite) UpdateIfVersion(ctx context.Context, path Path, fields Fields, version int64) error {
	if err := path.validate(true); err != nil {
		return err
	}
	data, err := marshalFields(fields)
	if err != nil {
		return err
	}

	query := `
	UPDATE documents
	SET data = json_patch(data, ?), version = version + 1, updated_at = ?
	WHERE path = ? AND version = ?
	`
	res, err := s.q.ExecContext(ctx, query, data, timestamp(), string(path), version)
	if err != nil {
		return fmt.Errorf("failed to update document %s: %w", path, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update document %s: %w", path, err)
	}
	if n == 1 {
		return nil
	}

	var current int64
	err = s.q.QueryRowContext(ctx, "SELECT version FROM documents WHERE path = ?", string(path)).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return fmt.Errorf("failed to read version of %s: %w", path, err)
	}
	return &ConflictError{Path: path, Expected: version, Current: current}
}

// Delete removes the document. Deleting a missing document is not an error.
func (s *SQLite) Delete(ctx context.Context, path Path) error {
	if err := path.validate(true); err != nil {
		return err
	}
	if _, err := s.q.ExecContext(ctx, "DELETE FROM documents WHERE path = ?", string(path)); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", path, err)
	}
	return nil
}

// RunInTx runs fn against a Store bound to one SQLite transaction. The
// transaction commits only if fn returns nil.
func (s *SQLite) RunInTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&SQLite{conn: s.conn, q: tx, path: s.path, inTx: true}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Count returns the number of documents whose path starts with prefix.
func (s *SQLite) Count(ctx context.Context, prefix Path) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM documents WHERE path = ? OR path LIKE ? ESCAPE '\\'",
		string(prefix), escapeLike(string(prefix))+"/%").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents under %s: %w", prefix, err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var doc Document
	var path, data, createdAt, updatedAt string

	if err := row.Scan(&path, &doc.ID, &data, &doc.Version, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	doc.Path = Path(path)
	doc.raw = []byte(data)
	if err := json.Unmarshal(doc.raw, &doc.Data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document %s: %w", path, err)
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		doc.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		doc.UpdatedAt = t
	}
	return &doc, nil
}

func marshalFields(fields Fields) (string, error) {
	if fields == nil {
		fields = Fields{}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to marshal fields: %w", err)
	}
	return string(data), nil
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
