package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/models"
)

// DBFileName is the vault database file inside a local vault directory.
const DBFileName = "vault.db"

const localSchemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	id       TEXT PRIMARY KEY,
	metadata TEXT NOT NULL DEFAULT '{}',
	body     TEXT NOT NULL DEFAULT '',
	version  TEXT NOT NULL DEFAULT 'v1'
);

CREATE TABLE IF NOT EXISTS structure (
	doc_id    TEXT PRIMARY KEY,
	parent_id TEXT NOT NULL DEFAULT '',
	ord       INTEGER NOT NULL DEFAULT 0
);
`

// Local implements Backend on a per-vault SQLite database. Writing
// metadata and body inside one transaction gives the no-torn-write
// guarantee without temp-file juggling.
type Local struct {
	defaultPath string

	mu  sync.Mutex
	dbs map[string]*sql.DB
}

// NewLocal creates a Local backend. defaultPath is the vault directory
// offered by ChooseLocation; it may be empty.
func NewLocal(defaultPath string) *Local {
	return &Local{
		defaultPath: defaultPath,
		dbs:         make(map[string]*sql.DB),
	}
}

// ChooseLocation returns the configured vault directory as an absolute
// path, or "" when none is configured.
func (l *Local) ChooseLocation(_ context.Context) (string, error) {
	if l.defaultPath == "" {
		return "", nil
	}
	abs, err := filepath.Abs(l.defaultPath)
	if err != nil {
		return "", fmt.Errorf("storage: resolve vault path: %w: %v", apperr.ErrIO, err)
	}
	return abs, nil
}

// Initialize creates the vault directory and database schema.
func (l *Local) Initialize(ctx context.Context, location string) error {
	if err := os.MkdirAll(location, 0o755); err != nil {
		return classifyOSErr("init vault dir", err)
	}
	_, err := l.open(location)
	return err
}

// open returns the cached connection for location, opening it on first
// use with the schema applied.
func (l *Local) open(location string) (*sql.DB, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if db, ok := l.dbs[location]; ok {
		return db, nil
	}

	info, err := os.Stat(location)
	if err != nil {
		return nil, classifyOSErr("stat vault dir", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: vault location is not a directory: %s: %w", location, apperr.ErrIO)
	}

	dsn := filepath.Join(location, DBFileName) + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open vault db: %w: %v", apperr.ErrIO, err)
	}
	// A single pooled connection keeps data_version meaningful: the
	// pragma only moves when a *different* connection commits.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, classifyOSErr("ping vault db", err)
	}
	if _, err := db.Exec(localSchemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: apply schema: %w: %v", apperr.ErrIO, err)
	}

	l.dbs[location] = db
	return db, nil
}

// ListIDs returns every document id in the vault.
func (l *Local) ListIDs(ctx context.Context, location string) ([]string, error) {
	db, err := l.open(location)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT id FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("storage: list ids: %w: %v", apperr.ErrIO, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("storage: list ids: %w: %v", apperr.ErrIO, err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ReadAll returns every document with its body. A row whose metadata
// column fails to parse is kept with zero metadata; one corrupt record
// must not make the vault unloadable.
func (l *Local) ReadAll(ctx context.Context, location string) ([]models.Document, error) {
	db, err := l.open(location)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT id, metadata, body, version FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("storage: read all: %w: %v", apperr.ErrIO, err)
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		var doc models.Document
		var metaJSON string
		if err := rows.Scan(&doc.ID, &metaJSON, &doc.Body, &doc.Version); err != nil {
			return nil, fmt.Errorf("storage: read all: %w: %v", apperr.ErrIO, err)
		}
		_ = json.Unmarshal([]byte(metaJSON), &doc.Metadata)
		out = append(out, doc)
	}
	return out, rows.Err()
}

// Read returns one document.
func (l *Local) Read(ctx context.Context, location, id string) (*models.Document, error) {
	db, err := l.open(location)
	if err != nil {
		return nil, err
	}
	doc := models.Document{ID: id}
	var metaJSON string
	err = db.QueryRowContext(ctx,
		`SELECT metadata, body, version FROM documents WHERE id = ?`, id).
		Scan(&metaJSON, &doc.Body, &doc.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("storage: read %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w: %v", id, apperr.ErrIO, err)
	}
	_ = json.Unmarshal([]byte(metaJSON), &doc.Metadata)
	return &doc, nil
}

// Write upserts metadata and body atomically.
func (l *Local) Write(ctx context.Context, location, id string, meta models.Metadata, body string) error {
	db, err := l.open(location)
	if err != nil {
		return err
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("storage: marshal metadata: %w: %v", apperr.ErrIO, err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO documents (id, metadata, body, version)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			metadata = excluded.metadata,
			body     = excluded.body,
			version  = excluded.version
	`, id, string(metaJSON), body, models.SchemaVersion)
	if err != nil {
		return fmt.Errorf("storage: write %s: %w: %v", id, apperr.ErrIO, err)
	}
	return nil
}

// Create allocates a new empty document.
func (l *Local) Create(ctx context.Context, location, title string) (*models.Document, error) {
	now := time.Now().UTC()
	doc := &models.Document{
		ID: uuid.NewString(),
		Metadata: models.Metadata{
			Title:    title,
			Created:  now,
			Modified: now,
			Type:     models.TypeDocument,
		},
		Version: models.SchemaVersion,
	}
	if err := l.Write(ctx, location, doc.ID, doc.Metadata, doc.Body); err != nil {
		return nil, err
	}
	return doc, nil
}

// Delete removes the document and its structure entry in one
// transaction.
func (l *Local) Delete(ctx context.Context, location, id string) error {
	db, err := l.open(location)
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w: %v", apperr.ErrIO, err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("storage: delete %s: %w: %v", id, apperr.ErrIO, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("storage: delete %s: %w", id, apperr.ErrNotFound)
	}
	_, _ = tx.ExecContext(ctx, `DELETE FROM structure WHERE doc_id = ?`, id)

	return tx.Commit()
}

// ReadStructure loads the persisted hierarchy.
func (l *Local) ReadStructure(ctx context.Context, location string) (models.VaultStructure, error) {
	db, err := l.open(location)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT doc_id, parent_id, ord FROM structure`)
	if err != nil {
		return nil, fmt.Errorf("storage: read structure: %w: %v", apperr.ErrIO, err)
	}
	defer rows.Close()

	out := make(models.VaultStructure)
	for rows.Next() {
		var id string
		var entry models.StructureEntry
		if err := rows.Scan(&id, &entry.ParentID, &entry.Order); err != nil {
			return nil, fmt.Errorf("storage: read structure: %w: %v", apperr.ErrIO, err)
		}
		out[id] = entry
	}
	return out, rows.Err()
}

// WriteStructure replaces the persisted hierarchy wholesale.
func (l *Local) WriteStructure(ctx context.Context, location string, s models.VaultStructure) error {
	db, err := l.open(location)
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w: %v", apperr.ErrIO, err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM structure`); err != nil {
		return fmt.Errorf("storage: clear structure: %w: %v", apperr.ErrIO, err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO structure (doc_id, parent_id, ord) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage: prepare structure insert: %w: %v", apperr.ErrIO, err)
	}
	defer stmt.Close()
	for id, entry := range s {
		if _, err := stmt.ExecContext(ctx, id, entry.ParentID, entry.Order); err != nil {
			return fmt.Errorf("storage: insert structure row: %w: %v", apperr.ErrIO, err)
		}
	}
	return tx.Commit()
}

// DataVersion returns SQLite's data_version pragma for the vault. It
// changes only when a different connection commits, which lets the
// watcher tell external writers apart from our own.
func (l *Local) DataVersion(ctx context.Context, location string) (int64, error) {
	db, err := l.open(location)
	if err != nil {
		return 0, err
	}
	var v int64
	if err := db.QueryRowContext(ctx, `PRAGMA data_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("storage: data version: %w: %v", apperr.ErrIO, err)
	}
	return v, nil
}

// Close closes every open vault connection.
func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var firstErr error
	for loc, db := range l.dbs {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(l.dbs, loc)
	}
	return firstErr
}

func classifyOSErr(op string, err error) error {
	if errors.Is(err, os.ErrPermission) {
		return fmt.Errorf("storage: %s: %w", op, apperr.ErrPermissionDenied)
	}
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: %s: %w", op, apperr.ErrNotFound)
	}
	return fmt.Errorf("storage: %s: %w: %v", op, apperr.ErrIO, err)
}
