package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lemonberrylabs/tagexpr/pkg/tagexpr"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists selectors to SQLite.
// Parsed expressions are cached per revision.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool

	cacheMu sync.Mutex
	cache   map[string]tagexpr.Expr // by revision ID
}

// NewSQLiteStore opens (or creates) a selector database.
// The path is a file path or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS selectors (
			name TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			expression TEXT NOT NULL,
			description TEXT NOT NULL,
			revision_id TEXT NOT NULL,
			create_time TEXT NOT NULL,
			update_time TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &SQLiteStore{db: db, cache: make(map[string]tagexpr.Expr)}, nil
}

// Create implements Store.
func (s *SQLiteStore) Create(name, source, description string) (*Selector, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if _, err := s.get(name); err == nil {
		return nil, alreadyExists(name)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	sel, err := compile(name, source, description, now, now)
	if err != nil {
		return nil, err
	}

	_, err = s.db.Exec(`
		INSERT INTO selectors (name, source, expression, description, revision_id, create_time, update_time)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, sel.Name, sel.Source, sel.Expression, sel.Description, sel.RevisionID,
		formatTime(sel.CreateTime), formatTime(sel.UpdateTime))
	if err != nil {
		return nil, fmt.Errorf("insert selector: %w", err)
	}
	s.remember(sel)
	return sel.clone(), nil
}

// Get implements Store.
func (s *SQLiteStore) Get(name string) (*Selector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	return s.get(name)
}

func (s *SQLiteStore) get(name string) (*Selector, error) {
	row := s.db.QueryRow(`
		SELECT name, source, expression, description, revision_id, create_time, update_time
		FROM selectors
		WHERE name = ?
	`, name)
	sel, err := s.scan(row)
	if err == sql.ErrNoRows {
		return nil, notFound(name)
	}
	if err != nil {
		return nil, fmt.Errorf("load selector: %w", err)
	}
	return sel, nil
}

// List implements Store.
func (s *SQLiteStore) List() ([]*Selector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.Query(`
		SELECT name, source, expression, description, revision_id, create_time, update_time
		FROM selectors
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list selectors: %w", err)
	}
	defer rows.Close()

	result := []*Selector{}
	for rows.Next() {
		sel, err := s.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan selector: %w", err)
		}
		result = append(result, sel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate selectors: %w", err)
	}
	return result, nil
}

// Update implements Store.
func (s *SQLiteStore) Update(name string, patch Patch) (*Selector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	old, err := s.get(name)
	if err != nil {
		return nil, err
	}

	source, description := old.Source, old.Description
	if patch.Source != nil {
		source = *patch.Source
	}
	if patch.Description != nil {
		description = *patch.Description
	}
	sel, err := compile(name, source, description, old.CreateTime, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	_, err = s.db.Exec(`
		UPDATE selectors
		SET source = ?, expression = ?, description = ?, revision_id = ?, update_time = ?
		WHERE name = ?
	`, sel.Source, sel.Expression, sel.Description, sel.RevisionID, formatTime(sel.UpdateTime), name)
	if err != nil {
		return nil, fmt.Errorf("update selector: %w", err)
	}
	s.forget(old.RevisionID)
	s.remember(sel)
	return sel.clone(), nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	old, err := s.get(name)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(`DELETE FROM selectors WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete selector: %w", err)
	}
	s.forget(old.RevisionID)
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

// scan reads one row and attaches the parsed expression.
func (s *SQLiteStore) scan(row scanner) (*Selector, error) {
	var sel Selector
	var created, updated string
	if err := row.Scan(&sel.Name, &sel.Source, &sel.Expression, &sel.Description,
		&sel.RevisionID, &created, &updated); err != nil {
		return nil, err
	}
	sel.CreateTime, _ = time.Parse(time.RFC3339Nano, created)
	sel.UpdateTime, _ = time.Parse(time.RFC3339Nano, updated)

	s.cacheMu.Lock()
	expr, ok := s.cache[sel.RevisionID]
	s.cacheMu.Unlock()
	if !ok {
		var err error
		if expr, err = tagexpr.Parse(sel.Source); err != nil {
			return nil, fmt.Errorf("stored selector '%s': %w", sel.Name, err)
		}
		s.cacheMu.Lock()
		s.cache[sel.RevisionID] = expr
		s.cacheMu.Unlock()
	}
	sel.expr = expr
	return &sel, nil
}

func (s *SQLiteStore) remember(sel *Selector) {
	s.cacheMu.Lock()
	s.cache[sel.RevisionID] = sel.expr
	s.cacheMu.Unlock()
}

func (s *SQLiteStore) forget(revisionID string) {
	s.cacheMu.Lock()
	delete(s.cache, revisionID)
	s.cacheMu.Unlock()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
