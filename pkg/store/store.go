// Package store keeps named tag expressions ("selectors").
package store

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lemonberrylabs/tagexpr/pkg/tagexpr"
)

// MaxNameLength is the longest selector name accepted.
const MaxNameLength = 128

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// Sentinel errors for selector operations.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidName   = errors.New("invalid selector name")
	ErrClosed        = errors.New("selector store closed")
)

// Selector is a named tag expression.
type Selector struct {
	Name        string    `json:"name"`
	Expression  string    `json:"expression"` // canonical form
	Source      string    `json:"source"`     // as submitted
	Description string    `json:"description,omitempty"`
	RevisionID  string    `json:"revisionId"`
	CreateTime  time.Time `json:"createTime"`
	UpdateTime  time.Time `json:"updateTime"`

	expr tagexpr.Expr
}

// Expr returns the parsed expression.
func (s *Selector) Expr() tagexpr.Expr {
	return s.expr
}

// Matches reports whether tags satisfy the selector's expression.
func (s *Selector) Matches(tags tagexpr.TagSet) bool {
	return tagexpr.EvaluateSet(s.expr, tags)
}

// Patch describes an update. Nil fields are left unchanged.
type Patch struct {
	Source      *string
	Description *string
}

// Store persists selectors. Implementations are safe for concurrent use
// and return copies, so callers may keep and modify what they get.
type Store interface {
	// Create stores a new selector. The source must parse.
	Create(name, source, description string) (*Selector, error)

	// Get returns a selector, or an error wrapping ErrNotFound.
	Get(name string) (*Selector, error)

	// List returns all selectors sorted by name.
	List() ([]*Selector, error)

	// Update applies patch and assigns a new revision ID.
	Update(name string, patch Patch) (*Selector, error)

	// Delete removes a selector.
	Delete(name string) error

	// Close releases resources. Later calls fail with ErrClosed.
	Close() error
}

// ValidateName checks a selector name.
func ValidateName(name string) error {
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w '%s': longer than %d characters", ErrInvalidName, name, MaxNameLength)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w '%s': must start with a lower case letter and contain only lower case letters, digits, '-' and '_'", ErrInvalidName, name)
	}
	return nil
}

// NameFromFile derives a selector name from a file name, e.g.
// "Smoke Tests.yaml" becomes "smoke-tests".
func NameFromFile(filename string) string {
	base := filename
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	base = strings.ToLower(strings.TrimSpace(base))
	return strings.Join(strings.Fields(base), "-")
}

func notFound(name string) error {
	return fmt.Errorf("selector '%s' %w", name, ErrNotFound)
}

func alreadyExists(name string) error {
	return fmt.Errorf("selector '%s' %w", name, ErrAlreadyExists)
}

// compile builds a selector revision from source.
func compile(name, source, description string, created, updated time.Time) (*Selector, error) {
	expr, err := tagexpr.Parse(source)
	if err != nil {
		return nil, err
	}
	return &Selector{
		Name:        name,
		Expression:  expr.String(),
		Source:      source,
		Description: description,
		RevisionID:  uuid.New().String(),
		CreateTime:  created,
		UpdateTime:  updated,
		expr:        expr,
	}, nil
}

func (s *Selector) clone() *Selector {
	c := *s
	return &c
}

// MemoryStore is a thread-safe in-memory Store.
type MemoryStore struct {
	mu        sync.RWMutex
	selectors map[string]*Selector
	closed    bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{selectors: make(map[string]*Selector)}
}

// Create implements Store.
func (m *MemoryStore) Create(name, source, description string) (*Selector, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	if _, exists := m.selectors[name]; exists {
		return nil, alreadyExists(name)
	}

	now := time.Now()
	sel, err := compile(name, source, description, now, now)
	if err != nil {
		return nil, err
	}
	m.selectors[name] = sel
	return sel.clone(), nil
}

// Get implements Store.
func (m *MemoryStore) Get(name string) (*Selector, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	sel, ok := m.selectors[name]
	if !ok {
		return nil, notFound(name)
	}
	return sel.clone(), nil
}

// List implements Store.
func (m *MemoryStore) List() ([]*Selector, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	result := make([]*Selector, 0, len(m.selectors))
	for _, sel := range m.selectors {
		result = append(result, sel.clone())
	}
	slices.SortFunc(result, func(a, b *Selector) int {
		return strings.Compare(a.Name, b.Name)
	})
	return result, nil
}

// Update implements Store.
func (m *MemoryStore) Update(name string, patch Patch) (*Selector, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	old, ok := m.selectors[name]
	if !ok {
		return nil, notFound(name)
	}

	source, description := old.Source, old.Description
	if patch.Source != nil {
		source = *patch.Source
	}
	if patch.Description != nil {
		description = *patch.Description
	}
	sel, err := compile(name, source, description, old.CreateTime, time.Now())
	if err != nil {
		return nil, err
	}
	m.selectors[name] = sel
	return sel.clone(), nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if _, ok := m.selectors[name]; !ok {
		return notFound(name)
	}
	delete(m.selectors, name)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
