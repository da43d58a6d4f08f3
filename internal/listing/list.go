// Package listing keeps the rows of an admin table in memory and applies row
// actions optimistically, restoring the previous rows when the backend refuses.
package listing

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/backoffice/internal/model"
)

var listLogger zerolog.Logger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	listLogger = l
}

var ErrNotLoaded = errors.New("list not loaded")

type List[T any] struct {
	mu sync.Mutex

	name     string
	id       func(T) string
	items    []T
	loaded   bool
	loadedAt time.Time
	// version is bumped by every change so a rollback can tell whether
	// someone else touched the rows in the meantime.
	version uint64
}

func New[T any](name string, id func(T) string) *List[T] {
	return &List[T]{name: name, id: id}
}

// Records is a List of backend records keyed by their id.
func Records(name string) *List[model.Record] {
	return New(name, model.Record.ID)
}

func (l *List[T]) Name() string {
	return l.name
}

// Items returns a copy of the current rows.
func (l *List[T]) Items() []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.items)
}

func (l *List[T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

func (l *List[T]) Loaded() (bool, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded, l.loadedAt
}

// Find returns the row with the given id.
func (l *List[T]) Find(id string) (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i := l.indexOf(id); i >= 0 {
		return l.items[i], true
	}
	var zero T
	return zero, false
}

func (l *List[T]) indexOf(id string) int {
	return slices.IndexFunc(l.items, func(it T) bool { return l.id(it) == id })
}

// Load replaces the rows with the result of fetch. The previous rows are kept
// when fetch fails.
func (l *List[T]) Load(ctx context.Context, fetch func(context.Context) ([]T, error)) error {
	items, err := fetch(ctx)
	if err != nil {
		listLogger.Warn().Err(err).Str("list", l.name).Msg("Failed to load list")
		return err
	}
	if items == nil {
		items = []T{}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = items
	l.loaded = true
	l.loadedAt = time.Now()
	l.version++
	return nil
}

// Remove drops the row id immediately, then calls commit. If commit fails the
// rows are restored and its error is returned.
func (l *List[T]) Remove(ctx context.Context, id string, commit func(context.Context, string) error) error {
	l.mu.Lock()
	if !l.loaded {
		l.mu.Unlock()
		return ErrNotLoaded
	}
	i := l.indexOf(id)
	if i < 0 {
		l.mu.Unlock()
		return fmt.Errorf("%s %s: %w", l.name, id, model.ErrNotFound)
	}
	before := slices.Clone(l.items)
	removed := l.items[i]
	l.items = slices.Delete(slices.Clone(l.items), i, i+1)
	l.version++
	version := l.version
	l.mu.Unlock()

	if err := commit(ctx, id); err != nil {
		l.rollback(version, before, i, removed, true)
		return err
	}
	return nil
}

// Update replaces the row id with change(row) immediately, then calls commit.
// If commit fails the previous row is restored and its error is returned.
func (l *List[T]) Update(ctx context.Context, id string, change func(T) T, commit func(context.Context, string) error) error {
	l.mu.Lock()
	if !l.loaded {
		l.mu.Unlock()
		return ErrNotLoaded
	}
	i := l.indexOf(id)
	if i < 0 {
		l.mu.Unlock()
		return fmt.Errorf("%s %s: %w", l.name, id, model.ErrNotFound)
	}
	before := slices.Clone(l.items)
	previous := l.items[i]
	l.items = slices.Clone(l.items)
	l.items[i] = change(previous)
	l.version++
	version := l.version
	l.mu.Unlock()

	if err := commit(ctx, id); err != nil {
		l.rollback(version, before, i, previous, false)
		return err
	}
	return nil
}

func (l *List[T]) rollback(version uint64, before []T, index int, row T, removed bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.version++
	if l.version-1 == version {
		l.items = before
		listLogger.Debug().Str("list", l.name).Str("id", l.id(row)).Msg("Rolled back list")
		return
	}

	// Other changes landed while the call was in flight; restore only this row.
	id := l.id(row)
	l.items = slices.Clone(l.items)
	if i := l.indexOf(id); i >= 0 {
		l.items[i] = row
		return
	}
	if removed {
		l.items = slices.Insert(l.items, min(index, len(l.items)), row)
	}
}
