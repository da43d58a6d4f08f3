// Package repository keeps snapshots of open drafts so an interrupted edit can
// be resumed after a restart or an expired session.
package repository

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/backoffice/internal/config"
	"github.com/debemdeboas/backoffice/internal/db"
	"github.com/debemdeboas/backoffice/internal/model"
	"github.com/debemdeboas/backoffice/internal/util/compression"
)

var repoLogger zerolog.Logger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	repoLogger = l
}

// Snapshot is a serialised draft. Content is opaque to the store.
type Snapshot struct {
	ID         string
	Owner      model.UserID
	Resource   string
	RecordID   string
	Title      string
	Content    []byte
	Hash       string
	ModifiedAt time.Time
}

type DraftStore interface {
	// SaveDraft stores s and reports whether anything changed.
	SaveDraft(s *Snapshot) (bool, error)
	GetDraft(id string) (*Snapshot, error)
	// ListDrafts returns the owner's snapshots, newest first, without content.
	ListDrafts(owner model.UserID) ([]Snapshot, error)
	DeleteDraft(id string) error
	PruneDrafts(before time.Time) (int, error)
}

// New returns the store selected by cfg. database is only used by the sqlite store.
func New(cfg config.DraftsConfig, database db.DB) (DraftStore, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return NewMemoryDraftStore(), nil
	case config.StoreSQLite:
		c, err := compression.ByName(cfg.Compression)
		if err != nil {
			return nil, err
		}
		return NewDBDraftStore(database, c), nil
	default:
		return nil, fmt.Errorf("unknown drafts store %q", cfg.Store)
	}
}

func notFound(id string) error {
	return fmt.Errorf("draft %s: %w", id, model.ErrNotFound)
}
