package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/debemdeboas/backoffice/internal/db"
	"github.com/debemdeboas/backoffice/internal/model"
	"github.com/debemdeboas/backoffice/internal/util"
	"github.com/debemdeboas/backoffice/internal/util/compression"
)

type DBDraftStore struct { // implements DraftStore
	db         db.DB
	compressor compression.Compressor
}

func NewDBDraftStore(db db.DB, compressor compression.Compressor) *DBDraftStore {
	return &DBDraftStore{
		db:         db,
		compressor: compressor,
	}
}

func (r *DBDraftStore) SaveDraft(s *Snapshot) (bool, error) {
	compressed, err := r.compressor.Compress(s.Content)
	if err != nil {
		return false, fmt.Errorf("error compressing draft: %w", err)
	}
	hash := util.ContentHash(compressed)

	var prevHash, prevTitle string
	err = r.db.QueryRow(`SELECT content_hash, title FROM draft_snapshots WHERE id = ?`, s.ID).Scan(&prevHash, &prevTitle)
	switch {
	case err == nil && prevHash == hash && prevTitle == s.Title:
		s.Hash = hash
		repoLogger.Debug().Str("draft_id", s.ID).Msg("Draft unchanged, skipping save")
		return false, nil
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return false, fmt.Errorf("error reading draft hash: %w", err)
	}

	now := time.Now().UTC()
	res, err := r.db.Exec(
		`INSERT INTO draft_snapshots (id, resource, record_id, title, content, content_hash, user_id, modified_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title = excluded.title,
		   content = excluded.content,
		   content_hash = excluded.content_hash,
		   modified_at = excluded.modified_at`,
		s.ID, s.Resource, s.RecordID, s.Title, compressed, hash, string(s.Owner), now,
	)
	if err != nil {
		return false, fmt.Errorf("error saving draft: %w", err)
	}

	s.Hash = hash
	s.ModifiedAt = now
	repoLogger.Debug().Interface("result", res).Str("draft_id", s.ID).Msg("Draft saved")
	return true, nil
}

func (r *DBDraftStore) GetDraft(id string) (*Snapshot, error) {
	var s Snapshot
	var owner string
	var compressed []byte
	err := r.db.QueryRow(
		`SELECT id, resource, record_id, title, content, content_hash, user_id, modified_at FROM draft_snapshots WHERE id = ?`, id,
	).Scan(&s.ID, &s.Resource, &s.RecordID, &s.Title, &compressed, &s.Hash, &owner, &s.ModifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("error reading draft: %w", err)
	}

	s.Owner = model.UserID(owner)
	s.Content, err = r.compressor.Decompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("error decompressing draft: %w", err)
	}
	return &s, nil
}

func (r *DBDraftStore) ListDrafts(owner model.UserID) ([]Snapshot, error) {
	rows, err := r.db.Query(
		`SELECT id, resource, record_id, title, content_hash, modified_at FROM draft_snapshots
		 WHERE user_id = ? ORDER BY modified_at DESC`, string(owner),
	)
	if err != nil {
		return nil, fmt.Errorf("error querying drafts: %w", err)
	}
	defer rows.Close()

	drafts := make([]Snapshot, 0)
	for rows.Next() {
		s := Snapshot{Owner: owner}
		if err := rows.Scan(&s.ID, &s.Resource, &s.RecordID, &s.Title, &s.Hash, &s.ModifiedAt); err != nil {
			return nil, fmt.Errorf("error scanning draft: %w", err)
		}
		drafts = append(drafts, s)
	}
	return drafts, rows.Err()
}

func (r *DBDraftStore) DeleteDraft(id string) error {
	if _, err := r.db.Exec(`DELETE FROM draft_snapshots WHERE id = ?`, id); err != nil {
		return fmt.Errorf("error deleting draft: %w", err)
	}
	return nil
}

func (r *DBDraftStore) PruneDrafts(before time.Time) (int, error) {
	res, err := r.db.Exec(`DELETE FROM draft_snapshots WHERE modified_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("error pruning drafts: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		repoLogger.Info().Int64("count", n).Msg("Pruned stale drafts")
	}
	return int(n), nil
}
