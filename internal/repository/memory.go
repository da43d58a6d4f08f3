package repository

import (
	"bytes"
	"slices"
	"time"

	"github.com/debemdeboas/backoffice/internal/cache"
	"github.com/debemdeboas/backoffice/internal/model"
	"github.com/debemdeboas/backoffice/internal/util"
)

type MemoryDraftStore struct { // implements DraftStore
	drafts *cache.Cache[string, Snapshot]
}

func NewMemoryDraftStore() *MemoryDraftStore {
	return &MemoryDraftStore{drafts: cache.NewCache[string, Snapshot]()}
}

func (m *MemoryDraftStore) SaveDraft(s *Snapshot) (bool, error) {
	hash := util.ContentHash(s.Content)
	if prev, ok := m.drafts.Get(s.ID); ok && prev.Hash == hash && prev.Title == s.Title {
		s.Hash, s.ModifiedAt = prev.Hash, prev.ModifiedAt
		return false, nil
	}
	s.Hash = hash
	s.ModifiedAt = time.Now().UTC()
	stored := *s
	stored.Content = bytes.Clone(s.Content)
	m.drafts.Set(s.ID, stored)
	return true, nil
}

func (m *MemoryDraftStore) GetDraft(id string) (*Snapshot, error) {
	s, ok := m.drafts.Get(id)
	if !ok {
		return nil, notFound(id)
	}
	s.Content = bytes.Clone(s.Content)
	return &s, nil
}

func (m *MemoryDraftStore) ListDrafts(owner model.UserID) ([]Snapshot, error) {
	var out []Snapshot
	for _, s := range m.drafts.Values() {
		if s.Owner == owner {
			s.Content = nil
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b Snapshot) int { return b.ModifiedAt.Compare(a.ModifiedAt) })
	return out, nil
}

func (m *MemoryDraftStore) DeleteDraft(id string) error {
	m.drafts.Delete(id)
	return nil
}

func (m *MemoryDraftStore) PruneDrafts(before time.Time) (int, error) {
	return m.drafts.DeleteFunc(func(_ string, s Snapshot) bool { return s.ModifiedAt.Before(before) }), nil
}
