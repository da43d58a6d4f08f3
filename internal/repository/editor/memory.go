package editor

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/debemdeboas/backoffice/internal/cache"
	"github.com/debemdeboas/backoffice/internal/metrics"
	"github.com/debemdeboas/backoffice/internal/model"
)

type MemoryRepository struct {
	drafts sync.Map

	// onExpire runs for every session dropped by Sweep, before its form is closed.
	onExpire func(*Session)
}

func NewMemoryRepository(onExpire func(*Session)) *MemoryRepository {
	return &MemoryRepository{onExpire: onExpire}
}

func (m *MemoryRepository) SaveDraft(s *Session) error {
	if _, loaded := m.drafts.LoadOrStore(s.ID, s); loaded {
		return fmt.Errorf("draft %s already open", s.ID)
	}
	metrics.OpenDrafts.Inc()
	return nil
}

func (m *MemoryRepository) GetDraft(id DraftID) (*Session, error) {
	if v, ok := m.drafts.Load(id); ok {
		s := v.(*Session)
		s.Touch()
		return s, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrDraftNotFound, id)
}

func (m *MemoryRepository) DeleteDraft(id DraftID) error {
	if v, ok := m.drafts.LoadAndDelete(id); ok {
		v.(*Session).Form.Close()
		metrics.OpenDrafts.Dec()
	}
	return nil
}

func (m *MemoryRepository) ListDrafts(owner model.UserID) []*Session {
	var out []*Session
	m.drafts.Range(func(_, v any) bool {
		if s := v.(*Session); s.Owner == owner {
			out = append(out, s)
		}
		return true
	})
	slices.SortFunc(out, func(a, b *Session) int { return b.LastSeen().Compare(a.LastSeen()) })
	return out
}

// Sweep closes sessions idle for longer than idle and returns how many it
// closed. Rendered previews are dropped whenever a session expires.
func (m *MemoryRepository) Sweep(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)
	n := 0
	m.drafts.Range(func(k, v any) bool {
		s := v.(*Session)
		if s.LastSeen().After(cutoff) {
			return true
		}
		if _, ok := m.drafts.LoadAndDelete(k); !ok {
			return true
		}
		if m.onExpire != nil {
			m.onExpire(s)
		}
		s.Form.Close()
		metrics.OpenDrafts.Dec()
		editorLogger.Info().Str("draft_id", string(s.ID)).Str("resource", s.Resource()).Msg("Draft session expired")
		n++
		return true
	})
	if n > 0 {
		cache.ClearRenderedPreviewCache()
	}
	return n
}

// Run sweeps idle sessions until ctx is done.
func (m *MemoryRepository) Run(ctx context.Context, ttl time.Duration) {
	ticker := time.NewTicker(max(ttl/4, time.Second))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ttl)
		}
	}
}
