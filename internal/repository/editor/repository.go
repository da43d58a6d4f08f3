// Package editor keeps the forms that are open in the console and serves the
// routes that edit them.
package editor

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/debemdeboas/backoffice/internal/form"
	"github.com/debemdeboas/backoffice/internal/model"
)

var editorLogger zerolog.Logger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	editorLogger = l
}

var ErrDraftNotFound = errors.New("draft not found")

type DraftID string

func NewDraftID() DraftID {
	return DraftID(uuid.NewString())
}

// Session is one open form owned by one operator.
type Session struct {
	ID      DraftID
	Owner   model.UserID
	Form    *form.Controller
	Created time.Time

	mu       sync.Mutex
	lastSeen time.Time

	// persistMu orders snapshot writes against forgetting the session.
	persistMu sync.Mutex
	forgotten bool
}

func NewSession(id DraftID, owner model.UserID, ctrl *form.Controller) *Session {
	now := time.Now()
	return &Session{ID: id, Owner: owner, Form: ctrl, Created: now, lastSeen: now}
}

func (s *Session) Resource() string {
	return s.Form.Schema().Resource.Name
}

func (s *Session) Touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

type Repository interface {
	SaveDraft(s *Session) error
	// GetDraft returns the session and marks it as recently used.
	GetDraft(id DraftID) (*Session, error)
	// DeleteDraft closes the session's form and forgets it.
	DeleteDraft(id DraftID) error
	ListDrafts(owner model.UserID) []*Session
}
