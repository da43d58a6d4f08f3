package listedit

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/backoffice/internal/model"
	"github.com/debemdeboas/backoffice/internal/upload"
)

var editLogger zerolog.Logger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	editLogger = l
}

// Host owns the draft a collection lives in. Every Editor call holds the host lock
// while it reads and replaces the collection.
type Host interface {
	sync.Locker
	Collection(name string) (Collection, bool)
	ReplaceCollection(name string, c Collection)
	// Active is false once the draft has been submitted or discarded.
	Active() bool
	// Context lives as long as the draft and bounds background uploads.
	Context() context.Context
}

// Uploader turns a local image into a public URL.
type Uploader interface {
	Upload(ctx context.Context, file model.ImageFile) (string, error)
}

// UploadEvent reports the outcome of a background upload.
type UploadEvent struct {
	Collection string
	EntryID    EntryID
	Field      string
	URL        string
	Err        error
	// Applied is true when the URL was written into the entry.
	Applied bool
}

type pendingKey struct {
	id    EntryID
	field string
}

// Editor applies list operations to one named collection of a Host.
type Editor struct {
	name     string
	host     Host
	uploader Uploader
	notify   func(UploadEvent)

	pending map[pendingKey]*upload.Ticket
}

func NewEditor(name string, host Host, uploader Uploader, notify func(UploadEvent)) *Editor {
	return &Editor{
		name:     name,
		host:     host,
		uploader: uploader,
		notify:   notify,
		pending:  make(map[pendingKey]*upload.Ticket),
	}
}

func (e *Editor) Name() string {
	return e.name
}

// Collection returns the current value of the collection.
func (e *Editor) Collection() Collection {
	e.host.Lock()
	defer e.host.Unlock()
	c, _ := e.host.Collection(e.name)
	return c
}

func (e *Editor) apply(op func(Collection) (Collection, error)) (Collection, error) {
	e.host.Lock()
	defer e.host.Unlock()

	if !e.host.Active() {
		return Collection{}, model.ErrDiscarded
	}
	c, ok := e.host.Collection(e.name)
	if !ok {
		return Collection{}, fmt.Errorf("%w: collection %q", ErrUnknownField, e.name)
	}
	next, err := op(c)
	if err != nil {
		return c, err
	}
	e.host.ReplaceCollection(e.name, next)
	return next, nil
}

func (e *Editor) Add(template Entry) (Collection, error) {
	return e.apply(func(c Collection) (Collection, error) { return c.Add(template) })
}

func (e *Editor) AddEmpty() (Collection, error) {
	return e.apply(func(c Collection) (Collection, error) { return c.AddEmpty() })
}

func (e *Editor) SetField(index int, field, value string) (Collection, error) {
	return e.apply(func(c Collection) (Collection, error) { return c.SetField(index, field, value) })
}

func (e *Editor) SetFieldByID(id EntryID, field, value string) (Collection, error) {
	return e.apply(func(c Collection) (Collection, error) { return c.SetFieldByID(id, field, value) })
}

func (e *Editor) Remove(index int) (Collection, error) {
	return e.apply(func(c Collection) (Collection, error) { return c.Remove(index) })
}

func (e *Editor) RemoveByID(id EntryID) (Collection, error) {
	return e.apply(func(c Collection) (Collection, error) { return c.RemoveByID(id) })
}

func (e *Editor) Move(from, to int) (Collection, error) {
	return e.apply(func(c Collection) (Collection, error) { return c.Move(from, to) })
}

func (e *Editor) MoveByID(id EntryID, to int) (Collection, error) {
	return e.apply(func(c Collection) (Collection, error) { return c.MoveByID(id, to) })
}

// Uploading reports whether an upload is running for field of the entry at index.
func (e *Editor) Uploading(index int, field string) bool {
	e.host.Lock()
	defer e.host.Unlock()

	c, _ := e.host.Collection(e.name)
	if index < 0 || index >= c.Len() {
		return false
	}
	_, ok := e.pending[pendingKey{c.entries[index].ID, field}]
	return ok
}

// UploadingID is Uploading addressed by entry identity.
func (e *Editor) UploadingID(id EntryID, field string) bool {
	e.host.Lock()
	defer e.host.Unlock()
	_, ok := e.pending[pendingKey{id, field}]
	return ok
}

// Pending returns the number of uploads still running. Callers must hold the host lock.
func (e *Editor) Pending() int {
	return len(e.pending)
}

// UploadImageFor uploads file in the background and, on success, stores the URL in
// field of the entry currently at index. The target is pinned to the entry's
// identity, so reordering or removing other entries meanwhile does not misdirect
// the result. If the entry is gone by then the URL is dropped.
func (e *Editor) UploadImageFor(index int, field string, file model.ImageFile) (*upload.Ticket, error) {
	e.host.Lock()
	defer e.host.Unlock()

	if !e.host.Active() {
		return nil, model.ErrDiscarded
	}
	c, ok := e.host.Collection(e.name)
	if !ok {
		return nil, fmt.Errorf("%w: collection %q", ErrUnknownField, e.name)
	}
	if err := c.checkIndex(index); err != nil {
		return nil, err
	}
	if c.shape.Kind == Record && !c.shape.Declares(field) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}

	return e.start(pendingKey{c.entries[index].ID, field}, file)
}

// UploadImageForID is UploadImageFor addressed by entry identity.
func (e *Editor) UploadImageForID(id EntryID, field string, file model.ImageFile) (*upload.Ticket, error) {
	e.host.Lock()
	defer e.host.Unlock()

	if !e.host.Active() {
		return nil, model.ErrDiscarded
	}
	c, ok := e.host.Collection(e.name)
	if !ok {
		return nil, fmt.Errorf("%w: collection %q", ErrUnknownField, e.name)
	}
	if c.IndexOf(id) < 0 {
		return nil, ErrEntryGone
	}
	if c.shape.Kind == Record && !c.shape.Declares(field) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return e.start(pendingKey{id, field}, file)
}

// start must be called with the host lock held.
func (e *Editor) start(key pendingKey, file model.ImageFile) (*upload.Ticket, error) {
	if _, busy := e.pending[key]; busy {
		return nil, ErrUploadPending
	}

	ticket := upload.NewTicket(e.name+"."+string(key.id)+"."+key.field, file.Name)
	e.pending[key] = ticket

	ctx := e.host.Context()
	go func() {
		url, err := e.uploader.Upload(ctx, file)
		e.complete(key, ticket, url, err)
	}()

	return ticket, nil
}

func (e *Editor) complete(key pendingKey, ticket *upload.Ticket, url string, err error) {
	ev := UploadEvent{Collection: e.name, EntryID: key.id, Field: key.field, URL: url, Err: err}

	e.host.Lock()
	if e.pending[key] == ticket {
		delete(e.pending, key)
	}
	active := e.host.Active()
	if active && err == nil {
		c, _ := e.host.Collection(e.name)
		next, setErr := c.SetFieldByID(key.id, key.field, url)
		if setErr != nil {
			ev.Err = setErr
		} else {
			e.host.ReplaceCollection(e.name, next)
			ev.Applied = true
		}
	}
	e.host.Unlock()

	if !active {
		editLogger.Debug().Str("collection", e.name).Str("entry", string(key.id)).Msg("Upload finished after draft closed, ignoring")
		ticket.Resolve("", model.ErrDiscarded)
		return
	}

	if ev.Err != nil {
		editLogger.Warn().Err(ev.Err).Str("collection", e.name).Str("entry", string(key.id)).Msg("Upload not applied")
		ticket.Resolve("", ev.Err)
	} else {
		ticket.Resolve(url, nil)
	}

	if e.notify != nil {
		e.notify(ev)
	}
}
