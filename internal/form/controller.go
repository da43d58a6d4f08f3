// Package form drives the lifecycle of an entity form: hydrating a draft from the
// backend, editing it, validating it and submitting it.
package form

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/backoffice/internal/api"
	"github.com/debemdeboas/backoffice/internal/listedit"
	"github.com/debemdeboas/backoffice/internal/metrics"
	"github.com/debemdeboas/backoffice/internal/model"
	"github.com/debemdeboas/backoffice/internal/upload"
)

var formLogger zerolog.Logger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	formLogger = l
}

var (
	ErrState    = errors.New("operation not allowed in the current state")
	ErrNoUpdate = errors.New("records of this kind cannot be edited")
)

type State int

const (
	Idle State = iota
	Hydrating
	Editing
	Submitting
	Done
	Discarded
)

func (s State) String() string {
	return [...]string{"idle", "hydrating", "editing", "submitting", "done", "discarded"}[s]
}

// Backend is the part of the REST client a form needs.
type Backend interface {
	Get(ctx context.Context, res api.Resource, id string) (model.Record, error)
	Create(ctx context.Context, res api.Resource, payload model.Record) (model.Record, error)
	Update(ctx context.Context, res api.Resource, id string, payload model.Record) (model.Record, error)
}

type EventKind string

const (
	EventHydrated  EventKind = "hydrated"
	EventUploaded  EventKind = "uploaded"
	EventSubmitted EventKind = "submitted"
	EventFailed    EventKind = "failed"
)

// Event is emitted after asynchronous work settles.
type Event struct {
	Kind   EventKind
	Field  string
	Entry  listedit.EntryID
	URL    string
	Err    error
	Record model.Record
}

// Draft is a snapshot of the values being edited.
type Draft struct {
	Scalars     map[string]any
	Collections map[string]listedit.Collection
}

// Controller owns one draft. All methods are safe for concurrent use; network
// calls run without holding the lock and their results are applied afterwards
// only if the draft is still open.
type Controller struct {
	mu sync.Mutex

	schema   *Schema
	backend  Backend
	uploader listedit.Uploader
	observer func(Event)

	ctx    context.Context
	cancel context.CancelFunc

	state    State
	recordID string
	// passthrough holds hydrated keys the schema does not declare.
	passthrough model.Record
	present     map[string]bool
	draft       Draft
	editors     map[string]*listedit.Editor
	uploads     map[string]*upload.Ticket
	result      model.Record
}

type Option func(*Controller)

// WithObserver registers fn to receive events. fn must not call back into the
// controller synchronously.
func WithObserver(fn func(Event)) Option {
	return func(c *Controller) { c.observer = fn }
}

func New(schema *Schema, backend Backend, uploader listedit.Uploader, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		schema:   schema,
		backend:  backend,
		uploader: uploader,
		ctx:      ctx,
		cancel:   cancel,
		state:    Idle,
		editors:  make(map[string]*listedit.Editor),
		uploads:  make(map[string]*upload.Ticket),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Schema() *Schema {
	return c.schema
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RecordID is empty while creating a new record.
func (c *Controller) RecordID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recordID
}

// Result is the record returned by the backend after a successful submit.
func (c *Controller) Result() model.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result.Clone()
}

// Begin opens an empty draft for a new record.
func (c *Controller) Begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Idle {
		return fmt.Errorf("%w: begin while %s", ErrState, c.state)
	}
	c.draft = Draft{Scalars: map[string]any{}, Collections: map[string]listedit.Collection{}}
	for _, f := range c.schema.Scalars {
		c.draft.Scalars[f.Name] = f.zero()
	}
	for _, f := range c.schema.Collections {
		c.draft.Collections[f.Name] = listedit.New(f.Shape)
	}
	c.passthrough = model.Record{}
	c.present = map[string]bool{}
	c.state = Editing
	return nil
}

// Hydrate loads record id into the draft. On failure the controller returns to Idle.
func (c *Controller) Hydrate(ctx context.Context, id string) error {
	c.mu.Lock()
	if c.state != Idle {
		c.mu.Unlock()
		return fmt.Errorf("%w: hydrate while %s", ErrState, c.state)
	}
	if !c.schema.Resource.CanUpdate() {
		c.mu.Unlock()
		return ErrNoUpdate
	}
	c.state = Hydrating
	c.mu.Unlock()

	rec, err := c.backend.Get(ctx, c.schema.Resource, id)

	c.mu.Lock()
	if c.state != Hydrating {
		c.mu.Unlock()
		return model.ErrDiscarded
	}
	if err == nil {
		err = c.load(rec)
	}
	if err != nil {
		c.state = Idle
		c.mu.Unlock()
		var fe *model.FetchError
		if !errors.As(err, &fe) {
			err = &model.FetchError{Resource: c.schema.Resource.Name, Err: err}
		}
		formLogger.Warn().Err(err).Str("resource", c.schema.Resource.Name).Str("id", id).Msg("Hydrate failed")
		return err
	}
	c.recordID = id
	c.state = Editing
	c.mu.Unlock()

	c.emit(Event{Kind: EventHydrated, Record: rec.Clone()})
	return nil
}

func (c *Controller) load(rec model.Record) error {
	draft := Draft{Scalars: map[string]any{}, Collections: map[string]listedit.Collection{}}
	present := map[string]bool{}

	for _, f := range c.schema.Scalars {
		if v, ok := rec[f.Name]; ok {
			draft.Scalars[f.Name] = model.Record{f.Name: v}.Clone()[f.Name]
			present[f.Name] = true
		}
	}
	for _, f := range c.schema.Collections {
		v, ok := rec[f.Name]
		values, _ := v.([]any)
		if ok && v != nil {
			if _, isList := v.([]any); !isList {
				return fmt.Errorf("%s: expected a list, got %T", f.Name, v)
			}
			present[f.Name] = true
		}
		coll, err := listedit.FromValues(f.Shape, values)
		if err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
		draft.Collections[f.Name] = coll
	}

	passthrough := model.Record{}
	for k, v := range rec {
		if c.schema.declares(k) || slices.Contains(model.ServerFields, k) {
			continue
		}
		passthrough[k] = v
	}

	c.draft = draft
	c.present = present
	c.passthrough = passthrough.Clone()
	return nil
}

// Scalar returns the current value of a scalar field, falling back to its default.
func (c *Controller) Scalar(name string) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.draft.Scalars[name]; ok {
		return v
	}
	if f, ok := c.schema.Scalar(name); ok {
		return f.zero()
	}
	return nil
}

// SetScalar parses raw according to the field kind and stores it.
func (c *Controller) SetScalar(name, raw string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Editing {
		return fmt.Errorf("%w: edit while %s", ErrState, c.state)
	}
	f, ok := c.schema.Scalar(name)
	if !ok {
		return fmt.Errorf("%w: %q", listedit.ErrUnknownField, name)
	}
	v, err := f.parse(raw)
	if err != nil {
		return model.NewValidationError(name, err.Error())
	}
	c.draft.Scalars[name] = v
	return nil
}

// Editor returns the list editor bound to a collection field of this draft.
func (c *Controller) Editor(name string) (*listedit.Editor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.schema.Collection(name); !ok {
		return nil, fmt.Errorf("%w: collection %q", listedit.ErrUnknownField, name)
	}
	if e, ok := c.editors[name]; ok {
		return e, nil
	}
	e := listedit.NewEditor(name, (*host)(c), c.uploader, c.onCollectionUpload)
	c.editors[name] = e
	return e, nil
}

func (c *Controller) onCollectionUpload(ev listedit.UploadEvent) {
	kind := EventUploaded
	if ev.Err != nil {
		kind = EventFailed
	}
	c.emit(Event{Kind: kind, Field: ev.Collection + "." + ev.Field, Entry: ev.EntryID, URL: ev.URL, Err: ev.Err})
}

// UploadScalarImage uploads file in the background and stores its URL in the
// scalar image field name.
func (c *Controller) UploadScalarImage(name string, file model.ImageFile) (*upload.Ticket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Editing {
		return nil, fmt.Errorf("%w: upload while %s", ErrState, c.state)
	}
	f, ok := c.schema.Scalar(name)
	if !ok || f.Kind != Image {
		return nil, fmt.Errorf("%w: image field %q", listedit.ErrUnknownField, name)
	}
	if _, busy := c.uploads[name]; busy {
		return nil, listedit.ErrUploadPending
	}

	ticket := upload.NewTicket(name, file.Name)
	c.uploads[name] = ticket
	ctx := c.ctx
	go func() {
		url, err := c.uploader.Upload(ctx, file)
		c.completeScalarUpload(name, ticket, url, err)
	}()
	return ticket, nil
}

func (c *Controller) completeScalarUpload(name string, ticket *upload.Ticket, url string, err error) {
	c.mu.Lock()
	if c.uploads[name] == ticket {
		delete(c.uploads, name)
	}
	open := c.state == Editing
	if open && err == nil {
		c.draft.Scalars[name] = url
	}
	c.mu.Unlock()

	if !open {
		ticket.Resolve("", model.ErrDiscarded)
		return
	}
	ticket.Resolve(url, err)
	if err != nil {
		c.emit(Event{Kind: EventFailed, Field: name, Err: err})
		return
	}
	c.emit(Event{Kind: EventUploaded, Field: name, URL: url})
}

// Uploading reports whether the scalar image field name is being uploaded.
func (c *Controller) Uploading(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.uploads[name]
	return ok
}

func (c *Controller) pendingUploads() int {
	n := len(c.uploads)
	for _, e := range c.editors {
		n += e.Pending()
	}
	return n
}

// Payload renders the draft as it would be submitted.
func (c *Controller) Payload() model.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.payload()
}

func (c *Controller) payload() model.Record {
	out := c.passthrough.Clone()
	if out == nil {
		out = model.Record{}
	}
	for k, v := range c.draft.Scalars {
		out[k] = v
	}
	for name, coll := range c.draft.Collections {
		if coll.Len() == 0 && c.recordID != "" && !c.present[name] {
			continue
		}
		out[name] = coll.Values()
	}
	out = out.Clone()
	for _, k := range model.ServerFields {
		delete(out, k)
	}
	if c.schema.Prepare != nil {
		c.schema.Prepare(out)
	}
	return out
}

// Validate runs the schema rules against the current draft without submitting.
func (c *Controller) Validate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if verr := c.schema.Validate(c.payload()); verr != nil {
		return verr
	}
	return nil
}

// Submit validates the draft and sends it to the backend, creating or updating
// depending on how the draft was opened. Validation failures never reach the
// network.
func (c *Controller) Submit(ctx context.Context) (model.Record, error) {
	c.mu.Lock()
	if c.state != Editing {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: submit while %s", ErrState, c.state)
	}
	payload := c.payload()
	if verr := c.schema.Validate(payload); verr != nil {
		c.mu.Unlock()
		metrics.Submits.WithLabelValues(c.schema.Resource.Name, "invalid").Inc()
		return nil, verr
	}
	if n := c.pendingUploads(); n > 0 {
		c.mu.Unlock()
		metrics.Submits.WithLabelValues(c.schema.Resource.Name, "invalid").Inc()
		return nil, model.NewValidationError("uploads", fmt.Sprintf("%d image upload(s) still running", n))
	}
	id := c.recordID
	c.state = Submitting
	c.mu.Unlock()

	var (
		rec model.Record
		err error
	)
	if id == "" {
		rec, err = c.backend.Create(ctx, c.schema.Resource, payload)
	} else {
		rec, err = c.backend.Update(ctx, c.schema.Resource, id, payload)
	}
	metrics.Submits.WithLabelValues(c.schema.Resource.Name, metrics.Outcome(err)).Inc()

	c.mu.Lock()
	if c.state != Submitting {
		c.mu.Unlock()
		formLogger.Debug().Str("resource", c.schema.Resource.Name).Msg("Submit finished after draft closed, ignoring")
		return rec, err
	}
	if err != nil {
		c.state = Editing
		c.mu.Unlock()
		var se *model.SubmitError
		if !errors.As(err, &se) {
			err = &model.SubmitError{Op: "submit", Resource: c.schema.Resource.Name, Err: err}
		}
		formLogger.Warn().Err(err).Str("resource", c.schema.Resource.Name).Str("id", id).Msg("Submit rejected")
		c.emit(Event{Kind: EventFailed, Err: err})
		return nil, err
	}
	c.state = Done
	c.result = rec.Clone()
	c.cancel()
	c.mu.Unlock()

	formLogger.Info().Str("resource", c.schema.Resource.Name).Str("id", id).Msg("Record submitted")
	c.emit(Event{Kind: EventSubmitted, Record: rec.Clone()})
	return rec, nil
}

// Close discards the draft. Uploads and requests still in flight are cancelled
// and their results ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Done {
		c.state = Discarded
	}
	c.cancel()
}

// Snapshot returns a copy of the draft values.
func (c *Controller) Snapshot() Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Draft{
		Scalars:     model.Record(c.draft.Scalars).Clone(),
		Collections: maps.Clone(c.draft.Collections),
	}
}

func (c *Controller) emit(ev Event) {
	if c.observer != nil {
		c.observer(ev)
	}
}

// host adapts Controller to listedit.Host without exporting its lock.
type host Controller

func (h *host) Lock()   { h.mu.Lock() }
func (h *host) Unlock() { h.mu.Unlock() }

func (h *host) Collection(name string) (listedit.Collection, bool) {
	c, ok := h.draft.Collections[name]
	return c, ok
}

func (h *host) ReplaceCollection(name string, c listedit.Collection) {
	h.draft.Collections[name] = c
}

func (h *host) Active() bool {
	return h.state == Editing
}

func (h *host) Context() context.Context {
	return h.ctx
}

// SavedDraft is the serialisable form of an open draft, used for autosave.
type SavedDraft struct {
	Resource string       `json:"resource"`
	RecordID string       `json:"recordId,omitempty"`
	Values   model.Record `json:"values"`
	Present  []string     `json:"present,omitempty"`
}

// Export captures the draft so it can be restored later by Restore.
func (c *Controller) Export() SavedDraft {
	c.mu.Lock()
	defer c.mu.Unlock()

	values := c.passthrough.Clone()
	if values == nil {
		values = model.Record{}
	}
	for k, v := range c.draft.Scalars {
		values[k] = v
	}
	for name, coll := range c.draft.Collections {
		values[name] = coll.Values()
	}
	present := make([]string, 0, len(c.present))
	for k, ok := range c.present {
		if ok {
			present = append(present, k)
		}
	}
	slices.Sort(present)
	return SavedDraft{
		Resource: c.schema.Resource.Name,
		RecordID: c.recordID,
		Values:   values.Clone(),
		Present:  present,
	}
}

// Restore reopens a draft captured by Export without contacting the backend.
func (c *Controller) Restore(saved SavedDraft) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Idle {
		return fmt.Errorf("%w: restore while %s", ErrState, c.state)
	}
	if saved.Resource != c.schema.Resource.Name {
		return fmt.Errorf("saved draft is for %q, not %q", saved.Resource, c.schema.Resource.Name)
	}
	if err := c.load(saved.Values); err != nil {
		return err
	}
	if saved.RecordID != "" {
		c.present = make(map[string]bool, len(saved.Present))
		for _, k := range saved.Present {
			c.present[k] = true
		}
	}
	c.recordID = saved.RecordID
	c.state = Editing
	return nil
}
