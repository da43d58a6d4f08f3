package editor

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/backoffice/internal/auth"
	"github.com/debemdeboas/backoffice/internal/config"
	"github.com/debemdeboas/backoffice/internal/form"
	"github.com/debemdeboas/backoffice/internal/listedit"
	"github.com/debemdeboas/backoffice/internal/model"
	"github.com/debemdeboas/backoffice/internal/notice"
	"github.com/debemdeboas/backoffice/internal/render"
	"github.com/debemdeboas/backoffice/internal/repository"
	"github.com/debemdeboas/backoffice/internal/routes"
	"github.com/debemdeboas/backoffice/internal/sse"
	"github.com/debemdeboas/backoffice/internal/theme"
	"github.com/debemdeboas/backoffice/internal/upload"
	"github.com/debemdeboas/backoffice/internal/util"
)

// Backend is what the editor needs from the REST client.
type Backend interface {
	form.Backend
	OptionSource
}

type Handler struct {
	repo     Repository
	clients  *sse.SSEClients
	backend  Backend
	uploader listedit.Uploader
	store    repository.DraftStore

	fs fs.FS
}

func NewHandler(repo Repository, clients *sse.SSEClients, fsys fs.FS, backend Backend, uploader listedit.Uploader, store repository.DraftStore) *Handler {
	return &Handler{
		repo:     repo,
		clients:  clients,
		backend:  backend,
		uploader: uploader,
		store:    store,
		fs:       fsys,
	}
}

// Register mounts the editor routes. protect wraps every route and is expected
// to reject anonymous requests.
func (h *Handler) Register(mux *http.ServeMux, protect func(http.Handler) http.Handler) {
	handle := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, protect(fn))
	}

	handle("GET "+routes.NewDraft, h.ServeNewDraft)
	handle("GET "+routes.EditRecord, h.ServeEditRecord)
	handle("GET "+routes.ResumeDraft, h.ServeResumeDraft)

	handle("GET "+routes.Draft, h.ServeDraft)
	handle("GET "+routes.DraftEvents, h.ServeEvents)
	handle("GET "+routes.DraftPayload, h.ServePayload)
	handle("POST "+routes.DraftPreview, h.ServePreview)
	handle("POST "+routes.DraftSubmit, h.Submit)
	handle("POST "+routes.DraftDiscard, h.Discard)

	handle("GET "+routes.DraftScalar, h.ServeScalar)
	handle("POST "+routes.DraftScalar, h.SetScalar)
	handle("POST "+routes.DraftUpload, h.UploadScalar)

	handle("GET "+routes.CollectionFields, h.ServeCollection)
	handle("POST "+routes.CollectionAdd, h.AddEntry)
	handle("POST "+routes.CollectionMove, h.MoveEntry)
	handle("POST "+routes.EntrySet, h.SetEntry)
	handle("POST "+routes.EntryRemove, h.RemoveEntry)
	handle("POST "+routes.EntryUpload, h.UploadEntry)
}

func draftURL(id DraftID) string {
	return config.DraftsURLPath + string(id)
}

func listURL(resource string) string {
	return "/" + resource
}

func isHtmx(r *http.Request) bool {
	return r.Header.Get(config.HHxRequest) != ""
}

// redirect sends the browser to target, through Hx-Redirect for htmx requests.
func redirect(w http.ResponseWriter, r *http.Request, target string) {
	if isHtmx(r) {
		w.Header().Set(config.HHxRedirect, target)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handler) templates() (*template.Template, error) {
	return template.ParseFS(h.fs, config.TemplatesLocalDir+"/"+config.TemplateLayout, config.TemplatesLocalDir+"/"+config.TemplateForm)
}

func (h *Handler) partial(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	tmpl, err := h.templates()
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Failed to parse form templates")
		http.Error(w, config.ErrRenderDraft, http.StatusInternalServerError)
		return
	}
	w.Header().Set(config.HCType, config.CTypeHTML)
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, name, data); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("template", name).Msg("Failed to render partial")
	}
}

func (h *Handler) open(id DraftID, owner model.UserID, schema *form.Schema) (*Session, error) {
	ctrl := form.New(schema, h.backend, h.uploader, form.WithObserver(h.observe(id)))
	s := NewSession(id, owner, ctrl)
	if err := h.repo.SaveDraft(s); err != nil {
		ctrl.Close()
		return nil, err
	}
	return s, nil
}

// session loads the draft named in the path. Drafts of other operators are
// reported as missing.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	id := DraftID(r.PathValue("draft"))
	s, err := h.repo.GetDraft(id)
	if err == nil {
		if user, _ := auth.UserIDFromContext(r.Context()); user == s.Owner {
			return s, true
		}
	}

	zerolog.Ctx(r.Context()).Debug().Str("draft_id", string(id)).Msg("Draft not found")
	if isHtmx(r) {
		notice.Trigger(w, notice.FromError(model.ErrDiscarded))
		w.Header().Set(config.HHxRedirect, routes.RootPath)
		w.WriteHeader(http.StatusGone)
		return nil, false
	}
	notice.Flash(w, notice.FromError(model.ErrDiscarded))
	http.Redirect(w, r, routes.RootPath, http.StatusSeeOther)
	return nil, false
}

// forget drops the session and its snapshot. No snapshot is written for the
// session afterwards.
func (h *Handler) forget(s *Session) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	s.forgotten = true

	h.repo.DeleteDraft(s.ID)
	if h.store != nil {
		if err := h.store.DeleteDraft(string(s.ID)); err != nil {
			editorLogger.Warn().Err(err).Str("draft_id", string(s.ID)).Msg("Failed to delete draft snapshot")
		}
	}
}

// autosave snapshots an open draft so it can be resumed later.
func (h *Handler) autosave(s *Session) {
	if h.store == nil {
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if s.forgotten || s.Form.State() != form.Editing {
		return
	}
	saved := s.Form.Export()
	content, err := json.Marshal(saved)
	if err != nil {
		editorLogger.Error().Err(err).Str("draft_id", string(s.ID)).Msg("Failed to encode draft")
		return
	}
	changed, err := h.store.SaveDraft(&repository.Snapshot{
		ID:       string(s.ID),
		Owner:    s.Owner,
		Resource: saved.Resource,
		RecordID: saved.RecordID,
		Title:    saved.Values.Title(),
		Content:  content,
	})
	if err != nil {
		editorLogger.Warn().Err(err).Str("draft_id", string(s.ID)).Msg("Failed to save draft snapshot")
		return
	}
	if changed {
		editorLogger.Debug().Str("draft_id", string(s.ID)).Msg("Draft snapshot saved")
	}
}

// Autosave is the session expiry hook: it keeps a last snapshot of drafts
// closed for inactivity.
func (h *Handler) Autosave(s *Session) {
	h.autosave(s)
}

// eventPayload is the data of the SSE messages sent to an open form.
type eventPayload struct {
	Field  string           `json:"field,omitempty"`
	Entry  listedit.EntryID `json:"entry,omitempty"`
	URL    string           `json:"url,omitempty"`
	Notice model.Notice     `json:"notice"`
}

func (h *Handler) observe(id DraftID) func(form.Event) {
	return func(ev form.Event) {
		n := notice.FromError(ev.Err)
		switch ev.Kind {
		case form.EventUploaded:
			n = notice.Success("Image uploaded", ev.Field)
		case form.EventHydrated:
			n = notice.Info("Record loaded", "")
		case form.EventSubmitted:
			n = notice.Success("Saved", "")
		}

		data, err := json.Marshal(eventPayload{Field: ev.Field, Entry: ev.Entry, URL: ev.URL, Notice: n})
		if err != nil {
			return
		}
		h.clients.Broadcast(string(id), sse.Message{Event: string(ev.Kind), Data: string(data)})

		if ev.Kind == form.EventUploaded {
			go func() {
				if s, err := h.repo.GetDraft(id); err == nil {
					h.autosave(s)
				}
			}()
		}
	}
}

func schemaFor(w http.ResponseWriter, r *http.Request) (*form.Schema, bool) {
	schema, ok := form.Schemas[r.PathValue("resource")]
	if !ok {
		http.NotFound(w, r)
	}
	return schema, ok
}

// ServeNewDraft opens an empty form for a new record.
func (h *Handler) ServeNewDraft(w http.ResponseWriter, r *http.Request) {
	schema, ok := schemaFor(w, r)
	if !ok {
		return
	}
	if !schema.Resource.CanCreate() {
		http.NotFound(w, r)
		return
	}
	user, _ := auth.UserIDFromContext(r.Context())

	s, err := h.open(NewDraftID(), user, schema)
	if err == nil {
		err = s.Form.Begin()
	}
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("resource", schema.Resource.Name).Msg("Failed to open draft")
		http.Error(w, config.ErrStartDraft, http.StatusInternalServerError)
		return
	}
	h.autosave(s)
	redirect(w, r, draftURL(s.ID))
}

// ServeEditRecord opens a form hydrated from an existing record. When the record
// cannot be loaded the operator is sent back to the list with a notice.
func (h *Handler) ServeEditRecord(w http.ResponseWriter, r *http.Request) {
	schema, ok := schemaFor(w, r)
	if !ok {
		return
	}
	l := zerolog.Ctx(r.Context())
	user, _ := auth.UserIDFromContext(r.Context())
	recordID := r.PathValue("id")

	s, err := h.open(NewDraftID(), user, schema)
	if err != nil {
		l.Error().Err(err).Msg("Failed to open draft")
		http.Error(w, config.ErrStartDraft, http.StatusInternalServerError)
		return
	}

	if err := s.Form.Hydrate(r.Context(), recordID); err != nil {
		h.forget(s)
		l.Warn().Err(err).Str("resource", schema.Resource.Name).Str("id", recordID).Msg("Could not open record")
		n := notice.FromError(err)
		if errors.Is(err, form.ErrNoUpdate) {
			n = model.Notice{Level: model.NoticeWarning, Title: "Not editable", Message: err.Error()}
		}
		notice.Flash(w, n)
		redirect(w, r, listURL(schema.Resource.Name))
		return
	}
	h.autosave(s)
	redirect(w, r, draftURL(s.ID))
}

// ServeResumeDraft reopens a draft from its last snapshot.
func (h *Handler) ServeResumeDraft(w http.ResponseWriter, r *http.Request) {
	l := zerolog.Ctx(r.Context())
	user, _ := auth.UserIDFromContext(r.Context())
	id := DraftID(r.PathValue("draft"))

	if s, err := h.repo.GetDraft(id); err == nil && s.Owner == user {
		redirect(w, r, draftURL(id))
		return
	}
	if h.store == nil {
		http.NotFound(w, r)
		return
	}

	snap, err := h.store.GetDraft(string(id))
	if err != nil || snap.Owner != user {
		notice.Flash(w, notice.FromError(model.ErrNotFound))
		redirect(w, r, routes.RootPath)
		return
	}

	var saved form.SavedDraft
	if err := json.Unmarshal(snap.Content, &saved); err != nil {
		l.Error().Err(err).Str("draft_id", string(id)).Msg("Corrupt draft snapshot")
		h.store.DeleteDraft(string(id))
		notice.Flash(w, model.Notice{Level: model.NoticeError, Title: "Draft could not be restored"})
		redirect(w, r, routes.RootPath)
		return
	}
	schema, ok := form.Schemas[saved.Resource]
	if !ok {
		http.NotFound(w, r)
		return
	}

	s, err := h.open(id, user, schema)
	if err == nil {
		err = s.Form.Restore(saved)
		if err != nil {
			h.repo.DeleteDraft(id)
		}
	}
	if err != nil {
		l.Error().Err(err).Str("draft_id", string(id)).Msg("Failed to restore draft")
		http.Error(w, config.ErrStartDraft, http.StatusInternalServerError)
		return
	}
	l.Info().Str("draft_id", string(id)).Str("resource", saved.Resource).Msg("Draft resumed")
	redirect(w, r, draftURL(id))
}

// ServeDraft renders the whole form page.
func (h *Handler) ServeDraft(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	tmpl, err := h.templates()
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Failed to parse form templates")
		http.Error(w, config.ErrRenderDraft, http.StatusInternalServerError)
		return
	}

	view := buildForm(r.Context(), s, h.backend)
	data := struct {
		*model.PageData
		Form        FormView
		ShowPreview bool
	}{
		PageData:    model.NewPageData(r, view.Title),
		Form:        view,
		ShowPreview: config.AppConfig.Features.MarkdownPreview.Enabled,
	}
	data.User = s.Owner
	data.Notice = notice.Consume(w, r)

	w.Header().Set(config.HCType, config.CTypeHTML)
	if err := tmpl.ExecuteTemplate(w, config.TemplateLayout, data); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Failed to render form")
	}
}

func (h *Handler) ServeEvents(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.clients.Stream(w, r, string(s.ID))
}

// ServePayload shows the JSON the form would submit, highlighted.
func (h *Handler) ServePayload(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	raw, err := json.MarshalIndent(s.Form.Payload(), "", "  ")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out, err := render.HighlightSource(string(raw), "json", theme.GetSyntaxThemeFromRequest(r))
	if err != nil {
		out = "<pre>" + template.HTMLEscapeString(string(raw)) + "</pre>"
	}
	w.Header().Set(config.HCType, config.CTypeHTML)
	w.Header().Set(config.HETag, util.ContentHash([]byte(out)))
	io.WriteString(w, out)
}

// ServePreview stores the markdown field named by the field query parameter and
// answers with its rendered preview.
func (h *Handler) ServePreview(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	field := r.URL.Query().Get("field")
	f, declared := s.Form.Schema().Scalar(field)
	if !declared || f.Kind != form.Markdown {
		http.Error(w, config.ErrUnknownField, http.StatusBadRequest)
		return
	}

	value := r.FormValue(field)
	if err := s.Form.SetScalar(field, value); err != nil {
		notice.TriggerError(w, err)
	} else {
		h.autosave(s)
	}

	out, _ := render.Preview([]byte(value), theme.GetSyntaxThemeFromRequest(r))
	w.Header().Set(config.HCType, config.CTypeHTML)
	w.Write(out)
}

// fail reports err as a notice. Errors that mean the draft is gone send the
// browser back to the dashboard.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	l := zerolog.Ctx(r.Context())
	switch {
	case errors.Is(err, model.ErrOutOfRange):
		l.Error().Err(err).Msg("Stale list index")
	case errors.Is(err, model.ErrValidation):
		l.Debug().Err(err).Msg("Rejected input")
	default:
		l.Warn().Err(err).Msg("Draft operation failed")
	}

	notice.TriggerError(w, err)
	status := notice.Status(err)
	switch {
	case errors.Is(err, model.ErrDiscarded), errors.Is(err, form.ErrState):
		w.Header().Set(config.HHxRedirect, routes.RootPath)
	case errors.Is(err, listedit.ErrUnknownField):
		status = http.StatusBadRequest
	case errors.Is(err, listedit.ErrUploadPending):
		status = http.StatusConflict
	}
	w.WriteHeader(status)
}

func (h *Handler) ServeScalar(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	f, declared := s.Form.Schema().Scalar(r.PathValue("field"))
	if !declared {
		http.NotFound(w, r)
		return
	}
	h.partial(w, r, http.StatusOK, "scalar", buildScalar(r.Context(), s, f, h.backend))
}

// SetScalar stores one scalar field. The browser keeps what was typed, so a
// successful change answers with no content.
func (h *Handler) SetScalar(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	field := r.PathValue("field")
	if err := s.Form.SetScalar(field, r.FormValue(field)); err != nil {
		h.fail(w, r, err)
		return
	}
	h.autosave(s)
	w.WriteHeader(http.StatusNoContent)
}

// multipartMemory is kept in memory when uploads are unbounded; the rest spills to disk.
const multipartMemory = 32 << 20

// readImage reads the image part of a multipart upload. The file name comes from
// the fileName part when present, like the backend upload endpoint expects.
// A non-positive upload.max_bytes means no limit, as in upload.WithLimits.
func readImage(w http.ResponseWriter, r *http.Request) (model.ImageFile, error) {
	limit := int64(config.AppConfig.Upload.MaxBytes)
	memory := limit
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
	} else {
		memory = multipartMemory
	}
	if err := r.ParseMultipartForm(memory); err != nil {
		return model.ImageFile{}, err
	}
	file, hdr, err := r.FormFile("image")
	if err != nil {
		return model.ImageFile{}, err
	}
	defer file.Close()

	var src io.Reader = file
	if limit > 0 {
		src = io.LimitReader(file, limit+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return model.ImageFile{}, err
	}
	name := r.FormValue("fileName")
	if name == "" {
		name = hdr.Filename
	}
	return model.ImageFile{Name: name, ContentType: hdr.Header.Get(config.HCType), Data: data}, nil
}

// finishUpload answers an upload request. htmx requests get the field back in
// its uploading state and learn the outcome over SSE; plain form posts wait for
// the upload and return to the form.
func (h *Handler) finishUpload(w http.ResponseWriter, r *http.Request, s *Session, ticket *upload.Ticket, respond func()) {
	if isHtmx(r) {
		respond()
		return
	}
	if _, err := ticket.Wait(r.Context()); err != nil {
		notice.Flash(w, notice.FromError(err))
	} else {
		notice.Flash(w, notice.Success("Image uploaded", ticket.File))
	}
	http.Redirect(w, r, draftURL(s.ID), http.StatusSeeOther)
}

// UploadScalar starts the upload of a scalar image field.
func (h *Handler) UploadScalar(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	f, declared := s.Form.Schema().Scalar(r.PathValue("field"))
	if !declared || f.Kind != form.Image {
		http.Error(w, config.ErrUnknownField, http.StatusBadRequest)
		return
	}
	file, err := readImage(w, r)
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Bad upload request")
		notice.TriggerError(w, &model.UploadError{File: "image", Err: err})
		http.Error(w, config.ErrReadUpload, http.StatusBadRequest)
		return
	}

	ticket, err := s.Form.UploadScalarImage(f.Name, file)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.finishUpload(w, r, s, ticket, func() {
		h.partial(w, r, http.StatusAccepted, "scalar", buildScalar(r.Context(), s, f, h.backend))
	})
}

func (h *Handler) editor(w http.ResponseWriter, r *http.Request, s *Session) (*listedit.Editor, bool) {
	ed, err := s.Form.Editor(r.PathValue("field"))
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return ed, true
}

// collection renders the collection after an operation. A failed operation
// still renders the current entries so the page shows what the draft holds.
func (h *Handler) collection(w http.ResponseWriter, r *http.Request, s *Session, status int, opErr error) {
	if opErr != nil {
		if errors.Is(opErr, model.ErrDiscarded) {
			h.fail(w, r, opErr)
			return
		}
		zerolog.Ctx(r.Context()).Warn().Err(opErr).Str("collection", r.PathValue("field")).Msg("Collection operation failed")
		notice.TriggerError(w, opErr)
	} else {
		h.autosave(s)
	}

	view, err := buildCollection(s, r.PathValue("field"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.partial(w, r, status, "collection", view)
}

func (h *Handler) ServeCollection(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	view, err := buildCollection(s, r.PathValue("field"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.partial(w, r, http.StatusOK, "collection", view)
}

func (h *Handler) AddEntry(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	ed, ok := h.editor(w, r, s)
	if !ok {
		return
	}
	_, err := ed.AddEmpty()
	h.collection(w, r, s, http.StatusOK, err)
}

// MoveEntry moves the entry posted as entry to the index posted as to.
func (h *Handler) MoveEntry(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	ed, ok := h.editor(w, r, s)
	if !ok {
		return
	}
	to, err := strconv.Atoi(r.FormValue("to"))
	if err != nil {
		http.Error(w, config.ErrBadIndex, http.StatusBadRequest)
		return
	}
	_, err = ed.MoveByID(listedit.EntryID(r.FormValue("entry")), to)
	h.collection(w, r, s, http.StatusOK, err)
}

// SetEntry stores the posted fields of one entry. Record entries take one form
// value per declared field; scalar entries take the text value.
func (h *Handler) SetEntry(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	ed, ok := h.editor(w, r, s)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id := listedit.EntryID(r.PathValue("entry"))
	shape := ed.Collection().Shape()

	var err error
	if shape.Kind == listedit.Scalar {
		_, err = ed.SetFieldByID(id, "", r.PostForm.Get("text"))
	} else {
		for _, f := range shape.Fields {
			if vals, posted := r.PostForm[f]; posted && err == nil {
				_, err = ed.SetFieldByID(id, f, vals[0])
			}
		}
	}
	if err != nil {
		h.collection(w, r, s, http.StatusOK, err)
		return
	}
	h.autosave(s)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RemoveEntry(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	ed, ok := h.editor(w, r, s)
	if !ok {
		return
	}
	_, err := ed.RemoveByID(listedit.EntryID(r.PathValue("entry")))
	h.collection(w, r, s, http.StatusOK, err)
}

// UploadEntry starts the upload of an image field of one entry.
func (h *Handler) UploadEntry(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	ed, ok := h.editor(w, r, s)
	if !ok {
		return
	}
	file, err := readImage(w, r)
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Bad upload request")
		notice.TriggerError(w, &model.UploadError{File: "image", Err: err})
		http.Error(w, config.ErrReadUpload, http.StatusBadRequest)
		return
	}

	ticket, err := ed.UploadImageForID(listedit.EntryID(r.PathValue("entry")), r.PathValue("sub"), file)
	if err != nil {
		h.collection(w, r, s, http.StatusOK, err)
		return
	}
	h.finishUpload(w, r, s, ticket, func() {
		view, err := buildCollection(s, ed.Name())
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.partial(w, r, http.StatusAccepted, "collection", view)
	})
}

// Submit validates and sends the draft. On success the session ends and the
// operator returns to the list; otherwise the form stays open with a notice.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	l := zerolog.Ctx(r.Context())
	schema := s.Form.Schema()
	editing := s.Form.RecordID() != ""

	if _, err := s.Form.Submit(r.Context()); err != nil {
		closed := errors.Is(err, form.ErrState) || errors.Is(err, model.ErrDiscarded)
		if !isHtmx(r) {
			l.Warn().Err(err).Str("resource", schema.Resource.Name).Msg("Submit failed")
			notice.Flash(w, notice.FromError(err))
			target := draftURL(s.ID)
			if closed {
				target = listURL(schema.Resource.Name)
			}
			http.Redirect(w, r, target, http.StatusSeeOther)
			return
		}
		if errors.Is(err, model.ErrValidation) {
			h.fail(w, r, err)
			return
		}
		l.Warn().Err(err).Str("resource", schema.Resource.Name).Msg("Submit failed")
		notice.TriggerError(w, err)
		if closed {
			w.Header().Set(config.HHxRedirect, listURL(schema.Resource.Name))
		}
		w.WriteHeader(http.StatusOK)
		return
	}

	verb := "created"
	if editing {
		verb = "updated"
	}
	h.forget(s)
	notice.Flash(w, notice.Success("Saved", fmt.Sprintf("%s %s", schema.Title, verb)))
	redirect(w, r, listURL(schema.Resource.Name))
}

// Discard closes the draft without saving. Uploads still running are cancelled.
func (h *Handler) Discard(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	resource := s.Resource()
	h.forget(s)
	notice.Flash(w, notice.Info("Draft discarded", ""))
	redirect(w, r, listURL(resource))
}
