package editor

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debemdeboas/backoffice/internal/api"
	"github.com/debemdeboas/backoffice/internal/auth"
	"github.com/debemdeboas/backoffice/internal/config"
	"github.com/debemdeboas/backoffice/internal/form"
	"github.com/debemdeboas/backoffice/internal/model"
	"github.com/debemdeboas/backoffice/internal/notice"
	"github.com/debemdeboas/backoffice/internal/repository"
	"github.com/debemdeboas/backoffice/internal/sse"
)

const operator model.UserID = "op1"

var testTemplates = fstest.MapFS{
	"templates/layout.html": {Data: []byte(`<main>{{template "content" .}}</main>`)},
	"templates/form.html": {Data: []byte(`{{define "content"}}<h1>{{.Form.Title}}</h1>` +
		`{{range .Form.Scalars}}{{template "scalar" .}}{{end}}` +
		`{{range .Form.Collections}}{{template "collection" .}}{{end}}{{end}}` +
		`{{define "scalar"}}<p id="{{.Name}}">{{.Value}}{{if .Uploading}} uploading{{end}}{{range .Options}}<option>{{.Label}}</option>{{end}}</p>{{end}}` +
		`{{define "collection"}}<ol id="{{.Name}}">{{range .Entries}}<li data-id="{{.ID}}">{{.Text}}{{range .Fields}}{{.Value}}{{end}}</li>{{end}}</ol>{{end}}`)},
}

type fakeBackend struct {
	mu      sync.Mutex
	records map[string]model.Record
	created []model.Record
	updated map[string]model.Record
	listed    []model.Record
	getErr    error
	createErr error
}

func newFakeBackend(records ...model.Record) *fakeBackend {
	b := &fakeBackend{records: map[string]model.Record{}, updated: map[string]model.Record{}}
	for _, r := range records {
		b.records[r.ID()] = r
	}
	return b
}

func (b *fakeBackend) Get(ctx context.Context, res api.Resource, id string) (model.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.getErr != nil {
		return nil, b.getErr
	}
	r, ok := b.records[id]
	if !ok {
		return nil, &model.FetchError{Resource: res.Name, Err: model.ErrNotFound}
	}
	return r.Clone(), nil
}

func (b *fakeBackend) Create(ctx context.Context, res api.Resource, payload model.Record) (model.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.createErr != nil {
		return nil, b.createErr
	}
	b.created = append(b.created, payload.Clone())
	out := payload.Clone()
	out["_id"] = "new1"
	return out, nil
}

func (b *fakeBackend) Update(ctx context.Context, res api.Resource, id string, payload model.Record) (model.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updated[id] = payload.Clone()
	return payload.Clone(), nil
}

func (b *fakeBackend) List(ctx context.Context, res api.Resource, query url.Values) ([]model.Record, error) {
	return b.listed, nil
}

func (b *fakeBackend) createdCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.created)
}

type blockingUploader struct{ release chan struct{} }

func (u blockingUploader) Upload(ctx context.Context, file model.ImageFile) (string, error) {
	select {
	case <-u.release:
		return "https://cdn.example.com/" + file.Name, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type testServer struct {
	handler http.Handler
	repo    *MemoryRepository
	store   *repository.MemoryDraftStore
	backend *fakeBackend
	clients *sse.SSEClients
	release chan struct{}
}

func newTestServer(t *testing.T, backend *fakeBackend) *testServer {
	t.Helper()
	ts := &testServer{
		store:   repository.NewMemoryDraftStore(),
		backend: backend,
		clients: sse.NewSSEClients(),
		release: make(chan struct{}),
	}
	var h *Handler
	ts.repo = NewMemoryRepository(func(s *Session) { h.Autosave(s) })
	h = NewHandler(ts.repo, ts.clients, testTemplates, backend, blockingUploader{release: ts.release}, ts.store)

	mux := http.NewServeMux()
	h.Register(mux, func(next http.Handler) http.Handler { return next })
	ts.handler = mux
	t.Cleanup(func() {
		for _, s := range ts.repo.ListDrafts(operator) {
			ts.repo.DeleteDraft(s.ID)
		}
	})
	return ts
}

func (ts *testServer) do(r *http.Request, user model.UserID) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, r.WithContext(auth.ContextWithUserID(r.Context(), user)))
	return rec
}

func (ts *testServer) post(path string, values url.Values, htmx bool) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	r.Header.Set(config.HCType, "application/x-www-form-urlencoded")
	if htmx {
		r.Header.Set(config.HHxRequest, "true")
	}
	return ts.do(r, operator)
}

// open starts a draft of resource and returns its session.
func (ts *testServer) open(t *testing.T, resource string) *Session {
	t.Helper()
	rec := ts.do(httptest.NewRequest(http.MethodGet, "/new/"+resource, nil), operator)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	loc := rec.Header().Get("Location")
	require.True(t, strings.HasPrefix(loc, config.DraftsURLPath), loc)

	s, err := ts.repo.GetDraft(DraftID(strings.TrimPrefix(loc, config.DraftsURLPath)))
	require.NoError(t, err)
	return s
}

func imageRequest(t *testing.T, path, name string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", "upload.bin")
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG\r\n\x1a\nfake image"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("fileName", name))
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, path, &buf)
	r.Header.Set(config.HCType, mw.FormDataContentType())
	r.Header.Set(config.HHxRequest, "true")
	return r
}

func noticeFrom(t *testing.T, rec *httptest.ResponseRecorder) model.Notice {
	t.Helper()
	var events map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(rec.Header().Get(config.HHxTrigger)), &events))
	var n model.Notice
	require.NoError(t, json.Unmarshal(events[notice.Event], &n))
	return n
}

func TestNewDraftOpensSession(t *testing.T) {
	ts := newTestServer(t, newFakeBackend())
	s := ts.open(t, "jobs")

	assert.Equal(t, operator, s.Owner)
	assert.Equal(t, form.Editing, s.Form.State())
	assert.Equal(t, "Full-Time", s.Form.Scalar("type"))

	snap, err := ts.store.GetDraft(string(s.ID))
	require.NoError(t, err)
	assert.Equal(t, "jobs", snap.Resource)

	rec := ts.do(httptest.NewRequest(http.MethodGet, draftURL(s.ID), nil), operator)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<h1>Job</h1>")
	assert.Contains(t, rec.Body.String(), `<ol id="skills">`)
}

func TestNewDraftUnknownResource(t *testing.T) {
	ts := newTestServer(t, newFakeBackend())

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/new/widgets", nil), operator)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDraftOfAnotherOperatorIsHidden(t *testing.T) {
	ts := newTestServer(t, newFakeBackend())
	s := ts.open(t, "jobs")

	rec := ts.do(httptest.NewRequest(http.MethodGet, draftURL(s.ID), nil), "someone-else")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	r := httptest.NewRequest(http.MethodPost, draftURL(s.ID)+"/scalar/title", strings.NewReader("title=x"))
	r.Header.Set(config.HCType, "application/x-www-form-urlencoded")
	r.Header.Set(config.HHxRequest, "true")
	rec = ts.do(r, "someone-else")
	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Equal(t, "/", rec.Header().Get(config.HHxRedirect))
	assert.Equal(t, "", s.Form.Scalar("title"))
}

func TestEditAndSubmitJob(t *testing.T) {
	ts := newTestServer(t, newFakeBackend())
	s := ts.open(t, "jobs")
	base := draftURL(s.ID)

	for field, value := range map[string]string{
		"title":       "Backend Engineer",
		"location":    "Remote",
		"openings":    "2",
		"description": "Build and operate the services behind our platform.",
	} {
		rec := ts.post(base+"/scalar/"+field, url.Values{field: {value}}, true)
		require.Equal(t, http.StatusNoContent, rec.Code, field)
	}

	rec := ts.post(base+"/collection/skills/add", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	ed, err := s.Form.Editor("skills")
	require.NoError(t, err)
	entries := ed.Collection().Entries()
	require.Len(t, entries, 1)
	assert.Contains(t, rec.Body.String(), string(entries[0].ID))

	rec = ts.post(base+"/collection/skills/"+string(entries[0].ID)+"/set", url.Values{"text": {"Go"}}, true)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.post(base+"/submit", nil, true)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/jobs", rec.Header().Get(config.HHxRedirect))

	require.Equal(t, 1, ts.backend.createdCount())
	created := ts.backend.created[0]
	assert.Equal(t, "Backend Engineer", created["title"])
	assert.Equal(t, float64(2), created["openings"])
	assert.Equal(t, []any{"Go"}, created["skills"])

	_, err = ts.repo.GetDraft(s.ID)
	assert.ErrorIs(t, err, ErrDraftNotFound)
	_, err = ts.store.GetDraft(string(s.ID))
	assert.Error(t, err)

	var flashed bool
	for _, c := range rec.Result().Cookies() {
		flashed = flashed || c.Name == "flash"
	}
	assert.True(t, flashed, "expected a flash cookie")
}

func TestSubmitRejectsInvalidDraft(t *testing.T) {
	ts := newTestServer(t, newFakeBackend())
	s := ts.open(t, "jobs")

	rec := ts.post(draftURL(s.ID)+"/submit", nil, true)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	n := noticeFrom(t, rec)
	assert.Equal(t, model.NoticeWarning, n.Level)
	assert.Contains(t, n.Fields, "skills")
	assert.Contains(t, n.Fields, "title")

	assert.Equal(t, 0, ts.backend.createdCount())
	assert.Equal(t, form.Editing, s.Form.State())
}

func flashFrom(t *testing.T, rec *httptest.ResponseRecorder) model.Notice {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		r.AddCookie(c)
	}
	n := notice.Consume(httptest.NewRecorder(), r)
	require.NotNil(t, n, "expected a flash cookie")
	return *n
}

func TestSubmitFailureWithoutHtmxReturnsToDraft(t *testing.T) {
	backend := newFakeBackend()
	backend.createErr = &model.SubmitError{Op: "create", Resource: "jobs", Status: http.StatusBadGateway, Message: "backend down"}
	ts := newTestServer(t, backend)
	s := ts.open(t, "jobs")
	base := draftURL(s.ID)

	rec := ts.post(base+"/submit", nil, false)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, base, rec.Header().Get("Location"))
	assert.Equal(t, model.NoticeWarning, flashFrom(t, rec).Level)

	for field, value := range map[string]string{
		"title":       "SRE",
		"location":    "Remote",
		"description": "Keep the platform healthy and on call.",
	} {
		rec = ts.post(base+"/scalar/"+field, url.Values{field: {value}}, true)
		require.Equal(t, http.StatusNoContent, rec.Code, field)
	}
	rec = ts.post(base+"/collection/skills/add", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	ed, err := s.Form.Editor("skills")
	require.NoError(t, err)
	entry := ed.Collection().Entries()[0].ID
	rec = ts.post(base+"/collection/skills/"+string(entry)+"/set", url.Values{"text": {"Linux"}}, true)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.post(base+"/submit", nil, false)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, base, rec.Header().Get("Location"))
	n := flashFrom(t, rec)
	assert.Equal(t, model.NoticeError, n.Level)
	assert.Equal(t, "backend down", n.Message)

	assert.Equal(t, form.Editing, s.Form.State())
	_, err = ts.repo.GetDraft(s.ID)
	assert.NoError(t, err)
}

func TestSetScalarRejectsBadInput(t *testing.T) {
	ts := newTestServer(t, newFakeBackend())
	s := ts.open(t, "jobs")

	rec := ts.post(draftURL(s.ID)+"/scalar/openings", url.Values{"openings": {"many"}}, true)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, float64(1), s.Form.Scalar("openings"))

	rec = ts.post(draftURL(s.ID)+"/scalar/nope", url.Values{"nope": {"x"}}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMoveAndRemoveEntries(t *testing.T) {
	ts := newTestServer(t, newFakeBackend())
	s := ts.open(t, "jobs")
	base := draftURL(s.ID) + "/collection/skills"

	ed, err := s.Form.Editor("skills")
	require.NoError(t, err)
	for _, skill := range []string{"Go", "SQL", "Docker"} {
		_, err := ed.AddEmpty()
		require.NoError(t, err)
		_, err = ed.SetField(ed.Collection().Len()-1, "", skill)
		require.NoError(t, err)
	}
	docker := ed.Collection().Entries()[2].ID

	rec := ts.post(base+"/move", url.Values{"entry": {string(docker)}, "to": {"0"}}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"Docker", "Go", "SQL"}, ed.Collection().Values())

	rec = ts.post(base+"/move", url.Values{"entry": {string(docker)}, "to": {"7"}}, true)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.NoticeWarning, noticeFrom(t, rec).Level)
	assert.Equal(t, []any{"Docker", "Go", "SQL"}, ed.Collection().Values())

	rec = ts.post(base+"/move", url.Values{"entry": {string(docker)}, "to": {"first"}}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.post(base+"/"+string(docker)+"/remove", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"Go", "SQL"}, ed.Collection().Values())
	assert.NotContains(t, rec.Body.String(), string(docker))
}

func TestScalarUploadReportsProgress(t *testing.T) {
	ts := newTestServer(t, newFakeBackend())
	s := ts.open(t, "categories")

	client := &sse.Client{Msg: make(chan sse.Message, 4), DraftID: string(s.ID)}
	ts.clients.Add(client)
	defer ts.clients.Delete(client)

	rec := ts.do(imageRequest(t, draftURL(s.ID)+"/upload/image", "cover.png"), operator)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "uploading")
	assert.True(t, s.Form.Uploading("image"))

	rec = ts.do(imageRequest(t, draftURL(s.ID)+"/upload/image", "again.png"), operator)
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(ts.release)
	require.Eventually(t, func() bool {
		return s.Form.Scalar("image") == "https://cdn.example.com/cover.png"
	}, 2*time.Second, 5*time.Millisecond)

	select {
	case msg := <-client.Msg:
		assert.Equal(t, string(form.EventUploaded), msg.Event)
		assert.Contains(t, msg.Data, "cover.png")
	case <-time.After(2 * time.Second):
		t.Fatal("expected an upload event")
	}
}

func TestUploadRejectsNonImageField(t *testing.T) {
	ts := newTestServer(t, newFakeBackend())
	s := ts.open(t, "categories")

	rec := ts.do(imageRequest(t, draftURL(s.ID)+"/upload/title", "cover.png"), operator)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEditRecordHydrates(t *testing.T) {
	backend := newFakeBackend(model.Record{"_id": "s1", "title": "Networking", "category": "c1", "benefits": []any{"Fast"}})
	backend.listed = []model.Record{{"_id": "c1", "title": "Automation"}}
	ts := newTestServer(t, backend)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/edit/services/s1", nil), operator)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	id := DraftID(strings.TrimPrefix(rec.Header().Get("Location"), config.DraftsURLPath))

	s, err := ts.repo.GetDraft(id)
	require.NoError(t, err)
	assert.Equal(t, "s1", s.Form.RecordID())
	assert.Equal(t, "Networking", s.Form.Scalar("title"))

	rec = ts.do(httptest.NewRequest(http.MethodGet, draftURL(id)+"/scalar/category", nil), operator)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<option>Automation</option>")
}

func TestEditRecordFailureReturnsToList(t *testing.T) {
	ts := newTestServer(t, newFakeBackend())

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/edit/services/missing", nil), operator)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/services", rec.Header().Get("Location"))
	assert.Empty(t, ts.repo.ListDrafts(operator))

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/edit/jobs/j1", nil), operator)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/jobs", rec.Header().Get("Location"))
}

func TestDiscardClosesDraft(t *testing.T) {
	ts := newTestServer(t, newFakeBackend())
	s := ts.open(t, "jobs")

	rec := ts.post(draftURL(s.ID)+"/discard", nil, false)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/jobs", rec.Header().Get("Location"))
	assert.Equal(t, form.Discarded, s.Form.State())

	_, err := ts.store.GetDraft(string(s.ID))
	assert.Error(t, err)
}

func TestResumeExpiredDraft(t *testing.T) {
	ts := newTestServer(t, newFakeBackend())
	s := ts.open(t, "jobs")
	require.NoError(t, s.Form.SetScalar("title", "Data Engineer"))

	require.Equal(t, 1, ts.repo.Sweep(0))
	_, err := ts.repo.GetDraft(s.ID)
	require.ErrorIs(t, err, ErrDraftNotFound)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/resume/"+string(s.ID), nil), "someone-else")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/resume/"+string(s.ID), nil), operator)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, draftURL(s.ID), rec.Header().Get("Location"))

	resumed, err := ts.repo.GetDraft(s.ID)
	require.NoError(t, err)
	assert.Equal(t, form.Editing, resumed.Form.State())
	assert.Equal(t, "Data Engineer", resumed.Form.Scalar("title"))
}

func TestPayloadShowsSubmission(t *testing.T) {
	ts := newTestServer(t, newFakeBackend())
	s := ts.open(t, "jobs")
	require.NoError(t, s.Form.SetScalar("title", "QA Lead"))

	rec := ts.do(httptest.NewRequest(http.MethodGet, draftURL(s.ID)+"/payload", nil), operator)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "QA Lead")
	assert.NotEmpty(t, rec.Header().Get(config.HETag))
}

func TestReadImageHonoursUploadLimit(t *testing.T) {
	payload := bytes.Repeat([]byte{0x42}, 500)
	request := func(t *testing.T) *http.Request {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, err := mw.CreateFormFile("image", "photo.webp")
		require.NoError(t, err)
		_, err = part.Write(payload)
		require.NoError(t, err)
		require.NoError(t, mw.Close())
		r := httptest.NewRequest(http.MethodPost, "/upload", &buf)
		r.Header.Set(config.HCType, mw.FormDataContentType())
		return r
	}

	testCases := []struct {
		name     string
		maxBytes int
		wantLen  int
	}{
		{name: "Zero limit reads the whole file", maxBytes: 0, wantLen: 500},
		{name: "Limit above the size reads the whole file", maxBytes: 1 << 20, wantLen: 500},
		{name: "Limit below the size stops one byte past it", maxBytes: 100, wantLen: 101},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			prev := config.AppConfig
			cfg := *config.Default()
			cfg.Upload.MaxBytes = tc.maxBytes
			config.AppConfig = &cfg
			t.Cleanup(func() { config.AppConfig = prev })

			img, err := readImage(httptest.NewRecorder(), request(t))
			require.NoError(t, err)
			assert.Len(t, img.Data, tc.wantLen)
			assert.Equal(t, "photo.webp", img.Name)
		})
	}
}

// gatedStore holds SaveDraft until release is closed.
type gatedStore struct {
	*repository.MemoryDraftStore
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) SaveDraft(s *repository.Snapshot) (bool, error) {
	close(g.entered)
	<-g.release
	return g.MemoryDraftStore.SaveDraft(s)
}

func TestForgetWaitsForPendingSnapshot(t *testing.T) {
	store := &gatedStore{
		MemoryDraftStore: repository.NewMemoryDraftStore(),
		entered:          make(chan struct{}),
		release:          make(chan struct{}),
	}
	repo := NewMemoryRepository(func(*Session) {})
	h := NewHandler(repo, sse.NewSSEClients(), testTemplates, newFakeBackend(), blockingUploader{release: make(chan struct{})}, store)

	s, err := h.open(NewDraftID(), operator, form.JobSchema)
	require.NoError(t, err)
	require.NoError(t, s.Form.Begin())

	saved := make(chan struct{})
	go func() {
		h.autosave(s)
		close(saved)
	}()
	<-store.entered

	forgotten := make(chan struct{})
	go func() {
		h.forget(s)
		close(forgotten)
	}()

	select {
	case <-forgotten:
		t.Fatal("forget returned while a snapshot write was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(store.release)
	<-saved
	<-forgotten

	_, err = store.GetDraft(string(s.ID))
	assert.Error(t, err)

	h.autosave(s)
	_, err = store.GetDraft(string(s.ID))
	assert.Error(t, err)
}
