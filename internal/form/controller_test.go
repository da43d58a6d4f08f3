package form

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debemdeboas/backoffice/internal/api"
	"github.com/debemdeboas/backoffice/internal/listedit"
	"github.com/debemdeboas/backoffice/internal/model"
)

type fakeBackend struct {
	mu        sync.Mutex
	records   map[string]model.Record
	getErr    error
	submitErr error
	created   []model.Record
	updated   map[string]model.Record
	calls     int

	// When set, Create and Update signal entered and wait for release.
	entered chan struct{}
	release chan struct{}
}

func newFakeBackend(records ...model.Record) *fakeBackend {
	b := &fakeBackend{records: map[string]model.Record{}, updated: map[string]model.Record{}}
	for _, r := range records {
		b.records[r.ID()] = r.Clone()
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

func (b *fakeBackend) wait() {
	if b.entered != nil {
		b.entered <- struct{}{}
		<-b.release
	}
}

func (b *fakeBackend) Create(ctx context.Context, res api.Resource, payload model.Record) (model.Record, error) {
	b.wait()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.submitErr != nil {
		return nil, b.submitErr
	}
	b.created = append(b.created, payload.Clone())
	out := payload.Clone()
	out["_id"] = "new1"
	return out, nil
}

func (b *fakeBackend) Update(ctx context.Context, res api.Resource, id string, payload model.Record) (model.Record, error) {
	b.wait()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.submitErr != nil {
		return nil, b.submitErr
	}
	b.updated[id] = payload.Clone()
	return payload.Clone(), nil
}

type instantUploader struct {
	url string
	err error
}

func (u instantUploader) Upload(ctx context.Context, file model.ImageFile) (string, error) {
	return u.url + file.Name, u.err
}

type blockingUploader struct{ release chan struct{} }

func (u blockingUploader) Upload(ctx context.Context, file model.ImageFile) (string, error) {
	select {
	case <-u.release:
		return "https://cdn/" + file.Name, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func fillValidJob(t *testing.T, c *Controller) {
	t.Helper()
	require.NoError(t, c.SetScalar("title", "Backend Engineer"))
	require.NoError(t, c.SetScalar("location", "Remote"))
	require.NoError(t, c.SetScalar("description", "Build and operate the services behind our platform."))
	skills, err := c.Editor("skills")
	require.NoError(t, err)
	_, err = skills.Add(skills.Collection().Shape().Template())
	require.NoError(t, err)
	_, err = skills.SetField(0, "", "Go")
	require.NoError(t, err)
}

func TestControllerBegin(t *testing.T) {
	c := New(JobSchema, newFakeBackend(), instantUploader{})
	assert.Equal(t, Idle, c.State())

	require.NoError(t, c.Begin())
	assert.Equal(t, Editing, c.State())
	assert.Equal(t, float64(1), c.Scalar("openings"))
	assert.Equal(t, "Full-Time", c.Scalar("type"))
	assert.Equal(t, "", c.Scalar("title"))

	assert.ErrorIs(t, c.Begin(), ErrState)
}

func TestValidationBlocksSubmission(t *testing.T) {
	backend := newFakeBackend()
	c := New(JobSchema, backend, instantUploader{})
	require.NoError(t, c.Begin())
	require.NoError(t, c.SetScalar("title", "Backend Engineer"))
	require.NoError(t, c.SetScalar("location", "Remote"))
	require.NoError(t, c.SetScalar("description", "too short"))

	_, err := c.Submit(context.Background())
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("skills"))
	assert.True(t, verr.Has("description"))
	assert.ErrorIs(t, err, model.ErrValidation)

	assert.Zero(t, backend.calls, "no request may be sent")
	assert.Equal(t, Editing, c.State())
}

func TestSubmitCreatesRecord(t *testing.T) {
	backend := newFakeBackend()
	c := New(JobSchema, backend, instantUploader{})
	require.NoError(t, c.Begin())
	fillValidJob(t, c)

	rec, err := c.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new1", rec.ID())
	assert.Equal(t, Done, c.State())

	require.Len(t, backend.created, 1)
	sent := backend.created[0]
	assert.Equal(t, []any{"Go"}, sent["skills"])
	assert.Equal(t, float64(1), sent["openings"])
	assert.Equal(t, "Full-Time", sent["type"])

	_, err = c.Submit(context.Background())
	assert.ErrorIs(t, err, ErrState)
}

func TestHydrateAndSubmitRoundTrip(t *testing.T) {
	original := model.Record{
		"_id":       "s1",
		"__v":       float64(3),
		"createdAt": "2024-01-01T00:00:00Z",
		"updatedAt": "2024-02-01T00:00:00Z",
		"category":  "c1",
		"title":     "Cloud Migration",
		"summary":   "Move to the cloud",
		"sections": []any{
			map[string]any{"_id": "sec1", "title": "Plan", "content": "We plan", "image": "https://cdn/plan.png"},
		},
		"faqs":           []any{map[string]any{"question": "How long?", "answer": "Weeks"}},
		"benefits":       []any{"Speed", "Cost"},
		"galleryEnabled": true,
		"views":          float64(42),
	}
	backend := newFakeBackend(original)
	c := New(ServiceSchema, backend, instantUploader{})

	require.NoError(t, c.Hydrate(context.Background(), "s1"))
	assert.Equal(t, Editing, c.State())
	assert.Equal(t, "s1", c.RecordID())

	_, err := c.Submit(context.Background())
	require.NoError(t, err)

	want := original.Without(model.ServerFields...)
	assert.Equal(t, want, backend.updated["s1"])
}

func TestHydrateFailureReturnsToIdle(t *testing.T) {
	backend := newFakeBackend()
	backend.getErr = errors.New("connection refused")
	c := New(CategorySchema, backend, instantUploader{})

	err := c.Hydrate(context.Background(), "c1")
	var fe *model.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "categories", fe.Resource)
	assert.Equal(t, Idle, c.State())

	backend.getErr = nil
	backend.records["c1"] = model.Record{"_id": "c1", "title": "Networking"}
	require.NoError(t, c.Hydrate(context.Background(), "c1"))
	assert.Equal(t, "Networking", c.Scalar("title"))
}

func TestHydrateRejectsMalformedCollections(t *testing.T) {
	backend := newFakeBackend(model.Record{"_id": "s1", "title": "x", "faqs": "not a list"})
	c := New(ServiceSchema, backend, instantUploader{})
	err := c.Hydrate(context.Background(), "s1")
	assert.ErrorIs(t, err, model.ErrFetch)
	assert.Equal(t, Idle, c.State())
}

func TestJobsCannotBeEdited(t *testing.T) {
	c := New(JobSchema, newFakeBackend(model.Record{"_id": "j1"}), instantUploader{})
	assert.ErrorIs(t, c.Hydrate(context.Background(), "j1"), ErrNoUpdate)
	assert.Equal(t, Idle, c.State())
}

func TestSubmitFailureReturnsToEditing(t *testing.T) {
	backend := newFakeBackend()
	backend.submitErr = &model.SubmitError{Op: "create", Resource: "jobs", Status: 500, Message: "db down"}
	c := New(JobSchema, backend, instantUploader{})
	require.NoError(t, c.Begin())
	fillValidJob(t, c)

	_, err := c.Submit(context.Background())
	assert.ErrorIs(t, err, model.ErrSubmit)
	assert.Equal(t, Editing, c.State())

	backend.submitErr = nil
	_, err = c.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Done, c.State())
}

func TestSubmitWhileUploadPending(t *testing.T) {
	backend := newFakeBackend()
	up := blockingUploader{release: make(chan struct{})}
	c := New(CategorySchema, backend, up)
	require.NoError(t, c.Begin())
	require.NoError(t, c.SetScalar("title", "Networking"))
	require.NoError(t, c.SetScalar("description", "All about networks"))

	ticket, err := c.UploadScalarImage("image", model.ImageFile{Name: "net.png"})
	require.NoError(t, err)
	assert.True(t, c.Uploading("image"))

	_, err = c.Submit(context.Background())
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("uploads"))
	assert.Zero(t, backend.calls)

	close(up.release)
	url, err := ticket.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/net.png", url)
	waitFor(t, func() bool { return !c.Uploading("image") })

	_, err = c.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/net.png", backend.created[0]["image"])
}

func TestCloseDuringSubmitIgnoresResult(t *testing.T) {
	backend := newFakeBackend()
	backend.entered = make(chan struct{})
	backend.release = make(chan struct{})
	var events []Event
	var mu sync.Mutex
	c := New(JobSchema, backend, instantUploader{}, WithObserver(func(ev Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	}))
	require.NoError(t, c.Begin())
	fillValidJob(t, c)

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background())
		done <- err
	}()

	<-backend.entered
	assert.Equal(t, Submitting, c.State())
	c.Close()
	close(backend.release)
	require.NoError(t, <-done)

	assert.Equal(t, Discarded, c.State())
	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, events)
}

func TestCollectionUploadThroughController(t *testing.T) {
	var events []Event
	var mu sync.Mutex
	c := New(CategorySchema, newFakeBackend(), instantUploader{url: "https://cdn/"}, WithObserver(func(ev Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	}))
	require.NoError(t, c.Begin())

	sections, err := c.Editor("sections")
	require.NoError(t, err)
	_, err = sections.AddEmpty()
	require.NoError(t, err)

	ticket, err := sections.UploadImageFor(0, "image", model.ImageFile{Name: "s.png"})
	require.NoError(t, err)
	_, err = ticket.Wait(context.Background())
	require.NoError(t, err)

	entry, err := sections.Collection().At(0)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/s.png", entry.Get("image"))

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 1
	})
	assert.Equal(t, EventUploaded, events[0].Kind)
	assert.Equal(t, "sections.image", events[0].Field)

	_, err = c.Editor("gallery")
	assert.Error(t, err)
}

func TestBlogSlugIsDerivedFromTitle(t *testing.T) {
	backend := newFakeBackend()
	c := New(BlogSchema, backend, instantUploader{})
	require.NoError(t, c.Begin())
	require.NoError(t, c.SetScalar("title", "  Hello, World: Go 1.24! "))
	require.NoError(t, c.SetScalar("category", "Education"))
	require.NoError(t, c.SetScalar("isPublished", "on"))

	_, err := c.Submit(context.Background())
	require.NoError(t, err)
	sent := backend.created[0]
	assert.Equal(t, "hello-world-go-1-24", sent["slug"])
	assert.Equal(t, true, sent["isPublished"])
	assert.Equal(t, "Admin", sent["author"])
}

func TestJobSkipsBlankSkills(t *testing.T) {
	backend := newFakeBackend()
	c := New(JobSchema, backend, instantUploader{})
	require.NoError(t, c.Begin())
	fillValidJob(t, c)
	skills, err := c.Editor("skills")
	require.NoError(t, err)
	_, err = skills.AddEmpty()
	require.NoError(t, err)
	_, err = skills.AddEmpty()
	require.NoError(t, err)
	_, err = skills.SetField(2, "", "   ")
	require.NoError(t, err)

	_, err = c.Submit(context.Background())
	require.NoError(t, err)
	require.Len(t, backend.created, 1)
	assert.Equal(t, []any{"Go"}, backend.created[0]["skills"])
}

func TestJobWithOnlyBlankSkillsIsRejected(t *testing.T) {
	backend := newFakeBackend()
	c := New(JobSchema, backend, instantUploader{})
	require.NoError(t, c.Begin())
	fillValidJob(t, c)
	skills, err := c.Editor("skills")
	require.NoError(t, err)
	_, err = skills.SetField(0, "", "")
	require.NoError(t, err)

	_, err = c.Submit(context.Background())
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("skills"))
	assert.Zero(t, backend.calls)
}

func TestBlogDescriptionIsPublishedAsHTML(t *testing.T) {
	testCases := []struct {
		name        string
		description string
		contains    []string
		equal       bool
	}{
		{name: "Markdown is rendered", description: "# Fiber\n\nWhy **fiber** wins.", contains: []string{"<h1", "<strong>fiber</strong>"}},
		{name: "Code blocks carry inline styles", description: "```go\nfunc main() {}\n```", contains: []string{"style="}},
		{name: "Existing HTML is kept", description: "<p>Written in the old editor</p>", equal: true},
		{name: "Empty stays empty", description: "", equal: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			backend := newFakeBackend()
			c := New(BlogSchema, backend, instantUploader{})
			require.NoError(t, c.Begin())
			require.NoError(t, c.SetScalar("title", "Fiber"))
			require.NoError(t, c.SetScalar("category", "Networking"))
			require.NoError(t, c.SetScalar("description", tc.description))

			_, err := c.Submit(context.Background())
			require.NoError(t, err)
			sent := backend.created[0].Str("description")
			if tc.equal {
				assert.Equal(t, tc.description, sent)
			}
			for _, want := range tc.contains {
				assert.Contains(t, sent, want)
			}
			assert.Equal(t, tc.description, c.Scalar("description"), "the draft keeps the markdown")
		})
	}
}

func TestSetScalar(t *testing.T) {
	c := New(JobSchema, newFakeBackend(), instantUploader{})
	assert.ErrorIs(t, c.SetScalar("title", "x"), ErrState)

	require.NoError(t, c.Begin())
	assert.ErrorIs(t, c.SetScalar("nope", "x"), listedit.ErrUnknownField)

	err := c.SetScalar("openings", "three")
	assert.ErrorIs(t, err, model.ErrValidation)
	require.NoError(t, c.SetScalar("openings", "3"))
	assert.Equal(t, float64(3), c.Scalar("openings"))
}

func TestExportRestore(t *testing.T) {
	backend := newFakeBackend(model.Record{
		"_id": "c1", "title": "Networking", "description": "All about networks",
		"sections": []any{map[string]any{"title": "A", "content": "B", "image": ""}},
	})
	c := New(CategorySchema, backend, instantUploader{})
	require.NoError(t, c.Hydrate(context.Background(), "c1"))
	require.NoError(t, c.SetScalar("title", "Networks"))
	saved := c.Export()
	c.Close()

	restored := New(CategorySchema, backend, instantUploader{})
	require.NoError(t, restored.Restore(saved))
	assert.Equal(t, "c1", restored.RecordID())
	assert.Equal(t, "Networks", restored.Scalar("title"))

	_, err := restored.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Networks", backend.updated["c1"]["title"])
	assert.Len(t, backend.updated["c1"]["sections"], 1)

	assert.Error(t, New(JobSchema, backend, nil).Restore(saved))
}

func TestSlugify(t *testing.T) {
	testCases := map[string]string{
		"Hello World":            "hello-world",
		"--Already--Dashed--":    "already-dashed",
		"Ünïcode & Symbols!!":    "n-code-symbols",
		"":                       "",
		"Networking 101: Basics": "networking-101-basics",
	}
	for in, want := range testCases {
		assert.Equal(t, want, Slugify(in), in)
	}
}
