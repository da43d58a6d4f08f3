package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debemdeboas/backoffice/internal/model"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Options{BaseURL: srv.URL + "/api", Token: "tok", Timeout: time.Second})
	require.NoError(t, err)
	return c
}

func TestNormalizeList(t *testing.T) {
	testCases := []struct {
		name string
		body string
		want int
	}{
		{name: "bare array", body: `[{"_id":"1"},{"_id":"2"}]`, want: 2},
		{name: "envelope under entity key", body: `{"success":true,"blogs":[{"_id":"1"}]}`, want: 1},
		{name: "envelope under data", body: `{"data":[{"_id":"1"},{"_id":"2"},{"_id":"3"}]}`, want: 3},
		{name: "envelope with unexpected key", body: `{"success":true,"items":[{"_id":"1"}]}`, want: 0},
		{name: "plain object", body: `{"_id":"1"}`, want: 0},
		{name: "string", body: `"hello"`, want: 0},
		{name: "empty body", body: ``, want: 0},
		{name: "non-object elements are skipped", body: `[{"_id":"1"}, 3, "x"]`, want: 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := normalizeList([]byte(tc.body), "blogs")
			require.NotNil(t, got)
			assert.Len(t, got, tc.want)
		})
	}
}

func TestNormalizeItem(t *testing.T) {
	rec, err := normalizeItem([]byte(`{"success":true,"blog":{"_id":"b1","title":"T"}}`), "blog")
	require.NoError(t, err)
	assert.Equal(t, "b1", rec.ID())

	rec, err = normalizeItem([]byte(`{"_id":"s1","title":"Svc"}`), "service")
	require.NoError(t, err)
	assert.Equal(t, "Svc", rec.Str("title"))

	rec, err = normalizeItem([]byte(`{"success":true,"message":"created"}`), "job")
	require.NoError(t, err)
	assert.Nil(t, rec)

	_, err = normalizeItem([]byte(`[1,2]`), "job")
	assert.Error(t, err)
}

func TestClientList(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/api/services":
			assert.Equal(t, "c1", r.URL.Query().Get("category"))
			w.Write([]byte(`[{"_id":"s1","category":"c1"}]`))
		case "/api/blogs/all":
			w.Write([]byte(`{"success":true,"blogs":[{"_id":"b1"},{"_id":"b2"}]}`))
		case "/api/contact-messages":
			w.Write([]byte(`{"success":true,"messages":[{"_id":"m1","email":"a@b.c"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	ctx := context.Background()

	services, err := c.Services(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, services, 1)

	blogs, err := c.Blogs(ctx)
	require.NoError(t, err)
	assert.Len(t, blogs, 2)

	messages, err := c.ContactMessages(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", messages[0].Title())

	_, err = c.Jobs(ctx)
	var fe *model.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "jobs", fe.Resource)
}

func TestClientGet(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/services/s1":
			w.Write([]byte(`{"_id":"s1","title":"Cloud"}`))
		case "/api/categories":
			w.Write([]byte(`{"categories":[{"_id":"c1","title":"Net"},{"_id":"c2","title":"Ops"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	ctx := context.Background()

	svc, err := c.Get(ctx, Services, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Cloud", svc.Str("title"))

	cat, err := c.Get(ctx, Categories, "c2")
	require.NoError(t, err)
	assert.Equal(t, "Ops", cat.Title())

	_, err = c.Get(ctx, Categories, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.ErrorIs(t, err, model.ErrFetch)

	_, err = c.Get(ctx, Services, "nope")
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = c.Get(ctx, Resource{Name: "widgets"}, "w1")
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.ErrorIs(t, err, model.ErrFetch)
}

func TestClientCreateAndUpdate(t *testing.T) {
	var gotMethod, gotPath, gotCType string
	var gotJSON map[string]any
	var gotForm map[string]string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath, gotCType = r.Method, r.URL.Path, r.Header.Get("Content-Type")
		if r.URL.Path == "/api/blogs/add" || r.URL.Path == "/api/blogs/update/b1" {
			require.NoError(t, r.ParseMultipartForm(1<<20))
			gotForm = map[string]string{}
			for k, v := range r.MultipartForm.Value {
				gotForm[k] = v[0]
			}
			w.Write([]byte(`{"success":true,"blog":{"_id":"b1"}}`))
			return
		}
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &gotJSON))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"_id":"j1","title":"Dev"}`))
	}))
	ctx := context.Background()

	rec, err := c.Create(ctx, Jobs, model.Record{"title": "Dev", "skills": []any{"go"}, "openings": float64(2)})
	require.NoError(t, err)
	assert.Equal(t, "j1", rec.ID())
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/api/jobs", gotPath)
	assert.Equal(t, "application/json", gotCType)
	assert.Equal(t, []any{"go"}, gotJSON["skills"])

	rec, err = c.Create(ctx, Blogs, model.Record{"title": "Hello", "isPublished": true, "nothing": nil})
	require.NoError(t, err)
	assert.Equal(t, "b1", rec.ID())
	assert.Contains(t, gotCType, "multipart/form-data")
	assert.Equal(t, map[string]string{"title": "Hello", "isPublished": "true"}, gotForm)

	_, err = c.Update(ctx, Blogs, "b1", model.Record{"title": "Again"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/api/blogs/update/b1", gotPath)

	_, err = c.Update(ctx, Jobs, "j1", model.Record{})
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.ErrorIs(t, err, model.ErrSubmit)
}

func TestClientSubmitErrors(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/categories":
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"message":"title is required"}`))
		case "/api/blogs/toggle-publish":
			w.Write([]byte(`{"success":false,"message":"blog not found"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	ctx := context.Background()

	_, err := c.Create(ctx, Categories, model.Record{})
	var se *model.SubmitError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Status)
	assert.Equal(t, "title is required", se.Message)
	assert.Equal(t, "create", se.Op)

	err = c.TogglePublish(ctx, "b9")
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "blog not found", se.Message)

	err = c.Delete(ctx, Services, "s1")
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Status)

	err = c.Delete(ctx, ContactMessages, "m1")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestClientApplications(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/jobs/j1/applications", r.URL.Path)
		w.Write([]byte(`{"jobTitle":"Engineer","applications":[{"_id":"a1","fullName":"Ana"}]}`))
	}))

	apps, title, err := c.Applications(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, "Engineer", title)
	require.Len(t, apps, 1)
	assert.Equal(t, "Ana", apps[0].Title())
}

func TestClientInstancesAreIndependent(t *testing.T) {
	hits := map[string]string{}
	handler := func(name string) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits[name] = r.Header.Get("Authorization")
			w.Write([]byte(`[]`))
		})
	}
	a := newTestClient(t, handler("a"))
	srvB := httptest.NewServer(handler("b"))
	defer srvB.Close()
	b, err := New(Options{BaseURL: srvB.URL, Token: "other"})
	require.NoError(t, err)

	_, err = a.Jobs(context.Background())
	require.NoError(t, err)
	_, err = b.Jobs(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok", hits["a"])
	assert.Equal(t, "Bearer other", hits["b"])
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	_, err := New(Options{BaseURL: "::"})
	assert.Error(t, err)
}
