package main

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/backoffice/internal/api"
	"github.com/debemdeboas/backoffice/internal/auth"
	"github.com/debemdeboas/backoffice/internal/cache"
	"github.com/debemdeboas/backoffice/internal/config"
	"github.com/debemdeboas/backoffice/internal/listedit"
	"github.com/debemdeboas/backoffice/internal/listing"
	"github.com/debemdeboas/backoffice/internal/metrics"
	"github.com/debemdeboas/backoffice/internal/model"
	"github.com/debemdeboas/backoffice/internal/repository"
	"github.com/debemdeboas/backoffice/internal/repository/editor"
	"github.com/debemdeboas/backoffice/internal/routes"
	"github.com/debemdeboas/backoffice/internal/sse"
)

// snapshotRetention is how long an abandoned draft can still be resumed.
const snapshotRetention = 7 * 24 * time.Hour

// Backend is the REST client surface the console pages use.
type Backend interface {
	editor.Backend
	Delete(ctx context.Context, res api.Resource, id string) error
	TogglePublish(ctx context.Context, blogID string) error
	Applications(ctx context.Context, jobID string) ([]model.Record, string, error)
	AddDropdownService(ctx context.Context, name string) (model.Record, error)
}

type app struct {
	cfg      *config.Config
	fs       fs.FS
	backend  Backend
	store    repository.DraftStore
	provider auth.AuthProvider

	drafts  *editor.MemoryRepository
	editor  *editor.Handler
	clients *sse.SSEClients
	lists   *cache.Cache[string, *listing.List[model.Record]]

	handler http.Handler
}

func newApp(cfg *config.Config, fsys fs.FS, backend Backend, uploader listedit.Uploader, store repository.DraftStore, provider auth.AuthProvider) (*app, error) {
	a := &app{
		cfg:      cfg,
		fs:       fsys,
		backend:  backend,
		store:    store,
		provider: provider,
		clients:  sse.NewSSEClients(),
		lists:    cache.NewCache[string, *listing.List[model.Record]](),
	}

	var h *editor.Handler
	a.drafts = editor.NewMemoryRepository(func(s *editor.Session) { h.Autosave(s) })
	h = editor.NewHandler(a.drafts, a.clients, fsys, backend, uploader, store)
	a.editor = h

	mux := http.NewServeMux()
	if err := a.routes(mux); err != nil {
		return nil, err
	}
	if _, err := cache.HashStatic(fsys, config.StaticLocalDir); err != nil {
		return nil, fmt.Errorf("hashing static assets: %w", err)
	}

	secured := secureHeaders(mux)
	a.handler = cacheIt(provider.WithHeaderAuthorization()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == routes.RobotsPath {
			mux.ServeHTTP(w, r)
			return
		}
		secured.ServeHTTP(w, r)
	})))
	return a, nil
}

func (a *app) routes(mux *http.ServeMux) error {
	protect := auth.RequireUser(a.provider)
	page := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, protect(fn))
	}

	static, err := fs.Sub(a.fs, config.StaticLocalDir)
	if err != nil {
		return err
	}
	mux.Handle("GET "+config.StaticURLPath, http.StripPrefix(config.StaticURLPath, http.FileServer(http.FS(static))))
	mux.HandleFunc("GET "+routes.RobotsPath, serveRobots)
	mux.HandleFunc("GET "+routes.ThemeOppositeIcon, serveThemeOppositeIcon)
	mux.HandleFunc("POST "+routes.ThemeToggle, serveThemeToggle)
	mux.HandleFunc("POST "+routes.SyntaxThemeSet, serveSyntaxThemeSet)
	mux.HandleFunc("GET "+routes.SyntaxThemeGet, serveSyntaxTheme)
	if a.cfg.Features.Metrics.Enabled {
		mux.Handle("GET "+routes.MetricsPath, metrics.Handler())
	}

	switch p := a.provider.(type) {
	case *auth.Ed25519AuthProvider:
		if err := auth.RegisterEd25519AuthRoutes(mux, p, a.fs); err != nil {
			return err
		}
	case *auth.ClerkAuthProvider:
		mux.HandleFunc("POST "+routes.WebhookUser, p.HandleWebhookUser)
	}

	page("GET "+routes.RootPath+"{$}", a.serveDashboard)
	page("GET "+routes.ListPath, a.serveList)
	page("POST "+routes.RowDelete, a.deleteRow)
	page("POST "+routes.BlogTogglePublish, a.togglePublish)
	page("GET "+routes.JobApplications, a.serveApplications)
	page("POST "+routes.ApplicationDelete, a.deleteApplication)
	page("POST "+routes.DropdownServiceAdd, a.addDropdownService)

	a.editor.Register(mux, protect)
	return nil
}

// pruneSnapshots drops draft snapshots nobody resumed in time.
func (a *app) pruneSnapshots(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		if n, err := a.store.PruneDrafts(time.Now().Add(-snapshotRetention)); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to prune draft snapshots")
		} else if n > 0 {
			zerolog.Ctx(ctx).Info().Int("count", n).Msg("Pruned draft snapshots")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func cacheIt(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(config.HCacheControl, "no-cache")
		w.Header().Set("Vary", "Cookie")

		if hash, ok := cache.StaticETag(r.URL.Path); ok {
			w.Header().Set(config.HCacheControl, "public, max-age=3600")
			w.Header().Set(config.HETag, hash)
		}

		h.ServeHTTP(w, r)
	})
}

func secureHeaders(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "deny")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "same-origin")

		h.ServeHTTP(w, r)
	})
}

func templatePath(name string) string {
	return fmt.Sprintf("%s/%s", config.TemplatesLocalDir, name)
}
