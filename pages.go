package main

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/debemdeboas/backoffice/internal/api"
	"github.com/debemdeboas/backoffice/internal/auth"
	"github.com/debemdeboas/backoffice/internal/config"
	"github.com/debemdeboas/backoffice/internal/form"
	"github.com/debemdeboas/backoffice/internal/listing"
	"github.com/debemdeboas/backoffice/internal/model"
	"github.com/debemdeboas/backoffice/internal/notice"
	"github.com/debemdeboas/backoffice/internal/theme"
)

type column struct {
	Key   string
	Label string
	Bool  bool
	Link  bool
}

// listPage describes one admin table.
type listPage struct {
	Path     string
	Title    string
	Resource api.Resource
	Columns  []column
	Template string
}

func (p listPage) schema() (*form.Schema, bool) {
	s, ok := form.Schemas[p.Resource.Name]
	return s, ok
}

func (p listPage) Creatable() bool {
	_, ok := p.schema()
	return ok && p.Resource.CanCreate()
}

func (p listPage) Editable() bool {
	_, ok := p.schema()
	return ok && p.Resource.CanUpdate()
}

func (p listPage) NewURL() string {
	return "/new/" + p.Resource.Name
}

func (p listPage) URL() string {
	return "/" + p.Path
}

var listPages = map[string]listPage{
	"categories": {
		Path: "categories", Title: "Categories", Resource: api.Categories, Template: config.TemplateList,
		Columns: []column{{Key: "title", Label: "Title"}, {Key: "description", Label: "Description"}, {Key: "image", Label: "Image", Link: true}},
	},
	"services": {
		Path: "services", Title: "Services", Resource: api.Services, Template: config.TemplateList,
		Columns: []column{{Key: "title", Label: "Title"}, {Key: "summary", Label: "Summary"}, {Key: "galleryEnabled", Label: "Gallery", Bool: true}},
	},
	"blogs": {
		Path: "blogs", Title: "Blogs", Resource: api.Blogs, Template: config.TemplateList,
		Columns: []column{{Key: "title", Label: "Title"}, {Key: "category", Label: "Category"}, {Key: "author", Label: "Author"}, {Key: "isPublished", Label: "Published", Bool: true}},
	},
	"jobs": {
		Path: "jobs", Title: "Careers", Resource: api.Jobs, Template: config.TemplateList,
		Columns: []column{{Key: "title", Label: "Title"}, {Key: "type", Label: "Type"}, {Key: "location", Label: "Location"}, {Key: "openings", Label: "Openings"}},
	},
	"messages": {
		Path: "messages", Title: "Messages", Resource: api.ContactMessages, Template: config.TemplateMessages,
		Columns: []column{{Key: "name", Label: "Name"}, {Key: "email", Label: "Email"}, {Key: "phone", Label: "Phone"}, {Key: "service", Label: "Service"}, {Key: "message", Label: "Message"}},
	},
	"dropdown-services": {
		Path: "dropdown-services", Title: "Dropdown services", Resource: api.DropdownServices, Template: config.TemplateList,
		Columns: []column{{Key: "name", Label: "Name"}},
	},
}

func applicationsPage(jobID, jobTitle string) listPage {
	title := "Applications"
	if jobTitle != "" {
		title = "Applications for " + jobTitle
	}
	return listPage{
		Path:     "jobs/" + url.PathEscape(jobID) + "/applications",
		Title:    title,
		Resource: api.Applications,
		Template: config.TemplateList,
		Columns: []column{
			{Key: "fullName", Label: "Name"},
			{Key: "email", Label: "Email"},
			{Key: "phone", Label: "Phone"},
			{Key: "resume", Label: "Resume", Link: true},
		},
	}
}

type cell struct {
	Value   string
	Bool    bool
	Checked bool
	Link    bool
}

type row struct {
	ID        string
	Title     string
	Cells     []cell
	Published bool

	EditURL    string
	DeleteURL  string
	ToggleURL  string
	ExtraURL   string
	ExtraLabel string
}

type listData struct {
	*model.PageData
	Page listListing
}

// listListing is what the rows partial renders.
type listListing struct {
	listPage
	Rows     []row
	Loaded   bool
	LoadedAt time.Time
}

func buildRows(p listPage, records []model.Record, deleteURL func(id string) string) []row {
	out := make([]row, 0, len(records))
	for _, rec := range records {
		id := rec.ID()
		rw := row{ID: id, Title: rec.Title(), Published: rec.Bool("isPublished")}
		for _, c := range p.Columns {
			if c.Bool {
				rw.Cells = append(rw.Cells, cell{Bool: true, Checked: rec.Bool(c.Key)})
				continue
			}
			rw.Cells = append(rw.Cells, cell{Value: rec.Str(c.Key), Link: c.Link})
		}
		if p.Editable() {
			rw.EditURL = "/edit/" + p.Resource.Name + "/" + url.PathEscape(id)
		}
		if p.Resource.CanDelete() {
			rw.DeleteURL = deleteURL(id)
		}
		switch p.Resource.Name {
		case api.Blogs.Name:
			rw.ToggleURL = "/blogs/" + url.PathEscape(id) + "/toggle-publish"
		case api.Jobs.Name:
			rw.ExtraURL = "/jobs/" + url.PathEscape(id) + "/applications"
			rw.ExtraLabel = "Applications"
		case api.Categories.Name:
			rw.ExtraURL = "/services?" + url.Values{"category": {id}}.Encode()
			rw.ExtraLabel = "Services"
		}
		out = append(out, rw)
	}
	return out
}

// rowDeleteURL keeps the list filter on the delete URL so the refreshed rows
// come from the same table.
func rowDeleteURL(p listPage, query url.Values) func(string) string {
	suffix := ""
	if len(query) > 0 {
		suffix = "?" + query.Encode()
	}
	return func(id string) string {
		return p.URL() + "/" + url.PathEscape(id) + "/delete" + suffix
	}
}

// listScope returns the cache key and backend query of the table a request
// addresses. Services can be narrowed to one category.
func listScope(p listPage, r *http.Request) (string, url.Values) {
	category := r.URL.Query().Get("category")
	if category == "" || p.Resource.Name != api.Services.Name {
		return p.Path, nil
	}
	query := url.Values{"category": {category}}
	return p.Path + "?" + query.Encode(), query
}

func (a *app) list(key, resource string) *listing.List[model.Record] {
	return a.lists.GetOrCreate(key, func() *listing.List[model.Record] {
		return listing.Records(resource)
	})
}

func (a *app) listing(p listPage, l *listing.List[model.Record], deleteURL func(string) string) listListing {
	loaded, at := l.Loaded()
	return listListing{
		listPage: p,
		Rows:     buildRows(p, l.Items(), deleteURL),
		Loaded:   loaded,
		LoadedAt: at,
	}
}

func (a *app) templates(page string) (*template.Template, error) {
	return template.ParseFS(a.fs, templatePath(config.TemplateLayout), templatePath(page))
}

func (a *app) renderPage(w http.ResponseWriter, r *http.Request, page string, data any) {
	l := zerolog.Ctx(r.Context())
	tmpl, err := a.templates(page)
	if err != nil {
		l.Error().Err(err).Str("template", page).Msg("Failed to parse template")
		http.Error(w, config.ErrInternalServerError, http.StatusInternalServerError)
		return
	}
	w.Header().Set(config.HCType, config.CTypeHTML)
	if err := tmpl.ExecuteTemplate(w, config.TemplateLayout, data); err != nil {
		l.Error().Err(err).Str("template", page).Msg("Failed to render page")
	}
}

// renderRows answers a row action with the refreshed table body.
func (a *app) renderRows(w http.ResponseWriter, r *http.Request, data listListing) {
	l := zerolog.Ctx(r.Context())
	tmpl, err := a.templates(config.TemplateList)
	if err != nil {
		l.Error().Err(err).Msg("Failed to parse list template")
		http.Error(w, config.ErrInternalServerError, http.StatusInternalServerError)
		return
	}
	w.Header().Set(config.HCType, config.CTypeHTML)
	if err := tmpl.ExecuteTemplate(w, "rows", data); err != nil {
		l.Error().Err(err).Msg("Failed to render rows")
	}
}

func (a *app) pageData(w http.ResponseWriter, r *http.Request, title string) *model.PageData {
	pd := model.NewPageData(r, title)
	pd.User, _ = auth.UserIDFromContext(r.Context())
	pd.Notice = notice.Consume(w, r)
	return pd
}

type card struct {
	Title string
	URL   string
	Count int
	Err   string
}

type draftLink struct {
	URL      string
	Resource string
	Title    string
	When     time.Time
	Open     bool
}

// serveDashboard shows record counts and the drafts the operator can return to.
func (a *app) serveDashboard(w http.ResponseWriter, r *http.Request) {
	l := zerolog.Ctx(r.Context())
	pages := []string{"categories", "services", "blogs", "jobs", "messages"}
	cards := make([]card, len(pages))

	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(3)
	for i, name := range pages {
		p := listPages[name]
		cards[i] = card{Title: p.Title, URL: p.URL()}
		g.Go(func() error {
			recs, err := a.backend.List(ctx, p.Resource, nil)
			if err != nil {
				l.Warn().Err(err).Str("resource", p.Resource.Name).Msg("Failed to count records")
				cards[i].Err = notice.FromError(err).Title
				return nil
			}
			cards[i].Count = len(recs)
			return nil
		})
	}
	g.Wait()

	pd := a.pageData(w, r, "Dashboard")
	drafts := a.draftLinks(r.Context(), pd.User)

	a.renderPage(w, r, config.TemplateDashboard, struct {
		*model.PageData
		Cards  []card
		Drafts []draftLink
	}{pd, cards, drafts})
}

func (a *app) draftLinks(ctx context.Context, user model.UserID) []draftLink {
	var out []draftLink
	open := map[string]bool{}
	for _, s := range a.drafts.ListDrafts(user) {
		open[string(s.ID)] = true
		out = append(out, draftLink{
			URL:      config.DraftsURLPath + string(s.ID),
			Resource: s.Resource(),
			Title:    s.Form.Export().Values.Title(),
			When:     s.LastSeen(),
			Open:     true,
		})
	}
	snaps, err := a.store.ListDrafts(user)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to list draft snapshots")
	}
	for _, snap := range snaps {
		if open[snap.ID] {
			continue
		}
		out = append(out, draftLink{
			URL:      "/resume/" + url.PathEscape(snap.ID),
			Resource: snap.Resource,
			Title:    snap.Title,
			When:     snap.ModifiedAt,
		})
	}
	slices.SortStableFunc(out, func(x, y draftLink) int { return y.When.Compare(x.When) })
	return out
}

// serveList loads a table from the backend and renders it. When the backend is
// unreachable the last rows seen are shown with a notice.
func (a *app) serveList(w http.ResponseWriter, r *http.Request) {
	p, ok := listPages[r.PathValue("resource")]
	if !ok {
		http.NotFound(w, r)
		return
	}

	key, query := listScope(p, r)
	l := a.list(key, p.Resource.Name)
	if query != nil {
		p.Title += " in category"
	}

	pd := a.pageData(w, r, p.Title)
	err := l.Load(r.Context(), func(ctx context.Context) ([]model.Record, error) {
		return a.backend.List(ctx, p.Resource, query)
	})
	if err != nil {
		n := notice.FromError(err)
		pd.Notice = &n
	}

	a.renderPage(w, r, p.Template, listData{PageData: pd, Page: a.listing(p, l, rowDeleteURL(p, query))})
}

// loadedList returns the table behind key, fetching it first if the console
// never showed it.
func (a *app) loadedList(ctx context.Context, key string, res api.Resource, fetch func(context.Context) ([]model.Record, error)) *listing.List[model.Record] {
	l := a.list(key, res.Name)
	if loaded, _ := l.Loaded(); !loaded {
		l.Load(ctx, fetch)
	}
	return l
}

func (a *app) deleteRow(w http.ResponseWriter, r *http.Request) {
	p, ok := listPages[r.PathValue("resource")]
	if !ok || !p.Resource.CanDelete() {
		http.NotFound(w, r)
		return
	}
	id := r.PathValue("id")
	key, query := listScope(p, r)
	l := a.loadedList(r.Context(), key, p.Resource, func(ctx context.Context) ([]model.Record, error) {
		return a.backend.List(ctx, p.Resource, query)
	})

	rec, _ := l.Find(id)
	err := l.Remove(r.Context(), id, func(ctx context.Context, id string) error {
		return a.backend.Delete(ctx, p.Resource, id)
	})
	a.rowOutcome(w, r, err, "Deleted", rec)
	a.renderRows(w, r, a.listing(p, l, rowDeleteURL(p, query)))
}

func (a *app) togglePublish(w http.ResponseWriter, r *http.Request) {
	p := listPages["blogs"]
	id := r.PathValue("id")
	l := a.loadedList(r.Context(), p.Path, p.Resource, func(ctx context.Context) ([]model.Record, error) {
		return a.backend.List(ctx, p.Resource, nil)
	})

	err := l.Update(r.Context(), id, func(rec model.Record) model.Record {
		out := rec.Clone()
		out["isPublished"] = !rec.Bool("isPublished")
		return out
	}, a.backend.TogglePublish)

	rec, _ := l.Find(id)
	title := "Unpublished"
	if rec.Bool("isPublished") {
		title = "Published"
	}
	a.rowOutcome(w, r, err, title, rec)
	a.renderRows(w, r, a.listing(p, l, rowDeleteURL(p, nil)))
}

// rowOutcome reports a row action through the notify trigger.
func (a *app) rowOutcome(w http.ResponseWriter, r *http.Request, err error, title string, rec model.Record) {
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("path", r.URL.Path).Msg("Row action failed")
		notice.TriggerError(w, err)
		return
	}
	notice.Trigger(w, notice.Success(title, rec.Title()))
}

func applicationsKey(jobID string) string {
	return "jobs/" + jobID + "/applications"
}

func (a *app) fetchApplications(jobID string, title *string) func(context.Context) ([]model.Record, error) {
	return func(ctx context.Context) ([]model.Record, error) {
		recs, jobTitle, err := a.backend.Applications(ctx, jobID)
		if err == nil && title != nil {
			*title = jobTitle
		}
		return recs, err
	}
}

func applicationDeleteURL(jobID string) func(string) string {
	return func(id string) string {
		return "/jobs/" + url.PathEscape(jobID) + "/applications/" + url.PathEscape(id) + "/delete"
	}
}

func (a *app) serveApplications(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	l := a.list(applicationsKey(jobID), api.Applications.Name)

	var jobTitle string
	pd := a.pageData(w, r, "Applications")
	if err := l.Load(r.Context(), a.fetchApplications(jobID, &jobTitle)); err != nil {
		n := notice.FromError(err)
		pd.Notice = &n
	}
	p := applicationsPage(jobID, jobTitle)
	pd.Title = p.Title

	a.renderPage(w, r, p.Template, listData{PageData: pd, Page: a.listing(p, l, applicationDeleteURL(jobID))})
}

func (a *app) deleteApplication(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job")
	id := r.PathValue("id")
	l := a.loadedList(r.Context(), applicationsKey(jobID), api.Applications, a.fetchApplications(jobID, nil))

	rec, _ := l.Find(id)
	err := l.Remove(r.Context(), id, func(ctx context.Context, id string) error {
		return a.backend.Delete(ctx, api.Applications, id)
	})
	a.rowOutcome(w, r, err, "Application deleted", rec)
	a.renderRows(w, r, a.listing(applicationsPage(jobID, ""), l, applicationDeleteURL(jobID)))
}

// addDropdownService creates an entry of the contact form's service dropdown
// and answers with the refreshed table.
func (a *app) addDropdownService(w http.ResponseWriter, r *http.Request) {
	p := listPages["dropdown-services"]
	l := a.list(p.Path, p.Resource.Name)
	fetch := func(ctx context.Context) ([]model.Record, error) {
		return a.backend.List(ctx, p.Resource, nil)
	}

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		notice.TriggerError(w, model.NewValidationError("name", "is required"))
		w.WriteHeader(http.StatusUnprocessableEntity)
		return
	}

	rec, err := a.backend.AddDropdownService(r.Context(), name)
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("name", name).Msg("Failed to add dropdown service")
		notice.TriggerError(w, err)
	} else {
		if rec == nil {
			rec = model.Record{"name": name}
		}
		notice.Trigger(w, notice.Success("Added", rec.Title()))
		l.Load(r.Context(), fetch)
	}
	if loaded, _ := l.Loaded(); !loaded {
		l.Load(r.Context(), fetch)
	}
	a.renderRows(w, r, a.listing(p, l, rowDeleteURL(p, nil)))
}

func serveRobots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(config.HCType, config.CTypeText)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("User-agent: *\nDisallow: /"))
}

func serveThemeOppositeIcon(w http.ResponseWriter, r *http.Request) {
	currTheme := r.URL.Query().Get("theme")
	if currTheme == "" {
		http.Error(w, "theme required", http.StatusBadRequest)
		return
	}

	w.Header().Set(config.HCType, config.CTypeHTML)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(theme.GetThemeIcon(currTheme)))
}

func serveThemeToggle(w http.ResponseWriter, r *http.Request) {
	if !config.AppConfig.Theme.AllowSwitching {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusForbidden)
		return
	}
	newTheme := theme.Toggle(theme.GetThemeFromRequest(r))

	http.SetCookie(w, &http.Cookie{
		Name:     config.CookieTheme,
		Value:    newTheme,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})

	syntaxTheme := theme.GetDefaultSyntaxTheme(newTheme)
	if cookie, err := r.Cookie(config.CookieSyntaxTheme); err == nil && theme.IsSyntaxTheme(cookie.Value) {
		syntaxTheme = cookie.Value
	}

	w.Header().Set(config.HHxTrigger, fmt.Sprintf(`{"themeChanged":{"value":%q,"syntaxTheme":%q}}`, newTheme, syntaxTheme))
	w.Header().Set(config.HCType, config.CTypeHTML)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(theme.GetThemeIcon(newTheme)))
}

func serveSyntaxThemeSet(w http.ResponseWriter, r *http.Request) {
	currTheme := r.FormValue("syntax-theme-select")
	if !theme.IsSyntaxTheme(currTheme) {
		http.Error(w, "theme required", http.StatusBadRequest)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     config.CookieSyntaxTheme,
		Value:    currTheme,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeSyntaxCSS(w, currTheme)
}

func serveSyntaxTheme(w http.ResponseWriter, r *http.Request) {
	currTheme := r.PathValue("theme")
	if !theme.IsSyntaxTheme(currTheme) {
		http.NotFound(w, r)
		return
	}
	writeSyntaxCSS(w, currTheme)
}

func writeSyntaxCSS(w http.ResponseWriter, name string) {
	sheet := theme.SyntaxStylesheet(name)
	w.Header().Set(config.HCType, config.CTypeCSS)
	w.Header().Set(config.HETag, sheet.ETag)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(sheet.CSS))
}
