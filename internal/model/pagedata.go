package model

import (
	"html/template"
	"net/http"
	"strings"

	"github.com/debemdeboas/backoffice/internal/config"
	"github.com/debemdeboas/backoffice/internal/theme"
)

type NavItem struct {
	Label string
	Path  string
}

var Nav = []NavItem{
	{Label: "Dashboard", Path: "/"},
	{Label: "Categories", Path: "/categories"},
	{Label: "Services", Path: "/services"},
	{Label: "Blogs", Path: "/blogs"},
	{Label: "Careers", Path: "/jobs"},
	{Label: "Messages", Path: "/messages"},
	{Label: "Dropdown", Path: "/dropdown-services"},
}

type PageData struct {
	SiteName string
	Title    string

	PageURL string

	Theme string

	SyntaxCSS    template.CSS
	SyntaxTheme  string
	SyntaxThemes []string

	User   UserID
	Notice *Notice
}

func NewPageData(r *http.Request, title string) *PageData {
	syntaxTheme := theme.GetSyntaxThemeFromRequest(r)
	return &PageData{
		SiteName:     config.AppConfig.Site.Name,
		Title:        title,
		PageURL:      r.URL.Path,
		Theme:        theme.GetThemeFromRequest(r),
		SyntaxTheme:  syntaxTheme,
		SyntaxThemes: theme.GetSyntaxThemes(),
		SyntaxCSS:    theme.GenerateSyntaxCSS(syntaxTheme),
	}
}

func (pd *PageData) Nav() []NavItem {
	return Nav
}

// IsActive reports whether path is the section currently shown.
func (pd *PageData) IsActive(path string) bool {
	if path == "/" {
		return pd.PageURL == "/"
	}
	return strings.HasPrefix(pd.PageURL, path)
}

func (pd *PageData) IsEditor() bool {
	return strings.HasPrefix(pd.PageURL, config.DraftsURLPath)
}
