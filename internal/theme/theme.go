// Package theme resolves the console colour theme and the syntax highlighting
// style used by markdown previews.
package theme

import (
	"html/template"
	"net/http"
	"slices"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"

	"github.com/debemdeboas/backoffice/internal/cache"
	"github.com/debemdeboas/backoffice/internal/config"
)

func GetThemeFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(config.CookieTheme); err == nil && IsTheme(cookie.Value) {
		return cookie.Value
	}
	return config.AppConfig.Theme.Default
}

func IsTheme(name string) bool {
	return name == config.LightTheme || name == config.DarkTheme
}

// Toggle returns the theme opposite to current.
func Toggle(current string) string {
	if current == config.DarkTheme {
		return config.LightTheme
	}
	return config.DarkTheme
}

func GetDefaultSyntaxTheme(theme string) string {
	return map[string]string{
		config.LightTheme: config.AppConfig.Theme.SyntaxHighlighting.DefaultLight,
		config.DarkTheme:  config.AppConfig.Theme.SyntaxHighlighting.DefaultDark,
	}[theme]
}

func GetSyntaxThemeFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(config.CookieSyntaxTheme); err == nil && IsSyntaxTheme(cookie.Value) {
		return cookie.Value
	}
	return GetDefaultSyntaxTheme(GetThemeFromRequest(r))
}

func GetSyntaxThemes() []string {
	styleNames := styles.Names()
	slices.Sort(styleNames)
	return styleNames
}

// IsSyntaxTheme reports whether chroma ships a style called name.
func IsSyntaxTheme(name string) bool {
	_, ok := styles.Registry[name]
	return ok
}

func GetFormatter() *html.Formatter {
	return html.New(
		html.WithClasses(true),
		html.TabWidth(4),
		html.WithLineNumbers(true),
		html.WrapLongLines(true),
	)
}

// GenerateSyntaxCSS returns the chroma stylesheet of a syntax theme.
func GenerateSyntaxCSS(theme string) template.CSS {
	return SyntaxStylesheet(theme).CSS
}

// SyntaxStylesheet generates the stylesheet of theme once and serves it from cache after.
func SyntaxStylesheet(theme string) cache.Stylesheet {
	if sheet, ok := cache.GetSyntaxStylesheet(theme); ok {
		return sheet
	}

	var buf strings.Builder
	style := styles.Get(theme)

	bg := style.Get(chroma.Background)
	if !bg.Colour.IsSet() {
		// Pick a readable text colour when the style leaves it unset.
		luminance := (0.299*float64(bg.Background.Red()) +
			0.587*float64(bg.Background.Green()) +
			0.114*float64(bg.Background.Blue())) / 255
		if luminance > 0.5 {
			buf.WriteString(".chroma { color: #181818; }\n")
		}
	}

	GetFormatter().WriteCSS(&buf, style)
	return cache.StoreSyntaxStylesheet(theme, template.CSS(buf.String()))
}

func GetThemeIcon(theme string) string {
	if theme == config.LightTheme {
		return config.DarkThemeIcon
	}
	return config.LightThemeIcon
}
