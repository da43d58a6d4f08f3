package cache

import (
	"html/template"
	"strconv"

	"github.com/debemdeboas/backoffice/internal/util"
)

// Stylesheet is the generated CSS of one syntax theme.
type Stylesheet struct {
	CSS  template.CSS
	ETag string
}

var syntaxCache = NewCache[string, Stylesheet]()

func GetSyntaxStylesheet(theme string) (Stylesheet, bool) {
	return syntaxCache.Get(theme)
}

// StoreSyntaxStylesheet caches css under theme, tagging it with a content hash.
func StoreSyntaxStylesheet(theme string, css template.CSS) Stylesheet {
	sheet := Stylesheet{CSS: css, ETag: strconv.Quote(util.ContentHashString(string(css))[:16])}
	syntaxCache.Set(theme, sheet)
	return sheet
}
