package render

import (
	"html"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"

	"github.com/debemdeboas/backoffice/internal/config"
	"github.com/debemdeboas/backoffice/internal/theme"
)

var sourceFormatter = chromahtml.New(
	chromahtml.WithClasses(true),
	chromahtml.WithLineNumbers(false),
)

// inlineFormatter styles tokens inline, for HTML shown outside the console
// where the chroma stylesheet is not loaded.
var inlineFormatter = chromahtml.New(
	chromahtml.WithClasses(false),
	chromahtml.WithLineNumbers(false),
)

func highlight(src, language, highlightTheme string, formatter *chromahtml.Formatter) (string, error) {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	style := styles.Get(highlightTheme)
	if style == nil {
		style = styles.Fallback
	}

	iterator, err := chroma.Coalesce(lexer).Tokenise(nil, src)
	if err != nil {
		return src, err
	}
	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return src, err
	}
	return buf.String(), nil
}

// HighlightSource renders src as a highlighted block, for instance the JSON
// payload a form is about to submit.
func HighlightSource(src, language, highlightTheme string) (string, error) {
	out, err := highlight(src, language, highlightTheme, sourceFormatter)
	if err != nil {
		return src, err
	}
	return `<div class="source-view">` + out + `</div>`, nil
}

// HighlightCode renders a fenced block of a markdown field with line numbers.
// "// <<N>>" markers become callouts. On failure the code is returned as is.
func HighlightCode(code, language, highlightTheme string) string {
	out, err := highlight(code, language, highlightTheme, theme.GetFormatter())
	if err != nil {
		renderLogger.Debug().Err(err).Str("language", language).Msg("Highlighting failed")
		return code
	}
	out = html.UnescapeString(out)
	return config.RegexCodeCallout.ReplaceAllString(out, `<span class="callout">$1</span>`)
}
