// Package render turns blog descriptions written in markdown into the HTML
// preview shown next to the blog form.
package render

import (
	"fmt"
	"html"
	"io"
	"strings"
	"sync"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	md_html "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/rs/zerolog"

	"github.com/mmarkdown/mmark/v2/lang"
	"github.com/mmarkdown/mmark/v2/mast"
	"github.com/mmarkdown/mmark/v2/mparser"
	"github.com/mmarkdown/mmark/v2/render/mhtml"

	"github.com/debemdeboas/backoffice/internal/cache"
	"github.com/debemdeboas/backoffice/internal/config"
	"github.com/debemdeboas/backoffice/internal/util"
)

var renderLogger zerolog.Logger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	renderLogger = l
}

const EmptyPreview = "Start typing the description to see a preview here."

const truncatedNote = "\n\n*Preview truncated.*\n"

func RenderMarkdown(md []byte, highlightTheme string) ([]byte, any) {
	switch config.PreviewRenderer {
	case "mmark":
		return RenderMarkdownMmark(md, highlightTheme)
	default:
		return RenderMarkdownClassic(md, highlightTheme), nil
	}
}

var renderCacheMutex sync.Mutex

// Preview renders md, reusing a previous rendering of the same content and theme.
// Blank input renders a placeholder paragraph and oversized input is cut at
// config.MaxPreviewBytes.
func Preview(md []byte, highlightTheme string) ([]byte, any) {
	if strings.TrimSpace(string(md)) == "" {
		return []byte("<p class=\"preview-empty\">" + EmptyPreview + "</p>"), nil
	}
	if len(md) > config.MaxPreviewBytes {
		md = append(md[:config.MaxPreviewBytes:config.MaxPreviewBytes], truncatedNote...)
	}

	contentHash := util.ContentHash(md)
	if cached, found := cache.GetRenderedPreview(contentHash, highlightTheme); found {
		renderLogger.Debug().Str("contentHash", contentHash).Str("highlightTheme", highlightTheme).Msg("Cache hit for preview")
		return cached.HTML, cached.Extra
	}

	renderCacheMutex.Lock()
	defer renderCacheMutex.Unlock()
	if cached, found := cache.GetRenderedPreview(contentHash, highlightTheme); found {
		return cached.HTML, cached.Extra
	}

	renderLogger.Debug().Str("contentHash", contentHash).Str("highlightTheme", highlightTheme).Msg("Cache miss for preview")
	html, extra := RenderMarkdown(md, highlightTheme)
	cache.SetRenderedPreview(contentHash, highlightTheme, html, extra)
	return html, extra
}

func codeBlockHook(highlightTheme string) func(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
	return codeHook(func(code, lang string) string {
		return HighlightCode(code, lang, highlightTheme)
	})
}

func codeHook(highlight func(code, lang string) string) func(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
	return func(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
		if code, ok := node.(*ast.CodeBlock); ok && entering {
			var lang string
			if info := code.Info; info != nil {
				lang = string(info)
			}
			fmt.Fprintf(w, "<div class=\"highlight\">%s</div>", highlight(string(code.Literal), lang))
			return ast.GoToNext, true
		}
		return ast.GoToNext, false
	}
}

// PublishedStyle colours code blocks of published HTML.
const PublishedStyle = "github"

// PublishHTML converts a markdown body into the HTML the public site renders.
// Code blocks carry inline styles. Content that already is HTML, such as a post
// written before markdown editing, is returned unchanged.
func PublishHTML(md string) string {
	trimmed := strings.TrimSpace(md)
	if trimmed == "" || strings.HasPrefix(trimmed, "<") {
		return md
	}
	opts := md_html.RendererOptions{
		Flags: md_html.CommonFlags | md_html.HrefTargetBlank,
		RenderNodeHook: codeHook(func(code, lang string) string {
			out, err := highlight(code, lang, PublishedStyle, inlineFormatter)
			if err != nil {
				renderLogger.Debug().Err(err).Str("language", lang).Msg("Highlighting failed")
				return "<pre><code>" + html.EscapeString(code) + "</code></pre>"
			}
			return out
		}),
	}
	doc := parser.NewWithExtensions(
		parser.CommonExtensions | parser.AutoHeadingIDs | parser.Footnotes,
	).Parse(markdown.NormalizeNewlines([]byte(md)))
	return string(markdown.Render(doc, md_html.NewRenderer(opts)))
}

func RenderMarkdownClassic(md []byte, highlightTheme string) []byte {
	hook := codeBlockHook(highlightTheme)
	opts := md_html.RendererOptions{
		Flags: md_html.CommonFlags | md_html.HrefTargetBlank | md_html.FootnoteReturnLinks,
		RenderNodeHook: func(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
			if status, done := hook(w, node, entering); done {
				return status, done
			}
			if callout, ok := node.(*ast.Callout); ok && entering {
				fmt.Fprintf(w, "<span class=\"callout\">%s</span>", callout.ID)
				return ast.GoToNext, true
			}
			return ast.GoToNext, false
		},
	}

	doc := parser.NewWithExtensions(
		parser.Tables | parser.FencedCode | parser.Autolink | parser.Strikethrough | parser.SpaceHeadings |
			parser.HeadingIDs | parser.BackslashLineBreak | parser.SuperSubscript | parser.DefinitionLists |
			parser.AutoHeadingIDs | parser.Footnotes | parser.OrderedListStart | parser.Attributes,
	).Parse(md)
	return markdown.Render(doc, md_html.NewRenderer(opts))
}

func RenderMarkdownMmark(md []byte, highlightTheme string) ([]byte, *mast.TitleData) {
	md = markdown.NormalizeNewlines(md)

	p := parser.NewWithExtensions(mparser.Extensions | parser.NoIntraEmphasis)

	var info *mast.TitleData
	p.Opts = parser.Options{
		ParserHook: func(data []byte) (ast.Node, []byte, int) {
			node, data, consumed := mparser.Hook(data)
			if t, ok := node.(*mast.Title); ok {
				info = t.TitleData
			}
			return node, data, consumed
		},
		// Descriptions come from the browser; never read files they name.
		ReadIncludeFn: func(from, path string, address []byte) []byte { return nil },
		Flags:         parser.FlagsNone,
	}

	doc := markdown.Parse(md, p)

	if info == nil {
		info = &mast.TitleData{
			Title:    "Untitled",
			Language: "en",
		}
	}

	mhtmlOpts := mhtml.RendererOptions{
		Language: lang.New(info.Language),
	}

	hook := codeBlockHook(highlightTheme)
	opts := md_html.RendererOptions{
		RenderNodeHook: func(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
			if status, done := hook(w, node, entering); done {
				return status, done
			}
			return mhtmlOpts.RenderHook(w, node, entering)
		},
		Flags: md_html.CommonFlags | md_html.HrefTargetBlank | md_html.FootnoteNoHRTag | md_html.FootnoteReturnLinks,
	}

	return markdown.Render(doc, md_html.NewRenderer(opts)), info
}
