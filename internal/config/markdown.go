package config

import "regexp"

// Markdown preview settings.
const (
	// PreviewRenderer selects the renderer used for markdown fields: "mmark" or "classic".
	PreviewRenderer = "mmark"

	// MaxPreviewBytes caps the markdown accepted by the preview endpoint.
	MaxPreviewBytes = 256 << 10
)

// RegexCodeCallout matches "// <<N>>" markers inside highlighted code blocks.
var RegexCodeCallout = regexp.MustCompile(`//\s*<<(\d+)>>`)
