package model

import (
	"net/http"
	"path/filepath"
	"strings"
)

// ImageFile is a local image picked by the user, not yet uploaded.
type ImageFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// DetectContentType fills ContentType from the extension or the leading bytes.
func (f *ImageFile) DetectContentType() string {
	if f.ContentType != "" && f.ContentType != "application/octet-stream" {
		return f.ContentType
	}
	switch strings.ToLower(filepath.Ext(f.Name)) {
	case ".svg":
		f.ContentType = "image/svg+xml"
	case ".webp":
		f.ContentType = "image/webp"
	default:
		f.ContentType = http.DetectContentType(f.Data)
	}
	return f.ContentType
}

// IsImage reports whether the file looks like an image.
func (f *ImageFile) IsImage() bool {
	return strings.HasPrefix(f.DetectContentType(), "image/")
}
