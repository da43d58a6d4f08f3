// Package upload sends images picked in the console to storage and returns the
// public URL the backend should store.
package upload

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/debemdeboas/backoffice/internal/config"
	"github.com/debemdeboas/backoffice/internal/metrics"
	"github.com/debemdeboas/backoffice/internal/model"
)

var uploadLogger zerolog.Logger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	uploadLogger = l
}

var (
	ErrEmptyFile = errors.New("file is empty")
	ErrTooLarge  = errors.New("file exceeds the upload limit")
	ErrNotImage  = errors.New("file is not an image")
	ErrNoURL     = errors.New("response carried no url")
)

// Gateway uploads one image and returns where it can be fetched from.
type Gateway interface {
	Upload(ctx context.Context, file model.ImageFile) (string, error)
	Name() string
}

// New builds the gateway selected by cfg.Upload.Gateway, wrapped with size and
// type checks.
func New(ctx context.Context, cfg *config.Config) (Gateway, error) {
	var (
		g   Gateway
		err error
	)
	switch cfg.Upload.Gateway {
	case config.GatewayAPI:
		g, err = NewHTTPGateway(cfg.Backend.BaseURL, cfg.Backend.Token, cfg.Backend.Timeout)
	case config.GatewayS3:
		g, err = NewS3Gateway(ctx, S3Options{
			AccessKeyID:     envOr("S3_ACCESS_KEY_ID", ""),
			AccessKeySecret: envOr("S3_ACCESS_KEY_SECRET", ""),
			Endpoint:        cfg.Upload.Endpoint,
			Bucket:          cfg.Upload.Bucket,
			Prefix:          cfg.Upload.Prefix,
			PublicBaseURL:   cfg.Upload.PublicBaseURL,
		})
	case config.GatewayGCS:
		g, err = NewGCSGateway(ctx, cfg.Upload.Bucket, cfg.Upload.Prefix, cfg.Upload.PublicBaseURL)
	default:
		return nil, fmt.Errorf("unknown upload gateway %q", cfg.Upload.Gateway)
	}
	if err != nil {
		return nil, err
	}
	return WithLimits(g, cfg.Upload.MaxBytes), nil
}

type guarded struct {
	next     Gateway
	maxBytes int
}

// WithLimits rejects empty, oversized and non-image files before they reach g,
// and records upload metrics.
func WithLimits(g Gateway, maxBytes int) Gateway {
	return &guarded{next: g, maxBytes: maxBytes}
}

func (g *guarded) Name() string {
	return g.next.Name()
}

func (g *guarded) Upload(ctx context.Context, file model.ImageFile) (string, error) {
	if err := g.check(&file); err != nil {
		metrics.Uploads.WithLabelValues(g.Name(), "rejected").Inc()
		return "", &model.UploadError{File: file.Name, Err: err}
	}

	start := time.Now()
	url, err := g.next.Upload(ctx, file)
	metrics.Uploads.WithLabelValues(g.Name(), metrics.Outcome(err)).Inc()
	if err != nil {
		uploadLogger.Error().Err(err).Str("gateway", g.Name()).Str("file", file.Name).Msg("Image upload failed")
		var ue *model.UploadError
		if !errors.As(err, &ue) {
			err = &model.UploadError{File: file.Name, Err: err}
		}
		return "", err
	}

	metrics.UploadBytes.Add(float64(len(file.Data)))
	uploadLogger.Info().
		Str("gateway", g.Name()).
		Str("file", file.Name).
		Int("bytes", len(file.Data)).
		Dur("took", time.Since(start)).
		Str("url", url).
		Msg("Image uploaded")
	return url, nil
}

func (g *guarded) check(file *model.ImageFile) error {
	if len(file.Data) == 0 {
		return ErrEmptyFile
	}
	if g.maxBytes > 0 && len(file.Data) > g.maxBytes {
		return fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, len(file.Data), g.maxBytes)
	}
	if !file.IsImage() {
		return fmt.Errorf("%w: %s", ErrNotImage, file.ContentType)
	}
	return nil
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// ObjectKey builds a unique storage key for name under prefix.
func ObjectKey(prefix, name string) string {
	base := unsafeName.ReplaceAllString(path.Base(name), "-")
	base = strings.Trim(base, "-.")
	if base == "" {
		base = "image"
	}
	return path.Join(prefix, time.Now().UTC().Format("2006/01"), uuid.NewString()[:8]+"-"+base)
}

func publicURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
