package upload

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/storage"

	"github.com/debemdeboas/backoffice/internal/config"
	"github.com/debemdeboas/backoffice/internal/model"
)

// GCSGateway writes images to a Google Cloud Storage bucket. Objects are expected
// to be publicly readable through bucket IAM.
type GCSGateway struct {
	client        *storage.Client
	bucket        string
	prefix        string
	publicBaseURL string
}

func NewGCSGateway(ctx context.Context, bucket, prefix, publicBaseURL string) (*GCSGateway, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("gcs gateway: bucket is empty")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs gateway: new client: %w", err)
	}
	if publicBaseURL == "" {
		publicBaseURL = "https://storage.googleapis.com/" + bucket
	}
	return &GCSGateway{
		client:        client,
		bucket:        bucket,
		prefix:        prefix,
		publicBaseURL: publicBaseURL,
	}, nil
}

func (g *GCSGateway) Name() string {
	return config.GatewayGCS
}

func (g *GCSGateway) Upload(ctx context.Context, file model.ImageFile) (string, error) {
	key := ObjectKey(g.prefix, file.Name)

	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	w.ContentType = file.DetectContentType()
	w.CacheControl = "public, max-age=31536000, immutable"
	w.Metadata = map[string]string{
		"uploadedAt": time.Now().UTC().Format(time.RFC3339),
		"fileName":   file.Name,
	}
	if _, err := w.Write(file.Data); err != nil {
		_ = w.Close()
		return "", &model.UploadError{File: file.Name, Err: fmt.Errorf("write object %s: %w", key, err)}
	}
	if err := w.Close(); err != nil {
		return "", &model.UploadError{File: file.Name, Err: fmt.Errorf("close object %s: %w", key, err)}
	}
	return publicURL(g.publicBaseURL, key), nil
}

func (g *GCSGateway) Close() error {
	return g.client.Close()
}
