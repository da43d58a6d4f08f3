package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/debemdeboas/backoffice/internal/config"
	"github.com/debemdeboas/backoffice/internal/model"
)

type S3Options struct {
	AccessKeyID     string
	AccessKeySecret string
	// Endpoint of an S3 compatible store such as R2. Empty means AWS.
	Endpoint      string
	Bucket        string
	Prefix        string
	PublicBaseURL string
}

// S3Gateway writes images straight to an S3 compatible bucket.
type S3Gateway struct {
	client *s3.Client
	opts   S3Options
}

func NewS3Gateway(ctx context.Context, opts S3Options) (*S3Gateway, error) {
	if opts.Bucket == "" {
		return nil, errors.New("s3 gateway: bucket is empty")
	}
	if opts.PublicBaseURL == "" {
		if opts.Endpoint == "" {
			return nil, errors.New("s3 gateway: public base url or endpoint is required")
		}
		opts.PublicBaseURL = publicURL(opts.Endpoint, opts.Bucket)
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion("auto")}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.AccessKeySecret, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3 gateway: load config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})

	return &S3Gateway{client: client, opts: opts}, nil
}

func (g *S3Gateway) Name() string {
	return config.GatewayS3
}

func (g *S3Gateway) Upload(ctx context.Context, file model.ImageFile) (string, error) {
	key := ObjectKey(g.opts.Prefix, file.Name)
	_, err := g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(g.opts.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(file.Data),
		ContentType:   aws.String(file.DetectContentType()),
		ContentLength: aws.Int64(int64(len(file.Data))),
		CacheControl:  aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		return "", &model.UploadError{File: file.Name, Err: fmt.Errorf("put object %s: %w", key, err)}
	}
	return publicURL(g.opts.PublicBaseURL, key), nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
