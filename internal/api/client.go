// Package api is the console's client for the REST backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/debemdeboas/backoffice/internal/config"
	"github.com/debemdeboas/backoffice/internal/metrics"
	"github.com/debemdeboas/backoffice/internal/model"
)

var apiLogger zerolog.Logger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	apiLogger = l
}

var ErrUnsupported = errors.New("operation not offered by the backend")

// StatusError is a non-2xx answer, or a 2xx answer carrying {"success": false}.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Message)
}

type Options struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// RateLimit is the sustained number of requests per second. Zero disables limiting.
	RateLimit float64
	Burst     int
	// HTTPClient overrides the default client built from Timeout.
	HTTPClient *http.Client
}

// OptionsFrom maps the backend section of the configuration.
func OptionsFrom(cfg config.BackendConfig) Options {
	return Options{
		BaseURL:   cfg.BaseURL,
		Token:     cfg.Token,
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		Burst:     cfg.Burst,
	}
}

// Client is safe for concurrent use. Every instance carries its own base URL,
// credentials and rate limit.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
}

func New(opts Options) (*Client, error) {
	if _, err := url.ParseRequestURI(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid backend base url %q: %w", opts.BaseURL, err)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		http:    httpClient,
		limiter: limiter,
	}, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

type body struct {
	reader      io.Reader
	contentType string
}

func jsonBody(v any) (*body, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	return &body{reader: bytes.NewReader(raw), contentType: config.CTypeJSON}, nil
}

// multipartBody encodes every top-level key as a text part. Nested values are
// sent as JSON text.
func multipartBody(payload model.Record) (*body, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, k := range payload.SortedKeys() {
		var s string
		switch v := payload[k].(type) {
		case nil:
			continue
		case string:
			s = v
		case bool:
			s = strconv.FormatBool(v)
		case float64:
			s = strconv.FormatFloat(v, 'f', -1, 64)
		case int:
			s = strconv.Itoa(v)
		default:
			raw, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("encode field %s: %w", k, err)
			}
			s = string(raw)
		}
		if err := mw.WriteField(k, s); err != nil {
			return nil, fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return &body{reader: &buf, contentType: mw.FormDataContentType()}, nil
}

func (c *Client) do(ctx context.Context, method, resource, path string, query url.Values, b *body) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if b != nil {
		reader = b.reader
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(config.HAccept, config.CTypeJSON)
	if b != nil {
		req.Header.Set(config.HCType, b.contentType)
	}
	if c.token != "" {
		req.Header.Set(config.HAuthz, "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.BackendDuration.WithLabelValues(method, resource).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.BackendRequests.WithLabelValues(method, resource, "error").Inc()
		apiLogger.Error().Err(err).Str("method", method).Str("url", u).Msg("Backend request failed")
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	metrics.BackendRequests.WithLabelValues(method, resource, strconv.Itoa(resp.StatusCode)).Inc()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	apiLogger.Debug().
		Str("method", method).
		Str("url", u).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("Backend request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Status: resp.StatusCode, Message: errorMessage(raw)}
	}
	if msg, failed := envelopeFailure(raw); failed {
		return nil, &StatusError{Status: resp.StatusCode, Message: msg}
	}
	return raw, nil
}

func submitError(op string, res Resource, err error) error {
	se := &model.SubmitError{Op: op, Resource: res.Name, Err: err}
	var st *StatusError
	if errors.As(err, &st) {
		se.Status = st.Status
		se.Message = st.Message
	}
	return se
}

// List fetches every record of res. query is appended as URL parameters.
func (c *Client) List(ctx context.Context, res Resource, query url.Values) ([]model.Record, error) {
	return c.listAt(ctx, res, res.ListPath, query)
}

func (c *Client) listAt(ctx context.Context, res Resource, path string, query url.Values) ([]model.Record, error) {
	if path == "" {
		return nil, &model.FetchError{Resource: res.Name, Err: ErrUnsupported}
	}
	raw, err := c.do(ctx, http.MethodGet, res.Name, path, query, nil)
	if err != nil {
		return nil, &model.FetchError{Resource: res.Name, Err: err}
	}
	return normalizeList(raw, res.ListKey), nil
}

// Get fetches one record. Resources without a detail endpoint are looked up in
// their list.
func (c *Client) Get(ctx context.Context, res Resource, id string) (model.Record, error) {
	if !res.CanGet() {
		return nil, &model.FetchError{Resource: res.Name, Err: ErrUnsupported}
	}
	if res.GetPath == "" {
		list, err := c.List(ctx, res, nil)
		if err != nil {
			return nil, err
		}
		for _, r := range list {
			if r.ID() == id {
				return r, nil
			}
		}
		return nil, &model.FetchError{Resource: res.Name, Err: fmt.Errorf("%w: %s", model.ErrNotFound, id)}
	}

	raw, err := c.do(ctx, http.MethodGet, res.Name, expand(res.GetPath, id), nil, nil)
	if err != nil {
		var st *StatusError
		if errors.As(err, &st) && st.Status == http.StatusNotFound {
			err = fmt.Errorf("%w: %s", model.ErrNotFound, id)
		}
		return nil, &model.FetchError{Resource: res.Name, Err: err}
	}
	rec, err := normalizeItem(raw, res.ItemKey)
	if err != nil {
		return nil, &model.FetchError{Resource: res.Name, Err: err}
	}
	if rec == nil {
		return nil, &model.FetchError{Resource: res.Name, Err: fmt.Errorf("%w: %s", model.ErrNotFound, id)}
	}
	return rec, nil
}

func (c *Client) encode(res Resource, payload model.Record) (*body, error) {
	if res.Multipart {
		return multipartBody(payload)
	}
	return jsonBody(payload)
}

// Create sends a new record and returns what the backend answered, which may be nil.
func (c *Client) Create(ctx context.Context, res Resource, payload model.Record) (model.Record, error) {
	if !res.CanCreate() {
		return nil, submitError("create", res, ErrUnsupported)
	}
	b, err := c.encode(res, payload)
	if err != nil {
		return nil, submitError("create", res, err)
	}
	raw, err := c.do(ctx, http.MethodPost, res.Name, res.CreatePath, nil, b)
	if err != nil {
		return nil, submitError("create", res, err)
	}
	rec, _ := normalizeItem(raw, res.ItemKey)
	return rec, nil
}

// Update replaces the record id with payload.
func (c *Client) Update(ctx context.Context, res Resource, id string, payload model.Record) (model.Record, error) {
	if !res.CanUpdate() {
		return nil, submitError("update", res, ErrUnsupported)
	}
	b, err := c.encode(res, payload)
	if err != nil {
		return nil, submitError("update", res, err)
	}
	method := res.UpdateMethod
	if method == "" {
		method = http.MethodPut
	}
	raw, err := c.do(ctx, method, res.Name, expand(res.UpdatePath, id), nil, b)
	if err != nil {
		return nil, submitError("update", res, err)
	}
	rec, _ := normalizeItem(raw, res.ItemKey)
	return rec, nil
}

func (c *Client) Delete(ctx context.Context, res Resource, id string) error {
	if !res.CanDelete() {
		return submitError("delete", res, ErrUnsupported)
	}
	if _, err := c.do(ctx, http.MethodDelete, res.Name, expand(res.DeletePath, id), nil, nil); err != nil {
		return submitError("delete", res, err)
	}
	return nil
}
