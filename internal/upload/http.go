package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/debemdeboas/backoffice/internal/config"
	"github.com/debemdeboas/backoffice/internal/model"
)

// ImagePath is the backend endpoint accepting image uploads.
const ImagePath = "/upload/image/service"

// HTTPGateway posts images to the backend's upload endpoint as multipart form
// data with an "image" file part and a "fileName" text part.
type HTTPGateway struct {
	endpoint string
	token    string
	client   *http.Client
}

func NewHTTPGateway(baseURL, token string, timeout time.Duration) (*HTTPGateway, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid backend base url %q: %w", baseURL, err)
	}
	return &HTTPGateway{
		endpoint: strings.TrimRight(baseURL, "/") + ImagePath,
		token:    token,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

func (g *HTTPGateway) Name() string {
	return config.GatewayAPI
}

func (g *HTTPGateway) Upload(ctx context.Context, file model.ImageFile) (string, error) {
	fail := func(err error) (string, error) {
		return "", &model.UploadError{File: file.Name, Err: err}
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, file.Name))
	h.Set(config.HCType, file.DetectContentType())
	part, err := mw.CreatePart(h)
	if err != nil {
		return fail(err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return fail(err)
	}
	if err := mw.WriteField("fileName", file.Name); err != nil {
		return fail(err)
	}
	if err := mw.Close(); err != nil {
		return fail(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, &body)
	if err != nil {
		return fail(err)
	}
	req.Header.Set(config.HCType, mw.FormDataContentType())
	req.Header.Set(config.HAccept, config.CTypeJSON)
	if g.token != "" {
		req.Header.Set(config.HAuthz, "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fail(fmt.Errorf("request: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fail(fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}

	var out struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fail(fmt.Errorf("decode response: %w", err))
	}
	if strings.TrimSpace(out.URL) == "" {
		return fail(ErrNoURL)
	}
	return out.URL, nil
}
