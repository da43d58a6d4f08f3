package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/debemdeboas/backoffice/internal/model"
)

func (c *Client) Categories(ctx context.Context) ([]model.Record, error) {
	return c.List(ctx, Categories, nil)
}

// Services lists services, optionally restricted to one category.
func (c *Client) Services(ctx context.Context, categoryID string) ([]model.Record, error) {
	var q url.Values
	if categoryID != "" {
		q = url.Values{"category": {categoryID}}
	}
	return c.List(ctx, Services, q)
}

func (c *Client) Blogs(ctx context.Context) ([]model.Record, error) {
	return c.List(ctx, Blogs, nil)
}

func (c *Client) Jobs(ctx context.Context) ([]model.Record, error) {
	return c.List(ctx, Jobs, nil)
}

func (c *Client) ContactMessages(ctx context.Context) ([]model.Record, error) {
	return c.List(ctx, ContactMessages, nil)
}

func (c *Client) DropdownServices(ctx context.Context) ([]model.Record, error) {
	return c.List(ctx, DropdownServices, nil)
}

// TogglePublish flips the published flag of a blog post.
func (c *Client) TogglePublish(ctx context.Context, blogID string) error {
	b, err := jsonBody(map[string]string{"id": blogID})
	if err != nil {
		return submitError("toggle-publish", Blogs, err)
	}
	if _, err := c.do(ctx, http.MethodPost, Blogs.Name, "/blogs/toggle-publish", nil, b); err != nil {
		return submitError("toggle-publish", Blogs, err)
	}
	return nil
}

// Applications lists the applications received for a job along with its title.
func (c *Client) Applications(ctx context.Context, jobID string) ([]model.Record, string, error) {
	raw, err := c.do(ctx, http.MethodGet, Applications.Name, expand(Applications.ListPath, jobID), nil, nil)
	if err != nil {
		return nil, "", &model.FetchError{Resource: Applications.Name, Err: err}
	}
	var env struct {
		JobTitle string `json:"jobTitle"`
	}
	_ = json.Unmarshal(raw, &env)
	return normalizeList(raw, Applications.ListKey), env.JobTitle, nil
}

func (c *Client) AddDropdownService(ctx context.Context, name string) (model.Record, error) {
	return c.Create(ctx, DropdownServices, model.Record{"name": name})
}
