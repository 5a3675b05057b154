package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/firmkit/tplsync/internal/models"
)

const templatesPath = "account_templates"

// DefaultPerPage is the page size used when listing templates.
const DefaultPerPage = 200

// ListTemplates returns one page of the firm's templates. An empty page
// marks the end of the listing.
func (c *Client) ListTemplates(ctx context.Context, tenant string, page, perPage int) ([]models.Template, error) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("per_page", strconv.Itoa(perPage))

	var out []models.Template
	err := c.call(ctx, Request{Tenant: tenant, Method: http.MethodGet, Path: templatesPath, Query: query}, &out)
	return out, err
}

// GetTemplate fetches a single template.
func (c *Client) GetTemplate(ctx context.Context, tenant string, id int64) (models.Template, error) {
	var out models.Template
	err := c.call(ctx, Request{Tenant: tenant, Method: http.MethodGet, Path: templatePath(id)}, &out)
	return out, err
}

// CreateTemplate creates tmpl in the firm and returns the stored resource.
func (c *Client) CreateTemplate(ctx context.Context, tenant string, tmpl models.Template) (models.Template, error) {
	tmpl.ID = 0
	var out models.Template
	err := c.call(ctx, Request{Tenant: tenant, Method: http.MethodPost, Path: templatesPath, Body: tmpl}, &out)
	return out, err
}

// UpdateTemplate replaces the template with the given id.
func (c *Client) UpdateTemplate(ctx context.Context, tenant string, id int64, tmpl models.Template) (models.Template, error) {
	tmpl.ID = 0
	var out models.Template
	err := c.call(ctx, Request{Tenant: tenant, Method: http.MethodPost, Path: templatePath(id), Body: tmpl}, &out)
	return out, err
}

// call runs req and decodes a successful body into out. Classified
// failures are returned as *Error.
func (c *Client) call(ctx context.Context, req Request, out any) error {
	res, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if err := res.Err(); err != nil {
		return err
	}
	if out == nil || len(res.Body) == 0 {
		return nil
	}
	return res.Decode(out)
}

func templatePath(id int64) string {
	return templatesPath + "/" + strconv.FormatInt(id, 10)
}
