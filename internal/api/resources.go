package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"finconsole/internal/core"
)

// Pagination mirrors the Entity Store's list metadata.
type Pagination struct {
	CurrentPage  int `json:"currentPage"`
	TotalPages   int `json:"totalPages"`
	TotalItems   int `json:"totalItems"`
	ItemsPerPage int `json:"itemsPerPage"`
}

// HasPrev and HasNext drive the pager links.
func (p Pagination) HasPrev() bool { return p.CurrentPage > 1 }
func (p Pagination) HasNext() bool { return p.CurrentPage < p.TotalPages }

// Page is one page of a list endpoint.
type Page[T any] struct {
	Items      []T
	Pagination Pagination
}

// ListParams are the query parameters every list endpoint accepts. Filters
// carries the resource specific ones (budget_type_id, start_date, ...).
type ListParams struct {
	Page    int
	Limit   int
	Search  string
	Filters map[string]string
}

// Values encodes the parameters, leaving out empty ones.
func (p ListParams) Values() url.Values {
	v := url.Values{}
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Search != "" {
		v.Set("search", p.Search)
	}
	for k, val := range p.Filters {
		if val != "" {
			v.Set(k, val)
		}
	}
	return v
}

func resourcePath(res core.Resource) string { return "/api/" + res.String() }

func itemPath(res core.Resource, id int64) string {
	return fmt.Sprintf("/api/%s/%d", res, id)
}

// List fetches one page of res. Items are read from the plural key of the
// data object, falling back to the singular key.
func List[T any](ctx context.Context, c *Client, res core.Resource, p ListParams) (Page[T], error) {
	var data map[string]json.RawMessage
	if err := c.get(ctx, resourcePath(res), p.Values(), &data); err != nil {
		return Page[T]{}, err
	}

	var page Page[T]
	raw, ok := data[res.PluralKey()]
	if !ok {
		raw, ok = data[res.SingularKey()]
	}
	if ok {
		if err := json.Unmarshal(raw, &page.Items); err != nil {
			return Page[T]{}, &Error{Kind: KindServerNoBody, Status: http.StatusOK, Message: MsgInvalidData, Err: fmt.Errorf("decode %s: %w", res, err)}
		}
	}
	if raw, ok := data["pagination"]; ok {
		if err := json.Unmarshal(raw, &page.Pagination); err != nil {
			return Page[T]{}, &Error{Kind: KindServerNoBody, Status: http.StatusOK, Message: MsgInvalidData, Err: fmt.Errorf("decode pagination: %w", err)}
		}
	}
	if page.Items == nil {
		page.Items = []T{}
	}
	return page, nil
}

// Get fetches one entity by id.
func Get[T any](ctx context.Context, c *Client, res core.Resource, id int64) (T, error) {
	var out T
	err := c.get(ctx, itemPath(res, id), nil, &out)
	return out, err
}

// Create posts input and returns the stored entity.
func Create[T any](ctx context.Context, c *Client, res core.Resource, input any) (T, error) {
	var out T
	err := c.do(ctx, http.MethodPost, resourcePath(res), input, &out)
	return out, err
}

// Update puts input over the entity with id and returns the stored entity.
func Update[T any](ctx context.Context, c *Client, res core.Resource, id int64, input any) (T, error) {
	var out T
	err := c.do(ctx, http.MethodPut, itemPath(res, id), input, &out)
	return out, err
}

// Delete removes the entity with id.
func Delete(ctx context.Context, c *Client, res core.Resource, id int64) error {
	return c.do(ctx, http.MethodDelete, itemPath(res, id), nil, nil)
}

// ListAll walks every page of res with the given page size. It is used for
// option lists and exports, where the console needs the whole collection.
func ListAll[T any](ctx context.Context, c *Client, res core.Resource, p ListParams) ([]T, error) {
	if p.Limit <= 0 {
		p.Limit = 100
	}
	p.Page = 1
	var all []T
	for {
		page, err := List[T](ctx, c, res, p)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Items...)
		// A store that ignores the page parameter keeps answering with the
		// same page; stop instead of walking it forever.
		if !page.Pagination.HasNext() || len(page.Items) == 0 || page.Pagination.CurrentPage != p.Page {
			return all, nil
		}
		p.Page++
	}
}
