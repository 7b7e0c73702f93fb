package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/mmcdole/folio/internal/domain"
)

// Resource is the CRUD surface of one collection endpoint
type Resource[T any] struct {
	client *Client
	path   string
	list   func([]byte) ([]T, error)
	one    func([]byte) (T, error)
}

// NewResource binds a collection path to a codec
func NewResource[T any](client *Client, path string, codec Codec[T]) *Resource[T] {
	return &Resource[T]{
		client: client,
		path:   path,
		list:   codec.List,
		one:    codec.One,
	}
}

// Skills returns the /skills resource
func Skills(c *Client) *Resource[domain.Skill] {
	return NewResource(c, "/skills", SkillCodec)
}

// Projects returns the /projects resource
func Projects(c *Client) *Resource[domain.Project] {
	return &Resource[domain.Project]{
		client: c,
		path:   "/projects",
		list:   decodeProjects,
		one:    decodeProject,
	}
}

// Posts returns the /posts resource, addressed by slug
func Posts(c *Client) *Resource[domain.Post] {
	return NewResource(c, "/posts", PostCodec)
}

// Activities returns the /activities resource
func Activities(c *Client) *Resource[domain.Activity] {
	return NewResource(c, "/activities", ActivityCodec)
}

// Path returns the collection path
func (r *Resource[T]) Path() string {
	return r.path
}

func (r *Resource[T]) itemPath(id string) string {
	return r.path + "/" + url.PathEscape(id)
}

// FetchAll returns the whole collection
func (r *Resource[T]) FetchAll(ctx context.Context) ([]T, error) {
	body, err := r.client.do(ctx, request{method: http.MethodGet, path: r.path})
	if err != nil {
		return nil, err
	}
	items, err := r.list(body)
	if err != nil {
		r.client.logger.Error("invalid list response", "path", r.path, "error", err)
		return nil, err
	}
	return items, nil
}

// FetchOne returns a single record
func (r *Resource[T]) FetchOne(ctx context.Context, id string) (T, error) {
	var zero T
	body, err := r.client.do(ctx, request{method: http.MethodGet, path: r.itemPath(id)})
	if err != nil {
		return zero, err
	}
	item, err := r.one(body)
	if errors.Is(err, errEmptyBody) {
		return zero, domain.ErrNotFound
	}
	return item, err
}

// Create posts payload and returns the server's record. When the server
// replies without a body the payload is returned unchanged.
func (r *Resource[T]) Create(ctx context.Context, payload T) (T, error) {
	return r.send(ctx, http.MethodPost, r.path, payload)
}

// Update replaces the record at id and returns the server's record
func (r *Resource[T]) Update(ctx context.Context, id string, payload T) (T, error) {
	return r.send(ctx, http.MethodPut, r.itemPath(id), payload)
}

// Remove deletes the record at id
func (r *Resource[T]) Remove(ctx context.Context, id string) error {
	_, err := r.client.do(ctx, request{method: http.MethodDelete, path: r.itemPath(id)})
	return err
}

func (r *Resource[T]) send(ctx context.Context, method, path string, payload T) (T, error) {
	var zero T
	req, err := jsonRequest(method, path, payload)
	if err != nil {
		return zero, err
	}
	body, err := r.client.do(ctx, req)
	if err != nil {
		return zero, err
	}
	item, err := r.one(body)
	if errors.Is(err, errEmptyBody) {
		return payload, nil
	}
	if err != nil {
		r.client.logger.Error("invalid record response", "path", path, "error", err)
		return zero, err
	}
	return item, nil
}
