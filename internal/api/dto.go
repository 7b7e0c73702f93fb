package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mmcdole/folio/internal/domain"
)

// errEmptyBody means a 2xx reply carried no record
var errEmptyBody = errors.New("empty response body")

// Codec turns response bodies into validated domain records
type Codec[T any] struct {
	// Normalize fixes up a decoded record and rejects malformed ones
	Normalize func(*T) error
}

// envelope is the {data: ...} wrapper some endpoints use
type envelope struct {
	Data json.RawMessage `json:"data"`
}

// pageEnvelope is the paginated list shape
type pageEnvelope struct {
	Data       json.RawMessage `json:"data"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	PageSize   int             `json:"pageSize"`
	TotalPages int             `json:"totalPages"`
}

// Page is one page of a paginated list
type Page[T any] struct {
	Items      []T
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

// List decodes a bare array or a {data: [...]} envelope
func (c Codec[T]) List(body []byte) ([]T, error) {
	raw, err := unwrapList(body)
	if err != nil {
		return nil, err
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if items == nil {
		items = []T{}
	}
	for i := range items {
		if err := c.normalize(&items[i]); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return items, nil
}

// One decodes a bare object or a {data: {...}} envelope
func (c Codec[T]) One(body []byte) (T, error) {
	var item T
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return item, errEmptyBody
	}
	raw := body
	var env envelope
	if body[0] == '{' && json.Unmarshal(body, &env) == nil {
		if d := bytes.TrimSpace(env.Data); len(d) > 0 && d[0] == '{' {
			raw = d
		}
	}
	if err := json.Unmarshal(raw, &item); err != nil {
		return item, fmt.Errorf("failed to parse response: %w", err)
	}
	if err := c.normalize(&item); err != nil {
		return item, err
	}
	return item, nil
}

// Page decodes a paginated list. Bare arrays carry no totals; callers
// treat a short page as the last one.
func (c Codec[T]) Page(body []byte, page, limit int) (Page[T], error) {
	body = bytes.TrimSpace(body)
	result := Page[T]{Page: page, PageSize: limit}

	if len(body) > 0 && body[0] == '{' {
		var env pageEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			return result, fmt.Errorf("failed to parse response: %w", err)
		}
		items, err := c.List(env.Data)
		if err != nil {
			return result, err
		}
		result.Items = items
		result.Total = env.Total
		if env.Page > 0 {
			result.Page = env.Page
		}
		switch {
		case env.PageSize > 0:
			result.PageSize = env.PageSize
		case env.Limit > 0:
			result.PageSize = env.Limit
		}
		result.TotalPages = env.TotalPages
		if result.TotalPages == 0 && result.Total > 0 && result.PageSize > 0 {
			result.TotalPages = (result.Total + result.PageSize - 1) / result.PageSize
		}
		return result, nil
	}

	items, err := c.List(body)
	if err != nil {
		return result, err
	}
	result.Items = items
	return result, nil
}

func (c Codec[T]) normalize(item *T) error {
	if c.Normalize == nil {
		return nil
	}
	return c.Normalize(item)
}

func unwrapList(body []byte) (json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return json.RawMessage("[]"), nil
	}
	switch body[0] {
	case '[':
		return body, nil
	case '{':
		var env envelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		d := bytes.TrimSpace(env.Data)
		if len(d) == 0 || bytes.Equal(d, []byte("null")) {
			return json.RawMessage("[]"), nil
		}
		if d[0] != '[' {
			return nil, fmt.Errorf("failed to parse response: data is not a list")
		}
		return d, nil
	default:
		return nil, fmt.Errorf("failed to parse response: unexpected body")
	}
}

// === Per-endpoint codecs ===

// SkillCodec validates skill records
var SkillCodec = Codec[domain.Skill]{
	Normalize: func(s *domain.Skill) error {
		if s.ID == "" {
			return errors.New("skill without id")
		}
		return nil
	},
}

// ProjectCodec validates project records and folds the legacy tech field
var ProjectCodec = Codec[domain.Project]{
	Normalize: func(p *domain.Project) error {
		if p.ID == "" {
			return errors.New("project without id")
		}
		if p.Technologies == nil {
			p.Technologies = []string{}
		}
		return nil
	},
}

// PostCodec validates posts; the slug is their identity
var PostCodec = Codec[domain.Post]{
	Normalize: func(p *domain.Post) error {
		if p.Slug == "" {
			return errors.New("post without slug")
		}
		if p.Tags == nil {
			p.Tags = []string{}
		}
		return nil
	},
}

// ActivityCodec validates activity records
var ActivityCodec = Codec[domain.Activity]{
	Normalize: func(a *domain.Activity) error {
		if a.ID == "" {
			return errors.New("activity without id")
		}
		if a.Links == nil {
			a.Links = []string{}
		}
		return nil
	},
}

// projectDTO carries the older "tech" spelling some records still use
type projectDTO struct {
	domain.Project
	Tech []string `json:"tech"`
}

// decodeProjects folds tech into technologies before ProjectCodec runs
func decodeProjects(body []byte) ([]domain.Project, error) {
	raw, err := unwrapList(body)
	if err != nil {
		return nil, err
	}
	var dtos []projectDTO
	if err := json.Unmarshal(raw, &dtos); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	projects := make([]domain.Project, len(dtos))
	for i, dto := range dtos {
		projects[i] = dto.toDomain()
		if err := ProjectCodec.normalize(&projects[i]); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return projects, nil
}

func decodeProject(body []byte) (domain.Project, error) {
	var dto projectDTO
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return domain.Project{}, errEmptyBody
	}
	raw := body
	var env envelope
	if body[0] == '{' && json.Unmarshal(body, &env) == nil {
		if d := bytes.TrimSpace(env.Data); len(d) > 0 && d[0] == '{' {
			raw = d
		}
	}
	if err := json.Unmarshal(raw, &dto); err != nil {
		return domain.Project{}, fmt.Errorf("failed to parse response: %w", err)
	}
	p := dto.toDomain()
	return p, ProjectCodec.normalize(&p)
}

func (d projectDTO) toDomain() domain.Project {
	p := d.Project
	if len(p.Technologies) == 0 && len(d.Tech) > 0 {
		p.Technologies = d.Tech
	}
	return p
}

// loginResponse is the body of POST /auth/login
type loginResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

// verifyResponse is the body of GET /auth/verify; some deployments return
// the user bare
type verifyResponse struct {
	User *domain.User `json:"user"`
}

func decodeUser(body []byte) (domain.User, error) {
	var wrapped verifyResponse
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return domain.User{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if wrapped.User != nil {
		return *wrapped.User, nil
	}
	var user domain.User
	if err := json.Unmarshal(body, &user); err != nil {
		return domain.User{}, fmt.Errorf("failed to parse response: %w", err)
	}
	return user, nil
}

// trimmed returns s without surrounding whitespace
func trimmed(s string) string { return strings.TrimSpace(s) }

func jsonUnmarshal(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
