package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mmcdole/folio/internal/domain"
)

// DefaultPageSize is the blog feed's page size
const DefaultPageSize = 10

// FetchPostsPage returns one page of posts, optionally filtered by a
// server-side search query
func (c *Client) FetchPostsPage(ctx context.Context, page, limit int, query string) (Page[domain.Post], error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}

	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("limit", strconv.Itoa(limit))
	if query != "" {
		params.Set("q", query)
	}

	body, err := c.do(ctx, request{method: http.MethodGet, path: "/posts", query: params})
	if err != nil {
		return Page[domain.Post]{}, err
	}
	return PostCodec.Page(body, page, limit)
}

// FetchActivities returns the recent activity feed
func (c *Client) FetchActivities(ctx context.Context) ([]domain.Activity, error) {
	return Activities(c).FetchAll(ctx)
}

// ShareNetwork is a social network a post can be shared to
type ShareNetwork string

const (
	ShareLinkedIn ShareNetwork = "linkedin"
	ShareFacebook ShareNetwork = "facebook"
)

// ParseShareNetwork accepts a network name in any case
func ParseShareNetwork(s string) (ShareNetwork, error) {
	switch n := ShareNetwork(strings.ToLower(strings.TrimSpace(s))); n {
	case ShareLinkedIn, ShareFacebook:
		return n, nil
	}
	return "", domain.ValidationErrors{{Field: "network", Message: fmt.Sprintf("must be linkedin or facebook, got %q", s)}}
}

// SharePost asks the server to share a post and returns its confirmation
// message
func (c *Client) SharePost(ctx context.Context, id string, network ShareNetwork) (string, error) {
	if id == "" {
		return "", domain.ValidationErrors{{Field: "id", Message: "is required"}}
	}
	path := fmt.Sprintf("/posts/%s/share/%s", url.PathEscape(id), network)
	body, err := c.do(ctx, request{method: http.MethodPost, path: path})
	if err != nil {
		return "", err
	}

	var resp struct {
		Message string `json:"message"`
	}
	if err := jsonUnmarshal(body, &resp); err != nil || resp.Message == "" {
		return "Shared to " + network.String(), nil
	}
	return resp.Message, nil
}

func (n ShareNetwork) String() string {
	switch n {
	case ShareLinkedIn:
		return "LinkedIn"
	case ShareFacebook:
		return "Facebook"
	default:
		return string(n)
	}
}
