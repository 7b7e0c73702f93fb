package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ID is a server-assigned identifier. The API returns numeric ids for
// skills/projects and string ids elsewhere; both decode into the same type.
type ID string

// UnmarshalJSON accepts a JSON string or number
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON emits numeric ids as numbers so the server's integer
// primary keys round-trip.
func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte(`""`), nil
	}
	if _, err := strconv.ParseUint(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id ID) String() string { return string(id) }

// User is the authenticated admin account
type User struct {
	ID      ID     `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Avatar  string `json:"avatar,omitempty"`
	IsAdmin bool   `json:"isAdmin"`
}

// Skill is a single entry on the skills showcase
type Skill struct {
	ID          ID        `json:"id,omitzero"`
	Name        string    `json:"name" validate:"notblank"`
	Level       int       `json:"level" validate:"min=0,max=100"`
	Category    string    `json:"category,omitempty"`  // "frontend", "backend", ...
	Logo        string    `json:"logo,omitempty"`      // Icon name or URL
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
	UpdatedAt   time.Time `json:"updated_at,omitzero"`
}

func (s Skill) GetID() string { return string(s.ID) }

func (s Skill) WithID(id string) Skill {
	s.ID = ID(id)
	return s
}

func (s Skill) GetTitle() string { return s.Name }

func (s Skill) GetTags() []string {
	if s.Category == "" {
		return nil
	}
	return []string{s.Category}
}

func (s Skill) GetDescription() string {
	if s.Category != "" {
		return fmt.Sprintf("%s · %d%%", s.Category, s.Level)
	}
	return fmt.Sprintf("%d%%", s.Level)
}

// Project is a portfolio showcase entry
type Project struct {
	ID               ID        `json:"id,omitzero"`
	Title            string    `json:"title" validate:"notblank"`
	Description      string    `json:"description" validate:"notblank"`
	ShortDescription string    `json:"shortDescription,omitempty"`
	ImageURL         string    `json:"imageUrl,omitempty" validate:"omitempty,http_url"`
	Technologies     []string  `json:"technologies" validate:"anynotblank"`
	GithubURL        string    `json:"githubUrl,omitempty" validate:"omitempty,http_url"`
	LiveURL          string    `json:"liveUrl,omitempty" validate:"omitempty,http_url"`
	IsVisible        bool      `json:"isVisible"`
	Category         string    `json:"category,omitempty"`
	Priority         int       `json:"priority"`
	CreatedAt        time.Time `json:"createdAt,omitzero"`
	UpdatedAt        time.Time `json:"updatedAt,omitzero"`
}

func (p Project) GetID() string { return string(p.ID) }

func (p Project) WithID(id string) Project {
	p.ID = ID(id)
	return p
}

func (p Project) GetTitle() string { return p.Title }

func (p Project) GetTags() []string { return p.Technologies }

func (p Project) GetDescription() string {
	if len(p.Technologies) > 0 {
		return strings.Join(p.Technologies, ", ")
	}
	return p.ShortDescription
}

// Post is a blog post. Posts are addressed by slug, so the slug is the
// collection identity; ID is the server's numeric key.
type Post struct {
	ID          ID         `json:"id,omitzero"`
	Slug        string     `json:"slug" validate:"omitempty,slug"`
	Title       string     `json:"title" validate:"notblank"`
	Content     string     `json:"content" validate:"notblank"`
	Excerpt     string     `json:"excerpt"`
	CoverImage  string     `json:"coverImage,omitempty" validate:"omitempty,http_url"`
	Tags        []string   `json:"tags"`
	Published   bool       `json:"published"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	Author      *User      `json:"author,omitempty"`
	Likes       int        `json:"likes"`
	Views       int        `json:"views"`
	ReadTime    int        `json:"readTime"` // Minutes
	CreatedAt   time.Time  `json:"createdAt,omitzero"`
	UpdatedAt   time.Time  `json:"updatedAt,omitzero"`
}

func (p Post) GetID() string { return p.Slug }

func (p Post) WithID(id string) Post {
	p.Slug = id
	return p
}

func (p Post) GetTitle() string { return p.Title }

func (p Post) GetTags() []string { return p.Tags }

func (p Post) GetDescription() string {
	if !p.Published {
		return "draft"
	}
	if p.ReadTime > 0 {
		return fmt.Sprintf("%d min read", p.ReadTime)
	}
	return "published"
}

// Activity is an entry in the recent activity feed (read-only)
type Activity struct {
	ID          ID        `json:"id"`
	Type        string    `json:"type" validate:"notblank"` // "code", "blog", "learning", ...
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description" validate:"notblank"`
	Links       []string  `json:"links" validate:"dive,http_url"`
	CreatedAt   time.Time `json:"createdAt,omitzero"`
}

func (a Activity) GetID() string { return string(a.ID) }

func (a Activity) WithID(id string) Activity {
	a.ID = ID(id)
	return a
}

func (a Activity) GetTitle() string {
	if a.Title != "" {
		return a.Title
	}
	return a.Description
}

func (a Activity) GetDescription() string { return a.Type }

// Product is an item sold in the shop
type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  int64  `json:"priceCents"`
	Image       string `json:"image,omitempty"`
	Category    string `json:"category"`
	Stock       int    `json:"stock"`
}

func (p Product) GetID() string { return p.ID }

func (p Product) GetTitle() string { return p.Name }

func (p Product) GetTags() []string { return []string{p.Category} }

func (p Product) GetDescription() string {
	return fmt.Sprintf("%s · %s", p.Category, p.FormattedPrice())
}

// FormattedPrice returns the unit price as "4.99"
func (p Product) FormattedPrice() string {
	return FormatCents(p.PriceCents)
}

// CartLine is a product in the cart with its quantity (always >= 1)
type CartLine struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// Subtotal returns unit price times quantity, in cents
func (l CartLine) Subtotal() int64 {
	return l.Product.PriceCents * int64(l.Quantity)
}

// FormatCents renders an amount in cents as a decimal string
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
