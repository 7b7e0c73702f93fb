package resource

import (
	"log/slog"

	"github.com/mmcdole/folio/internal/api"
	"github.com/mmcdole/folio/internal/cache"
	"github.com/mmcdole/folio/internal/domain"
	"github.com/mmcdole/folio/internal/validate"
)

// NewSkills returns the skills service
func NewSkills(client *api.Client, c *cache.Cache, n domain.Notifier, logger *slog.Logger) *Service[domain.Skill] {
	return NewService(Config[domain.Skill]{
		Key:      domain.KeySkills,
		Label:    "skill",
		Remote:   api.Skills(client),
		Validate: validate.Skill,
		Batch:    client.BatchUpdateSkills,
	}, c, n, logger)
}

// NewProjects returns the projects service
func NewProjects(client *api.Client, c *cache.Cache, n domain.Notifier, logger *slog.Logger) *Service[domain.Project] {
	return NewService(Config[domain.Project]{
		Key:      domain.KeyProjects,
		Label:    "project",
		Remote:   api.Projects(client),
		Validate: validate.Project,
	}, c, n, logger)
}

// NewPosts returns the posts service. New posts without a slug get one
// derived from their title.
func NewPosts(client *api.Client, c *cache.Cache, n domain.Notifier, logger *slog.Logger) *Service[domain.Post] {
	return NewService(Config[domain.Post]{
		Key:      domain.KeyPosts,
		Label:    "post",
		Remote:   api.Posts(client),
		Validate: validate.Post,
		Prepare: func(p domain.Post) domain.Post {
			if p.Slug == "" {
				p.Slug = validate.Slugify(p.Title)
			}
			return p
		},
	}, c, n, logger)
}

// NewActivities returns the activity feed service. Entries can be logged
// but not edited or removed.
func NewActivities(client *api.Client, c *cache.Cache, n domain.Notifier, logger *slog.Logger) *Service[domain.Activity] {
	return NewService(Config[domain.Activity]{
		Key:        domain.KeyActivities,
		Label:      "activity",
		Remote:     api.Activities(client),
		Validate:   validate.Activity,
		AppendOnly: true,
	}, c, n, logger)
}
