package api

import (
	"context"
	"net/http"

	"github.com/mmcdole/folio/internal/domain"
)

// skillUpdate is one entry of a batch update. The server applies data as
// a partial update of the skill with the given id.
type skillUpdate struct {
	ID   domain.ID    `json:"id"`
	Data domain.Skill `json:"data"`
}

// BatchUpdateSkills updates several skills in one transaction. The server
// applies all of them or none.
func (c *Client) BatchUpdateSkills(ctx context.Context, skills []domain.Skill) error {
	updates := make([]skillUpdate, 0, len(skills))
	for _, s := range skills {
		id := s.ID
		s.ID = ""
		updates = append(updates, skillUpdate{ID: id, Data: s})
	}

	req, err := jsonRequest(http.MethodPut, "/skills/batch", map[string]any{"updates": updates})
	if err != nil {
		return err
	}
	_, err = c.do(ctx, req)
	return err
}
