package handler

import (
	"github.com/daap14/parley/internal/team"
)

const timeLayout = "2006-01-02T15:04:05Z"

type teamResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

type membershipResponse struct {
	ID         string       `json:"id"`
	Role       string       `json:"role"`
	AcceptedAt *string      `json:"acceptedAt"`
	Team       teamResponse `json:"team"`
}

func toTeamResponse(t *team.Team) *teamResponse {
	if t == nil {
		return nil
	}
	return &teamResponse{
		ID:        t.ID.String(),
		Name:      t.Name,
		CreatedAt: t.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt: t.UpdatedAt.UTC().Format(timeLayout),
	}
}

func toMembershipResponses(memberships []team.Membership) []membershipResponse {
	items := make([]membershipResponse, 0, len(memberships))
	for i := range memberships {
		m := &memberships[i]
		item := membershipResponse{
			ID:   m.ID.String(),
			Role: m.Role,
		}
		if m.AcceptedAt != nil {
			s := m.AcceptedAt.UTC().Format(timeLayout)
			item.AcceptedAt = &s
		}
		if t := toTeamResponse(m.Team); t != nil {
			item.Team = *t
		} else {
			item.Team = teamResponse{ID: m.TeamID.String()}
		}
		items = append(items, item)
	}
	return items
}
