package handler

import (
	"time"

	"disha/internal/sos/models"
)

// CaseResponse is the HTTP shape of one SOS case.
type CaseResponse struct {
	ID             string     `json:"id"`
	CandidateID    string     `json:"candidate_id"`
	Category       string     `json:"category"`
	Priority       string     `json:"priority"`
	Status         string     `json:"status"`
	AssignedPOCID  string     `json:"assigned_poc_id,omitempty"`
	Description    string     `json:"description,omitempty"`
	ResolutionNote string     `json:"resolution_note,omitempty"`
	Escalated      bool       `json:"escalated"`
	Version        int64      `json:"version"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

// FromCase converts a case to its HTTP shape.
func FromCase(c models.Case) CaseResponse {
	return CaseResponse{
		ID:             c.ID.String(),
		CandidateID:    c.CandidateID.String(),
		Category:       c.Category,
		Priority:       string(c.Priority),
		Status:         string(c.Status),
		AssignedPOCID:  c.AssignedPOCID,
		Description:    c.Description,
		ResolutionNote: c.ResolutionNote,
		Escalated:      c.Escalated,
		Version:        c.Version,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
		ResolvedAt:     c.ResolvedAt,
	}
}

// FromCases converts a list of cases.
func FromCases(cases []models.Case) []CaseResponse {
	out := make([]CaseResponse, 0, len(cases))
	for _, c := range cases {
		out = append(out, FromCase(c))
	}
	return out
}
