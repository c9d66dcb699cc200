package handler

import (
	"strings"

	"disha/internal/sos/models"
	id "disha/pkg/domain"
	dErrors "disha/pkg/domain-errors"
)

// RaiseRequest is the HTTP request body for POST /sos.
type RaiseRequest struct {
	CandidateID string `json:"candidate_id"`
	Category    string `json:"category"`
	Priority    string `json:"priority"`
	Description string `json:"description"`

	parsedCandidateID id.CandidateID
	parsedPriority    models.Priority
}

// Validate validates and parses the raise request.
func (r *RaiseRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	candidateID, err := id.ParseCandidateID(strings.TrimSpace(r.CandidateID))
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "candidate_id must be a valid id")
	}
	r.parsedCandidateID = candidateID

	r.Category = strings.TrimSpace(r.Category)
	if r.Category == "" {
		return dErrors.New(dErrors.CodeValidation, "category is required")
	}
	priority, err := models.ParsePriority(strings.TrimSpace(r.Priority))
	if err != nil {
		return err
	}
	r.parsedPriority = priority

	r.Description = strings.TrimSpace(r.Description)
	if len(r.Description) > 2000 {
		return dErrors.New(dErrors.CodeValidation, "description must be at most 2000 characters")
	}
	return nil
}

// ParsedCandidateID returns the candidate id parsed during Validate.
func (r *RaiseRequest) ParsedCandidateID() id.CandidateID { return r.parsedCandidateID }

// ParsedPriority returns the priority parsed during Validate.
func (r *RaiseRequest) ParsedPriority() models.Priority { return r.parsedPriority }

// UpdateRequest is the HTTP request body for PATCH /sos/{caseID}.
type UpdateRequest struct {
	Status          string `json:"status"`
	AssignedPOCID   string `json:"assigned_poc_id,omitempty"`
	ResolutionNote  string `json:"resolution_note,omitempty"`
	ExpectedVersion int64  `json:"expected_version"`

	parsedStatus models.Status
}

// Validate validates and parses the update request.
func (r *UpdateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	status, err := models.ParseStatus(strings.TrimSpace(r.Status))
	if err != nil {
		return err
	}
	r.parsedStatus = status
	if r.ExpectedVersion < 1 {
		return dErrors.New(dErrors.CodeValidation, "expected_version is required")
	}
	r.AssignedPOCID = strings.TrimSpace(r.AssignedPOCID)
	r.ResolutionNote = strings.TrimSpace(r.ResolutionNote)
	return nil
}

// ParsedStatus returns the status parsed during Validate.
func (r *UpdateRequest) ParsedStatus() models.Status { return r.parsedStatus }
