package handler

import (
	"strings"

	"disha/internal/travel/models"
	dErrors "disha/pkg/domain-errors"
)

// AdvanceRequest is the HTTP request body for PATCH /travel-letters/{letterID}.
type AdvanceRequest struct {
	Status          string `json:"status"`
	ExpectedVersion int64  `json:"expected_version"`

	parsedStatus models.Status
}

// Validate validates and parses the advance request.
func (r *AdvanceRequest) Validate() error {
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
	return nil
}

// ParsedStatus returns the status parsed during Validate.
func (r *AdvanceRequest) ParsedStatus() models.Status { return r.parsedStatus }
