package handler

import (
	"strings"

	"disha/internal/lifecycle/models"
	dErrors "disha/pkg/domain-errors"
)

// IntakeRequest is the HTTP request body for POST /candidates.
type IntakeRequest struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	District string `json:"district"`
}

// Validate validates the intake request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *IntakeRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Name = strings.TrimSpace(r.Name)
	r.Phone = strings.TrimSpace(r.Phone)
	r.District = strings.TrimSpace(r.District)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if len(r.Name) > 200 {
		return dErrors.New(dErrors.CodeValidation, "name must be at most 200 characters")
	}
	if r.Phone == "" {
		return dErrors.New(dErrors.CodeValidation, "phone is required")
	}
	if len(r.Phone) > 20 {
		return dErrors.New(dErrors.CodeValidation, "phone must be at most 20 characters")
	}
	return nil
}

// TransitionRequest is the HTTP request body for
// POST /candidates/{candidateID}/transitions.
type TransitionRequest struct {
	Axis            string            `json:"axis"`
	ToState         string            `json:"to_state"`
	ExpectedVersion int64             `json:"expected_version"`
	Payload         map[string]string `json:"payload,omitempty"`

	parsedAxis models.Axis
}

// Validate validates and parses the transition request.
func (r *TransitionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	axis, err := models.ParseAxis(strings.TrimSpace(r.Axis))
	if err != nil {
		return err
	}
	r.parsedAxis = axis
	r.ToState = strings.TrimSpace(r.ToState)
	if r.ToState == "" {
		return dErrors.New(dErrors.CodeValidation, "to_state is required")
	}
	if r.ExpectedVersion < 1 {
		return dErrors.New(dErrors.CodeValidation, "expected_version is required")
	}
	return nil
}

// ParsedAxis returns the axis parsed during Validate.
func (r *TransitionRequest) ParsedAxis() models.Axis { return r.parsedAxis }

// BatchTransitionRequest is the HTTP request body for
// POST /batches/{batchID}/transitions.
type BatchTransitionRequest struct {
	Axis    string            `json:"axis"`
	ToState string            `json:"to_state"`
	Payload map[string]string `json:"payload,omitempty"`

	parsedAxis models.Axis
}

// Validate validates and parses the batch transition request.
func (r *BatchTransitionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	axis, err := models.ParseAxis(strings.TrimSpace(r.Axis))
	if err != nil {
		return err
	}
	r.parsedAxis = axis
	r.ToState = strings.TrimSpace(r.ToState)
	if r.ToState == "" {
		return dErrors.New(dErrors.CodeValidation, "to_state is required")
	}
	return nil
}

// ParsedAxis returns the axis parsed during Validate.
func (r *BatchTransitionRequest) ParsedAxis() models.Axis { return r.parsedAxis }
