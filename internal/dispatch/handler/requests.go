package handler

import (
	"strings"

	dErrors "disha/pkg/domain-errors"
)

// RegisterSubscriberRequest is the HTTP request body for POST /webhooks.
type RegisterSubscriberRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Validate checks the registration request.
func (r *RegisterSubscriberRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	return validateURL(r.URL)
}
