package handler

import (
	"time"

	"disha/internal/travel/models"
)

// RequestResponse is the JSON shape of a travel-letter request.
type RequestResponse struct {
	ID          string    `json:"id"`
	BatchID     string    `json:"batch_id"`
	Status      string    `json:"status"`
	RequestedBy string    `json:"requested_by,omitempty"`
	ApprovedBy  string    `json:"approved_by,omitempty"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FromRequest converts a request aggregate to its response shape.
func FromRequest(req models.Request) RequestResponse {
	return RequestResponse{
		ID:          req.ID.String(),
		BatchID:     req.BatchID.String(),
		Status:      string(req.Status),
		RequestedBy: req.RequestedBy,
		ApprovedBy:  req.ApprovedBy,
		Version:     req.Version,
		CreatedAt:   req.CreatedAt,
		UpdatedAt:   req.UpdatedAt,
	}
}

// RequestsResponse wraps a list of travel-letter requests.
type RequestsResponse struct {
	Requests []RequestResponse `json:"requests"`
}

// FromRequests converts a list of requests to its response shape.
func FromRequests(reqs []models.Request) RequestsResponse {
	out := RequestsResponse{Requests: make([]RequestResponse, 0, len(reqs))}
	for _, req := range reqs {
		out.Requests = append(out.Requests, FromRequest(req))
	}
	return out
}
