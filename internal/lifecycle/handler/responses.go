package handler

import (
	"time"

	"disha/internal/lifecycle/engine"
	"disha/internal/lifecycle/models"
)

// StateResponse is the per-axis lifecycle state of a candidate.
type StateResponse struct {
	Counselling string `json:"counselling"`
	Consent     string `json:"consent"`
	Documents   string `json:"documents"`
	Pipeline    string `json:"pipeline"`
}

// CandidateResponse is the HTTP shape of the candidate aggregate.
type CandidateResponse struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Phone     string        `json:"phone"`
	District  string        `json:"district,omitempty"`
	BatchID   string        `json:"batch_id,omitempty"`
	State     StateResponse `json:"state"`
	Version   int64         `json:"version"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// FromCandidate converts the aggregate to its HTTP shape.
func FromCandidate(cand models.Candidate) CandidateResponse {
	resp := CandidateResponse{
		ID:       cand.ID.String(),
		Name:     cand.Name,
		Phone:    cand.Phone,
		District: cand.District,
		State: StateResponse{
			Counselling: string(cand.State.Counselling),
			Consent:     string(cand.State.Consent),
			Documents:   string(cand.State.Documents),
			Pipeline:    string(cand.State.Pipeline),
		},
		Version:   cand.Version,
		CreatedAt: cand.CreatedAt,
		UpdatedAt: cand.UpdatedAt,
	}
	if !cand.BatchID.IsNil() {
		resp.BatchID = cand.BatchID.String()
	}
	return resp
}

// GuardResultResponse is one guard verdict on an audit record.
type GuardResultResponse struct {
	Name   string `json:"name"`
	Pass   bool   `json:"pass"`
	Reason string `json:"reason,omitempty"`
}

// RecordResponse is the HTTP shape of one audit record.
type RecordResponse struct {
	ID            string                `json:"id"`
	Seq           int64                 `json:"seq"`
	Axis          string                `json:"axis"`
	FromState     string                `json:"from_state,omitempty"`
	ToState       string                `json:"to_state"`
	ActorRole     string                `json:"actor_role"`
	ActorID       string                `json:"actor_id,omitempty"`
	Device        string                `json:"device,omitempty"`
	GuardResults  []GuardResultResponse `json:"guard_results,omitempty"`
	Payload       map[string]string     `json:"payload,omitempty"`
	Timestamp     time.Time             `json:"timestamp"`
	CorrelationID string                `json:"correlation_id"`
}

// FromRecord converts an audit record to its HTTP shape.
func FromRecord(rec models.TransitionRecord) RecordResponse {
	resp := RecordResponse{
		ID:            rec.ID.String(),
		Seq:           rec.Seq,
		Axis:          string(rec.Axis),
		FromState:     rec.FromState,
		ToState:       rec.ToState,
		ActorRole:     string(rec.ActorRole),
		ActorID:       rec.ActorID,
		Device:        rec.Device,
		Payload:       rec.Payload,
		Timestamp:     rec.Timestamp,
		CorrelationID: rec.CorrelationID.String(),
	}
	for _, g := range rec.GuardResults {
		resp.GuardResults = append(resp.GuardResults, GuardResultResponse(g))
	}
	return resp
}

// TransitionResponse is returned for an accepted transition.
type TransitionResponse struct {
	Candidate CandidateResponse `json:"candidate"`
	Record    RecordResponse    `json:"record"`
}

// HistoryResponse pages a candidate's audit trail. NextAfterSeq feeds the
// next page's after_seq query parameter.
type HistoryResponse struct {
	Records      []RecordResponse `json:"records"`
	NextAfterSeq int64            `json:"next_after_seq,omitempty"`
}

// FromHistory converts a page of records.
func FromHistory(records []models.TransitionRecord, pageSize int) HistoryResponse {
	resp := HistoryResponse{Records: make([]RecordResponse, 0, len(records))}
	for _, rec := range records {
		resp.Records = append(resp.Records, FromRecord(rec))
	}
	if len(records) == pageSize && pageSize > 0 {
		resp.NextAfterSeq = records[len(records)-1].Seq
	}
	return resp
}

// BatchResultResponse is one candidate's outcome in a batch transition.
type BatchResultResponse struct {
	CandidateID string          `json:"candidate_id"`
	Record      *RecordResponse `json:"record,omitempty"`
	Error       string          `json:"error,omitempty"`
	Reason      string          `json:"reason,omitempty"`
}

// RebuildResponse reports a replay of the candidate's history.
type RebuildResponse struct {
	State   StateResponse `json:"state"`
	Version int64         `json:"version"`
}

// FromBatchResults converts batch outcomes, keeping per-candidate errors as
// data rather than failing the whole response.
func FromBatchResults(results []engine.BatchResult) []BatchResultResponse {
	out := make([]BatchResultResponse, 0, len(results))
	for _, res := range results {
		item := BatchResultResponse{CandidateID: res.CandidateID.String()}
		if res.Err != nil {
			item.Error = errCode(res.Err)
			item.Reason = errMessage(res.Err)
		} else {
			rec := FromRecord(res.Record)
			item.Record = &rec
		}
		out = append(out, item)
	}
	return out
}
