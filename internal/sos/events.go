// Package sos tracks SOS incidents raised by or on behalf of candidates.
// Cases overlay the placement pipeline: they reference candidates and show
// up in projections, but never gate lifecycle transitions.
package sos

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TopicCases carries every SOS case change. The escalation tracker and the
// projection builder consume it under separate consumer groups.
const TopicCases = "disha.sos"

// Event is one case change on the wire. CorrelationID derives from
// (caseID, version); consumers treat redeliveries as no-ops.
type Event struct {
	CorrelationID uuid.UUID `json:"correlation_id"`
	CaseID        string    `json:"case_id"`
	CandidateID   string    `json:"candidate_id"`
	Priority      string    `json:"priority"`
	Status        string    `json:"status"`
	Escalated     bool      `json:"escalated"`
	Timestamp     time.Time `json:"timestamp"`
}

// Encode marshals the event for the wire.
func (e Event) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal sos event: %w", err)
	}
	return data, nil
}

// DecodeEvent unmarshals a wire payload.
func DecodeEvent(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("unmarshal sos event: %w", err)
	}
	return e, nil
}
