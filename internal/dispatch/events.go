// Package dispatch fans transition events out to collaborators. Events are
// written to a transactional outbox in the same commit as the transition
// itself; a relay publishes them to Kafka with bounded retries and a
// dead-letter queue. Delivery is at-least-once, so every consumer keys
// idempotency on the event's correlation id.
package dispatch

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TopicTransitions carries every committed transition. Collaborators consume
// it under their own consumer groups.
const TopicTransitions = "disha.transitions"

// Event is the outbound side-effect payload. CorrelationID deterministically
// derives from (candidateId, transitionRecordId); receivers must treat
// duplicate correlation ids as no-ops.
type Event struct {
	CorrelationID uuid.UUID `json:"correlation_id"`
	CandidateID   string    `json:"candidate_id"`
	BatchID       string    `json:"batch_id,omitempty"`
	Axis          string    `json:"axis"`
	FromState     string    `json:"from_state"`
	ToState       string    `json:"to_state"`
	ActorRole     string    `json:"actor_role"`
	Timestamp     time.Time `json:"timestamp"`
}

// Encode marshals the event for the wire.
func (e Event) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal transition event: %w", err)
	}
	return data, nil
}

// DecodeEvent unmarshals a wire payload.
func DecodeEvent(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("unmarshal transition event: %w", err)
	}
	return e, nil
}
