package travel

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TopicLetters carries every travel-letter request change. The projection
// builder consumes it to keep the batch travel status view current.
const TopicLetters = "disha.travel"

// Event is one request change on the wire. CorrelationID derives from
// (letterID, version); consumers treat redeliveries as no-ops.
type Event struct {
	CorrelationID uuid.UUID `json:"correlation_id"`
	LetterID      string    `json:"letter_id"`
	BatchID       string    `json:"batch_id"`
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
}

// Encode marshals the event for the wire.
func (e Event) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal travel letter event: %w", err)
	}
	return data, nil
}

// DecodeEvent unmarshals a wire payload.
func DecodeEvent(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("unmarshal travel letter event: %w", err)
	}
	return e, nil
}
