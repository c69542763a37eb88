package amqp

import (
	"encoding/json"
	"time"
)

// RecordEvent announces a change to one stored record. Consumers fetch the
// record itself if they need more than the id.
type RecordEvent struct {
	Collection string    `json:"collection"`
	Operation  string    `json:"operation"`
	ID         string    `json:"id"`
	Email      string    `json:"email,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewRecordEvent(collection, operation, id, email string) *RecordEvent {
	return &RecordEvent{
		Collection: collection,
		Operation:  operation,
		ID:         id,
		Email:      email,
		Timestamp:  time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RecordEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RecordEventFromJSON(data []byte) (*RecordEvent, error) {
	var msg RecordEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
