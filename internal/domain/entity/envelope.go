package entity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope wraps an event payload for the broker.
//
// Only EventType, Data and Timestamp are part of the wire body. ID travels as
// broker message metadata and doubles as the outbox row key; AggregateID is the
// passenger the event is about.
type Envelope struct {
	ID          string      `json:"-"`
	AggregateID int64       `json:"-"`
	EventType   string      `json:"EventType"`
	Data        interface{} `json:"Data"`
	Timestamp   time.Time   `json:"Timestamp"`
}

// NewEnvelope stamps a fresh envelope with a new id and the current UTC time
func NewEnvelope(eventType string, aggregateID int64, data interface{}) *Envelope {
	return &Envelope{
		ID:          uuid.NewString(),
		AggregateID: aggregateID,
		EventType:   eventType,
		Data:        data,
		Timestamp:   time.Now().UTC(),
	}
}

// Encode serializes the wire body
func (e *Envelope) Encode() ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s envelope: %w", e.EventType, err)
	}
	return body, nil
}

// DecodeEnvelope restores an envelope from its wire body. Data is kept as raw
// JSON so re-encoding reproduces the original payload byte for byte.
func DecodeEnvelope(id string, aggregateID int64, body []byte) (*Envelope, error) {
	var wire struct {
		EventType string          `json:"EventType"`
		Data      json.RawMessage `json:"Data"`
		Timestamp time.Time       `json:"Timestamp"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("failed to decode envelope %s: %w", id, err)
	}
	if wire.EventType == "" {
		return nil, fmt.Errorf("envelope %s has no event type", id)
	}

	return &Envelope{
		ID:          id,
		AggregateID: aggregateID,
		EventType:   wire.EventType,
		Data:        wire.Data,
		Timestamp:   wire.Timestamp,
	}, nil
}
