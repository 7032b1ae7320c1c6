package entity

import "time"

// OutboxMessage is an envelope waiting in the outbox for delivery to the broker
type OutboxMessage struct {
	ID           string
	AggregateID  int64
	EventType    string
	Payload      []byte
	Attempts     int
	LastError    string
	AvailableAt  time.Time
	CreatedAt    time.Time
	DispatchedAt *time.Time
	ParkedAt     *time.Time
}

// Envelope decodes the stored payload
func (m *OutboxMessage) Envelope() (*Envelope, error) {
	return DecodeEnvelope(m.ID, m.AggregateID, m.Payload)
}
