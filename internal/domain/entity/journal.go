package entity

import "time"

// Delivery outcomes recorded in the event journal
const (
	OutcomePublished = "published"
	OutcomeFailed    = "failed"
)

// JournalEntry records one delivery attempt of a passenger event
type JournalEntry struct {
	EventID     string          `json:"eventId" bson:"eventId"`
	EventType   string          `json:"eventType" bson:"eventType"`
	PassengerID int64           `json:"passengerId" bson:"passengerId"`
	Status      PassengerStatus `json:"status,omitempty" bson:"status,omitempty"`
	Outcome     string          `json:"outcome" bson:"outcome"`
	Attempt     int             `json:"attempt" bson:"attempt"`
	Error       string          `json:"error,omitempty" bson:"error,omitempty"`
	OccurredAt  time.Time       `json:"occurredAt" bson:"occurredAt"`
	RecordedAt  time.Time       `json:"recordedAt" bson:"recordedAt"`
}
