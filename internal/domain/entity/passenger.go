// internal/domain/entity/passenger.go
package entity

import (
	"fmt"
	"slices"
	"time"
)

// PassengerStatus is the processing state of a passenger on a flight
type PassengerStatus string

const (
	StatusBooked    PassengerStatus = "Booked"
	StatusCheckedIn PassengerStatus = "CheckedIn"
	StatusBoarded   PassengerStatus = "Boarded"
	StatusOffloaded PassengerStatus = "Offloaded"
)

func (s PassengerStatus) String() string {
	return string(s)
}

// IsValid reports whether s is one of the four known statuses
func (s PassengerStatus) IsValid() bool {
	return slices.Contains(AllPassengerStatuses(), s)
}

// AllPassengerStatuses returns every status in lifecycle order
func AllPassengerStatuses() []PassengerStatus {
	return []PassengerStatus{
		StatusBooked,
		StatusCheckedIn,
		StatusBoarded,
		StatusOffloaded,
	}
}

// ParsePassengerStatus converts a raw value into a PassengerStatus.
// An empty value yields Booked.
func ParsePassengerStatus(raw string) (PassengerStatus, error) {
	if raw == "" {
		return StatusBooked, nil
	}
	s := PassengerStatus(raw)
	if !s.IsValid() {
		return "", fmt.Errorf("unknown passenger status %q, expected one of %v", raw, AllPassengerStatuses())
	}
	return s, nil
}

// Passenger represents a booked traveller on a single flight
type Passenger struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	PNR          string          `json:"pnr"`
	FlightNumber string          `json:"flightNumber"`
	Status       PassengerStatus `json:"status"`
	Version      int64           `json:"version"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// Clone returns a copy that can be handed out without sharing state
func (p *Passenger) Clone() *Passenger {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// StatusUpdate describes a single status write.
//
// ExpectedVersion of zero makes the write unconditional. When EventType is set,
// the store builds an envelope from the updated row and queues it in the outbox
// within the same transaction; the queued message becomes eligible for the
// dispatcher after RelayAfter.
type StatusUpdate struct {
	PassengerID     int64
	Status          PassengerStatus
	ExpectedVersion int64
	EventType       string
	RelayAfter      time.Duration
}

// StatusChange is the committed result of a StatusUpdate
type StatusChange struct {
	Passenger *Passenger
	Envelope  *Envelope
}
