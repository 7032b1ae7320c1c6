package broker

import "errors"

var (
	// ErrBrokerUnavailable is returned when a publish could not be handed to
	// the broker before the caller's deadline
	ErrBrokerUnavailable = errors.New("broker unavailable")
	// ErrPublisherClosed is returned by Publish after Close
	ErrPublisherClosed = errors.New("publisher closed")
)
