package usecase

import (
	"fmt"

	"passenger-service/internal/domain/entity"
)

// Policy names accepted by ParseTransitionPolicy
const (
	PolicyPermissive = "permissive"
	PolicyStrict     = "strict"
)

// TransitionPolicy decides whether a passenger may move from one status to another
type TransitionPolicy interface {
	Allows(from, to entity.PassengerStatus) bool
	Name() string
}

type permissivePolicy struct{}

// PermissivePolicy allows every transition, including moving backwards
func PermissivePolicy() TransitionPolicy { return permissivePolicy{} }

func (permissivePolicy) Allows(from, to entity.PassengerStatus) bool { return to.IsValid() }
func (permissivePolicy) Name() string                                { return PolicyPermissive }

type strictPolicy struct {
	allowed map[entity.PassengerStatus]map[entity.PassengerStatus]bool
}

// StrictPolicy follows the forward lifecycle. Repeating the current status is
// always allowed, and an offloaded passenger may check in again.
func StrictPolicy() TransitionPolicy {
	return strictPolicy{allowed: map[entity.PassengerStatus]map[entity.PassengerStatus]bool{
		entity.StatusBooked:    {entity.StatusCheckedIn: true, entity.StatusOffloaded: true},
		entity.StatusCheckedIn: {entity.StatusCheckedIn: true, entity.StatusBoarded: true, entity.StatusOffloaded: true},
		entity.StatusBoarded:   {entity.StatusBoarded: true, entity.StatusOffloaded: true},
		entity.StatusOffloaded: {entity.StatusOffloaded: true, entity.StatusCheckedIn: true},
	}}
}

func (p strictPolicy) Allows(from, to entity.PassengerStatus) bool {
	return p.allowed[from][to]
}

func (strictPolicy) Name() string { return PolicyStrict }

// ParseTransitionPolicy maps a configured name to a policy. Empty means permissive.
func ParseTransitionPolicy(name string) (TransitionPolicy, error) {
	switch name {
	case "", PolicyPermissive:
		return PermissivePolicy(), nil
	case PolicyStrict:
		return StrictPolicy(), nil
	default:
		return nil, fmt.Errorf("unknown transition policy %q", name)
	}
}
