package entity

// Event type names announced on the passenger events channel
const (
	EventPassengerCheckedIn = "PassengerCheckedIn"
	EventPassengerBoarded   = "PassengerBoarded"
	EventPassengerOffloaded = "PassengerOffloaded"
)

// Transition ties an operation name to the status it writes and the event it announces
type Transition struct {
	Operation string
	Target    PassengerStatus
	EventType string
}

var (
	TransitionCheckIn = Transition{Operation: "checkIn", Target: StatusCheckedIn, EventType: EventPassengerCheckedIn}
	TransitionBoard   = Transition{Operation: "board", Target: StatusBoarded, EventType: EventPassengerBoarded}
	TransitionOffload = Transition{Operation: "offload", Target: StatusOffloaded, EventType: EventPassengerOffloaded}
)

// Transitions returns the three lifecycle transitions
func Transitions() []Transition {
	return []Transition{TransitionCheckIn, TransitionBoard, TransitionOffload}
}
