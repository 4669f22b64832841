package pool

import (
	"fmt"

	"github.com/google/uuid"
)

// Event is a requested lifecycle transition.
type Event string

const (
	EventClaim    Event = "claim"
	EventStart    Event = "start"
	EventComplete Event = "complete"
	EventCancel   Event = "cancel"
)

// transition is a single allowed edge in the lifecycle state machine.
type transition struct {
	from  Status
	event Event
	to    Status
}

var transitionsTable = []transition{
	{StatusPending, EventClaim, StatusClaimed},
	{StatusClaimed, EventStart, StatusInProgress},
	{StatusClaimed, EventCancel, StatusCancelled},
	{StatusInProgress, EventComplete, StatusCompleted},
	{StatusInProgress, EventCancel, StatusCancelled},
}

// transitionFor returns the target status for a state+event pair.
func transitionFor(from Status, event Event) (Status, bool) {
	for _, tr := range transitionsTable {
		if tr.from == from && tr.event == event {
			return tr.to, true
		}
	}
	return "", false
}

// Transition decides the next status for an item in state current when
// actor requests event. It is pure: no clock, no store access, no side
// effects. Ownership is checked for every event except Claim, which is
// the one transition that creates ownership.
//
// A Claim against a non-PENDING item fails with ErrAlreadyClaimed rather
// than the generic ErrInvalidTransition so callers can tell "someone beat
// you to it" apart from stale-state errors.
func Transition(current Status, event Event, actor uuid.UUID, owner *uuid.UUID) (Status, error) {
	next, ok := transitionFor(current, event)
	if !ok {
		if event == EventClaim {
			return "", fmt.Errorf("%w: item is %s", ErrAlreadyClaimed, current)
		}
		return "", fmt.Errorf("%w: cannot %s a %s item", ErrInvalidTransition, event, current)
	}
	if event != EventClaim {
		if owner == nil || *owner != actor {
			return "", fmt.Errorf("%w: %s requested by %s", ErrNotOwner, event, actor)
		}
	}
	return next, nil
}
