package types

import "github.com/m-mizutani/goerr/v2"

// DeliveryState governs how a classified notification is dispatched:
// sent immediately, dropped, or buffered for a scheduled digest.
type DeliveryState string

const (
	DeliveryRealtime DeliveryState = "realtime"
	DeliveryDaily    DeliveryState = "daily"
	DeliveryWeekly   DeliveryState = "weekly"
	DeliveryMuted    DeliveryState = "muted"
)

// AllDeliveryStates returns all valid delivery states
func AllDeliveryStates() []DeliveryState {
	return []DeliveryState{
		DeliveryRealtime,
		DeliveryDaily,
		DeliveryWeekly,
		DeliveryMuted,
	}
}

// IsValid checks if the delivery state is valid
func (s DeliveryState) IsValid() bool {
	switch s {
	case DeliveryRealtime, DeliveryDaily, DeliveryWeekly, DeliveryMuted:
		return true
	default:
		return false
	}
}

// IsScheduled reports whether notifications for this state are buffered
// and flushed by the digest scheduler.
func (s DeliveryState) IsScheduled() bool {
	return s == DeliveryDaily || s == DeliveryWeekly
}

// Normalize returns the state, treating empty as DeliveryRealtime
func (s DeliveryState) Normalize() DeliveryState {
	if s == "" {
		return DeliveryRealtime
	}
	return s
}

// String returns the string representation of the delivery state
func (s DeliveryState) String() string {
	return string(s)
}

// ParseDeliveryState parses a string into a DeliveryState
func ParseDeliveryState(s string) (DeliveryState, error) {
	state := DeliveryState(s)
	if !state.IsValid() {
		return "", goerr.New("invalid delivery state", goerr.V("state", s))
	}
	return state, nil
}
