package session

// EventType identifies a session event pushed to stream subscribers.
type EventType string

const (
	// EventTick carries the remaining seconds, once per countdown period.
	EventTick EventType = "tick"
	// EventWarning is an advisory proctoring signal (tab blur). Does not
	// terminate the session.
	EventWarning EventType = "warning"
	// EventViolation announces the one unauthorized full-screen exit.
	EventViolation EventType = "violation"
	// EventSubmitted announces the finalized submission and its score.
	EventSubmitted EventType = "submitted"
	// EventExitFullscreen tells the surrounding UI to leave kiosk mode.
	EventExitFullscreen EventType = "exit_fullscreen"
)

// Event is a single notification from the controller to its subscribers.
type Event struct {
	Type      EventType `json:"event"`
	Remaining int       `json:"remaining_seconds,omitempty"`
	Score     int       `json:"score,omitempty"`
	Trigger   Trigger   `json:"trigger,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}
