package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer     Action = "answer"
	ActionMarkReview Action = "mark_review"
	ActionNavigate   Action = "navigate"
	ActionFullscreen Action = "fullscreen"
	ActionVisibility Action = "visibility"
	ActionSubmit     Action = "submit"
	ActionPing       Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AnswerRequest records the selected option for one question.
type AnswerRequest struct {
	Action Action `json:"action"`
	QID    string `json:"q_id"`
	Option string `json:"option"`
}

// MarkReviewRequest flags one question for later review.
type MarkReviewRequest struct {
	Action Action `json:"action"`
	QID    string `json:"q_id"`
}

// NavigateRequest moves the session cursor to a question index.
type NavigateRequest struct {
	Action Action `json:"action"`
	Index  int    `json:"index"`
}

// FullscreenRequest reports a full-screen transition from the exam shell.
type FullscreenRequest struct {
	Action Action `json:"action"`
	Active bool   `json:"active"`
}

// VisibilityRequest reports a tab visibility change.
type VisibilityRequest struct {
	Action Action `json:"action"`
	Hidden bool   `json:"hidden"`
}

// SubmitRequest is sent by the client to finish the exam.
type SubmitRequest struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventTick           Event = "tick"
	EventWarning        Event = "warning"
	EventViolation      Event = "violation"
	EventSubmitted      Event = "submitted"
	EventExitFullscreen Event = "exit_fullscreen"
	EventAck            Event = "ack"
	EventError          Event = "error"
	EventPong           Event = "pong"
)

// TickResponse carries the authoritative remaining seconds.
type TickResponse struct {
	Event     Event `json:"event"`
	Remaining int   `json:"remaining_seconds"`
}

// WarningResponse is an advisory proctoring notice.
type WarningResponse struct {
	Event  Event  `json:"event"`
	Detail string `json:"detail"`
}

// ViolationResponse announces the terminating proctoring violation.
type ViolationResponse struct {
	Event  Event  `json:"event"`
	Detail string `json:"detail"`
}

// SubmittedResponse announces the finalized submission and which of the
// three termination paths won.
type SubmittedResponse struct {
	Event   Event  `json:"event"`
	Score   int    `json:"score"`
	Trigger string `json:"trigger"`
}

// ExitFullscreenResponse tells the exam shell to leave kiosk mode.
type ExitFullscreenResponse struct {
	Event Event `json:"event"`
}

// AckResponse confirms a processed action.
type AckResponse struct {
	Event  Event  `json:"event"`
	Action Action `json:"action"`
	Index  int    `json:"index,omitempty"`
}

// ErrorResponse reports a rejected action.
type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

// PongResponse answers a ping.
type PongResponse struct {
	Event Event `json:"event"`
}
