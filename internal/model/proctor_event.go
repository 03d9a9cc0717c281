package model

// ProctorEventKind distinguishes the platform signals reported by the client.
type ProctorEventKind string

const (
	// ProctorEventFullscreenExit is an unauthorized exit from enforced
	// full-screen mode. Triggers auto-submission.
	ProctorEventFullscreenExit ProctorEventKind = "FULLSCREEN_EXIT"
	// ProctorEventTabBlur is a visibility-only change (tab hidden without
	// leaving full-screen). Advisory; recorded but never submits.
	ProctorEventTabBlur ProctorEventKind = "TAB_BLUR"
)
