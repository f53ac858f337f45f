package app

// Event names for frontend communication.
const (
	EventSessionState = "session-state" // types.SessionStatus
	EventServerOutput = "server-output" // string, one line
	EventOutputSaved  = "output-saved"  // types.OutputClip
)
