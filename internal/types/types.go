// Package types provides shared type definitions for the application.
package types

import "time"

// Mode selects which Chatterbox app the background server runs.
type Mode string

const (
	ModeTurbo           Mode = "turbo"
	ModeStandard        Mode = "standard"
	ModeMultilingual    Mode = "multilingual"
	ModeVoiceConversion Mode = "voice_conversion"
)

// DefaultMode is used when no mode or an unknown mode is requested.
const DefaultMode = ModeTurbo

// ParseMode returns the mode named by s. Unknown names report false.
func ParseMode(s string) (Mode, bool) {
	switch m := Mode(s); m {
	case ModeTurbo, ModeStandard, ModeMultilingual, ModeVoiceConversion:
		return m, true
	}
	return "", false
}

// ModeInfo describes a mode for the dashboard.
type ModeInfo struct {
	ID          Mode   `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Modes returns all modes in dashboard order.
func Modes() []ModeInfo {
	return []ModeInfo{
		{ID: ModeTurbo, Title: "Turbo", Description: "Fast English speech with paralinguistic tags."},
		{ID: ModeStandard, Title: "Standard", Description: "English speech with exaggeration and CFG controls."},
		{ID: ModeMultilingual, Title: "Multilingual", Description: "Speech in 23 languages from a reference voice."},
		{ID: ModeVoiceConversion, Title: "Voice Conversion", Description: "Convert a recording to a target voice."},
	}
}

// SessionState is the lifecycle state of the background server.
type SessionState int

const (
	SessionStopped SessionState = iota
	SessionStarting
	SessionReady
	SessionFailed
)

func (s SessionState) String() string {
	switch s {
	case SessionStopped:
		return "stopped"
	case SessionStarting:
		return "starting"
	case SessionReady:
		return "ready"
	case SessionFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name for the frontend.
func (s SessionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// SessionStatus is a snapshot of the session slot.
// URL is set only while State is SessionReady.
type SessionStatus struct {
	ID        string       `json:"id,omitempty"`
	Mode      Mode         `json:"mode,omitempty"`
	State     SessionState `json:"state"`
	URL       string       `json:"url,omitempty"`
	PID       int          `json:"pid,omitempty"`
	StartedAt time.Time    `json:"startedAt,omitzero"`
	Error     string       `json:"error,omitempty"`
}

// Settings holds the user-editable settings.
type Settings struct {
	OutputDir string `json:"output_dir"`
}

// DefaultSettings returns the settings used when none are stored.
func DefaultSettings() Settings {
	return Settings{}
}

// OutputClip is an audio file saved by the server into the output directory.
type OutputClip struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"createdAt"`
	Size      int64     `json:"size"`
}
