package server

import "github.com/jmylchreest/inspectai/pkg/settings"

// Client actions.
const (
	ActionStartPicking     = "startPicking"
	ActionStopPicking      = "stopPicking"
	ActionExecutePrompt    = "executePrompt"
	ActionGetSettings      = "getSettings"
	ActionSaveSettings     = "saveSettings"
	ActionReleaseSelection = "releaseSelection"
	ActionPing             = "ping"
)

// Server replies.
const (
	ActionElementSelected  = "elementSelected"
	ActionPickingCancelled = "pickingCancelled"
	ActionGoogleAIResult   = "google_ai_result"
	ActionResult           = "result"
	ActionSettings         = "settings"
	ActionError            = "error"
	ActionPong             = "pong"
)

// Message is the single envelope used in both directions. Only the fields
// relevant to Action are set.
type Message struct {
	Action   string             `json:"action"`
	HTML     string             `json:"html,omitempty"`
	Query    string             `json:"query,omitempty"`
	Data     string             `json:"data,omitempty"`
	RawHTML  string             `json:"rawHtml,omitempty"`
	Settings *settings.Settings `json:"settings,omitempty"`
	Error    string             `json:"error,omitempty"`
}
