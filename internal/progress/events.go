package progress

import "encoding/json"

// Kind names a server-pushed progress event.
type Kind string

const (
	KindStart    Kind = "start"
	KindProgress Kind = "progress"
	KindComplete Kind = "complete"
	KindError    Kind = "error"
	KindWarning  Kind = "warning"
)

// Builtin reports whether k has a dedicated payload type.
func (k Kind) Builtin() bool {
	switch k {
	case KindStart, KindProgress, KindComplete, KindError, KindWarning:
		return true
	}
	return false
}

// ChannelPrefix is prepended to a job id to form its event channel.
const ChannelPrefix = "progress-"

// Channel returns the push channel name for a job.
func Channel(jobID string) string {
	return ChannelPrefix + jobID
}

// StreamEvent is one named event received from the push connection.
type StreamEvent struct {
	Kind Kind
	ID   string
	Data json.RawMessage
}

type StartPayload struct {
	Status     string  `json:"status"`
	Total      int     `json:"total"`
	Current    int     `json:"current"`
	Percentage float64 `json:"percentage"`
	Message    string  `json:"message"`
}

type ProgressPayload struct {
	Status     string  `json:"status"`
	Current    int     `json:"current"`
	Total      int     `json:"total"`
	Remaining  int     `json:"remaining"`
	Percentage float64 `json:"percentage"`
	// Message is nil when the server sent no message (absent or null).
	Message *string `json:"message"`
}

// HasMessage reports whether the event carries a non-empty message.
func (p ProgressPayload) HasMessage() bool {
	return p.Message != nil && *p.Message != ""
}

type CompletePayload struct {
	Status     string  `json:"status"`
	Total      int     `json:"total"`
	Current    int     `json:"current"`
	Percentage float64 `json:"percentage"`
	Message    string  `json:"message"`
}

type ErrorPayload struct {
	Status  string `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

type WarningPayload struct {
	Status  string `json:"status"`
	Warning string `json:"warning"`
	Message string `json:"message"`
}

// Text returns the warning text, falling back to the generic message.
func (w WarningPayload) Text() string {
	if w.Warning != "" {
		return w.Warning
	}
	return w.Message
}
