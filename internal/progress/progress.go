package progress

import "time"

// Status identifies the lifecycle state of a server-side job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the job can no longer change state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Known reports whether s is one of the statuses the backend documents.
func (s Status) Known() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Snapshot is one decoded status payload for a job.
// Field tags follow the backend's progress serializer.
type Snapshot struct {
	JobID              string  `json:"job_id"`
	Status             Status  `json:"status"`
	StatusDisplay      string  `json:"status_display"`
	ProgressPercentage float64 `json:"progress_percentage"`

	TotalUnits      int `json:"total_emails"`
	SentUnits       int `json:"sent_emails"`
	FailedUnits     int `json:"failed_emails"`
	SuccessfulUnits int `json:"successful_emails"`

	SuccessRate    float64 `json:"success_rate"`
	UnitsPerSecond float64 `json:"emails_per_second"`

	CurrentOperation string `json:"current_operation"`
	ErrorMessage     string `json:"error_message"`

	// EstimatedRemainingSeconds is nil when the server cannot estimate yet.
	EstimatedRemainingSeconds *float64 `json:"estimated_remaining_time"`
	DurationSeconds           float64  `json:"duration"`

	CreatedAt   *time.Time `json:"created_at"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`

	CCT    string `json:"cct"`
	Period string `json:"period"`
}

// EstimatedRemaining returns the remaining time estimate, ok=false when unknown.
func (s Snapshot) EstimatedRemaining() (time.Duration, bool) {
	if s.EstimatedRemainingSeconds == nil || *s.EstimatedRemainingSeconds < 0 {
		return 0, false
	}
	return time.Duration(*s.EstimatedRemainingSeconds * float64(time.Second)), true
}

// Duration returns the elapsed job time reported by the server.
func (s Snapshot) Duration() time.Duration {
	return time.Duration(s.DurationSeconds * float64(time.Second))
}

// Envelope is the JSON wrapper every progress endpoint responds with.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
	Count   *int   `json:"count,omitempty"`
	JobID   string `json:"job_id,omitempty"`
}
