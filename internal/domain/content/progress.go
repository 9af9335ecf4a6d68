package content

import "time"

type RunStatus string

const (
	StatusIdle      RunStatus = "idle"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// CanTransition reports whether a run may move from s to next. Resetting to
// idle is done by replacing the state, never through a transition.
func (s RunStatus) CanTransition(next RunStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusIdle:
		return next == StatusRunning
	case StatusRunning:
		return next.Terminal()
	}
	return false
}

func (s RunStatus) Terminal() bool { return s == StatusCompleted || s == StatusFailed }

type ProgressError struct {
	ItemID    string    `json:"item_id"`
	Language  string    `json:"language"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ProgressState is the in-memory view of one kind's current or last run.
type ProgressState struct {
	Kind             Kind            `json:"kind"`
	Status           RunStatus       `json:"status"`
	Version          string          `json:"version,omitempty"`
	TotalItems       int             `json:"total_items"`
	CompletedItems   int             `json:"completed_items"`
	CurrentLanguage  string          `json:"current_language,omitempty"`
	CurrentItem      string          `json:"current_item,omitempty"`
	CurrentItemTitle string          `json:"current_item_title,omitempty"`
	Errors           []ProgressError `json:"errors"`
	StartTime        *time.Time      `json:"start_time,omitempty"`
	EndTime          *time.Time      `json:"end_time,omitempty"`
}

func IdleProgress(kind Kind) ProgressState {
	return ProgressState{Kind: kind, Status: StatusIdle, Errors: []ProgressError{}}
}

// Clone deep-copies the state so the copy shares nothing with the original.
func (s ProgressState) Clone() ProgressState {
	out := s
	out.Errors = make([]ProgressError, len(s.Errors))
	copy(out.Errors, s.Errors)
	if s.StartTime != nil {
		t := *s.StartTime
		out.StartTime = &t
	}
	if s.EndTime != nil {
		t := *s.EndTime
		out.EndTime = &t
	}
	return out
}

// ProgressUpdate is a partial state; nil fields are left unchanged.
type ProgressUpdate struct {
	Status           *RunStatus
	Version          *string
	TotalItems       *int
	CompletedItems   *int
	CurrentLanguage  *string
	CurrentItem      *string
	CurrentItemTitle *string
	StartTime        *time.Time
	EndTime          *time.Time
	// AppendErrors are added to the existing error list.
	AppendErrors []ProgressError
}
