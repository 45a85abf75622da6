// Package jobs holds the job model and the in-memory job store that is the
// single source of truth for lifecycle status.
package jobs

import "time"

// Status is the lifecycle state of a job.
type Status string

// Job lifecycle states. Transitions are strictly
// pending -> processing -> {completed|failed}; terminal states never change.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition is possible from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Input is the immutable snapshot of a submission captured at creation time.
type Input struct {
	Prompt          string
	DurationSeconds int
	SampleRate      int
	CallbackURL     string
	WAVUploadURL    string
}

// Output holds the encoded result of a completed job.
type Output struct {
	WAV        []byte
	SampleRate int
	Format     string
}

// Job is one unit of asynchronous generation work.
type Job struct {
	ID        string
	Status    Status
	Input     Input
	Output    *Output
	Error     string
	CreatedAt time.Time
}
