// internal/domain/posting/job.go
package posting

import "time"

// Status is the lifecycle state of a reply posting job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	// StatusLost is never reported by the backend. It is assigned locally when the
	// status endpoint no longer knows the job (e.g. after a server restart).
	StatusLost Status = "lost"
)

// IsTerminal reports whether no further transitions can happen.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusLost
}

// Job tracks one queued "post a reply" action for a single review.
type Job struct {
	ReviewID         string
	StoreID          string
	JobID            string // Empty until the submission endpoint answers
	Status           Status
	PositionInQueue  int        // 0 means processing (or not known yet)
	EstimatedSeconds int        // Initial guess from EstimateDuration, may be replaced once by the server
	StartedAt        *time.Time // Set the first time the server reports processing
	RemainingSeconds int        // Owned by the countdown ticker
	ReplyText        string     // The draft text that was submitted
	SubmittedAt      time.Time
}

// Patch is a partial update merged into a Job. Nil fields are left untouched.
//
// Field ownership:
//   - submission: JobID
//   - poller: Status, PositionInQueue, EstimatedSeconds, StartedAt
//   - countdown ticker: RemainingSeconds
type Patch struct {
	JobID            *string
	Status           *Status
	PositionInQueue  *int
	EstimatedSeconds *int
	StartedAt        *time.Time
	RemainingSeconds *int
}

// Apply merges p into j. StartedAt is first-write-wins and RemainingSeconds never
// goes up, so a countdown that already started cannot jump back.
func (p Patch) Apply(j *Job) {
	if p.JobID != nil {
		j.JobID = *p.JobID
	}
	if p.Status != nil {
		j.Status = *p.Status
	}
	if p.PositionInQueue != nil {
		j.PositionInQueue = *p.PositionInQueue
	}
	// Until the countdown has a start time the remaining time simply mirrors the
	// estimate. Afterwards the estimate is frozen.
	if p.EstimatedSeconds != nil && j.StartedAt == nil {
		j.EstimatedSeconds = *p.EstimatedSeconds
		j.RemainingSeconds = *p.EstimatedSeconds
	}
	if p.StartedAt != nil && j.StartedAt == nil {
		started := *p.StartedAt
		j.StartedAt = &started
	}
	if p.RemainingSeconds != nil && *p.RemainingSeconds < j.RemainingSeconds {
		j.RemainingSeconds = *p.RemainingSeconds
	}
}

// Clone returns a copy that shares no pointers with j.
func (j Job) Clone() Job {
	if j.StartedAt != nil {
		started := *j.StartedAt
		j.StartedAt = &started
	}
	return j
}

// Ptr is a small helper for building patches.
func Ptr[T any](v T) *T {
	return &v
}
