// internal/domain/posting/outcome.go
package posting

import "time"

// Outcome is the journal record written when a job reaches a terminal state.
// Corresponds to the 'posting_outcomes' table.
type Outcome struct {
	ID          int64
	JobID       string // Empty if the job never got an identifier
	ReviewID    string
	StoreID     string
	Status      Status // completed, failed or lost
	Message     string // Server error message or local reason
	ReplyText   string
	SubmittedAt time.Time
	FinishedAt  time.Time
}
