package posting

import "context"

// OutcomeRepository persists terminal job outcomes for later review.
// It is an audit trail only; the tracker never reads from it.
type OutcomeRepository interface {
	Record(ctx context.Context, outcome *Outcome) error
	ListRecent(ctx context.Context, limit int) ([]*Outcome, error)
	ListByReview(ctx context.Context, reviewID string) ([]*Outcome, error)
	CountByStatus(ctx context.Context, statuses []Status) (map[Status]int, error)
}
