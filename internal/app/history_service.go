// internal/app/history_service.go
package app

import (
	"context"
	"fmt"
	"strings"

	"review_reply_bot/internal/domain/posting"
)

var ErrOperatorNotAuthorized = fmt.Errorf("performing user is not the operator")
var ErrJournalDisabled = fmt.Errorf("outcome journal is not configured")

const defaultHistoryLimit = 10

// HistorySummary is what the operator sees for /history.
type HistorySummary struct {
	Outcomes []*posting.Outcome
	Counts   map[posting.Status]int
}

// HistoryService reads finished posting jobs back from the outcome journal.
type HistoryService struct {
	journal    posting.OutcomeRepository // Nil when DATABASE_URL is not set
	operatorID int64
}

func NewHistoryService(journal posting.OutcomeRepository, operatorID int64) *HistoryService {
	return &HistoryService{
		journal:    journal,
		operatorID: operatorID,
	}
}

func (s *HistoryService) Enabled() bool {
	return s.journal != nil
}

// Recent returns the latest outcomes, or those of one review when reviewID is set,
// together with per status totals.
func (s *HistoryService) Recent(ctx context.Context, performingUserID int64, reviewID string) (*HistorySummary, error) {
	if performingUserID != s.operatorID {
		return nil, ErrOperatorNotAuthorized
	}
	if s.journal == nil {
		return nil, ErrJournalDisabled
	}

	var (
		outcomes []*posting.Outcome
		err      error
	)
	reviewID = strings.TrimSpace(reviewID)
	if reviewID != "" {
		outcomes, err = s.journal.ListByReview(ctx, reviewID)
	} else {
		outcomes, err = s.journal.ListRecent(ctx, defaultHistoryLimit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read posting history: %w", err)
	}

	counts, err := s.journal.CountByStatus(ctx, []posting.Status{posting.StatusCompleted, posting.StatusFailed, posting.StatusLost})
	if err != nil {
		return nil, fmt.Errorf("failed to count posting outcomes: %w", err)
	}

	return &HistorySummary{Outcomes: outcomes, Counts: counts}, nil
}
