// internal/app/review_board.go
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"review_reply_bot/internal/domain/review"

	"github.com/sirupsen/logrus"
)

var ErrNoStoreSelected = fmt.Errorf("no store selected")
var ErrReviewNotFound = fmt.Errorf("review not found in the current store")

// ReviewBoard holds the reviews of the selected store, the draft replies waiting
// to be posted and the listing filter. Reviews are only ever changed by
// MarkReplied; drafts live until they are posted or the list is reloaded.
type ReviewBoard struct {
	source review.Source
	logger *logrus.Entry

	mu            sync.RWMutex
	storeID       string
	reviews       []review.Review
	index         map[string]int
	drafts        map[string]string
	filter        review.Filter
	justCompleted map[string]struct{}
}

func NewReviewBoard(source review.Source, logger *logrus.Entry) *ReviewBoard {
	return &ReviewBoard{
		source:        source,
		logger:        logger,
		index:         make(map[string]int),
		drafts:        make(map[string]string),
		filter:        review.FilterAll,
		justCompleted: make(map[string]struct{}),
	}
}

// Load selects a store and fetches its reviews. Drafts and grace markers of the
// previous list are discarded.
func (b *ReviewBoard) Load(ctx context.Context, storeID string) (int, error) {
	storeID = strings.TrimSpace(storeID)
	if storeID == "" {
		return 0, ErrNoStoreSelected
	}

	reviews, err := b.source.ListReviews(ctx, storeID)
	if err != nil {
		return 0, fmt.Errorf("failed to load reviews for store %s: %w", storeID, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.storeID = storeID
	b.reviews = reviews
	b.index = make(map[string]int, len(reviews))
	for i, r := range reviews {
		b.index[r.ID] = i
	}
	b.drafts = make(map[string]string)
	b.justCompleted = make(map[string]struct{})

	b.logger.WithFields(logrus.Fields{"store_id": storeID, "reviews": len(reviews)}).Info("Review list loaded")
	return len(reviews), nil
}

func (b *ReviewBoard) StoreID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.storeID
}

func (b *ReviewBoard) Get(reviewID string) (review.Review, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	i, ok := b.index[reviewID]
	if !ok {
		return review.Review{}, false
	}
	return b.reviews[i], true
}

// SetDraft stores (or replaces) the draft reply for a review.
func (b *ReviewBoard) SetDraft(reviewID, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.index[reviewID]; !ok {
		return ErrReviewNotFound
	}
	b.drafts[reviewID] = text
	return nil
}

func (b *ReviewBoard) Draft(reviewID string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	text, ok := b.drafts[reviewID]
	return text, ok
}

func (b *ReviewBoard) DropDraft(reviewID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.drafts, reviewID)
}

// MarkReplied folds a posted reply into the review and flags it as just
// completed, so a pending-only listing keeps showing it until the operator
// changes the filter or reloads. It reports whether the review was found.
func (b *ReviewBoard) MarkReplied(reviewID, text string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	i, ok := b.index[reviewID]
	if !ok {
		return false
	}
	b.reviews[i].ReplyText = text
	b.justCompleted[reviewID] = struct{}{}
	return true
}

// SetFilter changes the listing filter and clears grace markers.
func (b *ReviewBoard) SetFilter(f review.Filter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.filter = f
	b.justCompleted = make(map[string]struct{})
}

func (b *ReviewBoard) Filter() review.Filter {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.filter
}

// List returns the reviews visible under the current filter, in backend order.
func (b *ReviewBoard) List() []review.Review {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]review.Review, 0, len(b.reviews))
	for _, r := range b.reviews {
		switch b.filter {
		case review.FilterPending:
			if _, grace := b.justCompleted[r.ID]; r.HasReply() && !grace {
				continue
			}
		case review.FilterReplied:
			if !r.HasReply() {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

// JustCompleted reports whether the review is inside its post-completion grace window.
func (b *ReviewBoard) JustCompleted(reviewID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.justCompleted[reviewID]
	return ok
}
