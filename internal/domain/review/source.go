package review

import "context"

// Source fetches the review collection of a store from the backend.
type Source interface {
	ListReviews(ctx context.Context, storeID string) ([]Review, error)
}
