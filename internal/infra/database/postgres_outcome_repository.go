// internal/infra/database/postgres_outcome_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"review_reply_bot/internal/domain/posting"

	"github.com/lib/pq"
)

var ErrInvalidOutcomeStatus = fmt.Errorf("posting outcome status must be terminal")

const checkViolation = "23514"

type PostgresOutcomeRepository struct {
	db *sql.DB
}

func NewPostgresOutcomeRepository(db *sql.DB) *PostgresOutcomeRepository {
	return &PostgresOutcomeRepository{db: db}
}

func (r *PostgresOutcomeRepository) Record(ctx context.Context, o *posting.Outcome) error {
	if !o.Status.IsTerminal() {
		return ErrInvalidOutcomeStatus
	}
	query := `INSERT INTO posting_outcomes (job_id, review_id, store_id, status, message, reply_text, submitted_at, finished_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
               RETURNING id`
	err := r.db.QueryRowContext(ctx, query,
		o.JobID, o.ReviewID, o.StoreID, o.Status, o.Message, o.ReplyText, o.SubmittedAt, o.FinishedAt,
	).Scan(&o.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == checkViolation {
			return ErrInvalidOutcomeStatus
		}
		return fmt.Errorf("error recording posting outcome: %w", err)
	}
	return nil
}

func (r *PostgresOutcomeRepository) ListRecent(ctx context.Context, limit int) ([]*posting.Outcome, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT id, job_id, review_id, store_id, status, message, reply_text, submitted_at, finished_at
               FROM posting_outcomes
               ORDER BY finished_at DESC, id DESC
               LIMIT $1`
	return r.list(ctx, query, limit)
}

func (r *PostgresOutcomeRepository) ListByReview(ctx context.Context, reviewID string) ([]*posting.Outcome, error) {
	query := `SELECT id, job_id, review_id, store_id, status, message, reply_text, submitted_at, finished_at
               FROM posting_outcomes
               WHERE review_id = $1
               ORDER BY finished_at DESC, id DESC`
	return r.list(ctx, query, reviewID)
}

// CountByStatus returns how many outcomes exist per status among the given ones.
func (r *PostgresOutcomeRepository) CountByStatus(ctx context.Context, statuses []posting.Status) (map[posting.Status]int, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	query := `SELECT status, COUNT(*) FROM posting_outcomes WHERE status = ANY($1) GROUP BY status`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(names))
	if err != nil {
		return nil, fmt.Errorf("error counting posting outcomes: %w", err)
	}
	defer rows.Close()

	counts := make(map[posting.Status]int, len(statuses))
	for rows.Next() {
		var status posting.Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("error scanning outcome count: %w", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outcome counts: %w", err)
	}
	return counts, nil
}

func (r *PostgresOutcomeRepository) list(ctx context.Context, query string, args ...interface{}) ([]*posting.Outcome, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing posting outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []*posting.Outcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning posting outcome: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating posting outcomes: %w", err)
	}
	return outcomes, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOutcome(row rowScanner) (*posting.Outcome, error) {
	o := posting.Outcome{}
	err := row.Scan(&o.ID, &o.JobID, &o.ReviewID, &o.StoreID, &o.Status, &o.Message, &o.ReplyText, &o.SubmittedAt, &o.FinishedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
