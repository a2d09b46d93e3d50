// internal/infra/api/client.go
package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"review_reply_bot/internal/domain/posting"
	"review_reply_bot/internal/domain/review"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
)

const (
	replyJobsPath = "/reviews/reply-jobs"

	// IdempotencyHeader lets the backend deduplicate a submission that the client
	// retried after an ambiguous failure.
	IdempotencyHeader = "Idempotency-Key"
)

// ErrCircuitOpen is returned without a request while the backend is considered down.
var ErrCircuitOpen = gobreaker.ErrOpenState

// Config holds backend client settings.
type Config struct {
	BaseURL      string
	Token        string
	Timeout      time.Duration
	MaxRetries   int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration

	// BreakerFailures is how many consecutive failed calls open the breaker.
	BreakerFailures uint32
	// BreakerTimeout is how long the breaker stays open before probing again.
	BreakerTimeout time.Duration
}

// Client talks to the review backend: reply jobs and review listings.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	cfg        Config
	logger     *logrus.Entry
	newKey     func() string
}

func NewClient(cfg Config, logger *logrus.Entry) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RetryWaitMin <= 0 {
		cfg.RetryWaitMin = 500 * time.Millisecond
	}
	if cfg.RetryWaitMax <= 0 {
		cfg.RetryWaitMax = 4 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	settings := gobreaker.Settings{
		Name:        "review-backend",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		// A caller giving up is not a backend failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{"breaker": name, "from": from.String(), "to": to.String()}).Warn("Circuit breaker state change")
		},
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    gobreaker.NewCircuitBreaker[*http.Response](settings),
		cfg:        cfg,
		logger:     logger,
		newKey:     func() string { return uuid.New().String() },
	}
}

type submitResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"job_id"`
	Detail  string `json:"detail,omitempty"`
}

// SubmitPostingJob enqueues a reply posting job and returns its identifier.
func (c *Client) SubmitPostingJob(ctx context.Context, req posting.SubmitRequest) (string, error) {
	if err := validateStruct(req); err != nil {
		return "", fmt.Errorf("invalid submit request: %w", err)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode submit request: %w", err)
	}

	key := c.newKey()
	c.logger.WithFields(logrus.Fields{
		"review_id":       req.ReviewID,
		"store_id":        req.StoreID,
		"idempotency_key": key,
	}).Debug("Submitting reply posting job")

	resp, err := c.do(ctx, http.MethodPost, replyJobsPath, body, map[string]string{IdempotencyHeader: key})
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", parseResponseError(resp)
	}
	defer func() { _ = resp.Body.Close() }()

	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode submit response: %w", err)
	}
	if !out.Success || out.JobID == "" {
		if out.Detail != "" {
			return "", fmt.Errorf("%w: %s", ErrRejected, out.Detail)
		}
		return "", ErrRejected
	}
	return out.JobID, nil
}

// GetJobStatus fetches the current state of a job. A 404 yields ErrJobNotFound.
func (c *Client) GetJobStatus(ctx context.Context, jobID string) (*posting.RemoteStatus, error) {
	resp, err := c.do(ctx, http.MethodGet, replyJobsPath+"/"+url.PathEscape(jobID), nil, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := parseResponseError(resp)
		if IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
		}
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var status posting.RemoteStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode job status: %w", err)
	}
	return &status, nil
}

type reviewDTO struct {
	ReviewID  string  `json:"review_id" validate:"required"`
	Author    string  `json:"author"`
	Rating    *int32  `json:"rating"`
	Content   string  `json:"content"`
	Date      string  `json:"date"`
	ReplyText *string `json:"reply_text"`
}

type listReviewsResponse struct {
	Reviews []reviewDTO `json:"reviews"`
}

// ListReviews fetches all reviews of a store.
func (c *Client) ListReviews(ctx context.Context, storeID string) ([]review.Review, error) {
	resp, err := c.do(ctx, http.MethodGet, "/stores/"+url.PathEscape(storeID)+"/reviews", nil, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseResponseError(resp)
	}
	defer func() { _ = resp.Body.Close() }()

	var out listReviewsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode reviews: %w", err)
	}

	reviews := make([]review.Review, 0, len(out.Reviews))
	for i, dto := range out.Reviews {
		if err := validateStruct(dto); err != nil {
			c.logger.WithError(err).WithFields(logrus.Fields{"store_id": storeID, "index": i}).Warn("Skipping malformed review")
			continue
		}
		r := review.Review{
			ID:      dto.ReviewID,
			StoreID: storeID,
			Author:  dto.Author,
			Content: dto.Content,
			Date:    dto.Date,
		}
		if dto.Rating != nil {
			r.Rating = sql.NullInt32{Int32: *dto.Rating, Valid: true}
		}
		if dto.ReplyText != nil {
			r.ReplyText = *dto.ReplyText
		}
		reviews = append(reviews, r)
	}
	return reviews, nil
}

// do runs one logical call through the circuit breaker. A final 5xx answer is
// turned into a *StatusError here so the breaker counts it as a failure.
func (c *Client) do(ctx context.Context, method, path string, body []byte, headers map[string]string) (*http.Response, error) {
	return c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.doWithRetry(ctx, method, path, body, headers)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			return nil, parseResponseError(resp)
		}
		return resp, nil
	})
}

// doWithRetry executes a request with retries on network errors and 5xx (except 501).
// The body is replayed on every attempt, headers included, so a retried
// submission keeps its idempotency key.
func (c *Client) doWithRetry(ctx context.Context, method, path string, body []byte, headers map[string]string) (*http.Response, error) {
	endpoint := c.cfg.BaseURL + path

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := c.cfg.RetryWaitMin * time.Duration(1<<uint(attempt-1))
			if wait > c.cfg.RetryWaitMax {
				wait = c.cfg.RetryWaitMax
			}
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return nil, fmt.Errorf("create %s request: %w", method, err)
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.cfg.Token != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if isRetryableError(err) && attempt < c.cfg.MaxRetries {
				c.logger.WithError(err).WithField("attempt", attempt+1).Warn("Backend request failed, retrying")
				continue
			}
			return nil, fmt.Errorf("%s %s failed after %d attempts: %w", method, path, attempt+1, err)
		}

		if resp.StatusCode >= 500 && resp.StatusCode != http.StatusNotImplemented && attempt < c.cfg.MaxRetries {
			c.logger.WithFields(logrus.Fields{"attempt": attempt + 1, "status": resp.StatusCode}).Warn("Backend returned server error, retrying")
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			lastErr = &StatusError{Status: resp.StatusCode}
			continue
		}
		return resp, nil
	}
	return nil, lastErr
}

func isRetryableError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
