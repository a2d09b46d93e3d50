package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
)

// ErrJobNotFound means the status endpoint does not know the job any more.
var ErrJobNotFound = errors.New("posting job not found")

// ErrRejected is returned when the backend answers 2xx but refuses the job.
var ErrRejected = errors.New("posting job rejected by backend")

// Plan limits are recognised by whole words only. A bare "limit" is too common
// (character limit, rate limit), so it has to be qualified by a usage period or
// by what is being counted.
var (
	planWordPattern   = regexp.MustCompile(`(?i)\b(plan|plans|quota|quotas|subscription|upgrade)\b`)
	usageLimitPattern = regexp.MustCompile(`(?i)\b(daily|weekly|monthly|yearly|usage|credit|credits|reply|replies|posting|account)\s+limits?\b`)
)

// PlanLimitError is a 4xx rejection caused by the account's plan. Callers route it
// to an upgrade prompt instead of a generic error.
type PlanLimitError struct {
	Status int
	Detail string
}

func (e *PlanLimitError) Error() string {
	return fmt.Sprintf("plan limit reached (%d): %s", e.Status, e.Detail)
}

// StatusError is any other non-2xx answer.
type StatusError struct {
	Status int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend returned status %d", e.Status)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Detail)
}

// IsPlanLimitDetail reports whether a rejection detail names a plan limit.
func IsPlanLimitDetail(detail string) bool {
	return planWordPattern.MatchString(detail) || usageLimitPattern.MatchString(detail)
}

// parseResponseError reads a non-2xx response and closes its body.
func parseResponseError(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB limit
	if err != nil {
		return &StatusError{Status: resp.StatusCode, Detail: fmt.Sprintf("failed to read body: %v", err)}
	}
	detail := extractDetail(bodyBytes)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &StatusError{Status: resp.StatusCode, Detail: detail}
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && IsPlanLimitDetail(detail):
		return &PlanLimitError{Status: resp.StatusCode, Detail: detail}
	default:
		return &StatusError{Status: resp.StatusCode, Detail: detail}
	}
}

// extractDetail pulls the "detail" field out of an error body. The backend sends
// either a string or a structured validation list; the latter is kept as raw JSON.
func extractDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(body, &envelope) != nil || len(envelope.Detail) == 0 {
		return strings.TrimSpace(string(body))
	}
	var text string
	if json.Unmarshal(envelope.Detail, &text) == nil {
		return text
	}
	return string(envelope.Detail)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Status == http.StatusNotFound
}
