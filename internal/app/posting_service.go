// internal/app/posting_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"review_reply_bot/internal/domain/posting"
	iapi "review_reply_bot/internal/infra/api"

	"github.com/sirupsen/logrus"
)

var ErrEmptyDraft = fmt.Errorf("there is no draft reply to post")
var ErrSubmitFailed = fmt.Errorf("failed to submit the reply")

const (
	lostMessage          = "The server no longer knows this posting job. Reload the reviews and try again."
	unreachableMessage   = "Lost contact with the posting queue. Reload the reviews and try again."
	genericFailedMessage = "Posting the reply failed."

	pollTimeout    = 30 * time.Second
	journalTimeout = 5 * time.Second
)

// JobAPI is the backend contract for reply posting jobs.
type JobAPI interface {
	SubmitPostingJob(ctx context.Context, req posting.SubmitRequest) (string, error)
	GetJobStatus(ctx context.Context, jobID string) (*posting.RemoteStatus, error)
}

// Scheduler runs a task at a fixed interval until the returned cancel func is called.
type Scheduler interface {
	Every(name string, interval time.Duration, task func()) (cancel func(), err error)
}

// EventKind tells the operator what happened to a job.
type EventKind string

const (
	EventCompleted EventKind = "completed"
	EventFailed    EventKind = "failed"
	EventLost      EventKind = "lost"
)

// Event describes a terminal job transition.
type Event struct {
	Kind      EventKind
	ReviewID  string
	JobID     string
	Author    string
	ReplyText string
	Message   string
}

// Notifier delivers terminal job events to the operator.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// PostingConfig tunes the polling and countdown cadence.
type PostingConfig struct {
	PollInterval      time.Duration
	CountdownInterval time.Duration
	// MaxPollFailures is how many consecutive status fetch errors are tolerated
	// before the job is given up as lost. Zero means unlimited.
	MaxPollFailures int
}

type pollerHandle struct {
	jobID    string
	cancel   func()
	failures int
}

// PostingService submits reply posting jobs, follows them through the backend
// queue and folds the outcome back into the review board.
type PostingService struct {
	jobs      *JobStore
	board     *ReviewBoard
	api       JobAPI
	scheduler Scheduler
	notifier  Notifier
	journal   posting.OutcomeRepository // Optional
	cfg       PostingConfig
	logger    *logrus.Entry
	now       func() time.Time

	mu         sync.Mutex
	pollers    map[string]*pollerHandle // Keyed by review ID
	stopTicker func()
}

func NewPostingService(
	jobs *JobStore,
	board *ReviewBoard,
	api JobAPI,
	scheduler Scheduler,
	notifier Notifier,
	journal posting.OutcomeRepository,
	cfg PostingConfig,
	logger *logrus.Entry,
) *PostingService {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.CountdownInterval <= 0 {
		cfg.CountdownInterval = time.Second
	}
	return &PostingService{
		jobs:      jobs,
		board:     board,
		api:       api,
		scheduler: scheduler,
		notifier:  notifier,
		journal:   journal,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		pollers:   make(map[string]*pollerHandle),
	}
}

// Start launches the shared countdown ticker. It runs until Stop.
func (s *PostingService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopTicker != nil {
		return nil
	}
	cancel, err := s.scheduler.Every("countdown", s.cfg.CountdownInterval, s.tick)
	if err != nil {
		return fmt.Errorf("failed to start countdown ticker: %w", err)
	}
	s.stopTicker = cancel
	s.logger.WithField("interval", s.cfg.CountdownInterval).Info("Countdown ticker started")
	return nil
}

// Stop cancels the countdown ticker and every poller. Jobs keep running on the
// server; only local observation ends.
func (s *PostingService) Stop() {
	s.mu.Lock()
	stopTicker := s.stopTicker
	s.stopTicker = nil
	pollers := s.pollers
	s.pollers = make(map[string]*pollerHandle)
	s.mu.Unlock()

	if stopTicker != nil {
		stopTicker()
	}
	for reviewID, h := range pollers {
		h.cancel()
		s.logger.WithFields(logrus.Fields{"review_id": reviewID, "job_id": h.jobID}).Info("Stopped observing posting job")
	}
}

// Busy reports whether a job is outstanding (the concurrency gate).
func (s *PostingService) Busy() bool {
	return s.jobs.Busy()
}

// Active returns the job in flight, if any.
func (s *PostingService) Active() (posting.Job, bool) {
	return s.jobs.Active()
}

// Submit posts the current draft of a review. Plan limit rejections come back as
// *api.PlanLimitError; every other backend failure wraps ErrSubmitFailed.
func (s *PostingService) Submit(ctx context.Context, reviewID string) (posting.Job, error) {
	logCtx := s.logger.WithField("review_id", reviewID)

	draft, _ := s.board.Draft(reviewID)
	draft = strings.TrimSpace(draft)
	if draft == "" {
		return posting.Job{}, ErrEmptyDraft
	}
	r, ok := s.board.Get(reviewID)
	if !ok {
		return posting.Job{}, ErrReviewNotFound
	}

	now := s.now()
	if _, ok := posting.ParseDisplayDate(r.Date, now); !ok {
		logCtx.WithField("date", r.Date).Debug("Unrecognised review date, using fallback estimate")
	}
	estimate := posting.EstimateDuration(r.Date, now)

	seed := posting.Job{
		StoreID:          r.StoreID,
		Status:           posting.StatusQueued,
		PositionInQueue:  0,
		EstimatedSeconds: estimate,
		RemainingSeconds: estimate,
		ReplyText:        draft,
		SubmittedAt:      now,
	}
	if err := s.jobs.Reserve(reviewID, seed); err != nil {
		logCtx.Warn("Submission rejected, another job is in flight")
		return posting.Job{}, err
	}

	jobID, err := s.api.SubmitPostingJob(ctx, posting.SubmitRequest{
		StoreID:   r.StoreID,
		ReviewID:  r.ID,
		Author:    r.Author,
		Date:      r.Date,
		Content:   r.Content,
		ReplyText: draft,
	})
	if err != nil {
		s.jobs.Remove(reviewID)
		var planErr *iapi.PlanLimitError
		if errors.As(err, &planErr) {
			logCtx.WithField("detail", planErr.Detail).Warn("Submission rejected by plan limit")
			return posting.Job{}, planErr
		}
		logCtx.WithError(err).Error("Failed to submit posting job")
		return posting.Job{}, fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}

	job, _ := s.jobs.Update(reviewID, posting.Patch{JobID: &jobID})
	if err := s.startPoller(reviewID, jobID); err != nil {
		s.jobs.Remove(reviewID)
		logCtx.WithError(err).Error("Failed to start poller for posting job")
		return posting.Job{}, fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}

	logCtx.WithFields(logrus.Fields{"job_id": jobID, "estimate_seconds": estimate}).Info("Posting job submitted")
	return job, nil
}

func (s *PostingService) startPoller(reviewID, jobID string) error {
	cancel, err := s.scheduler.Every("poll:"+jobID, s.cfg.PollInterval, func() {
		s.poll(reviewID, jobID)
	})
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.pollers[reviewID] = &pollerHandle{jobID: jobID, cancel: cancel}
	s.mu.Unlock()
	return nil
}

// detachPoller cancels the poller of a review. Only the caller that gets true
// owns the terminal transition of that job.
func (s *PostingService) detachPoller(reviewID string) bool {
	s.mu.Lock()
	h, ok := s.pollers[reviewID]
	delete(s.pollers, reviewID)
	s.mu.Unlock()
	if ok {
		h.cancel()
	}
	return ok
}

// pollFailed counts a failed status fetch and returns the consecutive total.
func (s *PostingService) pollFailed(reviewID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.pollers[reviewID]
	if !ok {
		return 0
	}
	h.failures++
	return h.failures
}

func (s *PostingService) pollSucceeded(reviewID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.pollers[reviewID]; ok {
		h.failures = 0
	}
}

// poll is one poller step: fetch the remote status and merge it.
func (s *PostingService) poll(reviewID, jobID string) {
	logCtx := s.logger.WithFields(logrus.Fields{"review_id": reviewID, "job_id": jobID})

	job, ok := s.jobs.Get(reviewID)
	if !ok || job.JobID != jobID {
		logCtx.Debug("Poll for a job that is no longer tracked")
		s.detachPoller(reviewID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), pollTimeout)
	defer cancel()

	remote, err := s.api.GetJobStatus(ctx, jobID)
	if err != nil {
		if errors.Is(err, iapi.ErrJobNotFound) {
			logCtx.Warn("Posting job unknown to the server")
			s.finishWithError(ctx, job, EventLost, lostMessage)
			return
		}
		failures := s.pollFailed(reviewID)
		logCtx.WithError(err).WithField("consecutive_failures", failures).Warn("Failed to fetch posting job status")
		if s.cfg.MaxPollFailures > 0 && failures >= s.cfg.MaxPollFailures {
			s.finishWithError(ctx, job, EventLost, unreachableMessage)
		}
		return
	}
	s.pollSucceeded(reviewID)

	now := s.now()
	patch := posting.Patch{PositionInQueue: posting.Ptr(remote.PositionInQueue)}
	switch remote.Status {
	case posting.StatusQueued, posting.StatusProcessing, posting.StatusCompleted, posting.StatusFailed:
		patch.Status = posting.Ptr(remote.Status)
	default:
		logCtx.WithField("status", remote.Status).Warn("Unknown posting job status, keeping previous")
	}
	if remote.EstimatedTime > 0 {
		patch.EstimatedSeconds = posting.Ptr(int(math.Ceil(remote.EstimatedTime)))
	}
	if remote.Status == posting.StatusProcessing {
		patch.StartedAt = posting.Ptr(parseStartedAt(remote.StartedAt, now))
	}

	updated, ok := s.jobs.Update(reviewID, patch)
	if !ok {
		s.detachPoller(reviewID)
		return
	}
	logCtx.WithFields(logrus.Fields{
		"status":   updated.Status,
		"position": updated.PositionInQueue,
	}).Debug("Posting job status merged")

	switch remote.Status {
	case posting.StatusCompleted:
		s.reconcile(ctx, updated)
	case posting.StatusFailed:
		message := strings.TrimSpace(remote.ErrorMessage)
		if message == "" {
			message = genericFailedMessage
		}
		s.finishWithError(ctx, updated, EventFailed, message)
	}
}

// tick is one countdown step. It only ever lowers the remaining time of jobs
// that are processing and have a start time.
func (s *PostingService) tick() {
	now := s.now()
	for _, job := range s.jobs.Snapshot() {
		if job.Status != posting.StatusProcessing || job.StartedAt == nil {
			continue
		}
		elapsed := int(now.Sub(*job.StartedAt) / time.Second)
		if elapsed < 0 {
			elapsed = 0
		}
		remaining := job.EstimatedSeconds - elapsed
		if remaining < 0 {
			remaining = 0
		}
		if remaining >= job.RemainingSeconds {
			continue
		}
		s.jobs.Update(job.ReviewID, posting.Patch{RemainingSeconds: &remaining})
	}
}

// reconcile folds a completed job into the review board and clears it.
func (s *PostingService) reconcile(ctx context.Context, job posting.Job) {
	if !s.detachPoller(job.ReviewID) {
		return
	}
	logCtx := s.logger.WithFields(logrus.Fields{"review_id": job.ReviewID, "job_id": job.JobID})

	author := ""
	if s.board.StoreID() == job.StoreID && s.board.MarkReplied(job.ReviewID, job.ReplyText) {
		if r, ok := s.board.Get(job.ReviewID); ok {
			author = r.Author
		}
	} else {
		logCtx.Warn("Completed review is not in the current list, nothing to merge")
	}
	s.board.DropDraft(job.ReviewID)
	s.jobs.Remove(job.ReviewID)
	logCtx.Info("Reply posted")

	s.record(job, posting.StatusCompleted, "")
	s.notifier.Notify(ctx, Event{
		Kind:      EventCompleted,
		ReviewID:  job.ReviewID,
		JobID:     job.JobID,
		Author:    author,
		ReplyText: job.ReplyText,
	})
}

// finishWithError clears a failed or lost job and tells the operator why.
func (s *PostingService) finishWithError(ctx context.Context, job posting.Job, kind EventKind, message string) {
	if !s.detachPoller(job.ReviewID) {
		return
	}
	s.jobs.Remove(job.ReviewID)
	s.logger.WithFields(logrus.Fields{
		"review_id": job.ReviewID,
		"job_id":    job.JobID,
		"kind":      kind,
	}).Warn("Posting job ended without a reply: " + message)

	status := posting.StatusFailed
	if kind == EventLost {
		status = posting.StatusLost
	}
	s.record(job, status, message)

	author := ""
	if r, ok := s.board.Get(job.ReviewID); ok {
		author = r.Author
	}
	s.notifier.Notify(ctx, Event{
		Kind:     kind,
		ReviewID: job.ReviewID,
		JobID:    job.JobID,
		Author:   author,
		Message:  message,
	})
}

// record writes the outcome to the journal. Journal failures never affect tracking.
func (s *PostingService) record(job posting.Job, status posting.Status, message string) {
	if s.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()

	outcome := &posting.Outcome{
		JobID:       job.JobID,
		ReviewID:    job.ReviewID,
		StoreID:     job.StoreID,
		Status:      status,
		Message:     message,
		ReplyText:   job.ReplyText,
		SubmittedAt: job.SubmittedAt,
		FinishedAt:  s.now(),
	}
	if err := s.journal.Record(ctx, outcome); err != nil {
		s.logger.WithError(err).WithField("job_id", job.JobID).Error("Failed to record posting outcome")
	}
}

var startedAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// parseStartedAt reads the server's start timestamp. Naive timestamps are UTC.
// Missing or unreadable values fall back to the time of the poll.
func parseStartedAt(raw *string, fallback time.Time) time.Time {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return fallback
	}
	for _, layout := range startedAtLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(*raw)); err == nil {
			return t
		}
	}
	return fallback
}
