package app

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"review_reply_bot/internal/domain/posting"
	"review_reply_bot/internal/domain/review"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// --- Mock JobAPI ---

type mockJobAPI struct {
	mock.Mock
}

func (m *mockJobAPI) SubmitPostingJob(ctx context.Context, req posting.SubmitRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockJobAPI) GetJobStatus(ctx context.Context, jobID string) (*posting.RemoteStatus, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*posting.RemoteStatus), args.Error(1)
}

// --- Mock OutcomeRepository ---

type mockOutcomeRepository struct {
	mock.Mock
}

func (m *mockOutcomeRepository) Record(ctx context.Context, outcome *posting.Outcome) error {
	args := m.Called(ctx, outcome)
	return args.Error(0)
}

func (m *mockOutcomeRepository) ListRecent(ctx context.Context, limit int) ([]*posting.Outcome, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*posting.Outcome), args.Error(1)
}

func (m *mockOutcomeRepository) ListByReview(ctx context.Context, reviewID string) ([]*posting.Outcome, error) {
	args := m.Called(ctx, reviewID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*posting.Outcome), args.Error(1)
}

func (m *mockOutcomeRepository) CountByStatus(ctx context.Context, statuses []posting.Status) (map[posting.Status]int, error) {
	args := m.Called(ctx, statuses)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[posting.Status]int), args.Error(1)
}

// --- Manual scheduler ---

// manualScheduler records tasks and runs them only when the test says so.
type manualScheduler struct {
	mu      sync.Mutex
	nextID  int
	tasks   map[string]func()
	failFor string
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{tasks: make(map[string]func())}
}

func (s *manualScheduler) Every(name string, _ time.Duration, task func()) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor != "" && s.failFor == name {
		return nil, fmt.Errorf("cannot schedule %s", name)
	}
	s.tasks[name] = task
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.tasks, name)
	}, nil
}

func (s *manualScheduler) has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[name]
	return ok
}

func (s *manualScheduler) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// run fires one task if it is still scheduled.
func (s *manualScheduler) run(name string) bool {
	s.mu.Lock()
	task, ok := s.tasks[name]
	s.mu.Unlock()
	if ok {
		task()
	}
	return ok
}

// --- Recording notifier ---

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Notify(_ context.Context, event Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) all() []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Event(nil), n.events...)
}

// --- Static review source ---

type staticSource struct {
	reviews map[string][]review.Review
	err     error
	calls   int
}

func (s *staticSource) ListReviews(_ context.Context, storeID string) ([]review.Review, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	// Copy so tests cannot see the board's mutations through the fixture.
	return append([]review.Review(nil), s.reviews[storeID]...), nil
}

// --- Clock ---

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
