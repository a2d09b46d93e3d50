// internal/app/job_store.go
package app

import (
	"fmt"
	"sort"
	"sync"

	"review_reply_bot/internal/domain/posting"
)

// ErrJobInFlight is returned when a new job is requested while another one is
// still being tracked. Only one outstanding job is allowed across the bot.
var ErrJobInFlight = fmt.Errorf("another reply is already being posted")

// JobObserver receives a copy of a job after every change; job is nil on removal.
type JobObserver func(reviewID string, job *posting.Job)

// JobStore maps review IDs to posting jobs. It is the single source of truth for
// what is in flight. Updates merge (see posting.Patch), never replace.
type JobStore struct {
	mu        sync.RWMutex
	jobs      map[string]*posting.Job
	observers []JobObserver
}

func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*posting.Job)}
}

// Subscribe registers an observer. Observers run under the store lock, in change
// order, so they must be quick and must not call back into the store.
func (s *JobStore) Subscribe(fn JobObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Reserve atomically checks the concurrency gate and inserts seed.
func (s *JobStore) Reserve(reviewID string, seed posting.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.jobs) > 0 {
		return ErrJobInFlight
	}
	seed.ReviewID = reviewID
	job := seed.Clone()
	s.jobs[reviewID] = &job
	s.notify(reviewID, &job)
	return nil
}

// Upsert merges patch into the job for reviewID, creating it if needed.
// A new job takes its remaining time from the patch, since the merge only
// lowers it afterwards. It returns the merged job.
func (s *JobStore) Upsert(reviewID string, patch posting.Patch) posting.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[reviewID]
	if !ok {
		job = &posting.Job{ReviewID: reviewID}
		if patch.RemainingSeconds != nil {
			job.RemainingSeconds = *patch.RemainingSeconds
		}
		s.jobs[reviewID] = job
	}
	patch.Apply(job)
	s.notify(reviewID, job)
	return job.Clone()
}

// Update merges patch only if a job for reviewID exists. Late poll results for a
// job that was already reconciled must not resurrect it.
func (s *JobStore) Update(reviewID string, patch posting.Patch) (posting.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[reviewID]
	if !ok {
		return posting.Job{}, false
	}
	patch.Apply(job)
	s.notify(reviewID, job)
	return job.Clone(), true
}

// Remove drops the job for reviewID. It reports whether anything was removed.
func (s *JobStore) Remove(reviewID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[reviewID]
	if !ok {
		return false
	}
	delete(s.jobs, reviewID)
	s.notify(reviewID, nil)
	return true
}

func (s *JobStore) Get(reviewID string) (posting.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[reviewID]
	if !ok {
		return posting.Job{}, false
	}
	return job.Clone(), true
}

// Busy is the concurrency gate: true while any job is tracked.
func (s *JobStore) Busy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs) > 0
}

// Active returns the job currently in flight, if any.
func (s *JobStore) Active() (posting.Job, bool) {
	jobs := s.Snapshot()
	if len(jobs) == 0 {
		return posting.Job{}, false
	}
	return jobs[0], true
}

// Snapshot returns copies of all tracked jobs ordered by review ID.
func (s *JobStore) Snapshot() []posting.Job {
	s.mu.RLock()
	out := make([]posting.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ReviewID < out[j].ReviewID })
	return out
}

// notify must be called with s.mu held.
func (s *JobStore) notify(reviewID string, job *posting.Job) {
	for _, fn := range s.observers {
		if job == nil {
			fn(reviewID, nil)
			continue
		}
		snapshot := job.Clone()
		fn(reviewID, &snapshot)
	}
}
