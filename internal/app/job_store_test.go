package app

import (
	"sync"
	"testing"

	"review_reply_bot/internal/domain/posting"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStore_ReserveEnforcesSingleJob(t *testing.T) {
	store := NewJobStore()

	require.NoError(t, store.Reserve("R1", posting.Job{Status: posting.StatusQueued}))
	assert.True(t, store.Busy())

	err := store.Reserve("R2", posting.Job{Status: posting.StatusQueued})
	assert.ErrorIs(t, err, ErrJobInFlight)
	_, ok := store.Get("R2")
	assert.False(t, ok)

	err = store.Reserve("R1", posting.Job{Status: posting.StatusQueued})
	assert.ErrorIs(t, err, ErrJobInFlight, "the same review cannot be submitted twice either")
}

func TestJobStore_ReserveIsAtomic(t *testing.T) {
	store := NewJobStore()

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if store.Reserve(string(rune('A'+i)), posting.Job{}) == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.Len(t, store.Snapshot(), 1)
}

func TestJobStore_UpdateMergesAndSkipsMissing(t *testing.T) {
	store := NewJobStore()
	require.NoError(t, store.Reserve("R", posting.Job{Status: posting.StatusQueued, EstimatedSeconds: 8, RemainingSeconds: 8, ReplyText: "Thanks!"}))

	job, ok := store.Update("R", posting.Patch{JobID: posting.Ptr("J1"), PositionInQueue: posting.Ptr(2)})
	require.True(t, ok)
	assert.Equal(t, "J1", job.JobID)
	assert.Equal(t, 2, job.PositionInQueue)
	assert.Equal(t, "Thanks!", job.ReplyText, "fields not in the patch survive")
	assert.Equal(t, "R", job.ReviewID)

	_, ok = store.Update("missing", posting.Patch{Status: posting.Ptr(posting.StatusCompleted)})
	assert.False(t, ok)
	_, ok = store.Get("missing")
	assert.False(t, ok, "update must not create jobs")
}

func TestJobStore_UpsertCreates(t *testing.T) {
	store := NewJobStore()

	job := store.Upsert("R", posting.Patch{Status: posting.Ptr(posting.StatusQueued)})

	assert.Equal(t, "R", job.ReviewID)
	assert.Equal(t, posting.StatusQueued, job.Status)
	assert.True(t, store.Busy())
}

func TestJobStore_UpsertSeedsCountdownOnCreate(t *testing.T) {
	store := NewJobStore()

	job := store.Upsert("R", posting.Patch{RemainingSeconds: posting.Ptr(12)})
	assert.Equal(t, 12, job.RemainingSeconds)

	job = store.Upsert("R", posting.Patch{RemainingSeconds: posting.Ptr(20)})
	assert.Equal(t, 12, job.RemainingSeconds, "an existing countdown never goes up")

	job = store.Upsert("R", posting.Patch{RemainingSeconds: posting.Ptr(9)})
	assert.Equal(t, 9, job.RemainingSeconds)
}

func TestJobStore_RemoveClearsGate(t *testing.T) {
	store := NewJobStore()
	require.NoError(t, store.Reserve("R", posting.Job{}))

	assert.True(t, store.Remove("R"))
	assert.False(t, store.Remove("R"))
	assert.False(t, store.Busy())
	_, ok := store.Active()
	assert.False(t, ok)
}

func TestJobStore_ObserversSeeChangesInOrder(t *testing.T) {
	store := NewJobStore()
	var seen []string
	store.Subscribe(func(reviewID string, job *posting.Job) {
		if job == nil {
			seen = append(seen, reviewID+":removed")
			return
		}
		seen = append(seen, reviewID+":"+string(job.Status))
	})

	require.NoError(t, store.Reserve("R", posting.Job{Status: posting.StatusQueued}))
	store.Update("R", posting.Patch{Status: posting.Ptr(posting.StatusProcessing)})
	store.Remove("R")

	assert.Equal(t, []string{"R:queued", "R:processing", "R:removed"}, seen)
}

func TestJobStore_GetReturnsCopy(t *testing.T) {
	store := NewJobStore()
	require.NoError(t, store.Reserve("R", posting.Job{RemainingSeconds: 8}))

	job, _ := store.Get("R")
	job.RemainingSeconds = 100

	again, _ := store.Get("R")
	assert.Equal(t, 8, again.RemainingSeconds)
}
