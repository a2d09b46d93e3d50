// internal/infra/telegram/progress_view.go
package telegram

import (
	"sort"
	"sync"

	"review_reply_bot/internal/domain/posting"
	"review_reply_bot/internal/domain/review"
	domainTelegram "review_reply_bot/internal/domain/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// ReviewLookup resolves the review a job belongs to.
type ReviewLookup interface {
	Get(reviewID string) (review.Review, bool)
}

type progressEntry struct {
	job     *posting.Job // nil once the job left the store
	message *telebot.Message
	dirty   bool
}

// ProgressView keeps one live status message per tracked job in the operator
// chat. Observe only records state; Flush does the Telegram I/O so the job
// store lock is never held across a network call.
type ProgressView struct {
	client     domainTelegram.Client
	reviews    ReviewLookup
	operatorID int64
	logger     *logrus.Entry

	mu      sync.Mutex
	entries map[string]*progressEntry
}

func NewProgressView(client domainTelegram.Client, reviews ReviewLookup, operatorID int64, logger *logrus.Entry) *ProgressView {
	return &ProgressView{
		client:     client,
		reviews:    reviews,
		operatorID: operatorID,
		logger:     logger,
		entries:    make(map[string]*progressEntry),
	}
}

// Observe is an app.JobObserver.
func (v *ProgressView) Observe(reviewID string, job *posting.Job) {
	v.mu.Lock()
	defer v.mu.Unlock()
	e, ok := v.entries[reviewID]
	if !ok {
		if job == nil {
			return
		}
		e = &progressEntry{}
		v.entries[reviewID] = e
	}
	e.job = job
	e.dirty = true
}

type progressUpdate struct {
	reviewID string
	job      *posting.Job
	message  *telebot.Message
}

// Flush brings the chat in line with the recorded job states.
func (v *ProgressView) Flush() {
	v.mu.Lock()
	updates := make([]progressUpdate, 0, len(v.entries))
	for reviewID, e := range v.entries {
		if !e.dirty {
			continue
		}
		e.dirty = false
		updates = append(updates, progressUpdate{reviewID: reviewID, job: e.job, message: e.message})
	}
	v.mu.Unlock()

	sort.Slice(updates, func(i, j int) bool { return updates[i].reviewID < updates[j].reviewID })
	for _, u := range updates {
		v.apply(u)
	}
}

func (v *ProgressView) apply(u progressUpdate) {
	logCtx := v.logger.WithField("review_id", u.reviewID)

	if u.job == nil {
		if u.message != nil {
			if err := v.client.DeleteMessage(u.message); err != nil {
				logCtx.WithError(err).Warn("Failed to remove progress message")
			}
		}
		v.mu.Lock()
		if e, ok := v.entries[u.reviewID]; ok && e.job == nil {
			delete(v.entries, u.reviewID)
		}
		v.mu.Unlock()
		return
	}

	author := ""
	if r, ok := v.reviews.Get(u.reviewID); ok {
		author = r.Author
	}
	text := renderProgress(*u.job, author)

	if u.message != nil {
		if err := v.client.EditMessage(u.message, text, nil); err != nil {
			logCtx.WithError(err).Warn("Failed to update progress message")
			v.markDirty(u.reviewID)
		}
		return
	}

	msg, err := v.client.SendMessage(v.operatorID, text, nil)
	if err != nil {
		logCtx.WithError(err).Warn("Failed to send progress message")
		v.markDirty(u.reviewID)
		return
	}

	v.mu.Lock()
	e, ok := v.entries[u.reviewID]
	if ok {
		e.message = msg
	}
	v.mu.Unlock()
	if !ok {
		// The job finished while the message was on its way.
		if err := v.client.DeleteMessage(msg); err != nil {
			logCtx.WithError(err).Warn("Failed to remove progress message")
		}
	}
}

func (v *ProgressView) markDirty(reviewID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if e, ok := v.entries[reviewID]; ok {
		e.dirty = true
	}
}

// Tracked returns how many jobs currently have progress state.
func (v *ProgressView) Tracked() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.entries)
}
