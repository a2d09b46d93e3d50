package telegram

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"review_reply_bot/internal/app"
	"review_reply_bot/internal/domain/posting"
	"review_reply_bot/internal/domain/review"
)

const (
	progressBarWidth = 10
	snippetLength    = 80
)

// renderProgress renders the live status line of a job.
func renderProgress(job posting.Job, author string) string {
	who := job.ReviewID
	if author != "" {
		who = fmt.Sprintf("%s (%s)", author, job.ReviewID)
	}

	switch job.Status {
	case posting.StatusProcessing:
		if job.StartedAt == nil {
			return fmt.Sprintf("✍️ Posting reply to %s…\nAbout %ds.", who, job.EstimatedSeconds)
		}
		if job.RemainingSeconds == 0 {
			return fmt.Sprintf("✍️ Posting reply to %s…\n%s 100%%\nFinishing up.", who, progressBar(100))
		}
		percent := progressPercent(job.EstimatedSeconds, job.RemainingSeconds)
		return fmt.Sprintf("✍️ Posting reply to %s…\n%s %d%%\nAbout %ds left.", who, progressBar(percent), percent, job.RemainingSeconds)
	case posting.StatusCompleted:
		return fmt.Sprintf("✅ Reply to %s posted.", who)
	case posting.StatusFailed, posting.StatusLost:
		return fmt.Sprintf("❌ Reply to %s was not posted.", who)
	default:
		if job.PositionInQueue > 0 {
			return fmt.Sprintf("⏳ Reply to %s is queued, position %d.\nTakes about %ds once started.", who, job.PositionInQueue, job.EstimatedSeconds)
		}
		return fmt.Sprintf("⏳ Reply to %s is queued.\nTakes about %ds once started.", who, job.EstimatedSeconds)
	}
}

func progressPercent(estimate, remaining int) int {
	if estimate <= 0 {
		return 0
	}
	done := estimate - remaining
	if done < 0 {
		done = 0
	}
	percent := done * 100 / estimate
	if percent > 100 {
		percent = 100
	}
	return percent
}

func progressBar(percent int) string {
	filled := percent * progressBarWidth / 100
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", progressBarWidth-filled) + "]"
}

// renderEvent renders a terminal job notification.
func renderEvent(e app.Event) string {
	who := e.ReviewID
	if e.Author != "" {
		who = e.Author
	}
	switch e.Kind {
	case app.EventCompleted:
		return fmt.Sprintf("✅ Reply to %s posted:\n%s", who, snippet(e.ReplyText))
	case app.EventLost:
		return fmt.Sprintf("⚠️ Reply to %s: %s", who, e.Message)
	default:
		return fmt.Sprintf("❌ Reply to %s failed: %s", who, e.Message)
	}
}

func renderReviewLine(r review.Review, hasDraft, justCompleted bool) string {
	var b strings.Builder
	b.WriteString(r.ID)
	b.WriteString(" · ")
	b.WriteString(r.Author)
	if r.Rating.Valid {
		fmt.Fprintf(&b, " · %d★", r.Rating.Int32)
	}
	if r.Date != "" {
		b.WriteString(" · ")
		b.WriteString(r.Date)
	}
	switch {
	case justCompleted:
		b.WriteString(" · just replied")
	case r.HasReply():
		b.WriteString(" · replied")
	case hasDraft:
		b.WriteString(" · draft ready")
	default:
		b.WriteString(" · pending")
	}
	if r.Content != "" {
		b.WriteString("\n   ")
		b.WriteString(snippet(r.Content))
	}
	return b.String()
}

func renderOutcome(o *posting.Outcome) string {
	line := fmt.Sprintf("%s · %s · %s", o.FinishedAt.Format("2006-01-02 15:04"), o.ReviewID, o.Status)
	if o.Message != "" {
		line += " · " + o.Message
	}
	return line
}

// snippet shortens text to a single line preview.
func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= snippetLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:snippetLength-1]) + "…"
}
