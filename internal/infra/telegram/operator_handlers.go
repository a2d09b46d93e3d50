// internal/infra/telegram/operator_handlers.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"review_reply_bot/internal/app"
	"review_reply_bot/internal/domain/posting"
	"review_reply_bot/internal/domain/review"
	iapi "review_reply_bot/internal/infra/api"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const (
	maxListedReviews = 25
	loadTimeout      = 30 * time.Second
)

// operatorOnly drops updates from anyone but the configured operator.
func operatorOnly(operatorID int64, baseLogger *logrus.Entry) telebot.MiddlewareFunc {
	return func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			if c.Sender() == nil || c.Sender().ID != operatorID {
				senderID := int64(0)
				if c.Sender() != nil {
					senderID = c.Sender().ID
				}
				baseLogger.WithFields(logrus.Fields{"sender_id": senderID, "text": c.Text()}).Warn("Unauthorized access attempt")
				return c.Send("Sorry, this bot only works for its operator.")
			}
			return next(c)
		}
	}
}

// RegisterOperatorHandlers registers the review and posting commands.
func RegisterOperatorHandlers(
	ctx context.Context,
	b *telebot.Bot,
	board *app.ReviewBoard,
	postingService *app.PostingService,
	historyService *app.HistoryService,
	operatorID int64,
	upgradeURL string,
	baseLogger *logrus.Entry,
) {
	g := b.Group()
	g.Use(operatorOnly(operatorID, baseLogger))

	g.Handle("/store", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{"handler": "/store", "sender_id": c.Sender().ID})
		handlerLogger.Info("Command received")

		args := c.Args()
		if len(args) != 1 {
			return c.Send("Usage: /store <store_id>")
		}
		if postingService.Busy() {
			return c.Send("A reply is still being posted. Wait for it to finish before switching stores.")
		}

		loadCtx, cancel := context.WithTimeout(ctx, loadTimeout)
		defer cancel()
		n, err := board.Load(loadCtx, args[0])
		if err != nil {
			handlerLogger.WithError(err).Error("Failed to load reviews")
			return c.Send(fmt.Sprintf("Could not load reviews for store %s: %s", args[0], err.Error()))
		}
		return c.Send(fmt.Sprintf("Loaded %d reviews for store %s. Use /reviews to list them.", n, args[0]))
	})

	g.Handle("/reviews", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{"handler": "/reviews", "sender_id": c.Sender().ID})
		handlerLogger.Info("Command received")

		if board.StoreID() == "" {
			return c.Send("No store selected. Use /store <store_id> first.")
		}
		args := c.Args()
		if len(args) > 1 {
			return c.Send("Usage: /reviews [all|pending|replied]")
		}
		if len(args) == 1 {
			filter, ok := review.ParseFilter(args[0])
			if !ok {
				return c.Send("Unknown filter. Use one of: all, pending, replied.")
			}
			board.SetFilter(filter)
		}

		reviews := board.List()
		if len(reviews) == 0 {
			return c.Send(fmt.Sprintf("No %s reviews in store %s.", board.Filter(), board.StoreID()))
		}

		var text strings.Builder
		fmt.Fprintf(&text, "Store %s, %s reviews (%d):\n\n", board.StoreID(), board.Filter(), len(reviews))
		for i, r := range reviews {
			if i == maxListedReviews {
				fmt.Fprintf(&text, "…and %d more.", len(reviews)-maxListedReviews)
				break
			}
			_, hasDraft := board.Draft(r.ID)
			text.WriteString(renderReviewLine(r, hasDraft, board.JustCompleted(r.ID)))
			text.WriteString("\n\n")
		}
		return c.Send(strings.TrimSpace(text.String()), &telebot.SendOptions{DisableWebPagePreview: true})
	})

	g.Handle("/draft", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{"handler": "/draft", "sender_id": c.Sender().ID})
		handlerLogger.Info("Command received")

		reviewID, text, ok := splitDraftPayload(c.Message().Payload)
		if !ok {
			return c.Send("Usage: /draft <review_id> <reply text>")
		}
		handlerLogger = handlerLogger.WithField("review_id", reviewID)

		if err := board.SetDraft(reviewID, text); err != nil {
			handlerLogger.WithError(err).Warn("Failed to save draft")
			return c.Send(fmt.Sprintf("Review %s is not in the current list.", reviewID))
		}
		return c.Send(fmt.Sprintf("Draft saved for review %s. Send /post %s to publish it.", reviewID, reviewID))
	})

	g.Handle("/post", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{"handler": "/post", "sender_id": c.Sender().ID})
		handlerLogger.Info("Command received")

		args := c.Args()
		if len(args) != 1 {
			return c.Send("Usage: /post <review_id>")
		}
		reviewID := args[0]
		handlerLogger = handlerLogger.WithField("review_id", reviewID)

		job, err := postingService.Submit(ctx, reviewID)
		if err != nil {
			logWithError := handlerLogger.WithError(err)
			var planErr *iapi.PlanLimitError
			switch {
			case errors.Is(err, app.ErrEmptyDraft):
				return c.Send(fmt.Sprintf("There is no draft for review %s. Use /draft first.", reviewID))
			case errors.Is(err, app.ErrReviewNotFound):
				return c.Send(fmt.Sprintf("Review %s is not in the current list.", reviewID))
			case errors.Is(err, app.ErrJobInFlight):
				return c.Send("Another reply is being posted right now. Try again when it is done.")
			case errors.As(err, &planErr):
				logWithError.Warn("Plan limit reached")
				return sendUpgradePrompt(c, planErr, upgradeURL)
			default:
				logWithError.Error("Failed to submit reply")
				return c.Send("Could not submit the reply. Please try again later.")
			}
		}
		handlerLogger.WithField("job_id", job.JobID).Info("Reply submitted")
		return c.Send(fmt.Sprintf("Reply to %s submitted. Estimated time %ds.", reviewID, job.EstimatedSeconds))
	})

	g.Handle("/status", func(c telebot.Context) error {
		baseLogger.WithFields(logrus.Fields{"handler": "/status", "sender_id": c.Sender().ID}).Info("Command received")

		job, ok := postingService.Active()
		if !ok {
			return c.Send("Nothing is being posted right now.")
		}
		author := ""
		if r, found := board.Get(job.ReviewID); found {
			author = r.Author
		}
		return c.Send(renderProgress(job, author))
	})

	g.Handle("/history", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{"handler": "/history", "sender_id": c.Sender().ID})
		handlerLogger.Info("Command received")

		reviewID := ""
		if args := c.Args(); len(args) > 0 {
			reviewID = args[0]
		}
		summary, err := historyService.Recent(ctx, c.Sender().ID, reviewID)
		if err != nil {
			switch {
			case errors.Is(err, app.ErrJournalDisabled):
				return c.Send("History is not available: no database is configured.")
			case errors.Is(err, app.ErrOperatorNotAuthorized):
				return c.Send("Sorry, this bot only works for its operator.")
			default:
				handlerLogger.WithError(err).Error("Failed to read history")
				return c.Send("Could not read the posting history. Please try again later.")
			}
		}
		return c.Send(renderHistory(summary, reviewID))
	})
}

// splitDraftPayload splits "<review_id> <text>" keeping the text's inner line breaks.
func splitDraftPayload(payload string) (string, string, bool) {
	payload = strings.TrimSpace(payload)
	i := strings.IndexAny(payload, " \t\n")
	if i < 0 {
		return "", "", false
	}
	reviewID := payload[:i]
	text := strings.TrimSpace(payload[i:])
	if reviewID == "" || text == "" {
		return "", "", false
	}
	return reviewID, text, true
}

func sendUpgradePrompt(c telebot.Context, planErr *iapi.PlanLimitError, upgradeURL string) error {
	text := fmt.Sprintf("Your plan does not allow posting this reply: %s", planErr.Detail)
	if upgradeURL == "" {
		return c.Send(text + "\nUpgrade your plan to continue.")
	}
	markup := &telebot.ReplyMarkup{}
	markup.Inline(markup.Row(markup.URL("Upgrade plan", upgradeURL)))
	return c.Send(text, markup)
}

func renderHistory(summary *app.HistorySummary, reviewID string) string {
	var text strings.Builder
	if reviewID != "" {
		fmt.Fprintf(&text, "Posting history for review %s:\n", reviewID)
	} else {
		text.WriteString("Recent posting jobs:\n")
	}
	if len(summary.Outcomes) == 0 {
		text.WriteString("nothing yet\n")
	}
	for _, o := range summary.Outcomes {
		text.WriteString(renderOutcome(o))
		text.WriteString("\n")
	}
	fmt.Fprintf(&text, "\nTotals: %d posted, %d failed, %d lost",
		summary.Counts[posting.StatusCompleted],
		summary.Counts[posting.StatusFailed],
		summary.Counts[posting.StatusLost],
	)
	return text.String()
}
