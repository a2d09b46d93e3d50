// internal/infra/telegram/notifier.go
package telegram

import (
	"context"
	"time"

	"review_reply_bot/internal/app"
	domainTelegram "review_reply_bot/internal/domain/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// Notifier delivers terminal posting events to the operator chat. Success
// messages are transient and removed after ttl; failures stay until read.
type Notifier struct {
	client     domainTelegram.Client
	operatorID int64
	ttl        time.Duration
	logger     *logrus.Entry
	afterFunc  func(d time.Duration, f func()) *time.Timer
}

func NewNotifier(client domainTelegram.Client, operatorID int64, ttl time.Duration, logger *logrus.Entry) *Notifier {
	return &Notifier{
		client:     client,
		operatorID: operatorID,
		ttl:        ttl,
		logger:     logger,
		afterFunc:  time.AfterFunc,
	}
}

var _ app.Notifier = (*Notifier)(nil)

func (n *Notifier) Notify(_ context.Context, event app.Event) {
	logCtx := n.logger.WithFields(logrus.Fields{
		"review_id": event.ReviewID,
		"job_id":    event.JobID,
		"kind":      event.Kind,
	})

	msg, err := n.client.SendMessage(n.operatorID, renderEvent(event), &telebot.SendOptions{DisableWebPagePreview: true})
	if err != nil {
		logCtx.WithError(err).Error("Failed to send posting notification")
		return
	}
	logCtx.Info("Posting notification sent")

	if event.Kind != app.EventCompleted || n.ttl <= 0 || msg == nil {
		return
	}
	n.afterFunc(n.ttl, func() {
		if err := n.client.DeleteMessage(msg); err != nil {
			logCtx.WithError(err).Warn("Failed to remove transient notification")
		}
	})
}
