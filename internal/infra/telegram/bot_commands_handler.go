// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func RegisterBotCommands(
	b *telebot.Bot,
	operatorID int64,
	historyEnabled bool,
	baseLogger *logrus.Entry, // For contextual logging
) {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")

	b.Handle("/start", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/start").WithField("sender_id", senderID)
		logCtx.Info("Processing /start command")

		if senderID == operatorID {
			logCtx.Info("User identified as operator")
			return c.Send(fmt.Sprintf("Hi %s! I post your review replies and keep you posted on their progress. Use /help for the list of commands.", c.Sender().FirstName))
		}

		logCtx.Info("User is unknown")
		return c.Send("Hi! This bot manages review replies for a single operator and is not available to you.")
	})

	b.Handle("/help", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/help").WithField("sender_id", senderID)
		logCtx.Info("Processing /help command")

		if senderID != operatorID {
			logCtx.Info("User is unknown, sending restricted help.")
			return c.Send("There are no commands available for you.")
		}

		var helpText strings.Builder
		helpText.WriteString("Available commands:\n\n")
		helpText.WriteString("`/store <store_id>`\n - Load the reviews of a store.\n\n")
		helpText.WriteString("`/reviews [all|pending|replied]`\n - List reviews, optionally changing the filter.\n\n")
		helpText.WriteString("`/draft <review_id> <text>`\n - Save a draft reply for a review.\n\n")
		helpText.WriteString("`/post <review_id>`\n - Publish the draft. Only one reply is posted at a time.\n\n")
		helpText.WriteString("`/status`\n - Show the reply that is being posted.\n\n")
		if historyEnabled {
			helpText.WriteString("`/history [review_id]`\n - Show finished posting jobs.\n\n")
		}
		helpText.WriteString("`/help`\n - Show this message.")
		return c.Send(helpText.String(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	})
}
