// internal/infra/telegram/client.go
package telegram

import (
	"errors"

	"gopkg.in/telebot.v3"
)

// TelebotAdapter implements the Client interface using the gopkg.in/telebot.v3 library.
type TelebotAdapter struct {
	bot *telebot.Bot
}

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

// SendMessage sends a text message to the specified chat and returns it so it can
// be edited or deleted later.
func (tba *TelebotAdapter) SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) (*telebot.Message, error) {
	if options == nil {
		options = &telebot.SendOptions{}
	}

	recipient := &telebot.Chat{ID: recipientChatID}
	return tba.bot.Send(recipient, text, options)
}

// EditMessage replaces the text of a previously sent message.
func (tba *TelebotAdapter) EditMessage(msg telebot.Editable, text string, options *telebot.SendOptions) error {
	if options == nil {
		options = &telebot.SendOptions{}
	}
	_, err := tba.bot.Edit(msg, text, options)
	if errors.Is(err, telebot.ErrSameMessageContent) {
		return nil
	}
	return err
}

func (tba *TelebotAdapter) DeleteMessage(msg telebot.Editable) error {
	return tba.bot.Delete(msg)
}
