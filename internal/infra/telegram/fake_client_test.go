package telegram

import (
	"errors"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type sentMessage struct {
	chatID int64
	text   string
	opts   *telebot.SendOptions
}

// fakeClient records Telegram calls instead of making them.
type fakeClient struct {
	mu      sync.Mutex
	nextID  int
	sent    []sentMessage
	edits   map[int][]string
	deleted []int
	sendErr error
	editErr error
}

func newFakeClient() *fakeClient {
	return &fakeClient{edits: make(map[int][]string)}
}

func (f *fakeClient) SendMessage(chatID int64, text string, opts *telebot.SendOptions) (*telebot.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.nextID++
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text, opts: opts})
	return &telebot.Message{ID: f.nextID, Chat: &telebot.Chat{ID: chatID}, Text: text}, nil
}

func (f *fakeClient) EditMessage(msg telebot.Editable, text string, _ *telebot.SendOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editErr != nil {
		return f.editErr
	}
	m, ok := msg.(*telebot.Message)
	if !ok {
		return errors.New("unexpected editable")
	}
	f.edits[m.ID] = append(f.edits[m.ID], text)
	return nil
}

func (f *fakeClient) DeleteMessage(msg telebot.Editable) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := msg.(*telebot.Message)
	if !ok {
		return errors.New("unexpected editable")
	}
	f.deleted = append(f.deleted, m.ID)
	return nil
}
