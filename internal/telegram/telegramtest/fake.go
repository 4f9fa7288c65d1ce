// Package telegramtest provides an in-memory telegram.Client for tests.
package telegramtest

import (
	"context"
	"sync"

	"github.com/muratoffalex/pablos/internal/telegram"
)

type SentMessage struct {
	ChatID  int64
	Text    string
	ReplyTo int
}

type Client struct {
	mu      sync.Mutex
	self    telegram.User
	sent    []SentMessage
	actions []telegram.ChatAction
	updates chan telegram.Update
	stopped bool

	// SendErr, when set, fails every send.
	SendErr error
}

func NewClient(botUsername string) *Client {
	return &Client{
		self:    telegram.User{ID: 1000, FirstName: "Pablos", UserName: botUsername, IsBot: true},
		updates: make(chan telegram.Update, 16),
	}
}

func (c *Client) Send(msg telegram.MessageConfig) (*telegram.Message, error) {
	return c.SendWithRetry(context.Background(), msg, 0)
}

func (c *Client) SendWithRetry(_ context.Context, msg telegram.MessageConfig, _ int) (*telegram.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SendErr != nil {
		return nil, c.SendErr
	}

	text, _ := msg.(telegram.TextMessage)
	c.sent = append(c.sent, SentMessage{ChatID: text.ChatID, Text: text.Text, ReplyTo: text.ReplyTo})
	return &telegram.Message{
		MessageID: len(c.sent),
		Chat:      telegram.Chat{ID: text.ChatID},
		Text:      text.Text,
		From:      c.self,
	}, nil
}

func (c *Client) SendChatAction(_ int64, action telegram.ChatAction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.actions = append(c.actions, action)
	return nil
}

func (c *Client) GetUpdatesChan(telegram.UpdateConfig) <-chan telegram.Update {
	return c.updates
}

// Push queues an update for the polling loop.
func (c *Client) Push(update telegram.Update) {
	c.updates <- update
}

func (c *Client) StopReceivingUpdates() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
}

func (c *Client) NewUpdate(offset, timeout, limit int) telegram.UpdateConfig {
	return telegram.UpdateConfig{Offset: offset, Timeout: timeout, Limit: limit}
}

func (c *Client) Self() telegram.User {
	return c.self
}

func (c *Client) Sent() []SentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]SentMessage, len(c.sent))
	copy(out, c.sent)
	return out
}

func (c *Client) Actions() []telegram.ChatAction {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]telegram.ChatAction, len(c.actions))
	copy(out, c.actions)
	return out
}

func (c *Client) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// TextUpdate builds an incoming text message from userID in chatID.
func TextUpdate(chatID, userID int64, chatType, text string) telegram.Update {
	msg := &telegram.MessageOriginal{
		MessageID: 1,
		From:      &telegram.UserOriginal{ID: userID, FirstName: "Budi", UserName: "budi"},
		Chat:      telegram.ChatOriginal{ID: chatID, Type: chatType},
		Text:      text,
	}
	if len(text) > 0 && text[0] == '/' {
		end := len(text)
		for i, r := range text {
			if r == ' ' {
				end = i
				break
			}
		}
		msg.Entities = []telegram.MessageEntity{{Type: "bot_command", Offset: 0, Length: end}}
	}
	return telegram.Update{UpdateID: 1, Message: msg}
}
