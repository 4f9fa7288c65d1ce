package telegram

import (
	"context"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
)

type (
	Update          = tgbotapi.Update
	MessageOriginal = tgbotapi.Message
	UserOriginal    = tgbotapi.User
	ChatOriginal    = tgbotapi.Chat
	MessageEntity   = tgbotapi.MessageEntity
)

type Message struct {
	MessageID int
	Chat      Chat
	Text      string
	From      User
	ReplyTo   *Message
	Command   string
}

type User struct {
	ID        int64
	FirstName string
	UserName  string
	IsBot     bool
}

type Chat struct {
	ID   int64
	Type string
}

type MessageConfig interface {
	ToChattable() tgbotapi.Chattable
}

type TextMessage struct {
	ChatID              int64
	Text                string
	ReplyTo             int
	LinkPreviewDisabled bool
	ParseMode           string
}

func NewMessage(chatID int64, text string, replyTo int) TextMessage {
	return TextMessage{
		ChatID:              chatID,
		Text:                text,
		LinkPreviewDisabled: true,
		ReplyTo:             replyTo,
	}
}

func (m TextMessage) ToChattable() tgbotapi.Chattable {
	msg := tgbotapi.NewMessage(m.ChatID, m.Text)
	msg.ReplyParameters.MessageID = m.ReplyTo
	msg.ParseMode = m.ParseMode
	msg.LinkPreviewOptions.IsDisabled = m.LinkPreviewDisabled
	return msg
}

type UpdateConfig struct {
	Offset  int
	Limit   int
	Timeout int
}

type ChatAction string

const (
	ActionTyping ChatAction = "typing"
)

type Client interface {
	Send(msg MessageConfig) (*Message, error)
	SendWithRetry(ctx context.Context, msg MessageConfig, maxRetryCount int) (*Message, error)
	SendChatAction(chatID int64, action ChatAction) error
	GetUpdatesChan(config UpdateConfig) <-chan Update
	StopReceivingUpdates()
	NewUpdate(offset, timeout, limit int) UpdateConfig
	Self() User
}
