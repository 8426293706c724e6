package alert

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier defines the interface for an alert notifier.
type Notifier interface {
	SendMessage(text string) error
}

// telegramClient is an implementation of Notifier backed by a Telegram bot.
type telegramClient struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramClient creates a new Telegram notifier.
func NewTelegramClient(botToken string, chatID int64) (Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	return &telegramClient{
		bot:    bot,
		chatID: chatID,
	}, nil
}

// SendMessage sends a message to the configured Telegram chat.
func (c *telegramClient) SendMessage(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	_, err := c.bot.Send(msg)
	return err
}
