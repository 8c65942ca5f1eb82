package notifier

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	tele "gopkg.in/telebot.v4"
)

// TelegramConfig points the sender at one chat (and optional forum topic).
type TelegramConfig struct {
	Token    string
	ChatID   int64
	ThreadID int
	// APIURL overrides the Bot API endpoint (tests).
	APIURL string
}

// TelegramSender sends HTML-formatted messages with telebot.
type TelegramSender struct {
	bot      *tele.Bot
	chat     *tele.Chat
	threadID int
}

func NewTelegramSender(cfg TelegramConfig) (*TelegramSender, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat id is required")
	}
	hc := cleanhttp.DefaultPooledClient()
	hc.Timeout = 10 * time.Second
	b, err := tele.NewBot(tele.Settings{
		URL:       cfg.APIURL,
		Token:     cfg.Token,
		Client:    hc,
		ParseMode: tele.ModeHTML,
		Offline:   true, // send-only; skips getMe at startup
	})
	if err != nil {
		return nil, err
	}
	return &TelegramSender{bot: b, chat: &tele.Chat{ID: cfg.ChatID}, threadID: cfg.ThreadID}, nil
}

func (t *TelegramSender) Send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := t.bot.Send(t.chat, text, &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: true,
		ThreadID:              t.threadID,
	})
	return err
}
