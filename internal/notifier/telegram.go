package notifier

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	logx "guildmirror/pkg/logx"
)

const telegramTextLimit = 4096

// Sender delivers one plain-text message.
type Sender interface {
	Send(ctx context.Context, text string) error
}

type TelegramConfig struct {
	Token    string
	ChatID   int64
	ThreadID int
	Timeout  time.Duration
	// APIURL overrides https://api.telegram.org (tests).
	APIURL string
}

type Telegram struct {
	bot      *tele.Bot
	chat     *tele.Chat
	threadID int
	log      logx.Logger
}

func NewTelegram(cfg TelegramConfig, log logx.Logger) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		URL:     cfg.APIURL,
		Token:   cfg.Token,
		Client:  &http.Client{Timeout: timeout},
		Offline: true,
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Telegram{
		bot:      b,
		chat:     &tele.Chat{ID: cfg.ChatID},
		threadID: cfg.ThreadID,
		log:      log.With(logx.String("comp", "notifier.telegram")),
	}, nil
}

func (t *Telegram) Send(ctx context.Context, text string) error {
	chunks := splitTelegramText(text, telegramTextLimit)
	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := t.bot.Send(t.chat, chunk, &tele.SendOptions{
			DisableWebPagePreview: true,
			ThreadID:              t.threadID,
		}); err != nil {
			return err
		}
	}
	t.log.Debug("summary sent", logx.Int("chunks", len(chunks)))
	return nil
}

// splitTelegramText cuts s into limit-rune chunks, preferring a newline in
// the last two thirds of each window.
func splitTelegramText(s string, limit int) []string {
	if limit <= 0 {
		limit = telegramTextLimit
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	out := make([]string, 0, (len(rs)+limit-1)/limit)
	start := 0
	for start < len(rs) {
		end := min(start+limit, len(rs))
		if end < len(rs) {
			for i := end - 1; i > start; i-- {
				if rs[i] == '\n' && i-start >= limit/3 {
					end = i + 1
					break
				}
			}
		}
		out = append(out, string(rs[start:end]))
		start = end
	}
	return out
}
