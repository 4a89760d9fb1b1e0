package returner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
)

// TelegramSink pushes outcome summaries to a Telegram chat. Intended for
// small fleets where an operator watches a channel rather than a dashboard.
type TelegramSink struct {
	bot          *tele.Bot
	chatID       int64
	onlyFailures bool
}

func NewTelegramSink(token string, chatID int64, onlyFailures bool) (*TelegramSink, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram returner: token is empty")
	}
	if chatID == 0 {
		return nil, errors.New("telegram returner: chat_id is required")
	}
	// send-only, no poller
	b, err := tele.NewBot(tele.Settings{Token: token})
	if err != nil {
		return nil, fmt.Errorf("telegram returner: %w", err)
	}
	return &TelegramSink{bot: b, chatID: chatID, onlyFailures: onlyFailures}, nil
}

func (s *TelegramSink) Name() string { return "telegram" }

func (s *TelegramSink) Deliver(_ context.Context, o Outcome) error {
	if s.onlyFailures && o.Success {
		return nil
	}
	_, err := s.bot.Send(&tele.Chat{ID: s.chatID}, format(o), &tele.SendOptions{
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("telegram returner: %w", err)
	}
	return nil
}

func format(o Outcome) string {
	var b strings.Builder
	if o.Success {
		b.WriteString("✅ ")
	} else {
		b.WriteString("❌ ")
	}
	fmt.Fprintf(&b, "%s | %s (%s)\n", o.Node, o.Schedule, o.Fun)
	fmt.Fprintf(&b, "jid: %s\n", o.JID)
	fmt.Fprintf(&b, "took: %s\n", o.Duration().Round(time.Millisecond))
	if o.Error != "" {
		fmt.Fprintf(&b, "error: %s\n", o.Error)
	} else if o.Return != nil {
		ret := fmt.Sprint(o.Return)
		if len(ret) > 500 {
			ret = ret[:500] + "…"
		}
		fmt.Fprintf(&b, "return: %s\n", ret)
	}
	return b.String()
}
