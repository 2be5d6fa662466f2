package notify

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"solana-wallet-tracker/internal/domain"
)

// DefaultChatInterval is the minimum spacing between messages to one chat.
const DefaultChatInterval = 1100 * time.Millisecond

// TelegramOption configures a TelegramSender.
type TelegramOption func(*TelegramSender)

// WithChatInterval sets the minimum spacing between messages to one chat.
func WithChatInterval(d time.Duration) TelegramOption {
	return func(s *TelegramSender) {
		s.interval = d
	}
}

// TelegramSender delivers notifications through the Telegram Bot API.
// Subscriber IDs are Telegram chat IDs.
type TelegramSender struct {
	bot      *tgbotapi.BotAPI
	interval time.Duration

	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
}

// NewTelegramBot connects to the Bot API with token.
func NewTelegramBot(token string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect telegram bot: %w", err)
	}
	return bot, nil
}

// NewTelegramSender creates a sender using bot.
func NewTelegramSender(bot *tgbotapi.BotAPI, opts ...TelegramOption) *TelegramSender {
	s := &TelegramSender{
		bot:      bot,
		interval: DefaultChatInterval,
		limiters: make(map[int64]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send posts a photo with caption when n carries an image, else a text
// message with link previews disabled.
func (s *TelegramSender) Send(ctx context.Context, n domain.Notification) error {
	chatID, err := strconv.ParseInt(n.SubscriberID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", n.SubscriberID, err)
	}

	if err := s.limiter(chatID).Wait(ctx); err != nil {
		return err
	}

	var msg tgbotapi.Chattable
	if n.ImageURL != "" {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(n.ImageURL))
		photo.Caption = n.Text
		photo.ParseMode = tgbotapi.ModeHTML
		photo.DisableNotification = n.Silent
		msg = photo
	} else {
		text := tgbotapi.NewMessage(chatID, n.Text)
		text.ParseMode = tgbotapi.ModeHTML
		text.DisableWebPagePreview = true
		text.DisableNotification = n.Silent
		msg = text
	}

	if _, err := s.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func (s *TelegramSender) limiter(chatID int64) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[chatID]
	if !ok {
		l = rate.NewLimiter(rate.Every(s.interval), 1)
		s.limiters[chatID] = l
	}
	return l
}
