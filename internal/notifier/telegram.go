package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	logx "goalbot/pkg/logx"
)

var (
	// ErrPublishFailed wraps a failed or unconfirmed send.
	ErrPublishFailed = errors.New("notifier: publish failed")

	// ErrRenewFailed marks a failed session renewal (auth-level failure).
	ErrRenewFailed = errors.New("notifier: session renewal failed")
)

type TelegramConfig struct {
	Token       string
	ChannelID   int64
	RatePerSec  int
	SendTimeout time.Duration
}

// Telegram publishes plain-text posts to a fixed channel. Login happens via
// the bot API's auth handshake; Renew rebuilds the session after a publish
// failure.
type Telegram struct {
	cfg TelegramConfig
	log logx.Logger

	mu  sync.Mutex
	bot *tele.Bot

	limiter *rate.Limiter
}

func NewTelegram(cfg TelegramConfig, log logx.Logger) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChannelID == 0 {
		return nil, errors.New("telegram channel id is empty")
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	return &Telegram{
		cfg:     cfg,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
	}, nil
}

// Login authenticates with the bot API. It must succeed before publishing.
func (t *Telegram) Login(ctx context.Context) error {
	b, err := tele.NewBot(tele.Settings{Token: t.cfg.Token})
	if err != nil {
		return fmt.Errorf("telegram login: %w", err)
	}
	t.mu.Lock()
	t.bot = b
	t.mu.Unlock()
	t.log.Info("telegram login ok", logx.String("bot", b.Me.Username))
	return nil
}

// Renew drops the current session and logs in again.
func (t *Telegram) Renew(ctx context.Context) error {
	t.mu.Lock()
	t.bot = nil
	t.mu.Unlock()
	if err := t.Login(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRenewFailed, err)
	}
	return nil
}

// Publish sends text to the configured channel through the rate limiter.
func (t *Telegram) Publish(ctx context.Context, text string) error {
	t.mu.Lock()
	b := t.bot
	t.mu.Unlock()
	if b == nil {
		return fmt.Errorf("%w: not logged in", ErrPublishFailed)
	}

	wctx, cancel := context.WithTimeout(ctx, t.cfg.SendTimeout)
	defer cancel()
	if err := t.limiter.Wait(wctx); err != nil {
		return fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}

	msg, err := b.Send(&tele.Chat{ID: t.cfg.ChannelID}, text)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}
	if msg == nil {
		return fmt.Errorf("%w: no confirmation", ErrPublishFailed)
	}
	return nil
}
