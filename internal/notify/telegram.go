package notify

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/boardwatch/internal/watch"
)

const transportTelegram = "telegram"

// TelegramConfig configures the Bot API transport.
type TelegramConfig struct {
	Token string
	// ChatID is a numeric chat ID or an @channel name.
	ChatID string
	// Endpoint overrides the Bot API endpoint format (tgbotapi.APIEndpoint).
	Endpoint string
	// RatePerSecond bounds sends; zero or less disables limiting.
	RatePerSecond float64
	HTTPClient    *http.Client
}

type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends alerts through the Telegram Bot API.
type Telegram struct {
	api     botAPI
	chatID  int64
	channel string
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewTelegram authenticates against the Bot API and returns the transport.
func NewTelegram(cfg TelegramConfig, logger *zap.Logger) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	t, err := newTelegram(api, cfg.ChatID, cfg.RatePerSecond, logger)
	if err != nil {
		return nil, err
	}
	t.logger.Info("telegram transport ready", zap.String("bot", api.Self.UserName))
	return t, nil
}

func newTelegram(api botAPI, chat string, rps float64, logger *zap.Logger) (*Telegram, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Telegram{api: api, logger: logger}
	chat = strings.TrimSpace(chat)
	switch {
	case chat == "":
		return nil, fmt.Errorf("telegram chat id is required")
	case strings.HasPrefix(chat, "@"):
		t.channel = chat
	default:
		id, err := strconv.ParseInt(chat, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("telegram chat id %q: must be numeric or @channel", chat)
		}
		t.chatID = id
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	t.limiter = rate.NewLimiter(limit, 1)
	return t, nil
}

// Send delivers msg once. Every failure is a *watch.TransportError.
func (t *Telegram) Send(ctx context.Context, msg watch.Message) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return &watch.TransportError{Transport: transportTelegram, Err: fmt.Errorf("rate limit wait: %w", err)}
	}
	var cfg tgbotapi.MessageConfig
	if t.channel != "" {
		cfg = tgbotapi.NewMessageToChannel(t.channel, msg.Text)
	} else {
		cfg = tgbotapi.NewMessage(t.chatID, msg.Text)
	}
	cfg.DisableWebPagePreview = msg.DisableLinkPreview

	sent, err := t.api.Send(cfg)
	if err != nil {
		return &watch.TransportError{Transport: transportTelegram, Err: err}
	}
	t.logger.Debug("telegram message sent",
		zap.Int("message_id", sent.MessageID),
		zap.String("item_id", msg.Item.ID))
	return nil
}
