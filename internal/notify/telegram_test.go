package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/boardwatch/internal/watch"
)

type fakeBot struct {
	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func TestTelegramSendNumericChat(t *testing.T) {
	t.Parallel()

	bot := &fakeBot{}
	tg, err := newTelegram(bot, "-100123", 0, nil)
	require.NoError(t, err)

	msg := watch.Message{Text: "🐣 hi", DisableLinkPreview: true}
	require.NoError(t, tg.Send(context.Background(), msg))

	require.Len(t, bot.sent, 1)
	require.Equal(t, int64(-100123), bot.sent[0].ChatID)
	require.Equal(t, "🐣 hi", bot.sent[0].Text)
	require.True(t, bot.sent[0].DisableWebPagePreview)
}

func TestTelegramSendChannel(t *testing.T) {
	t.Parallel()

	bot := &fakeBot{}
	tg, err := newTelegram(bot, "@boardwatch", 0, nil)
	require.NoError(t, err)
	require.NoError(t, tg.Send(context.Background(), watch.Message{Text: "x"}))
	require.Equal(t, "@boardwatch", bot.sent[0].ChannelUsername)
}

func TestTelegramRejectsBadChat(t *testing.T) {
	t.Parallel()

	_, err := newTelegram(&fakeBot{}, "", 0, nil)
	require.Error(t, err)
	_, err = newTelegram(&fakeBot{}, "not-a-chat", 0, nil)
	require.Error(t, err)
}

func TestTelegramFailureIsTransportError(t *testing.T) {
	t.Parallel()

	boom := errors.New("chat not found")
	tg, err := newTelegram(&fakeBot{err: boom}, "1", 0, nil)
	require.NoError(t, err)

	err = tg.Send(context.Background(), watch.Message{Text: "x"})
	var transportErr *watch.TransportError
	require.ErrorAs(t, err, &transportErr)
	require.Equal(t, "telegram", transportErr.Transport)
	require.ErrorIs(t, err, boom)
}

func TestTelegramRateLimitHonorsContext(t *testing.T) {
	t.Parallel()

	bot := &fakeBot{}
	tg, err := newTelegram(bot, "1", 0.001, nil)
	require.NoError(t, err)
	require.NoError(t, tg.Send(context.Background(), watch.Message{Text: "first"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = tg.Send(ctx, watch.Message{Text: "second"})
	var transportErr *watch.TransportError
	require.ErrorAs(t, err, &transportErr)
	require.Len(t, bot.sent, 1)
}

func TestNewTelegramAgainstBotAPI(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var texts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/botTOKEN/getMe":
			fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"watch","username":"watch_bot"}}`)
		case "/botTOKEN/sendMessage":
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "42", r.PostForm.Get("chat_id"))
			assert.Equal(t, "true", r.PostForm.Get("disable_web_page_preview"))
			mu.Lock()
			texts = append(texts, r.PostForm.Get("text"))
			mu.Unlock()
			fmt.Fprint(w, `{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"ok":false,"error_code":404,"description":"Not Found"}`)
		}
	}))
	defer srv.Close()

	tg, err := NewTelegram(TelegramConfig{
		Token:      "TOKEN",
		ChatID:     "42",
		Endpoint:   srv.URL + "/bot%s/%s",
		HTTPClient: srv.Client(),
	}, nil)
	require.NoError(t, err)

	require.NoError(t, tg.Send(context.Background(), watch.Message{Text: "🌰 title\nhttps://theqoo.net/bl/1", DisableLinkPreview: true}))
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"🌰 title\nhttps://theqoo.net/bl/1"}, texts)
}

func TestNewTelegramRequiresToken(t *testing.T) {
	t.Parallel()

	_, err := NewTelegram(TelegramConfig{ChatID: "1"}, nil)
	require.Error(t, err)
}
