package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-wallet-tracker/internal/domain"
)

type botCall struct {
	method string
	form   map[string]string
}

// fakeBotAPI answers getMe and records every other Bot API call.
func fakeBotAPI(t *testing.T) (*tgbotapi.BotAPI, func() []botCall) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []botCall
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		w.Header().Set("Content-Type", "application/json")
		if method == "getMe" {
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"tracker","username":"tracker_bot"}}`))
			return
		}

		assert.NoError(t, r.ParseForm())
		form := make(map[string]string)
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		mu.Lock()
		calls = append(calls, botCall{method: method, form: form})
		mu.Unlock()
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":1001,"type":"private"}}}`))
	}))
	t.Cleanup(srv.Close)

	bot, err := tgbotapi.NewBotAPIWithClient("TOKEN", srv.URL+"/bot%s/%s", srv.Client())
	require.NoError(t, err)

	return bot, func() []botCall {
		mu.Lock()
		defer mu.Unlock()
		return append([]botCall(nil), calls...)
	}
}

func TestTelegramSender_TextMessage(t *testing.T) {
	bot, calls := fakeBotAPI(t)
	s := NewTelegramSender(bot, WithChatInterval(0))

	err := s.Send(context.Background(), domain.Notification{
		SubscriberID: "1001",
		Text:         "⚡ <b>Swap detected</b>",
		Silent:       true,
	})
	require.NoError(t, err)

	got := calls()
	require.Len(t, got, 1)
	assert.Equal(t, "sendMessage", got[0].method)
	assert.Equal(t, "1001", got[0].form["chat_id"])
	assert.Equal(t, "⚡ <b>Swap detected</b>", got[0].form["text"])
	assert.Equal(t, "HTML", got[0].form["parse_mode"])
	assert.Equal(t, "true", got[0].form["disable_web_page_preview"])
	assert.Equal(t, "true", got[0].form["disable_notification"])
}

func TestTelegramSender_PhotoWithCaption(t *testing.T) {
	bot, calls := fakeBotAPI(t)
	s := NewTelegramSender(bot, WithChatInterval(0))

	err := s.Send(context.Background(), domain.Notification{
		SubscriberID: "-100200",
		Text:         "🚀 <b>New pool detected</b>",
		ImageURL:     "https://img.example.com/logo.png",
	})
	require.NoError(t, err)

	got := calls()
	require.Len(t, got, 1)
	assert.Equal(t, "sendPhoto", got[0].method)
	assert.Equal(t, "-100200", got[0].form["chat_id"])
	assert.Equal(t, "https://img.example.com/logo.png", got[0].form["photo"])
	assert.Equal(t, "🚀 <b>New pool detected</b>", got[0].form["caption"])
	assert.Equal(t, "HTML", got[0].form["parse_mode"])
	assert.NotEqual(t, "true", got[0].form["disable_notification"])
}

func TestTelegramSender_InvalidChatID(t *testing.T) {
	bot, calls := fakeBotAPI(t)
	s := NewTelegramSender(bot)

	err := s.Send(context.Background(), domain.Notification{SubscriberID: "not-a-chat"})
	assert.Error(t, err)
	assert.Empty(t, calls())
}

func TestLogSender(t *testing.T) {
	assert.NoError(t, NewLogSender(nil).Send(context.Background(), domain.Notification{SubscriberID: "x", Text: "hi"}))
}
