package telegram

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/hanamilabs/pretender-bot/internal/domain"
	"github.com/hanamilabs/pretender-bot/internal/telemetry"
)

func testRuntime(handler Handler) *Runtime {
	bot := &tgbotapi.BotAPI{Self: tgbotapi.User{ID: botID, UserName: "pretender_bot"}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRuntime(logger, bot, handler, RuntimeOptions{Workers: 2})
}

func TestWebhookHandlerDispatchesClassifiedEvent(t *testing.T) {
	var (
		mu     sync.Mutex
		events []domain.Event
		corrs  []string
	)
	runtime := testRuntime(func(ctx context.Context, event domain.Event) error {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, event)
		corrs = append(corrs, telemetry.GetCorrelation(ctx))
		return nil
	})

	body := `{"update_id":10,"message":{"message_id":3,"from":{"id":1001,"first_name":"Max"},"chat":{"id":1001,"type":"private"},"text":"hello"}}`
	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()
	runtime.WebhookHandler(context.Background()).ServeHTTP(rec, req)
	runtime.Wait()

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	content, ok := events[0].(domain.PrivateContent)
	if !ok || content.Payload != (domain.Text{Text: "hello"}) || content.MessageID != 3 {
		t.Fatalf("unexpected event %#v", events[0])
	}
	if corrs[0] == "" {
		t.Fatal("expected correlation id on handler context")
	}
}

func TestWebhookHandlerRejectsBadRequests(t *testing.T) {
	called := false
	runtime := testRuntime(func(context.Context, domain.Event) error {
		called = true
		return nil
	})
	handler := runtime.WebhookHandler(context.Background())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/telegram/webhook", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader("{not json")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	runtime.Wait()
	if called {
		t.Fatal("handler must not run for rejected requests")
	}
}

func TestDispatchRecoversFromPanic(t *testing.T) {
	runtime := testRuntime(func(context.Context, domain.Event) error {
		panic("boom")
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		runtime.dispatch(context.Background(), tgbotapi.Update{UpdateID: 1})
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatch did not return")
	}
}

func TestWebhookPath(t *testing.T) {
	tests := map[string]string{
		"https://bot.example.com/hooks/pretender": "/hooks/pretender",
		"https://bot.example.com/a/../b/":         "/b",
		"https://bot.example.com":                 "/",
		"://bad":                                  defaultWebhookPath,
	}
	for in, want := range tests {
		if got := WebhookPath(in); got != want {
			t.Fatalf("WebhookPath(%q) = %q, want %q", in, got, want)
		}
	}
}
