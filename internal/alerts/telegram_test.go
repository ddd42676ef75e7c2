package alerts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cross-arb-bot/internal/config"

	"go.uber.org/zap"
)

func newTestTelegram(t *testing.T, cfg config.TelegramConfig, handler http.HandlerFunc) *Telegram {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return newTelegram(cfg, zap.NewNop(), server.URL, server.Client())
}

func TestSendDisabledIsNoop(t *testing.T) {
	tg := newTestTelegram(t, config.TelegramConfig{Enabled: false}, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("disabled telegram must not call the API")
	})
	if err := tg.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("expected nil for disabled telegram, got %v", err)
	}
}

func TestSendRequiresCredentials(t *testing.T) {
	tg := newTestTelegram(t, config.TelegramConfig{Enabled: true}, func(w http.ResponseWriter, r *http.Request) {})
	if err := tg.Send(context.Background(), "hello"); err == nil {
		t.Fatalf("expected error without token and chat id")
	}
}

func TestSendPostsMessage(t *testing.T) {
	var gotPath string
	var gotPayload map[string]string
	cfg := config.TelegramConfig{Enabled: true, Token: "tok", ChatID: "42"}
	tg := newTestTelegram(t, cfg, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		w.Write([]byte(`{"ok":true}`))
	})
	if err := tg.Send(context.Background(), "hedge opened"); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if gotPath != "/bottok/sendMessage" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotPayload["chat_id"] != "42" || gotPayload["text"] != "hedge opened" {
		t.Fatalf("unexpected payload: %v", gotPayload)
	}
}

func TestSendSurfacesAPIError(t *testing.T) {
	cfg := config.TelegramConfig{Enabled: true, Token: "tok", ChatID: "42"}
	tg := newTestTelegram(t, cfg, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	})
	err := tg.Send(context.Background(), "hello")
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("expected api error, got %v", err)
	}
}

func TestSendSurfacesHTTPError(t *testing.T) {
	cfg := config.TelegramConfig{Enabled: true, Token: "tok", ChatID: "42"}
	tg := newTestTelegram(t, cfg, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	})
	if err := tg.Send(context.Background(), "hello"); err == nil {
		t.Fatalf("expected http error")
	}
}

func TestGetUpdatesParsesResult(t *testing.T) {
	cfg := config.TelegramConfig{Enabled: true, Token: "tok", ChatID: "42"}
	tg := newTestTelegram(t, cfg, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottok/getUpdates" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("offset"); got != "7" {
			t.Errorf("expected offset 7, got %q", got)
		}
		w.Write([]byte(`{"ok":true,"result":[
			{"update_id":7,"message":{"text":"/status","chat":{"id":42},"from":{"id":1,"username":"ops"}}}
		]}`))
	})
	updates, err := tg.GetUpdates(context.Background(), 7, 0)
	if err != nil {
		t.Fatalf("get updates failed: %v", err)
	}
	if len(updates) != 1 {
		t.Fatalf("expected one update, got %d", len(updates))
	}
	upd := updates[0]
	if upd.UpdateID != 7 || upd.Message == nil || upd.Message.Text != "/status" {
		t.Fatalf("unexpected update: %+v", upd)
	}
	if upd.Message.Chat.ID != 42 || upd.Message.From.Username != "ops" {
		t.Fatalf("unexpected message metadata: %+v", upd.Message)
	}
}

func TestGetUpdatesDisabledReturnsNothing(t *testing.T) {
	tg := newTestTelegram(t, config.TelegramConfig{Enabled: false}, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("disabled telegram must not call the API")
	})
	updates, err := tg.GetUpdates(context.Background(), 0, 0)
	if err != nil || updates != nil {
		t.Fatalf("expected empty result, got %v %v", updates, err)
	}
}
