package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hamed0406/watchdog/internal/config"
	"github.com/hamed0406/watchdog/internal/domain"
)

type telegramRequest struct {
	ChatID  string
	Text    string
	ReplyTo int
	Silent  bool
}

type telegramAPIMock struct {
	mu       sync.Mutex
	requests []telegramRequest
}

func (m *telegramAPIMock) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.URL.Path != "/bottoken/sendMessage" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err := r.ParseMultipartForm(2 << 20); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	req := telegramRequest{
		ChatID: r.FormValue("chat_id"),
		Text:   r.FormValue("text"),
		Silent: r.FormValue("disable_notification") == "true",
	}
	if raw := r.FormValue("reply_parameters"); raw != "" {
		var reply struct {
			MessageID int `json:"message_id"`
		}
		if err := json.Unmarshal([]byte(raw), &reply); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		req.ReplyTo = reply.MessageID
	}

	m.mu.Lock()
	id := len(m.requests) + 101
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintf(w, `{"ok":true,"result":{"message_id":%d,"date":1,"chat":{"id":1,"type":"private"}}}`, id)
}

func (m *telegramAPIMock) Requests() []telegramRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]telegramRequest(nil), m.requests...)
}

func TestTelegram_ThreadsFollowUpsUnderFirstMessage(t *testing.T) {
	mock := &telegramAPIMock{}
	srv := httptest.NewServer(http.HandlerFunc(mock.Handle))
	defer srv.Close()

	ch, err := NewTelegram(NewBase("ops", time.Hour, testRenderer(t, config.Template{})), "token", "-100123", srv.URL+"/")
	if err != nil {
		t.Fatalf("NewTelegram: %v", err)
	}
	snaps, state := outage()
	ctx := context.Background()

	if err := ch.SendNewAlert(ctx, snaps, state); err != nil {
		t.Fatalf("SendNewAlert: %v", err)
	}
	if state.State.Kind != domain.CorrelationChat || state.State.MessageID != 101 || state.State.ChatID != "-100123" {
		t.Fatalf("correlation=%+v", state.State)
	}
	if err := ch.PingAboutOngoingAlert(ctx, snaps, state); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := ch.SendResolvedAlert(ctx, state); err != nil {
		t.Fatalf("SendResolvedAlert: %v", err)
	}

	reqs := mock.Requests()
	if len(reqs) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(reqs))
	}
	if reqs[0].ReplyTo != 0 || reqs[0].ChatID != "-100123" {
		t.Fatalf("first message should start the thread: %+v", reqs[0])
	}
	if reqs[1].ReplyTo != 101 || !reqs[1].Silent {
		t.Fatalf("ping should be a silent reply: %+v", reqs[1])
	}
	if reqs[2].ReplyTo != 101 || reqs[2].Silent {
		t.Fatalf("resolution should be an audible reply: %+v", reqs[2])
	}
	if state.State.MessageID != 101 {
		t.Fatalf("follow-ups must not move the thread: %+v", state.State)
	}
}

func TestTelegram_RequiresTokenAndChat(t *testing.T) {
	base := NewBase("ops", time.Hour, testRenderer(t, config.Template{}))
	if _, err := NewTelegram(base, "", "1", ""); err == nil {
		t.Fatalf("missing token must fail")
	}
	if _, err := NewTelegram(base, "token", " ", ""); err == nil {
		t.Fatalf("missing chat id must fail")
	}
}
