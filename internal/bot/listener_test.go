package bot

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/HydroRoll-Team/hydroroll-webhook/internal/command"
	"github.com/HydroRoll-Team/hydroroll-webhook/internal/feed"
	"github.com/HydroRoll-Team/hydroroll-webhook/internal/state"
	"github.com/HydroRoll-Team/hydroroll-webhook/internal/stats"
	"github.com/HydroRoll-Team/hydroroll-webhook/internal/subscription"
)

type recordSender struct {
	mu   sync.Mutex
	sent map[string][]string
}

func (s *recordSender) Send(ctx context.Context, group, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sent == nil {
		s.sent = make(map[string][]string)
	}
	s.sent[group] = append(s.sent[group], message)
	return nil
}

func (s *recordSender) messages(group string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent[group]...)
}

type stubIngress struct{ running bool }

func (s *stubIngress) Start() error                   { s.running = true; return nil }
func (s *stubIngress) Stop(ctx context.Context) error { s.running = false; return nil }
func (s *stubIngress) Running() bool                  { return s.running }
func (s *stubIngress) Addr() string                   { return "0.0.0.0:997" }

type botFixture struct {
	listener *Listener
	sender   *recordSender
	ingress  *stubIngress
	table    *subscription.Table
}

func newBotFixture(t *testing.T, admins ...int64) *botFixture {
	t.Helper()
	store := state.NewMemoryStore()
	table, err := subscription.Load(store, subscription.Subscription{})
	if err != nil {
		t.Fatalf("subscription.Load: %v", err)
	}
	feedSettings, err := feed.LoadSettings(store, feed.Defaults{Interval: time.Hour})
	if err != nil {
		t.Fatalf("feed.LoadSettings: %v", err)
	}

	f := &botFixture{
		sender:  &recordSender{},
		ingress: &stubIngress{},
		table:   table,
	}
	cmds := command.New(f.ingress, table, stats.NewCollector(stats.StateKey),
		feedSettings, stats.NewCollector(feed.StatsKey), slog.Default())
	f.listener = New(cmds, f.sender, admins, slog.Default())
	return f
}

func groupMessage(group, user int64, text string) string {
	return fmt.Sprintf(`{"post_type":"message","message_type":"group","group_id":%d,"user_id":%d,"raw_message":%q}`,
		group, user, text)
}

func postEvent(t *testing.T, l *Listener, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	l.ServeHTTP(rr, req)
	return rr
}

func TestListener_CommandReplyGoesToOriginGroup(t *testing.T) {
	f := newBotFixture(t)

	rr := postEvent(t, f.listener, groupMessage(100, 42, "/webhook groups"))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rr.Code)
	}
	msgs := f.sender.messages("100")
	if len(msgs) != 1 || msgs[0] != "No groups registered" {
		t.Errorf("messages = %v, want the command reply in group 100", msgs)
	}
}

func TestListener_CommandDrivesIngress(t *testing.T) {
	f := newBotFixture(t)

	postEvent(t, f.listener, groupMessage(100, 42, "/webhook on"))
	if !f.ingress.running {
		t.Error("ingress should be running after /webhook on")
	}
	msgs := f.sender.messages("100")
	if len(msgs) != 1 || !strings.Contains(msgs[0], "Server started") {
		t.Errorf("messages = %v, want a start confirmation", msgs)
	}

	postEvent(t, f.listener, groupMessage(100, 42, "/webhook off"))
	if f.ingress.running {
		t.Error("ingress should be stopped after /webhook off")
	}
}

func TestListener_OrdinaryChatterIgnored(t *testing.T) {
	f := newBotFixture(t)

	rr := postEvent(t, f.listener, groupMessage(100, 42, "hello everyone"))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rr.Code)
	}
	if msgs := f.sender.messages("100"); len(msgs) != 0 {
		t.Errorf("messages = %v, want none for ordinary chatter", msgs)
	}
}

func TestListener_NonMessagePostIgnored(t *testing.T) {
	f := newBotFixture(t)

	for _, body := range []string{
		`{"post_type":"meta_event","meta_event_type":"heartbeat"}`,
		`{"post_type":"notice","notice_type":"group_increase"}`,
		`{"post_type":"message","message_type":"private","user_id":42,"raw_message":"/webhook on"}`,
	} {
		rr := postEvent(t, f.listener, body)
		if rr.Code != http.StatusNoContent {
			t.Errorf("status for %s = %d, want 204", body, rr.Code)
		}
	}
	if f.ingress.running {
		t.Error("a private message must not reach the command handler")
	}
}

func TestListener_MalformedJSON(t *testing.T) {
	f := newBotFixture(t)

	rr := postEvent(t, f.listener, `{"post_type":`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestListener_AdminAllowlist(t *testing.T) {
	f := newBotFixture(t, 42)

	postEvent(t, f.listener, groupMessage(100, 99, "/webhook addgroup 123"))
	if got := f.table.Groups(); len(got) != 0 {
		t.Errorf("Groups = %v; a non-admin must not mutate state", got)
	}
	if msgs := f.sender.messages("100"); len(msgs) != 0 {
		t.Errorf("messages = %v, want silence for a non-admin", msgs)
	}

	postEvent(t, f.listener, groupMessage(100, 42, "/webhook addgroup 123"))
	if got := f.table.Groups(); len(got) != 1 || got[0] != "123" {
		t.Errorf("Groups = %v, want [123] after the admin command", got)
	}
}

func TestListener_EmptyAllowlistAllowsEveryone(t *testing.T) {
	f := newBotFixture(t)

	postEvent(t, f.listener, groupMessage(100, 7, "/webhook addgroup 123"))
	if got := f.table.Groups(); len(got) != 1 {
		t.Errorf("Groups = %v, want the command applied", got)
	}
}
