package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dmbridge/dmbridge/internal/relay"
	"github.com/dmbridge/dmbridge/internal/social"
)

type fakeDispatcher struct {
	metrics  *relay.Metrics
	socialCh chan *social.WebhookPayload
	wsCh     chan relay.WorkspaceEvent
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{
		metrics:  relay.NewMetrics(),
		socialCh: make(chan *social.WebhookPayload, 8),
		wsCh:     make(chan relay.WorkspaceEvent, 8),
	}
}

func (f *fakeDispatcher) HandleSocialEvent(_ context.Context, payload *social.WebhookPayload) {
	f.socialCh <- payload
}

func (f *fakeDispatcher) HandleWorkspaceEvent(_ context.Context, ev relay.WorkspaceEvent) {
	f.wsCh <- ev
}

func (f *fakeDispatcher) Metrics() *relay.Metrics { return f.metrics }
func (f *fakeDispatcher) DedupCacheSize() int     { return 0 }

func newTestServer(secret string) (*Server, *fakeDispatcher) {
	d := newFakeDispatcher()
	return NewServer(d, secret, nil), d
}

func TestSocialChallenge(t *testing.T) {
	s, _ := newTestServer("secret")
	req := httptest.NewRequest(http.MethodGet, "/fromSocial?crc_token=abc123", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	var body struct {
		ResponseToken string `json:"response_token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.ResponseToken != "sha256=WuWsgCoaXJT7aD4b+hIfn3AKJplSE/8vwcUD60PsccY=" {
		t.Fatalf("response_token = %q", body.ResponseToken)
	}
}

func TestSocialChallengeRequiresToken(t *testing.T) {
	s, _ := newTestServer("secret")
	req := httptest.NewRequest(http.MethodGet, "/fromSocial", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestSocialChallengeWithoutSecretIsConfigFault(t *testing.T) {
	s, _ := newTestServer("")
	req := httptest.NewRequest(http.MethodGet, "/fromSocial?crc_token=abc123", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestSocialWebhookAcksAndDispatches(t *testing.T) {
	s, d := newTestServer("secret")
	payload := `{"direct_message_events":[{"id":"ev1","message_create":{"sender_id":"111","message_data":{"text":"hi"}}}],"users":{"111":{"id_str":"111","screen_name":"alice"}}}`
	req := httptest.NewRequest(http.MethodPost, "/fromSocial", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	select {
	case got := <-d.socialCh:
		if len(got.DirectMessageEvents) != 1 || got.DirectMessageEvents[0].ID != "ev1" {
			t.Fatalf("dispatched payload = %+v", got)
		}
		if got.Users["111"].ScreenName != "alice" {
			t.Fatalf("users = %+v", got.Users)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event was not dispatched")
	}
}

func TestSocialWebhookMalformedBodyStillAcks(t *testing.T) {
	s, d := newTestServer("secret")
	req := httptest.NewRequest(http.MethodPost, "/fromSocial", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	select {
	case <-d.socialCh:
		t.Fatal("malformed body must not dispatch")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWorkspaceWebhookFormEncoded(t *testing.T) {
	s, d := newTestServer("secret")
	form := url.Values{}
	form.Set("Source", "SDK")
	form.Set("ChannelSid", "CH123")
	form.Set("Body", "agent reply")
	req := httptest.NewRequest(http.MethodPost, "/fromWorkspace", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	select {
	case ev := <-d.wsCh:
		want := relay.WorkspaceEvent{Source: "SDK", ChannelSID: "CH123", Body: "agent reply"}
		if ev != want {
			t.Fatalf("event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event was not dispatched")
	}
}

func TestWorkspaceWebhookJSON(t *testing.T) {
	s, d := newTestServer("secret")
	req := httptest.NewRequest(http.MethodPost, "/fromWorkspace",
		strings.NewReader(`{"Source":"API","ChannelSid":"CH123","Body":"our own post"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	select {
	case ev := <-d.wsCh:
		if ev.Source != "API" {
			t.Fatalf("event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event was not dispatched")
	}
}

func TestStatusReportsMetrics(t *testing.T) {
	s, _ := newTestServer("secret")
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ok, _ := body["ok"].(bool); !ok {
		t.Fatalf("body = %v", body)
	}
	if _, hasMetrics := body["metrics"]; !hasMetrics {
		t.Fatalf("metrics missing: %v", body)
	}
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer("secret")
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}
