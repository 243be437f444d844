// Package httpapi is the thin webhook boundary: request parsing, status
// codes, and handshake plumbing. All relay decisions live in internal/relay.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dmbridge/dmbridge/internal/relay"
	"github.com/dmbridge/dmbridge/internal/social"
)

// Dispatcher is the slice of the relay core the boundary consumes.
type Dispatcher interface {
	HandleSocialEvent(ctx context.Context, payload *social.WebhookPayload)
	HandleWorkspaceEvent(ctx context.Context, ev relay.WorkspaceEvent)
	Metrics() *relay.Metrics
	DedupCacheSize() int
}

// Server exposes the inbound webhook endpoints.
type Server struct {
	dispatcher     Dispatcher
	consumerSecret string
	log            *slog.Logger

	// dispatchTimeout bounds the detached relay work spawned per webhook;
	// the ack itself never waits on it.
	dispatchTimeout time.Duration
}

// NewServer wires the boundary to the dispatcher. consumerSecret answers the
// social platform's CRC handshake.
func NewServer(dispatcher Dispatcher, consumerSecret string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		dispatcher:      dispatcher,
		consumerSecret:  consumerSecret,
		log:             log,
		dispatchTimeout: 30 * time.Second,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/fromSocial", s.handleFromSocial)
	mux.HandleFunc("/fromWorkspace", s.handleFromWorkspace)
	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{"ok": true})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"ok":                   true,
		"metrics":              s.dispatcher.Metrics().Snapshot(),
		"inbound_dedupe_cache": s.dispatcher.DedupCacheSize(),
	})
}

func (s *Server) handleFromSocial(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleSocialChallenge(w, r)
	case http.MethodPost:
		s.handleSocialWebhook(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleSocialChallenge answers the platform's webhook security check.
func (s *Server) handleSocialChallenge(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("crc_token"))
	if token == "" {
		http.Error(w, "crc_token required", http.StatusBadRequest)
		return
	}
	resToken, err := social.ChallengeResponse(token, s.consumerSecret)
	if err != nil {
		// Secret absent is a configuration fault; the handshake cannot be
		// answered at all.
		s.log.Error("challenge unanswerable", "error", err)
		http.Error(w, "challenge unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"response_token": resToken})
}

// handleSocialWebhook ingests a customer DM event. The platform requires a
// 200 ack regardless of internal outcome, so the relay runs detached.
func (s *Server) handleSocialWebhook(w http.ResponseWriter, r *http.Request) {
	var payload social.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		// Malformed payloads are a no-op, not an error.
		w.WriteHeader(http.StatusOK)
		return
	}
	s.dispatch(func(ctx context.Context) {
		s.dispatcher.HandleSocialEvent(ctx, &payload)
	})
	w.WriteHeader(http.StatusOK)
}

// handleFromWorkspace ingests a workspace channel event. Source is "SDK"
// for agent messages and "API" for the bridge's own posts; the dispatcher
// discards the latter.
func (s *Server) handleFromWorkspace(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ev, ok := parseWorkspaceEvent(r)
	if ok {
		s.dispatch(func(ctx context.Context) {
			s.dispatcher.HandleWorkspaceEvent(ctx, ev)
		})
	}
	w.WriteHeader(http.StatusOK)
}

func parseWorkspaceEvent(r *http.Request) (relay.WorkspaceEvent, bool) {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if strings.Contains(ct, "application/json") {
		var body struct {
			Source     string `json:"Source"`
			ChannelSid string `json:"ChannelSid"`
			Body       string `json:"Body"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return relay.WorkspaceEvent{}, false
		}
		return relay.WorkspaceEvent{Source: body.Source, ChannelSID: body.ChannelSid, Body: body.Body}, true
	}
	if err := r.ParseForm(); err != nil {
		return relay.WorkspaceEvent{}, false
	}
	return relay.WorkspaceEvent{
		Source:     r.PostFormValue("Source"),
		ChannelSID: r.PostFormValue("ChannelSid"),
		Body:       r.PostFormValue("Body"),
	}, true
}

// dispatch runs relay work detached from the webhook request so the ack
// never blocks on outbound platform calls.
func (s *Server) dispatch(fn func(ctx context.Context)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.dispatchTimeout)
		defer cancel()
		fn(ctx)
	}()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
