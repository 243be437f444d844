package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmbridge/dmbridge/internal/social"
)

// SourceAgent marks workspace events originating from an agent's chat
// client. Events the bridge posted itself arrive with Source "API" and must
// not be relayed back out.
const SourceAgent = "SDK"

// WorkspaceEvent is the normalized inbound workspace webhook.
type WorkspaceEvent struct {
	Source     string
	ChannelSID string
	Body       string
}

// DirectMessenger sends structured messages to a social user.
type DirectMessenger interface {
	SendDirectMessage(ctx context.Context, recipientID string, data social.MessageData) error
}

// AuditEvent is one relayed message, as recorded on the audit trail.
type AuditEvent struct {
	TraceID    string    `json:"trace_id"`
	Direction  string    `json:"direction"`
	Handle     string    `json:"handle,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	ChannelSID string    `json:"channel_sid,omitempty"`
	At         time.Time `json:"at"`
}

// AuditSink records relayed messages. Implementations must be best-effort
// and non-blocking; a nil sink disables auditing.
type AuditSink interface {
	Record(ctx context.Context, ev AuditEvent)
}

// Dispatcher routes one inbound event at a time. It keeps no conversation
// state between events; everything it needs lives in the two platforms.
type Dispatcher struct {
	api      ChannelAPI
	dm       DirectMessenger
	resolver *Resolver

	// bridgeHandle is the handle the bridge posts DMs under. Inbound social
	// events from it are our own relayed agent replies.
	bridgeHandle string

	seen    *seenCache
	metrics *Metrics
	audit   AuditSink
	log     *slog.Logger
}

// DispatcherOptions wires a Dispatcher's collaborators.
type DispatcherOptions struct {
	API          ChannelAPI
	DM           DirectMessenger
	Resolver     *Resolver
	BridgeHandle string
	Metrics      *Metrics
	Audit        AuditSink
	Logger       *slog.Logger
	// DedupTTL bounds the inbound redelivery window. Zero selects a default.
	DedupTTL time.Duration
}

// NewDispatcher builds the per-event orchestrator.
func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	if opts.DedupTTL <= 0 {
		opts.DedupTTL = 10 * time.Minute
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Dispatcher{
		api:          opts.API,
		dm:           opts.DM,
		resolver:     opts.Resolver,
		bridgeHandle: opts.BridgeHandle,
		seen:         newSeenCache(opts.DedupTTL),
		metrics:      opts.Metrics,
		audit:        opts.Audit,
		log:          opts.Logger,
	}
}

// Metrics exposes the dispatcher's counters for the status endpoint.
func (d *Dispatcher) Metrics() *Metrics { return d.metrics }

// DedupCacheSize reports live dedup entries for the status endpoint.
func (d *Dispatcher) DedupCacheSize() int { return d.seen.Size() }

// HandleSocialEvent processes one inbound social webhook delivery: discard
// self-posted and redelivered events, then resolve the customer's channel
// and post the message body into it.
//
// Errors never propagate to the webhook response; the originating platform
// retries aggressively on non-200 and the bridge accepts dropping a message
// over a retry storm. Failures are logged and counted.
func (d *Dispatcher) HandleSocialEvent(ctx context.Context, payload *social.WebhookPayload) {
	d.metrics.add(func(s *MetricsSnapshot) { s.SocialInbound++ })

	if payload == nil || len(payload.DirectMessageEvents) == 0 {
		d.metrics.add(func(s *MetricsSnapshot) { s.Malformed++ })
		return
	}
	ev := payload.DirectMessageEvents[0]
	sender, ok := payload.Sender(ev)
	if !ok {
		d.metrics.add(func(s *MetricsSnapshot) { s.Malformed++ })
		return
	}
	if d.seen.Seen("social:"+ev.ID, time.Now()) {
		d.metrics.add(func(s *MetricsSnapshot) { s.Deduped++ })
		return
	}
	if sender.ScreenName == d.bridgeHandle {
		d.metrics.add(func(s *MetricsSnapshot) { s.SelfLoopDiscarded++ })
		return
	}

	traceID := uuid.NewString()
	log := d.log.With("trace_id", traceID, "direction", "social->workspace", "handle", sender.ScreenName)

	ch, err := d.resolver.Resolve(ctx, Identity{Handle: sender.ScreenName, UserID: sender.ID})
	if err != nil {
		log.Error("channel resolution failed, dropping event", "error", err)
		d.metrics.noteDropped(err)
		return
	}
	if err := d.api.PostMessage(ctx, ch.SID, sender.ScreenName, ev.MessageCreate.MessageData.Text); err != nil {
		log.Error("workspace post failed, dropping event", "error", err)
		d.metrics.noteDropped(err)
		return
	}

	d.metrics.add(func(s *MetricsSnapshot) { s.RelayedToWorkspace++ })
	log.Info("relayed to workspace", "channel_sid", ch.SID)
	d.record(ctx, AuditEvent{
		TraceID:    traceID,
		Direction:  "social_to_workspace",
		Handle:     sender.ScreenName,
		UserID:     sender.ID,
		ChannelSID: ch.SID,
		At:         time.Now().UTC(),
	})
}

// HandleWorkspaceEvent processes one inbound workspace webhook delivery:
// only agent-originated events proceed, the channel's bound user id is
// recovered, and the translated message is sent as a DM.
//
// The DM send is best-effort: its outcome is awaited for logging only and
// never fails the webhook acknowledgement.
func (d *Dispatcher) HandleWorkspaceEvent(ctx context.Context, ev WorkspaceEvent) {
	d.metrics.add(func(s *MetricsSnapshot) { s.WorkspaceInbound++ })

	if ev.Source != SourceAgent {
		d.metrics.add(func(s *MetricsSnapshot) { s.OriginDiscarded++ })
		return
	}
	if ev.ChannelSID == "" || ev.Body == "" {
		d.metrics.add(func(s *MetricsSnapshot) { s.Malformed++ })
		return
	}

	traceID := uuid.NewString()
	log := d.log.With("trace_id", traceID, "direction", "workspace->social", "channel_sid", ev.ChannelSID)

	userID, err := d.resolver.IdentityForChannel(ctx, ev.ChannelSID)
	if err != nil {
		log.Error("identity lookup failed, dropping event", "error", err)
		d.metrics.noteDropped(err)
		return
	}
	data := social.Translate(ev.Body)
	if err := d.dm.SendDirectMessage(ctx, userID, data); err != nil {
		log.Error("direct message send failed, dropping event", "error", err)
		d.metrics.noteDropped(err)
		return
	}

	d.metrics.add(func(s *MetricsSnapshot) { s.RelayedToSocial++ })
	log.Info("relayed to social", "user_id", userID)
	d.record(ctx, AuditEvent{
		TraceID:    traceID,
		Direction:  "workspace_to_social",
		UserID:     userID,
		ChannelSID: ev.ChannelSID,
		At:         time.Now().UTC(),
	})
}

func (d *Dispatcher) record(ctx context.Context, ev AuditEvent) {
	if d.audit == nil {
		return
	}
	d.audit.Record(ctx, ev)
}
