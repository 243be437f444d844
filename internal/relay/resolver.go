// Package relay holds the bridge core: the channel state resolver and the
// per-event dispatcher that moves messages between the social platform and
// the agent workspace.
package relay

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/dmbridge/dmbridge/internal/workspace"
)

// Identity is the customer as the social platform identifies them. Both
// fields arrive on every inbound webhook; the bridge persists neither.
type Identity struct {
	// Handle is the human-readable name. Unique at any point in time, but
	// only "at most one ACTIVE channel per handle" holds across time.
	Handle string
	// UserID is the stable numeric id, which survives handle changes.
	UserID string
}

// ChannelAPI is the slice of the workspace client the relay core consumes.
type ChannelAPI interface {
	ListChannels(ctx context.Context) ([]workspace.Channel, error)
	FetchChannel(ctx context.Context, channelSID string) (*workspace.Channel, error)
	CreateChannel(ctx context.Context, handle, userID string) (*workspace.Channel, error)
	CreateChannelWebhook(ctx context.Context, channelSID, targetURL string) error
	PostMessage(ctx context.Context, channelSID, from, body string) error
}

// Resolver provisions and looks up the workspace channel bound to a customer.
// It holds no channel state of its own; the workspace platform is the source
// of truth and the identity key makes creation idempotent there.
type Resolver struct {
	api        ChannelAPI
	webhookURL string
	locks      *handleLocks
}

// NewResolver builds a resolver. publicURL is this bridge's externally
// reachable base; the agent-message webhook is registered under it.
func NewResolver(api ChannelAPI, publicURL string) *Resolver {
	return &Resolver{
		api:        api,
		webhookURL: strings.TrimRight(publicURL, "/") + "/fromWorkspace",
		locks:      newHandleLocks(),
	}
}

// Resolve returns the open channel for the identity, provisioning one when
// none exists. The existence check, the idempotent create, and the one-time
// webhook registration run under a per-handle lock so concurrent deliveries
// for the same customer cannot register the webhook twice.
func (r *Resolver) Resolve(ctx context.Context, id Identity) (*workspace.Channel, error) {
	if id.Handle == "" {
		return nil, errors.New("empty handle")
	}
	unlock := r.locks.Lock(id.Handle)
	defer unlock()

	channels, err := r.api.ListChannels(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "check open channels")
	}
	exists := false
	for i := range channels {
		if channels[i].OpenFor(id.Handle) {
			exists = true
			break
		}
	}

	// Created unconditionally: the identity key means an existing open
	// channel is returned rather than duplicated, and the SID is needed
	// either way to post the message.
	ch, err := r.api.CreateChannel(ctx, id.Handle, id.UserID)
	if err != nil {
		return nil, err
	}

	if !exists {
		if err := r.api.CreateChannelWebhook(ctx, ch.SID, r.webhookURL); err != nil {
			return nil, err
		}
	}
	return ch, nil
}

// IdentityForChannel recovers the numeric social user id bound to a channel
// from its repurposed friendly name.
func (r *Resolver) IdentityForChannel(ctx context.Context, channelSID string) (string, error) {
	ch, err := r.api.FetchChannel(ctx, channelSID)
	if err != nil {
		return "", err
	}
	userID := strings.TrimSpace(ch.FriendlyName)
	if userID == "" {
		return "", errors.Errorf("channel %s carries no bound identity", channelSID)
	}
	return userID, nil
}
