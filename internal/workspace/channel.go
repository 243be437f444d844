// Package workspace implements the contact-center chat platform client:
// channel listing, idempotent channel provisioning, per-channel webhook
// registration, and agent-facing message posts.
package workspace

import (
	"encoding/json"
	"strings"
)

// StatusInactive is the channel status the platform sets when an agent ends
// the conversation. An INACTIVE channel is never reused; the next inbound
// customer message provisions a fresh one.
const StatusInactive = "INACTIVE"

// Channel is a workspace-side conversation object.
//
// The friendly name is repurposed to carry the customer's numeric user id so
// it can be recovered later without a side table, and the identity binding
// (the customer handle) lives in the platform-managed attributes blob.
type Channel struct {
	SID string `json:"sid"`
	// FriendlyName holds the numeric social user id of the bound customer.
	FriendlyName string `json:"friendly_name"`
	// Attributes is a JSON object string managed by the platform,
	// containing at least {"from": ..., "status": ...}.
	Attributes string `json:"attributes"`
}

// Attrs is the decoded channel attributes blob.
type Attrs struct {
	From   string `json:"from"`
	Status string `json:"status"`
}

// Attrs decodes the attributes blob. Malformed attributes decode to the
// zero value, which never matches an open-channel check.
func (c *Channel) Attrs() Attrs {
	var a Attrs
	_ = json.Unmarshal([]byte(c.Attributes), &a)
	return a
}

// OpenFor reports whether this channel is the live conversation for the
// given handle: the attributes' from field contains the handle and the
// channel has not been ended by an agent.
func (c *Channel) OpenFor(handle string) bool {
	a := c.Attrs()
	return handle != "" && strings.Contains(a.From, handle) && a.Status != StatusInactive
}
