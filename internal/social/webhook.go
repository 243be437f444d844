package social

// WebhookPayload is the inbound account-activity webhook body. Only the
// direct-message portion is consumed; payloads without direct-message events
// are ignored upstream.
type WebhookPayload struct {
	DirectMessageEvents []DirectMessageEvent `json:"direct_message_events"`
	Users               map[string]User      `json:"users"`
}

// DirectMessageEvent is one DM create event.
type DirectMessageEvent struct {
	ID            string        `json:"id"`
	MessageCreate MessageCreate `json:"message_create"`
}

// MessageCreate carries the sender, target, and body of a DM event.
type MessageCreate struct {
	SenderID    string        `json:"sender_id"`
	Target      MessageTarget `json:"target"`
	MessageData MessageData   `json:"message_data"`
}

// MessageTarget names the DM recipient.
type MessageTarget struct {
	RecipientID string `json:"recipient_id"`
}

// User is one entry of the payload's users map, keyed by numeric id.
type User struct {
	ID         string `json:"id_str"`
	ScreenName string `json:"screen_name"`
}

// Sender resolves the event's sender against the payload's users map.
// The boolean is false when the payload carries no matching user entry,
// which callers treat as a malformed payload and ignore.
func (p *WebhookPayload) Sender(ev DirectMessageEvent) (User, bool) {
	u, ok := p.Users[ev.MessageCreate.SenderID]
	if !ok {
		return User{}, false
	}
	if u.ID == "" {
		u.ID = ev.MessageCreate.SenderID
	}
	return u, true
}
