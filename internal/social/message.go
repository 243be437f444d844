// Package social implements the public direct-message platform surface:
// webhook payload types, the CRC challenge response, the outbound message
// model with its agent-facing micro-syntax, and the DM REST client.
package social

import "strings"

// Micro-syntax marker keywords. Matched as raw substrings anywhere in the
// message body, not as whole words; a body that happens to contain one of
// them in ordinary prose will be mis-parsed. Accepted limitation of the
// syntax, kept for compatibility with what agents already type.
const (
	optionsMarker = "Options"
	linkMarker    = "Link"
)

// QuickReplyOption is one choice presented to the customer. Order is
// significant and preserved from the agent's message.
type QuickReplyOption struct {
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// QuickReply is the platform's multiple-choice prompt attachment.
type QuickReply struct {
	Type    string             `json:"type"`
	Options []QuickReplyOption `json:"options"`
}

// CallToAction is a single labeled link button.
type CallToAction struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	URL   string `json:"url"`
}

// MessageData is the platform's structured message_data payload.
type MessageData struct {
	Text       string         `json:"text"`
	QuickReply *QuickReply    `json:"quick_reply,omitempty"`
	CTAs       []CallToAction `json:"ctas,omitempty"`
}

// Translate parses the agent micro-syntax into the structured message format.
//
//	"Hi! Options A-first,B-second"  -> text "Hi! " + two quick replies
//	"Click here Link Visit,https://x" -> text "Click here " + one CTA
//
// Both markers may appear; each parses independently off the raw body at its
// first occurrence, and the display text of the later-applied marker (Link)
// wins. Option labels, descriptions, and CTA fields are whitespace-trimmed;
// the display text is kept verbatim, trailing space included.
func Translate(raw string) MessageData {
	out := MessageData{Text: raw}

	if strings.Contains(raw, optionsMarker) {
		parts := strings.SplitN(raw, optionsMarker, 2)
		out.Text = parts[0]
		var options []QuickReplyOption
		for _, candidate := range strings.Split(parts[1], ",") {
			labelDesc := strings.SplitN(candidate, "-", 2)
			opt := QuickReplyOption{Label: strings.TrimSpace(labelDesc[0])}
			if len(labelDesc) > 1 {
				opt.Description = strings.TrimSpace(labelDesc[1])
			}
			options = append(options, opt)
		}
		out.QuickReply = &QuickReply{Type: "options", Options: options}
	}

	if strings.Contains(raw, linkMarker) {
		parts := strings.SplitN(raw, linkMarker, 2)
		out.Text = parts[0]
		labelURL := strings.SplitN(parts[1], ",", 2)
		if len(labelURL) == 2 {
			out.CTAs = []CallToAction{{
				Type:  "web_url",
				Label: strings.TrimSpace(labelURL[0]),
				URL:   strings.TrimSpace(labelURL[1]),
			}}
		}
	}

	return out
}
