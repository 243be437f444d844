package social

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
	"github.com/pkg/errors"
)

// Client sends direct messages over the social platform's REST API.
// Requests are OAuth1-signed with the bridge's application credentials.
type Client struct {
	http    *http.Client
	apiBase string
}

// ClientConfig carries the credentials and endpoint for NewClient.
type ClientConfig struct {
	ConsumerKey    string
	ConsumerSecret string
	AccessToken    string
	AccessSecret   string
	APIBase        string
}

// NewClient builds a DM client. The underlying transport signs every
// request; callers inject the client into the dispatcher rather than
// reaching for a process-global.
func NewClient(cfg ClientConfig) *Client {
	oauthCfg := oauth1.NewConfig(cfg.ConsumerKey, cfg.ConsumerSecret)
	token := oauth1.NewToken(cfg.AccessToken, cfg.AccessSecret)
	httpClient := oauthCfg.Client(oauth1.NoContext, token)
	httpClient.Timeout = 20 * time.Second
	return &Client{
		http:    httpClient,
		apiBase: strings.TrimRight(cfg.APIBase, "/"),
	}
}

// dmEvent is the create-DM request envelope.
type dmEvent struct {
	Event struct {
		Type          string `json:"type"`
		MessageCreate struct {
			Target      MessageTarget `json:"target"`
			MessageData MessageData   `json:"message_data"`
		} `json:"message_create"`
	} `json:"event"`
}

// SendDirectMessage delivers a structured message to the given numeric user
// id. Delivery is best-effort; callers log the result and never retry.
func (c *Client) SendDirectMessage(ctx context.Context, recipientID string, data MessageData) error {
	var ev dmEvent
	ev.Event.Type = "message_create"
	ev.Event.MessageCreate.Target = MessageTarget{RecipientID: recipientID}
	ev.Event.MessageCreate.MessageData = data

	body, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal dm event")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/direct_messages/events/new.json", bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build dm request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "send direct message")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("direct message send status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}
