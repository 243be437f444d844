package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// Client talks to the workspace platform's chat and flex REST APIs.
type Client struct {
	http           *http.Client
	accountSID     string
	authToken      string
	chatBase       string
	flexBase       string
	chatServiceSID string
	flexFlowSID    string
}

// ClientConfig carries credentials and endpoints for NewClient.
type ClientConfig struct {
	AccountSID     string
	AuthToken      string
	ChatAPIBase    string
	FlexAPIBase    string
	ChatServiceSID string
	FlexFlowSID    string
}

// NewClient builds a workspace client on the given HTTP client.
func NewClient(cfg ClientConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		http:           httpClient,
		accountSID:     cfg.AccountSID,
		authToken:      cfg.AuthToken,
		chatBase:       strings.TrimRight(cfg.ChatAPIBase, "/"),
		flexBase:       strings.TrimRight(cfg.FlexAPIBase, "/"),
		chatServiceSID: cfg.ChatServiceSID,
		flexFlowSID:    cfg.FlexFlowSID,
	}
}

// ListChannels returns the chat service's channels with their attributes.
func (c *Client) ListChannels(ctx context.Context) ([]Channel, error) {
	u := fmt.Sprintf("%s/Services/%s/Channels", c.chatBase, c.chatServiceSID)
	var out struct {
		Channels []Channel `json:"channels"`
	}
	if err := c.getJSON(ctx, u, &out); err != nil {
		return nil, errors.Wrap(err, "list channels")
	}
	return out.Channels, nil
}

// FetchChannel loads one channel by SID. An unknown SID surfaces as an error
// carrying the platform's 404.
func (c *Client) FetchChannel(ctx context.Context, channelSID string) (*Channel, error) {
	u := fmt.Sprintf("%s/Services/%s/Channels/%s", c.chatBase, c.chatServiceSID, url.PathEscape(channelSID))
	var ch Channel
	if err := c.getJSON(ctx, u, &ch); err != nil {
		return nil, errors.Wrapf(err, "fetch channel %s", channelSID)
	}
	return &ch, nil
}

// CreateChannel provisions (or re-resolves) the flex channel bound to the
// given handle. The platform treats the identity as an idempotency key: a
// create for an identity with an open channel on the same flow returns that
// channel instead of erroring or duplicating. The whole dedup strategy of
// the bridge leans on that guarantee.
//
// The friendly name is set to the numeric user id so the reverse direction
// can recover it from the channel alone.
func (c *Client) CreateChannel(ctx context.Context, handle, userID string) (*Channel, error) {
	form := url.Values{}
	form.Set("FlexFlowSid", c.flexFlowSID)
	form.Set("Identity", handle)
	form.Set("ChatUserFriendlyName", fmt.Sprintf("DM with @%s", handle))
	form.Set("ChatFriendlyName", userID)
	form.Set("Target", "@"+handle)

	var ch Channel
	if err := c.postForm(ctx, c.flexBase+"/Channels", form, nil, &ch); err != nil {
		return nil, errors.Wrapf(err, "create channel for @%s", handle)
	}
	return &ch, nil
}

// CreateChannelWebhook registers this bridge as the channel's outbound
// webhook, filtered to agent-sent-message events only. Registering twice
// doubles every agent message, so callers register exactly once per channel.
func (c *Client) CreateChannelWebhook(ctx context.Context, channelSID, targetURL string) error {
	form := url.Values{}
	form.Set("Type", "webhook")
	form.Set("Configuration.Method", "POST")
	form.Set("Configuration.Url", targetURL)
	form.Set("Configuration.Filters", "onMessageSent")

	u := fmt.Sprintf("%s/Services/%s/Channels/%s/Webhooks", c.chatBase, c.chatServiceSID, url.PathEscape(channelSID))
	if err := c.postForm(ctx, u, form, nil, nil); err != nil {
		return errors.Wrapf(err, "register webhook on %s", channelSID)
	}
	return nil
}

// PostMessage posts a chat message into the channel attributed to the given
// sender handle. The webhook-enabled header makes the platform fire the
// channel's webhooks for this message, which is what routes it to an agent.
func (c *Client) PostMessage(ctx context.Context, channelSID, from, body string) error {
	form := url.Values{}
	form.Set("Body", body)
	form.Set("From", from)

	u := fmt.Sprintf("%s/Services/%s/Channels/%s/Messages", c.chatBase, c.chatServiceSID, url.PathEscape(channelSID))
	headers := map[string]string{"X-Twilio-Webhook-Enabled": "true"}
	if err := c.postForm(ctx, u, form, headers, nil); err != nil {
		return errors.Wrapf(err, "post message to %s", channelSID)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	return c.do(req, out)
}

func (c *Client) postForm(ctx context.Context, u string, form url.Values, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
