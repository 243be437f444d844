// Package provision creates the one-time workspace routing objects the
// bridge relies on: a published Studio flow that hands chat tasks to agents,
// and the Flex flow that binds the custom channel to it. It is operator
// glue, run once via "dmbridge provision", and shares no state with the
// relay core.
package provision

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Defaults for the platform resources the provisioner looks up by name.
// Installations with renamed resources edit these before running.
const (
	DefaultWorkspaceName   = "Flex Task Assignment"
	DefaultWorkflowName    = "Assign to Anyone"
	DefaultTaskChannelName = "chat"
	DefaultChatServiceName = "Flex Chat Service"
)

// Provisioner drives the workspace admin APIs.
type Provisioner struct {
	http       *http.Client
	accountSID string
	authToken  string

	taskrouterBase string
	studioBase     string
	chatBase       string
	flexBase       string
}

// Config carries credentials and endpoint overrides for New.
type Config struct {
	AccountSID string
	AuthToken  string
	// Endpoint overrides, used by tests. Empty selects production bases.
	TaskrouterBase string
	StudioBase     string
	ChatBase       string
	FlexBase       string
}

// Result holds the SIDs the serve configuration needs.
type Result struct {
	WorkspaceSID   string
	WorkflowSID    string
	TaskChannelSID string
	ChatServiceSID string
	StudioFlowSID  string
	FlexFlowSID    string
}

// New builds a provisioner.
func New(cfg Config, httpClient *http.Client) *Provisioner {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	base := func(v, def string) string {
		if strings.TrimSpace(v) == "" {
			return def
		}
		return strings.TrimRight(v, "/")
	}
	return &Provisioner{
		http:           httpClient,
		accountSID:     cfg.AccountSID,
		authToken:      cfg.AuthToken,
		taskrouterBase: base(cfg.TaskrouterBase, "https://taskrouter.twilio.com/v1"),
		studioBase:     base(cfg.StudioBase, "https://studio.twilio.com/v2"),
		chatBase:       base(cfg.ChatBase, "https://chat.twilio.com/v2"),
		flexBase:       base(cfg.FlexBase, "https://flex-api.twilio.com/v1"),
	}
}

// Run discovers the default routing objects and creates the Studio and Flex
// flows. It is not idempotent: running twice creates a second flow pair.
func (p *Provisioner) Run(ctx context.Context) (*Result, error) {
	res := &Result{}

	var workspaces struct {
		Workspaces []named `json:"workspaces"`
	}
	if err := p.getJSON(ctx, p.taskrouterBase+"/Workspaces", &workspaces); err != nil {
		return nil, errors.Wrap(err, "list workspaces")
	}
	ws, err := pick(workspaces.Workspaces, func(n named) bool { return n.FriendlyName == DefaultWorkspaceName })
	if err != nil {
		return nil, errors.Wrapf(err, "workspace %q", DefaultWorkspaceName)
	}
	res.WorkspaceSID = ws.SID

	var workflows struct {
		Workflows []named `json:"workflows"`
	}
	if err := p.getJSON(ctx, p.taskrouterBase+"/Workspaces/"+ws.SID+"/Workflows", &workflows); err != nil {
		return nil, errors.Wrap(err, "list workflows")
	}
	wf, err := pick(workflows.Workflows, func(n named) bool { return n.FriendlyName == DefaultWorkflowName })
	if err != nil {
		return nil, errors.Wrapf(err, "workflow %q", DefaultWorkflowName)
	}
	res.WorkflowSID = wf.SID

	var taskChannels struct {
		TaskChannels []named `json:"channels"`
	}
	if err := p.getJSON(ctx, p.taskrouterBase+"/Workspaces/"+ws.SID+"/TaskChannels", &taskChannels); err != nil {
		return nil, errors.Wrap(err, "list task channels")
	}
	tc, err := pick(taskChannels.TaskChannels, func(n named) bool { return n.UniqueName == DefaultTaskChannelName })
	if err != nil {
		return nil, errors.Wrapf(err, "task channel %q", DefaultTaskChannelName)
	}
	res.TaskChannelSID = tc.SID

	var services struct {
		Services []named `json:"services"`
	}
	if err := p.getJSON(ctx, p.chatBase+"/Services", &services); err != nil {
		return nil, errors.Wrap(err, "list chat services")
	}
	cs, err := pick(services.Services, func(n named) bool { return n.FriendlyName == DefaultChatServiceName })
	if err != nil {
		return nil, errors.Wrapf(err, "chat service %q", DefaultChatServiceName)
	}
	res.ChatServiceSID = cs.SID

	studioSID, err := p.createStudioFlow(ctx, wf.SID, tc.SID)
	if err != nil {
		return nil, errors.Wrap(err, "create studio flow")
	}
	res.StudioFlowSID = studioSID

	flexSID, err := p.createFlexFlow(ctx, studioSID, cs.SID)
	if err != nil {
		return nil, errors.Wrap(err, "create flex flow")
	}
	res.FlexFlowSID = flexSID

	return res, nil
}

type named struct {
	SID          string `json:"sid"`
	FriendlyName string `json:"friendly_name"`
	UniqueName   string `json:"unique_name"`
}

func pick(items []named, match func(named) bool) (named, error) {
	for _, it := range items {
		if match(it) {
			return it, nil
		}
	}
	return named{}, errors.New("not found")
}

// createStudioFlow publishes a minimal incoming-message -> send-to-flex flow.
func (p *Provisioner) createStudioFlow(ctx context.Context, workflowSID, taskChannelSID string) (string, error) {
	definition := map[string]any{
		"description": "Social DM handoff to agents",
		"states": []map[string]any{
			{
				"name": "Trigger",
				"type": "trigger",
				"transitions": []map[string]any{
					{"next": "send_to_flex", "event": "incomingMessage"},
					{"event": "incomingCall"},
					{"event": "incomingRequest"},
				},
				"properties": map[string]any{"offset": map[string]int{"x": 0, "y": 0}},
			},
			{
				"name": "send_to_flex",
				"type": "send-to-flex",
				"transitions": []map[string]any{
					{"event": "callComplete"},
					{"event": "failedToEnqueue"},
					{"event": "callFailure"},
				},
				"properties": map[string]any{
					"offset":     map[string]int{"x": 40, "y": 210},
					"workflow":   workflowSID,
					"channel":    taskChannelSID,
					"attributes": `{"name": "{{trigger.message.ChannelAttributes.from}}", "channelType": "web", "channelSid": "{{trigger.message.ChannelSid}}", "customChannel": "SocialDM"}`,
				},
			},
		},
		"initial_state": "Trigger",
		"flags":         map[string]any{"allow_concurrent_calls": true},
	}
	defJSON, err := json.Marshal(definition)
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("FriendlyName", "Social DM Handoff")
	form.Set("Status", "published")
	form.Set("Definition", string(defJSON))
	return p.postFormSID(ctx, p.studioBase+"/Flows", form)
}

// createFlexFlow binds the custom chat channel to the Studio flow.
func (p *Provisioner) createFlexFlow(ctx context.Context, studioFlowSID, chatServiceSID string) (string, error) {
	form := url.Values{}
	form.Set("IntegrationType", "studio")
	form.Set("ChannelType", "custom")
	form.Set("Enabled", "true")
	form.Set("Integration.FlowSid", studioFlowSID)
	form.Set("ContactIdentity", "contact-identity")
	form.Set("FriendlyName", "Social DM Channel Flow")
	form.Set("ChatServiceSid", chatServiceSID)
	form.Set("JanitorEnabled", "true")
	return p.postFormSID(ctx, p.flexBase+"/FlexFlows", form)
}

func (p *Provisioner) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(p.accountSID, p.authToken)
	resp, err := p.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return statusError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (p *Provisioner) postFormSID(ctx context.Context, u string, form url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(p.accountSID, p.authToken)
	resp, err := p.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", statusError(resp)
	}
	var out struct {
		SID string `json:"sid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.SID, nil
}

func statusError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return errors.Errorf("%s: status %d: %s", resp.Request.URL.Path, resp.StatusCode, strings.TrimSpace(string(snippet)))
}

// AppendEnv appends the provisioned SIDs to an env file in the shape the
// serve command reads.
func AppendEnv(path, accountSID, authToken string, res *Result) error {
	content := fmt.Sprintf(
		"\nWORKSPACE_ACCOUNT_SID=%s\nWORKSPACE_AUTH_TOKEN=%s\nWORKSPACE_FLEX_FLOW_SID=%s\nWORKSPACE_CHAT_SERVICE_SID=%s\n",
		accountSID, authToken, res.FlexFlowSID, res.ChatServiceSID,
	)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return errors.Wrap(err, "open env file")
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		return errors.Wrap(err, "write env file")
	}
	return nil
}
