// Package config provides configuration types and loading for dmbridge.
package config

import (
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// Config is the root configuration struct.
// Top-level groups: Server, Social, Workspace, Audit.
type Config struct {
	Server    ServerConfig
	Social    SocialConfig
	Workspace WorkspaceConfig
	Audit     AuditConfig
}

// ---------------------------------------------------------------------------
// Server – HTTP listener and public identity of this bridge
// ---------------------------------------------------------------------------

// ServerConfig contains the inbound webhook listener settings.
type ServerConfig struct {
	// Addr is the listen address for the webhook endpoints.
	Addr string `envconfig:"BRIDGE_ADDR" default:":8080"`
	// PublicURL is the externally reachable base URL of this bridge. It is
	// used as the target when registering the per-channel outbound webhook,
	// so agent messages find their way back here.
	PublicURL string `envconfig:"BRIDGE_PUBLIC_URL"`
}

// ---------------------------------------------------------------------------
// Social – the public direct-message platform customers write from
// ---------------------------------------------------------------------------

// SocialConfig contains credentials and endpoints for the social platform.
type SocialConfig struct {
	ConsumerKey    string `envconfig:"SOCIAL_CONSUMER_KEY"`
	ConsumerSecret string `envconfig:"SOCIAL_CONSUMER_SECRET"`
	AccessToken    string `envconfig:"SOCIAL_ACCESS_TOKEN"`
	AccessSecret   string `envconfig:"SOCIAL_ACCESS_SECRET"`
	// BridgeHandle is the handle the bridge itself posts under. Inbound
	// events from this handle are our own relayed agent replies and must
	// not be re-ingested.
	BridgeHandle string `envconfig:"SOCIAL_BRIDGE_HANDLE"`
	APIBase      string `envconfig:"SOCIAL_API_BASE" default:"https://api.twitter.com/1.1"`
}

// ---------------------------------------------------------------------------
// Workspace – the agent-facing contact-center chat platform
// ---------------------------------------------------------------------------

// WorkspaceConfig contains credentials and endpoints for the workspace platform.
type WorkspaceConfig struct {
	AccountSID     string `envconfig:"WORKSPACE_ACCOUNT_SID"`
	AuthToken      string `envconfig:"WORKSPACE_AUTH_TOKEN"`
	FlexFlowSID    string `envconfig:"WORKSPACE_FLEX_FLOW_SID"`
	ChatServiceSID string `envconfig:"WORKSPACE_CHAT_SERVICE_SID"`
	ChatAPIBase    string `envconfig:"WORKSPACE_CHAT_API_BASE" default:"https://chat.twilio.com/v2"`
	FlexAPIBase    string `envconfig:"WORKSPACE_FLEX_API_BASE" default:"https://flex-api.twilio.com/v1"`
}

// ---------------------------------------------------------------------------
// Audit – optional relay event trail
// ---------------------------------------------------------------------------

// AuditConfig configures the optional Kafka relay audit trail.
// Leaving Brokers empty disables it.
type AuditConfig struct {
	Brokers string `envconfig:"AUDIT_BROKERS"`
	Topic   string `envconfig:"AUDIT_TOPIC" default:"dmbridge.relay"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "process environment")
	}
	return &cfg, nil
}

// Validate reports missing credentials required to serve. Configuration
// faults are fatal at startup, never per-request.
func (c *Config) Validate() error {
	var missing []string
	require := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	require("BRIDGE_PUBLIC_URL", c.Server.PublicURL)
	require("SOCIAL_CONSUMER_KEY", c.Social.ConsumerKey)
	require("SOCIAL_CONSUMER_SECRET", c.Social.ConsumerSecret)
	require("SOCIAL_ACCESS_TOKEN", c.Social.AccessToken)
	require("SOCIAL_ACCESS_SECRET", c.Social.AccessSecret)
	require("SOCIAL_BRIDGE_HANDLE", c.Social.BridgeHandle)
	require("WORKSPACE_ACCOUNT_SID", c.Workspace.AccountSID)
	require("WORKSPACE_AUTH_TOKEN", c.Workspace.AuthToken)
	require("WORKSPACE_FLEX_FLOW_SID", c.Workspace.FlexFlowSID)
	require("WORKSPACE_CHAT_SERVICE_SID", c.Workspace.ChatServiceSID)
	if len(missing) > 0 {
		return errors.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// AuditBrokerList splits the configured broker string into addresses.
func (c *Config) AuditBrokerList() []string {
	var out []string
	for _, b := range strings.Split(c.Audit.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
