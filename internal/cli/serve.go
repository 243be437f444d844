package cli

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmbridge/dmbridge/internal/audit"
	"github.com/dmbridge/dmbridge/internal/config"
	"github.com/dmbridge/dmbridge/internal/httpapi"
	"github.com/dmbridge/dmbridge/internal/relay"
	"github.com/dmbridge/dmbridge/internal/social"
	"github.com/dmbridge/dmbridge/internal/workspace"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook relay server",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		slog.SetDefault(logger)

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		httpClient := &http.Client{Timeout: 20 * time.Second}

		wsClient := workspace.NewClient(workspace.ClientConfig{
			AccountSID:     cfg.Workspace.AccountSID,
			AuthToken:      cfg.Workspace.AuthToken,
			ChatAPIBase:    cfg.Workspace.ChatAPIBase,
			FlexAPIBase:    cfg.Workspace.FlexAPIBase,
			ChatServiceSID: cfg.Workspace.ChatServiceSID,
			FlexFlowSID:    cfg.Workspace.FlexFlowSID,
		}, httpClient)

		dmClient := social.NewClient(social.ClientConfig{
			ConsumerKey:    cfg.Social.ConsumerKey,
			ConsumerSecret: cfg.Social.ConsumerSecret,
			AccessToken:    cfg.Social.AccessToken,
			AccessSecret:   cfg.Social.AccessSecret,
			APIBase:        cfg.Social.APIBase,
		})

		resolver := relay.NewResolver(wsClient, cfg.Server.PublicURL)

		var sink relay.AuditSink
		if w := audit.NewWriter(cfg.AuditBrokerList(), cfg.Audit.Topic, logger); w != nil {
			defer w.Close()
			sink = w
			logger.Info("relay audit trail enabled", "topic", cfg.Audit.Topic)
		}

		dispatcher := relay.NewDispatcher(relay.DispatcherOptions{
			API:          wsClient,
			DM:           dmClient,
			Resolver:     resolver,
			BridgeHandle: cfg.Social.BridgeHandle,
			Audit:        sink,
			Logger:       logger,
		})

		server := httpapi.NewServer(dispatcher, cfg.Social.ConsumerSecret, logger)
		logger.Info("dmbridge listening", "addr", cfg.Server.Addr)
		return http.ListenAndServe(cfg.Server.Addr, server.Handler())
	},
}
