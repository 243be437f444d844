package cli

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dmbridge/dmbridge/internal/provision"
)

var provisionEnvFile string

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Create the workspace routing objects (run once)",
	Long: "Discovers the default task workspace, workflow, task channel, and chat\n" +
		"service, creates the Studio and Flex flows for the custom DM channel,\n" +
		"and appends the resulting SIDs to the env file.",
	RunE: func(cmd *cobra.Command, args []string) error {
		reader := bufio.NewReader(os.Stdin)
		color.Cyan("Workspace provisioning")

		fmt.Print("Account SID: ")
		accountSID, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		fmt.Print("Auth Token: ")
		authToken, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		accountSID = strings.TrimSpace(accountSID)
		authToken = strings.TrimSpace(authToken)

		p := provision.New(provision.Config{
			AccountSID: accountSID,
			AuthToken:  authToken,
		}, &http.Client{Timeout: 30 * time.Second})

		res, err := p.Run(cmd.Context())
		if err != nil {
			return err
		}

		color.Green("Studio flow:   %s", res.StudioFlowSID)
		color.Green("Flex flow:     %s", res.FlexFlowSID)
		color.Green("Chat service:  %s", res.ChatServiceSID)

		if err := provision.AppendEnv(provisionEnvFile, accountSID, authToken, res); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", provisionEnvFile)
		return nil
	},
}

func init() {
	provisionCmd.Flags().StringVar(&provisionEnvFile, "env-file", ".env", "env file to append the provisioned SIDs to")
}
