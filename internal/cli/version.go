package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the dmbridge version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("dmbridge %s\n", color.CyanString(version))
	},
}
