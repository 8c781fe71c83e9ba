package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is injected by the linker (-X .../cmd.Version=...).
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "pane-gateway %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
