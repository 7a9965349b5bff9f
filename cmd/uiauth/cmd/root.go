package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "uiauth",
	Short: "uiauth is an interactive multi-stage authentication engine",
	Long: `Interactive, multi-stage user authentication with macaroon access,
refresh and short-term login tokens. Configuration is read from the environment.`,
	SilenceUsage: true,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
