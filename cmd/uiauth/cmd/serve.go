package cmd

import (
	"fmt"

	"github.com/aussiebroadwan/uiauth/internal/uiauth/app"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the auth engine with housekeeping and the metrics listener",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := app.LoadConfig()

		application, err := app.New(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}

		return application.Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
