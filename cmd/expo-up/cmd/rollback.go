package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/expo-up/internal/service/rollback"
)

// rollbackCmd asks the update server to revert the current runtime version.
//
//nolint:gochecknoglobals // Cobra commands are package-level by convention.
var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Roll the current runtime version back to the previous or embedded update",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		// Setup graceful shutdown handling.
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		platform, _ := cmd.Flags().GetString("platform") //nolint:errcheck // Flag is registered below.
		token, _ := cmd.Flags().GetString("token")       //nolint:errcheck // Flag is registered below.
		embedded, _ := cmd.Flags().GetBool("embedded")   //nolint:errcheck // Flag is registered below.

		options := &rollback.Options{
			Settings:   settings,
			ProjectDir: projectDir,
			Platform:   platform,
			Token:      token,
			Embedded:   embedded,
		}

		return rollback.Run(ctx, options)
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	addTargetFlags(rollbackCmd)
	rollbackCmd.Flags().BoolP("embedded", "e", false, "roll back to the update embedded in the app binary")
	rootCmd.AddCommand(rollbackCmd)
}
