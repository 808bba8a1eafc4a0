package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/expo-up/internal/service/release"
)

// releaseCmd builds, compresses and uploads a bundle.
//
//nolint:gochecknoglobals // Cobra commands are package-level by convention.
var releaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Export, compress and upload a bundle",
	Long: `Exports the bundle with the Expo CLI, stores the public app config next to it
as expoConfig.json, compresses the output into <unix millis>.zip and uploads it
to <updates.url host>/api/expo-up. Local artifacts are removed afterwards.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		// Setup graceful shutdown handling.
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		platform, _ := cmd.Flags().GetString("platform") //nolint:errcheck // Flag is registered below.
		token, _ := cmd.Flags().GetString("token")       //nolint:errcheck // Flag is registered below.

		options := &release.Options{
			Settings:   settings,
			ProjectDir: projectDir,
			Platform:   platform,
			Token:      token,
		}

		return release.Run(ctx, options)
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	addTargetFlags(releaseCmd)
	rootCmd.AddCommand(releaseCmd)
}

// addTargetFlags registers the required --platform and --token flags.
func addTargetFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("platform", "p", "", "target platform: ios or android")
	cmd.Flags().StringP("token", "t", "", "auth token for the update server")

	_ = cmd.MarkFlagRequired("platform")
	_ = cmd.MarkFlagRequired("token")
}
