package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/oshokin/expo-up/internal/config"
	"github.com/oshokin/expo-up/internal/logger"
	"github.com/oshokin/expo-up/internal/version"
)

var (
	// configPath to the settings YAML file.
	configPath string
	// logLevel overrides the level from the settings file.
	logLevel string
	// projectDir is the Expo project root.
	projectDir string
	// settings are loaded before any subcommand runs.
	settings *config.Config

	// errUnknownLogLevel is returned for unsupported --log-level values.
	errUnknownLogLevel = errors.New("unknown log level")

	// rootCmd represents the base command.
	rootCmd = &cobra.Command{
		Use:   version.Name,
		Short: "Publish and roll back Expo updates on a self-hosted update server",
		Long: `expo-up exports the JavaScript bundle of an Expo app, uploads it to a
self-hosted update server, and asks that server to roll a runtime version back
to the previous or the embedded update.

Run it from the root of an Expo project. The app config must define version,
updates.url and updates.requestHeaders.x-expo-updates-key.`,
		SilenceUsage:      true,
		PersistentPreRunE: loadSettings,
	}
)

// Execute runs the expo-up CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to settings file")
	rootCmd.PersistentFlags().
		StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().
		StringVar(&projectDir, "project-dir", "", "Expo project root (defaults to the working directory)")
}

// loadSettings reads the settings file and applies the log level.
// A missing default settings file is fine; a missing explicit one is not.
func loadSettings(cmd *cobra.Command, _ []string) error {
	path := configPath
	if projectDir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(projectDir, path)
	}

	var err error

	if cmd.Flags().Changed("config") {
		settings, err = config.Load(path)
	} else {
		settings, err = config.LoadOrDefault(path)
	}

	if err != nil {
		return err
	}

	level := settings.LogLevel
	if logLevel != "" {
		level = logLevel
	}

	parsed, ok := logger.ParseLogLevel(level)
	if !ok {
		return fmt.Errorf("%q: %w", level, errUnknownLogLevel)
	}

	logger.SetLevel(parsed)

	return nil
}
