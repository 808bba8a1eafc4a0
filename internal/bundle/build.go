package bundle

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/expo-up/internal/config"
	"github.com/oshokin/expo-up/internal/domain/update"
	"github.com/oshokin/expo-up/internal/expo"
	"github.com/oshokin/expo-up/internal/logger"
)

// ConfigSnapshotFilename is written into the output directory after export.
const ConfigSnapshotFilename = "expoConfig.json"

// Exporter is the part of the Expo CLI the builder needs.
type Exporter interface {
	Export(ctx context.Context, platform, outputDir string) error
}

// BuildError is returned when `expo export` fails.
type BuildError struct {
	// Platform is the platform being exported.
	Platform update.Platform
	// Err is the Expo CLI failure, including its output.
	Err error
}

// Error implements error.
func (e *BuildError) Error() string {
	return fmt.Sprintf("export %s bundle: %v", e.Platform, e.Err)
}

// Unwrap returns the underlying error.
func (e *BuildError) Unwrap() error {
	return e.Err
}

// Build exports the bundle for platform into projectDir/outputDir and writes
// the config snapshot into it.
func Build(
	ctx context.Context,
	exporter Exporter,
	projectDir, outputDir string,
	platform update.Platform,
	app *update.AppConfig,
) error {
	logger.InfoKV(ctx, "Creating bundle...", "output_dir", outputDir)

	if err := exporter.Export(ctx, platform.String(), outputDir); err != nil {
		return &BuildError{Platform: platform, Err: err}
	}

	if err := WriteConfigSnapshot(filepath.Join(projectDir, outputDir), app); err != nil {
		return err
	}

	logger.Info(ctx, "Bundle created successfully")

	return nil
}

// WriteConfigSnapshot stores the full raw public config as compact JSON in dir.
func WriteConfigSnapshot(dir string, app *update.AppConfig) error {
	snapshot, err := json.Marshal(app.Raw)
	if err != nil {
		return fmt.Errorf("encode config snapshot: %w", err)
	}

	if err = os.MkdirAll(dir, dirPermissions); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	path := filepath.Join(dir, ConfigSnapshotFilename)
	if err = os.WriteFile(path, snapshot, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write config snapshot: %w", err)
	}

	return nil
}

// Verify the CLI satisfies Exporter.
var _ Exporter = (*expo.CLI)(nil)
