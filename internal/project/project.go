package project

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/expo-up/internal/domain/update"
	"github.com/oshokin/expo-up/internal/expo"
	"github.com/oshokin/expo-up/internal/logger"
)

// ErrNotAProject is returned when the Expo CLI cannot be run in the project directory.
var ErrNotAProject = errors.New("you are not in an expo project. Please run this command in an expo project")

// MissingFieldError reports the first required app config field that is not set.
type MissingFieldError struct {
	// Path is the dotted config path, e.g. "updates.url".
	Path string
}

// Error implements error.
func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("you need to set the %s in app.json or app.config.js", e.Path)
}

// Options are inputs for Resolve.
type Options struct {
	// Dir is the project root; empty means the working directory.
	Dir string
	// EnvFile is the dotenv file relative to Dir.
	EnvFile string
	// Executor runs Expo CLI processes; nil selects os/exec.
	Executor expo.Executor
}

// Project is a resolved and validated Expo project.
type Project struct {
	// Dir is the absolute project root.
	Dir string
	// CLI runs the Expo CLI inside Dir.
	CLI *expo.CLI
	// App is the validated public app config.
	App *update.AppConfig
	// Host is the update server origin derived from App.UpdatesURL.
	Host string
}

// check is one named validation step; checks run in order and the first failure wins.
type check struct {
	path string
	ok   func(*update.AppConfig) bool
}

//nolint:gochecknoglobals // Fixed, ordered validation table.
var requiredFields = []check{
	{path: "version", ok: func(c *update.AppConfig) bool { return c.Version != "" }},
	{path: "updates.url", ok: func(c *update.AppConfig) bool { return c.UpdatesURL != "" }},
	{
		path: "updates.requestHeaders." + update.UpdatesKeyHeader,
		ok:   func(c *update.AppConfig) bool { return c.UpdatesKey != "" },
	},
}

// Validate returns a *MissingFieldError for the first missing required field.
func Validate(cfg *update.AppConfig) error {
	for _, c := range requiredFields {
		if !c.ok(cfg) {
			return &MissingFieldError{Path: c.path}
		}
	}

	return nil
}

// Resolve probes the Expo CLI, reads the public app config and validates it.
func Resolve(ctx context.Context, opts *Options) (*Project, error) {
	dir, err := projectDir(opts.Dir)
	if err != nil {
		return nil, err
	}

	runner := expo.DetectRunner(dir)

	var envPath string
	if opts.EnvFile != "" {
		envPath = filepath.Join(dir, opts.EnvFile)
	}

	env, err := expo.BuildEnv(os.Environ(), envPath)
	if err != nil {
		return nil, err
	}

	cli := expo.NewCLI(dir, runner, env, opts.Executor)

	expoVersion, err := cli.Version(ctx)
	if err != nil {
		logger.DebugKV(ctx, "Expo CLI probe failed", "runner", runner, "error", err)
		return nil, ErrNotAProject
	}

	logger.DebugKV(ctx, "Detected Expo CLI", "runner", runner, "expo_version", expoVersion)
	logger.Info(ctx, "Getting app info...")

	raw, err := cli.PublicConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("read app config: %w", err)
	}

	app, err := update.ParseAppConfig(raw)
	if err != nil {
		return nil, err
	}

	if err = Validate(app); err != nil {
		return nil, err
	}

	host, err := app.Host()
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "Successfully retrieved app information")
	logger.Infof(ctx, "Detected Host: %s", host)
	logger.Infof(ctx, "Detected Key: %s", app.UpdatesKey)

	return &Project{
		Dir:  dir,
		CLI:  cli,
		App:  app,
		Host: host,
	}, nil
}

// projectDir returns the absolute project root.
func projectDir(dir string) (string, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("get working directory: %w", err)
		}

		return wd, nil
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve project directory: %w", err)
	}

	return abs, nil
}
