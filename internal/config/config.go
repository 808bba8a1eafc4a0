package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds tunables shared by the release and rollback commands.
type Config struct {
	// OutputDir is where `expo export` writes the bundle, relative to the project root.
	OutputDir string `yaml:"output_dir"`
	// EnvFile is the dotenv file loaded before reading the app config.
	EnvFile string `yaml:"env_file"`
	// Endpoint is the update server path receiving uploads and rollbacks.
	Endpoint string `yaml:"endpoint"`
	// Timeout bounds every request to the update server.
	Timeout time.Duration `yaml:"timeout"`
	// LogLevel is used when --log-level is not given.
	LogLevel string `yaml:"log_level"`
}

const (
	// DefaultConfigFilename is the default settings filename in the project root.
	DefaultConfigFilename = "expo-up.yaml"

	// DefaultOutputDir is the directory `expo export` writes to.
	DefaultOutputDir = "dist"

	// DefaultEnvFile is the dotenv file read from the project root.
	DefaultEnvFile = ".env"

	// DefaultEndpoint is the update server API path.
	DefaultEndpoint = "/api/expo-up"

	// DefaultTimeout leaves room for uploading large bundles over slow links.
	DefaultTimeout = 5 * time.Minute

	// DefaultFilePermissions is used for files expo-up writes itself.
	DefaultFilePermissions = 0o600
)

var (
	// ErrNotFound is returned by Load when the settings file does not exist.
	ErrNotFound = errors.New("settings file not found")
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errOutputDirOutside is returned when output_dir escapes the project root.
	errOutputDirOutside = errors.New("output directory must stay inside the project")
	// errBadEndpoint is returned when endpoint is not an absolute URL path.
	errBadEndpoint = errors.New("endpoint must start with /")
)

// Default returns settings populated with default values.
func Default() *Config {
	return &Config{
		OutputDir: DefaultOutputDir,
		EnvFile:   DefaultEnvFile,
		Endpoint:  DefaultEndpoint,
		Timeout:   DefaultTimeout,
	}
}

// Load reads settings from the provided path and validates them.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadOrDefault behaves like Load but returns Default when the file is missing.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, ErrNotFound) {
		return Default(), nil
	}

	return cfg, err
}

// Validate fills defaults and checks the provided settings.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.OutputDir == "" {
		settings.OutputDir = DefaultOutputDir
	}

	if settings.EnvFile == "" {
		settings.EnvFile = DefaultEnvFile
	}

	if settings.Endpoint == "" {
		settings.Endpoint = DefaultEndpoint
	}

	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	// The output directory is removed recursively after every release.
	outputDir := filepath.Clean(settings.OutputDir)
	if filepath.IsAbs(outputDir) || outputDir == "." ||
		outputDir == ".." || strings.HasPrefix(outputDir, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%q: %w", settings.OutputDir, errOutputDirOutside)
	}

	settings.OutputDir = outputDir

	if !strings.HasPrefix(settings.Endpoint, "/") {
		return fmt.Errorf("%q: %w", settings.Endpoint, errBadEndpoint)
	}

	return nil
}
