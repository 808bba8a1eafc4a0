package expo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Runner is the package runner used to call the Expo CLI.
type Runner string

const (
	// RunnerYarn is used when the project has a yarn.lock.
	RunnerYarn Runner = "yarn"
	// RunnerNpx is used otherwise.
	RunnerNpx Runner = "npx"

	// yarnLockFilename marks a yarn-managed project.
	yarnLockFilename = "yarn.lock"
)

// errNoConfigJSON is returned when `expo config` prints no JSON object.
var errNoConfigJSON = errors.New("expo config printed no JSON object")

// DetectRunner picks yarn when dir contains yarn.lock, npx otherwise.
func DetectRunner(dir string) Runner {
	if _, err := os.Stat(filepath.Join(dir, yarnLockFilename)); err == nil {
		return RunnerYarn
	}

	return RunnerNpx
}

// CLI runs Expo CLI subcommands inside a project.
type CLI struct {
	// dir is the project root.
	dir string
	// runner prefixes every invocation.
	runner Runner
	// env is the complete child environment.
	env []string
	// exec runs the child processes.
	exec Executor
}

// NewCLI creates a CLI for the project in dir. A nil executor selects os/exec.
func NewCLI(dir string, runner Runner, env []string, executor Executor) *CLI {
	if executor == nil {
		executor = ExecExecutor{}
	}

	return &CLI{
		dir:    dir,
		runner: runner,
		env:    env,
		exec:   executor,
	}
}

// Runner returns the package runner in use.
func (c *CLI) Runner() Runner {
	return c.runner
}

// Version runs `expo -v`; an error means the Expo CLI is not available in dir.
func (c *CLI) Version(ctx context.Context) (string, error) {
	out, err := c.run(ctx, "-v")
	if err != nil {
		return "", err
	}

	return string(bytes.TrimSpace(out)), nil
}

// Export runs `expo export` for platform into outputDir (relative to the project root).
func (c *CLI) Export(ctx context.Context, platform, outputDir string) error {
	_, err := c.run(ctx, "export", "--platform", platform, "--output-dir", outputDir)

	return err
}

// PublicConfig returns the public app config as JSON, as the app would see it at runtime.
func (c *CLI) PublicConfig(ctx context.Context) ([]byte, error) {
	out, err := c.run(ctx, "config", "--json", "--type", "public")
	if err != nil {
		return nil, err
	}

	return extractJSONObject(out)
}

// run calls `<runner> expo <args...>` in the project root.
func (c *CLI) run(ctx context.Context, args ...string) ([]byte, error) {
	return c.exec.Run(ctx, &Command{
		Dir:  c.dir,
		Env:  c.env,
		Name: string(c.runner),
		Args: append([]string{"expo"}, args...),
	})
}

// extractJSONObject strips runner banners (e.g. "yarn run v1.22") around the JSON document.
func extractJSONObject(out []byte) ([]byte, error) {
	start := bytes.IndexByte(out, '{')
	end := bytes.LastIndexByte(out, '}')

	if start < 0 || end < start {
		return nil, errNoConfigJSON
	}

	doc := out[start : end+1]
	if !json.Valid(doc) {
		return nil, fmt.Errorf("%w: invalid document", errNoConfigJSON)
	}

	return doc, nil
}
