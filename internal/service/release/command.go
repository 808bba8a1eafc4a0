package release

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/oshokin/expo-up/internal/bundle"
	"github.com/oshokin/expo-up/internal/config"
	"github.com/oshokin/expo-up/internal/domain/update"
	"github.com/oshokin/expo-up/internal/expo"
	"github.com/oshokin/expo-up/internal/logger"
	"github.com/oshokin/expo-up/internal/project"
	"github.com/oshokin/expo-up/internal/service/common"
	"github.com/oshokin/expo-up/internal/version"
)

// Options contains inputs for the release entry point.
type Options struct {
	// Settings are the loaded expo-up settings; nil means defaults.
	Settings *config.Config
	// ProjectDir is the Expo project root; empty means the working directory.
	ProjectDir string
	// Platform is the raw --platform value.
	Platform string
	// Token is the bearer token for the update server.
	Token string
	// Executor runs Expo CLI processes; nil selects os/exec.
	Executor expo.Executor
	// HTTPClient overrides the client used for the upload.
	HTTPClient *http.Client
}

// releaser holds the state of a single release.
// It is unexported; callers should use Run.
type releaser struct {
	// cfg holds the validated settings.
	cfg *config.Config
	// project is the resolved Expo project.
	project *project.Project
	// platform is the export target.
	platform update.Platform
	// client uploads the archive.
	client *common.Client
	// outputDir is the absolute export directory.
	outputDir string
	// archive is set once the bundle is compressed.
	archive *bundle.Archive
}

// Run executes the release workflow.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "release")

	rel, err := newReleaser(ctx, opts)
	if err != nil {
		return err
	}

	lock, err := common.AcquireLock(ctx, rel.project.Dir)
	if err != nil {
		return err
	}

	defer func() {
		if releaseErr := lock.Release(); releaseErr != nil {
			logger.WarnKV(ctx, "Unable to remove release lock", "error", releaseErr)
		}
	}()

	if err = rel.Run(ctx); err != nil {
		logger.ErrorKV(ctx, "Release failed", "error", err)
		return err
	}

	logger.Info(ctx, "Bundle uploaded successfully")

	return nil
}

// newReleaser validates inputs and resolves the project before anything is built.
func newReleaser(ctx context.Context, opts *Options) (*releaser, error) {
	platform, err := update.ParsePlatform(opts.Platform)
	if err != nil {
		return nil, err
	}

	cfg := opts.Settings
	if cfg == nil {
		cfg = config.Default()
	}

	if err = config.Validate(cfg); err != nil {
		return nil, err
	}

	logStart(ctx, platform)

	proj, err := project.Resolve(ctx, &project.Options{
		Dir:      opts.ProjectDir,
		EnvFile:  cfg.EnvFile,
		Executor: opts.Executor,
	})
	if err != nil {
		return nil, err
	}

	client, err := common.NewClient(proj.Host, cfg.Endpoint, opts.Token,
		common.WithCallTimeout(cfg.Timeout),
		common.WithHTTPClient(opts.HTTPClient),
	)
	if err != nil {
		return nil, err
	}

	return &releaser{
		cfg:       cfg,
		project:   proj,
		platform:  platform,
		client:    client,
		outputDir: filepath.Join(proj.Dir, cfg.OutputDir),
	}, nil
}

// Run builds, compresses and uploads the bundle. Local artifacts are
// removed before Run returns, whatever the outcome.
func (r *releaser) Run(ctx context.Context) error {
	defer r.cleanup(ctx)

	if err := bundle.Build(ctx, r.project.CLI, r.project.Dir, r.cfg.OutputDir, r.platform, r.project.App); err != nil {
		return err
	}

	logger.Info(ctx, "Compressing bundle...")

	archive, err := bundle.NewArchive(r.outputDir, r.project.Dir, time.Now())
	if err != nil {
		return err
	}

	r.archive = archive

	logger.InfoKV(ctx, "Bundle compressed successfully", "archive", archive.Name)
	logger.InfoKV(ctx, "Uploading bundle...", "url", r.client.URL())

	// Upload errors are returned as is: their text is the final status line.
	return r.client.UploadBundle(ctx, &common.UploadRequest{
		ArchivePath:     archive.Path,
		UpdatesKey:      r.project.App.UpdatesKey,
		BundleTimestamp: archive.Timestamp,
		Platform:        r.platform,
		RuntimeVersion:  r.project.App.Version,
	})
}

// cleanup removes the archive and the output directory.
func (r *releaser) cleanup(ctx context.Context) {
	if r.archive != nil {
		if err := r.archive.Remove(); err != nil {
			logger.WarnKV(ctx, "Unable to remove archive", "path", r.archive.Path, "error", err)
		}
	}

	if err := os.RemoveAll(r.outputDir); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WarnKV(ctx, "Unable to remove output directory", "path", r.outputDir, "error", err)
	}
}

// logStart records who publishes what.
func logStart(ctx context.Context, platform update.Platform) {
	kvs := []any{"platform", platform, "version", version.Short()}

	if actor, err := common.DetectActor(); err == nil {
		kvs = append(kvs, "actor", actor.String())
	}

	logger.InfoKV(ctx, "Starting release", kvs...)
}
