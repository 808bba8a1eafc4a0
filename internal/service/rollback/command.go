package rollback

import (
	"context"
	"net/http"

	"github.com/oshokin/expo-up/internal/config"
	"github.com/oshokin/expo-up/internal/domain/update"
	"github.com/oshokin/expo-up/internal/expo"
	"github.com/oshokin/expo-up/internal/logger"
	"github.com/oshokin/expo-up/internal/project"
	"github.com/oshokin/expo-up/internal/service/common"
)

// Options contains inputs for the rollback entry point.
type Options struct {
	// Settings are the loaded expo-up settings; nil means defaults.
	Settings *config.Config
	// ProjectDir is the Expo project root; empty means the working directory.
	ProjectDir string
	// Platform is the raw --platform value.
	Platform string
	// Token is the bearer token for the update server.
	Token string
	// Embedded reverts to the embedded update instead of the previous one.
	Embedded bool
	// Executor runs Expo CLI processes; nil selects os/exec.
	Executor expo.Executor
	// HTTPClient overrides the client used for the request.
	HTTPClient *http.Client
}

// Run resolves the project and sends the rollback instruction.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "rollback")

	platform, err := update.ParsePlatform(opts.Platform)
	if err != nil {
		return err
	}

	cfg := opts.Settings
	if cfg == nil {
		cfg = config.Default()
	}

	if err = config.Validate(cfg); err != nil {
		return err
	}

	proj, err := project.Resolve(ctx, &project.Options{
		Dir:      opts.ProjectDir,
		EnvFile:  cfg.EnvFile,
		Executor: opts.Executor,
	})
	if err != nil {
		return err
	}

	client, err := common.NewClient(proj.Host, cfg.Endpoint, opts.Token,
		common.WithCallTimeout(cfg.Timeout),
		common.WithHTTPClient(opts.HTTPClient),
	)
	if err != nil {
		return err
	}

	request := &common.RollbackRequest{
		RollbackType:   update.RollbackTypeFor(opts.Embedded),
		Platform:       platform,
		RuntimeVersion: proj.App.Version,
		UpdatesKey:     proj.App.UpdatesKey,
	}

	logger.Infof(ctx, "Reverting %s to %s update...", request.RuntimeVersion, request.RollbackType)

	if actor, actorErr := common.DetectActor(); actorErr == nil {
		logger.DebugKV(ctx, "Rollback requested", "actor", actor.String(), "platform", platform)
	}

	if err = client.Rollback(ctx, request); err != nil {
		logger.ErrorKV(ctx, "Rollback failed", "error", err)
		return err
	}

	logger.Infof(ctx, "Successfully reverted %s to %s update.", request.RuntimeVersion, request.RollbackType)

	return nil
}
