package builder

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/adammcdonagh/sensu-asset-builder/internal/build"
	"github.com/adammcdonagh/sensu-asset-builder/internal/config"
	"github.com/adammcdonagh/sensu-asset-builder/internal/domain/asset"
	"github.com/adammcdonagh/sensu-asset-builder/internal/executor"
	"github.com/adammcdonagh/sensu-asset-builder/internal/gateway/git"
	"github.com/adammcdonagh/sensu-asset-builder/internal/gateway/github"
	"github.com/adammcdonagh/sensu-asset-builder/internal/logger"
	"github.com/adammcdonagh/sensu-asset-builder/internal/metrics"
	"github.com/adammcdonagh/sensu-asset-builder/internal/packager"
	"github.com/adammcdonagh/sensu-asset-builder/internal/platform"
	"github.com/adammcdonagh/sensu-asset-builder/internal/provisioner"
)

// Options contains inputs for the builder entry point.
type Options struct {
	// CatalogPath is the asset catalog (defaults to assets.json).
	CatalogPath string
	// Asset restricts the run to catalog entries with this name when set.
	Asset string
	// SettingsPath is an optional YAML settings file; environment variables override it.
	SettingsPath string
	// MetricsFile receives run metrics in the Prometheus text format when set.
	MetricsFile string
}

// collaborators are the external systems a run talks to.
type collaborators struct {
	// cloner fetches source repositories.
	cloner git.Cloner
	// releases lists and downloads runtimes.
	releases provisioner.ReleaseIndex
	// isolator runs the container builds.
	isolator executor.Isolator
	// host is the machine the run builds on.
	host platform.Host
}

// setupFunc resolves credentials and the host and returns the collaborators.
// It runs while the build lock is held so that failures still clean up.
type setupFunc func(ctx context.Context, cfg *config.Config) (collaborators, error)

// runner holds the state of a single run. Call Run(ctx, Options) from callers.
type runner struct {
	// cfg is built once at startup; setup may fill in the token.
	cfg *config.Config
	// opts are the command line inputs.
	opts *Options
	// setup produces deps once the lock is held.
	setup setupFunc
	// alive checks lock holders.
	alive processAlive
	// deps are the external collaborators.
	deps collaborators

	resolver    *platform.Resolver
	provisioner *provisioner.Provisioner
	executor    *build.Executor
	packager    *packager.Packager
	metrics     *metrics.Recorder

	// lock guards the build directory for the duration of the run.
	lock *buildLock
	// cleanupOnce makes cleanup idempotent.
	cleanupOnce sync.Once
}

// Run executes a full build run. It is the entry point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "sensu-asset-builder")

	cfg, err := config.Load(opts.SettingsPath, os.LookupEnv)
	if err != nil {
		return err
	}

	return newRunner(cfg, opts, connect(executor.NewExecRunner(), platform.DetectHost), psAlive).Run(ctx)
}

// connect builds the production collaborators on top of commands.
func connect(commands executor.Runner, detect func() (platform.Host, error)) setupFunc {
	return func(ctx context.Context, cfg *config.Config) (collaborators, error) {
		token, err := github.ResolveToken(ctx, cfg.GitHubToken, commands)
		if err != nil {
			return collaborators{}, err
		}

		cfg.GitHubToken = token

		owner, repo, err := config.SplitRepo(cfg.RuntimeRepo)
		if err != nil {
			return collaborators{}, fmt.Errorf("%s: %w: %w", config.EnvRuntimeRepo, err, asset.ErrMissingEnvironment)
		}

		host, err := detect()
		if err != nil {
			return collaborators{}, fmt.Errorf("detect host architecture: %w", err)
		}

		return collaborators{
			cloner:   git.NewCloner(cfg.GitHubURL, token),
			releases: github.NewClient(cfg.GitHubAPIURL, token, owner, repo),
			isolator: executor.NewDocker(commands, cfg.ContainerCLI),
			host:     host,
		}, nil
	}
}

func newRunner(cfg *config.Config, opts *Options, setup setupFunc, alive processAlive) *runner {
	if alive == nil {
		alive = psAlive
	}

	return &runner{
		cfg:     cfg,
		opts:    opts,
		setup:   setup,
		alive:   alive,
		metrics: metrics.NewRecorder(),
	}
}

// wire attaches the collaborators and the stages built on them.
func (r *runner) wire(deps collaborators) {
	r.deps = deps
	r.resolver = platform.NewResolver(deps.host)
	r.provisioner = provisioner.New(deps.releases, r.cfg.BuildDir)
	r.executor = build.NewExecutor(r.cfg.BuildDir, r.cfg.ScriptsDir, deps.isolator)
	r.packager = packager.New(r.cfg.AssetsDir)
}

// Run performs the run and always cleans up behind itself.
func (r *runner) Run(ctx context.Context) (err error) {
	ctx = logger.WithKV(ctx, "run_id", uuid.NewString())
	start := time.Now()

	defer func() {
		r.metrics.Finish(start, err)
		r.writeMetrics(ctx)
	}()

	lock, err := acquireLock(ctx, r.cfg.BuildDir, r.alive)
	if err != nil {
		return err
	}

	r.lock = lock

	defer r.cleanup(ctx)

	deps, err := r.setup(ctx, r.cfg)
	if err != nil {
		return err
	}

	r.wire(deps)

	if err = r.resetWorkspace(); err != nil {
		return err
	}

	if err = r.buildAll(ctx); err != nil {
		return err
	}

	logger.Info(ctx, "Build run completed")

	return nil
}

// resetWorkspace recreates an empty clone area.
func (r *runner) resetWorkspace() error {
	if err := os.RemoveAll(r.cfg.WorkspaceDir); err != nil {
		return fmt.Errorf("reset workspace: %w", err)
	}

	if err := os.MkdirAll(r.cfg.WorkspaceDir, config.DefaultDirPermissions); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}

	return nil
}

// cleanup removes the workspace and releases the lock. Errors are logged only.
func (r *runner) cleanup(ctx context.Context) {
	r.cleanupOnce.Do(func() {
		var result *multierror.Error

		if err := os.RemoveAll(r.cfg.WorkspaceDir); err != nil {
			result = multierror.Append(result, fmt.Errorf("remove workspace: %w", err))
		}

		if err := r.lock.release(); err != nil {
			result = multierror.Append(result, err)
		}

		if err := result.ErrorOrNil(); err != nil {
			logger.WarnKV(ctx, "Cleanup was incomplete", "error", err)
			return
		}

		logger.Debug(ctx, "Workspace removed and build lock released")
	})
}

func (r *runner) writeMetrics(ctx context.Context) {
	path := strings.TrimSpace(r.opts.MetricsFile)
	if path == "" {
		return
	}

	if err := r.metrics.WriteFile(path); err != nil {
		logger.WarnKV(ctx, "Unable to write metrics", "error", err)
	}
}
