package builder

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/adammcdonagh/sensu-asset-builder/internal/build"
	"github.com/adammcdonagh/sensu-asset-builder/internal/config"
	"github.com/adammcdonagh/sensu-asset-builder/internal/domain/asset"
	"github.com/adammcdonagh/sensu-asset-builder/internal/gateway/git"
	"github.com/adammcdonagh/sensu-asset-builder/internal/logger"
	"github.com/adammcdonagh/sensu-asset-builder/internal/manifest"
	"github.com/adammcdonagh/sensu-asset-builder/internal/packager"
	"github.com/adammcdonagh/sensu-asset-builder/internal/repository/catalog"
)

// buildAll loads the catalog, fetches the sources and builds every selected asset.
func (r *runner) buildAll(ctx context.Context) error {
	catalogPath := r.opts.CatalogPath
	if catalogPath == "" {
		catalogPath = config.DefaultCatalogFilename
	}

	cat, err := catalog.LoadCatalog(catalogPath)
	if err != nil {
		return err
	}

	entries := cat.Select(r.opts.Asset)
	if len(entries) == 0 {
		logger.WarnKV(ctx, "No assets selected", "catalog", catalogPath, "asset", r.opts.Asset)
		return nil
	}

	for _, repo := range asset.Repos(entries) {
		if err = r.deps.cloner.Clone(ctx, repo, git.RepoDir(r.cfg.WorkspaceDir, repo)); err != nil {
			return err
		}
	}

	for _, entry := range entries {
		if err = r.buildAsset(logger.WithKV(ctx, "asset", entry.Name), entry); err != nil {
			return err
		}
	}

	return nil
}

// buildAsset runs every target of one asset and writes its manifest.
func (r *runner) buildAsset(ctx context.Context, entry asset.CatalogEntry) error {
	logger.Info(ctx, "Processing asset")

	sourceDir := catalog.AssetRoot(r.cfg.WorkspaceDir, entry)

	meta, err := catalog.LoadMetadata(sourceDir)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Loaded asset metadata",
		"sensu_name", meta.SensuName, "version", meta.Version, "python", meta.PythonVersion, "compiled", meta.IsCompiled)

	matrix := r.resolver.Resolve(meta.Systems)

	for _, skip := range matrix.Skipped {
		logger.InfoKV(ctx, "Skipping target", "arch", skip.Arch, "os", skip.System.OS, "reason", skip.Reason)
		r.metrics.TargetSkipped(entry.Name, skip.Arch)
	}

	results := make([]asset.BuildResult, 0, len(matrix.Targets))

	for _, target := range matrix.Targets {
		var built asset.Target

		built, err = r.buildTarget(logger.WithKV(ctx, "target", target.String()), entry, sourceDir, meta, target)
		if err != nil {
			return err
		}

		results = append(results, asset.BuildResult{Target: built})
		r.metrics.TargetBuilt(entry.Name, built.PlatformAlias, built.Arch)
	}

	doc := manifest.Build(entry.Name, meta.Version, results, r.cfg.DistributionURL)
	path := filepath.Join(r.cfg.AssetsDir, manifest.Filename(entry.Name, meta.Version))

	if err = manifest.Write(path, doc); err != nil {
		return err
	}

	if rendered, renderErr := manifest.Render(doc); renderErr == nil {
		logger.Debugf(ctx, "Manifest %s:\n%s", path, rendered)
	}

	if err = r.executor.Tidy(entry.Name); err != nil {
		logger.WarnKV(ctx, "Unable to remove build root", "error", err)
	}

	r.metrics.AssetBuilt()
	logger.InfoKV(ctx, "Successfully built asset", "manifest", path, "builds", len(doc.Spec.Builds))

	return nil
}

// buildTarget provisions, stages, builds and packages one target.
func (r *runner) buildTarget(
	ctx context.Context,
	entry asset.CatalogEntry,
	sourceDir string,
	meta *asset.Metadata,
	target asset.Target,
) (asset.Target, error) {
	logger.Info(ctx, "Processing target")

	rt, err := r.provisioner.Provision(ctx, meta.PythonVersion, target)
	if err != nil {
		return target, err
	}

	target = target.WithRuntime(rt)

	root, err := r.executor.Stage(ctx, entry.Name, sourceDir)
	if err != nil {
		return target, fmt.Errorf("stage %s: %w", entry.Name, err)
	}

	err = r.executor.Run(ctx, build.Request{
		AssetName:    entry.Name,
		Requirements: meta.Requirements,
		Mode:         build.ModeFor(meta),
		Target:       target,
	})
	if err != nil {
		return target, err
	}

	return r.packager.Package(ctx, packager.Request{
		Root:      root,
		AssetName: entry.Name,
		Version:   meta.Version,
		Target:    target,
	})
}
