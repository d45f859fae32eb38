package provisioner

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/adammcdonagh/sensu-asset-builder/internal/config"
	"github.com/adammcdonagh/sensu-asset-builder/internal/domain/asset"
	"github.com/adammcdonagh/sensu-asset-builder/internal/logger"
)

const (
	// runtimesDir holds unpacked runtimes under the cache directory.
	runtimesDir = "runtimes"
	// pythonBinary marks an unpacked runtime as complete.
	pythonBinary = "bin/python"
	// releaseArchAMD64 is how runtime releases spell amd64.
	releaseArchAMD64 = "x86_64"
)

// ReleaseIndex lists runtime releases and downloads their files.
type ReleaseIndex interface {
	ListReleases(ctx context.Context) ([]asset.Release, error)
	Download(ctx context.Context, ra asset.ReleaseAsset, w io.Writer) (int64, error)
}

// Provisioner resolves, caches and unpacks runtimes. It is not safe for concurrent use.
type Provisioner struct {
	// index is the release source.
	index ReleaseIndex
	// cacheDir keeps downloaded archives and the runtimes/ tree.
	cacheDir string
	// releases is the release list, fetched on first use.
	releases []asset.Release
	// listed reports whether releases has been fetched.
	listed bool
}

// New creates a provisioner caching archives under cacheDir.
func New(index ReleaseIndex, cacheDir string) *Provisioner {
	return &Provisioner{
		index:    index,
		cacheDir: cacheDir,
	}
}

// Provision returns the runtime for pythonVersion matching target, downloading
// and unpacking it when it is not cached yet.
func (p *Provisioner) Provision(ctx context.Context, pythonVersion string, target asset.Target) (asset.RuntimeArtifact, error) {
	ctx = logger.WithKV(ctx, "target", target.String(), "python", pythonVersion)

	arch := releaseArch(target.Arch)

	pattern, err := runtimePattern(pythonVersion, target.RuntimePlatform, arch)
	if err != nil {
		return asset.RuntimeArtifact{}, err
	}

	releases, err := p.listReleases(ctx)
	if err != nil {
		return asset.RuntimeArtifact{}, err
	}

	var found *asset.ReleaseAsset

	for _, release := range releases {
		for i := range release.Assets {
			ra := release.Assets[i]
			if !pattern.MatchString(ra.Name) {
				continue
			}

			if found != nil {
				logger.DebugKV(ctx, "Ignoring further matching runtime", "release", release.TagName, "file", ra.Name)
				continue
			}

			logger.InfoKV(ctx, "Found runtime", "release", release.TagName, "file", ra.Name)

			found = &ra
		}
	}

	if found == nil {
		return asset.RuntimeArtifact{}, fmt.Errorf(
			"python %s for %s/%s: %w", pythonVersion, target.RuntimePlatform, arch, asset.ErrRuntimeNotFound)
	}

	archivePath := filepath.Join(p.cacheDir, found.Name)

	if err = p.fetch(ctx, *found, archivePath); err != nil {
		return asset.RuntimeArtifact{}, err
	}

	dir := filepath.Join(p.cacheDir, runtimesDir, runtimeDirName(target, arch))

	if err = p.unpack(ctx, archivePath, dir); err != nil {
		return asset.RuntimeArtifact{}, err
	}

	return asset.RuntimeArtifact{
		PythonVersion: pythonVersion,
		Platform:      target.RuntimePlatform,
		Arch:          arch,
		FileName:      found.Name,
		ArchivePath:   archivePath,
		Dir:           dir,
	}, nil
}

func (p *Provisioner) listReleases(ctx context.Context) ([]asset.Release, error) {
	if p.listed {
		return p.releases, nil
	}

	releases, err := p.index.ListReleases(ctx)
	if err != nil {
		return nil, fmt.Errorf("list runtime releases: %w", err)
	}

	logger.DebugKV(ctx, "Listed runtime releases", "count", len(releases))

	p.releases = releases
	p.listed = true

	return releases, nil
}

// fetch downloads ra to dest unless a non-empty file is already there.
func (p *Provisioner) fetch(ctx context.Context, ra asset.ReleaseAsset, dest string) error {
	if info, err := os.Stat(dest); err == nil && info.Mode().IsRegular() && info.Size() > 0 {
		logger.InfoKV(ctx, "Using cached runtime", "path", dest)
		return nil
	}

	if err := os.MkdirAll(p.cacheDir, config.DefaultDirPermissions); err != nil {
		return fmt.Errorf("create runtime cache: %w", err)
	}

	tmp, err := os.CreateTemp(p.cacheDir, "."+ra.Name+".*.part")
	if err != nil {
		return fmt.Errorf("create runtime download file: %w", err)
	}

	tmpName := tmp.Name()

	defer func() {
		_ = os.Remove(tmpName)
	}()

	logger.InfoKV(ctx, "Downloading runtime", "file", ra.Name)

	written, err := p.index.Download(ctx, ra, tmp)
	if err != nil {
		_ = tmp.Close()
		return fmt.Errorf("download runtime: %w", err)
	}

	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close runtime download: %w", err)
	}

	if err = os.Rename(tmpName, dest); err != nil {
		return fmt.Errorf("store runtime: %w", err)
	}

	logger.InfoKV(ctx, "Downloaded runtime", "path", dest, "bytes", written)

	return nil
}

// unpack extracts the archive into dir unless the interpreter is already there.
func (p *Provisioner) unpack(ctx context.Context, archivePath, dir string) error {
	if _, err := os.Stat(filepath.Join(dir, pythonBinary)); err == nil {
		logger.DebugKV(ctx, "Runtime already extracted", "dir", dir)
		return nil
	}

	logger.InfoKV(ctx, "Extracting runtime", "dir", dir)

	if err := extractTarGz(ctx, archivePath, dir, maxEntrySize); err != nil {
		return fmt.Errorf("extract runtime %s: %w", filepath.Base(archivePath), err)
	}

	return nil
}

func runtimePattern(pythonVersion, platform, arch string) (*regexp.Regexp, error) {
	expr := fmt.Sprintf("sensu-python-runtime.*python-%s_vanilla-%s_linux_%s",
		regexp.QuoteMeta(pythonVersion), regexp.QuoteMeta(platform), regexp.QuoteMeta(arch))

	pattern, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("runtime pattern: %w", err)
	}

	return pattern, nil
}

func releaseArch(arch string) string {
	if arch == asset.ArchAMD64 {
		return releaseArchAMD64
	}

	return arch
}

func runtimeDirName(target asset.Target, arch string) string {
	alias := target.PlatformAlias
	if alias == "" {
		alias = target.System.OS
	}

	return alias + "-" + arch
}
