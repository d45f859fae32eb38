package build

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adammcdonagh/sensu-asset-builder/internal/config"
	"github.com/adammcdonagh/sensu-asset-builder/internal/domain/asset"
	"github.com/adammcdonagh/sensu-asset-builder/internal/executor"
	"github.com/adammcdonagh/sensu-asset-builder/internal/logger"
)

// Mode selects the procedure run inside the container.
type Mode int

const (
	// ModeInstall fetches the requirements into the build root against the runtime.
	ModeInstall Mode = iota
	// ModeCompile turns the asset scripts into binaries.
	ModeCompile
)

// String returns the mode name used in logs.
func (m Mode) String() string {
	if m == ModeCompile {
		return "compile"
	}

	return "install"
}

// ModeFor picks the mode for an asset.
func ModeFor(meta *asset.Metadata) Mode {
	if meta.IsCompiled {
		return ModeCompile
	}

	return ModeInstall
}

const (
	// StructureDir is the build root skeleton under the scripts directory.
	StructureDir = "build_structure"

	installScript = "/src/download_requirements.sh"
	compileScript = "/src/compile_scripts.sh"

	buildMount   = "/build"
	scriptsMount = "/src"
	runtimeMount = "/runtime"

	// wrapperLink is the bin/ entry target of every script.
	wrapperLink = "../share/wrapper"
)

var errAssetNameRequired = errors.New("asset name is required")

// Request describes one containerised build of a staged asset.
type Request struct {
	// AssetName is the catalog name; the build root is <build>/<AssetName>.
	AssetName string
	// Requirements are the package specifiers to install.
	Requirements []string
	// Mode selects install or compile.
	Mode Mode
	// Target is the resolved target with its runtime provisioned.
	Target asset.Target
}

// Executor stages build roots and runs the container step.
type Executor struct {
	// buildDir holds one build root per asset.
	buildDir string
	// scriptsDir contains build_structure/ and the container procedures.
	scriptsDir string
	// isolator runs the container.
	isolator executor.Isolator
}

// NewExecutor creates an executor over the given directories.
func NewExecutor(buildDir, scriptsDir string, isolator executor.Isolator) *Executor {
	return &Executor{
		buildDir:   buildDir,
		scriptsDir: scriptsDir,
		isolator:   isolator,
	}
}

// Root returns the build root of an asset.
func (e *Executor) Root(assetName string) string {
	return filepath.Join(e.buildDir, assetName)
}

// Stage rebuilds the build root of an asset from the skeleton and its sources
// and returns the root path.
func (e *Executor) Stage(ctx context.Context, assetName, sourceDir string) (string, error) {
	if assetName == "" {
		return "", errAssetNameRequired
	}

	root := e.Root(assetName)

	if err := os.RemoveAll(root); err != nil {
		return "", fmt.Errorf("reset build root: %w", err)
	}

	if err := copyTree(filepath.Join(e.scriptsDir, StructureDir), root); err != nil {
		return "", fmt.Errorf("copy build structure: %w", err)
	}

	libexec := filepath.Join(root, "libexec")
	if err := copyTree(sourceDir, libexec); err != nil {
		return "", fmt.Errorf("copy asset sources: %w", err)
	}

	scripts, err := filepath.Glob(filepath.Join(libexec, "*.py"))
	if err != nil {
		return "", err
	}

	bin := filepath.Join(root, "bin")
	if err = os.MkdirAll(bin, config.DefaultDirPermissions); err != nil {
		return "", err
	}

	for _, script := range scripts {
		link := filepath.Join(bin, filepath.Base(script))

		_ = os.Remove(link)

		if err = os.Symlink(wrapperLink, link); err != nil {
			return "", fmt.Errorf("link %s: %w", filepath.Base(script), err)
		}
	}

	logger.DebugKV(ctx, "Staged build root", "root", root, "scripts", len(scripts))

	return root, nil
}

// Run executes the install or compile procedure for one target.
func (e *Executor) Run(ctx context.Context, req Request) error {
	spec := e.ContainerSpec(req)

	logger.InfoKV(ctx, "Running container build",
		"mode", req.Mode.String(), "target", req.Target.String(), "image", spec.Image)

	if err := e.isolator.Run(ctx, spec); err != nil {
		return fmt.Errorf("%s %s for %s: %w: %w", req.Mode, req.AssetName, req.Target, err, asset.ErrExecutionFailure)
	}

	return nil
}

// ContainerSpec renders the container invocation of a request.
func (e *Executor) ContainerSpec(req Request) executor.ContainerSpec {
	packages := base64.StdEncoding.EncodeToString([]byte(strings.Join(req.Requirements, " ")))

	var command []string

	switch req.Mode {
	case ModeCompile:
		command = []string{"sh", compileScript, req.AssetName, packages}
	default:
		command = []string{"sh", installScript, buildMount + "/" + req.Target.Runtime.FileName, req.AssetName, packages}
	}

	return executor.ContainerSpec{
		Image:    req.Target.Image,
		Platform: req.Target.ContainerPlatform,
		Mounts: []executor.Mount{
			{Source: e.buildDir, Target: buildMount},
			{Source: e.scriptsDir, Target: scriptsMount},
			{Source: req.Target.Runtime.Dir, Target: runtimeMount},
		},
		Command: command,
	}
}

// Tidy removes the build root of an asset.
func (e *Executor) Tidy(assetName string) error {
	if assetName == "" {
		return errAssetNameRequired
	}

	return os.RemoveAll(e.Root(assetName))
}
