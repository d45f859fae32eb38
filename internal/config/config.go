package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/adammcdonagh/sensu-asset-builder/internal/domain/asset"
)

// Config holds every setting shared by the pipeline stages.
type Config struct {
	// BonsaiProtocol is the scheme of the distribution URL written into manifests.
	BonsaiProtocol string `yaml:"bonsai_protocol"`
	// BonsaiHost is the host (and optional path) archives are served from.
	BonsaiHost string `yaml:"bonsai_host"`
	// GitHubToken authenticates cloning and release index calls. Never persisted.
	GitHubToken string `yaml:"-"`
	// RuntimeRepo is the "owner/name" repository publishing Python runtime archives.
	RuntimeRepo string `yaml:"python_runtime_repo"`
	// GitHubAPIURL is the base URL of the GitHub REST API.
	GitHubAPIURL string `yaml:"github_api_url"`
	// GitHubURL is the base URL repositories are cloned from.
	GitHubURL string `yaml:"github_url"`
	// WorkspaceDir is the transient directory repositories are cloned into.
	WorkspaceDir string `yaml:"workspace_dir"`
	// BuildDir holds staged build roots, cached runtime archives and unpacked runtimes.
	BuildDir string `yaml:"build_dir"`
	// AssetsDir receives the produced archives and manifests.
	AssetsDir string `yaml:"assets_dir"`
	// ScriptsDir contains build_structure/ and the install and compile procedures.
	ScriptsDir string `yaml:"scripts_dir"`
	// ContainerCLI is the docker compatible executable running the builds, e.g. "podman".
	ContainerCLI string `yaml:"container_cli"`
}

// Environment variable names.
const (
	EnvBonsaiProtocol = "BONSAI_PROTOCOL"
	EnvBonsaiHost     = "BONSAI_HOST"
	EnvGitHubToken    = "GITHUB_TOKEN"
	EnvRuntimeRepo    = "PYTHON_RUNTIME_REPO"
)

const (
	// DefaultCatalogFilename is the asset catalog read when --config is not given.
	DefaultCatalogFilename = "assets.json"
	// DefaultBonsaiProtocol is used when BONSAI_PROTOCOL is not set.
	DefaultBonsaiProtocol = "https"
	// DefaultGitHubAPIURL is the public GitHub REST endpoint.
	DefaultGitHubAPIURL = "https://api.github.com"
	// DefaultGitHubURL is the public GitHub clone endpoint.
	DefaultGitHubURL = "https://github.com"
	// DefaultWorkspaceDir is the transient clone area removed at the end of every run.
	DefaultWorkspaceDir = "/tmp/sensu-asset-builder"
	// DefaultBuildDir is relative to the working directory.
	DefaultBuildDir = "build"
	// DefaultAssetsDir is relative to the working directory.
	DefaultAssetsDir = "assets"
	// DefaultScriptsDir is relative to the working directory.
	DefaultScriptsDir = "scripts"
	// DefaultContainerCLI runs the container builds.
	DefaultContainerCLI = "docker"

	// DefaultDirPermissions is used for every directory the builder creates.
	DefaultDirPermissions = 0o755
	// DefaultFilePermissions is used for manifests and metrics files.
	DefaultFilePermissions = 0o644
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errInvalidRuntimeRepo is returned when PYTHON_RUNTIME_REPO is not "owner/name".
	errInvalidRuntimeRepo = errors.New("runtime repository must be in owner/name form")
)

// Getenv looks up an environment variable. os.LookupEnv satisfies it.
type Getenv func(key string) (string, bool)

// Load reads the optional YAML settings file, overlays environment variables,
// applies defaults and validates the result.
func Load(path string, getenv Getenv) (*Config, error) {
	cfg := new(Config)

	if path != "" {
		contents, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("read settings: %w", err)
		}

		if err = yaml.Unmarshal(contents, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	}

	cfg.applyEnv(getenv)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv overrides file values with non-empty environment variables.
func (c *Config) applyEnv(getenv Getenv) {
	if getenv == nil {
		getenv = os.LookupEnv
	}

	overrides := map[string]*string{
		EnvBonsaiProtocol: &c.BonsaiProtocol,
		EnvBonsaiHost:     &c.BonsaiHost,
		EnvGitHubToken:    &c.GitHubToken,
		EnvRuntimeRepo:    &c.RuntimeRepo,
	}

	for key, field := range overrides {
		if value, ok := getenv(key); ok && strings.TrimSpace(value) != "" {
			*field = strings.TrimSpace(value)
		}
	}
}

// Validate checks required settings and fills in defaults.
// The GitHub token is not checked here because it may still be obtained from the gh CLI.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.BonsaiProtocol == "" {
		cfg.BonsaiProtocol = DefaultBonsaiProtocol
	}

	if cfg.BonsaiHost == "" {
		return fmt.Errorf("%s: %w", EnvBonsaiHost, asset.ErrMissingEnvironment)
	}

	if cfg.RuntimeRepo == "" {
		return fmt.Errorf("%s: %w", EnvRuntimeRepo, asset.ErrMissingEnvironment)
	}

	if _, _, err := SplitRepo(cfg.RuntimeRepo); err != nil {
		return err
	}

	defaults := []struct {
		field *string
		value string
	}{
		{&cfg.GitHubAPIURL, DefaultGitHubAPIURL},
		{&cfg.GitHubURL, DefaultGitHubURL},
		{&cfg.WorkspaceDir, DefaultWorkspaceDir},
		{&cfg.BuildDir, DefaultBuildDir},
		{&cfg.AssetsDir, DefaultAssetsDir},
		{&cfg.ScriptsDir, DefaultScriptsDir},
		{&cfg.ContainerCLI, DefaultContainerCLI},
	}

	for _, d := range defaults {
		if *d.field == "" {
			*d.field = d.value
		}
	}

	cfg.GitHubAPIURL = strings.TrimRight(cfg.GitHubAPIURL, "/")
	cfg.GitHubURL = strings.TrimRight(cfg.GitHubURL, "/")

	return nil
}

// DistributionURL returns the download URL of an archive on the distribution host.
func (c *Config) DistributionURL(archivePath string) string {
	return fmt.Sprintf("%s://%s/%s", c.BonsaiProtocol, strings.TrimRight(c.BonsaiHost, "/"), filepath.Base(archivePath))
}

// SplitRepo splits an "owner/name" repository identifier.
func SplitRepo(repo string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("%q: %w", repo, errInvalidRuntimeRepo)
	}

	return owner, name, nil
}
