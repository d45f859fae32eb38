package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adammcdonagh/sensu-asset-builder/internal/domain/asset"
)

// writeFile creates path with contents, including parent directories.
func writeFile(t *testing.T, path, contents string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

// TestLoadCatalog_NotFound verifies a missing catalog maps to ErrConfigNotFound.
func TestLoadCatalog_NotFound(t *testing.T) {
	t.Parallel()

	c, err := LoadCatalog(filepath.Join(t.TempDir(), "assets.json"))
	require.ErrorIs(t, err, asset.ErrConfigNotFound)
	require.Nil(t, c)
}

// TestLoadCatalog_WithComments parses a catalog containing comments and trailing commas.
func TestLoadCatalog_WithComments(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "assets.json")
	writeFile(t, path, `{
  // Checks shipped to every agent.
  "assets": [
    {"name": "check-disk", "source_repo": "org/sensu-checks", "source_repo_root_dir": "checks"},
    /* Legacy asset. */
    {"name": "check-load", "source_repo": "org/sensu-checks", "source_repo_root_dir": "checks",},
  ],
}`)

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, c.Assets, 2)
	require.Equal(t, asset.CatalogEntry{
		Name:              "check-disk",
		SourceRepo:        "org/sensu-checks",
		SourceRepoRootDir: "checks",
	}, c.Assets[0])
}

// TestLoadCatalog_Invalid covers malformed documents and incomplete entries.
func TestLoadCatalog_Invalid(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	broken := filepath.Join(dir, "broken.json")
	writeFile(t, broken, `{"assets": [`)

	_, err := LoadCatalog(broken)
	require.Error(t, err)
	require.NotErrorIs(t, err, asset.ErrConfigNotFound)

	noRepo := filepath.Join(dir, "norepo.json")
	writeFile(t, noRepo, `{"assets": [{"name": "check-disk"}]}`)

	_, err = LoadCatalog(noRepo)
	require.ErrorIs(t, err, errEntryRepoRequired)

	noName := filepath.Join(dir, "noname.json")
	writeFile(t, noName, `{"assets": [{"source_repo": "org/x"}]}`)

	_, err = LoadCatalog(noName)
	require.ErrorIs(t, err, errEntryNameRequired)
}

// TestLoadMetadata reads the descriptor from the asset root inside the workspace.
func TestLoadMetadata(t *testing.T) {
	t.Parallel()

	workspace := t.TempDir()
	entry := asset.CatalogEntry{Name: "check-disk", SourceRepo: "org/sensu-checks", SourceRepoRootDir: "checks"}
	root := AssetRoot(workspace, entry)
	require.Equal(t, filepath.Join(workspace, "sensu-checks", "checks", "check-disk"), root)

	_, err := LoadMetadata(root)
	require.ErrorIs(t, err, asset.ErrMetadataNotFound)

	writeFile(t, filepath.Join(root, asset.MetadataFilename), `{
  "asset_name": "sensu-check-disk",
  "version": "1.2.0",
  "requirements": ["psutil==5.9.0", "requests"],
  "python_version": "3.9.10",
  // Compiled assets ship a single binary.
  "is_compiled": false,
  "systems": [
    {"os": "linux", "platform_family": "rhel", "platform_version": 7, "sensu_filters": ["entity.system.os == 'linux'"]},
    {"os": "linux", "platform_family": "alpine", "arch": "aarch64", "sensu_filters": []},
  ],
}`)

	m, err := LoadMetadata(root)
	require.NoError(t, err)
	require.Equal(t, "sensu-check-disk", m.SensuName)
	require.Equal(t, "1.2.0", m.Version)
	require.Equal(t, []string{"psutil==5.9.0", "requests"}, m.Requirements)
	require.Equal(t, "3.9.10", m.PythonVersion)
	require.False(t, m.IsCompiled)
	require.Len(t, m.Systems, 2)
	require.Equal(t, asset.PlatformVersion("7"), m.Systems[0].PlatformVersion)
	require.Equal(t, "aarch64", m.Systems[1].Arch)
}
