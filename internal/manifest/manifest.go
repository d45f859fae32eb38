package manifest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/adammcdonagh/sensu-asset-builder/internal/config"
	"github.com/adammcdonagh/sensu-asset-builder/internal/domain/asset"
)

const (
	documentStart = "---\n"
	yamlIndent    = 2
)

// URLFunc maps an archive path to its download URL.
type URLFunc func(archivePath string) string

// Name is the resource name of an asset version.
func Name(assetName, version string) string {
	return assetName + "_v" + version
}

// Filename is the manifest file name of an asset version.
func Filename(assetName, version string) string {
	return Name(assetName, version) + ".yml"
}

// Build creates the manifest of an asset from its build results.
// Results without an archive digest are left out.
func Build(assetName, version string, results []asset.BuildResult, url URLFunc) asset.Manifest {
	m := asset.Manifest{
		Type:       asset.ManifestType,
		APIVersion: asset.ManifestAPIVersion,
		Metadata:   asset.ManifestMetadata{Name: Name(assetName, version)},
		Spec:       asset.ManifestSpec{Builds: make([]asset.ManifestBuild, 0, len(results))},
	}

	for _, result := range results {
		if !result.Target.IsBuilt() {
			continue
		}

		filters := append([]string{}, result.Target.System.SensuFilters...)

		m.Spec.Builds = append(m.Spec.Builds, asset.ManifestBuild{
			SHA512:  result.Digest(),
			URL:     url(result.ArchivePath()),
			Filters: filters,
		})
	}

	return m
}

// Render returns the YAML document with an explicit start marker.
func Render(m asset.Manifest) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(documentStart)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(yamlIndent)

	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}

	return buf.Bytes(), nil
}

// Write renders m into path, replacing any previous manifest.
func Write(path string, m asset.Manifest) error {
	contents, err := Render(m)
	if err != nil {
		return err
	}

	if err = os.MkdirAll(filepath.Dir(path), config.DefaultDirPermissions); err != nil {
		return fmt.Errorf("create manifest directory: %w", err)
	}

	if err = os.WriteFile(path, contents, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	return nil
}
