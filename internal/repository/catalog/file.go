package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"

	"github.com/adammcdonagh/sensu-asset-builder/internal/domain/asset"
)

var (
	// errEntryNameRequired is returned when a catalog entry has no name.
	errEntryNameRequired = errors.New("catalog entry name is required")
	// errEntryRepoRequired is returned when a catalog entry has no source repository.
	errEntryRepoRequired = errors.New("catalog entry source_repo is required")
)

// LoadCatalog reads and validates the asset catalog at path.
// A missing file yields asset.ErrConfigNotFound.
func LoadCatalog(path string) (*asset.Catalog, error) {
	var catalog asset.Catalog
	if err := readJSON(path, &catalog); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, asset.ErrConfigNotFound)
		}

		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}

	for i, entry := range catalog.Assets {
		if entry.Name == "" {
			return nil, fmt.Errorf("asset #%d: %w", i, errEntryNameRequired)
		}

		if entry.SourceRepo == "" {
			return nil, fmt.Errorf("asset %s: %w", entry.Name, errEntryRepoRequired)
		}
	}

	return &catalog, nil
}

// AssetRoot returns the directory of an asset inside its cloned repository.
func AssetRoot(workspaceDir string, entry asset.CatalogEntry) string {
	return filepath.Join(workspaceDir, entry.RepoDirName(), entry.SourceRepoRootDir, entry.Name)
}

// LoadMetadata reads asset_metadata.json from assetRoot.
// A missing descriptor yields asset.ErrMetadataNotFound.
func LoadMetadata(assetRoot string) (*asset.Metadata, error) {
	path := filepath.Join(assetRoot, asset.MetadataFilename)

	var metadata asset.Metadata
	if err := readJSON(path, &metadata); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, asset.ErrMetadataNotFound)
		}

		return nil, fmt.Errorf("load metadata %s: %w", path, err)
	}

	return &metadata, nil
}

// readJSON decodes a JSON-with-comments file into v.
func readJSON(path string, v any) error {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return err
	}

	standard, err := hujson.Standardize(contents)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}

	if err = json.Unmarshal(standard, v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	return nil
}
