package asset

import "path"

// CatalogEntry identifies where an asset's metadata and sources live.
type CatalogEntry struct {
	// Name is the asset directory name inside the source repository.
	Name string `json:"name"`
	// SourceRepo is the "owner/name" identifier of the repository holding the asset.
	SourceRepo string `json:"source_repo"`
	// SourceRepoRootDir is the directory inside the repository containing asset directories.
	SourceRepoRootDir string `json:"source_repo_root_dir"`
}

// RepoDirName is the local directory name the source repository is cloned into.
func (e CatalogEntry) RepoDirName() string {
	return path.Base(e.SourceRepo)
}

// Catalog is the parsed assets.json document.
type Catalog struct {
	// Assets lists every asset known to the builder, in file order.
	Assets []CatalogEntry `json:"assets"`
}

// Select returns the entries to build. An empty name selects everything.
// The catalog itself is never modified.
func (c *Catalog) Select(name string) []CatalogEntry {
	selected := make([]CatalogEntry, 0, len(c.Assets))

	for _, entry := range c.Assets {
		if name != "" && entry.Name != name {
			continue
		}

		selected = append(selected, entry)
	}

	return selected
}

// Repos returns the distinct source repositories of entries in first-seen order.
func Repos(entries []CatalogEntry) []string {
	var (
		seen  = make(map[string]struct{}, len(entries))
		repos = make([]string, 0, len(entries))
	)

	for _, entry := range entries {
		if _, ok := seen[entry.SourceRepo]; ok {
			continue
		}

		seen[entry.SourceRepo] = struct{}{}
		repos = append(repos, entry.SourceRepo)
	}

	return repos
}
