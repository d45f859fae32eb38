package asset

// Static envelope values of the Sensu Asset resource.
const (
	ManifestType       = "Asset"
	ManifestAPIVersion = "core/v2"
)

// Manifest is the Sensu Asset resource describing all builds of one asset.
// Field order is the key order of the rendered document.
type Manifest struct {
	Type       string           `yaml:"type"`
	APIVersion string           `yaml:"api_version"`
	Metadata   ManifestMetadata `yaml:"metadata"`
	Spec       ManifestSpec     `yaml:"spec"`
}

// ManifestMetadata holds the resource name.
type ManifestMetadata struct {
	Name string `yaml:"name"`
}

// ManifestSpec lists the downloadable builds.
type ManifestSpec struct {
	Builds []ManifestBuild `yaml:"builds"`
}

// ManifestBuild is one platform build the agent may select.
type ManifestBuild struct {
	SHA512  string   `yaml:"sha512"`
	URL     string   `yaml:"url"`
	Filters []string `yaml:"filters"`
}
