package asset

// Release is one published release of the runtime repository.
type Release struct {
	// TagName is the release tag.
	TagName string `json:"tag_name"`
	// Assets are the downloadable files attached to the release.
	Assets []ReleaseAsset `json:"assets"`
}

// ReleaseAsset is a downloadable file of a release.
type ReleaseAsset struct {
	// Name is the file name, e.g. "sensu-python-runtime_v1.1_python-3.9.10_vanilla-alpine_linux_x86_64.tar.gz".
	Name string `json:"name"`
	// URL is the API URL that serves the raw file.
	URL string `json:"url"`
	// Size is the file size in bytes as reported by the index.
	Size int64 `json:"size"`
}
