package asset

import "fmt"

// Canonical architecture tokens used in file names and runtime lookups.
const (
	ArchAMD64   = "amd64"
	ArchAARCH64 = "aarch64"
)

// Target is a resolved build target. It is passed by value between stages;
// each stage that learns something new returns an enriched copy.
type Target struct {
	// System is a copy of the declaration the target was resolved from.
	System SystemTarget
	// Arch is the resolved architecture (declared or host default).
	Arch string
	// PlatformAlias is the short family name used in archive names, e.g. "rhel7".
	PlatformAlias string
	// RuntimePlatform is the family token used in runtime release names, e.g. "amzn2".
	RuntimePlatform string
	// Image is the container image the install or compile step runs in.
	Image string
	// ContainerPlatform is the optional "--platform" hint for the container runtime.
	ContainerPlatform string

	// Runtime is set by the provisioner.
	Runtime RuntimeArtifact
	// ArchivePath is set by the packager.
	ArchivePath string
	// Digest is the hex SHA-512 of ArchivePath, set by the packager.
	Digest string
}

// WithRuntime returns a copy of t bound to the provisioned runtime.
func (t Target) WithRuntime(rt RuntimeArtifact) Target {
	t.Runtime = rt
	return t
}

// WithArchive returns a copy of t recording the produced archive and its digest.
func (t Target) WithArchive(path, digest string) Target {
	t.ArchivePath = path
	t.Digest = digest

	return t
}

// IsBuilt reports whether the target produced a hashed archive.
func (t Target) IsBuilt() bool {
	return t.ArchivePath != "" && t.Digest != ""
}

// String renders the target for logs, e.g. "rhel7/linux/amd64".
func (t Target) String() string {
	alias := t.PlatformAlias
	if alias == "" {
		alias = "-"
	}

	return fmt.Sprintf("%s/%s/%s", alias, t.System.OS, t.Arch)
}

// ArchiveName returns "<asset>_<version>_[<alias>_]<os>_<arch>.tar.gz".
func (t Target) ArchiveName(assetName, version string) string {
	alias := ""
	if t.PlatformAlias != "" {
		alias = t.PlatformAlias + "_"
	}

	return fmt.Sprintf("%s_%s_%s%s_%s.tar.gz", assetName, version, alias, t.System.OS, t.Arch)
}

// RuntimeArtifact is an interpreter bundle downloaded from the release index.
type RuntimeArtifact struct {
	// PythonVersion is the interpreter version the runtime provides.
	PythonVersion string
	// Platform is the runtime platform token the archive was matched with.
	Platform string
	// Arch is the architecture token used in the release name, e.g. "x86_64".
	Arch string
	// FileName is the release asset name, also the cached archive base name.
	FileName string
	// ArchivePath is the cached archive location.
	ArchivePath string
	// Dir is where the archive is unpacked.
	Dir string
}

// BuildResult is produced once for each target that was built and hashed.
type BuildResult struct {
	// Target is the fully enriched target.
	Target Target
}

// ArchivePath is the produced archive.
func (r BuildResult) ArchivePath() string {
	return r.Target.ArchivePath
}

// Digest is the hex SHA-512 of the produced archive.
func (r BuildResult) Digest() string {
	return r.Target.Digest
}
