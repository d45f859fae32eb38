package platform

import (
	"strings"

	"github.com/adammcdonagh/sensu-asset-builder/internal/domain/asset"
)

// Platform families and images with special handling.
const (
	FamilyRHEL        = "rhel"
	FamilyAmazonLinux = "amazonlinux"

	AliasRHEL7 = "rhel7"
	AliasRHEL8 = "rhel8"

	ImageRHEL7 = "centos:7"
	ImageRHEL8 = "almalinux"

	// runtimeAmazonLinux is the family token used by runtime releases for Amazon Linux.
	runtimeAmazonLinux = "amzn2"
)

// Host describes the machine running the build.
type Host struct {
	// Machine is the raw identifier, e.g. "x86_64" or "arm64".
	Machine string
	// Arch is the normalised architecture: asset.ArchAARCH64 or asset.ArchAMD64.
	Arch string
}

// DetectHost inspects the running machine.
func DetectHost() (Host, error) {
	m, err := machine()
	if err != nil {
		return Host{}, err
	}

	return NewHost(m), nil
}

// NewHost normalises a machine identifier. ARM 64-bit identifiers become
// aarch64, everything else amd64.
func NewHost(machine string) Host {
	arch := asset.ArchAMD64

	switch strings.ToLower(strings.TrimSpace(machine)) {
	case "aarch64", "arm64", "arm64e":
		arch = asset.ArchAARCH64
	}

	return Host{Machine: machine, Arch: arch}
}

// Skip records a declared system that will not be built.
type Skip struct {
	// System is the declaration that was skipped.
	System asset.SystemTarget
	// Arch is the resolved architecture that caused the skip.
	Arch string
	// Reason explains the skip for logs.
	Reason string
}

// Matrix is the outcome of resolving an asset's systems.
type Matrix struct {
	// Targets are buildable, in declaration order.
	Targets []asset.Target
	// Skipped are declarations excluded from the build.
	Skipped []Skip
}

// Resolver turns declared systems into targets for one host.
type Resolver struct {
	host Host
}

// NewResolver creates a resolver bound to host.
func NewResolver(host Host) *Resolver {
	return &Resolver{host: host}
}

// Resolve expands systems into the build matrix. Declarations are copied, never modified.
func (r *Resolver) Resolve(systems []asset.SystemTarget) Matrix {
	var matrix Matrix

	for _, system := range systems {
		arch := system.Arch
		if arch == "" {
			arch = r.host.Arch
		}

		// Building aarch64 needs native execution, so it's only possible on an aarch64 host.
		if arch == asset.ArchAARCH64 && r.host.Arch != asset.ArchAARCH64 {
			matrix.Skipped = append(matrix.Skipped, Skip{
				System: system,
				Arch:   arch,
				Reason: "aarch64 builds require an aarch64 host",
			})

			continue
		}

		alias, image := familyAlias(system.PlatformFamily, system.PlatformVersion)

		matrix.Targets = append(matrix.Targets, asset.Target{
			System:            system,
			Arch:              arch,
			PlatformAlias:     alias,
			RuntimePlatform:   runtimePlatform(alias),
			Image:             image,
			ContainerPlatform: r.containerPlatform(arch),
		})
	}

	return matrix
}

// familyAlias maps a platform family to its short alias and container image.
func familyAlias(family string, version asset.PlatformVersion) (alias, image string) {
	if family == FamilyRHEL {
		if version == "7" {
			return AliasRHEL7, ImageRHEL7
		}

		return AliasRHEL8, ImageRHEL8
	}

	return family, family
}

// runtimePlatform maps an alias to the token runtime releases are named with.
func runtimePlatform(alias string) string {
	if alias == FamilyAmazonLinux {
		return runtimeAmazonLinux
	}

	return alias
}

// containerPlatform returns the "--platform" hint for the container runtime.
// A native aarch64 build names the arm64 variant explicitly so a cached amd64
// image with the same tag is not picked up.
func (r *Resolver) containerPlatform(arch string) string {
	switch {
	case r.host.Arch == asset.ArchAARCH64 && arch == asset.ArchAARCH64:
		return "linux/arm64/v8"
	case arch != r.host.Arch:
		return "linux/" + arch
	default:
		return ""
	}
}
