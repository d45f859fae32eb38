// Package build stages an asset's build root and runs the per-platform
// dependency install or script compilation inside a platform-matched container.
//
// The build root is assembled from a shared skeleton (build_structure/) with the
// asset sources copied into libexec/ and one bin/ entry per script, each
// pointing at the shared wrapper. The container sees the build directory at
// /build, the scripts directory at /src and the unpacked runtime at /runtime.
package build
