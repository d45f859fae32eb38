// Package platform expands an asset's declared systems into resolved build targets.
//
// It detects the host architecture, defaults missing architectures to it,
// skips aarch64 targets on hosts that cannot build them natively, and maps
// platform families to the aliases and container images used downstream.
package platform
