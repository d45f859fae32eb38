// Package asset contains the core domain types of the asset build pipeline.
//
// Catalog and Metadata describe what to build. Target is the immutable value
// threaded through the stages: the resolver creates it, and the provisioner and
// packager return enriched copies via WithRuntime and WithArchive. Manifest is
// the Sensu Asset resource rendered for every asset.
package asset
