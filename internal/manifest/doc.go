// Package manifest assembles and writes the Sensu Asset resource of an asset.
package manifest
