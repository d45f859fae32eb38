// Package packager archives a build root as a gzip-compressed tarball and
// computes the SHA-512 digest advertised in the manifest.
package packager
