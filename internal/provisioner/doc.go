// Package provisioner obtains the interpreter runtime a target builds against.
//
// Runtimes are published as release assets of a single repository. The
// provisioner finds the archive matching the Python version, platform and
// architecture of a target, keeps it in a local cache so later runs skip the
// download, and unpacks it next to the cache for the build container.
package provisioner
