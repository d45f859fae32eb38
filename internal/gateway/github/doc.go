// Package github is the release index collaborator.
//
// It lists the releases of the runtime repository through the GitHub REST API
// and streams release assets to a writer. Calls are made once, without retries.
package github
