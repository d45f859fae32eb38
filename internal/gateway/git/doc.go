// Package git clones asset source repositories into the workspace.
package git
