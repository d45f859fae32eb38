//go:build !unix

package platform

import "runtime"

// machine falls back to the Go architecture where uname(2) is unavailable.
func machine() (string, error) {
	return runtime.GOARCH, nil
}
