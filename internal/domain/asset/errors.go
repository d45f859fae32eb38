package asset

import "errors"

// Fatal error kinds of a build run. Each aborts the run with exit status 1.
var (
	// ErrConfigNotFound is returned when the asset catalog file does not exist.
	ErrConfigNotFound = errors.New("asset catalog not found")
	// ErrMetadataNotFound is returned when asset_metadata.json is missing from a cloned repository.
	ErrMetadataNotFound = errors.New("asset metadata not found")
	// ErrMissingEnvironment is returned when a required environment variable is not set.
	ErrMissingEnvironment = errors.New("required environment variable is not set")
	// ErrRuntimeNotFound is returned when no released runtime matches the requested platform.
	ErrRuntimeNotFound = errors.New("python runtime not found")
	// ErrExecutionFailure is returned when the isolated install or compile step fails.
	ErrExecutionFailure = errors.New("isolated execution failed")
	// ErrArchivalFailure is returned when the asset archive cannot be written or hashed.
	ErrArchivalFailure = errors.New("archival failed")
)
