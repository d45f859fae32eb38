// Package builder is the orchestrator of one asset build run.
//
// A run takes the build lock, resets the workspace, clones each source
// repository once and then walks every selected asset through the pipeline:
// metadata, platform matrix, runtime, staging, container build, archive and
// finally the manifest. The first fatal error stops the run; cleanup of the
// workspace and the lock happens on every exit path.
package builder
