// Package executor runs external commands.
//
// Runner is the narrow capability every shell-out goes through, so tests can
// substitute a fake and assert on arguments. Docker implements Isolator on top
// of a Runner to execute a command inside a platform-matched container.
package executor
