// Package executortest provides a recording executor.Runner for tests.
package executortest

import (
	"context"
	"os/exec"
	"sync"

	"github.com/adammcdonagh/sensu-asset-builder/internal/executor"
)

var _ executor.Runner = (*FakeRunner)(nil)

// FakeRunner records commands instead of executing them.
type FakeRunner struct {
	mu sync.Mutex

	// Commands are the recorded invocations, in order.
	Commands []executor.Command
	// Err, if set, is returned from every Run call.
	Err error
	// OutputFunc, if set, produces the result of Output.
	OutputFunc func(cmd executor.Command) ([]byte, error)
	// RunFunc, if set, is invoked by Run after recording and its error returned.
	RunFunc func(cmd executor.Command) error
	// Paths maps executables to LookPath results; missing entries are not found.
	Paths map[string]string
}

// Run implements executor.Runner.
func (f *FakeRunner) Run(_ context.Context, cmd executor.Command) error {
	f.record(cmd)

	if f.RunFunc != nil {
		return f.RunFunc(cmd)
	}

	return f.Err
}

// Output implements executor.Runner.
func (f *FakeRunner) Output(_ context.Context, cmd executor.Command) ([]byte, error) {
	f.record(cmd)

	if f.OutputFunc != nil {
		return f.OutputFunc(cmd)
	}

	return nil, f.Err
}

// LookPath implements executor.Runner.
func (f *FakeRunner) LookPath(name string) (string, error) {
	if path, ok := f.Paths[name]; ok {
		return path, nil
	}

	return "", exec.ErrNotFound
}

// Recorded returns a copy of the recorded commands.
func (f *FakeRunner) Recorded() []executor.Command {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]executor.Command(nil), f.Commands...)
}

func (f *FakeRunner) record(cmd executor.Command) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Commands = append(f.Commands, cmd)
}
