package executor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/adammcdonagh/sensu-asset-builder/internal/config"
)

// Mount binds a host directory into the container.
type Mount struct {
	// Source is the host path; it is made absolute before use.
	Source string
	// Target is the path inside the container.
	Target string
}

// ContainerSpec describes one isolated execution.
type ContainerSpec struct {
	// Image is the container image to run.
	Image string
	// Platform is the optional architecture override, e.g. "linux/amd64".
	Platform string
	// Mounts are bind mounts, in order.
	Mounts []Mount
	// Command is the argv executed in the container.
	Command []string
}

// Isolator executes a command inside a platform-matched isolated environment.
type Isolator interface {
	Run(ctx context.Context, spec ContainerSpec) error
}

// errImageRequired is returned when a spec has no image.
var errImageRequired = errors.New("container image is required")

// Docker runs containers through the docker CLI.
type Docker struct {
	runner Runner
	cli    string
}

// NewDocker creates an Isolator invoking cli ("docker" when empty) through runner.
func NewDocker(runner Runner, cli string) *Docker {
	if cli == "" {
		cli = config.DefaultContainerCLI
	}

	return &Docker{runner: runner, cli: cli}
}

// Run implements Isolator. The container is removed when it exits.
func (d *Docker) Run(ctx context.Context, spec ContainerSpec) error {
	cmd, err := d.Command(spec)
	if err != nil {
		return err
	}

	return d.runner.Run(ctx, cmd)
}

// Command renders the docker invocation for spec.
func (d *Docker) Command(spec ContainerSpec) (Command, error) {
	if spec.Image == "" {
		return Command{}, errImageRequired
	}

	args := []string{"run"}
	if spec.Platform != "" {
		args = append(args, "--platform", spec.Platform)
	}

	args = append(args, "--rm")

	for _, m := range spec.Mounts {
		source, err := filepath.Abs(m.Source)
		if err != nil {
			return Command{}, fmt.Errorf("mount %s: %w", m.Source, err)
		}

		args = append(args, "-v", source+":"+m.Target)
	}

	args = append(args, spec.Image)
	args = append(args, spec.Command...)

	return Command{Name: d.cli, Args: args}, nil
}
