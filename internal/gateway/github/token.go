package github

import (
	"context"
	"fmt"
	"strings"

	"github.com/adammcdonagh/sensu-asset-builder/internal/domain/asset"
	"github.com/adammcdonagh/sensu-asset-builder/internal/executor"
	"github.com/adammcdonagh/sensu-asset-builder/internal/logger"
)

// ghCLI is the GitHub CLI asked for a token when none is configured.
const ghCLI = "gh"

// ResolveToken returns token when set, otherwise the token of the logged-in gh CLI user.
func ResolveToken(ctx context.Context, token string, runner executor.Runner) (string, error) {
	if token = strings.TrimSpace(token); token != "" {
		return token, nil
	}

	if _, err := runner.LookPath(ghCLI); err != nil {
		return "", fmt.Errorf("GITHUB_TOKEN is not set and %s is not installed: %w", ghCLI, asset.ErrMissingEnvironment)
	}

	out, err := runner.Output(ctx, executor.Command{Name: ghCLI, Args: []string{"auth", "token"}})
	if err != nil {
		return "", fmt.Errorf("%s auth token: %w: %w", ghCLI, err, asset.ErrMissingEnvironment)
	}

	token = strings.TrimSpace(string(out))
	if token == "" {
		return "", fmt.Errorf("%s returned an empty token: %w", ghCLI, asset.ErrMissingEnvironment)
	}

	logger.Debug(ctx, "Using GitHub token from the gh CLI")

	return token, nil
}
