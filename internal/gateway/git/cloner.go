package git

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/adammcdonagh/sensu-asset-builder/internal/logger"
)

// tokenUser is the user name GitHub expects alongside a token password.
const tokenUser = "x-access-token"

var errRepoRequired = errors.New("repository is required")

// Cloner materialises a repository identified by "owner/name" into dest.
type Cloner interface {
	Clone(ctx context.Context, repo, dest string) error
}

// GoGitCloner clones over HTTPS with go-git.
type GoGitCloner struct {
	// baseURL is the clone host, e.g. https://github.com.
	baseURL string
	// token authenticates private repositories when set.
	token string
}

// NewCloner creates a cloner for repositories hosted at baseURL.
func NewCloner(baseURL, token string) *GoGitCloner {
	return &GoGitCloner{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

// Clone implements Cloner by checking out the default branch.
func (c *GoGitCloner) Clone(ctx context.Context, repo, dest string) error {
	if strings.TrimSpace(repo) == "" {
		return errRepoRequired
	}

	opts := c.cloneOptions(repo)

	logger.InfoKV(ctx, "Cloning repository", "repo", repo, "dest", dest)

	if _, err := gogit.PlainCloneContext(ctx, dest, false, opts); err != nil {
		return fmt.Errorf("clone %s: %w", repo, err)
	}

	return nil
}

func (c *GoGitCloner) cloneOptions(repo string) *gogit.CloneOptions {
	opts := &gogit.CloneOptions{
		URL:          c.URL(repo),
		SingleBranch: true,
	}

	if c.token != "" {
		opts.Auth = &githttp.BasicAuth{Username: tokenUser, Password: c.token}
	}

	return opts
}

// URL returns the clone URL of repo.
func (c *GoGitCloner) URL(repo string) string {
	return c.baseURL + "/" + strings.Trim(repo, "/") + ".git"
}

// RepoDir is the workspace directory a repository is cloned into.
func RepoDir(workspaceDir, repo string) string {
	return filepath.Join(workspaceDir, path.Base(repo))
}
