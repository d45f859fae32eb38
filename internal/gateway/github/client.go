package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/adammcdonagh/sensu-asset-builder/internal/domain/asset"
	"github.com/adammcdonagh/sensu-asset-builder/internal/version"
)

const (
	acceptJSON   = "application/vnd.github.v3+json"
	acceptBinary = "application/octet-stream"

	// releasesPerPage is the page size of the single releases request.
	releasesPerPage = 100
)

// errBadHTTPStatus is returned for any non-200 response.
var errBadHTTPStatus = errors.New("unexpected http status")

// Client talks to the releases API of one repository.
type Client struct {
	// httpClient performs the requests; it has no timeout by default.
	httpClient *http.Client
	// baseURL is the API root, e.g. https://api.github.com.
	baseURL string
	// token is sent as "Authorization: token <token>" when set.
	token string
	// owner and repo identify the runtime repository.
	owner string
	repo  string
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates a client for owner/repo at baseURL.
func NewClient(baseURL, token, owner, repo string, opts ...Option) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		owner:      owner,
		repo:       repo,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ListReleases returns the first page of releases, newest first.
func (c *Client) ListReleases(ctx context.Context) ([]asset.Release, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases?per_page=%d", c.baseURL, c.owner, c.repo, releasesPerPage)

	resp, err := c.get(ctx, url, acceptJSON)
	if err != nil {
		return nil, fmt.Errorf("list releases of %s/%s: %w", c.owner, c.repo, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	var releases []asset.Release
	if err = json.NewDecoder(resp.Body).Decode(&releases); err != nil {
		return nil, fmt.Errorf("decode releases of %s/%s: %w", c.owner, c.repo, err)
	}

	return releases, nil
}

// Download streams the raw content of a release asset into w.
func (c *Client) Download(ctx context.Context, ra asset.ReleaseAsset, w io.Writer) (int64, error) {
	resp, err := c.get(ctx, ra.URL, acceptBinary)
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", ra.Name, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	written, err := io.Copy(w, resp.Body)
	if err != nil {
		return written, fmt.Errorf("download %s: %w", ra.Name, err)
	}

	return written, nil
}

// get issues an authenticated GET and checks the status. The caller closes the body.
func (c *Client) get(ctx context.Context, url, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", version.UserAgent())

	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%s: %s: %w", url, resp.Status, errBadHTTPStatus)
	}

	return resp, nil
}
