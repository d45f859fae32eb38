package github

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adammcdonagh/sensu-asset-builder/internal/domain/asset"
)

// TestListReleases decodes releases and sends the expected headers.
func TestListReleases(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/org/runtime/releases", r.URL.Path)
		require.Equal(t, "100", r.URL.Query().Get("per_page"))
		require.Equal(t, "token secret", r.Header.Get("Authorization"))
		require.Equal(t, acceptJSON, r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"tag_name": "v1.1", "assets": [
				{"name": "sensu-python-runtime_v1.1_python-3.9.10_vanilla-alpine_linux_x86_64.tar.gz",
				 "url": "http://example/assets/1", "size": 42}
			]},
			{"tag_name": "v1.0", "assets": []}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "secret", "org", "runtime", WithHTTPClient(srv.Client()))

	releases, err := c.ListReleases(context.Background())
	require.NoError(t, err)
	require.Len(t, releases, 2)
	require.Equal(t, "v1.1", releases[0].TagName)
	require.Equal(t, asset.ReleaseAsset{
		Name: "sensu-python-runtime_v1.1_python-3.9.10_vanilla-alpine_linux_x86_64.tar.gz",
		URL:  "http://example/assets/1",
		Size: 42,
	}, releases[0].Assets[0])
}

// TestListReleases_BadStatus surfaces non-200 responses.
func TestListReleases_BadStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "org", "runtime")

	_, err := c.ListReleases(context.Background())
	require.ErrorIs(t, err, errBadHTTPStatus)
}

// TestDownload streams the asset body and asks for binary content.
func TestDownload(t *testing.T) {
	t.Parallel()

	payload := bytes.Repeat([]byte("runtime"), 1024)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, acceptBinary, r.Header.Get("Accept"))
		require.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "org", "runtime")

	var buf bytes.Buffer

	n, err := c.Download(context.Background(), asset.ReleaseAsset{Name: "rt.tar.gz", URL: srv.URL + "/asset"}, &buf)
	require.NoError(t, err)
	require.Equal(t, int64(len(payload)), n)
	require.Equal(t, payload, buf.Bytes())

	_, err = c.Download(context.Background(), asset.ReleaseAsset{Name: "bad", URL: "://bad"}, &buf)
	require.Error(t, err)
}
