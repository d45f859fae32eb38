package provisioner

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	"github.com/adammcdonagh/sensu-asset-builder/internal/domain/asset"
)

const runtimeFile = "sensu-python-runtime_0.1.0_python-3.9.10_vanilla-rhel7_linux_x86_64.tar.gz"

type fakeIndex struct {
	releases  []asset.Release
	payload   []byte
	listCalls int
	downloads int
	err       error
	// downloadErr fails Download only.
	downloadErr error
}

func (f *fakeIndex) ListReleases(context.Context) ([]asset.Release, error) {
	f.listCalls++
	return f.releases, f.err
}

func (f *fakeIndex) Download(_ context.Context, _ asset.ReleaseAsset, w io.Writer) (int64, error) {
	f.downloads++
	if f.downloadErr != nil {
		_, _ = w.Write(f.payload[:len(f.payload)/2])
		return 0, f.downloadErr
	}

	n, err := w.Write(f.payload)

	return int64(n), err
}

type tarEntry struct {
	name     string
	body     string
	linkname string
	typ      byte
}

func buildTarGz(t *testing.T, entries []tarEntry) []byte {
	t.Helper()

	var buf bytes.Buffer

	gzw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gzw)

	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Typeflag: e.typ, Mode: 0o755, Linkname: e.linkname}
		if e.typ == tar.TypeReg {
			hdr.Size = int64(len(e.body))
		}

		require.NoError(t, tw.WriteHeader(hdr))

		if e.typ == tar.TypeReg {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}

	require.NoError(t, tw.Close())
	require.NoError(t, gzw.Close())

	return buf.Bytes()
}

func runtimeArchive(t *testing.T) []byte {
	t.Helper()

	return buildTarGz(t, []tarEntry{
		{name: "bin/python3", body: "#!python", typ: tar.TypeReg},
		{name: "bin/python", linkname: "python3", typ: tar.TypeSymlink},
		{name: "lib/", typ: tar.TypeDir},
	})
}

func rhel7Target() asset.Target {
	return asset.Target{
		System:          asset.SystemTarget{OS: "linux", PlatformFamily: "rhel", PlatformVersion: "7"},
		Arch:            asset.ArchAMD64,
		PlatformAlias:   "rhel7",
		RuntimePlatform: "rhel7",
		Image:           "centos:7",
	}
}

func newIndex(t *testing.T) *fakeIndex {
	t.Helper()

	return &fakeIndex{
		releases: []asset.Release{
			{TagName: "0.1.0", Assets: []asset.ReleaseAsset{
				{Name: "sensu-python-runtime_0.1.0_python-3.9.10_vanilla-alpine_linux_x86_64.tar.gz", URL: "u1"},
				{Name: runtimeFile, URL: "u2"},
			}},
			{TagName: "0.0.9", Assets: []asset.ReleaseAsset{
				{Name: "sensu-python-runtime_0.0.9_python-3.9.10_vanilla-rhel7_linux_x86_64.tar.gz", URL: "u3"},
			}},
		},
		payload: runtimeArchive(t),
	}
}

// TestProvision_DownloadsAndExtracts covers the first provisioning of a runtime.
func TestProvision_DownloadsAndExtracts(t *testing.T) {
	t.Parallel()

	cache := t.TempDir()
	index := newIndex(t)

	rt, err := New(index, cache).Provision(context.Background(), "3.9.10", rhel7Target())
	require.NoError(t, err)

	require.Equal(t, runtimeFile, rt.FileName)
	require.Equal(t, "x86_64", rt.Arch)
	require.Equal(t, filepath.Join(cache, runtimeFile), rt.ArchivePath)
	require.Equal(t, filepath.Join(cache, "runtimes", "rhel7-x86_64"), rt.Dir)

	link, err := os.Readlink(filepath.Join(rt.Dir, "bin", "python"))
	require.NoError(t, err)
	require.Equal(t, "python3", link)

	entries, err := os.ReadDir(cache)
	require.NoError(t, err)

	for _, e := range entries {
		require.NotContains(t, e.Name(), ".part")
	}
}

// TestProvision_Idempotent reuses the cached archive and the release list.
func TestProvision_Idempotent(t *testing.T) {
	t.Parallel()

	cache := t.TempDir()
	index := newIndex(t)
	p := New(index, cache)

	first, err := p.Provision(context.Background(), "3.9.10", rhel7Target())
	require.NoError(t, err)

	second, err := p.Provision(context.Background(), "3.9.10", rhel7Target())
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, 1, index.downloads)
	require.Equal(t, 1, index.listCalls)

	// A fresh provisioner over the same cache lists again but does not download.
	_, err = New(index, cache).Provision(context.Background(), "3.9.10", rhel7Target())
	require.NoError(t, err)
	require.Equal(t, 1, index.downloads)
}

// TestProvision_NotFound reports a missing runtime.
func TestProvision_NotFound(t *testing.T) {
	t.Parallel()

	target := rhel7Target()
	target.Arch = asset.ArchAARCH64

	_, err := New(newIndex(t), t.TempDir()).Provision(context.Background(), "3.9.10", target)
	require.ErrorIs(t, err, asset.ErrRuntimeNotFound)

	_, err = New(newIndex(t), t.TempDir()).Provision(context.Background(), "3.11.0", rhel7Target())
	require.ErrorIs(t, err, asset.ErrRuntimeNotFound)
}

// TestProvision_DownloadFailureLeavesNoCache keeps partial downloads out of the cache.
func TestProvision_DownloadFailureLeavesNoCache(t *testing.T) {
	t.Parallel()

	cache := t.TempDir()
	index := newIndex(t)
	index.downloadErr = errors.New("connection reset")

	_, err := New(index, cache).Provision(context.Background(), "3.9.10", rhel7Target())
	require.Error(t, err)

	entries, err := os.ReadDir(cache)
	require.NoError(t, err)
	require.Empty(t, entries)
}

// TestExtractTarGz_RejectsTraversal refuses entries outside the destination.
func TestExtractTarGz_RejectsTraversal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.tar.gz")
	require.NoError(t, os.WriteFile(archive, buildTarGz(t, []tarEntry{
		{name: "../escape", body: "x", typ: tar.TypeReg},
	}), 0o600))

	err := extractTarGz(context.Background(), archive, filepath.Join(dir, "out"), maxEntrySize)
	require.ErrorIs(t, err, errUnsafePath)

	_, statErr := os.Stat(filepath.Join(dir, "escape"))
	require.True(t, os.IsNotExist(statErr))
}

// TestExtractTarGz_HardLinks links entries to files extracted earlier and
// refuses link targets outside the destination.
func TestExtractTarGz_HardLinks(t *testing.T) {
	t.Parallel()

	t.Run("inside", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		archive := filepath.Join(dir, "runtime.tar.gz")
		require.NoError(t, os.WriteFile(archive, buildTarGz(t, []tarEntry{
			{name: "bin/python3.9", linkname: "bin/python3", typ: tar.TypeLink},
			{name: "bin/python3", body: "#!python", typ: tar.TypeReg},
		}), 0o600))

		out := filepath.Join(dir, "out")
		require.NoError(t, extractTarGz(context.Background(), archive, out, maxEntrySize))

		data, err := os.ReadFile(filepath.Join(out, "bin", "python3.9"))
		require.NoError(t, err)
		require.Equal(t, "#!python", string(data))

		original, err := os.Stat(filepath.Join(out, "bin", "python3"))
		require.NoError(t, err)

		linked, err := os.Lstat(filepath.Join(out, "bin", "python3.9"))
		require.NoError(t, err)
		require.True(t, os.SameFile(original, linked))
	})

	t.Run("escaping", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		secret := filepath.Join(dir, "secret")
		require.NoError(t, os.WriteFile(secret, []byte("s"), 0o600))

		archive := filepath.Join(dir, "evil.tar.gz")
		require.NoError(t, os.WriteFile(archive, buildTarGz(t, []tarEntry{
			{name: "bin/secret", linkname: "../secret", typ: tar.TypeLink},
		}), 0o600))

		out := filepath.Join(dir, "out")
		err := extractTarGz(context.Background(), archive, out, maxEntrySize)
		require.ErrorIs(t, err, errUnsafePath)
		require.NoFileExists(t, filepath.Join(out, "bin", "secret"))
	})
}

// TestExtractTarGz_RejectsOversizedEntry fails instead of truncating large files.
func TestExtractTarGz_RejectsOversizedEntry(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	archive := filepath.Join(dir, "big.tar.gz")
	require.NoError(t, os.WriteFile(archive, buildTarGz(t, []tarEntry{
		{name: "lib/small.so", body: "tiny", typ: tar.TypeReg},
		{name: "lib/big.so", body: strings.Repeat("x", 2048), typ: tar.TypeReg},
	}), 0o600))

	out := filepath.Join(dir, "out")
	err := extractTarGz(context.Background(), archive, out, 1024)
	require.ErrorIs(t, err, errEntryTooLarge)
	require.FileExists(t, filepath.Join(out, "lib", "small.so"))
	require.NoFileExists(t, filepath.Join(out, "lib", "big.so"))
}
