package integration

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	"github.com/adammcdonagh/sensu-asset-builder/internal/build"
	"github.com/adammcdonagh/sensu-asset-builder/internal/domain/asset"
	"github.com/adammcdonagh/sensu-asset-builder/internal/executor"
	"github.com/adammcdonagh/sensu-asset-builder/internal/gateway/github"
	"github.com/adammcdonagh/sensu-asset-builder/internal/manifest"
	"github.com/adammcdonagh/sensu-asset-builder/internal/packager"
	"github.com/adammcdonagh/sensu-asset-builder/internal/platform"
	"github.com/adammcdonagh/sensu-asset-builder/internal/provisioner"
)

const runtimeName = "sensu-python-runtime_0.1_python-3.9.10_vanilla-alpine_linux_x86_64.tar.gz"

// fakeContainerCLI records its arguments one per line and exits with the code in $FAKE_EXIT.
const fakeContainerCLI = `#!/bin/sh
for arg in "$@"; do echo "$arg"; done > "$(dirname "$0")/invocation.txt"
exit "${FAKE_EXIT:-0}"
`

// TestPipeline_EndToEnd runs the pipeline stages against a local release API and a stub container CLI.
func TestPipeline_EndToEnd(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh is not available")
	}

	dir := t.TempDir()
	buildDir := filepath.Join(dir, "build")
	scriptsDir := filepath.Join(dir, "scripts")
	assetsDir := filepath.Join(dir, "assets")
	sourceDir := filepath.Join(dir, "src", "check_alpine")

	writeFile(t, filepath.Join(scriptsDir, build.StructureDir, "share", "wrapper"), "#!/bin/sh\n", 0o755)
	writeFile(t, filepath.Join(sourceDir, "check_alpine.py"), "print('ok')\n", 0o644)

	cli := filepath.Join(dir, "docker")
	writeFile(t, cli, fakeContainerCLI, 0o755)

	srv := startReleaseAPI(t)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resolver := platform.NewResolver(platform.NewHost("x86_64"))
	matrix := resolver.Resolve([]asset.SystemTarget{
		{OS: "linux", PlatformFamily: "alpine", SensuFilters: []string{"entity.system.platform == 'alpine'"}},
		{OS: "linux", PlatformFamily: "alpine", Arch: "aarch64"},
	})
	require.Len(t, matrix.Targets, 1)
	require.Len(t, matrix.Skipped, 1)

	prov := provisioner.New(github.NewClient(srv.URL, "token", "org", "runtimes"), buildDir)
	runner := executor.NewExecRunnerWithOutput(os.Stdout, os.Stderr)
	exe := build.NewExecutor(buildDir, scriptsDir, executor.NewDocker(runner, cli))
	pkg := packager.New(assetsDir)

	target := matrix.Targets[0]

	rt, err := prov.Provision(ctx, "3.9.10", target)
	require.NoError(t, err)

	target = target.WithRuntime(rt)

	root, err := exe.Stage(ctx, "check_alpine", sourceDir)
	require.NoError(t, err)

	require.NoError(t, exe.Run(ctx, build.Request{
		AssetName:    "check_alpine",
		Requirements: []string{"requests"},
		Mode:         build.ModeInstall,
		Target:       target,
	}))

	invocation, err := os.ReadFile(filepath.Join(dir, "invocation.txt"))
	require.NoError(t, err)

	args := strings.Split(strings.TrimSpace(string(invocation)), "\n")
	require.Equal(t, []string{"run", "--rm"}, args[:2])
	require.Contains(t, args, buildDir+":/build")
	require.Contains(t, args, filepath.Join(buildDir, "runtimes", "alpine-x86_64")+":/runtime")
	require.Contains(t, args, "/build/"+runtimeName)

	built, err := pkg.Package(ctx, packager.Request{Root: root, AssetName: "check_alpine", Version: "0.3.0", Target: target})
	require.NoError(t, err)

	m := manifest.Build("check_alpine", "0.3.0", []asset.BuildResult{{Target: built}}, func(path string) string {
		return "https://assets.example.com/" + filepath.Base(path)
	})
	require.Len(t, m.Spec.Builds, 1)
	require.Equal(t, "https://assets.example.com/check_alpine_0.3.0_alpine_linux_amd64.tar.gz", m.Spec.Builds[0].URL)
	require.Equal(t, []string{"entity.system.platform == 'alpine'"}, m.Spec.Builds[0].Filters)

	// A failing container maps to an execution failure.
	t.Setenv("FAKE_EXIT", "3")

	err = exe.Run(ctx, build.Request{AssetName: "check_alpine", Mode: build.ModeCompile, Target: target})
	require.ErrorIs(t, err, asset.ErrExecutionFailure)

	var exitErr *executor.ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 3, exitErr.Code)
}

func startReleaseAPI(t *testing.T) *httptest.Server {
	t.Helper()

	payload := runtimeArchive(t)

	mux := http.NewServeMux()

	var srv *httptest.Server

	mux.HandleFunc("/repos/org/runtimes/releases", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode([]asset.Release{{
			TagName: "0.1",
			Assets:  []asset.ReleaseAsset{{Name: runtimeName, URL: srv.URL + "/assets/1"}},
		}})
	})
	mux.HandleFunc("/assets/1", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "application/octet-stream" {
			http.Error(w, "json", http.StatusNotAcceptable)
			return
		}

		_, _ = w.Write(payload)
	})

	srv = httptest.NewServer(mux)

	return srv
}

func runtimeArchive(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer

	gzw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gzw)

	body := []byte("#!/bin/sh\n")
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "bin/python", Mode: 0o755, Size: int64(len(body)), Typeflag: tar.TypeReg}))

	_, err := tw.Write(body)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gzw.Close())

	return buf.Bytes()
}

func writeFile(t *testing.T, path, contents string, mode os.FileMode) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), mode))
}
