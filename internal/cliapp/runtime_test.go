package cliapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcmappings/internal/data/mappingdb"
	"mcmappings/internal/engine/naming"
)

// seedConfig writes a store holding the 1.12.2 player/world fixture and a
// config file pointing at it.
func seedConfig(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "mappings.sqlite")

	s, err := mappingdb.Open(ctx, dbPath, mappingdb.Options{})
	require.NoError(t, err)
	b, err := s.BeginVersion(ctx, "1.12.2")
	require.NoError(t, err)
	classA, err := b.InsertClass(ctx, "a")
	require.NoError(t, err)
	fieldAB, err := b.InsertField(ctx, classA, "b")
	require.NoError(t, err)
	require.NoError(t, b.RecordClassRename(ctx, naming.Spigot, classA, "EntityPlayer"))
	require.NoError(t, b.RecordFieldRename(ctx, naming.Spigot, fieldAB, "world"))
	require.NoError(t, b.Commit())

	rel, err := s.RegisterMappingRelease(ctx, b.Version().ID, 20180925, true)
	require.NoError(t, err)
	rb, err := s.BeginRelease(ctx, rel)
	require.NoError(t, err)
	require.NoError(t, rb.RecordFieldRename(ctx, fieldAB, "world"))
	require.NoError(t, rb.Commit())
	require.NoError(t, s.Close())

	cfgPath := filepath.Join(dir, "mappings.toml")
	content := "[db]\npath = \"mappings.sqlite\"\n\n[resolver]\ncache_size = 32\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o600))
	return cfgPath
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunVersionFlag(t *testing.T) {
	code, out, _ := runCLI(t, "-version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "mappings v"+versionString)
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	code, _, errOut := runCLI(t, "frobnicate")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, `unknown command "frobnicate"`)

	code, _, errOut = runCLI(t)
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "usage: mappings")
}

func TestRunResolve(t *testing.T) {
	cfg := seedConfig(t)

	code, out, errOut := runCLI(t, "-config", cfg, "resolve", "-version", "1.12.2", "-systems", "spigot", "a", "b")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "EntityPlayer")
	assert.Contains(t, out, "world")
	assert.NotContains(t, out, "srg")

	code, out, errOut = runCLI(t, "-config", cfg, "resolve", "-version", "1.12.2", "-from", "spigot", "EntityPlayer")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "spigot")
	assert.Contains(t, out, "mcp")

	code, out, errOut = runCLI(t, "-config", cfg, "resolve", "-version", "1.12.2", "-from", "mcp",
		"-mcp", "snapshot_20180925", "a", "world")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "EntityPlayer")

	code, out, _ = runCLI(t, "-config", cfg, "resolve", "-version", "1.12.2", "zz")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "no class named")
}

func TestRunResolveErrors(t *testing.T) {
	cfg := seedConfig(t)

	code, _, errOut := runCLI(t, "-config", cfg, "resolve", "a")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "needs -version")

	code, _, errOut = runCLI(t, "-config", cfg, "resolve", "-version", "1.7.10", "a")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "UNKNOWN_VERSION")

	code, _, errOut = runCLI(t, "-config", cfg, "resolve", "-version", "1.12.2", "-mcp", "stable_39", "a")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "UNKNOWN_RELEASE")

	code, _, errOut = runCLI(t, "-config", cfg, "resolve", "-version", "1.12.2", "-from", "yarn", "a")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "VALIDATION_ERROR")
}

func TestRunVersionsAndDelete(t *testing.T) {
	cfg := seedConfig(t)

	code, out, errOut := runCLI(t, "-config", cfg, "versions")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "1.12.2")

	code, out, errOut = runCLI(t, "-config", cfg, "versions", "1.12.2")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "classes 1")
	assert.Contains(t, out, "fields 1")
	assert.Contains(t, out, "snapshot_20180925")

	code, out, errOut = runCLI(t, "-config", cfg, "delete-version", "1.12.2")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "deleted 1.12.2")

	code, out, _ = runCLI(t, "-config", cfg, "versions")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "no software versions registered")

	code, _, errOut = runCLI(t, "-config", cfg, "delete-version", "1.12.2")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "UNKNOWN_VERSION")
}

func TestRunSearch(t *testing.T) {
	cfg := seedConfig(t)

	code, out, errOut := runCLI(t, "-config", cfg, "search", "-version", "1.12.2", "-system", "spigot", "Entity*")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "EntityPlayer")

	code, out, errOut = runCLI(t, "-config", cfg, "search", "-version", "1.12.2", "Nothing*")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "no matching classes")
}

func TestRunExport(t *testing.T) {
	cfg := seedConfig(t)

	code, out, errOut := runCLI(t, "-config", cfg, "export", "-version", "1.12.2", "obf2spigot")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "CL: a EntityPlayer\nFD: a/b EntityPlayer/world\n", out)

	file := filepath.Join(t.TempDir(), "obf2mcp.srg")
	code, out, errOut = runCLI(t, "-config", cfg, "export", "-version", "1.12.2", "-mcp", "snapshot_20180925", "-o", file, "obf2mcp-members")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "0 classes, 1 fields, 0 methods")
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "FD: a/b a/world\n", string(data))

	code, _, errOut = runCLI(t, "-config", cfg, "export", "-version", "1.12.2", "obf2obf")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "VALIDATION_ERROR")
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestObservabilityHealth(t *testing.T) {
	up := httptest.NewServer(NewObservabilityServer("", fakePinger{}).handler())
	defer up.Close()

	resp, err := http.Get(up.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var status HealthStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "up", status.Status)
	assert.Equal(t, "ok", status.Components["store"])

	down := httptest.NewServer(NewObservabilityServer("", fakePinger{err: errors.New("disk gone")}).handler())
	defer down.Close()
	resp2, err := http.Get(down.URL + "/health")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp2.StatusCode)

	metrics, err := http.Get(up.URL + "/metrics")
	require.NoError(t, err)
	defer metrics.Body.Close()
	assert.Equal(t, http.StatusOK, metrics.StatusCode)
}

func TestObservabilityHealthIsRateLimited(t *testing.T) {
	srv := httptest.NewServer(NewObservabilityServer("", fakePinger{}).handler())
	defer srv.Close()

	limited := false
	for i := 0; i < 50 && !limited; i++ {
		resp, err := http.Get(srv.URL + "/health")
		require.NoError(t, err)
		_ = resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
			assert.NotEmpty(t, resp.Header.Get("Retry-After"))
		}
	}
	assert.True(t, limited, "expected the burst to run out")
}

func TestObservabilityServerStartStop(t *testing.T) {
	s := NewObservabilityServer("127.0.0.1:0", fakePinger{})
	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()

	resp, err := http.Get("http://" + s.Addr() + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(s.Addr(), "127.0.0.1:"))
}
