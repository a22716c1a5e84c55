package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/xsys/internal/cache"
)

// execute runs the root command with args, returning stdout and stderr
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer

	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)

	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()

	return stdout.String(), stderr.String(), err
}

func publishTestEntry(t *testing.T, root, name string) {
	t.Helper()

	c, err := cache.New(root)
	require.NoError(t, err)

	lib := filepath.Join(t.TempDir(), "libcore-abc.rlib")
	require.NoError(t, os.WriteFile(lib, []byte("core"), 0o644))

	_, err = c.Publish(context.Background(), name, "0123456789abcdef0123456789abcdef", map[string]string{"core": lib}, cache.BuildInfo{
		ToolchainVersion: "v1",
		Flags:            []string{"-C", "opt-level=2"},
		Components:       []string{"core"},
	})
	require.NoError(t, err)
}

func TestCacheCommands(t *testing.T) {
	root := filepath.Join(t.TempDir(), "cache")

	stdout, _, err := execute(t, "cache", "list", "--cache-dir", root)
	require.NoError(t, err)
	assert.Contains(t, stdout, "No cached sysroots")

	publishTestEntry(t, root, "foo")

	stdout, _, err = execute(t, "cache", "list", "--cache-dir", root)
	require.NoError(t, err)
	assert.Contains(t, stdout, "TARGET")
	assert.Contains(t, stdout, "foo")
	assert.Contains(t, stdout, "0123456789ab")
	assert.Contains(t, stdout, "-C opt-level=2")

	stdout, _, err = execute(t, "cache", "stats", "--cache-dir", root)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Sysroots: 1")

	_, stderr, err := execute(t, "cache", "verify", "foo", "--cache-dir", root)
	require.NoError(t, err)
	assert.Contains(t, stderr, "Verified")

	_, stderr, err = execute(t, "cache", "invalidate", "foo", "--cache-dir", root)
	require.NoError(t, err)
	assert.Contains(t, stderr, "Removed")

	stdout, _, err = execute(t, "cache", "history", "foo", "--cache-dir", root)
	require.NoError(t, err)
	assert.Contains(t, stdout, "publish")
	assert.Contains(t, stdout, "invalidate")

	_, _, err = execute(t, "cache", "clear", "--cache-dir", root)
	require.NoError(t, err)

	stdout, _, err = execute(t, "cache", "history", "--cache-dir", root)
	require.NoError(t, err)
	assert.Contains(t, stdout, "No history")
}

func TestCacheInvalidate_RequiresTarget(t *testing.T) {
	_, _, err := execute(t, "cache", "invalidate", "--cache-dir", t.TempDir())
	assert.Error(t, err)
}

func TestRootVersionAndHelp(t *testing.T) {
	stdout, _, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "xsys dev")

	stdout, _, err = execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "commit: none")

	stdout, _, err = execute(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, stdout, "passed\nto cargo unchanged")
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		size     int64
		expected string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1 << 20, "1.0 MiB"},
		{5 << 30, "5.0 GiB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, formatSize(tt.size))
	}
}

func TestRootPassthrough_ExitCode(t *testing.T) {
	t.Setenv("XSYS_CACHE_DIR", t.TempDir())

	t.Setenv("XSYS_CARGO", "true")
	_, _, err := execute(t, "init", "--vcs", "none")
	require.NoError(t, err)

	t.Setenv("XSYS_CARGO", "false")
	_, _, err = execute(t, "init", "--vcs", "none")
	require.Error(t, err)

	var exitErr *exitCodeError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.code)
}

func TestCacheVerify_RejectsPathOutsideCache(t *testing.T) {
	_, _, err := execute(t, "cache", "verify", "../..", "--cache-dir", t.TempDir())
	require.Error(t, err)
	assert.True(t, eris.Is(err, cache.ErrInvalidKey))
}
