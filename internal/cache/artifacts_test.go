package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageArtifacts(t *testing.T) {
	fs := afero.NewOsFs()
	artifacts := buildArtifacts(t, "bytes")
	dest := filepath.Join(t.TempDir(), "stage", "lib")

	staged, err := StageArtifacts(context.Background(), fs, dest, artifacts)
	require.NoError(t, err)
	require.Len(t, staged, len(artifacts))

	for component, src := range artifacts {
		artifact := staged[component]
		assert.Equal(t, filepath.Base(src), artifact.File)

		data, err := os.ReadFile(filepath.Join(dest, artifact.File))
		require.NoError(t, err)
		assert.Equal(t, "bytes "+component, string(data))
		assert.Equal(t, int64(len(data)), artifact.Size)

		srcHash, err := HashFile(fs, src)
		require.NoError(t, err)
		assert.Equal(t, srcHash, artifact.Hash)
	}
}

func TestStageArtifacts_DuplicateFileName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "libcore-1.rlib")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	other := filepath.Join(dir, "sub", "libcore-1.rlib")
	require.NoError(t, os.MkdirAll(filepath.Dir(other), 0o755))
	require.NoError(t, os.WriteFile(other, []byte("y"), 0o644))

	_, err := StageArtifacts(context.Background(), afero.NewOsFs(), t.TempDir(), map[string]string{
		"core":  path,
		"alloc": other,
	})
	assert.Error(t, err)
}

func TestHashFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/a", []byte("same"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/b", []byte("same"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/c", []byte("different"), 0o644))

	a, err := HashFile(fs, "/a")
	require.NoError(t, err)
	assert.Len(t, a, 64)

	b, err := HashFile(fs, "/b")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := HashFile(fs, "/c")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	_, err = HashFile(fs, "/missing")
	assert.Error(t, err)
}
