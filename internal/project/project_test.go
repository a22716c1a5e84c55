package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/xsys/internal/config"
	"github.com/Norgate-AV/xsys/internal/target"
)

func buildConfig(targetOS string) *config.BuildConfig {
	return &config.BuildConfig{
		Target:     &target.Spec{Name: "thumbv7m-none-eabi", OS: targetOS},
		Flags:      []string{"-C", "opt-level=s"},
		Components: append([]string{}, config.RuntimeComponents...),
	}
}

func TestSynthesize(t *testing.T) {
	srcDir := filepath.Join(t.TempDir(), "rust", "src")
	s := NewSynthesizer(t.TempDir())

	p, err := s.Synthesize(buildConfig("none"), srcDir)
	require.NoError(t, err)
	defer p.Cleanup()

	assert.DirExists(t, p.Dir)
	assert.Equal(t, filepath.Join(p.Dir, ManifestName), p.Manifest)
	assert.Equal(t, filepath.Join(p.Dir, "target"), p.TargetDir())

	lib, err := os.ReadFile(filepath.Join(p.Dir, LibName))
	require.NoError(t, err)
	assert.Equal(t, "#![no_std]\n", string(lib))

	var m manifest
	_, err = toml.DecodeFile(p.Manifest, &m)
	require.NoError(t, err)

	assert.Equal(t, "sysroot", m.Package.Name)
	assert.Equal(t, "0.0.0", m.Package.Version)
	assert.Equal(t, "lib.rs", m.Lib.Path)
	assert.Equal(t, "abort", m.Profile.Release.Panic)
	assert.False(t, m.Profile.Release.LTO)

	require.Len(t, m.Dependencies, len(config.RuntimeComponents))
	for _, component := range config.RuntimeComponents {
		assert.Equal(t, filepath.Join(srcDir, "lib"+component), m.Dependencies[component].Path)
	}
}

func TestSynthesize_HostedTargetKeepsUnwinding(t *testing.T) {
	s := NewSynthesizer(t.TempDir())

	p, err := s.Synthesize(buildConfig("linux"), "/src")
	require.NoError(t, err)
	defer p.Cleanup()

	var raw map[string]any
	_, err = toml.DecodeFile(p.Manifest, &raw)
	require.NoError(t, err)

	release := raw["profile"].(map[string]any)["release"].(map[string]any)
	assert.NotContains(t, release, "panic")
	assert.Equal(t, false, release["lto"])
}

func TestSynthesize_FreshDirectoryEachTime(t *testing.T) {
	s := NewSynthesizer(t.TempDir())

	first, err := s.Synthesize(buildConfig("none"), "/src")
	require.NoError(t, err)

	second, err := s.Synthesize(buildConfig("none"), "/src")
	require.NoError(t, err)

	assert.NotEqual(t, first.Dir, second.Dir)

	require.NoError(t, first.Cleanup())
	assert.NoDirExists(t, first.Dir)
	assert.DirExists(t, second.Dir)
	require.NoError(t, second.Cleanup())
}

func TestSynthesize_Errors(t *testing.T) {
	s := NewSynthesizer(t.TempDir())

	t.Run("nil config", func(t *testing.T) {
		_, err := s.Synthesize(nil, "/src")
		assert.Error(t, err)
	})

	t.Run("no components", func(t *testing.T) {
		cfg := buildConfig("none")
		cfg.Components = nil

		_, err := s.Synthesize(cfg, "/src")
		assert.Error(t, err)
	})

	t.Run("missing temp dir", func(t *testing.T) {
		bad := NewSynthesizer(filepath.Join(t.TempDir(), "does", "not", "exist"))

		_, err := bad.Synthesize(buildConfig("none"), "/src")
		assert.Error(t, err)
	})
}
