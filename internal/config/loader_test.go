package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoader(globalDir string) *Loader {
	l := NewLoader()
	l.globalDir = globalDir

	return l
}

func newBuildCommand() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().BoolP("verbose", "v", false, "Verbose output")
	cmd.Flags().String("cache-dir", "", "Cache directory")
	cmd.Flags().String("log-level", "", "Log level")

	return cmd
}

func TestNewLoader(t *testing.T) {
	loader := NewLoader()
	assert.NotNil(t, loader)
	assert.NotNil(t, loader.v)
}

func TestLoader_SetupViperDefaults(t *testing.T) {
	loader := newTestLoader("")
	loader.setupViperDefaults()

	v := loader.v
	assert.Equal(t, "cargo", v.GetString("cargo"))
	assert.Equal(t, "rustc", v.GetString("rustc"))
	assert.Equal(t, "info", v.GetString("log_level"))
	assert.Equal(t, false, v.GetBool("verbose"))
}

func TestLoader_LoadGlobalConfig(t *testing.T) {
	globalDir := t.TempDir()

	t.Run("loads yaml config", func(t *testing.T) {
		configPath := filepath.Join(globalDir, "config.yml")
		configContent := `cargo: "/opt/cargo"
cache_dir: "/var/cache/xsys"
verbose: true`
		err := os.WriteFile(configPath, []byte(configContent), 0o644)
		require.NoError(t, err)
		defer os.Remove(configPath)

		loader := newTestLoader(globalDir)
		loader.loadGlobalConfig()

		v := loader.v
		assert.Equal(t, "/opt/cargo", v.GetString("cargo"))
		assert.Equal(t, "/var/cache/xsys", v.GetString("cache_dir"))
		assert.Equal(t, true, v.GetBool("verbose"))
	})

	t.Run("loads toml config", func(t *testing.T) {
		configPath := filepath.Join(globalDir, "config.toml")
		configContent := "rustc = \"/opt/rustc\"\nrust_src = \"/opt/src\"\n"
		err := os.WriteFile(configPath, []byte(configContent), 0o644)
		require.NoError(t, err)
		defer os.Remove(configPath)

		loader := newTestLoader(globalDir)
		loader.loadGlobalConfig()

		assert.Equal(t, "/opt/rustc", loader.v.GetString("rustc"))
		assert.Equal(t, "/opt/src", loader.v.GetString("rust_src"))
	})

	t.Run("handles missing global dir gracefully", func(t *testing.T) {
		loader := newTestLoader("")

		assert.NotPanics(t, func() {
			loader.loadGlobalConfig()
		})
	})
}

func TestLoader_LoadLocalConfig(t *testing.T) {
	t.Run("walks up directory tree to find config", func(t *testing.T) {
		tempDir := t.TempDir()
		subDir := filepath.Join(tempDir, "subdir", "nested")
		err := os.MkdirAll(subDir, 0o755)
		require.NoError(t, err)

		configPath := filepath.Join(tempDir, ".xsys.yml")
		err = os.WriteFile(configPath, []byte(`rust_src: "/local/src"`), 0o644)
		require.NoError(t, err)

		loader := newTestLoader("")
		loader.loadLocalConfig(subDir)

		assert.Equal(t, "/local/src", loader.v.GetString("rust_src"))
	})

	t.Run("handles empty dir", func(t *testing.T) {
		loader := newTestLoader("")

		assert.NotPanics(t, func() {
			loader.loadLocalConfig("")
		})
	})
}

func TestLoader_BindCommandFlags(t *testing.T) {
	cmd := newBuildCommand()
	require.NoError(t, cmd.Flags().Set("verbose", "true"))
	require.NoError(t, cmd.Flags().Set("cache-dir", "/flag/cache"))
	require.NoError(t, cmd.Flags().Set("log-level", "debug"))

	loader := newTestLoader("")
	loader.bindCommandFlags(cmd)

	v := loader.v
	assert.Equal(t, true, v.GetBool("verbose"))
	assert.Equal(t, "/flag/cache", v.GetString("cache_dir"))
	assert.Equal(t, "debug", v.GetString("log_level"))
}

func TestLoader_BindCommandFlags_MissingFlags(t *testing.T) {
	loader := newTestLoader("")

	assert.NotPanics(t, func() {
		loader.bindCommandFlags(&cobra.Command{})
		loader.bindCommandFlags(nil)
	})
}

func TestLoader_LoadForBuild_Integration(t *testing.T) {
	t.Run("hierarchical config loading - flags override env override local override global", func(t *testing.T) {
		globalDir := t.TempDir()
		globalContent := `cargo: "/global/cargo"
rustc: "/global/rustc"
cache_dir: "/global/cache"
log_level: "error"`
		err := os.WriteFile(filepath.Join(globalDir, "config.yml"), []byte(globalContent), 0o644)
		require.NoError(t, err)

		localDir := t.TempDir()
		localContent := `rustc: "/local/rustc"
cache_dir: "/local/cache"
log_level: "warn"`
		err = os.WriteFile(filepath.Join(localDir, ".xsys.yml"), []byte(localContent), 0o644)
		require.NoError(t, err)

		t.Setenv("XSYS_LOG_LEVEL", "debug")

		cmd := newBuildCommand()
		require.NoError(t, cmd.Flags().Set("cache-dir", "/flag/cache"))

		loader := newTestLoader(globalDir)
		cfg, err := loader.LoadForBuild(cmd, localDir)
		require.NoError(t, err)

		// Global value survives where nothing overrides it
		assert.Equal(t, "/global/cargo", cfg.Cargo)
		// Local config overrides global
		assert.Equal(t, "/local/rustc", cfg.Rustc)
		// Environment overrides files
		assert.Equal(t, "debug", cfg.LogLevel)
		// Flag value wins
		abs, _ := filepath.Abs("/flag/cache")
		assert.Equal(t, abs, cfg.CacheDir)
	})
}
