package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Loader handles configuration loading from various sources
type Loader struct {
	v *viper.Viper

	// directory holding the global config, normally <user config dir>/xsys
	globalDir string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	l := &Loader{v: viper.New()}

	if dir, err := os.UserConfigDir(); err == nil {
		l.globalDir = filepath.Join(dir, "xsys")
	}

	return l
}

// LoadForBuild loads configuration for an invocation running in dir.
// Later sources win: defaults, global file, local file, environment, flags.
func (l *Loader) LoadForBuild(cmd *cobra.Command, dir string) (*Config, error) {
	l.setupViperDefaults()
	l.loadGlobalConfig()
	l.loadLocalConfig(dir)
	l.bindEnv()
	l.bindCommandFlags(cmd)

	return Load(l.v)
}

// setupViperDefaults sets up default values for viper
func (l *Loader) setupViperDefaults() {
	l.v.SetDefault("cargo", DefaultCargo)
	l.v.SetDefault("rustc", DefaultRustc)
	l.v.SetDefault("log_level", DefaultLogLevel)
	l.v.SetDefault("verbose", DefaultVerbose)
}

// loadGlobalConfig loads the user-wide configuration
func (l *Loader) loadGlobalConfig() {
	if l.globalDir == "" {
		return
	}

	for _, ext := range []string{"yml", "yaml", "json", "toml"} {
		globalPath := filepath.Join(l.globalDir, "config."+ext)

		if _, err := os.Stat(globalPath); err == nil {
			l.v.SetConfigFile(globalPath)

			if err := l.v.MergeInConfig(); err == nil {
				break
			}
		}
	}
}

// loadLocalConfig merges the nearest .xsys.* file above dir
func (l *Loader) loadLocalConfig(dir string) {
	if dir == "" {
		return
	}

	localPath := FindLocalConfig(dir)
	if localPath != "" {
		l.v.SetConfigFile(localPath)
		_ = l.v.MergeInConfig()
	}
}

// bindEnv maps XSYS_CACHE_DIR and friends onto their keys
func (l *Loader) bindEnv() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	l.v.AutomaticEnv()
}

// bindCommandFlags binds command flags to viper
func (l *Loader) bindCommandFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	for key, flag := range map[string]string{
		"verbose":   "verbose",
		"cache_dir": "cache-dir",
		"log_level": "log-level",
	} {
		if f := cmd.Flags().Lookup(flag); f != nil {
			_ = l.v.BindPFlag(key, f)
		}
	}
}
