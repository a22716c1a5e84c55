package config

import (
	"os"
	"path/filepath"
)

var (
	localConfigNames = []string{".xsys.yml", ".xsys.yaml", ".xsys.json", ".xsys.toml"}

	projectConfigNames = []string{
		filepath.Join(".cargo", "config.toml"),
		filepath.Join(".cargo", "config"),
	}
)

// FindLocalConfig finds the local xsys config file by walking up directories
func FindLocalConfig(dir string) string {
	return findUp(dir, localConfigNames)
}

// FindProjectConfig finds the nearest cargo configuration file by walking up directories
func FindProjectConfig(dir string) string {
	return findUp(dir, projectConfigNames)
}

func findUp(dir string, names []string) string {
	for {
		for _, name := range names {
			path := filepath.Join(dir, name)

			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}

		dir = parent
	}

	return ""
}
