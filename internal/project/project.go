// Package project writes the throwaway cargo project that builds a sysroot's runtime components
package project

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/rotisserie/eris"

	"github.com/Norgate-AV/xsys/internal/config"
)

const (
	// ManifestName is the file name of the generated manifest
	ManifestName = "Cargo.toml"

	// LibName is the file name of the generated crate root
	LibName = "lib.rs"

	packageName    = "sysroot"
	packageVersion = "0.0.0"
	libSource      = "#![no_std]\n"
)

// Project is a synthesized build project on disk
type Project struct {
	// Dir is the project root
	Dir string

	// Manifest is the absolute path of Cargo.toml
	Manifest string
}

// TargetDir returns the directory cargo writes build output to
func (p *Project) TargetDir() string {
	return filepath.Join(p.Dir, "target")
}

// Cleanup removes the project directory
func (p *Project) Cleanup() error {
	return os.RemoveAll(p.Dir)
}

type manifest struct {
	Package      packageSection        `toml:"package"`
	Lib          libSection            `toml:"lib"`
	Dependencies map[string]dependency `toml:"dependencies"`
	Profile      profiles              `toml:"profile"`
}

type packageSection struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

type libSection struct {
	Path string `toml:"path"`
}

type dependency struct {
	Path string `toml:"path"`
}

type profiles struct {
	Release profile `toml:"release"`
}

type profile struct {
	LTO   bool   `toml:"lto"`
	Panic string `toml:"panic,omitempty"`
}

// Synthesizer creates build projects
type Synthesizer struct {
	// TempDir is the parent of every project directory; os.TempDir() when empty
	TempDir string
}

// NewSynthesizer creates a synthesizer writing projects under tempDir
func NewSynthesizer(tempDir string) *Synthesizer {
	return &Synthesizer{TempDir: tempDir}
}

// Synthesize writes a new project depending on every runtime component of cfg,
// found as lib<component> directories under srcDir
func (s *Synthesizer) Synthesize(cfg *config.BuildConfig, srcDir string) (*Project, error) {
	if cfg == nil || cfg.Target == nil {
		return nil, eris.New("no build configuration")
	}

	if len(cfg.Components) == 0 {
		return nil, eris.New("no runtime components to build")
	}

	dir, err := os.MkdirTemp(s.TempDir, "xsys-"+cfg.Target.Name+"-")
	if err != nil {
		return nil, eris.Wrap(err, "failed to create project directory")
	}

	p := &Project{
		Dir:      dir,
		Manifest: filepath.Join(dir, ManifestName),
	}

	if err := p.write(newManifest(cfg, srcDir)); err != nil {
		p.Cleanup()
		return nil, err
	}

	return p, nil
}

func (p *Project) write(m manifest) error {
	f, err := os.Create(p.Manifest)
	if err != nil {
		return eris.Wrapf(err, "failed to create %s", ManifestName)
	}

	if err := toml.NewEncoder(f).Encode(m); err != nil {
		f.Close()
		return eris.Wrapf(err, "failed to encode %s", ManifestName)
	}

	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "failed to write %s", ManifestName)
	}

	if err := os.WriteFile(filepath.Join(p.Dir, LibName), []byte(libSource), 0o644); err != nil {
		return eris.Wrapf(err, "failed to write %s", LibName)
	}

	return nil
}

// newManifest describes the Cargo.toml of a project building cfg's components from srcDir
func newManifest(cfg *config.BuildConfig, srcDir string) manifest {
	deps := make(map[string]dependency, len(cfg.Components))
	for _, component := range cfg.Components {
		deps[component] = dependency{Path: filepath.Join(srcDir, "lib"+component)}
	}

	m := manifest{
		Package:      packageSection{Name: packageName, Version: packageVersion},
		Lib:          libSection{Path: LibName},
		Dependencies: deps,
	}

	if cfg.Target.Freestanding() {
		m.Profile.Release.Panic = "abort"
	}

	return m
}
