// Package target loads compilation target specifications.
//
// A target is either one of the toolchain's builtin targets, known only by name, or a custom
// target described by a <name>.json file in the working directory. The file always wins over a
// builtin of the same name. The raw file content is kept alongside the parsed fields because
// the cache fingerprint covers the exact bytes.
package target

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/afero"

	"github.com/Norgate-AV/xsys/internal/utils"
)

var (
	// ErrInvalidSpec is returned for a target specification file that cannot be used
	ErrInvalidSpec = eris.New("invalid target specification")

	// ErrInvalidTargetName is returned for names that cannot be used as a target identifier
	ErrInvalidTargetName = eris.New("invalid target name")
)

// Spec is a resolved target specification
type Spec struct {
	// Name is the target identifier passed to the compiler
	Name string

	// Path is the absolute path of the specification file, empty for builtin targets
	Path string

	// Content holds the raw bytes of the specification file
	Content []byte

	Arch         string
	DataLayout   string
	LLVMTarget   string
	OS           string
	Endian       string
	PointerWidth string
}

// IsBuiltin reports whether the target is left to the toolchain to resolve
func (s *Spec) IsBuiltin() bool {
	return s.Path == ""
}

// Freestanding reports whether the target has no operating system
func (s *Spec) Freestanding() bool {
	return s.OS == "none"
}

// Dir returns the directory holding the specification file
func (s *Spec) Dir() string {
	if s.IsBuiltin() {
		return ""
	}

	return filepath.Dir(s.Path)
}

type specFile struct {
	Arch         *string      `json:"arch"`
	DataLayout   *string      `json:"data-layout"`
	LLVMTarget   *string      `json:"llvm-target"`
	OS           *string      `json:"os"`
	Endian       *string      `json:"target-endian"`
	PointerWidth *stringOrInt `json:"target-pointer-width"`
}

// stringOrInt accepts both "32" and 32; older toolchains used the string form
type stringOrInt string

func (v *stringOrInt) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = stringOrInt(s)
		return nil
	}

	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return eris.Errorf("expected string or integer, got %s", data)
	}

	*v = stringOrInt(strconv.FormatInt(n, 10))

	return nil
}

// Loader resolves target names relative to a working directory
type Loader struct {
	dir string
	fs  afero.Fs
}

// NewLoader creates a loader that looks for specification files in dir
func NewLoader(dir string) *Loader {
	return &Loader{
		dir: dir,
		fs:  afero.NewOsFs(),
	}
}

// WithFs replaces the filesystem the loader reads from
func (l *Loader) WithFs(fs afero.Fs) *Loader {
	l.fs = fs
	return l
}

// Load resolves name to a specification file in the working directory or a builtin target.
// A builtin is not validated here; an unknown one fails later when the compiler runs.
func (l *Loader) Load(name string) (*Spec, error) {
	if !utils.ValidTargetName(name) {
		return nil, eris.Wrapf(ErrInvalidTargetName, "%q", name)
	}

	path := filepath.Join(l.dir, utils.SpecFileName(name))
	content, err := afero.ReadFile(l.fs, path)
	if err != nil {
		if eris.Is(err, os.ErrNotExist) {
			return &Spec{Name: name}, nil
		}

		return nil, eris.Wrapf(err, "failed to read target specification %s", path)
	}

	spec, err := Parse(name, content)
	if err != nil {
		return nil, eris.Wrapf(err, "in %s", path)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to resolve absolute path for %s", path)
	}

	spec.Path = abs

	return spec, nil
}

// Parse validates the content of a specification file
func Parse(name string, content []byte) (*Spec, error) {
	var f specFile

	if err := json.Unmarshal(content, &f); err != nil {
		return nil, eris.Wrapf(ErrInvalidSpec, "malformed JSON: %v", err)
	}

	required := []struct {
		key   string
		value *string
	}{
		{"arch", f.Arch},
		{"data-layout", f.DataLayout},
		{"llvm-target", f.LLVMTarget},
		{"os", f.OS},
		{"target-endian", f.Endian},
	}

	for _, r := range required {
		if r.value == nil {
			return nil, eris.Wrapf(ErrInvalidSpec, "missing required key %q", r.key)
		}
	}

	if f.PointerWidth == nil {
		return nil, eris.Wrapf(ErrInvalidSpec, "missing required key %q", "target-pointer-width")
	}

	return &Spec{
		Name:         name,
		Content:      content,
		Arch:         *f.Arch,
		DataLayout:   *f.DataLayout,
		LLVMTarget:   *f.LLVMTarget,
		OS:           *f.OS,
		Endian:       *f.Endian,
		PointerWidth: string(*f.PointerWidth),
	}, nil
}
