package compiler

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Toolchain queries the installed compiler
type Toolchain struct {
	Rustc string

	// RustSrc overrides the location of the standard library sources
	RustSrc string

	execCommand execFunc
}

// NewToolchain creates a toolchain using the given rustc executable
func NewToolchain(rustc, rustSrc string) *Toolchain {
	return &Toolchain{
		Rustc:       rustc,
		RustSrc:     rustSrc,
		execCommand: defaultExec,
	}
}

// Version returns the verbose version string of the compiler
func (t *Toolchain) Version(ctx context.Context) (string, error) {
	out, err := t.output(ctx, "-vV")
	if err != nil {
		return "", eris.Wrap(err, "failed to query compiler version")
	}

	if out == "" {
		return "", eris.Errorf("%s -vV printed nothing", t.Rustc)
	}

	return out, nil
}

// SourceDir returns the directory holding lib<component> source directories
func (t *Toolchain) SourceDir(ctx context.Context) (string, error) {
	if t.RustSrc != "" {
		return t.RustSrc, nil
	}

	sysroot, err := t.output(ctx, "--print", "sysroot")
	if err != nil {
		return "", eris.Wrap(err, "failed to query compiler sysroot")
	}

	if sysroot == "" {
		return "", eris.Errorf("%s --print sysroot printed nothing", t.Rustc)
	}

	return filepath.Join(sysroot, "lib", "rustlib", "src", "rust", "src"), nil
}

func (t *Toolchain) output(ctx context.Context, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer

	c := t.execCommand(ctx, t.Rustc, args...)
	if cmd, ok := c.(*exec.Cmd); ok {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}

	if err := c.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", eris.Wrapf(err, "%s %s: %s", t.Rustc, strings.Join(args, " "), msg)
		}

		return "", eris.Wrapf(err, "%s %s", t.Rustc, strings.Join(args, " "))
	}

	return strings.TrimSpace(stdout.String()), nil
}
