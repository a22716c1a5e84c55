// Package compiler runs cargo and rustc.
package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/Norgate-AV/xsys/internal/codes"
	"github.com/Norgate-AV/xsys/internal/config"
	"github.com/Norgate-AV/xsys/internal/project"
)

// ErrBuildFailed is returned when cargo did not produce a complete set of libraries
var ErrBuildFailed = eris.New("sysroot build failed")

// waitDelay bounds how long a cancelled build waits for its output pipes to close
const waitDelay = 2 * time.Second

// Commander interface for testing
type Commander interface {
	Run() error
}

type execFunc func(ctx context.Context, name string, args ...string) Commander

func defaultExec(ctx context.Context, name string, args ...string) Commander {
	return exec.CommandContext(ctx, name, args...)
}

// BuildResult is the outcome of one sysroot build
type BuildResult struct {
	Success bool

	// Artifacts maps each component to the absolute path of its library
	Artifacts map[string]string

	// Diagnostic is everything cargo printed
	Diagnostic string

	ExitCode   int
	Invocation *Invocation

	// Err describes the failure when Success is false
	Err error
}

// Driver builds sysroot projects with cargo
type Driver struct {
	Cargo   string
	Verbose bool

	// Stdout receives the command line and cargo's output in verbose mode
	Stdout io.Writer
	Stderr io.Writer

	execCommand execFunc
}

// NewDriver creates a driver running the given cargo executable
func NewDriver(cargo string, verbose bool) *Driver {
	return &Driver{
		Cargo:       cargo,
		Verbose:     verbose,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		execCommand: defaultExec,
	}
}

// Invocation describes the command that builds p for cfg
func (d *Driver) Invocation(p *project.Project, cfg *config.BuildConfig) *Invocation {
	return &Invocation{
		Program: d.Cargo,
		Args:    BuildCommandArgs(p.Manifest, cfg, d.Verbose),
		Env:     BuildEnv(cfg, p.TargetDir()),
		Dir:     p.Dir,
		Flags:   append([]string{}, cfg.Flags...),
	}
}

// Build compiles every runtime component of cfg in project p. It never retries.
func (d *Driver) Build(ctx context.Context, p *project.Project, cfg *config.BuildConfig) *BuildResult {
	log := zerolog.Ctx(ctx)
	inv := d.Invocation(p, cfg)

	result := &BuildResult{Invocation: inv, ExitCode: -1}

	if d.Verbose {
		fmt.Fprintf(d.Stdout, "Running `%s`\n", inv)
	}

	log.Debug().Str("command", inv.String()).Str("dir", inv.Dir).Msg("invoking cargo")

	var output bytes.Buffer
	stdout, stderr := io.Writer(&output), io.Writer(&output)
	if d.Verbose {
		var mu sync.Mutex
		stdout = &lockedWriter{mu: &mu, w: io.MultiWriter(&output, d.Stdout)}
		stderr = &lockedWriter{mu: &mu, w: io.MultiWriter(&output, d.Stderr)}
	}

	c := d.execCommand(ctx, inv.Program, inv.Args...)
	if cmd, ok := c.(*exec.Cmd); ok {
		cmd.Dir = inv.Dir
		cmd.Env = MergeEnv(cmd.Environ(), inv.Env)
		cmd.Stdout = stdout
		cmd.Stderr = stderr
		isolate(cmd)
	}

	err := c.Run()
	result.Diagnostic = output.String()

	if err != nil {
		result.ExitCode = exitCode(err)
		result.Err = buildError(ctx, err, result.ExitCode)

		return result
	}

	result.ExitCode = 0

	artifacts, err := collectArtifacts(filepath.Join(p.TargetDir(), cfg.Target.Name, "release", "deps"), cfg.Components)
	if err != nil {
		result.Err = eris.Wrapf(ErrBuildFailed, "%v", err)
		return result
	}

	result.Success = true
	result.Artifacts = artifacts

	return result
}

// Passthrough runs cargo with args and the terminal attached, returning its exit code
func (d *Driver) Passthrough(ctx context.Context, args []string, env []string) (int, error) {
	zerolog.Ctx(ctx).Debug().Strs("args", args).Msg("passing command to cargo")

	c := d.execCommand(ctx, d.Cargo, args...)
	if cmd, ok := c.(*exec.Cmd); ok {
		cmd.Env = MergeEnv(cmd.Environ(), env)
		cmd.Stdin = os.Stdin
		cmd.Stdout = d.Stdout
		cmd.Stderr = d.Stderr
	}

	err := c.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}

	return exitCode(err), eris.Wrapf(err, "failed to run %s", d.Cargo)
}

// lockedWriter serializes writes from cargo's stdout and stderr into shared buffers
type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (lw *lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	return lw.w.Write(p)
}

// exitCode maps a command error to a process exit code
func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}

	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return 127
	}

	if errors.Is(err, os.ErrPermission) {
		return 126
	}

	return -1
}

func buildError(ctx context.Context, err error, code int) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return eris.Wrapf(ErrBuildFailed, "cancelled: %v", ctxErr)
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return eris.Wrapf(ErrBuildFailed, "failed to start cargo: %v (%s)", err, codes.GetErrorMessage(code))
	}

	return eris.Wrapf(ErrBuildFailed, "cargo exited with code %d (%s)", code, codes.GetErrorMessage(code))
}

// collectArtifacts finds the newest lib<component>-*.rlib in depsDir for every component
func collectArtifacts(depsDir string, components []string) (map[string]string, error) {
	artifacts := make(map[string]string, len(components))

	var missing []string
	for _, component := range components {
		matches, err := filepath.Glob(filepath.Join(depsDir, "lib"+component+"-*.rlib"))
		if err != nil {
			return nil, err
		}

		var newest string
		var newestInfo os.FileInfo
		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil || info.IsDir() {
				continue
			}

			if newestInfo == nil || info.ModTime().After(newestInfo.ModTime()) {
				newest, newestInfo = match, info
			}
		}

		if newest == "" {
			missing = append(missing, component)
			continue
		}

		artifacts[component] = newest
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("no library produced for %s", strings.Join(missing, ", "))
	}

	return artifacts, nil
}
