package compiler

import (
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/Norgate-AV/xsys/internal/config"
	"github.com/Norgate-AV/xsys/internal/utils"
)

// Environment variables set on every sysroot build
const (
	EncodedFlagsEnvVar = "CARGO_ENCODED_RUSTFLAGS"
	TargetPathEnvVar   = "RUST_TARGET_PATH"
	TargetDirEnvVar    = "CARGO_TARGET_DIR"
)

// flagSeparator separates the entries of CARGO_ENCODED_RUSTFLAGS
const flagSeparator = "\x1f"

// Invocation is a fully described toolchain command
type Invocation struct {
	Program string
	Args    []string

	// Env holds the variables set on top of the inherited environment, as KEY=value
	Env []string

	// Dir is the working directory, the current one when empty
	Dir string

	// Flags are the extra compiler flags, passed one argument per entry
	Flags []string
}

// String renders the invocation the way it could be typed into a shell
func (inv *Invocation) String() string {
	var b strings.Builder

	b.WriteString(config.FlagsEnvVar)
	b.WriteString("=")
	b.WriteString(shellquote.Join(utils.JoinFlags(inv.Flags)))
	b.WriteString(" ")
	b.WriteString(shellquote.Join(append([]string{inv.Program}, inv.Args...)...))

	return b.String()
}

// BuildCommandArgs builds the cargo arguments compiling a sysroot project for cfg's target
func BuildCommandArgs(manifest string, cfg *config.BuildConfig, verbose bool) []string {
	cmdArgs := []string{
		"build",
		"--release",
		"--manifest-path", manifest,
		"--target", cfg.Target.Name,
	}

	if verbose {
		cmdArgs = append(cmdArgs, "--verbose")
	}

	return cmdArgs
}

// BuildEnv returns the variables a sysroot build of cfg needs, writing output to targetDir
func BuildEnv(cfg *config.BuildConfig, targetDir string) []string {
	env := append(FlagsEnv(cfg.Flags), TargetDirEnvVar+"="+targetDir)

	// Lets the compiler find <name>.json for custom targets
	if !cfg.Target.IsBuiltin() {
		env = append(env, TargetPathEnvVar+"="+cfg.Target.Dir())
	}

	return env
}

// FlagsEnv passes flags to cargo unsplit. Cargo prefers the encoded variable, so any inherited
// value of either variable is replaced.
func FlagsEnv(flags []string) []string {
	return []string{
		EncodedFlagsEnvVar + "=" + strings.Join(flags, flagSeparator),
		config.FlagsEnvVar + "=",
	}
}

// MergeEnv returns base with every variable in overrides replaced or appended
func MergeEnv(base, overrides []string) []string {
	keys := make(map[string]bool, len(overrides))
	for _, kv := range overrides {
		key, _, _ := strings.Cut(kv, "=")
		keys[key] = true
	}

	merged := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if !keys[key] {
			merged = append(merged, kv)
		}
	}

	return append(merged, overrides...)
}
