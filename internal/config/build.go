package config

import (
	"github.com/rotisserie/eris"

	"github.com/Norgate-AV/xsys/internal/target"
)

var (
	// ErrNoTarget is returned when neither the command line nor the project names a target
	ErrNoTarget = eris.New("no target specified")

	// ErrMalformedConfig is returned for a project configuration file that cannot be used
	ErrMalformedConfig = eris.New("malformed project configuration")
)

// RuntimeComponents lists the libraries that make up a sysroot, in build order
var RuntimeComponents = []string{
	"alloc",
	"collections",
	"core",
	"rand",
	"rustc_unicode",
}

// BuildConfig is the resolved configuration of one sysroot build.
// It is created once per invocation and not modified afterwards.
type BuildConfig struct {
	Target *target.Spec

	// Extra compiler flags, in the order they are passed
	Flags []string

	// Name of the source the flags were taken from
	FlagsSource string

	// Identifying version string of the compiler
	ToolchainVersion string

	Components []string
}

// NewBuildConfig assembles a BuildConfig from the resolved inputs
func NewBuildConfig(spec *target.Spec, res Resolution, toolchainVersion string) *BuildConfig {
	return &BuildConfig{
		Target:           spec,
		Flags:            append([]string{}, res.Flags...),
		FlagsSource:      res.FlagsSource,
		ToolchainVersion: toolchainVersion,
		Components:       append([]string{}, RuntimeComponents...),
	}
}
