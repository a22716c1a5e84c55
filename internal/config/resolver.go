package config

import (
	"github.com/rotisserie/eris"
)

// Source names reported in a Resolution
const (
	SourceCLI     = "cli"
	SourceEnv     = "env"
	SourceProject = "project"
	SourceNone    = "none"
)

// Inputs are the raw values ConfigResolver chooses from
type Inputs struct {
	// --target, empty when not given
	CLITarget string

	// --rustflags, nil when not given
	CLIFlags []string

	// cargo configuration, may be nil
	Project *ProjectConfig

	// RUSTFLAGS split on whitespace, nil when the variable is unset
	EnvFlags []string
}

// Resolution is the outcome of Resolve
type Resolution struct {
	Target       string
	TargetSource string

	Flags       []string
	FlagsSource string
}

// source is one named place a field can come from
type source[T any] struct {
	name  string
	value func() (T, bool)
}

// firstOf returns the value of the first source that has one
func firstOf[T any](sources ...source[T]) (T, string, bool) {
	for _, s := range sources {
		if v, ok := s.value(); ok {
			return v, s.name, true
		}
	}

	var zero T

	return zero, SourceNone, false
}

func targetSources(in Inputs) []source[string] {
	return []source[string]{
		{SourceCLI, func() (string, bool) { return in.CLITarget, in.CLITarget != "" }},
		{SourceProject, func() (string, bool) {
			if in.Project == nil {
				return "", false
			}

			return in.Project.Target, in.Project.HasTarget && in.Project.Target != ""
		}},
	}
}

// flagSources are ordered so that the first present source replaces every later one
func flagSources(in Inputs) []source[[]string] {
	return []source[[]string]{
		{SourceCLI, func() ([]string, bool) { return in.CLIFlags, in.CLIFlags != nil }},
		{SourceEnv, func() ([]string, bool) { return in.EnvFlags, in.EnvFlags != nil }},
		{SourceProject, func() ([]string, bool) {
			if in.Project == nil {
				return nil, false
			}

			return in.Project.Flags, in.Project.HasFlags
		}},
	}
}

// Resolve picks the target and the extra compiler flags for one invocation
func Resolve(in Inputs) (Resolution, error) {
	target, targetSource, ok := firstOf(targetSources(in)...)
	if !ok {
		return Resolution{}, eris.Wrap(ErrNoTarget, "pass --target or set build.target in .cargo/config")
	}

	flags, flagsSource, _ := firstOf(flagSources(in)...)

	return Resolution{
		Target:       target,
		TargetSource: targetSource,
		Flags:        append([]string{}, flags...),
		FlagsSource:  flagsSource,
	}, nil
}
