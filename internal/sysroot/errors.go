package sysroot

import "fmt"

// Kind classifies why a run failed
type Kind int

const (
	// ConfigError means the target or flags could not be resolved or loaded
	ConfigError Kind = iota

	// CacheError means the cache could not be locked or written
	CacheError

	// BuildFailed means the toolchain did not produce a sysroot
	BuildFailed
)

func (k Kind) String() string {
	switch k {
	case ConfigError:
		return "configuration error"
	case CacheError:
		return "cache error"
	case BuildFailed:
		return "build failed"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is returned by Run for every failure
type Error struct {
	Kind Kind

	// Stage is the state the run failed in
	Stage State

	Err error

	// Diagnostic holds the compiler output for build failures
	Diagnostic string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
