package cache

import "time"

// Entry is the record of a published sysroot, stored as fingerprint.json next to its libraries
type Entry struct {
	// Target is the name of the target the sysroot was built for
	Target string `json:"target"`

	// Fingerprint of the build configuration that produced the artifacts
	Fingerprint string `json:"fingerprint"`

	// ToolchainVersion is the compiler version string the sysroot was built with
	ToolchainVersion string `json:"toolchain_version"`

	// Flags are the extra compiler flags used for the build
	Flags []string `json:"flags"`

	// Components lists the runtime components the sysroot holds
	Components []string `json:"components"`

	// Artifacts maps each component to its library file
	Artifacts map[string]Artifact `json:"artifacts"`

	// BuildID uniquely identifies the publish that created this entry
	BuildID string `json:"build_id"`

	// Timestamp when this entry was created
	Timestamp time.Time `json:"timestamp"`

	// Dir is the directory holding the entry; not persisted
	Dir string `json:"-"`
}

// Artifact describes one library file of an entry
type Artifact struct {
	// File name relative to the entry's lib directory
	File string `json:"file"`

	Size int64 `json:"size"`

	// Hash is the hex encoded BLAKE3 digest of the file
	Hash string `json:"hash"`
}

// BuildInfo is the metadata recorded alongside the artifacts of a publish
type BuildInfo struct {
	ToolchainVersion string
	Flags            []string
	Components       []string
}

// Record is one line of the build ledger
type Record struct {
	Action           string    `json:"action"`
	Target           string    `json:"target"`
	Fingerprint      string    `json:"fingerprint,omitempty"`
	BuildID          string    `json:"build_id,omitempty"`
	ToolchainVersion string    `json:"toolchain_version,omitempty"`
	Flags            []string  `json:"flags,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// Ledger actions
const (
	ActionPublish    = "publish"
	ActionInvalidate = "invalidate"
)
