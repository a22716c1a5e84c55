// Package fingerprint derives the cache key of a sysroot build.
//
// The digest covers everything that changes the produced libraries: the target name and the
// exact bytes of its specification file, the extra compiler flags in order, the toolchain
// version and the runtime components. Every field is length prefixed so that no two distinct
// configurations share an encoding (["a b"] and ["a", "b"] hash differently).
package fingerprint

import (
	"encoding/binary"
	"encoding/hex"
	"hash"

	"lukechampine.com/blake3"

	"github.com/Norgate-AV/xsys/internal/config"
)

// scheme is bumped whenever the encoding below changes
const scheme = "xsys-fingerprint-v1"

// Fingerprint is the hex encoded digest of a build configuration
type Fingerprint string

func (f Fingerprint) String() string {
	return string(f)
}

// Short returns an abbreviated form for log output
func (f Fingerprint) Short() string {
	if len(f) > 12 {
		return string(f[:12])
	}

	return string(f)
}

// Compute returns the fingerprint of cfg
func Compute(cfg *config.BuildConfig) Fingerprint {
	h := blake3.New(32, nil)

	writeField(h, []byte(scheme))

	var name string
	var content []byte
	if cfg.Target != nil {
		name = cfg.Target.Name
		content = cfg.Target.Content
	}

	writeField(h, []byte(name))
	writeField(h, content)
	writeList(h, cfg.Flags)
	writeField(h, []byte(cfg.ToolchainVersion))
	writeList(h, cfg.Components)

	return Fingerprint(hex.EncodeToString(h.Sum(nil)))
}

func writeField(h hash.Hash, b []byte) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(b)))
	h.Write(n[:])
	h.Write(b)
}

func writeList(h hash.Hash, items []string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(items)))
	h.Write(n[:])

	for _, item := range items {
		writeField(h, []byte(item))
	}
}
