package utils

import (
	"strings"
)

// SpecFileName returns the name of the file a custom target specification is read from
func SpecFileName(target string) string {
	return target + ".json"
}

// ValidTargetName reports whether target can name both a compiler target and a directory
// under the cache root
func ValidTargetName(target string) bool {
	if target == "" || target == "." || target == ".." {
		return false
	}

	if strings.HasPrefix(target, ".") {
		return false
	}

	return !strings.ContainsAny(target, `/\:`)
}

// SplitFlags splits a flag string on whitespace, the same way cargo splits RUSTFLAGS
func SplitFlags(s string) []string {
	return strings.Fields(s)
}

// JoinFlags is the inverse of SplitFlags for flags that contain no whitespace
func JoinFlags(flags []string) string {
	return strings.Join(flags, " ")
}
