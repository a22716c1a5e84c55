package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpecFileName(t *testing.T) {
	assert.Equal(t, "thumbv7m-none-eabi.json", SpecFileName("thumbv7m-none-eabi"))
	assert.Equal(t, "__simple.json", SpecFileName("__simple"))
}

func TestValidTargetName(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"thumbv7m-none-eabi", true},
		{"x86_64-unknown-linux-gnu", true},
		{"__simple", true},
		{"", false},
		{".", false},
		{"..", false},
		{".staging", false},
		{"../etc", false},
		{"foo/bar", false},
		{`foo\bar`, false},
		{"C:foo", false},
	}

	for _, test := range tests {
		result := ValidTargetName(test.input)
		assert.Equal(t, test.expected, result, "ValidTargetName(%q)", test.input)
	}
}

func TestSplitFlags(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"--cfg xargo", []string{"--cfg", "xargo"}},
		{"  -C   opt-level=s\t-g\n", []string{"-C", "opt-level=s", "-g"}},
		{"", []string{}},
		{"   ", []string{}},
	}

	for _, test := range tests {
		result := SplitFlags(test.input)
		assert.Equal(t, test.expected, result, "SplitFlags(%q)", test.input)
	}
}

func TestJoinFlags(t *testing.T) {
	assert.Equal(t, "--cfg xargo", JoinFlags([]string{"--cfg", "xargo"}))
	assert.Equal(t, "", JoinFlags(nil))
	assert.Equal(t, []string{"-C", "panic=abort"}, SplitFlags(JoinFlags([]string{"-C", "panic=abort"})))
}
