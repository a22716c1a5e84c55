package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Norgate-AV/xsys/internal/config"
	"github.com/Norgate-AV/xsys/internal/target"
)

const customJSON = `{"arch": "arm", "data-layout": "e-m:e-p:32:32-i64:64-v128:64:128-a:0:32-n32-S64",
 "llvm-target": "thumbv7m-none-eabi", "os": "none", "target-endian": "little", "target-pointer-width": "32"}`

func baseConfig() *config.BuildConfig {
	return &config.BuildConfig{
		Target:           &target.Spec{Name: "foo", Path: "/work/foo.json", Content: []byte(customJSON)},
		Flags:            []string{},
		ToolchainVersion: "v1",
		Components:       append([]string{}, config.RuntimeComponents...),
	}
}

func TestCompute_Deterministic(t *testing.T) {
	a := Compute(baseConfig())
	b := Compute(baseConfig())

	assert.Equal(t, a, b)
	assert.Len(t, a.String(), 64)
	assert.Equal(t, a.String()[:12], a.Short())
}

func TestCompute_KnownValueIsStable(t *testing.T) {
	// Computed twice from independently built values so the result can't depend on
	// pointer identity, map order or the spec path.
	first := baseConfig()
	second := baseConfig()
	second.Target.Path = "/somewhere/else/foo.json"

	assert.Equal(t, Compute(first), Compute(second))
}

func TestCompute_DistinguishesEveryField(t *testing.T) {
	base := Compute(baseConfig())

	tests := []struct {
		name   string
		mutate func(c *config.BuildConfig)
	}{
		{"target name", func(c *config.BuildConfig) { c.Target.Name = "bar" }},
		{"spec content byte", func(c *config.BuildConfig) { c.Target.Content = append([]byte(customJSON), ' ') }},
		{"builtin target", func(c *config.BuildConfig) { c.Target.Content = nil; c.Target.Path = "" }},
		{"flags added", func(c *config.BuildConfig) { c.Flags = []string{"--cfg", "xargo"} }},
		{"toolchain version", func(c *config.BuildConfig) { c.ToolchainVersion = "v2" }},
		{"component removed", func(c *config.BuildConfig) { c.Components = c.Components[1:] }},
		{"component renamed", func(c *config.BuildConfig) { c.Components[4] = "std_unicode" }},
	}

	seen := map[Fingerprint]string{base: "base"}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mutate(cfg)

			fp := Compute(cfg)
			assert.NotEqual(t, base, fp)

			prev, dup := seen[fp]
			assert.False(t, dup, "collides with %s", prev)
			seen[fp] = tt.name
		})
	}
}

func TestCompute_FlagOrderMatters(t *testing.T) {
	a := baseConfig()
	a.Flags = []string{"-C", "opt-level=s", "-g"}

	b := baseConfig()
	b.Flags = []string{"-g", "-C", "opt-level=s"}

	assert.NotEqual(t, Compute(a), Compute(b))
}

func TestCompute_FieldBoundaries(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
	}{
		{"joined vs split", []string{"--cfg xargo"}, []string{"--cfg", "xargo"}},
		{"empty entry", []string{"", "-g"}, []string{"-g"}},
		{"shifted boundary", []string{"ab", "c"}, []string{"a", "bc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := baseConfig()
			a.Flags = tt.a

			b := baseConfig()
			b.Flags = tt.b

			assert.NotEqual(t, Compute(a), Compute(b))
		})
	}
}

func TestCompute_NilAndEmptyFlagsAgree(t *testing.T) {
	a := baseConfig()
	a.Flags = nil

	b := baseConfig()
	b.Flags = []string{}

	assert.Equal(t, Compute(a), Compute(b))
}

func TestCompute_ToolchainVersionIsNotMixedWithFlags(t *testing.T) {
	a := baseConfig()
	a.Flags = []string{"v1"}
	a.ToolchainVersion = ""

	b := baseConfig()
	b.Flags = []string{}
	b.ToolchainVersion = "v1"

	assert.NotEqual(t, Compute(a), Compute(b))
}
