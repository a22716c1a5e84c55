// Package sysroot sequences a sysroot build.
//
// A run moves through the states below strictly in order, without retries:
//
//	Idle → Resolving → Loading → Fingerprinting → CacheLookup ─hit→ Done
//	                                                   │ miss
//	                                                Locking → CacheLookup ─hit→ Done
//	                                                              │ miss
//	                                        Synthesizing → Building → Publishing → Done
//
// Any stage may end the run in Failed. The second lookup happens under the target's
// lock so that concurrent builds of the same target compile it only once.
package sysroot

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/Norgate-AV/xsys/internal/cache"
	"github.com/Norgate-AV/xsys/internal/compiler"
	"github.com/Norgate-AV/xsys/internal/config"
	"github.com/Norgate-AV/xsys/internal/fingerprint"
	"github.com/Norgate-AV/xsys/internal/project"
	"github.com/Norgate-AV/xsys/internal/target"
)

// Cache stores built sysroots
type Cache interface {
	Lookup(target, fp string) (*cache.Entry, bool)
	Lock(ctx context.Context, target string) (func(), error)
	Sweep(target string)
	Publish(ctx context.Context, target, fp string, artifacts map[string]string, info cache.BuildInfo) (*cache.Entry, error)
}

// Driver compiles a synthesized project
type Driver interface {
	Build(ctx context.Context, p *project.Project, cfg *config.BuildConfig) *compiler.BuildResult
}

// Synthesizer writes build projects
type Synthesizer interface {
	Synthesize(cfg *config.BuildConfig, srcDir string) (*project.Project, error)
}

// Toolchain answers questions about the installed compiler
type Toolchain interface {
	Version(ctx context.Context) (string, error)
	SourceDir(ctx context.Context) (string, error)
}

// TargetLoader resolves target names to specifications
type TargetLoader interface {
	Load(name string) (*target.Spec, error)
}

// Request holds the inputs of one run
type Request struct {
	// --target, empty when not given
	CLITarget string

	// --rustflags, nil when not given
	CLIFlags []string

	// RUSTFLAGS, nil when unset
	EnvFlags []string

	// Cargo configuration of the working directory, may be nil
	Project *config.ProjectConfig
}

// Outcome describes a successful run
type Outcome struct {
	// Hit is true when the sysroot was already cached
	Hit bool

	Entry       *cache.Entry
	Config      *config.BuildConfig
	Fingerprint fingerprint.Fingerprint
}

// Orchestrator runs sysroot builds
type Orchestrator struct {
	cache     Cache
	driver    Driver
	synth     Synthesizer
	toolchain Toolchain
	targets   TargetLoader

	// OnTransition is called on every state change
	OnTransition func(from, to State, cfg *config.BuildConfig)

	state State
}

// New creates an orchestrator from its collaborators
func New(c Cache, d Driver, s Synthesizer, tc Toolchain, targets TargetLoader) *Orchestrator {
	return &Orchestrator{
		cache:     c,
		driver:    d,
		synth:     s,
		toolchain: tc,
		targets:   targets,
	}
}

// State returns the state the last run ended in
func (o *Orchestrator) State() State {
	return o.state
}

// run holds the state of a single Run
type run struct {
	*Orchestrator

	ctx context.Context
	log *zerolog.Logger
	cfg *config.BuildConfig
	fp  fingerprint.Fingerprint
}

func (r *run) transition(to State) {
	from := r.state
	r.state = to

	r.log.Debug().Stringer("from", from).Stringer("to", to).Msg("sysroot state")

	if r.OnTransition != nil {
		r.OnTransition(from, to, r.cfg)
	}
}

func (r *run) fail(kind Kind, err error, diagnostic string) error {
	stage := r.state
	r.log.Debug().Stack().Err(err).Stringer("stage", stage).Msg("sysroot run failed")
	r.transition(Failed)

	return &Error{Kind: kind, Stage: stage, Err: err, Diagnostic: diagnostic}
}

func (r *run) done(hit bool, entry *cache.Entry) *Outcome {
	r.transition(Done)

	return &Outcome{Hit: hit, Entry: entry, Config: r.cfg, Fingerprint: r.fp}
}

// Run makes sure a sysroot for the requested target is cached, building it if needed
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Outcome, error) {
	o.state = Idle
	r := &run{Orchestrator: o, ctx: ctx, log: zerolog.Ctx(ctx)}

	r.transition(Resolving)
	res, err := config.Resolve(config.Inputs{
		CLITarget: req.CLITarget,
		CLIFlags:  req.CLIFlags,
		Project:   req.Project,
		EnvFlags:  req.EnvFlags,
	})
	if err != nil {
		return nil, r.fail(ConfigError, err, "")
	}

	r.log.Debug().
		Str("target", res.Target).
		Str("target_source", res.TargetSource).
		Strs("flags", res.Flags).
		Str("flags_source", res.FlagsSource).
		Msg("resolved configuration")

	r.transition(Loading)
	spec, err := o.targets.Load(res.Target)
	if err != nil {
		return nil, r.fail(ConfigError, err, "")
	}

	r.transition(Fingerprinting)
	version, err := o.toolchain.Version(ctx)
	if err != nil {
		return nil, r.fail(BuildFailed, err, "")
	}

	r.cfg = config.NewBuildConfig(spec, res, version)
	r.fp = fingerprint.Compute(r.cfg)

	r.log.Debug().Str("target", spec.Name).Str("fingerprint", r.fp.Short()).Msg("computed fingerprint")

	r.transition(CacheLookup)
	if entry, ok := o.cache.Lookup(spec.Name, r.fp.String()); ok {
		return r.done(true, entry), nil
	}

	r.transition(Locking)
	unlock, err := o.cache.Lock(ctx, spec.Name)
	if err != nil {
		return nil, r.fail(CacheError, err, "")
	}
	defer unlock()

	o.cache.Sweep(spec.Name)

	// Another process may have built it while we waited
	r.transition(CacheLookup)
	if entry, ok := o.cache.Lookup(spec.Name, r.fp.String()); ok {
		return r.done(true, entry), nil
	}

	return r.build()
}

func (r *run) build() (*Outcome, error) {
	r.transition(Synthesizing)
	srcDir, err := r.toolchain.SourceDir(r.ctx)
	if err != nil {
		return nil, r.fail(BuildFailed, err, "")
	}

	p, err := r.synth.Synthesize(r.cfg, srcDir)
	if err != nil {
		return nil, r.fail(BuildFailed, err, "")
	}

	defer func() {
		if err := p.Cleanup(); err != nil {
			r.log.Warn().Err(err).Str("dir", p.Dir).Msg("failed to remove build project")
		}
	}()

	r.transition(Building)
	result := r.driver.Build(r.ctx, p, r.cfg)
	if !result.Success {
		return nil, r.fail(BuildFailed, result.Err, result.Diagnostic)
	}

	r.transition(Publishing)
	entry, err := r.cache.Publish(r.ctx, r.cfg.Target.Name, r.fp.String(), result.Artifacts, cache.BuildInfo{
		ToolchainVersion: r.cfg.ToolchainVersion,
		Flags:            r.cfg.Flags,
		Components:       r.cfg.Components,
	})
	if err != nil {
		return nil, r.fail(CacheError, err, "")
	}

	return r.done(false, entry), nil
}
