package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Norgate-AV/xsys/internal/cache"
	"github.com/Norgate-AV/xsys/internal/compiler"
	"github.com/Norgate-AV/xsys/internal/config"
	"github.com/Norgate-AV/xsys/internal/logging"
	"github.com/Norgate-AV/xsys/internal/project"
	"github.com/Norgate-AV/xsys/internal/sysroot"
	"github.com/Norgate-AV/xsys/internal/target"
	"github.com/Norgate-AV/xsys/internal/utils"
)

var buildCmd = &cobra.Command{
	Use:   "build [flags] [-- cargo build args]",
	Short: "Build the sysroot for a target, then the project",
	Long: `Make sure a sysroot with the runtime libraries of the target is cached, compiling
it only when the target specification, the extra compiler flags or the toolchain changed.
The project in the current directory is then built against it with cargo.

The target is taken from --target or build.target in .cargo/config. Extra compiler flags are
taken from --rustflags, the RUSTFLAGS environment variable or build.rustflags, the first one
that is set replacing the others.`,
	RunE:         runBuild,
	SilenceUsage: true,
}

func init() {
	buildCmd.Flags().StringP("target", "t", "", "Target to build the sysroot for")
	buildCmd.Flags().String("rustflags", "", "Extra compiler flags, overriding RUSTFLAGS and build.rustflags")
	buildCmd.Flags().Bool("sysroot-only", false, "Only build the sysroot, not the project")
	addCommonFlags(buildCmd)
}

// addCommonFlags adds the flags every command loading the tool configuration accepts
func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("verbose", "v", false, "Print the toolchain invocation and its output")
	cmd.Flags().String("cache-dir", "", "Sysroot cache directory (default ~/.xsys)")
	cmd.Flags().String("log-level", "", "Log level (trace, debug, info, warn, error)")
}

// runEnv is what every command needs after loading the configuration
type runEnv struct {
	cfg  *config.Config
	log  zerolog.Logger
	ctx  context.Context
	stop context.CancelFunc
}

// setup loads the configuration for dir and returns a cancellable, logging context
func setup(cmd *cobra.Command, dir string) (*runEnv, error) {
	cfg, err := config.NewLoader().LoadForBuild(cmd, dir)
	if err != nil {
		return nil, err
	}

	logger := logging.New(cmd.ErrOrStderr(), cfg.Level())

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}

	ctx, stop := signal.NotifyContext(logger.WithContext(parent), os.Interrupt, syscall.SIGTERM)

	return &runEnv{cfg: cfg, log: logger, ctx: ctx, stop: stop}, nil
}

func runBuild(cmd *cobra.Command, args []string) error {
	dir, err := os.Getwd()
	if err != nil {
		return err
	}

	env, err := setup(cmd, dir)
	if err != nil {
		return err
	}
	defer env.stop()

	req, err := buildRequest(cmd, dir)
	if err != nil {
		return &sysroot.Error{Kind: sysroot.ConfigError, Stage: sysroot.Resolving, Err: err}
	}

	c, err := cache.New(env.cfg.CacheDir, cache.WithLogger(env.log))
	if err != nil {
		return &sysroot.Error{Kind: sysroot.CacheError, Stage: sysroot.CacheLookup, Err: err}
	}

	driver := compiler.NewDriver(env.cfg.Cargo, env.cfg.Verbose)
	toolchain := compiler.NewToolchain(env.cfg.Rustc, env.cfg.RustSrc)

	orch := sysroot.New(c, driver, project.NewSynthesizer(""), toolchain, target.NewLoader(dir))
	orch.OnTransition = func(_, to sysroot.State, bc *config.BuildConfig) {
		if to == sysroot.Synthesizing {
			status(cmd.ErrOrStderr(), "Compiling", "sysroot for "+bc.Target.Name)
		}
	}

	outcome, err := orch.Run(env.ctx, req)
	if err != nil {
		return err
	}

	if outcome.Hit {
		env.log.Debug().Str("fingerprint", outcome.Fingerprint.Short()).Msg("sysroot is up to date")
	} else {
		status(cmd.ErrOrStderr(), "Finished", "sysroot for "+outcome.Config.Target.Name)
	}

	sysrootOnly, _ := cmd.Flags().GetBool("sysroot-only")
	if sysrootOnly {
		return nil
	}

	code, err := driver.Passthrough(env.ctx, userBuildArgs(outcome.Config, args), userBuildEnv(outcome.Config, c.Root()))
	if err != nil {
		return err
	}

	if code != 0 {
		return &exitCodeError{code: code}
	}

	return nil
}

// buildRequest gathers the raw target and flag sources of a build
func buildRequest(cmd *cobra.Command, dir string) (sysroot.Request, error) {
	proj, err := config.LoadProject(dir)
	if err != nil {
		return sysroot.Request{}, err
	}

	req := sysroot.Request{Project: proj}
	req.CLITarget, _ = cmd.Flags().GetString("target")

	if cmd.Flags().Changed("rustflags") {
		flags, _ := cmd.Flags().GetString("rustflags")
		req.CLIFlags = presentFlags(flags)
	}

	if flags, ok := os.LookupEnv(config.FlagsEnvVar); ok {
		req.EnvFlags = presentFlags(flags)
	}

	return req, nil
}

// presentFlags splits a flag string that was set, returning a non-nil slice even when it is empty
func presentFlags(s string) []string {
	flags := utils.SplitFlags(s)
	if flags == nil {
		return []string{}
	}

	return flags
}

// userBuildArgs builds the project for the sysroot's target, passing extra through
func userBuildArgs(bc *config.BuildConfig, extra []string) []string {
	args := []string{"build", "--target", bc.Target.Name}

	return append(args, extra...)
}

// userBuildEnv points the compiler at the cached sysroot for the project build
func userBuildEnv(bc *config.BuildConfig, root string) []string {
	flags := append(append([]string{}, bc.Flags...), "--sysroot", root)

	env := compiler.FlagsEnv(flags)
	if !bc.Target.IsBuiltin() {
		env = append(env, compiler.TargetPathEnvVar+"="+bc.Target.Dir())
	}

	return env
}
