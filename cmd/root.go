package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/xsys/internal/codes"
	"github.com/Norgate-AV/xsys/internal/compiler"
	"github.com/Norgate-AV/xsys/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "xsys",
	Short: "Sysroot manager for custom targets",
	Long: `Builds and caches a sysroot with the runtime libraries of a custom compilation target,
then builds your project against it. Commands other than the ones listed below are passed
to cargo unchanged.`,
	RunE:               runPassthrough,
	SilenceUsage:       true,
	SilenceErrors:      true,
	DisableFlagParsing: true,
	Args:               cobra.ArbitraryArgs,
}

// exitCodeError ends the process with the exit code of a command that already reported its failure
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}

	var exitErr *exitCodeError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.code)
	}

	printError(os.Stderr, err)
	os.Exit(1)
}

func init() {
	rootCmd.Version = fmt.Sprintf("%s (%s) %s", version.Version, version.Commit, version.BuildTime)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(versionCmd)
}

// runPassthrough hands any command xsys does not implement to cargo
func runPassthrough(cmd *cobra.Command, args []string) error {
	if len(args) == 0 || isHelpArg(args[0]) {
		return cmd.Help()
	}

	if isVersionArg(args[0]) {
		fmt.Fprintf(cmd.OutOrStdout(), "xsys %s\n", cmd.Version)
		return nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return err
	}

	env, err := setup(cmd, dir)
	if err != nil {
		return err
	}
	defer env.stop()

	driver := compiler.NewDriver(env.cfg.Cargo, env.cfg.Verbose)

	code, err := driver.Passthrough(env.ctx, args, nil)
	if err != nil {
		return err
	}

	if !codes.IsSuccess(code) {
		return &exitCodeError{code: code}
	}

	return nil
}

func isHelpArg(arg string) bool {
	return arg == "-h" || arg == "--help"
}

func isVersionArg(arg string) bool {
	return arg == "-V" || arg == "--version"
}
