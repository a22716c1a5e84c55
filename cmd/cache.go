package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/xsys/internal/cache"
	"github.com/Norgate-AV/xsys/internal/fingerprint"
	"github.com/Norgate-AV/xsys/internal/utils"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the sysroot cache",
}

var cacheListCmd = &cobra.Command{
	Use:          "list",
	Short:        "List cached sysroots",
	Args:         cobra.NoArgs,
	RunE:         runCacheList,
	SilenceUsage: true,
}

var cacheStatsCmd = &cobra.Command{
	Use:          "stats",
	Short:        "Show cache size",
	Args:         cobra.NoArgs,
	RunE:         runCacheStats,
	SilenceUsage: true,
}

var cacheHistoryCmd = &cobra.Command{
	Use:          "history [target]",
	Short:        "Show sysroot builds and invalidations",
	Args:         cobra.MaximumNArgs(1),
	RunE:         runCacheHistory,
	SilenceUsage: true,
}

var cacheInvalidateCmd = &cobra.Command{
	Use:          "invalidate <target>",
	Short:        "Remove the sysroot of a target",
	Args:         cobra.ExactArgs(1),
	RunE:         runCacheInvalidate,
	SilenceUsage: true,
}

var cacheVerifyCmd = &cobra.Command{
	Use:          "verify <target>",
	Short:        "Check the libraries of a sysroot against their recorded hashes",
	Args:         cobra.ExactArgs(1),
	RunE:         runCacheVerify,
	SilenceUsage: true,
}

var cacheClearCmd = &cobra.Command{
	Use:          "clear",
	Short:        "Remove every sysroot and the build history",
	Args:         cobra.NoArgs,
	RunE:         runCacheClear,
	SilenceUsage: true,
}

func init() {
	for _, c := range []*cobra.Command{
		cacheListCmd,
		cacheStatsCmd,
		cacheHistoryCmd,
		cacheInvalidateCmd,
		cacheVerifyCmd,
		cacheClearCmd,
	} {
		addCommonFlags(c)
		cacheCmd.AddCommand(c)
	}
}

// openCache loads the configuration and opens the configured cache
func openCache(cmd *cobra.Command) (*runEnv, *cache.Cache, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, nil, err
	}

	env, err := setup(cmd, dir)
	if err != nil {
		return nil, nil, err
	}

	c, err := cache.New(env.cfg.CacheDir, cache.WithLogger(env.log))
	if err != nil {
		env.stop()
		return nil, nil, err
	}

	return env, c, nil
}

func runCacheList(cmd *cobra.Command, args []string) error {
	env, c, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer env.stop()

	entries, err := c.List()
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No cached sysroots")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TARGET\tFINGERPRINT\tFLAGS\tBUILT")

	for _, e := range entries {
		if e.Fingerprint == "" {
			fmt.Fprintf(w, "%s\t(unreadable)\t\t\n", e.Target)
			continue
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			e.Target,
			fingerprint.Fingerprint(e.Fingerprint).Short(),
			utils.JoinFlags(e.Flags),
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
		)
	}

	return w.Flush()
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	env, c, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer env.stop()

	count, size, err := c.Stats()
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Cache directory: %s\n", c.Root())
	fmt.Fprintf(cmd.OutOrStdout(), "Sysroots: %d\n", count)
	fmt.Fprintf(cmd.OutOrStdout(), "Total size: %s\n", formatSize(size))

	return nil
}

func runCacheHistory(cmd *cobra.Command, args []string) error {
	env, c, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer env.stop()

	var name string
	if len(args) == 1 {
		name = args[0]
	}

	records, err := c.History(name)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No history")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tACTION\tTARGET\tFINGERPRINT\tFLAGS")

	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.Timestamp.Local().Format("2006-01-02 15:04:05"),
			r.Action,
			r.Target,
			fingerprint.Fingerprint(r.Fingerprint).Short(),
			utils.JoinFlags(r.Flags),
		)
	}

	return w.Flush()
}

func runCacheInvalidate(cmd *cobra.Command, args []string) error {
	env, c, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer env.stop()

	name := args[0]

	unlock, err := c.Lock(env.ctx, name)
	if err != nil {
		return err
	}
	defer unlock()

	if err := c.Invalidate(name); err != nil {
		return err
	}

	status(cmd.ErrOrStderr(), "Removed", "sysroot for "+name)

	return nil
}

func runCacheVerify(cmd *cobra.Command, args []string) error {
	env, c, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer env.stop()

	if err := c.Verify(args[0]); err != nil {
		return err
	}

	status(cmd.ErrOrStderr(), "Verified", "sysroot for "+args[0])

	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	env, c, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer env.stop()

	if err := c.Clear(); err != nil {
		return err
	}

	status(cmd.ErrOrStderr(), "Cleared", c.Root())

	return nil
}

// formatSize renders a byte count with a binary unit
func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}

	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}
