package cli

import (
	"fmt"
	"os"

	"OnTimeDelay/src/config"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	configFile     = "config.json"
	dataConfigFile = "dataconfig.json"
)

// options 全局命令行参数, 非空时覆盖配置文件
type options struct {
	configDir string
	periods   []string
	airport   int
	snapshot  string
}

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "ontime",
		Short:         "Departure delay analysis over monthly on-time performance archives",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configDir, "config-dir", "./config", "Directory holding config.json and dataconfig.json")
	pf.StringSliceVar(&opts.periods, "periods", nil, "Period tokens to download, in order (e.g. 1,2,3)")
	pf.IntVar(&opts.airport, "airport", 0, "Origin airport id for the statistics, 0 for all airports")
	pf.StringVar(&opts.snapshot, "snapshot", "", "Feather snapshot path")

	rootCmd.AddCommand(
		newRunCmd(opts),
		newStatsCmd(opts),
		newQueryCmd(opts),
		newScheduleCmd(opts),
		newWatchCmd(opts),
	)
	return rootCmd
}

// applyOverrides 只覆盖命令行显式给出的参数
func applyOverrides(cfg *config.Config, flags *pflag.FlagSet, opts *options) {
	if flags.Changed("periods") {
		cfg.Download.Periods = opts.periods
	}
	if flags.Changed("airport") {
		cfg.Report.AirportID = opts.airport
	}
	if flags.Changed("snapshot") {
		cfg.Snapshot.Path = opts.snapshot
	}
}
