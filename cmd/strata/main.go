package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	root, a := newRootCommand()
	err := root.Execute()
	if stopErr := a.stop(); err == nil {
		err = stopErr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() (*cobra.Command, *app) {
	a := newApp()

	root := &cobra.Command{
		Use:   "strata",
		Short: "Strata - row-wise reader and writer for columnar datasets",
		Long: `Strata reads a logical dataset spread over several columnar files one row at a time,
evaluates selections and formulas over its columns, and writes derived columns back.

Every flag can also be set from the environment with the STRATA_ prefix, for example
STRATA_LOG_LEVEL=debug or STRATA_PRINT_EVERY=50000.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.start(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringP("config", "c", "", "Path to a YAML run configuration")
	pf.StringP("dataset", "d", "", "Dataset name stored in the input files")
	pf.String("log-level", "", "Log level (debug, info, warn, error)")
	pf.String("log-encoding", "", "Log encoding (console or json)")
	pf.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	pf.String("cache-dir", "", "Directory receiving downloaded s3:// and gs:// inputs")
	pf.StringSlice("alias", nil, "Column alias as new=old; repeatable")
	pf.StringP("selection", "s", "", "Only process rows where this formula holds")
	pf.Int64("print-every", 0, "Rows between progress lines")
	pf.Int64("limit", 0, "Maximum rows visited; negative visits all")
	pf.Int64("start-at", 0, "First row visited")
	pf.BoolP("quiet", "q", false, "Suppress progress lines")
	pf.Bool("eager", false, "Decode every column on each row")
	pf.Bool("mmap", false, "Memory-map local input files")
	pf.Bool("no-remaining", false, "Leave the time remaining estimate out of progress lines")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Strata v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})
	root.AddCommand(
		newColumnsCommand(a),
		newCountCommand(a),
		newMinMaxCommand(a),
		newScanCommand(a),
		newApplyCommand(a),
	)
	return root, a
}
