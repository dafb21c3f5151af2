// Command estbench drives estalloc.Pool through the scenarios, stress runs,
// and baseline comparisons a complete TLSF implementation needs an external
// test/benchmark harness for, keeping randomness, process I/O, and
// comparison baselines out of the core allocator package.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	verbose bool
	quiet   bool
	jsonOut bool
)

var rootCmd = &cobra.Command{
	Use:   "estbench",
	Short: "Exercise and benchmark the estalloc TLSF pool",
	Long: `estbench runs the end-to-end scenarios, mixed-operation stress
tests, and baseline allocator comparisons used to validate estalloc.Pool
without requiring the core package to know anything about benchmarking,
randomness, or process I/O.`,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress and pass/fail summary lines; errors are still printed")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Has no effect; output is always plain text")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

func printVerbose(format string, args ...interface{}) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format, args...)
}
