package cmd

import (
	"flag"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tetherlab/tether/internal/version"
)

var (
	// Global flags
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "tether",
	Short: "Tether - FPGA debug module tools",
	Long: `Tether controls an FPGA debug module over USB:
  - device identification and health
  - JTAG scan-chain operations
  - FPGA configuration and shared-port lifecycle

Examples:
  tether info                         # Identify the connected module
  tether jtag state                   # Read the TAP state
  tether fpga configure               # Reconfigure the FPGA from flash
  tether sim --board profiles/full.yaml  # Run the simulated firmware`,
	Version: version.Version,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	cobra.OnInitialize(func() {
		// glog reads its settings from the flag package.
		flag.Set("logtostderr", "true")
		if verbose {
			flag.Set("v", "2")
		}
		flag.CommandLine.Parse(nil)
	})
}
