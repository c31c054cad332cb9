package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tetherlab/tether/pkg/host"
)

var fpgaCmd = &cobra.Command{
	Use:   "fpga",
	Short: "Control the FPGA's configuration lifecycle",
}

var fpgaConfigureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Reconfigure the FPGA from its flash",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(func(dev *host.Device) error {
			return dev.TriggerReconfiguration()
		})
	},
}

var fpgaOfflineCmd = &cobra.Command{
	Use:   "offline",
	Short: "Force the FPGA offline",
	Long: `Force the FPGA offline and keep it from configuring itself. Use this
before rewriting a flash image the running bitstream depends on.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(func(dev *host.Device) error {
			return dev.ForceOffline()
		})
	},
}

var fpgaAllowTakeoverCmd = &cobra.Command{
	Use:   "allow-takeover",
	Short: "Permit the FPGA to take over the shared USB port",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(func(dev *host.Device) error {
			return dev.AllowTakeover()
		})
	},
}

func init() {
	rootCmd.AddCommand(fpgaCmd)
	fpgaCmd.AddCommand(fpgaConfigureCmd)
	fpgaCmd.AddCommand(fpgaOfflineCmd)
	fpgaCmd.AddCommand(fpgaAllowTakeoverCmd)
}

// withDevice opens the first debug module, runs fn, and closes it.
func withDevice(fn func(*host.Device) error) error {
	dev, err := host.Open()
	if err != nil {
		return err
	}
	defer dev.Close()
	if err := fn(dev); err != nil {
		return err
	}
	if verbose {
		fmt.Println("ok")
	}
	return nil
}
