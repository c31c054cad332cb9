package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tetherlab/tether/pkg/host"
	"github.com/tetherlab/tether/pkg/tap"
)

var (
	scanBits    int
	scanAdvance bool
)

var jtagCmd = &cobra.Command{
	Use:   "jtag",
	Short: "Drive the module's JTAG scan chain",
}

var jtagStateCmd = &cobra.Command{
	Use:   "state",
	Short: "Read the current TAP state",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(func(dev *host.Device) error {
			state, err := dev.JTAGState()
			if err != nil {
				return err
			}
			fmt.Printf("TAP state: %s\n", state)
			return nil
		})
	},
}

var jtagResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the TAP and park it in Run-Test/Idle",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(func(dev *host.Device) error {
			if err := dev.JTAGStart(); err != nil {
				return err
			}
			defer dev.JTAGStop()
			if err := dev.JTAGGoToState(tap.StateTestLogicReset); err != nil {
				return err
			}
			return dev.JTAGGoToState(tap.StateRunTestIdle)
		})
	},
}

var jtagScanCmd = &cobra.Command{
	Use:   "scan <hex-data>",
	Short: "Shift data through the scan chain",
	Long: `Shift the given hex bytes through the scan chain from the current TAP
state and print what comes back on TDO.

Examples:
  tether jtag scan --bits 32 aabbccdd
  tether jtag scan --bits 8 --advance c6`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := hex.DecodeString(args[0])
		if err != nil {
			return fmt.Errorf("bad scan data: %w", err)
		}
		if scanBits == 0 {
			scanBits = 8 * len(data)
		}
		return withDevice(func(dev *host.Device) error {
			if err := dev.JTAGStart(); err != nil {
				return err
			}
			defer dev.JTAGStop()
			in, err := dev.JTAGScan(data, scanBits, scanAdvance)
			if err != nil {
				return err
			}
			fmt.Printf("%x\n", in)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(jtagCmd)
	jtagCmd.AddCommand(jtagStateCmd)
	jtagCmd.AddCommand(jtagResetCmd)
	jtagCmd.AddCommand(jtagScanCmd)

	jtagScanCmd.Flags().IntVarP(&scanBits, "bits", "b", 0,
		"number of bits to shift (default 8 * data length)")
	jtagScanCmd.Flags().BoolVar(&scanAdvance, "advance", false,
		"advance the TAP state on the final bit")
}
