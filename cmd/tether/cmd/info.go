package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tetherlab/tether/pkg/host"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Identify the connected debug module",
	Long: `Query the connected module for its identification string, firmware
version, protocol version and ADC reading.

Examples:
  tether info
  tether info -v`,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	dev, err := host.Open()
	if err != nil {
		return err
	}
	defer dev.Close()

	id, err := dev.ID()
	if err != nil {
		return err
	}
	fw, err := dev.FirmwareVersion()
	if err != nil {
		return err
	}
	major, minor, err := dev.USBAPIVersion()
	if err != nil {
		return err
	}

	fmt.Printf("Device:           %s\n", id)
	fmt.Printf("Firmware version: %s\n", fw)
	fmt.Printf("USB API version:  %d.%d\n", major, minor)

	if adc, err := dev.ADCReading(); err == nil {
		fmt.Printf("ADC reading:      %d\n", adc)
	}
	return nil
}
