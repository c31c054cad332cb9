package cmd

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.bug.st/serial"
)

var (
	consolePort string
	consoleBaud int
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Attach to the module's serial console",
	Long: `Bridge the terminal to the debug module's pass-through serial console.
The console carries diagnostic output from the FPGA design.

Examples:
  tether console --port /dev/ttyACM0
  tether console --port /dev/ttyACM0 --baud 921600`,
	RunE: runConsole,
}

func init() {
	rootCmd.AddCommand(consoleCmd)

	consoleCmd.Flags().StringVarP(&consolePort, "port", "p", "",
		"serial port device")
	consoleCmd.Flags().IntVarP(&consoleBaud, "baud", "b", 115200,
		"baud rate")
	consoleCmd.MarkFlagRequired("port")
}

func runConsole(cmd *cobra.Command, args []string) error {
	mode := &serial.Mode{
		BaudRate: consoleBaud,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
		DataBits: 8,
	}
	port, err := serial.Open(consolePort, mode)
	if err != nil {
		return err
	}
	defer port.Close()

	errc := make(chan error, 2)
	go func() {
		_, err := io.Copy(os.Stdout, port)
		errc <- err
	}()
	go func() {
		_, err := io.Copy(port, os.Stdin)
		errc <- err
	}()
	return <-errc
}
