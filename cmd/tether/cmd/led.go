package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tetherlab/tether/pkg/board"
	"github.com/tetherlab/tether/pkg/host"
)

var namedPatterns = map[string]board.Pattern{
	"idle":   board.PatternIdle,
	"jtag":   board.PatternJTAGConnected,
	"upload": board.PatternJTAGUploading,
	"flash":  board.PatternFlashConnected,
}

var ledCmd = &cobra.Command{
	Use:   "led <pattern>",
	Short: "Set the module's LED blink pattern",
	Long: `Set the LED blink pattern by name (idle, jtag, upload, flash) or as a
raw half-period in milliseconds.

Examples:
  tether led idle
  tether led 250`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pattern, ok := namedPatterns[args[0]]
		if !ok {
			var raw uint16
			if _, err := fmt.Sscanf(args[0], "%d", &raw); err != nil {
				return fmt.Errorf("unknown pattern %q", args[0])
			}
			pattern = board.Pattern(raw)
		}
		return withDevice(func(dev *host.Device) error {
			return dev.SetLEDPattern(uint16(pattern))
		})
	},
}

func init() {
	rootCmd.AddCommand(ledCmd)
}
