package cmd

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tetherlab/tether/internal/version"
	"github.com/tetherlab/tether/pkg/board"
	"github.com/tetherlab/tether/pkg/board/sim"
	"github.com/tetherlab/tether/pkg/firmware"
)

var (
	simBoardProfile string
	simHoldButton   bool
)

var simCmd = &cobra.Command{
	Use:   "sim",
	Short: "Run the firmware against a simulated board",
	Long: `Boot the firmware on a simulated board and run its scheduler until
interrupted. Useful for exercising lifecycle behavior without hardware;
run with -v to watch pin-level events.

Examples:
  tether sim
  tether sim --board profiles/no-switch.yaml
  tether sim --hold-button        # simulate an interrupted start-up`,
	RunE: runSim,
}

func init() {
	rootCmd.AddCommand(simCmd)

	simCmd.Flags().StringVar(&simBoardProfile, "board", "",
		"board profile YAML (default: full-featured board)")
	simCmd.Flags().BoolVar(&simHoldButton, "hold-button", false,
		"hold the button through boot")
}

func runSim(cmd *cobra.Command, args []string) error {
	profile := board.DefaultProfile()
	if simBoardProfile != "" {
		var err error
		profile, err = board.LoadProfile(simBoardProfile)
		if err != nil {
			return fmt.Errorf("loading board profile: %w", err)
		}
	}

	s := sim.New(profile, board.NewSystemClock())
	if simHoldButton {
		s.PressButton()
	}

	fw := firmware.New(s.Board(), firmware.NewLoopback(), version.Version)
	fw.Boot()
	fmt.Printf("board:    %s\n", profile.Name)
	fmt.Printf("fpga:     %s\n", fw.Coordinator().FPGAState())
	fmt.Printf("usb port: %s\n", fw.Coordinator().PortOwner())
	if simHoldButton {
		s.ReleaseButton()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		default:
		}
		fw.Tick()
		if verbose {
			for _, e := range s.TakeEvents() {
				fmt.Println(e)
			}
		}
		time.Sleep(time.Millisecond)
	}
}
