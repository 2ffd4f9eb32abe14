package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// newRootCmd builds the command tree around a.
func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "padctl",
		Short: "WalkingPad treadmill controller",
		Long: `Control a KingSmith WalkingPad treadmill over Bluetooth Low Energy:

- Find the pad and connect to it
- Start and stop the belt, change speed and mode
- Stream belt state to the terminal
- Serve a small HTTP API for dashboards and home automation

Commands are spaced at least 890ms apart; the pad ignores commands sent faster.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", formatVersion(version), commit, date),
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Path to a YAML config file")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.StringVarP(&a.address, "address", "a", "", "Pad address; scanned for by name when omitted")
	flags.StringVar(&a.name, "name", "", "Local name fragment used to find the pad (default \"walkingpad\")")

	// Add -v as a short flag for --version
	root.Flags().BoolP("version", "v", false, "Show version information")

	root.AddCommand(
		newScanCmd(a),
		newStartCmd(a),
		newStopCmd(a),
		newSpeedCmd(a),
		newModeCmd(a),
		newStatsCmd(a),
		newProfileCmd(a),
		newMonitorCmd(a),
		newProbeCmd(a),
		newServeCmd(a),
	)
	return root
}

func main() {
	if err := newRootCmd(newApp()).Execute(); err != nil {
		// Ctrl+C is a normal exit, not an error
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}
