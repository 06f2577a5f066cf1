package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantsim/chrono/timing"
)

func newNowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "now",
		Short: "Print the wall-clock time in every unit the clocks expose.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printNow(cmd, timing.NewLiveClock())
		},
	}
}

func printNow(cmd *cobra.Command, clock timing.Clock) error {
	_, err := fmt.Fprintf(cmd.OutOrStdout(),
		"timestamp: %.9f\ntimestamp_ms: %d\ntimestamp_us: %d\ntimestamp_ns: %d\n",
		clock.Timestamp(),
		clock.TimestampMs(),
		clock.TimestampUs(),
		clock.TimestampNs())

	return err
}
