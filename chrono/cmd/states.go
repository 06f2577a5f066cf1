package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/quantsim/chrono/lifecycle"
)

func newStatesCommand() *cobra.Command {
	statesCmd := &cobra.Command{
		Use:   "states",
		Short: "Print the component lifecycle transition table.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(lifecycle.Transitions())
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "FROM\tTRIGGER\tTO")
			for _, t := range lifecycle.Transitions() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", t.From, t.Trigger, t.To)
			}

			return w.Flush()
		},
	}

	statesCmd.Flags().Bool("json", false, "Print the table as JSON")

	return statesCmd
}
