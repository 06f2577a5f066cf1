package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantsim/chrono/datarecording"
	"github.com/quantsim/chrono/idgen"
	"github.com/quantsim/chrono/monitoring"
	"github.com/quantsim/chrono/scenario"
	"github.com/quantsim/chrono/simulation"
)

func newReplayCommand() *cobra.Command {
	replayCmd := &cobra.Command{
		Use:   "replay <scenario.yaml>",
		Short: "Replay a scenario file.",
		Long: "`replay` applies a scenario to a fresh simulation, runs its " +
			"steps in order and prints every fired event.",
		Args: cobra.ExactArgs(1),
		RunE: runReplay,
	}

	flags := replayCmd.Flags()
	flags.String("record", "", "Record events and transitions into this SQLite file")
	flags.Bool("monitor", false, "Serve the simulation over HTTP")
	flags.Int("monitor-port", 0, "Port of the monitor, random when 0")
	flags.Bool("open-browser", false, "Open the monitor in a browser")
	flags.Bool("hold", false, "Keep the monitor running after the replay until interrupted")
	flags.String("ids", "uuid", "Event id generator: uuid, xid or seq")

	return replayCmd
}

func runReplay(cmd *cobra.Command, args []string) error {
	sc, err := scenario.Load(args[0])
	if err != nil {
		return err
	}

	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer logger.Close()

	idsName, _ := cmd.Flags().GetString("ids")
	ids, ok := idgen.ByName(idsName)
	if !ok {
		return fmt.Errorf("unknown id generator %q", idsName)
	}

	builder := simulation.MakeBuilder().
		WithStartTime(sc.StartNs).
		WithIDGenerator(ids).
		WithLogger(logger)

	recordPath, _ := cmd.Flags().GetString("record")
	if recordPath != "" {
		builder = builder.WithRecording(recordPath)
	}

	sim, err := builder.Build()
	if err != nil {
		return err
	}

	var exec *datarecording.ExecRecorder
	if recorder := sim.GetDataRecorder(); recorder != nil {
		exec, err = datarecording.NewExecRecorder(recorder)
		if err != nil {
			return errors.Join(err, sim.Terminate())
		}
		exec.Start()
		exec.Note("Scenario", args[0])
	}

	monitor, err := startMonitor(cmd, sim)
	if err != nil {
		return errors.Join(err, sim.Terminate())
	}

	runErr := replay(cmd.OutOrStdout(), sc, sim, monitor)

	if monitor != nil {
		hold, _ := cmd.Flags().GetBool("hold")
		if hold {
			waitForInterrupt(cmd.Context(), cmd.ErrOrStderr())
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		runErr = errors.Join(runErr, monitor.Shutdown(ctx))
	}

	if exec != nil {
		runErr = errors.Join(runErr, exec.End())
	}

	return errors.Join(runErr, sim.Terminate())
}

func startMonitor(
	cmd *cobra.Command,
	sim *simulation.Simulation,
) (*monitoring.Monitor, error) {
	on, _ := cmd.Flags().GetBool("monitor")
	if !on {
		return nil, nil
	}

	monitor := monitoring.NewMonitor(sim)

	port, _ := cmd.Flags().GetInt("monitor-port")
	if port != 0 {
		monitor.WithPortNumber(port)
	}

	url, err := monitor.StartServer()
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Monitoring simulation with %s\n", url)

	if open, _ := cmd.Flags().GetBool("open-browser"); open {
		if err := monitor.OpenInBrowser(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Cannot open browser: %v\n", err)
		}
	}

	return monitor, nil
}

func replay(
	out io.Writer,
	sc *scenario.Scenario,
	sim *simulation.Simulation,
	monitor *monitoring.Monitor,
) error {
	if err := sc.Apply(sim); err != nil {
		return err
	}

	var bar *monitoring.ProgressBar
	if monitor != nil {
		bar = monitor.CreateProgressBar(sc.Name, uint64(len(sc.Steps)))
		defer monitor.CompleteProgressBar(bar)
	}

	_, err := sc.RunWithProgress(sim, func(r scenario.StepResult) {
		verb := "run"
		if r.Step.Peek {
			verb = "peek"
		}

		fmt.Fprintf(out, "%s to %d: %d events, now %d\n",
			verb, r.Step.ToNs, len(r.Events), r.NowNs)
		for _, e := range r.Events {
			fmt.Fprintf(out, "  %s\n", e)
		}
		if r.Err != nil {
			fmt.Fprintf(out, "  error: %v\n", r.Err)
		}

		if bar != nil {
			bar.IncrementFinished(1)
		}
	})

	for _, c := range sim.Components() {
		fmt.Fprintf(out, "%s: %s\n", c.Name(), c.State())
	}

	return err
}

func waitForInterrupt(parent context.Context, out io.Writer) {
	if parent == nil {
		parent = context.Background()
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	defer stop()

	fmt.Fprintln(out, "Press Ctrl+C to stop the monitor.")
	<-ctx.Done()
}
