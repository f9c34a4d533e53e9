package cli

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/idlelock/idlelock/internal/domain"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the running guard",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	st, err := client.Status(cmd.Context())
	if err != nil {
		return fmt.Errorf("is idlelock running? %w", err)
	}
	health, err := client.Health(cmd.Context())
	if err != nil {
		return err
	}
	printStatus(os.Stdout, st, health.Status)
	return nil
}

func printStatus(out io.Writer, st domain.Status, health string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "State:\t%s\n", st.State)
	fmt.Fprintf(w, "Health:\t%s\n", health)
	if st.Calibrated {
		fmt.Fprintf(w, "Tick rate:\t%.3f ms/tick\n", st.MillisPerTick)
	} else {
		fmt.Fprintf(w, "Tick rate:\tcalibrating\n")
	}
	fmt.Fprintf(w, "Idle threshold:\t%ds (%d ticks)\n", st.IdleThreshold, st.IdleTicks)
	fmt.Fprintf(w, "Grace period:\t%ds\n", st.GracePeriod)
	fmt.Fprintf(w, "Idle for:\t%.1fs\n", st.IdleFor)
	if st.WarningID != "" {
		fmt.Fprintf(w, "Warning:\t%s (%ds left)\n", st.WarningID, st.RemainingSeconds)
	}
	fmt.Fprintf(w, "Input events:\t%d\n", st.HookCalls)
	fmt.Fprintf(w, "Locks:\t%d\n", st.LocksTriggered)
	if !st.StartedAt.IsZero() {
		fmt.Fprintf(w, "Uptime:\t%s\n", time.Since(st.StartedAt).Round(time.Second))
	}
	w.Flush()
}
