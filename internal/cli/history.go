package cli

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/idlelock/idlelock/internal/api"
)

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of entries to show")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent warnings and session lock changes",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	h, err := client.History(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	printHistory(os.Stdout, h)
	return nil
}

func printHistory(out io.Writer, h api.HistoryResponse) {
	if len(h.Warnings) == 0 {
		fmt.Fprintln(out, "No warnings recorded.")
	} else {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tOPENED\tSHOWN\tOUTCOME\tREMAINING")
		for _, rec := range h.Warnings {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%ds\n",
				shortID(rec.ID),
				rec.OpenedAt.Local().Format("2006-01-02 15:04:05"),
				rec.Duration().Round(time.Second),
				rec.Reason,
				rec.Remaining,
			)
		}
		w.Flush()
	}

	if len(h.Transitions) == 0 {
		return
	}
	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tAT")
	for _, rec := range h.Transitions {
		fmt.Fprintf(w, "%s\t%s\n", rec.Kind, rec.At.Local().Format("2006-01-02 15:04:05"))
	}
	w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
