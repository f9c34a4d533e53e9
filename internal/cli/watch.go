package cli

import (
	"github.com/spf13/cobra"

	"github.com/idlelock/idlelock/internal/tui"
)

func init() {
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live view of the running guard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		return tui.Run(client)
	},
}
