package cmd

import (
	"clusterdash/internal/tray"

	"github.com/spf13/cobra"
)

var trayCmd = &cobra.Command{
	Use:   "tray",
	Short: "Show free GPUs in the system tray",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signalContext()
		defer stop()
		tray.New(Container).Run(ctx)
	},
}

func init() {
	RootCmd.AddCommand(trayCmd)
}
