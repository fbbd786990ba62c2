package cmd

import (
	"context"

	"clusterdash/internal/cli/ui"
	"clusterdash/pkg/sdk"

	"github.com/spf13/cobra"
)

var (
	historyHours int
	historyLocal bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show GPU usage history charts",
	Run: func(cmd *cobra.Command, args []string) {
		RunHistory(historyHours, historyLocal)
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyHours, "hours", 0, "Time range in hours (default from config)")
	historyCmd.Flags().BoolVar(&historyLocal, "local", false, "Read from the local history database instead of the server")
	RootCmd.AddCommand(historyCmd)
}

func RunDashboard() {
	logToFile()
	if err := ui.RunDashboard(Container.Client, Container.Config.RefreshInterval); err != nil {
		fatalf("Error running dashboard: %v", err)
	}
}

func RunHistory(hours int, local bool) {
	if hours <= 0 {
		hours = Container.Config.HistoryHours
	}
	source, err := historySource(local)
	if err != nil {
		fatalf("%v", err)
	}

	logToFile()
	if err := ui.RunHistory(source, hours, Container.Config.HistoryRefreshInterval); err != nil {
		fatalf("Error running history view: %v", err)
	}
}

// historySource reads from the server, or from the recorded database when
// local is set.
func historySource(local bool) (func(ctx context.Context, hours int) (*sdk.HistoryData, error), error) {
	if !local {
		return Container.Client.GetHistoryData, nil
	}
	store, err := Container.OpenStore()
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, hours int) (*sdk.HistoryData, error) {
		return store.History(hours)
	}, nil
}
