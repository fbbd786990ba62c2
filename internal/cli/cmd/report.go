package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"clusterdash/internal/report"
	"clusterdash/internal/view"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
)

var (
	reportOut   string
	reportHours int
	reportLocal bool
	reportOpen  bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write the usage history charts to a standalone HTML file",
	Run: func(cmd *cobra.Command, args []string) {
		handleReport(reportOut, reportHours, reportLocal, reportOpen)
	},
}

func init() {
	reportCmd.Flags().StringVarP(&reportOut, "out", "o", "clusterdash-history.html", "Output file")
	reportCmd.Flags().IntVar(&reportHours, "hours", 0, "Time range in hours (default from config)")
	reportCmd.Flags().BoolVar(&reportLocal, "local", false, "Read from the local history database instead of the server")
	reportCmd.Flags().BoolVar(&reportOpen, "open", false, "Open the report in a browser")
	RootCmd.AddCommand(reportCmd)
}

func handleReport(out string, hours int, local, open bool) {
	if hours <= 0 {
		hours = Container.Config.HistoryHours
	}
	source, err := historySource(local)
	if err != nil {
		fatalf("%v", err)
	}

	data, err := source(context.Background(), hours)
	if err != nil {
		fatalf("Error getting history data: %v", err)
	}

	v := view.BuildHistory(data, hours)
	if err := report.WriteFile(out, v, report.Options{}); err != nil {
		fatalf("Error writing report: %v", err)
	}

	abs, err := filepath.Abs(out)
	if err != nil {
		abs = out
	}
	fmt.Printf("Report written to %s\n", abs)

	if open {
		if err := browser.OpenFile(abs); err != nil {
			fatalf("Could not open browser: %v", err)
		}
	}
}
