package cmd

import (
	"context"
	"fmt"

	"clusterdash/internal/cli/ui"
	"clusterdash/internal/view"

	"github.com/spf13/cobra"
)

var summaryRaw bool

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print a one-shot GPU summary table",
	Run: func(cmd *cobra.Command, args []string) {
		handleSummary(summaryRaw)
	},
}

var legacyWidth int

var legacyCmd = &cobra.Command{
	Use:   "legacy",
	Short: "Show free GPU memory and per-user usage from the simple feed",
	Run: func(cmd *cobra.Command, args []string) {
		handleLegacy(legacyWidth)
	},
}

func init() {
	summaryCmd.Flags().BoolVar(&summaryRaw, "raw", false, "Print the server's plain-text summary as-is")
	legacyCmd.Flags().IntVar(&legacyWidth, "width", 80, "Output width in columns")

	RootCmd.AddCommand(summaryCmd, legacyCmd)
}

func handleSummary(raw bool) {
	ctx := context.Background()
	if raw {
		text, err := Container.Client.GetGPUSummary(ctx)
		if err != nil {
			fatalf("Error getting GPU summary: %v", err)
		}
		fmt.Print(text)
		return
	}

	data, err := Container.Client.GetDashboardData(ctx)
	if err != nil {
		fatalf("Error getting dashboard data: %v", err)
	}
	fmt.Println(ui.RenderSummaryTable(data))
	fmt.Println(view.BuildClusterSummary(data.Servers))
}

func handleLegacy(width int) {
	data, err := Container.Client.GetLegacyGPUData(context.Background())
	if err != nil {
		fatalf("Error getting GPU data: %v", err)
	}
	fmt.Println(ui.RenderLegacy(view.BuildLegacy(data), width))
}
