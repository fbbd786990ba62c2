package cmd

import (
	"context"
	"time"

	"clusterdash/internal/domain"
	"clusterdash/internal/refresh"
	"clusterdash/pkg/sdk"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var recordOnce bool

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record cluster snapshots into the local history database",
	Run: func(cmd *cobra.Command, args []string) {
		handleRecord(recordOnce)
	},
}

func init() {
	recordCmd.Flags().BoolVar(&recordOnce, "once", false, "Record a single snapshot and exit")
	RootCmd.AddCommand(recordCmd)
}

func handleRecord(once bool) {
	store, err := Container.OpenStore()
	if err != nil {
		fatalf("%v", err)
	}

	poller := &refresh.Poller[*sdk.DashboardData]{
		Controller: refresh.NewController("record", Container.Config.RefreshInterval),
		Fetch:      Container.Client.GetDashboardData,
		OnData: func(data *sdk.DashboardData) {
			n, err := domain.RecordDashboard(store, data, time.Now())
			if err != nil {
				logrus.Errorf("Error recording snapshot: %v", err)
				return
			}
			logrus.WithField("hosts", n).Debug("recorded snapshots")
		},
		OnError: func(err error) {
			logrus.Warnf("dashboard fetch failed: %v", err)
		},
	}

	if once {
		poller.Poll(context.Background())
		return
	}

	ctx, stop := signalContext()
	defer stop()
	logrus.Infof("Recording to %s every %s", Container.Config.DatabasePath, Container.Config.RefreshInterval)
	poller.Run(ctx)
}
