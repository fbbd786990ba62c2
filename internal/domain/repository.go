package domain

import (
	"fmt"
	"time"

	"clusterdash/pkg/sdk"
)

type SnapshotRepository interface {
	// RecordSnapshot stores snap unless the host was recorded too recently.
	// It reports whether a row was written.
	RecordSnapshot(snap Snapshot) (bool, error)
	QueryClusterHistory(hours int) ([]sdk.HistoryPoint, error)
	QueryWasteStats(hours int) (sdk.WasteStats, error)
	History(hours int) (*sdk.HistoryData, error)
	Close() error
}

// RecordDashboard stores a snapshot of every recordable host in data and
// returns how many rows were written.
func RecordDashboard(repo SnapshotRepository, data *sdk.DashboardData, at time.Time) (int, error) {
	written := 0
	for _, host := range data.Hostnames() {
		snap, ok := SnapshotFromServer(host, data.Servers[host], at)
		if !ok {
			continue
		}
		stored, err := repo.RecordSnapshot(snap)
		if err != nil {
			return written, fmt.Errorf("recording %s: %w", host, err)
		}
		if stored {
			written++
		}
	}
	return written, nil
}
