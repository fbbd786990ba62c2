package storage

import (
	"path/filepath"
	"testing"
	"time"

	"clusterdash/internal/domain"
	"clusterdash/pkg/sdk"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// base is aligned to a 300 s bucket boundary.
const base = 1_700_000_100

func at(offset int) time.Time {
	return time.Unix(base+int64(offset), 0)
}

func newTestStore(t *testing.T) (*GormStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := NewGormStore(path)
	require.NoError(t, err)
	store.now = func() time.Time { return at(1000) }
	t.Cleanup(func() { _ = store.Close() })
	return store, path
}

func snap(host string, offset, total, free int, mem, util float64) domain.Snapshot {
	return domain.Snapshot{
		Timestamp:           at(offset),
		Hostname:            host,
		TotalGPUs:           total,
		FreeGPUs:            free,
		AvgGPUMemoryPercent: mem,
		AvgGPUUtil:          util,
	}
}

func record(t *testing.T, store *GormStore, s domain.Snapshot) bool {
	t.Helper()
	ok, err := store.RecordSnapshot(s)
	require.NoError(t, err)
	return ok
}

func TestBucketSizeForHours(t *testing.T) {
	cases := map[int]int{1: 300, 24: 300, 25: 900, 168: 900, 169: 3600, 720: 3600, 721: 14400, 10000: 14400}
	for hours, want := range cases {
		assert.Equal(t, want, BucketSizeForHours(hours), "hours=%d", hours)
	}
}

func TestRecordSnapshotThrottlesPerHost(t *testing.T) {
	store, _ := newTestStore(t)

	assert.True(t, record(t, store, snap("a", 0, 4, 4, 0, 0)))
	assert.False(t, record(t, store, snap("a", 100, 4, 4, 0, 0)))
	assert.True(t, record(t, store, snap("b", 100, 2, 2, 0, 0)))
	assert.True(t, record(t, store, snap("a", 300, 4, 4, 0, 0)))
	assert.False(t, record(t, store, snap("c", 0, 0, 0, 0, 0)), "hosts without GPUs are skipped")

	var count int64
	require.NoError(t, store.db.Model(&GPUSnapshot{}).Count(&count).Error)
	assert.EqualValues(t, 3, count)
}

func TestThrottleSurvivesReopen(t *testing.T) {
	store, path := newTestStore(t)
	assert.True(t, record(t, store, snap("a", 0, 4, 4, 0, 0)))
	require.NoError(t, store.Close())

	reopened, err := NewGormStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	assert.False(t, record(t, reopened, snap("a", 10, 4, 4, 0, 0)))
	assert.True(t, record(t, reopened, snap("a", 400, 4, 4, 0, 0)))
}

func seedHistory(t *testing.T, store *GormStore) {
	record(t, store, snap("old", -90000, 8, 8, 0, 0))
	record(t, store, snap("a", 10, 4, 2, 40, 20))
	record(t, store, snap("b", 20, 2, 0, 90, 95))
	record(t, store, snap("a", 310, 4, 1, 60, 50))
}

func TestQueryClusterHistory(t *testing.T) {
	store, _ := newTestStore(t)
	seedHistory(t, store)

	series, err := store.QueryClusterHistory(24)
	require.NoError(t, err)
	require.Len(t, series, 2)

	first := series[0]
	assert.Equal(t, float64(base), first.Timestamp)
	assert.Equal(t, 6.0, first.TotalGPUs)
	assert.Equal(t, 2.0, first.FreeGPUs)
	assert.Equal(t, 57.5, first.AvgGPUUtil)
	assert.Equal(t, 65.0, first.AvgGPUMemoryPercent)
	assert.Equal(t, sdk.ServerPoint{FreeGPUs: 2, TotalGPUs: 4, AvgGPUUtil: 20}, first.Servers["a"])
	assert.Equal(t, sdk.ServerPoint{FreeGPUs: 0, TotalGPUs: 2, AvgGPUUtil: 95}, first.Servers["b"])
	assert.NotContains(t, first.Servers, "old")

	second := series[1]
	assert.Equal(t, float64(base+300), second.Timestamp)
	assert.Equal(t, 4.0, second.TotalGPUs)
	assert.Equal(t, 1.0, second.FreeGPUs)
	assert.Len(t, second.Servers, 1)
}

func TestQueryWasteStats(t *testing.T) {
	store, _ := newTestStore(t)
	seedHistory(t, store)

	stats, err := store.QueryWasteStats(24)
	require.NoError(t, err)
	assert.Equal(t, sdk.WasteStats{
		AvgTotalGPUs:   5,
		AvgFreeGPUs:    1.5,
		PeakFreeGPUs:   2,
		MinFreeGPUs:    1,
		AvgClusterUtil: 53.8,
		AvgClusterMem:  62.5,
		WastePercent:   30,
		TotalSnapshots: 2,
	}, stats)
}

func TestEmptyStore(t *testing.T) {
	store, _ := newTestStore(t)

	series, err := store.QueryClusterHistory(24)
	require.NoError(t, err)
	assert.Empty(t, series)

	stats, err := store.QueryWasteStats(24)
	require.NoError(t, err)
	assert.Equal(t, sdk.WasteStats{}, stats)

	data, err := store.History(6)
	require.NoError(t, err)
	assert.Equal(t, 6, data.Hours)
	assert.Empty(t, data.Series)
}

func TestSnapshotColumnsMatchQueries(t *testing.T) {
	store, _ := newTestStore(t)
	for _, col := range []string{"total_gpus", "free_gpus", "avg_gpu_memory_percent", "avg_gpu_util", "cpu_percent"} {
		assert.True(t, store.db.Migrator().HasColumn(&GPUSnapshot{}, col), "missing column %s", col)
	}
}

func TestRound1HalfToEven(t *testing.T) {
	assert.Equal(t, 11.2, round1(11.25))
	assert.Equal(t, 0.2, round1(0.25))
	assert.Equal(t, 0.8, round1(0.75))
	assert.Equal(t, 57.5, round1(57.5))
}

func TestStoredAveragesRoundHalfToEven(t *testing.T) {
	store, _ := newTestStore(t)
	record(t, store, snap("a", 10, 80, 9, 12.25, 11.25))

	var row GPUSnapshot
	require.NoError(t, store.db.First(&row).Error)
	assert.Equal(t, 11.2, row.AvgGPUUtil)
	assert.Equal(t, 12.2, row.AvgGPUMemoryPercent)

	stats, err := store.QueryWasteStats(24)
	require.NoError(t, err)
	assert.Equal(t, 11.2, stats.AvgClusterUtil)
	assert.Equal(t, 12.2, stats.AvgClusterMem)
}
