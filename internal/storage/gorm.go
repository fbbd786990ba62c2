package storage

import (
	"database/sql"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"clusterdash/internal/domain"
	"clusterdash/pkg/sdk"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// SnapshotMinInterval throttles writes to one row per host per interval.
const SnapshotMinInterval = 300 * time.Second

// wasteBucketSecs is the cluster bucket used for waste statistics.
const wasteBucketSecs = 300

type bucketThreshold struct {
	hours  float64
	bucket int
}

// Bucket sizes keep chart point counts reasonable for each window.
var bucketThresholds = []bucketThreshold{
	{24, 300},
	{168, 900},
	{720, 3600},
	{math.Inf(1), 14400},
}

type GPUSnapshot struct {
	ID                  uint    `gorm:"primaryKey;autoIncrement"`
	Timestamp           float64 `gorm:"not null;index:idx_snapshots_timestamp"`
	Hostname            string  `gorm:"not null;index:idx_snapshots_hostname"`
	TotalGPUs           int     `gorm:"column:total_gpus;not null"`
	FreeGPUs            int     `gorm:"column:free_gpus;not null"`
	AvgGPUMemoryPercent float64 `gorm:"column:avg_gpu_memory_percent;not null"`
	AvgGPUUtil          float64 `gorm:"column:avg_gpu_util;not null"`
	CPUPercent          float64 `gorm:"column:cpu_percent;not null"`
}

func (GPUSnapshot) TableName() string {
	return "gpu_snapshots"
}

type GormStore struct {
	db  *gorm.DB
	now func() time.Time

	mu           sync.Mutex
	lastSnapshot map[string]time.Time
}

var _ domain.SnapshotRepository = (*GormStore)(nil)

func NewGormStore(path string) (*GormStore, error) {
	newLogger := gormlogger.New(
		logrus.StandardLogger(),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			IgnoreRecordNotFoundError: true,
			LogLevel:                  gormlogger.Error,
		},
	)

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: newLogger})
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	if err := db.AutoMigrate(&GPUSnapshot{}); err != nil {
		return nil, fmt.Errorf("error migrating database: %w", err)
	}

	return &GormStore{
		db:           db,
		now:          time.Now,
		lastSnapshot: make(map[string]time.Time),
	}, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) RecordSnapshot(snap domain.Snapshot) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	last, err := s.lastSnapshotTime(snap.Hostname)
	if err != nil {
		return false, err
	}
	if !last.IsZero() && snap.Timestamp.Sub(last) < SnapshotMinInterval {
		return false, nil
	}
	if snap.TotalGPUs == 0 {
		return false, nil
	}

	row := &GPUSnapshot{
		Timestamp:           unixSeconds(snap.Timestamp),
		Hostname:            snap.Hostname,
		TotalGPUs:           snap.TotalGPUs,
		FreeGPUs:            snap.FreeGPUs,
		AvgGPUMemoryPercent: round1(snap.AvgGPUMemoryPercent),
		AvgGPUUtil:          round1(snap.AvgGPUUtil),
		CPUPercent:          round1(snap.CPUPercent),
	}
	if err := s.db.Create(row).Error; err != nil {
		return false, fmt.Errorf("error saving snapshot: %w", err)
	}

	s.lastSnapshot[snap.Hostname] = snap.Timestamp
	return true, nil
}

// lastSnapshotTime falls back to the database so the throttle survives a
// restart. Callers hold s.mu.
func (s *GormStore) lastSnapshotTime(hostname string) (time.Time, error) {
	if t, ok := s.lastSnapshot[hostname]; ok {
		return t, nil
	}

	var ts sql.NullFloat64
	err := s.db.Model(&GPUSnapshot{}).
		Select("MAX(timestamp)").
		Where("hostname = ?", hostname).
		Row().Scan(&ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("error reading last snapshot: %w", err)
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	t := fromUnixSeconds(ts.Float64)
	s.lastSnapshot[hostname] = t
	return t, nil
}

// BucketSizeForHours returns the series bucket width, in seconds.
func BucketSizeForHours(hours int) int {
	for _, th := range bucketThresholds {
		if float64(hours) <= th.hours {
			return th.bucket
		}
	}
	return bucketThresholds[len(bucketThresholds)-1].bucket
}

type hostBucketRow struct {
	BucketTS            int64   `gorm:"column:bucket_ts"`
	Hostname            string  `gorm:"column:hostname"`
	TotalGPUs           float64 `gorm:"column:total_gpus"`
	FreeGPUs            float64 `gorm:"column:free_gpus"`
	AvgGPUMemoryPercent float64 `gorm:"column:avg_gpu_memory_percent"`
	AvgGPUUtil          float64 `gorm:"column:avg_gpu_util"`
}

// QueryClusterHistory averages each host within a bucket, then sums the
// hosts into cluster-wide points.
func (s *GormStore) QueryClusterHistory(hours int) ([]sdk.HistoryPoint, error) {
	cutoff := unixSeconds(s.now()) - float64(hours)*3600
	bucket := BucketSizeForHours(hours)

	var rows []hostBucketRow
	err := s.db.Raw(`SELECT
			CAST(timestamp / ? AS INTEGER) * ? AS bucket_ts,
			hostname,
			AVG(total_gpus) AS total_gpus,
			AVG(free_gpus) AS free_gpus,
			AVG(avg_gpu_memory_percent) AS avg_gpu_memory_percent,
			AVG(avg_gpu_util) AS avg_gpu_util
		FROM gpu_snapshots
		WHERE timestamp >= ?
		GROUP BY bucket_ts, hostname
		ORDER BY bucket_ts`, bucket, bucket, cutoff).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error querying history: %w", err)
	}

	type acc struct {
		point    sdk.HistoryPoint
		utils    []float64
		memories []float64
	}
	buckets := make(map[int64]*acc)
	for _, r := range rows {
		b, ok := buckets[r.BucketTS]
		if !ok {
			b = &acc{point: sdk.HistoryPoint{
				Timestamp: float64(r.BucketTS),
				Servers:   make(map[string]sdk.ServerPoint),
			}}
			buckets[r.BucketTS] = b
		}
		b.point.TotalGPUs += roundHalfEven(r.TotalGPUs)
		b.point.FreeGPUs += roundHalfEven(r.FreeGPUs)
		b.utils = append(b.utils, r.AvgGPUUtil)
		b.memories = append(b.memories, r.AvgGPUMemoryPercent)
		b.point.Servers[r.Hostname] = sdk.ServerPoint{
			FreeGPUs:   roundHalfEven(r.FreeGPUs),
			TotalGPUs:  roundHalfEven(r.TotalGPUs),
			AvgGPUUtil: round1(r.AvgGPUUtil),
		}
	}

	keys := make([]int64, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	series := make([]sdk.HistoryPoint, 0, len(keys))
	for _, k := range keys {
		b := buckets[k]
		b.point.AvgGPUUtil = round1(mean(b.utils))
		b.point.AvgGPUMemoryPercent = round1(mean(b.memories))
		series = append(series, b.point)
	}
	return series, nil
}

type wasteRow struct {
	AvgTotalGPUs   *float64 `gorm:"column:avg_total_gpus"`
	AvgFreeGPUs    *float64 `gorm:"column:avg_free_gpus"`
	PeakFreeGPUs   *float64 `gorm:"column:peak_free_gpus"`
	MinFreeGPUs    *float64 `gorm:"column:min_free_gpus"`
	AvgClusterUtil *float64 `gorm:"column:avg_cluster_util"`
	AvgClusterMem  *float64 `gorm:"column:avg_cluster_mem"`
	TotalSnapshots int      `gorm:"column:total_snapshots"`
}

// QueryWasteStats sums hosts into 5-minute cluster buckets and aggregates
// across the window.
func (s *GormStore) QueryWasteStats(hours int) (sdk.WasteStats, error) {
	cutoff := unixSeconds(s.now()) - float64(hours)*3600

	var row wasteRow
	err := s.db.Raw(`SELECT
			AVG(total_gpus) AS avg_total_gpus,
			AVG(free_gpus) AS avg_free_gpus,
			MAX(free_gpus) AS peak_free_gpus,
			MIN(free_gpus) AS min_free_gpus,
			AVG(avg_gpu_util) AS avg_cluster_util,
			AVG(avg_gpu_memory_percent) AS avg_cluster_mem,
			COUNT(*) AS total_snapshots
		FROM (
			SELECT
				CAST(timestamp / ? AS INTEGER) AS bucket,
				SUM(total_gpus) AS total_gpus,
				SUM(free_gpus) AS free_gpus,
				AVG(avg_gpu_util) AS avg_gpu_util,
				AVG(avg_gpu_memory_percent) AS avg_gpu_memory_percent
			FROM gpu_snapshots
			WHERE timestamp >= ?
			GROUP BY bucket
		)`, wasteBucketSecs, cutoff).Scan(&row).Error
	if err != nil {
		return sdk.WasteStats{}, fmt.Errorf("error querying waste stats: %w", err)
	}

	if row.TotalSnapshots == 0 {
		return sdk.WasteStats{}, nil
	}

	avgTotal := deref(row.AvgTotalGPUs)
	avgFree := deref(row.AvgFreeGPUs)
	var waste float64
	if avgTotal > 0 {
		waste = avgFree / avgTotal * 100
	}

	return sdk.WasteStats{
		AvgTotalGPUs:   roundHalfEven(avgTotal),
		AvgFreeGPUs:    round1(avgFree),
		PeakFreeGPUs:   deref(row.PeakFreeGPUs),
		MinFreeGPUs:    deref(row.MinFreeGPUs),
		AvgClusterUtil: round1(deref(row.AvgClusterUtil)),
		AvgClusterMem:  round1(deref(row.AvgClusterMem)),
		WastePercent:   round1(waste),
		TotalSnapshots: row.TotalSnapshots,
	}, nil
}

// History assembles the same payload the server's /api/history-data serves.
func (s *GormStore) History(hours int) (*sdk.HistoryData, error) {
	series, err := s.QueryClusterHistory(hours)
	if err != nil {
		return nil, err
	}
	stats, err := s.QueryWasteStats(hours)
	if err != nil {
		return nil, err
	}
	return &sdk.HistoryData{
		Hours:       hours,
		Series:      series,
		Stats:       stats,
		GeneratedAt: unixSeconds(s.now()),
	}, nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func fromUnixSeconds(ts float64) time.Time {
	sec := int64(ts)
	return time.Unix(sec, int64((ts-float64(sec))*1e9))
}

// round1 rounds half to even at one decimal.
func round1(v float64) float64 {
	return math.RoundToEven(v*10) / 10
}

func roundHalfEven(v float64) float64 {
	return math.RoundToEven(v)
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
