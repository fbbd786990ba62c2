package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"clusterdash/internal/config"
	"clusterdash/pkg/sdk"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCollector struct {
	err   error
	calls int
}

func (f *fakeCollector) Collect(ctx context.Context) (*sdk.MachineReport, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &sdk.MachineReport{
		Hostname: "gpu-a",
		GPU:      Placeholder(),
	}, nil
}

type fakeSender struct {
	mu      sync.Mutex
	err     error
	reports []*sdk.MachineReport
}

func (f *fakeSender) PostReport(ctx context.Context, r *sdk.MachineReport) (*sdk.PostResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, r)
	if f.err != nil {
		return nil, f.err
	}
	return &sdk.PostResult{Success: true, Msg: "stored result"}, nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reports)
}

// steppingClock advances by step on every call.
func steppingClock(start time.Time, step time.Duration) func() time.Time {
	t := start
	return func() time.Time {
		now := t
		t = t.Add(step)
		return now
	}
}

func agentConfig() config.AgentConfig {
	return config.AgentConfig{
		PollInterval: time.Millisecond,
		PostInterval: 10 * time.Second,
		AuthCode:     "pass",
	}
}

func TestGPUKey(t *testing.T) {
	key := GPUKey(0, "NVIDIA A100-SXM4  40GB", "GPU-1a2b3c4d-5e6f")
	assert.Equal(t, "0_NVIDIA-A100-SXM4-40GB_1a2b3c", key)

	assert.Equal(t, "3_T4_ab", GPUKey(3, "T4", "GPU-ab"))
}

func TestPlaceholder(t *testing.T) {
	gpus := Placeholder()
	require.Len(t, gpus, 1)
	gpu := gpus["gpu_data"]
	assert.Equal(t, "none", gpu.Name)
	assert.Equal(t, "none", gpu.UUID)
	assert.Zero(t, gpu.TotalMem)
	assert.NotNil(t, gpu.Users)
}

func TestGroupByUser(t *testing.T) {
	owner := func(ctx context.Context, pid int32) (string, *float64, string) {
		if pid == 7 {
			return unknownUser, nil, ""
		}
		secs := 1.5
		return "alice", &secs, "python"
	}
	users := groupByUser(context.Background(), []gpuProcess{
		{pid: 100, usedBytes: 2048 * bytesPerMB},
		{pid: 101, usedBytes: 512 * bytesPerMB},
		{pid: 7, usedBytes: bytesPerMB},
	}, owner)

	require.Len(t, users, 2)
	assert.Len(t, users["alice"], 2)
	assert.Equal(t, 2048.0, users["alice"]["100"].Mem)
	assert.Equal(t, "python", users["alice"]["101"].Name)
	require.NotNil(t, users["alice"]["101"].Time)
	assert.Equal(t, 1.5, *users["alice"]["101"].Time)
	assert.Nil(t, users[unknownUser]["7"].Time)
}

func TestStepThrottlesPosts(t *testing.T) {
	sender := &fakeSender{}
	a := New(&fakeCollector{}, sender, agentConfig())
	a.now = steppingClock(time.Unix(1700000000, 0), 4*time.Second)

	for i := 0; i < 6; i++ {
		require.NoError(t, a.Step(context.Background()))
	}

	// posts at t=0 and t=12; the other readings fall inside the interval
	require.Equal(t, 2, sender.count())
	first := sender.reports[0]
	assert.Equal(t, "pass", first.AuthCode)
	assert.Equal(t, 1700000000.0, first.Timestamp)
}

func TestStepSkipsCollectErrors(t *testing.T) {
	sender := &fakeSender{}
	a := New(&fakeCollector{err: errors.New("no /proc")}, sender, agentConfig())

	require.NoError(t, a.Step(context.Background()))
	assert.Zero(t, sender.count())
}

func TestRunStopsAfterConsecutiveFailures(t *testing.T) {
	sender := &fakeSender{err: errors.New("connection refused")}
	cfg := agentConfig()
	cfg.PostInterval = 0
	a := New(&fakeCollector{}, sender, cfg)
	a.now = steppingClock(time.Unix(0, 0), time.Second)

	err := a.Run(context.Background())
	assert.ErrorIs(t, err, ErrTooManyFailures)
	assert.Equal(t, maxConsecutiveFailures+1, sender.count())
}

func TestSuccessResetsFailureCount(t *testing.T) {
	sender := &fakeSender{err: errors.New("timeout")}
	cfg := agentConfig()
	cfg.PostInterval = 0
	a := New(&fakeCollector{}, sender, cfg)
	a.now = steppingClock(time.Unix(0, 0), time.Second)

	for i := 0; i < maxConsecutiveFailures; i++ {
		require.NoError(t, a.Step(context.Background()))
	}
	sender.err = nil
	require.NoError(t, a.Step(context.Background()))
	assert.Zero(t, a.failures)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := New(&fakeCollector{}, &fakeSender{}, agentConfig())
	assert.NoError(t, a.Run(ctx))
}

func TestPostsToServer(t *testing.T) {
	var got sdk.MachineReport
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"success": true, "msg": "stored result"}`)
	}))
	defer srv.Close()

	a := New(&fakeCollector{}, sdk.NewClient(srv.URL), agentConfig())
	require.NoError(t, a.Step(context.Background()))

	assert.Equal(t, "gpu-a", got.Hostname)
	assert.Equal(t, "pass", got.AuthCode)
	assert.Contains(t, got.GPU, "gpu_data")
	assert.Zero(t, a.failures)
}
