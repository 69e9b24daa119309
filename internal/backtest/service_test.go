package backtest

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratlab/internal/market"
)

// fakeSource 按整点网格生成请求区间内的 K 线，模拟交易所行情接口。
type fakeSource struct {
	calls atomic.Int64
	empty bool
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Fetch(ctx context.Context, req FetchRequest) ([]market.Candle, error) {
	f.calls.Add(1)
	if f.empty {
		return nil, nil
	}
	var out []market.Candle
	for ts := req.Start; ts <= req.End && len(out) < req.Limit; ts += hourMs {
		price := 100 + float64(ts%7)
		out = append(out, market.Candle{
			OpenTime:  ts,
			CloseTime: ts + hourMs - 1,
			Open:      price,
			High:      price + 1,
			Low:       price - 1,
			Close:     price,
			Volume:    1,
		})
	}
	return out, nil
}

func newTestService(t *testing.T, src CandleSource) (*Service, *Store) {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	svc, err := NewService(ServiceConfig{
		Store:           store,
		Sources:         map[string]CandleSource{"fake": src},
		DefaultExchange: "fake",
		RateLimitPerMin: 600000, // 测试中不做限速
		MaxBatch:        4,
	})
	require.NoError(t, err)
	return svc, store
}

func waitForJob(t *testing.T, svc *Service, id string) FetchJob {
	t.Helper()
	var job FetchJob
	assert.Eventually(t, func() bool {
		snap, ok := svc.JobSnapshot(id)
		if !ok {
			return false
		}
		job = snap
		return job.Status != JobStatusPending && job.Status != JobStatusRunning
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func TestSubmitFetchFillsGaps(t *testing.T) {
	src := &fakeSource{}
	svc, store := newTestService(t, src)

	start := int64(1_700_000_400_000)
	end := start + 9*hourMs
	job, err := svc.SubmitFetch(FetchParams{
		Symbol:    "BTCUSDT",
		Timeframe: "1h",
		Start:     start,
		End:       end,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), job.Total)

	final := waitForJob(t, svc, job.ID)
	assert.Equal(t, JobStatusDone, final.Status)
	assert.Empty(t, final.Missing)
	// maxBatch=4，10 根至少分 3 页
	assert.GreaterOrEqual(t, src.calls.Load(), int64(3))

	tf, _ := ParseTimeframe("1h")
	report, err := store.CheckIntegrity(context.Background(), "BTCUSDT", "1h", tf, start, end)
	require.NoError(t, err)
	assert.True(t, report.Complete())
}

func TestSubmitFetchAlreadyComplete(t *testing.T) {
	src := &fakeSource{}
	svc, store := newTestService(t, src)

	start := int64(1_700_000_400_000)
	end := start + 4*hourMs
	_, err := store.InsertCandles(context.Background(), "BTCUSDT", "1h", gridCandles(start, 5))
	require.NoError(t, err)

	job, err := svc.SubmitFetch(FetchParams{Symbol: "BTCUSDT", Timeframe: "1h", Start: start, End: end})
	require.NoError(t, err)
	assert.Equal(t, JobStatusDone, job.Status)
	assert.Zero(t, src.calls.Load())
}

func TestSubmitFetchEmptySourceIsPartial(t *testing.T) {
	src := &fakeSource{empty: true}
	svc, _ := newTestService(t, src)

	start := int64(1_700_000_400_000)
	job, err := svc.SubmitFetch(FetchParams{Symbol: "BTCUSDT", Timeframe: "1h", Start: start, End: start + 5*hourMs})
	require.NoError(t, err)

	final := waitForJob(t, svc, job.ID)
	assert.Equal(t, JobStatusPartial, final.Status)
	assert.NotEmpty(t, final.Missing)
	assert.NotEmpty(t, final.Warnings)
}

func TestSubmitFetchValidation(t *testing.T) {
	svc, _ := newTestService(t, &fakeSource{})

	t.Run("symbol必填", func(t *testing.T) {
		_, err := svc.SubmitFetch(FetchParams{Timeframe: "1h", Start: 1, End: 2})
		assert.Error(t, err)
	})

	t.Run("未知周期", func(t *testing.T) {
		_, err := svc.SubmitFetch(FetchParams{Symbol: "BTCUSDT", Timeframe: "3m", Start: 1, End: 2})
		assert.Error(t, err)
	})

	t.Run("未知数据源", func(t *testing.T) {
		_, err := svc.SubmitFetch(FetchParams{Exchange: "kraken", Symbol: "BTCUSDT", Timeframe: "1h", Start: hourMs, End: 2 * hourMs})
		assert.Error(t, err)
	})

	t.Run("空区间", func(t *testing.T) {
		_, err := svc.SubmitFetch(FetchParams{Symbol: "BTCUSDT", Timeframe: "1h", Start: hourMs, End: hourMs})
		assert.Error(t, err)
	})
}

// fakeLatestSource 额外实现按"最近 N 根"翻页拉取的能力。
type fakeLatestSource struct {
	fakeSource
	lastOpen    int64
	latestCalls atomic.Int64
}

func (f *fakeLatestSource) FetchLatest(ctx context.Context, symbol, interval string, total int) ([]market.Candle, error) {
	f.latestCalls.Add(1)
	start := f.lastOpen - int64(total-1)*hourMs
	return gridCandles(start, total), nil
}

func TestLatestCandlesBackfills(t *testing.T) {
	src := &fakeLatestSource{lastOpen: 1_700_000_400_000}
	svc, store := newTestService(t, src)
	ctx := context.Background()

	// 本地为空时从数据源回填并落库
	got, err := svc.LatestCandles(ctx, "BTCUSDT", "1h", 50)
	require.NoError(t, err)
	require.Len(t, got, 50)
	assert.Equal(t, src.lastOpen, got[49].OpenTime)
	assert.Equal(t, int64(1), src.latestCalls.Load())

	m, err := store.Manifest(ctx, "BTCUSDT", "1h")
	require.NoError(t, err)
	assert.Equal(t, int64(50), m.Rows)

	// 第二次直接命中本地，不再访问数据源
	again, err := svc.LatestCandles(ctx, "BTCUSDT", "1h", 50)
	require.NoError(t, err)
	assert.Equal(t, got, again)
	assert.Equal(t, int64(1), src.latestCalls.Load())
}

func TestLatestCandlesNoLatestCapability(t *testing.T) {
	svc, _ := newTestService(t, &fakeSource{})
	got, err := svc.LatestCandles(context.Background(), "BTCUSDT", "1h", 20)
	assert.NoError(t, err)
	assert.Empty(t, got)
}

func TestJobsSnapshotIsolated(t *testing.T) {
	svc, _ := newTestService(t, &fakeSource{})
	start := int64(1_700_000_400_000)
	job, err := svc.SubmitFetch(FetchParams{Symbol: "BTCUSDT", Timeframe: "1h", Start: start, End: start + 2*hourMs})
	require.NoError(t, err)
	waitForJob(t, svc, job.ID)

	snaps := svc.JobsSnapshot()
	require.Len(t, snaps, 1)
	snaps[0].Status = "tampered"
	again, ok := svc.JobSnapshot(job.ID)
	require.True(t, ok)
	assert.NotEqual(t, "tampered", again.Status)
}
