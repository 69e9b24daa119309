package backtest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// klineStub 模拟 /api/v3/klines：整点网格行情，按 endTime+limit 取最近一段。
type klineStub struct {
	start int64 // 最早一根的开盘时间
	total int

	mu       sync.Mutex
	requests []int64 // 每次请求的 endTime（缺省记为 0）
}

func (k *klineStub) handler(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 500
	}
	endTime, _ := strconv.ParseInt(r.URL.Query().Get("endTime"), 10, 64)
	k.mu.Lock()
	k.requests = append(k.requests, endTime)
	k.mu.Unlock()

	var rows [][]interface{}
	for i := 0; i < k.total; i++ {
		open := k.start + int64(i)*hourMs
		if endTime > 0 && open > endTime {
			break
		}
		price := strconv.FormatFloat(100+float64(i), 'f', 2, 64)
		rows = append(rows, []interface{}{
			open, price, price, price, price, "1.0",
			open + hourMs - 1, "0", 0, "0", "0", "0",
		})
	}
	if len(rows) > limit {
		rows = rows[len(rows)-limit:]
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rows)
}

func (k *klineStub) requestLog() []int64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]int64(nil), k.requests...)
}

func newKlineStub(t *testing.T, total int) (*klineStub, *BinanceSource) {
	t.Helper()
	stub := &klineStub{start: 1_600_000_400_000, total: total}
	srv := httptest.NewServer(http.HandlerFunc(stub.handler))
	t.Cleanup(srv.Close)
	return stub, NewBinanceSource(srv.URL)
}

func TestFetchLatestSinglePage(t *testing.T) {
	stub, src := newKlineStub(t, 100)

	got, err := src.FetchLatest(context.Background(), "BTCUSDT", "1h", 10)
	require.NoError(t, err)
	require.Len(t, got, 10)
	// 截尾保留最新 10 根，升序
	assert.Equal(t, stub.start+int64(90)*hourMs, got[0].OpenTime)
	assert.Equal(t, stub.start+int64(99)*hourMs, got[9].OpenTime)
	assert.Len(t, stub.requestLog(), 1)
}

func TestFetchLatestPaginatesBackwards(t *testing.T) {
	stub, src := newKlineStub(t, 1500)

	got, err := src.FetchLatest(context.Background(), "BTCUSDT", "1h", 1500)
	require.NoError(t, err)
	require.Len(t, got, 1500)

	// 从旧到新拼接，无缺口无重复
	for i, c := range got {
		assert.Equal(t, stub.start+int64(i)*hourMs, c.OpenTime)
	}
	assert.Equal(t, 102.0, got[2].Close)

	// 第一页不带 endTime 取最新一段，第二页的 endTime 落在第一页
	// 最早一根之前，向历史翻页
	reqs := stub.requestLog()
	require.Len(t, reqs, 2)
	assert.Zero(t, reqs[0])
	assert.Equal(t, stub.start+int64(500)*hourMs-1, reqs[1])
}

func TestFetchLatestFewerAvailable(t *testing.T) {
	_, src := newKlineStub(t, 30)

	got, err := src.FetchLatest(context.Background(), "BTCUSDT", "1h", 2000)
	require.NoError(t, err)
	assert.Len(t, got, 30)
}
