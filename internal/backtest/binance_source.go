package backtest

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/cenkalti/backoff/v4"

	"stratlab/internal/market"
)

const binancePageLimit = 1000

// BinanceSource 基于 go-binance SDK 的现货 /api/v3/klines。
type BinanceSource struct {
	client *binance.Client
}

func NewBinanceSource(baseURL string) *BinanceSource {
	client := binance.NewClient("", "")
	if baseURL != "" {
		client.BaseURL = baseURL
	}
	client.HTTPClient.Timeout = 15 * time.Second
	return &BinanceSource{client: client}
}

func (b *BinanceSource) Name() string { return "binance" }

// Fetch 拉取单页 K 线。单页失败时按指数退避重试。
func (b *BinanceSource) Fetch(ctx context.Context, req FetchRequest) ([]market.Candle, error) {
	if req.Symbol == "" || req.Interval == "" {
		return nil, fmt.Errorf("symbol/interval 不能为空")
	}
	limit := req.Limit
	if limit <= 0 || limit > binancePageLimit {
		limit = binancePageLimit
	}

	var klines []*binance.Kline
	fetch := func() error {
		svc := b.client.NewKlinesService().
			Symbol(req.Symbol).
			Interval(req.Interval).
			Limit(limit)
		if req.Start > 0 {
			svc.StartTime(req.Start)
		}
		if req.End > 0 {
			svc.EndTime(req.End)
		}
		out, err := svc.Do(ctx)
		if err != nil {
			return err
		}
		klines = out
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(fetch, policy); err != nil {
		return nil, fmt.Errorf("binance 拉取失败: %w", err)
	}
	return convertKlines(klines), nil
}

// FetchLatest 拉取最近 total 根 K 线：每页最多 1000 根，
// 以 endTime 向历史翻页，按时间从旧到新拼接后截尾返回。
func (b *BinanceSource) FetchLatest(ctx context.Context, symbol, interval string, total int) ([]market.Candle, error) {
	if total <= 0 {
		total = 500
	}
	var all []market.Candle
	var endTime int64
	pages := (total + binancePageLimit - 1) / binancePageLimit
	for i := 0; i < pages; i++ {
		req := FetchRequest{Symbol: symbol, Interval: interval, Limit: binancePageLimit}
		if endTime > 0 {
			req.End = endTime - 1
		}
		chunk, err := b.Fetch(ctx, req)
		if err != nil {
			return nil, err
		}
		if len(chunk) == 0 {
			break
		}
		all = append(chunk, all...)
		endTime = chunk[0].OpenTime
		if len(chunk) < binancePageLimit {
			break
		}
	}
	if len(all) > total {
		all = all[len(all)-total:]
	}
	return all, nil
}

func convertKlines(klines []*binance.Kline) []market.Candle {
	out := make([]market.Candle, 0, len(klines))
	for _, k := range klines {
		if k == nil {
			continue
		}
		out = append(out, market.Candle{
			OpenTime:  k.OpenTime,
			CloseTime: k.CloseTime,
			Open:      parseFloat(k.Open),
			High:      parseFloat(k.High),
			Low:       parseFloat(k.Low),
			Close:     parseFloat(k.Close),
			Volume:    parseFloat(k.Volume),
		})
	}
	return out
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
