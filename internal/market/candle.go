package market

import (
	"fmt"
	"sort"
)

// Candle 表示单根 K 线（OHLCV，时间为 Unix 毫秒）。
type Candle struct {
	OpenTime  int64   `json:"open_time"`
	CloseTime int64   `json:"close_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// Closes 抽取收盘价序列，供指标计算使用。
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// SortByOpenTime 原地按开盘时间升序排序。
func SortByOpenTime(candles []Candle) {
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].OpenTime < candles[j].OpenTime
	})
}

// ValidateSeries 校验序列结构：时间严格递增、价格为正、高低价包住开收价。
// 结构性错误属于边界契约问题，直接返回 error。
func ValidateSeries(candles []Candle) error {
	for i, c := range candles {
		if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
			return fmt.Errorf("candle %d: 价格必须为正", i)
		}
		if c.High < c.Open || c.High < c.Close {
			return fmt.Errorf("candle %d: high 低于 open/close", i)
		}
		if c.Low > c.Open || c.Low > c.Close {
			return fmt.Errorf("candle %d: low 高于 open/close", i)
		}
		if c.Volume < 0 {
			return fmt.Errorf("candle %d: volume 不能为负", i)
		}
		if i > 0 && c.OpenTime <= candles[i-1].OpenTime {
			return fmt.Errorf("candle %d: open_time 必须严格递增", i)
		}
	}
	return nil
}
