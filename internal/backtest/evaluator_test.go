package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"stratlab/internal/market"
	"stratlab/internal/strategy"
)

func candlesFromCloses(closes []float64) []market.Candle {
	out := make([]market.Candle, len(closes))
	for i, c := range closes {
		ts := int64(i) * 3600 * 1000
		out[i] = market.Candle{
			OpenTime:  ts,
			CloseTime: ts + 3600*1000 - 1,
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    1,
		}
	}
	return out
}

func TestEvaluateRSI(t *testing.T) {
	rising := candlesFromCloses([]float64{1, 2, 3, 4, 5, 6, 7, 8})
	cond := strategy.Condition{
		Indicator: strategy.IndicatorRSI,
		Params:    map[string]float64{"period": 5},
		Operator:  strategy.OpGreater,
		Value:     90,
	}

	t.Run("大于阈值", func(t *testing.T) {
		assert.True(t, Evaluate(cond, rising, 7))
	})

	t.Run("小于比较符", func(t *testing.T) {
		less := cond
		less.Operator = strategy.OpLess
		less.Value = 50
		assert.False(t, Evaluate(less, rising, 7))
	})

	t.Run("历史不足返回false", func(t *testing.T) {
		assert.False(t, Evaluate(cond, rising, 4))
	})

	t.Run("非法比较符返回false", func(t *testing.T) {
		bad := cond
		bad.Operator = strategy.OpCrossesAbove
		assert.False(t, Evaluate(bad, rising, 7))
	})

	t.Run("缺省周期走默认值", func(t *testing.T) {
		noParams := strategy.Condition{
			Indicator: strategy.IndicatorRSI,
			Operator:  strategy.OpGreater,
			Value:     90,
		}
		long := candlesFromCloses(make([]float64, 20))
		for i := range long {
			long[i].Close = float64(i + 1)
		}
		// period 默认 14，index 14 起有定义
		assert.True(t, Evaluate(noParams, long, 15))
		assert.False(t, Evaluate(noParams, long, 13))
	})
}

func TestEvaluateSMACross(t *testing.T) {
	// fast=2, slow=3：前段下行后段急拉，在最后一根发生上穿。
	candles := candlesFromCloses([]float64{10, 9, 8, 7, 20})
	cond := strategy.Condition{
		Indicator: strategy.IndicatorSMACross,
		Params:    map[string]float64{"fast": 2, "slow": 3},
		Operator:  strategy.OpCrossesAbove,
	}

	assert.True(t, Evaluate(cond, candles, 4))
	assert.False(t, Evaluate(cond, candles, 3))

	below := cond
	below.Operator = strategy.OpCrossesBelow
	assert.False(t, Evaluate(below, candles, 4))
}

func TestEvaluateEMACross(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		if i < 30 {
			closes[i] = 100 - float64(i)*0.5
		} else {
			closes[i] = 85 + float64(i-30)*3
		}
	}
	candles := candlesFromCloses(closes)
	cond := strategy.Condition{
		Indicator: strategy.IndicatorEMACross,
		Params:    map[string]float64{"fast": 5, "slow": 15},
		Operator:  strategy.OpCrossesAbove,
	}

	crossed := false
	for i := 15; i < len(candles); i++ {
		if Evaluate(cond, candles, i) {
			crossed = true
			break
		}
	}
	assert.True(t, crossed, "急拉后快线应当上穿慢线")
}

func TestEvaluateBollinger(t *testing.T) {
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 100
	}
	closes[24] = 120
	candles := candlesFromCloses(closes)

	breakout := strategy.Condition{
		Indicator: strategy.IndicatorBollinger,
		Params:    map[string]float64{"period": 20, "stdDev": 2},
		Operator:  strategy.OpGreater,
	}
	assert.True(t, Evaluate(breakout, candles, 24))
	assert.False(t, Evaluate(breakout, candles, 23))

	t.Run("常数序列两侧均为false", func(t *testing.T) {
		flat := candlesFromCloses(func() []float64 {
			out := make([]float64, 25)
			for i := range out {
				out[i] = 100
			}
			return out
		}())
		assert.False(t, Evaluate(breakout, flat, 24))
		under := breakout
		under.Operator = strategy.OpLess
		assert.False(t, Evaluate(under, flat, 24))
	})
}

func TestEvaluatePriceLevel(t *testing.T) {
	closes := []float64{100, 100, 100, 100, 100, 110}
	candles := candlesFromCloses(closes)
	cond := strategy.Condition{
		Indicator: strategy.IndicatorPriceLevel,
		Params:    map[string]float64{"period": 5},
		Operator:  strategy.OpGreater,
	}
	assert.True(t, Evaluate(cond, candles, 5))
	assert.False(t, Evaluate(cond, candles, 4))
}

func TestEvaluateMACD(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	candles := candlesFromCloses(closes)
	cond := strategy.Condition{
		Indicator: strategy.IndicatorMACD,
		Params:    map[string]float64{"fast": 12, "slow": 26, "signal": 9},
		Operator:  strategy.OpGreater,
		Value:     0,
	}
	// 持续上行时快 EMA 高于慢 EMA，MACD > 0。
	assert.True(t, Evaluate(cond, candles, 50))
	assert.False(t, Evaluate(cond, candles, 20))
}

func TestEvaluateUnknownIndicator(t *testing.T) {
	candles := candlesFromCloses([]float64{1, 2, 3})
	cond := strategy.Condition{Indicator: "VWAP", Operator: strategy.OpGreater}
	assert.False(t, Evaluate(cond, candles, 2))
}
