package backtest

import (
	"stratlab/internal/indicator"
	"stratlab/internal/market"
	"stratlab/internal/strategy"
)

// EvaluateCondition 在指定下标处求值单条规则。
// 指标历史不足、指标/比较符组合未知时一律返回 false（fail closed），
// 保证模拟主循环不会因单条规则中断。
func EvaluateCondition(cond strategy.Condition, cache *indicator.Cache, index int) bool {
	price, ok := cache.Close(index)
	if !ok {
		return false
	}

	switch cond.Indicator {
	case strategy.IndicatorRSI:
		period := cond.IntParam("period", strategy.DefaultRSIPeriod)
		rsi, ok := cache.RSI(period, index)
		if !ok {
			return false
		}
		switch cond.Operator {
		case strategy.OpLess:
			return rsi < cond.Value
		case strategy.OpGreater:
			return rsi > cond.Value
		}

	case strategy.IndicatorSMACross:
		fast := cond.IntParam("fast", strategy.DefaultSMAFast)
		slow := cond.IntParam("slow", strategy.DefaultSMASlow)
		return evalCross(cond.Operator, index,
			func(i int) (float64, bool) { return cache.SMA(fast, i) },
			func(i int) (float64, bool) { return cache.SMA(slow, i) })

	case strategy.IndicatorEMACross:
		fast := cond.IntParam("fast", strategy.DefaultEMAFast)
		slow := cond.IntParam("slow", strategy.DefaultEMASlow)
		return evalCross(cond.Operator, index,
			func(i int) (float64, bool) { return cache.EMA(fast, i) },
			func(i int) (float64, bool) { return cache.EMA(slow, i) })

	case strategy.IndicatorMACD:
		// signal 参数随配置携带但不参与比较：对比的是原始 MACD 线。
		fast := cond.IntParam("fast", strategy.DefaultMACDFast)
		slow := cond.IntParam("slow", strategy.DefaultMACDSlow)
		macd, ok := cache.MACD(fast, slow, index)
		if !ok {
			return false
		}
		switch cond.Operator {
		case strategy.OpGreater:
			return macd > cond.Value
		case strategy.OpLess:
			return macd < cond.Value
		}

	case strategy.IndicatorBollinger:
		period := cond.IntParam("period", strategy.DefaultBollingerPeriod)
		mult := cond.Param("stdDev", strategy.DefaultBollingerStdDev)
		upper, lower, ok := cache.Bollinger(period, mult, index)
		if !ok {
			return false
		}
		switch cond.Operator {
		case strategy.OpLess:
			return price < lower
		case strategy.OpGreater:
			return price > upper
		}

	case strategy.IndicatorPriceLevel:
		period := cond.IntParam("period", strategy.DefaultPriceLevelPeriod)
		sma, ok := cache.SMA(period, index)
		if !ok {
			return false
		}
		switch cond.Operator {
		case strategy.OpGreater:
			return price > sma
		case strategy.OpLess:
			return price < sma
		}
	}
	return false
}

// evalCross 判定快慢线在 index-1 → index 之间是否发生交叉。
// 任意一个取值未定义即为 false。
func evalCross(op strategy.Operator, index int, fast, slow func(int) (float64, bool)) bool {
	curFast, ok := fast(index)
	if !ok {
		return false
	}
	curSlow, ok := slow(index)
	if !ok {
		return false
	}
	prevFast, ok := fast(index - 1)
	if !ok {
		return false
	}
	prevSlow, ok := slow(index - 1)
	if !ok {
		return false
	}
	switch op {
	case strategy.OpCrossesAbove:
		return prevFast < prevSlow && curFast > curSlow
	case strategy.OpCrossesBelow:
		return prevFast > prevSlow && curFast < curSlow
	}
	return false
}

// Evaluate 是不带缓存的便捷入口（每次调用重建收盘价缓存）。
func Evaluate(cond strategy.Condition, candles []market.Candle, index int) bool {
	return EvaluateCondition(cond, indicator.NewCache(market.Closes(candles)), index)
}
