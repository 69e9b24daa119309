package backtest

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// profitFactorCap 是没有亏损交易时的利润因子哨兵值，避免除零。
const profitFactorCap = 999.0

// profitFactor = 盈利总额 / 亏损总额绝对值。
// 无亏损但有盈利时取哨兵上限；无盈利时为 0。
func profitFactor(trades []Trade) float64 {
	grossWin, grossLoss := 0.0, 0.0
	for _, t := range trades {
		if t.PnL > 0 {
			grossWin += t.PnL
		} else {
			grossLoss -= t.PnL
		}
	}
	if grossLoss == 0 {
		if grossWin > 0 {
			return profitFactorCap
		}
		return 0
	}
	return grossWin / grossLoss
}

// sharpeRatio 基于资金曲线逐根收益率年化。收益序列与曲线等长，
// 首个收益记为 0；标准差为 0 时返回 0。
// 标准差取总体口径（除以 N）。
func sharpeRatio(curve []EquityPoint, periodsPerYear float64) float64 {
	if len(curve) < 2 {
		return 0
	}
	returns := make([]float64, len(curve))
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			continue
		}
		returns[i] = (curve[i].Equity - prev) / prev
	}
	mean := stat.Mean(returns, nil)
	stdDev := math.Sqrt(stat.MomentAbout(2, returns, mean, nil))
	if stdDev == 0 {
		return 0
	}
	return mean / stdDev * math.Sqrt(periodsPerYear)
}
