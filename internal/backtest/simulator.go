package backtest

import (
	"stratlab/internal/indicator"
	"stratlab/internal/market"
	"stratlab/internal/strategy"
)

const (
	// DefaultInitialCapital 为每次模拟的起始资金。
	DefaultInitialCapital = 10000.0
	// DefaultFeeRate 为单边手续费率（0.05%，开平各收一次）。
	DefaultFeeRate = 0.0005
	// DefaultWarmupBars 为主循环起始下标，跳过常用指标的暖机期。
	DefaultWarmupBars = 21

	// 风险提示阈值。
	warnDrawdownPct = 0.20
	warnMinTrades   = 5
	warnWinRate     = 0.40
	warnSharpe      = 1.0
)

// EngineConfig 控制模拟器的资金与费用参数，零值字段取默认。
type EngineConfig struct {
	InitialCapital float64
	FeeRate        float64
	WarmupBars     int
}

// Engine 是逐根推演的回测模拟器。无跨调用状态，
// 同一个 Engine 可被多个 goroutine 并发调用 Run。
type Engine struct {
	initialCapital float64
	feeRate        float64
	warmupBars     int
}

func NewEngine(cfg EngineConfig) *Engine {
	if cfg.InitialCapital <= 0 {
		cfg.InitialCapital = DefaultInitialCapital
	}
	if cfg.FeeRate < 0 {
		cfg.FeeRate = 0
	}
	if cfg.FeeRate == 0 {
		cfg.FeeRate = DefaultFeeRate
	}
	if cfg.WarmupBars <= 0 {
		cfg.WarmupBars = DefaultWarmupBars
	}
	return &Engine{
		initialCapital: cfg.InitialCapital,
		feeRate:        cfg.FeeRate,
		warmupBars:     cfg.WarmupBars,
	}
}

// Run 使用默认引擎参数执行一次回测。
func Run(cfg strategy.Config, candles []market.Candle) Result {
	return NewEngine(EngineConfig{}).Run(cfg, candles)
}

// Run 对序列做单次遍历：先判平仓（止损 → 止盈 → 出场条件 OR），
// 再判开仓（入场条件 AND），每根 K 线更新回撤与资金曲线。
// 方向上保留原始限制：仅开多仓。K 线不足暖机期时返回零值结果。
func (e *Engine) Run(cfg strategy.Config, candles []market.Candle) Result {
	if len(candles) <= e.warmupBars {
		return Result{
			Warnings: []string{"Insufficient data: series shorter than indicator warm-up"},
		}
	}

	equity := e.initialCapital
	cache := indicator.NewCache(market.Closes(candles))
	curve := make([]EquityPoint, 0, len(candles)-e.warmupBars+1)
	curve = append(curve, EquityPoint{Timestamp: candles[0].OpenTime, Equity: equity})

	var trades []Trade
	var open *Trade
	maxEquity := equity
	maxDrawdown := 0.0

	for i := e.warmupBars; i < len(candles); i++ {
		candle := candles[i]

		if open != nil {
			pnlPct := (candle.Close - open.EntryPrice) / open.EntryPrice

			exitReason := ""
			switch {
			case cfg.StopLossPct > 0 && pnlPct <= -cfg.StopLossPct:
				exitReason = ExitReasonStopLoss
			case cfg.TakeProfitPct > 0 && pnlPct >= cfg.TakeProfitPct:
				exitReason = ExitReasonTakeProfit
			default:
				for _, cond := range cfg.ExitConditions {
					if EvaluateCondition(cond, cache, i) {
						exitReason = ExitReasonSignal
						break
					}
				}
			}

			if exitReason != "" {
				exitPrice := candle.Close
				fee := open.EntryPrice*e.feeRate + exitPrice*e.feeRate
				rawPnL := (exitPrice - open.EntryPrice) * (equity / open.EntryPrice)
				realPnL := rawPnL - fee

				equity += realPnL
				open.ExitPrice = exitPrice
				open.ExitTime = candle.OpenTime
				open.PnL = realPnL
				open.PnLPct = pnlPct
				open.Status = TradeStatusClosed
				open.ExitReason = exitReason
				trades = append(trades, *open)
				open = nil
			}
		}

		if open == nil {
			signal := true
			for _, cond := range cfg.EntryConditions {
				if !EvaluateCondition(cond, cache, i) {
					signal = false
					break
				}
			}
			if signal {
				open = &Trade{
					EntryTime:  candle.OpenTime,
					EntryPrice: candle.Close,
					Status:     TradeStatusOpen,
				}
			}
		}

		if equity > maxEquity {
			maxEquity = equity
		}
		drawdown := (maxEquity - equity) / maxEquity
		if drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
		curve = append(curve, EquityPoint{Timestamp: candle.OpenTime, Equity: equity})
	}

	return e.summarize(cfg, trades, curve, maxDrawdown)
}

func (e *Engine) summarize(cfg strategy.Config, trades []Trade, curve []EquityPoint, maxDrawdown float64) Result {
	wins := 0
	for _, t := range trades {
		if t.PnL > 0 {
			wins++
		}
	}
	winRate := 0.0
	if len(trades) > 0 {
		winRate = float64(wins) / float64(len(trades))
	}
	finalEquity := curve[len(curve)-1].Equity
	sharpe := sharpeRatio(curve, periodsPerYear(cfg.Timeframe))

	var warnings []string
	if maxDrawdown > warnDrawdownPct {
		warnings = append(warnings, "High Risk: Max Drawdown exceeds 20%")
	}
	if len(trades) < warnMinTrades {
		warnings = append(warnings, "Unstable: Too few trades to be statistically significant")
	}
	if winRate < warnWinRate && sharpe < warnSharpe {
		warnings = append(warnings, "Poor Performance: Low win rate and risk-adjusted return")
	}

	return Result{
		TotalTrades:  len(trades),
		WinTrades:    wins,
		LossTrades:   len(trades) - wins,
		WinRate:      winRate,
		TotalPnL:     finalEquity - e.initialCapital,
		ProfitFactor: profitFactor(trades),
		MaxDrawdown:  maxDrawdown,
		SharpeRatio:  sharpe,
		EquityCurve:  curve,
		Trades:       trades,
		Warnings:     warnings,
	}
}

// periodsPerYear 由配置的周期标签推导年化系数；标签无法识别时
// 按小时线（24×365）处理。
func periodsPerYear(timeframe string) float64 {
	tf, err := ParseTimeframe(timeframe)
	if err != nil {
		return 24 * 365
	}
	return tf.PeriodsPerYear()
}
