package optimizer

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"stratlab/internal/backtest"
	"stratlab/internal/market"
	"stratlab/internal/strategy"
)

// Result 是单个网格点的评估产出。Category 仅在入选榜单时填写。
type Result struct {
	Config   strategy.Config `json:"config"`
	Stats    backtest.Result `json:"stats"`
	Score    float64         `json:"score"`
	Category string          `json:"category,omitempty"`
}

// Grids 定义参数搜索空间与评分策略。所有常量均可由配置覆盖。
type Grids struct {
	StopLosses  []float64 `toml:"stop_losses"`
	TakeProfits []float64 `toml:"take_profits"`
	Periods     []float64 `toml:"periods"`
	Thresholds  []float64 `toml:"thresholds"`

	ScoreEpsilon          float64 `toml:"score_epsilon"`
	MinTrades             int     `toml:"min_trades"`
	WinRateMinTrades      int     `toml:"win_rate_min_trades"`
	ProfitFactorMinTrades int     `toml:"profit_factor_min_trades"`
	MinCandles            int     `toml:"min_candles"`
	MaxConcurrent         int     `toml:"max_concurrent"`
	ProgressEvery         int     `toml:"progress_every"`
}

// DefaultGrids 返回默认搜索空间。
func DefaultGrids() Grids {
	return Grids{
		StopLosses:            []float64{0.01, 0.02, 0.03},
		TakeProfits:           []float64{0.03, 0.05, 0.10, 0.20},
		Periods:               []float64{7, 10, 14, 21, 28},
		Thresholds:            []float64{25, 30, 70, 75},
		ScoreEpsilon:          0.01,
		MinTrades:             2,
		WinRateMinTrades:      5,
		ProfitFactorMinTrades: 3,
		MinCandles:            50,
		MaxConcurrent:         4,
		ProgressEvery:         40,
	}
}

func (g Grids) withDefaults() Grids {
	def := DefaultGrids()
	if len(g.StopLosses) == 0 {
		g.StopLosses = def.StopLosses
	}
	if len(g.TakeProfits) == 0 {
		g.TakeProfits = def.TakeProfits
	}
	if len(g.Periods) == 0 {
		g.Periods = def.Periods
	}
	if len(g.Thresholds) == 0 {
		g.Thresholds = def.Thresholds
	}
	if g.ScoreEpsilon <= 0 {
		g.ScoreEpsilon = def.ScoreEpsilon
	}
	if g.MinTrades <= 0 {
		g.MinTrades = def.MinTrades
	}
	if g.WinRateMinTrades <= 0 {
		g.WinRateMinTrades = def.WinRateMinTrades
	}
	if g.ProfitFactorMinTrades <= 0 {
		g.ProfitFactorMinTrades = def.ProfitFactorMinTrades
	}
	if g.MinCandles <= 0 {
		g.MinCandles = def.MinCandles
	}
	if g.MaxConcurrent <= 0 {
		g.MaxConcurrent = def.MaxConcurrent
	}
	if g.ProgressEvery <= 0 {
		g.ProgressEvery = def.ProgressEvery
	}
	return g
}

// Optimizer 对基础策略做确定性网格搜索并给出分类榜单。
type Optimizer struct {
	engine *backtest.Engine
	grids  Grids
}

func New(engine *backtest.Engine, grids Grids) *Optimizer {
	if engine == nil {
		engine = backtest.NewEngine(backtest.EngineConfig{})
	}
	return &Optimizer{engine: engine, grids: grids.withDefaults()}
}

// variation 是一个待评估的网格点。plainScore 标记仅按 PnL 计分
// （基础策略没有入场条件时的退化分支）。
type variation struct {
	config     strategy.Config
	plainScore bool
}

// buildVariations 枚举整个搜索空间，顺序固定：
// 风控开关 × 止损 × 止盈 ×（若存在首个入场条件）周期 × 阈值 × 比较符。
// 每个网格点深拷贝基础配置，变体之间绝不共享可变状态。
func (o *Optimizer) buildVariations(base strategy.Config) []variation {
	var out []variation
	firstCond := len(base.EntryConditions) > 0

	for _, riskEnabled := range []bool{true, false} {
		slRange := o.grids.StopLosses
		tpRange := o.grids.TakeProfits
		if !riskEnabled {
			slRange = []float64{0}
			tpRange = []float64{0}
		}
		for _, sl := range slRange {
			for _, tp := range tpRange {
				if !firstCond {
					v := base.Clone()
					v.RiskParametersEnabled = riskEnabled
					v.StopLossPct = sl
					v.TakeProfitPct = tp
					out = append(out, variation{config: v, plainScore: true})
					continue
				}
				ops := []strategy.Operator{base.EntryConditions[0].Operator}
				if base.EntryConditions[0].Indicator == strategy.IndicatorRSI {
					ops = []strategy.Operator{strategy.OpLess, strategy.OpGreater}
				}
				for _, p := range o.grids.Periods {
					for _, val := range o.grids.Thresholds {
						for _, op := range ops {
							v := base.Clone()
							v.RiskParametersEnabled = riskEnabled
							v.StopLossPct = sl
							v.TakeProfitPct = tp

							cond := &v.EntryConditions[0]
							cond.SetParam("period", p)
							cond.Value = val
							cond.Operator = op

							// 同指标的首个出场条件保持周期同步。
							if len(v.ExitConditions) > 0 && v.ExitConditions[0].Indicator == cond.Indicator {
								v.ExitConditions[0].SetParam("period", p)
							}
							out = append(out, variation{config: v})
						}
					}
				}
			}
		}
	}
	return out
}

// Optimize 执行网格搜索并返回分类榜单。
//
// 网格点之间相互独立，按 MaxConcurrent 并发评估；输入序列只读共享，
// 每个 worker 持有自己的配置副本。取消信号在网格点边界检查：
// 取消后仍返回已完成部分的榜单，同时附带 ctx.Err() 供调用方判断。
// onProgress（可选）收到单调递增的完成百分比。
func (o *Optimizer) Optimize(ctx context.Context, base strategy.Config, candles []market.Candle, onProgress func(percent float64)) ([]Result, error) {
	testData := candles
	if base.LookbackCandles > 0 && base.LookbackCandles < len(candles) {
		testData = candles[len(candles)-base.LookbackCandles:]
	}
	if len(testData) < o.grids.MinCandles {
		return nil, nil
	}

	variations := o.buildVariations(base)
	results := make([]Result, len(variations))
	done := make([]bool, len(variations))

	var progressMu sync.Mutex
	completed := 0
	reportProgress := func(force bool) {
		if onProgress == nil {
			return
		}
		progressMu.Lock()
		completed++
		if force || completed%o.grids.ProgressEvery == 0 {
			onProgress(float64(completed) / float64(len(variations)) * 100)
		}
		progressMu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.grids.MaxConcurrent)
	for idx, v := range variations {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			stats := o.engine.Run(v.config, testData)
			score := stats.TotalPnL
			if !v.plainScore {
				score = o.Score(stats)
			}
			results[idx] = Result{Config: v.config, Stats: stats, Score: score}
			done[idx] = true
			reportProgress(idx == len(variations)-1)
			return nil
		})
	}
	_ = g.Wait()

	pool := make([]Result, 0, len(results))
	for i, r := range results {
		if !done[i] {
			continue
		}
		if r.Stats.TotalTrades < o.grids.MinTrades {
			continue
		}
		pool = append(pool, r)
	}
	return o.curate(pool), ctx.Err()
}

// Score 是综合评分：PnL ×（利润因子+1）/（最大回撤+ε）。
// ε 防止零回撤除零。
func (o *Optimizer) Score(stats backtest.Result) float64 {
	return stats.TotalPnL * (stats.ProfitFactor + 1) / (stats.MaxDrawdown + o.grids.ScoreEpsilon)
}
