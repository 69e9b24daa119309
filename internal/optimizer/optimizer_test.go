package optimizer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratlab/internal/backtest"
	"stratlab/internal/market"
	"stratlab/internal/strategy"
)

func rsiBase() strategy.Config {
	return strategy.Config{
		Name:      "RSI 超卖反弹",
		Timeframe: "1h",
		EntryConditions: []strategy.Condition{{
			Indicator: strategy.IndicatorRSI,
			Params:    map[string]float64{"period": 14},
			Operator:  strategy.OpLess,
			Value:     30,
		}},
		ExitConditions: []strategy.Condition{{
			Indicator: strategy.IndicatorRSI,
			Params:    map[string]float64{"period": 14},
			Operator:  strategy.OpGreater,
			Value:     70,
		}},
	}
}

func syntheticCandles(seed int64, bars int) []market.Candle {
	return market.GenerateSeries(market.NewRand(seed), market.SyntheticOptions{
		StartTime: 1_700_000_000_000,
		Bars:      bars,
	})
}

func TestBuildVariations(t *testing.T) {
	opt := New(nil, Grids{})

	t.Run("RSI入场枚举两种比较符", func(t *testing.T) {
		vars := opt.buildVariations(rsiBase())
		// 风控开: 3×4×5×4×2；风控关: 1×1×5×4×2
		assert.Len(t, vars, 480+40)
	})

	t.Run("非RSI入场保留原比较符", func(t *testing.T) {
		base := rsiBase()
		base.EntryConditions[0].Indicator = strategy.IndicatorBollinger
		vars := opt.buildVariations(base)
		assert.Len(t, vars, 240+20)
	})

	t.Run("无入场条件退化为纯PnL网格", func(t *testing.T) {
		base := strategy.Config{Timeframe: "1h"}
		vars := opt.buildVariations(base)
		// 风控开: 3×4；风控关: 1
		require.Len(t, vars, 13)
		for _, v := range vars {
			assert.True(t, v.plainScore)
		}
	})

	t.Run("出场条件周期跟随入场", func(t *testing.T) {
		vars := opt.buildVariations(rsiBase())
		for _, v := range vars {
			entry := v.config.EntryConditions[0]
			exit := v.config.ExitConditions[0]
			assert.Equal(t, entry.Params["period"], exit.Params["period"])
		}
	})

	t.Run("变体不回写基础配置", func(t *testing.T) {
		base := rsiBase()
		vars := opt.buildVariations(base)
		vars[0].config.EntryConditions[0].Params["period"] = 999
		vars[0].config.EntryConditions[0].Value = 999
		assert.Equal(t, 14.0, base.EntryConditions[0].Params["period"])
		assert.Equal(t, 30.0, base.EntryConditions[0].Value)
	})
}

func TestOptimizeMinCandles(t *testing.T) {
	opt := New(nil, Grids{})
	results, err := opt.Optimize(context.Background(), rsiBase(), syntheticCandles(1, 30), nil)
	assert.NoError(t, err)
	assert.Nil(t, results)
}

func TestOptimizeDeterministic(t *testing.T) {
	opt := New(nil, Grids{})
	candles := syntheticCandles(42, 400)

	first, err := opt.Optimize(context.Background(), rsiBase(), candles, nil)
	require.NoError(t, err)
	second, err := opt.Optimize(context.Background(), rsiBase(), candles, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	known := map[string]bool{
		CategoryMostProfitable: true,
		CategoryHighestWinRate: true,
		CategoryMostActive:     true,
		CategoryPureSignal:     true,
		CategorySafety:         true,
	}
	for _, r := range first {
		assert.True(t, known[r.Category], "未知分类: %s", r.Category)
		assert.GreaterOrEqual(t, r.Stats.TotalTrades, DefaultGrids().MinTrades)
	}
}

func TestOptimizeLookbackWindow(t *testing.T) {
	opt := New(nil, Grids{})
	candles := syntheticCandles(42, 400)

	base := rsiBase()
	base.LookbackCandles = 200
	windowed, err := opt.Optimize(context.Background(), base, candles, nil)
	require.NoError(t, err)

	direct, err := opt.Optimize(context.Background(), rsiBase(), candles[200:], nil)
	require.NoError(t, err)

	require.Equal(t, len(direct), len(windowed))
	for i := range direct {
		assert.Equal(t, direct[i].Stats, windowed[i].Stats)
		assert.Equal(t, direct[i].Score, windowed[i].Score)
	}
}

func TestOptimizeCanceled(t *testing.T) {
	opt := New(nil, Grids{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := opt.Optimize(ctx, rsiBase(), syntheticCandles(42, 400), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOptimizeProgress(t *testing.T) {
	opt := New(nil, Grids{ProgressEvery: 10})
	var seen []float64
	_, err := opt.Optimize(context.Background(), rsiBase(), syntheticCandles(42, 300), func(p float64) {
		seen = append(seen, p)
	})
	require.NoError(t, err)
	require.NotEmpty(t, seen)
	for i, p := range seen {
		assert.Greater(t, p, 0.0)
		assert.LessOrEqual(t, p, 100.0)
		if i > 0 {
			assert.GreaterOrEqual(t, p, seen[i-1])
		}
	}
}

func TestScore(t *testing.T) {
	opt := New(nil, Grids{})

	t.Run("公式", func(t *testing.T) {
		stats := backtest.Result{TotalPnL: 100, ProfitFactor: 3, MaxDrawdown: 0.19}
		assert.InDelta(t, 100*4/0.2, opt.Score(stats), 1e-9)
	})

	t.Run("零回撤由ε兜底", func(t *testing.T) {
		stats := backtest.Result{TotalPnL: 50, ProfitFactor: 1}
		assert.InDelta(t, 50*2/0.01, opt.Score(stats), 1e-9)
	})
}

func TestCurate(t *testing.T) {
	opt := New(nil, Grids{})
	mk := func(pnl, winRate, pf float64, trades int, risk bool) Result {
		cfg := rsiBase()
		cfg.RiskParametersEnabled = risk
		return Result{
			Config: cfg,
			Stats: backtest.Result{
				TotalPnL:     pnl,
				WinRate:      winRate,
				ProfitFactor: pf,
				TotalTrades:  trades,
			},
		}
	}
	pool := []Result{
		mk(500, 0.5, 2.0, 10, true),  // 最高收益
		mk(100, 0.9, 1.5, 6, true),   // 最高胜率
		mk(50, 0.4, 1.2, 30, true),   // 最活跃
		mk(200, 0.6, 5.0, 4, false),  // 纯信号 + 最稳健
		mk(-20, 0.2, 0.5, 3, true),   // 垫底
	}

	winners := opt.curate(pool)
	byCategory := make(map[string]Result)
	for _, w := range winners {
		byCategory[w.Category] = w
	}

	assert.InDelta(t, 500.0, byCategory[CategoryMostProfitable].Stats.TotalPnL, 1e-9)
	assert.InDelta(t, 0.9, byCategory[CategoryHighestWinRate].Stats.WinRate, 1e-9)
	assert.Equal(t, 30, byCategory[CategoryMostActive].Stats.TotalTrades)
	assert.False(t, byCategory[CategoryPureSignal].Config.RiskParametersEnabled)
	assert.InDelta(t, 5.0, byCategory[CategorySafety].Stats.ProfitFactor, 1e-9)

	t.Run("空池无榜单", func(t *testing.T) {
		assert.Empty(t, opt.curate(nil))
	})

	t.Run("过滤后选不出的分类省略", func(t *testing.T) {
		small := []Result{mk(10, 0.5, 1.0, 2, true)}
		winners := opt.curate(small)
		for _, w := range winners {
			assert.NotEqual(t, CategoryHighestWinRate, w.Category)
			assert.NotEqual(t, CategoryPureSignal, w.Category)
			assert.NotEqual(t, CategorySafety, w.Category)
		}
	})
}
