package optimizer

// 榜单分类标签。
const (
	CategoryMostProfitable = "💰 Most Profitable"
	CategoryHighestWinRate = "🎯 Highest Win Rate"
	CategoryMostActive     = "⚡ Most Active"
	CategoryPureSignal     = "🔓 Pure Signal (No SL/TP)"
	CategorySafety         = "🛡️ Safety & Reliability"
)

// curate 从结果池中挑选分类榜单。各分类在同一个池上独立选取：
// 同一个变体可以出现在多个分类下，选不出来的分类直接省略。
// 并列时取枚举顺序靠前者，保证重复运行产出相同榜单。
func (o *Optimizer) curate(pool []Result) []Result {
	var winners []Result
	add := func(r *Result, category string) {
		if r == nil {
			return
		}
		tagged := *r
		tagged.Category = category
		winners = append(winners, tagged)
	}

	add(pickBest(pool, nil, func(r Result) float64 { return r.Stats.TotalPnL }), CategoryMostProfitable)
	add(pickBest(pool,
		func(r Result) bool { return r.Stats.TotalTrades >= o.grids.WinRateMinTrades },
		func(r Result) float64 { return r.Stats.WinRate }), CategoryHighestWinRate)
	add(pickBest(pool, nil, func(r Result) float64 { return float64(r.Stats.TotalTrades) }), CategoryMostActive)
	add(pickBest(pool,
		func(r Result) bool { return !r.Config.RiskParametersEnabled },
		func(r Result) float64 { return r.Stats.TotalPnL }), CategoryPureSignal)
	add(pickBest(pool,
		func(r Result) bool { return r.Stats.TotalTrades >= o.grids.ProfitFactorMinTrades },
		func(r Result) float64 { return r.Stats.ProfitFactor }), CategorySafety)
	return winners
}

func pickBest(pool []Result, filter func(Result) bool, metric func(Result) float64) *Result {
	var best *Result
	var bestValue float64
	for i := range pool {
		if filter != nil && !filter(pool[i]) {
			continue
		}
		v := metric(pool[i])
		if best == nil || v > bestValue {
			best = &pool[i]
			bestValue = v
		}
	}
	return best
}
