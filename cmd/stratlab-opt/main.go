package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"stratlab/internal/backtest"
	slcfg "stratlab/internal/config"
	"stratlab/internal/logger"
	"stratlab/internal/market"
	"stratlab/internal/optimizer"
	"stratlab/internal/strategy"
)

func main() {
	var (
		cfgPath      = flag.String("config", "", "配置文件路径（可选，提供时使用其中的引擎与网格参数）")
		strategyPath = flag.String("strategy", "", "策略 JSON 文件路径")
		presetName   = flag.String("preset", "", "使用内置预设策略（按名称匹配，默认第一个）")
		symbol       = flag.String("symbol", "", "交易对，如 BTCUSDT（需要本地已有数据）")
		timeframe    = flag.String("timeframe", "", "K 线周期，如 1h（默认取策略配置）")
		limit        = flag.Int("limit", 500, "回测使用最近多少根 K 线")
		dataRoot     = flag.String("data", "", "本地 K 线目录（默认取配置 data.root）")
		synthetic    = flag.Bool("synthetic", false, "使用合成行情（无需本地数据）")
		seed         = flag.Int64("seed", 1, "合成行情种子")
		bars         = flag.Int("bars", 500, "合成行情根数")
		optimize     = flag.Bool("optimize", false, "执行网格搜索而非单次回测")
		reportPath   = flag.String("report", "", "单次回测后输出 HTML 报告到该路径")
		logLevel     = flag.String("log-level", "warn", "日志级别")
	)
	flag.Parse()
	logger.SetLevel(*logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg *slcfg.Config
	if *cfgPath != "" {
		loaded, err := slcfg.Load(*cfgPath)
		if err != nil {
			log.Fatalf("读取配置失败: %v", err)
		}
		cfg = loaded
	}

	base, err := loadStrategy(*strategyPath, *presetName)
	if err != nil {
		log.Fatalf("加载策略失败: %v", err)
	}
	tf := *timeframe
	if tf == "" {
		tf = base.Timeframe
	}
	if tf == "" {
		tf = "1h"
	}
	base.Timeframe = tf

	candles, err := loadCandles(ctx, cfg, *symbol, tf, *limit, *dataRoot, *synthetic, *seed, *bars)
	if err != nil {
		log.Fatalf("加载 K 线失败: %v", err)
	}
	fmt.Printf("策略: %s，周期: %s，K 线: %d 根\n\n", base.Name, tf, len(candles))

	engine := backtest.NewEngine(engineConfig(cfg))

	if *optimize {
		runOptimize(ctx, cfg, engine, base, candles)
		return
	}

	stats := engine.Run(base, candles)
	printStats(stats)
	if *reportPath != "" {
		if err := backtest.WriteReport(*reportPath, backtest.ReportInput{
			Title:  base.Name,
			Symbol: *symbol,
			Stats:  stats,
		}); err != nil {
			log.Fatalf("输出报告失败: %v", err)
		}
		fmt.Printf("\n报告已写入 %s\n", *reportPath)
	}
}

func engineConfig(cfg *slcfg.Config) backtest.EngineConfig {
	if cfg == nil {
		return backtest.EngineConfig{}
	}
	return backtest.EngineConfig{
		InitialCapital: cfg.Engine.InitialCapital,
		FeeRate:        cfg.Engine.FeeRate,
		WarmupBars:     cfg.Engine.WarmupBars,
	}
}

func loadStrategy(path, preset string) (strategy.Config, error) {
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return strategy.Config{}, err
		}
		return strategy.DecodeConfig(raw)
	}
	presets, err := strategy.Presets()
	if err != nil {
		return strategy.Config{}, err
	}
	if len(presets) == 0 {
		return strategy.Config{}, fmt.Errorf("无内置预设")
	}
	if preset == "" {
		return presets[0], nil
	}
	for _, p := range presets {
		if strings.EqualFold(p.Name, preset) {
			return p, nil
		}
	}
	names := make([]string, len(presets))
	for i, p := range presets {
		names[i] = p.Name
	}
	return strategy.Config{}, fmt.Errorf("未找到预设 %q，可用: %s", preset, strings.Join(names, ", "))
}

func loadCandles(ctx context.Context, cfg *slcfg.Config, symbol, tf string, limit int, dataRoot string, synthetic bool, seed int64, bars int) ([]market.Candle, error) {
	if synthetic {
		interval := int64(0)
		if parsed, err := backtest.ParseTimeframe(tf); err == nil {
			interval = parsed.Duration.Milliseconds()
		}
		return market.GenerateSeries(market.NewRand(seed), market.SyntheticOptions{
			StartTime: time.Now().Add(-time.Duration(bars)*time.Hour).UnixMilli(),
			Interval:  interval,
			Bars:      bars,
		}), nil
	}
	if symbol == "" {
		return nil, fmt.Errorf("非 synthetic 模式需要 -symbol")
	}
	root := dataRoot
	if root == "" && cfg != nil {
		root = cfg.Data.Root
	}
	if root == "" {
		return nil, fmt.Errorf("需要 -data 或配置中的 data.root")
	}
	store, err := backtest.NewStore(root)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	// 本地数据不足 limit 根时由服务向交易所回填。
	baseURL, ratePerMin, maxBatch := "", 0, 0
	if cfg != nil {
		baseURL = cfg.Data.BinanceBaseURL
		ratePerMin = cfg.Data.RateLimitPerMin
		maxBatch = cfg.Data.MaxBatch
	}
	svc, err := backtest.NewService(backtest.ServiceConfig{
		Store:           store,
		Sources:         map[string]backtest.CandleSource{"binance": backtest.NewBinanceSource(baseURL)},
		DefaultExchange: "binance",
		RateLimitPerMin: ratePerMin,
		MaxBatch:        maxBatch,
	})
	if err != nil {
		return nil, err
	}
	svc.SetContext(ctx)
	return svc.LatestCandles(ctx, symbol, tf, limit)
}

func runOptimize(ctx context.Context, cfg *slcfg.Config, engine *backtest.Engine, base strategy.Config, candles []market.Candle) {
	grids := optimizer.Grids{}
	if cfg != nil {
		grids = cfg.Optimizer
	}
	opt := optimizer.New(engine, grids)

	started := time.Now()
	shortlist, err := opt.Optimize(ctx, base, candles, func(percent float64) {
		fmt.Printf("\r优化进度: %5.1f%%", percent)
	})
	fmt.Println()
	if err != nil {
		log.Fatalf("优化中断: %v", err)
	}
	if len(shortlist) == 0 {
		fmt.Println("没有满足最小成交数要求的参数组合。")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"类别", "止损", "止盈", "周期", "阈值", "比较", "成交", "胜率", "PnL", "利润因子", "回撤", "评分"})
	for _, r := range shortlist {
		sl, tp := "-", "-"
		if r.Config.RiskParametersEnabled {
			sl = fmt.Sprintf("%.0f%%", r.Config.StopLossPct*100)
			tp = fmt.Sprintf("%.0f%%", r.Config.TakeProfitPct*100)
		}
		period, threshold, op := "-", "-", "-"
		if len(r.Config.EntryConditions) > 0 {
			cond := r.Config.EntryConditions[0]
			period = fmt.Sprintf("%d", cond.IntParam("period", 0))
			threshold = fmt.Sprintf("%g", cond.Value)
			op = string(cond.Operator)
		}
		t.AppendRow(table.Row{
			r.Category, sl, tp, period, threshold, op,
			r.Stats.TotalTrades,
			fmt.Sprintf("%.1f%%", r.Stats.WinRate*100),
			fmt.Sprintf("%.2f", r.Stats.TotalPnL),
			fmt.Sprintf("%.2f", r.Stats.ProfitFactor),
			fmt.Sprintf("%.1f%%", r.Stats.MaxDrawdown*100),
			fmt.Sprintf("%.2f", r.Score),
		})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
	fmt.Printf("\n耗时 %s\n", time.Since(started).Round(time.Millisecond))
}

func printStats(stats backtest.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"指标", "数值"})
	t.AppendRows([]table.Row{
		{"总成交", stats.TotalTrades},
		{"盈利/亏损", fmt.Sprintf("%d / %d", stats.WinTrades, stats.LossTrades)},
		{"胜率", fmt.Sprintf("%.1f%%", stats.WinRate*100)},
		{"总盈亏", fmt.Sprintf("%.2f", stats.TotalPnL)},
		{"利润因子", fmt.Sprintf("%.2f", stats.ProfitFactor)},
		{"最大回撤", fmt.Sprintf("%.1f%%", stats.MaxDrawdown*100)},
		{"夏普比率", fmt.Sprintf("%.2f", stats.SharpeRatio)},
	})
	t.SetStyle(table.StyleLight)
	t.Render()
	for _, w := range stats.Warnings {
		fmt.Printf("⚠ %s\n", w)
	}
}
