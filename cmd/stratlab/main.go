package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"stratlab/internal/backtest"
	slcfg "stratlab/internal/config"
	"stratlab/internal/logger"
	"stratlab/internal/optimizer"
	backtesthttp "stratlab/internal/transport/http/backtest"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := os.Getenv("STRATLAB_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}

	watcher, err := slcfg.Watch(cfgPath)
	if err != nil {
		log.Fatalf("读取配置失败: %v", err)
	}
	cfg := watcher.Current()

	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		log.Fatalf("初始化日志文件失败: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("✓ 配置加载成功（环境=%s，数据目录=%s）", cfg.App.Env, cfg.Data.Root)

	store, err := backtest.NewStore(cfg.Data.Root)
	if err != nil {
		log.Fatalf("初始化 K 线存储失败: %v", err)
	}
	defer store.Close()

	svc, err := backtest.NewService(backtest.ServiceConfig{
		Store: store,
		Sources: map[string]backtest.CandleSource{
			"binance": backtest.NewBinanceSource(cfg.Data.BinanceBaseURL),
		},
		DefaultExchange: cfg.Data.Exchange,
		RateLimitPerMin: cfg.Data.RateLimitPerMin,
		MaxBatch:        cfg.Data.MaxBatch,
		MaxConcurrent:   cfg.Data.MaxConcurrent,
	})
	if err != nil {
		log.Fatalf("初始化数据服务失败: %v", err)
	}
	svc.SetContext(ctx)

	runs, err := backtest.NewRunStore(cfg.Runs.Root)
	if err != nil {
		log.Fatalf("初始化结果存储失败: %v", err)
	}
	defer runs.Close()

	engine := backtest.NewEngine(backtest.EngineConfig{
		InitialCapital: cfg.Engine.InitialCapital,
		FeeRate:        cfg.Engine.FeeRate,
		WarmupBars:     cfg.Engine.WarmupBars,
	})

	server, err := backtesthttp.NewServer(backtesthttp.Config{
		Addr:      cfg.App.HTTPAddr,
		Svc:       svc,
		Engine:    engine,
		Optimizer: optimizer.New(engine, cfg.Optimizer),
		Runs:      runs,
	})
	if err != nil {
		log.Fatalf("初始化 HTTP 服务失败: %v", err)
	}
	watcher.Subscribe(func(next *slcfg.Config) {
		server.UpdateOptimizer(optimizer.New(engine, next.Optimizer))
	})

	logger.Infof("HTTP 服务启动: %s", cfg.App.HTTPAddr)
	if err := server.Start(ctx); err != nil {
		log.Fatalf("运行失败: %v", err)
	}
	logger.Infof("服务已退出")
}

func setupLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}
