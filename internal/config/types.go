package config

import (
	"strings"

	"stratlab/internal/optimizer"
)

// Config 是 stratlab 的主配置载体。
type Config struct {
	App       AppConfig       `toml:"app"`
	Data      DataConfig      `toml:"data"`
	Engine    EngineConfig    `toml:"engine"`
	Optimizer optimizer.Grids `toml:"optimizer"`
	Runs      RunsConfig      `toml:"runs"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// DataConfig 描述历史 K 线的本地缓存与远端数据源。
type DataConfig struct {
	Root            string `toml:"root"`
	Exchange        string `toml:"exchange"`
	BinanceBaseURL  string `toml:"binance_base_url"`
	RateLimitPerMin int    `toml:"rate_limit_per_min"`
	MaxBatch        int    `toml:"max_batch"`
	MaxConcurrent   int    `toml:"max_concurrent"`
}

// EngineConfig 控制回测模拟器的资金与费用参数。
// 零值字段由引擎侧取默认（见 backtest 包）。
type EngineConfig struct {
	InitialCapital float64 `toml:"initial_capital"`
	FeeRate        float64 `toml:"fee_rate"`
	WarmupBars     int     `toml:"warmup_bars"`
}

// RunsConfig 指定回测/优化历史记录的存放目录。
type RunsConfig struct {
	Root string `toml:"root"`
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
