package config

import "strings"

// 默认值常量
const (
	defaultAppEnv         = "dev"
	defaultAppLogLevel    = "info"
	defaultAppHTTPAddr    = ":9991"
	defaultAppLogPath     = "/data/logs/stratlab.log"
	defaultDataRoot       = "/data/candles"
	defaultDataExchange   = "binance"
	defaultBinanceREST    = "https://api.binance.com"
	defaultDataRateLimit  = 1200
	defaultDataMaxBatch   = 1000
	defaultDataConcurrent = 2
	defaultEngineCapital  = 10000.0
	defaultEngineFeeRate  = 0.0005
	defaultEngineWarmup   = 21
	defaultRunsRoot       = "/data/runs"
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Data.applyDefaults(keys)
	c.Engine.applyDefaults(keys)
	c.Runs.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
	)
}

func (d *DataConfig) applyDefaults(keys keySet) {
	if d == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("data.root", &d.Root, defaultDataRoot),
		stringFieldDefault("data.exchange", &d.Exchange, defaultDataExchange),
		stringFieldDefault("data.binance_base_url", &d.BinanceBaseURL, defaultBinanceREST),
		fieldDefault{
			key:   "data.rate_limit_per_min",
			need:  func() bool { return d.RateLimitPerMin <= 0 },
			apply: func() { d.RateLimitPerMin = defaultDataRateLimit },
		},
		fieldDefault{
			key:   "data.max_batch",
			need:  func() bool { return d.MaxBatch <= 0 },
			apply: func() { d.MaxBatch = defaultDataMaxBatch },
		},
		fieldDefault{
			key:   "data.max_concurrent",
			need:  func() bool { return d.MaxConcurrent <= 0 },
			apply: func() { d.MaxConcurrent = defaultDataConcurrent },
		},
	)
}

func (e *EngineConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "engine.initial_capital",
			need:  func() bool { return e.InitialCapital <= 0 },
			apply: func() { e.InitialCapital = defaultEngineCapital },
		},
		fieldDefault{
			key:   "engine.fee_rate",
			need:  func() bool { return e.FeeRate == 0 },
			apply: func() { e.FeeRate = defaultEngineFeeRate },
		},
		fieldDefault{
			key:   "engine.warmup_bars",
			need:  func() bool { return e.WarmupBars <= 0 },
			apply: func() { e.WarmupBars = defaultEngineWarmup },
		},
	)
}

func (r *RunsConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("runs.root", &r.Root, defaultRunsRoot),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
