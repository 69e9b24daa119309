package config

import (
	"fmt"
	"strings"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Data.validate(); err != nil {
		return err
	}
	if err := c.Engine.validate(); err != nil {
		return err
	}
	if err := validateGrids(c); err != nil {
		return err
	}
	return nil
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func (a *AppConfig) validate() error {
	level := strings.ToLower(strings.TrimSpace(a.LogLevel))
	if level != "" && !validLogLevels[level] {
		return fmt.Errorf("app.log_level must be debug/info/warn/error, got %q", a.LogLevel)
	}
	if strings.TrimSpace(a.HTTPAddr) == "" {
		return fmt.Errorf("app.http_addr cannot be empty")
	}
	return nil
}

func (d *DataConfig) validate() error {
	if strings.TrimSpace(d.Root) == "" {
		return fmt.Errorf("data.root cannot be empty")
	}
	if d.RateLimitPerMin < 0 {
		return fmt.Errorf("data.rate_limit_per_min must be >= 0")
	}
	if d.MaxBatch < 0 || d.MaxBatch > 1000 {
		return fmt.Errorf("data.max_batch must be within [0, 1000]")
	}
	return nil
}

func (e *EngineConfig) validate() error {
	if e.InitialCapital < 0 {
		return fmt.Errorf("engine.initial_capital must be >= 0")
	}
	if e.FeeRate < 0 || e.FeeRate >= 0.1 {
		return fmt.Errorf("engine.fee_rate must be within [0, 0.1)")
	}
	if e.WarmupBars < 0 {
		return fmt.Errorf("engine.warmup_bars must be >= 0")
	}
	return nil
}

func validateGrids(c *Config) error {
	for _, sl := range c.Optimizer.StopLosses {
		if sl <= 0 || sl >= 1 {
			return fmt.Errorf("optimizer.stop_losses entries must be within (0, 1), got %v", sl)
		}
	}
	for _, tp := range c.Optimizer.TakeProfits {
		if tp <= 0 || tp >= 10 {
			return fmt.Errorf("optimizer.take_profits entries must be within (0, 10), got %v", tp)
		}
	}
	for _, p := range c.Optimizer.Periods {
		if p < 2 || p != float64(int(p)) {
			return fmt.Errorf("optimizer.periods entries must be integers >= 2, got %v", p)
		}
	}
	if c.Optimizer.MaxConcurrent < 0 {
		return fmt.Errorf("optimizer.max_concurrent must be >= 0")
	}
	if c.Optimizer.ScoreEpsilon < 0 {
		return fmt.Errorf("optimizer.score_epsilon must be >= 0")
	}
	return nil
}
