package strategy

// 指标参数默认值集中在这里解析，避免在求值器里散落 fallback。
const (
	DefaultRSIPeriod        = 14
	DefaultSMAFast          = 9
	DefaultSMASlow          = 21
	DefaultEMAFast          = 12
	DefaultEMASlow          = 26
	DefaultMACDFast         = 12
	DefaultMACDSlow         = 26
	DefaultBollingerPeriod  = 20
	DefaultBollingerStdDev  = 2.0
	DefaultPriceLevelPeriod = 20
)

// Param 返回命名参数，缺失或非正时取 def。
func (c Condition) Param(name string, def float64) float64 {
	if c.Params == nil {
		return def
	}
	if v, ok := c.Params[name]; ok && v > 0 {
		return v
	}
	return def
}

// IntParam 与 Param 相同，但取整（周期类参数）。
func (c Condition) IntParam(name string, def int) int {
	return int(c.Param(name, float64(def)))
}

// SetParam 写入命名参数（优化器派生变体时使用，调用方需先 Clone）。
func (c *Condition) SetParam(name string, v float64) {
	if c.Params == nil {
		c.Params = make(map[string]float64, 1)
	}
	c.Params[name] = v
}
