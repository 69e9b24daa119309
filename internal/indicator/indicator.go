package indicator

import "math"

// Cache 以收盘价序列为单位缓存指标中间结果。EMA 在首次使用某个周期时
// 一次性前向递推整条序列，之后按下标查表，整段回测摊销 O(n)。
// Cache 与单次回测绑定，不做并发保护。
type Cache struct {
	closes []float64
	ema    map[int][]float64
}

func NewCache(closes []float64) *Cache {
	return &Cache{
		closes: closes,
		ema:    make(map[int][]float64),
	}
}

func (c *Cache) inRange(index int) bool {
	return index >= 0 && index < len(c.closes)
}

// Close 返回下标处的收盘价。
func (c *Cache) Close(index int) (float64, bool) {
	if !c.inRange(index) {
		return 0, false
	}
	return c.closes[index], true
}

// SMA 返回 index（含）往前 period 根的收盘价算术平均。
// 历史不足时第二个返回值为 false。
func (c *Cache) SMA(period, index int) (float64, bool) {
	if period <= 0 || !c.inRange(index) || index < period-1 {
		return 0, false
	}
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += c.closes[index-i]
	}
	return sum / float64(period), true
}

// EMA 返回指数移动平均：k = 2/(period+1)，在 index == period-1 处以
// SMA 为种子，此前未定义。
func (c *Cache) EMA(period, index int) (float64, bool) {
	if period <= 0 || !c.inRange(index) || index < period-1 {
		return 0, false
	}
	series, ok := c.ema[period]
	if !ok {
		series = c.fillEMA(period)
		c.ema[period] = series
	}
	v := series[index]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

func (c *Cache) fillEMA(period int) []float64 {
	series := make([]float64, len(c.closes))
	for i := range series {
		series[i] = math.NaN()
	}
	if len(c.closes) < period {
		return series
	}
	seed, ok := c.SMA(period, period-1)
	if !ok {
		return series
	}
	series[period-1] = seed
	k := 2 / float64(period+1)
	for i := period; i < len(c.closes); i++ {
		series[i] = c.closes[i]*k + series[i-1]*(1-k)
	}
	return series
}

// RSI 采用窗口内涨跌幅简单平均（非 Wilder 平滑）。avgLoss 为 0 时返回 100。
// index < period 时未定义。
func (c *Cache) RSI(period, index int) (float64, bool) {
	if period <= 0 || !c.inRange(index) || index < period {
		return 0, false
	}
	gains, losses := 0.0, 0.0
	for i := 1; i <= period; i++ {
		diff := c.closes[index-period+i] - c.closes[index-period+i-1]
		if diff > 0 {
			gains += diff
		} else {
			losses -= diff
		}
	}
	if losses == 0 {
		return 100, true
	}
	rs := gains / losses
	return 100 - 100/(1+rs), true
}

// MACD 返回快慢 EMA 之差。任一 EMA 未定义则整体未定义。
// signal 平滑参数由上层携带但不参与本值计算。
func (c *Cache) MACD(fast, slow, index int) (float64, bool) {
	emaFast, ok := c.EMA(fast, index)
	if !ok {
		return 0, false
	}
	emaSlow, ok := c.EMA(slow, index)
	if !ok {
		return 0, false
	}
	return emaFast - emaSlow, true
}

// Bollinger 返回上下轨：SMA ± mult × 总体标准差（窗口同 SMA）。
func (c *Cache) Bollinger(period int, mult float64, index int) (upper, lower float64, ok bool) {
	sma, ok := c.SMA(period, index)
	if !ok {
		return 0, 0, false
	}
	sumSq := 0.0
	for i := 0; i < period; i++ {
		d := c.closes[index-i] - sma
		sumSq += d * d
	}
	stdDev := math.Sqrt(sumSq / float64(period))
	return sma + mult*stdDev, sma - mult*stdDev, true
}
