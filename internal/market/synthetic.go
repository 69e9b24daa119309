package market

import "math"

// Rand 是确定性伪随机序列（正弦散列），种子由调用方持有，
// 保证相同种子生成完全一致的样本数据。
type Rand struct {
	seed float64
}

func NewRand(seed int64) *Rand {
	return &Rand{seed: float64(seed)}
}

// Float 返回 [0,1) 区间内的下一个伪随机数。
func (r *Rand) Float() float64 {
	x := math.Sin(r.seed) * 10000
	r.seed++
	return x - math.Floor(x)
}

// SyntheticOptions 控制合成行情的形态。
type SyntheticOptions struct {
	StartTime  int64   // Unix 毫秒；首根 K 线的开盘时间
	Interval   int64   // 毫秒；默认 1 小时
	Bars       int     // 根数
	StartPrice float64 // 默认 42000
	Volatility float64 // 默认 0.015
}

// GenerateSeries 以随机游走方式合成 K 线序列。仅用于演示与测试，
// 不依赖时钟或全局状态。
func GenerateSeries(rng *Rand, opts SyntheticOptions) []Candle {
	if opts.Interval <= 0 {
		opts.Interval = 3600 * 1000
	}
	if opts.StartPrice <= 0 {
		opts.StartPrice = 42000
	}
	if opts.Volatility <= 0 {
		opts.Volatility = 0.015
	}
	price := opts.StartPrice
	out := make([]Candle, 0, opts.Bars)
	for i := 0; i < opts.Bars; i++ {
		ts := opts.StartTime + int64(i)*opts.Interval
		change := (rng.Float() - 0.5) * opts.Volatility * price
		open := price
		close := price + change
		high := math.Max(open, close) + rng.Float()*price*0.005
		low := math.Min(open, close) - rng.Float()*price*0.005
		volume := 1000 + rng.Float()*5000
		out = append(out, Candle{
			OpenTime:  ts,
			CloseTime: ts + opts.Interval - 1,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    volume,
		})
		price = close
	}
	return out
}
