package strategy

// IndicatorKind 枚举条件可引用的指标。
type IndicatorKind string

const (
	IndicatorRSI        IndicatorKind = "RSI"
	IndicatorSMACross   IndicatorKind = "SMA_CROSS"
	IndicatorEMACross   IndicatorKind = "EMA_CROSS"
	IndicatorMACD       IndicatorKind = "MACD"
	IndicatorBollinger  IndicatorKind = "BOLLINGER"
	IndicatorPriceLevel IndicatorKind = "PRICE_LEVEL"
)

// Operator 枚举条件比较方式。
type Operator string

const (
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
	OpCrossesAbove Operator = "crosses_above"
	OpCrossesBelow Operator = "crosses_below"
)

// Side 表示策略声明的方向。当前模拟器仅做多（见 Config.Side 说明）。
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Condition 是单条入/出场规则：指标 + 参数 + 比较符 + 阈值。
// 值对象，创建后不再修改。
type Condition struct {
	Indicator IndicatorKind      `json:"indicator" yaml:"indicator"`
	Params    map[string]float64 `json:"params" yaml:"params"`
	Operator  Operator           `json:"operator" yaml:"operator"`
	Value     float64            `json:"value" yaml:"value"`
}

// Config 是一份完整的策略描述。引擎只读消费，优化器通过 Clone
// 派生变体，绝不回写原件。
//
// Side 字段随配置携带，但模拟器目前只会开多仓，无论声明方向。
type Config struct {
	Name                  string      `json:"name" yaml:"name"`
	Description           string      `json:"description" yaml:"description"`
	Timeframe             string      `json:"timeframe" yaml:"timeframe"`
	EntryConditions       []Condition `json:"entryConditions" yaml:"entryConditions"`
	ExitConditions        []Condition `json:"exitConditions" yaml:"exitConditions"`
	StopLossPct           float64     `json:"stopLossPct" yaml:"stopLossPct"`
	TakeProfitPct         float64     `json:"takeProfitPct" yaml:"takeProfitPct"`
	RiskPerTradePct       float64     `json:"riskPerTradePct" yaml:"riskPerTradePct"`
	RiskParametersEnabled bool        `json:"riskParametersEnabled" yaml:"riskParametersEnabled"`
	Side                  Side        `json:"side" yaml:"side"`
	LookbackCandles       int         `json:"lookbackCandles,omitempty" yaml:"lookbackCandles,omitempty"`
	LogicExplanation      string      `json:"logicExplanation,omitempty" yaml:"logicExplanation,omitempty"`
}

// Clone 深拷贝配置：条件切片与参数 map 均复制，变体之间互不别名。
func (c Config) Clone() Config {
	out := c
	out.EntryConditions = cloneConditions(c.EntryConditions)
	out.ExitConditions = cloneConditions(c.ExitConditions)
	return out
}

func cloneConditions(conds []Condition) []Condition {
	if conds == nil {
		return nil
	}
	out := make([]Condition, len(conds))
	for i, cond := range conds {
		out[i] = cond
		if cond.Params != nil {
			params := make(map[string]float64, len(cond.Params))
			for k, v := range cond.Params {
				params[k] = v
			}
			out[i].Params = params
		}
	}
	return out
}
