package backtest

const (
	TradeStatusOpen   = "OPEN"
	TradeStatusClosed = "CLOSED"
)

// 平仓原因。
const (
	ExitReasonStopLoss   = "SL"
	ExitReasonTakeProfit = "TP"
	ExitReasonSignal     = "Signal"
)

// Trade 记录一笔交易。入场时创建，平仓后不再修改；
// 序列结束时仍未平仓的交易不计入统计（浮动盈亏直接丢弃）。
type Trade struct {
	EntryTime  int64   `json:"entryTime"`
	ExitTime   int64   `json:"exitTime,omitempty"`
	EntryPrice float64 `json:"entryPrice"`
	ExitPrice  float64 `json:"exitPrice,omitempty"`
	PnL        float64 `json:"pnl"`
	PnLPct     float64 `json:"pnlPct"`
	Status     string  `json:"status"`
	ExitReason string  `json:"exitReason,omitempty"`
}

// EquityPoint 是资金曲线上的一个点（每根 K 线一个）。
type EquityPoint struct {
	Timestamp int64   `json:"timestamp"`
	Equity    float64 `json:"equity"`
}

// Result 是一次完整回测的产出。同样的输入必然产出完全相同的 Result。
type Result struct {
	TotalTrades  int           `json:"totalTrades"`
	WinTrades    int           `json:"winTrades"`
	LossTrades   int           `json:"lossTrades"`
	WinRate      float64       `json:"winRate"`
	TotalPnL     float64       `json:"totalPnL"`
	ProfitFactor float64       `json:"profitFactor"`
	MaxDrawdown  float64       `json:"maxDrawdown"`
	SharpeRatio  float64       `json:"sharpeRatio"`
	EquityCurve  []EquityPoint `json:"equityCurve"`
	Trades       []Trade       `json:"trades"`
	Warnings     []string      `json:"warnings"`
}
