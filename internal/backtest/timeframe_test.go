package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseTimeframe(t *testing.T) {
	t.Run("支持的周期", func(t *testing.T) {
		tf, err := ParseTimeframe("1h")
		assert.NoError(t, err)
		assert.Equal(t, time.Hour, tf.Duration)
		assert.Equal(t, "1h", tf.SourceInterval)
	})

	t.Run("大小写与空白", func(t *testing.T) {
		tf, err := ParseTimeframe("  4H ")
		assert.NoError(t, err)
		assert.Equal(t, "4h", tf.Key)
	})

	t.Run("未知周期", func(t *testing.T) {
		_, err := ParseTimeframe("3m")
		assert.Error(t, err)
	})
}

func TestSupportedTimeframes(t *testing.T) {
	keys := SupportedTimeframes()
	assert.Equal(t, []string{"15m", "1d", "1h", "30m", "4h"}, keys)
}

func TestPeriodsPerYear(t *testing.T) {
	tf, _ := ParseTimeframe("1h")
	assert.InDelta(t, 24*365, tf.PeriodsPerYear(), 1e-9)

	tf, _ = ParseTimeframe("1d")
	assert.InDelta(t, 365, tf.PeriodsPerYear(), 1e-9)
}

func TestAlignRange(t *testing.T) {
	tf, _ := ParseTimeframe("1h")
	hour := int64(3600 * 1000)

	t.Run("对齐到网格", func(t *testing.T) {
		start, end := tf.AlignRange(hour+5, 3*hour+10)
		assert.Equal(t, hour, start)
		assert.Equal(t, 3*hour, end)
	})

	t.Run("顺序颠倒自动交换", func(t *testing.T) {
		start, end := tf.AlignRange(3*hour, hour)
		assert.Equal(t, hour, start)
		assert.Equal(t, 3*hour, end)
	})
}

func TestExpectedCandles(t *testing.T) {
	tf, _ := ParseTimeframe("1h")
	hour := int64(3600 * 1000)
	assert.Equal(t, int64(3), tf.ExpectedCandles(hour, 3*hour))
	assert.Equal(t, int64(1), tf.ExpectedCandles(hour, hour))
	assert.Equal(t, int64(0), tf.ExpectedCandles(3*hour, hour))
}
