package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRandDeterministic(t *testing.T) {
	a := NewRand(42)
	b := NewRand(42)
	for i := 0; i < 100; i++ {
		va := a.Float()
		assert.Equal(t, va, b.Float())
		assert.GreaterOrEqual(t, va, 0.0)
		assert.Less(t, va, 1.0)
	}
}

func TestGenerateSeries(t *testing.T) {
	opts := SyntheticOptions{StartTime: 1_700_000_000_000, Bars: 300}

	t.Run("同种子产出相同序列", func(t *testing.T) {
		s1 := GenerateSeries(NewRand(7), opts)
		s2 := GenerateSeries(NewRand(7), opts)
		assert.Equal(t, s1, s2)
	})

	t.Run("不同种子产出不同序列", func(t *testing.T) {
		s1 := GenerateSeries(NewRand(7), opts)
		s2 := GenerateSeries(NewRand(8), opts)
		assert.NotEqual(t, s1, s2)
	})

	t.Run("结构合法", func(t *testing.T) {
		series := GenerateSeries(NewRand(7), opts)
		assert.Len(t, series, 300)
		assert.NoError(t, ValidateSeries(series))
		assert.Equal(t, opts.StartTime, series[0].OpenTime)
		assert.Equal(t, series[0].OpenTime+3600*1000, series[1].OpenTime)
	})
}

func TestCloses(t *testing.T) {
	candles := []Candle{{Close: 1.5}, {Close: 2.5}}
	assert.Equal(t, []float64{1.5, 2.5}, Closes(candles))
}

func TestSortByOpenTime(t *testing.T) {
	candles := []Candle{{OpenTime: 3}, {OpenTime: 1}, {OpenTime: 2}}
	SortByOpenTime(candles)
	assert.Equal(t, int64(1), candles[0].OpenTime)
	assert.Equal(t, int64(3), candles[2].OpenTime)
}

func TestValidateSeries(t *testing.T) {
	good := Candle{OpenTime: 1, CloseTime: 2, Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 100}

	t.Run("合法序列", func(t *testing.T) {
		next := good
		next.OpenTime = 2
		assert.NoError(t, ValidateSeries([]Candle{good, next}))
	})

	t.Run("时间未递增", func(t *testing.T) {
		assert.Error(t, ValidateSeries([]Candle{good, good}))
	})

	t.Run("高低价不包络", func(t *testing.T) {
		bad := good
		bad.High = 10.2
		assert.Error(t, ValidateSeries([]Candle{bad}))
	})

	t.Run("负价格", func(t *testing.T) {
		bad := good
		bad.Close = -1
		assert.Error(t, ValidateSeries([]Candle{bad}))
	})
}
