package indicators

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speraxos/sweepguard/internal/domain"
)

func decimals(vals ...float64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(vals))
	for i, v := range vals {
		out[i] = decimal.NewFromFloat(v)
	}
	return out
}

func TestCalculateSMA(t *testing.T) {
	sma, err := CalculateSMA(decimals(1, 2, 3, 4, 5), 5)
	require.NoError(t, err)
	require.NotEmpty(t, sma)
	assert.InDelta(t, 3.0, sma[len(sma)-1].InexactFloat64(), 1e-9)

	_, err = CalculateSMA(decimals(1, 2), 5)
	assert.Error(t, err)
}

func TestBaseline(t *testing.T) {
	baseline, err := Baseline(decimals(100, 102, 98, 100))
	require.NoError(t, err)
	assert.InDelta(t, 100.0, baseline.InexactFloat64(), 1e-9)

	_, err = Baseline(nil)
	assert.Error(t, err)
}

func TestTimeWeightedMean(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("equal spacing equals simple mean of leading prices", func(t *testing.T) {
		points := []domain.PricePoint{
			{Price: decimal.NewFromInt(100), ObservedAt: base},
			{Price: decimal.NewFromInt(200), ObservedAt: base.Add(time.Minute)},
			{Price: decimal.NewFromInt(300), ObservedAt: base.Add(2 * time.Minute)},
		}
		twap, err := TimeWeightedMean(points)
		require.NoError(t, err)
		// last point only terminates the window
		assert.InDelta(t, 150.0, twap.InexactFloat64(), 1e-9)
	})

	t.Run("longer intervals weigh more", func(t *testing.T) {
		points := []domain.PricePoint{
			{Price: decimal.NewFromInt(100), ObservedAt: base},
			{Price: decimal.NewFromInt(400), ObservedAt: base.Add(3 * time.Minute)},
			{Price: decimal.NewFromInt(999), ObservedAt: base.Add(4 * time.Minute)},
		}
		twap, err := TimeWeightedMean(points)
		require.NoError(t, err)
		// 100 for 3 minutes, 400 for 1 minute
		assert.InDelta(t, 175.0, twap.InexactFloat64(), 1e-9)
	})

	t.Run("unsorted input is handled", func(t *testing.T) {
		points := []domain.PricePoint{
			{Price: decimal.NewFromInt(300), ObservedAt: base.Add(2 * time.Minute)},
			{Price: decimal.NewFromInt(100), ObservedAt: base},
			{Price: decimal.NewFromInt(200), ObservedAt: base.Add(time.Minute)},
		}
		twap, err := TimeWeightedMean(points)
		require.NoError(t, err)
		assert.InDelta(t, 150.0, twap.InexactFloat64(), 1e-9)
	})

	t.Run("too few observations", func(t *testing.T) {
		_, err := TimeWeightedMean([]domain.PricePoint{{Price: decimal.NewFromInt(1), ObservedAt: base}})
		assert.Error(t, err)
	})
}
