// Package indicators bridges decimal price series into the indicator library
// used for baseline and time-weighted calculations.
package indicators

import (
	"fmt"
	"sort"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/shopspring/decimal"

	"github.com/speraxos/sweepguard/internal/domain"
)

// CalculateSMA calculates the Simple Moving Average for the given period.
func CalculateSMA(values []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if len(values) < period {
		return nil, fmt.Errorf("not enough data points: need %d, got %d", period, len(values))
	}

	valuesFloat := decimalsToFloat64(values)

	sma := trend.NewSmaWithPeriod[float64](period)
	inputChan := helper.SliceToChan(valuesFloat)
	outputChan := sma.Compute(inputChan)
	smaFloat := helper.ChanToSlice(outputChan)

	return float64ToDecimals(smaFloat), nil
}

// Baseline returns the rolling mean of the whole sample window: the SMA with
// period equal to the window size, i.e. its single final value.
func Baseline(values []decimal.Decimal) (decimal.Decimal, error) {
	if len(values) == 0 {
		return decimal.Decimal{}, fmt.Errorf("no data points for baseline")
	}

	sma, err := CalculateSMA(values, len(values))
	if err != nil {
		return decimal.Decimal{}, err
	}
	return sma[len(sma)-1], nil
}

// TimeWeightedMean computes a TWAP over stored observations: each price is
// weighted by the time until the next observation. Needs at least two points.
func TimeWeightedMean(points []domain.PricePoint) (decimal.Decimal, error) {
	if len(points) < 2 {
		return decimal.Decimal{}, fmt.Errorf("not enough observations for TWAP: got %d", len(points))
	}

	sorted := make([]domain.PricePoint, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ObservedAt.Before(sorted[j].ObservedAt)
	})

	weighted := decimal.Zero
	totalSeconds := decimal.Zero
	for i := 0; i < len(sorted)-1; i++ {
		dt := sorted[i+1].ObservedAt.Sub(sorted[i].ObservedAt).Seconds()
		if dt <= 0 {
			continue
		}
		w := decimal.NewFromFloat(dt)
		weighted = weighted.Add(sorted[i].Price.Mul(w))
		totalSeconds = totalSeconds.Add(w)
	}

	if totalSeconds.IsZero() {
		return decimal.Decimal{}, fmt.Errorf("observations span zero time")
	}
	return weighted.Div(totalSeconds), nil
}

func decimalsToFloat64(values []decimal.Decimal) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v.InexactFloat64()
	}
	return out
}

func float64ToDecimals(values []float64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = decimal.NewFromFloat(v)
	}
	return out
}
