package validator

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speraxos/sweepguard/internal/domain"
)

var testToken = domain.TokenRef{Chain: "ethereum", Address: "0x01"}

type fakeSampler struct {
	points []domain.PricePoint
	err    error
}

func (f *fakeSampler) Samples(context.Context, domain.TokenRef, time.Duration) ([]domain.PricePoint, error) {
	return f.points, f.err
}

func pointsAt(base time.Time, step time.Duration, prices ...int64) []domain.PricePoint {
	out := make([]domain.PricePoint, len(prices))
	for i, p := range prices {
		out[i] = domain.PricePoint{
			Price:      decimal.NewFromInt(p),
			ObservedAt: base.Add(time.Duration(i) * step),
		}
	}
	return out
}

func TestAnomalyDetector_Check(t *testing.T) {
	base := time.Now().Add(-time.Hour)
	cfg := AnomalyConfig{
		MaxDeviationPct: decimal.NewFromInt(50),
		MinSamples:      3,
		Window:          24 * time.Hour,
	}

	t.Run("price near baseline passes", func(t *testing.T) {
		sampler := &fakeSampler{points: pointsAt(base, time.Minute, 100, 102, 98, 100)}
		d, err := NewAnomalyDetector(sampler, cfg)
		require.NoError(t, err)

		result, err := d.Check(context.Background(), testToken, decimal.NewFromInt(110))
		require.NoError(t, err)
		assert.True(t, result.Pass)
		assert.Equal(t, 4, result.Samples)
		assert.Equal(t, "100", result.Baseline.String())
	})

	t.Run("price far from baseline fails", func(t *testing.T) {
		sampler := &fakeSampler{points: pointsAt(base, time.Minute, 100, 100, 100)}
		d, err := NewAnomalyDetector(sampler, cfg)
		require.NoError(t, err)

		result, err := d.Check(context.Background(), testToken, decimal.NewFromInt(200))
		require.NoError(t, err)
		assert.False(t, result.Pass)
		assert.Equal(t, "100", result.DeviationPct.String())
	})

	t.Run("too few samples pass vacuously", func(t *testing.T) {
		sampler := &fakeSampler{points: pointsAt(base, time.Minute, 100)}
		d, err := NewAnomalyDetector(sampler, cfg)
		require.NoError(t, err)

		result, err := d.Check(context.Background(), testToken, decimal.NewFromInt(99999))
		require.NoError(t, err)
		assert.True(t, result.Pass)
		assert.Equal(t, 1, result.Samples)
	})

	t.Run("sampler failure propagates", func(t *testing.T) {
		d, err := NewAnomalyDetector(&fakeSampler{err: errors.New("redis down")}, cfg)
		require.NoError(t, err)

		_, err = d.Check(context.Background(), testToken, decimal.NewFromInt(100))
		assert.Error(t, err)
	})
}

func TestTWAPComparator_Check(t *testing.T) {
	base := time.Now().Add(-time.Hour)
	cfg := TWAPConfig{MaxDeviationPct: decimal.NewFromInt(20), Window: 24 * time.Hour}

	t.Run("consensus near twap passes", func(t *testing.T) {
		c, err := NewTWAPComparator(&fakeSampler{points: pointsAt(base, time.Minute, 100, 100, 100)}, cfg)
		require.NoError(t, err)

		result, err := c.Check(context.Background(), testToken, decimal.NewFromInt(110))
		require.NoError(t, err)
		assert.True(t, result.Pass)
		assert.Equal(t, "10", result.DeviationPct.String())
	})

	t.Run("consensus far from twap fails", func(t *testing.T) {
		c, err := NewTWAPComparator(&fakeSampler{points: pointsAt(base, time.Minute, 100, 100, 100)}, cfg)
		require.NoError(t, err)

		result, err := c.Check(context.Background(), testToken, decimal.NewFromInt(150))
		require.NoError(t, err)
		assert.False(t, result.Pass)
	})

	t.Run("single observation passes vacuously", func(t *testing.T) {
		c, err := NewTWAPComparator(&fakeSampler{points: pointsAt(base, time.Minute, 100)}, cfg)
		require.NoError(t, err)

		result, err := c.Check(context.Background(), testToken, decimal.NewFromInt(99999))
		require.NoError(t, err)
		assert.True(t, result.Pass)
		assert.Equal(t, 1, result.Observations)
	})
}

type fakeFeeds struct {
	price decimal.Decimal
	err   error
}

func (f *fakeFeeds) FeedPrice(context.Context, domain.TokenRef) (decimal.Decimal, error) {
	return f.price, f.err
}

func TestOracleChecker_Check(t *testing.T) {
	cfg := CrossCheckConfig{MaxDeviationPct: decimal.NewFromInt(20)}

	t.Run("no feed passes without a comparison", func(t *testing.T) {
		c, err := NewOracleChecker(&fakeFeeds{err: domain.ErrNoFeed}, cfg)
		require.NoError(t, err)

		result, err := c.Check(context.Background(), testToken, decimal.NewFromInt(100))
		require.NoError(t, err)
		assert.True(t, result.Pass)
		assert.False(t, result.FeedFound)
	})

	t.Run("feed agreement passes", func(t *testing.T) {
		c, err := NewOracleChecker(&fakeFeeds{price: decimal.NewFromInt(100)}, cfg)
		require.NoError(t, err)

		result, err := c.Check(context.Background(), testToken, decimal.NewFromInt(105))
		require.NoError(t, err)
		assert.True(t, result.Pass)
		assert.True(t, result.FeedFound)
	})

	t.Run("feed disagreement fails", func(t *testing.T) {
		c, err := NewOracleChecker(&fakeFeeds{price: decimal.NewFromInt(100)}, cfg)
		require.NoError(t, err)

		result, err := c.Check(context.Background(), testToken, decimal.NewFromInt(150))
		require.NoError(t, err)
		assert.False(t, result.Pass)
		assert.Equal(t, "50", result.DeviationPct.String())
	})

	t.Run("feed read failure propagates", func(t *testing.T) {
		c, err := NewOracleChecker(&fakeFeeds{err: errors.New("rpc down")}, cfg)
		require.NoError(t, err)

		_, err = c.Check(context.Background(), testToken, decimal.NewFromInt(100))
		assert.Error(t, err)
	})
}

type fakePools struct {
	pools  []domain.PoolDepth
	volume decimal.Decimal
	err    error
}

func (f *fakePools) Pools(context.Context, domain.TokenRef) ([]domain.PoolDepth, decimal.Decimal, error) {
	return f.pools, f.volume, f.err
}

func TestLiquidityValidator_Check(t *testing.T) {
	cfg := LiquidityConfig{
		MinPoolUSD:      decimal.NewFromInt(10000),
		MinVolume24hUSD: decimal.NewFromInt(1000),
	}

	t.Run("deep pool passes", func(t *testing.T) {
		provider := &fakePools{
			pools: []domain.PoolDepth{
				{Dex: "uniswap", LiquidityUSD: decimal.NewFromInt(50000)},
				{Dex: "sushiswap", LiquidityUSD: decimal.NewFromInt(500)},
			},
			volume: decimal.NewFromInt(25000),
		}
		v, err := NewLiquidityValidator(provider, cfg)
		require.NoError(t, err)

		result, err := v.Check(context.Background(), testToken)
		require.NoError(t, err)
		assert.True(t, result.Pass)
		assert.True(t, result.VolumeOK)
		assert.Equal(t, "50000", result.BestPoolUSD.String())
	})

	t.Run("shallow pools fail", func(t *testing.T) {
		provider := &fakePools{
			pools:  []domain.PoolDepth{{Dex: "uniswap", LiquidityUSD: decimal.NewFromInt(900)}},
			volume: decimal.NewFromInt(100),
		}
		v, err := NewLiquidityValidator(provider, cfg)
		require.NoError(t, err)

		result, err := v.Check(context.Background(), testToken)
		require.NoError(t, err)
		assert.False(t, result.Pass)
		assert.False(t, result.VolumeOK)
	})

	t.Run("thin volume alone does not fail the check", func(t *testing.T) {
		provider := &fakePools{
			pools:  []domain.PoolDepth{{Dex: "uniswap", LiquidityUSD: decimal.NewFromInt(20000)}},
			volume: decimal.NewFromInt(10),
		}
		v, err := NewLiquidityValidator(provider, cfg)
		require.NoError(t, err)

		result, err := v.Check(context.Background(), testToken)
		require.NoError(t, err)
		assert.True(t, result.Pass)
		assert.False(t, result.VolumeOK)
	})
}
