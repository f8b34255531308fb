package validator

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/speraxos/sweepguard/internal/chain"
	"github.com/speraxos/sweepguard/internal/domain"
)

type fakeScreener struct {
	report chain.Report
	err    error
}

func (f *fakeScreener) Screen(context.Context, domain.TokenRef) (chain.Report, error) {
	return f.report, f.err
}

type fakeSimulator struct {
	result chain.SellSimulation
	err    error
	calls  int
}

func (f *fakeSimulator) SimulateSell(context.Context, domain.TokenRef) (chain.SellSimulation, error) {
	f.calls++
	return f.result, f.err
}

type fakeAge struct {
	firstSeen time.Time
	err       error
}

func (f *fakeAge) FirstSeen(context.Context, domain.TokenRef) (time.Time, error) {
	return f.firstSeen, f.err
}

func secConfig() SecurityConfig {
	return SecurityConfig{
		MaxSellTaxPct:    decimal.NewFromInt(10),
		MaxTopHoldersPct: decimal.NewFromInt(50),
		MinAgeDays:       7,
	}
}

func cleanReport() chain.Report {
	return chain.Report{Token: testToken, CanSell: true}
}

func TestSecurityValidator_Check(t *testing.T) {
	okSim := &fakeSimulator{result: chain.SellSimulation{Success: true, GasUsed: 90000}}
	oldToken := &fakeAge{firstSeen: time.Now().Add(-30 * 24 * time.Hour)}

	t.Run("clean mature token passes", func(t *testing.T) {
		v, err := NewSecurityValidator(&fakeScreener{report: cleanReport()}, okSim, oldToken, secConfig(), zap.NewNop())
		require.NoError(t, err)

		result, err := v.Check(context.Background(), testToken)
		require.NoError(t, err)
		assert.True(t, result.Pass)
		assert.False(t, result.Critical)
		assert.Empty(t, result.Warnings)
		assert.Equal(t, domain.RiskLow, result.RiskLevel)
	})

	t.Run("screener honeypot is critical", func(t *testing.T) {
		report := cleanReport()
		report.Honeypot = true
		report.Flags = []string{chain.FlagHoneypot}
		v, err := NewSecurityValidator(&fakeScreener{report: report}, okSim, oldToken, secConfig(), zap.NewNop())
		require.NoError(t, err)

		result, err := v.Check(context.Background(), testToken)
		require.NoError(t, err)
		assert.True(t, result.Critical)
		assert.Equal(t, domain.RiskCritical, result.RiskLevel)
	})

	t.Run("reverted sell simulation is critical", func(t *testing.T) {
		sim := &fakeSimulator{result: chain.SellSimulation{Success: false, RevertReason: "no route out"}}
		v, err := NewSecurityValidator(&fakeScreener{report: cleanReport()}, sim, oldToken, secConfig(), zap.NewNop())
		require.NoError(t, err)

		result, err := v.Check(context.Background(), testToken)
		require.NoError(t, err)
		assert.True(t, result.Critical)
		assert.Contains(t, result.CriticalReason, "no route out")
	})

	t.Run("critical screener finding skips the simulation", func(t *testing.T) {
		report := cleanReport()
		report.CanSell = false
		sim := &fakeSimulator{result: chain.SellSimulation{Success: true}}
		v, err := NewSecurityValidator(&fakeScreener{report: report}, sim, oldToken, secConfig(), zap.NewNop())
		require.NoError(t, err)

		result, err := v.Check(context.Background(), testToken)
		require.NoError(t, err)
		assert.True(t, result.Critical)
		assert.Zero(t, sim.calls)
	})

	t.Run("high sell tax warns without rejecting", func(t *testing.T) {
		report := cleanReport()
		report.SellTaxPct = decimal.NewFromInt(15)
		v, err := NewSecurityValidator(&fakeScreener{report: report}, okSim, oldToken, secConfig(), zap.NewNop())
		require.NoError(t, err)

		result, err := v.Check(context.Background(), testToken)
		require.NoError(t, err)
		assert.False(t, result.Critical)
		assert.False(t, result.Pass)
		assert.NotEmpty(t, result.Warnings)
	})

	t.Run("young token warns", func(t *testing.T) {
		young := &fakeAge{firstSeen: time.Now().Add(-48 * time.Hour)}
		v, err := NewSecurityValidator(&fakeScreener{report: cleanReport()}, okSim, young, secConfig(), zap.NewNop())
		require.NoError(t, err)

		result, err := v.Check(context.Background(), testToken)
		require.NoError(t, err)
		assert.False(t, result.Pass)
		assert.Equal(t, 2, result.AgeDays)
	})

	t.Run("unavailable age source does not block", func(t *testing.T) {
		v, err := NewSecurityValidator(&fakeScreener{report: cleanReport()}, okSim, &fakeAge{err: errors.New("no pairs")}, secConfig(), zap.NewNop())
		require.NoError(t, err)

		result, err := v.Check(context.Background(), testToken)
		require.NoError(t, err)
		assert.True(t, result.Pass)
	})

	t.Run("screener failure propagates", func(t *testing.T) {
		v, err := NewSecurityValidator(&fakeScreener{err: errors.New("api down")}, okSim, oldToken, secConfig(), zap.NewNop())
		require.NoError(t, err)

		_, err = v.Check(context.Background(), testToken)
		assert.Error(t, err)
	})

	t.Run("simulator failure propagates", func(t *testing.T) {
		sim := &fakeSimulator{err: errors.New("provider down")}
		v, err := NewSecurityValidator(&fakeScreener{report: cleanReport()}, sim, oldToken, secConfig(), zap.NewNop())
		require.NoError(t, err)

		_, err = v.Check(context.Background(), testToken)
		assert.Error(t, err)
	})

	t.Run("stacked flags reach critical by score", func(t *testing.T) {
		report := cleanReport()
		report.Flags = []string{
			chain.FlagSelfDestruct,
			chain.FlagHiddenOwner,
			chain.FlagUnverified,
		}
		v, err := NewSecurityValidator(&fakeScreener{report: report}, okSim, oldToken, secConfig(), zap.NewNop())
		require.NoError(t, err)

		result, err := v.Check(context.Background(), testToken)
		require.NoError(t, err)
		assert.Equal(t, 95, result.RiskScore)
		assert.True(t, result.Critical)
	})
}
