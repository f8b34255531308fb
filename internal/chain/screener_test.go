package chain

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speraxos/sweepguard/internal/domain"
	"github.com/speraxos/sweepguard/pkg/retrier"
)

var screenerToken1 = domain.TokenRef{Chain: "ethereum", Address: "0xAbC0000000000000000000000000000000000001"}

func fastRetry() *retrier.Retrier {
	return retrier.New(
		retrier.WithInitialInterval(time.Millisecond),
		retrier.WithMaxInterval(time.Millisecond),
	)
}

func newTestScreener(url string) *Screener {
	return NewScreener(url, time.Second, decimal.NewFromInt(10), decimal.NewFromInt(10), fastRetry())
}

func TestScreener_Screen(t *testing.T) {
	t.Run("clean token", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Contains(t, r.URL.Path, "/api/v1/token_security/1")
			fmt.Fprint(w, `{"result":{"0xabc0000000000000000000000000000000000001":{
				"is_honeypot":"0","cannot_sell_all":"0","buy_tax":"0","sell_tax":"0.02",
				"is_open_source":"1",
				"holders":[{"percent":"0.05"},{"percent":"0.03"},{"percent":"0.02"}]}}}`)
		}))
		defer srv.Close()

		report, err := newTestScreener(srv.URL).Screen(context.Background(), screenerToken1)
		require.NoError(t, err)
		assert.False(t, report.Honeypot)
		assert.True(t, report.CanSell)
		assert.Equal(t, "2", report.SellTaxPct.String())
		assert.Equal(t, "10", report.TopHoldersPct.String())
		assert.Empty(t, report.Flags)
	})

	t.Run("honeypot with high taxes raises flags", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"result":{"0xabc0000000000000000000000000000000000001":{
				"is_honeypot":"1","honeypot_with_same_creator":"1","cannot_sell_all":"1",
				"buy_tax":"0.25","sell_tax":"0.99","is_open_source":"0","hidden_owner":"1"}}}`)
		}))
		defer srv.Close()

		report, err := newTestScreener(srv.URL).Screen(context.Background(), screenerToken1)
		require.NoError(t, err)
		assert.True(t, report.Honeypot)
		assert.False(t, report.CanSell)
		assert.Equal(t, "creator has deployed honeypots", report.HoneypotReason)
		assert.Contains(t, report.Flags, FlagHoneypot)
		assert.Contains(t, report.Flags, FlagHiddenOwner)
		assert.Contains(t, report.Flags, FlagUnverified)
		assert.Contains(t, report.Flags, FlagHighBuyTax)
		assert.Contains(t, report.Flags, FlagHighSellTax)
	})

	t.Run("unknown token errors", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"result":{}}`)
		}))
		defer srv.Close()

		_, err := newTestScreener(srv.URL).Screen(context.Background(), screenerToken1)
		assert.Error(t, err)
	})

	t.Run("unsupported chain errors without a request", func(t *testing.T) {
		_, err := newTestScreener("http://127.0.0.1:0").Screen(context.Background(),
			domain.TokenRef{Chain: "solana", Address: "abc"})
		assert.Error(t, err)
	})
}

func TestSimulator_SimulateSell(t *testing.T) {
	t.Run("sell succeeds", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			fmt.Fprint(w, `{"success":true,"gasUsed":91000}`)
		}))
		defer srv.Close()

		sim, err := NewSimulator(srv.URL, time.Second, fastRetry())
		require.NoError(t, err)

		result, err := sim.SimulateSell(context.Background(), screenerToken1)
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, uint64(91000), result.GasUsed)
	})

	t.Run("revert carries the reason", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"success":false,"gasUsed":21000,"revertReason":"TRANSFER_FROM_FAILED"}`)
		}))
		defer srv.Close()

		sim, err := NewSimulator(srv.URL, time.Second, fastRetry())
		require.NoError(t, err)

		result, err := sim.SimulateSell(context.Background(), screenerToken1)
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, "TRANSFER_FROM_FAILED", result.RevertReason)
	})

	t.Run("provider outage is an error not a failed sell", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		sim, err := NewSimulator(srv.URL, time.Second, fastRetry())
		require.NoError(t, err)

		_, err = sim.SimulateSell(context.Background(), screenerToken1)
		assert.Error(t, err)
	})
}
