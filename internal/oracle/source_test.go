package oracle

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speraxos/sweepguard/internal/domain"
	"github.com/speraxos/sweepguard/pkg/retrier"
)

var testToken = domain.TokenRef{Chain: "ethereum", Address: "0xAbCdEF0123456789000000000000000000000001"}

func fastRetry() *retrier.Retrier {
	return retrier.New(retrier.WithMaxRetries(1), retrier.WithInitialInterval(time.Millisecond))
}

func TestCoinGecko_FetchPrice(t *testing.T) {
	t.Run("normalizes response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Contains(t, r.URL.Path, "/simple/token_price/ethereum")
			fmt.Fprintf(w, `{"%s":{"usd":1.2345}}`, "0xabcdef0123456789000000000000000000000001")
		}))
		defer srv.Close()

		src := NewCoinGecko(srv.URL, time.Second, fastRetry())
		quote, err := src.FetchPrice(context.Background(), testToken)
		require.NoError(t, err)
		assert.Equal(t, "coingecko", quote.Source)
		assert.Equal(t, "1.2345", quote.Price.String())
		assert.Equal(t, testToken, quote.Token)
	})

	t.Run("retries transient server errors", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			fmt.Fprintf(w, `{"%s":{"usd":2}}`, "0xabcdef0123456789000000000000000000000001")
		}))
		defer srv.Close()

		src := NewCoinGecko(srv.URL, time.Second, fastRetry())
		quote, err := src.FetchPrice(context.Background(), testToken)
		require.NoError(t, err)
		assert.Equal(t, "2", quote.Price.String())
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("does not retry malformed responses", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			fmt.Fprint(w, `{"not json`)
		}))
		defer srv.Close()

		src := NewCoinGecko(srv.URL, time.Second, fastRetry())
		_, err := src.FetchPrice(context.Background(), testToken)
		assert.Error(t, err)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("does not retry client errors", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		src := NewCoinGecko(srv.URL, time.Second, fastRetry())
		_, err := src.FetchPrice(context.Background(), testToken)
		assert.Error(t, err)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("unsupported chain", func(t *testing.T) {
		src := NewCoinGecko("http://unused", time.Second, fastRetry())
		_, err := src.FetchPrice(context.Background(), domain.TokenRef{Chain: "solana", Address: "x"})
		assert.Error(t, err)
	})
}

func TestDefiLlama_FetchPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"coins":{"%s":{"price":0.99,"timestamp":1700000000,"confidence":0.98}}}`,
			"ethereum:0xabcdef0123456789000000000000000000000001")
	}))
	defer srv.Close()

	src := NewDefiLlama(srv.URL, time.Second, fastRetry())
	quote, err := src.FetchPrice(context.Background(), testToken)
	require.NoError(t, err)
	assert.Equal(t, "defillama", quote.Source)
	assert.Equal(t, "0.99", quote.Price.String())
	assert.Equal(t, int64(1700000000), quote.ObservedAt.Unix())
}

func TestDexScreener(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"pairs":[
			{"chainId":"ethereum","dexId":"uniswap","pairAddress":"0xp1","priceUsd":"1.00","liquidity":{"usd":50000},"volume":{"h24":12000}},
			{"chainId":"ethereum","dexId":"sushiswap","pairAddress":"0xp2","priceUsd":"1.02","liquidity":{"usd":8000},"volume":{"h24":300}},
			{"chainId":"bsc","dexId":"pancake","pairAddress":"0xp3","priceUsd":"9.99","liquidity":{"usd":999999},"volume":{"h24":1}}
		]}`)
	}))
	defer srv.Close()

	src := NewDexScreener(srv.URL, time.Second, fastRetry())

	t.Run("price comes from the deepest matching pool", func(t *testing.T) {
		quote, err := src.FetchPrice(context.Background(), testToken)
		require.NoError(t, err)
		assert.Equal(t, "1", quote.Price.String())
		assert.Equal(t, "uniswap", quote.Meta["dex"])
	})

	t.Run("pools filter by chain and sum volume", func(t *testing.T) {
		pools, volume, err := src.Pools(context.Background(), testToken)
		require.NoError(t, err)
		require.Len(t, pools, 2)
		assert.Equal(t, "12300", volume.String())
		assert.Equal(t, "50000", pools[0].LiquidityUSD.String())
	})
}
