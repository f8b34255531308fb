package oracle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/speraxos/sweepguard/internal/domain"
	"github.com/speraxos/sweepguard/pkg/retrier"
)

// coinGeckoPlatforms maps chain names to CoinGecko asset platform ids.
var coinGeckoPlatforms = map[string]string{
	"ethereum":  "ethereum",
	"bsc":       "binance-smart-chain",
	"base":      "base",
	"arbitrum":  "arbitrum-one",
	"polygon":   "polygon-pos",
	"optimism":  "optimistic-ethereum",
	"avalanche": "avalanche",
}

// CoinGecko fetches token prices from the CoinGecko simple token-price API.
type CoinGecko struct {
	baseURL string
	fetcher *fetcher
}

// NewCoinGecko creates the CoinGecko source. An empty baseURL selects the
// public API endpoint.
func NewCoinGecko(baseURL string, timeout time.Duration, retry *retrier.Retrier) *CoinGecko {
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}
	return &CoinGecko{
		baseURL: strings.TrimRight(baseURL, "/"),
		fetcher: newFetcher("coingecko", timeout, 2, retry),
	}
}

func (c *CoinGecko) Name() string { return "coingecko" }

func (c *CoinGecko) FetchPrice(ctx context.Context, token domain.TokenRef) (domain.PriceQuote, error) {
	platform, ok := coinGeckoPlatforms[strings.ToLower(token.Chain)]
	if !ok {
		return domain.PriceQuote{}, errors.Errorf("coingecko: unsupported chain %q", token.Chain)
	}

	url := fmt.Sprintf("%s/simple/token_price/%s?contract_addresses=%s&vs_currencies=usd",
		c.baseURL, platform, strings.ToLower(token.Address))

	var payload map[string]struct {
		USD decimal.Decimal `json:"usd"`
	}
	if err := c.fetcher.getJSON(ctx, url, &payload); err != nil {
		return domain.PriceQuote{}, errors.Wrap(err, "coingecko: fetch price")
	}

	entry, ok := payload[strings.ToLower(token.Address)]
	if !ok || !entry.USD.IsPositive() {
		return domain.PriceQuote{}, errors.Errorf("coingecko: no price for %s", token)
	}

	return domain.PriceQuote{
		Source:     c.Name(),
		Token:      token,
		Price:      entry.USD,
		ObservedAt: time.Now().UTC(),
		Meta:       map[string]string{"platform": platform},
	}, nil
}
