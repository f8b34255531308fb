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

// dexScreenerChains maps chain names to DexScreener chain ids.
var dexScreenerChains = map[string]string{
	"ethereum":  "ethereum",
	"bsc":       "bsc",
	"base":      "base",
	"arbitrum":  "arbitrum",
	"polygon":   "polygon",
	"optimism":  "optimism",
	"avalanche": "avalanche",
}

type dexScreenerPair struct {
	ChainID     string          `json:"chainId"`
	DexID       string          `json:"dexId"`
	PairAddress string          `json:"pairAddress"`
	PriceUSD    decimal.Decimal `json:"priceUsd"`
	Liquidity   struct {
		USD decimal.Decimal `json:"usd"`
	} `json:"liquidity"`
	Volume struct {
		H24 decimal.Decimal `json:"h24"`
	} `json:"volume"`
	PairCreatedAt int64 `json:"pairCreatedAt"`
}

// DexScreener fetches token prices and pool depth from the DexScreener API.
// It doubles as the pool-depth provider for the liquidity validator: price
// and liquidity come from the same pairs response.
type DexScreener struct {
	baseURL string
	fetcher *fetcher
}

// NewDexScreener creates the DexScreener source.
func NewDexScreener(baseURL string, timeout time.Duration, retry *retrier.Retrier) *DexScreener {
	if baseURL == "" {
		baseURL = "https://api.dexscreener.com"
	}
	return &DexScreener{
		baseURL: strings.TrimRight(baseURL, "/"),
		fetcher: newFetcher("dexscreener", timeout, 2, retry),
	}
}

func (d *DexScreener) Name() string { return "dexscreener" }

func (d *DexScreener) FetchPrice(ctx context.Context, token domain.TokenRef) (domain.PriceQuote, error) {
	pairs, err := d.pairs(ctx, token)
	if err != nil {
		return domain.PriceQuote{}, err
	}

	// deepest pool carries the least manipulable price
	var best *dexScreenerPair
	for i := range pairs {
		if pairs[i].PriceUSD.IsPositive() &&
			(best == nil || pairs[i].Liquidity.USD.GreaterThan(best.Liquidity.USD)) {
			best = &pairs[i]
		}
	}
	if best == nil {
		return domain.PriceQuote{}, errors.Errorf("dexscreener: no priced pairs for %s", token)
	}

	return domain.PriceQuote{
		Source:     d.Name(),
		Token:      token,
		Price:      best.PriceUSD,
		ObservedAt: time.Now().UTC(),
		Meta: map[string]string{
			"dex":  best.DexID,
			"pair": best.PairAddress,
		},
	}, nil
}

// Pools returns the pool depths and 24h volume observed for the token,
// ordered as returned by the provider.
func (d *DexScreener) Pools(ctx context.Context, token domain.TokenRef) ([]domain.PoolDepth, decimal.Decimal, error) {
	pairs, err := d.pairs(ctx, token)
	if err != nil {
		return nil, decimal.Zero, err
	}

	pools := make([]domain.PoolDepth, 0, len(pairs))
	volume := decimal.Zero
	for _, p := range pairs {
		pools = append(pools, domain.PoolDepth{
			Dex:          p.DexID,
			PairAddress:  p.PairAddress,
			LiquidityUSD: p.Liquidity.USD,
		})
		volume = volume.Add(p.Volume.H24)
	}
	return pools, volume, nil
}

// FirstSeen returns the creation time of the token's oldest known pool, a
// proxy for token age. Pairs without a creation timestamp are ignored.
func (d *DexScreener) FirstSeen(ctx context.Context, token domain.TokenRef) (time.Time, error) {
	pairs, err := d.pairs(ctx, token)
	if err != nil {
		return time.Time{}, err
	}

	var oldest int64
	for _, p := range pairs {
		if p.PairCreatedAt > 0 && (oldest == 0 || p.PairCreatedAt < oldest) {
			oldest = p.PairCreatedAt
		}
	}
	if oldest == 0 {
		return time.Time{}, errors.Errorf("dexscreener: no pair creation data for %s", token)
	}
	return time.UnixMilli(oldest).UTC(), nil
}

func (d *DexScreener) pairs(ctx context.Context, token domain.TokenRef) ([]dexScreenerPair, error) {
	chainID, ok := dexScreenerChains[strings.ToLower(token.Chain)]
	if !ok {
		return nil, errors.Errorf("dexscreener: unsupported chain %q", token.Chain)
	}

	url := fmt.Sprintf("%s/latest/dex/tokens/%s", d.baseURL, strings.ToLower(token.Address))

	var payload struct {
		Pairs []dexScreenerPair `json:"pairs"`
	}
	if err := d.fetcher.getJSON(ctx, url, &payload); err != nil {
		return nil, errors.Wrap(err, "dexscreener: fetch pairs")
	}

	matched := make([]dexScreenerPair, 0, len(payload.Pairs))
	for _, p := range payload.Pairs {
		if p.ChainID == chainID {
			matched = append(matched, p)
		}
	}
	if len(matched) == 0 {
		return nil, errors.Errorf("dexscreener: no pairs for %s", token)
	}
	return matched, nil
}
