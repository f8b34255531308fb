package oracle

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/speraxos/sweepguard/internal/domain"
	"github.com/speraxos/sweepguard/pkg/retrier"
)

// DefiLlama fetches token prices from the DefiLlama coins API.
type DefiLlama struct {
	baseURL string
	fetcher *fetcher
}

// NewDefiLlama creates the DefiLlama source.
func NewDefiLlama(baseURL string, timeout time.Duration, retry *retrier.Retrier) *DefiLlama {
	if baseURL == "" {
		baseURL = "https://coins.llama.fi"
	}
	return &DefiLlama{
		baseURL: strings.TrimRight(baseURL, "/"),
		fetcher: newFetcher("defillama", timeout, 2, retry),
	}
}

func (d *DefiLlama) Name() string { return "defillama" }

func (d *DefiLlama) FetchPrice(ctx context.Context, token domain.TokenRef) (domain.PriceQuote, error) {
	coin := fmt.Sprintf("%s:%s", strings.ToLower(token.Chain), strings.ToLower(token.Address))
	url := fmt.Sprintf("%s/prices/current/%s", d.baseURL, coin)

	var payload struct {
		Coins map[string]struct {
			Price      decimal.Decimal `json:"price"`
			Timestamp  int64           `json:"timestamp"`
			Confidence float64         `json:"confidence"`
		} `json:"coins"`
	}
	if err := d.fetcher.getJSON(ctx, url, &payload); err != nil {
		return domain.PriceQuote{}, errors.Wrap(err, "defillama: fetch price")
	}

	entry, ok := payload.Coins[coin]
	if !ok || !entry.Price.IsPositive() {
		return domain.PriceQuote{}, errors.Errorf("defillama: no price for %s", token)
	}

	observed := time.Now().UTC()
	if entry.Timestamp > 0 {
		observed = time.Unix(entry.Timestamp, 0).UTC()
	}

	return domain.PriceQuote{
		Source:     d.Name(),
		Token:      token,
		Price:      entry.Price,
		ObservedAt: observed,
		Meta:       map[string]string{"confidence": strconv.FormatFloat(entry.Confidence, 'f', -1, 64)},
	}, nil
}
