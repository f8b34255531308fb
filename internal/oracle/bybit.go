package oracle

import (
	"context"
	"time"

	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/speraxos/sweepguard/internal/domain"
)

// Bybit quotes exchange-listed tokens from Bybit spot tickers.
type Bybit struct {
	client *bybit.Client
	// symbols maps TokenRef.Key() to a spot symbol like "ETHUSDT".
	symbols map[string]string
}

// NewBybit creates the Bybit source.
func NewBybit(client *bybit.Client, symbols map[string]string) *Bybit {
	return &Bybit{client: client, symbols: symbols}
}

func (b *Bybit) Name() string { return "bybit" }

func (b *Bybit) FetchPrice(ctx context.Context, token domain.TokenRef) (domain.PriceQuote, error) {
	mapped, ok := b.symbols[token.Key()]
	if !ok {
		return domain.PriceQuote{}, errors.Errorf("bybit: no listing mapped for %s", token)
	}

	symbol := bybit.SymbolV5(mapped)
	result, err := b.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: "spot",
		Symbol:   &symbol,
	})
	if err != nil {
		return domain.PriceQuote{}, errors.Wrap(err, "bybit: get tickers")
	}
	if len(result.Result.Spot.List) == 0 {
		return domain.PriceQuote{}, errors.Errorf("bybit: empty prices for %s", mapped)
	}

	price, err := decimal.NewFromString(result.Result.Spot.List[0].LastPrice)
	if err != nil {
		return domain.PriceQuote{}, errors.Wrapf(err, "bybit: parse price %q", result.Result.Spot.List[0].LastPrice)
	}

	return domain.PriceQuote{
		Source:     b.Name(),
		Token:      token,
		Price:      price,
		ObservedAt: time.Now().UTC(),
		Meta:       map[string]string{"symbol": mapped},
	}, nil
}
