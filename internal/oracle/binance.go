package oracle

import (
	"context"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/speraxos/sweepguard/internal/domain"
)

// Binance quotes exchange-listed tokens from Binance spot tickers. Tokens
// without a configured symbol mapping are a permanent miss for this source;
// consensus simply proceeds without it.
type Binance struct {
	client *binance.Client
	// symbols maps TokenRef.Key() to a spot symbol like "ETHUSDT".
	symbols map[string]string
}

// NewBinance creates the Binance source. Public ticker data needs no API keys.
func NewBinance(client *binance.Client, symbols map[string]string) *Binance {
	return &Binance{client: client, symbols: symbols}
}

func (b *Binance) Name() string { return "binance" }

func (b *Binance) FetchPrice(ctx context.Context, token domain.TokenRef) (domain.PriceQuote, error) {
	symbol, ok := b.symbols[token.Key()]
	if !ok {
		return domain.PriceQuote{}, errors.Errorf("binance: no listing mapped for %s", token)
	}

	prices, err := b.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return domain.PriceQuote{}, errors.Wrap(err, "binance: list prices")
	}
	if len(prices) == 0 {
		return domain.PriceQuote{}, errors.Errorf("binance: empty prices for %s", symbol)
	}

	price, err := decimal.NewFromString(prices[0].Price)
	if err != nil {
		return domain.PriceQuote{}, errors.Wrapf(err, "binance: parse price %q", prices[0].Price)
	}

	return domain.PriceQuote{
		Source:     b.Name(),
		Token:      token,
		Price:      price,
		ObservedAt: time.Now().UTC(),
		Meta:       map[string]string{"symbol": symbol},
	}, nil
}
