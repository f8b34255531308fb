package chain

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/speraxos/sweepguard/internal/domain"
)

// aggregatorABI is the read surface of a Chainlink price feed.
const aggregatorABI = `[
  {"inputs":[],"name":"latestRoundData","outputs":[
    {"internalType":"uint80","name":"roundId","type":"uint80"},
    {"internalType":"int256","name":"answer","type":"int256"},
    {"internalType":"uint256","name":"startedAt","type":"uint256"},
    {"internalType":"uint256","name":"updatedAt","type":"uint256"},
    {"internalType":"uint80","name":"answeredInRound","type":"uint80"}],
   "stateMutability":"view","type":"function"},
  {"inputs":[],"name":"decimals","outputs":[
    {"internalType":"uint8","name":"","type":"uint8"}],
   "stateMutability":"view","type":"function"}
]`

// FeedReader reads USD prices from on-chain Chainlink aggregators. Feeds are
// configured per token; most tokens have none and that is not an error the
// caller treats as fatal.
type FeedReader struct {
	caller     ContractCaller
	feeds      map[string]common.Address
	abi        abi.ABI
	staleAfter time.Duration
}

// NewFeedReader creates the reader. feeds maps "chain:address" token keys to
// aggregator contract addresses.
func NewFeedReader(caller ContractCaller, feeds map[string]string, staleAfter time.Duration) (*FeedReader, error) {
	if caller == nil {
		return nil, errors.New("contract caller is nil")
	}
	if staleAfter <= 0 {
		return nil, errors.New("feed staleness bound must be positive")
	}

	parsed, err := abi.JSON(strings.NewReader(aggregatorABI))
	if err != nil {
		return nil, errors.Wrap(err, "parse aggregator abi")
	}

	mapped := make(map[string]common.Address, len(feeds))
	for key, addr := range feeds {
		if !common.IsHexAddress(addr) {
			return nil, errors.Errorf("feed %q: invalid aggregator address %q", key, addr)
		}
		mapped[strings.ToLower(key)] = common.HexToAddress(addr)
	}

	return &FeedReader{
		caller:     caller,
		feeds:      mapped,
		abi:        parsed,
		staleAfter: staleAfter,
	}, nil
}

// FeedPrice returns the latest on-chain feed price for the token, or
// domain.ErrNoFeed when no aggregator is configured for it.
func (r *FeedReader) FeedPrice(ctx context.Context, token domain.TokenRef) (decimal.Decimal, error) {
	feed, ok := r.feeds[token.Key()]
	if !ok {
		return decimal.Zero, errors.Wrapf(domain.ErrNoFeed, "token %s", token)
	}

	answer, updatedAt, err := r.latestRoundData(ctx, feed)
	if err != nil {
		return decimal.Zero, err
	}
	if answer.Sign() <= 0 {
		return decimal.Zero, errors.Errorf("feed %s: non-positive answer", feed.Hex())
	}
	if age := time.Since(updatedAt); age > r.staleAfter {
		return decimal.Zero, errors.Errorf("feed %s: stale round, updated %s ago", feed.Hex(), age.Truncate(time.Second))
	}

	dec, err := r.feedDecimals(ctx, feed)
	if err != nil {
		return decimal.Zero, err
	}

	return decimal.NewFromBigInt(answer, -int32(dec)), nil
}

func (r *FeedReader) latestRoundData(ctx context.Context, feed common.Address) (*big.Int, time.Time, error) {
	data, err := r.abi.Pack("latestRoundData")
	if err != nil {
		return nil, time.Time{}, errors.Wrap(err, "pack latestRoundData")
	}

	raw, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &feed, Data: data}, nil)
	if err != nil {
		return nil, time.Time{}, errors.Wrapf(err, "call feed %s", feed.Hex())
	}

	out, err := r.abi.Unpack("latestRoundData", raw)
	if err != nil {
		return nil, time.Time{}, errors.Wrapf(err, "unpack feed %s", feed.Hex())
	}
	if len(out) != 5 {
		return nil, time.Time{}, errors.Errorf("feed %s: unexpected output arity %d", feed.Hex(), len(out))
	}

	answer, ok := out[1].(*big.Int)
	if !ok {
		return nil, time.Time{}, errors.Errorf("feed %s: unexpected answer type", feed.Hex())
	}
	updatedAt, ok := out[3].(*big.Int)
	if !ok {
		return nil, time.Time{}, errors.Errorf("feed %s: unexpected updatedAt type", feed.Hex())
	}

	return answer, time.Unix(updatedAt.Int64(), 0).UTC(), nil
}

func (r *FeedReader) feedDecimals(ctx context.Context, feed common.Address) (uint8, error) {
	data, err := r.abi.Pack("decimals")
	if err != nil {
		return 0, errors.Wrap(err, "pack decimals")
	}

	raw, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &feed, Data: data}, nil)
	if err != nil {
		return 0, errors.Wrapf(err, "call feed %s decimals", feed.Hex())
	}

	out, err := r.abi.Unpack("decimals", raw)
	if err != nil {
		return 0, errors.Wrapf(err, "unpack feed %s decimals", feed.Hex())
	}
	dec, ok := out[0].(uint8)
	if !ok {
		return 0, errors.Errorf("feed %s: unexpected decimals type", feed.Hex())
	}
	return dec, nil
}
