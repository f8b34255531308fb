package chain

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/speraxos/sweepguard/internal/domain"
	"github.com/speraxos/sweepguard/pkg/retrier"
)

// Screener flag names, in rough order of severity.
const (
	FlagHoneypot           = "HONEYPOT"
	FlagOwnerChangeBalance = "OWNER_CAN_CHANGE_BALANCE"
	FlagSelfDestruct       = "SELF_DESTRUCT"
	FlagHiddenOwner        = "HIDDEN_OWNER"
	FlagOwnershipTakeback  = "OWNERSHIP_TAKEBACK"
	FlagUnverified         = "UNVERIFIED_CONTRACT"
	FlagExternalCalls      = "EXTERNAL_CALLS"
	FlagMintable           = "MINTABLE"
	FlagProxy              = "PROXY_CONTRACT"
	FlagBlacklistFunc      = "BLACKLIST_FUNCTION"
	FlagWhitelistFunc      = "WHITELIST_FUNCTION"
	FlagAntiWhale          = "ANTI_WHALE"
	FlagTradingCooldown    = "TRADING_COOLDOWN"
	FlagHighBuyTax         = "HIGH_BUY_TAX"
	FlagHighSellTax        = "HIGH_SELL_TAX"
)

// screenerChainIDs maps chain names to EVM chain ids used by the screener API.
var screenerChainIDs = map[string]string{
	"ethereum":  "1",
	"optimism":  "10",
	"bsc":       "56",
	"polygon":   "137",
	"base":      "8453",
	"arbitrum":  "42161",
	"avalanche": "43114",
}

// Report is the normalized contract screening result for one token.
type Report struct {
	Token          domain.TokenRef
	Honeypot       bool
	HoneypotReason string
	CanSell        bool
	BuyTaxPct      decimal.Decimal
	SellTaxPct     decimal.Decimal
	TopHoldersPct  decimal.Decimal
	Flags          []string
	FetchedAt      time.Time
}

// screenerToken is the provider's per-token payload. Booleans arrive as "0"
// and "1" strings, taxes as fractions.
type screenerToken struct {
	IsHoneypot              string `json:"is_honeypot"`
	HoneypotWithSameCreator string `json:"honeypot_with_same_creator"`
	CannotSellAll           string `json:"cannot_sell_all"`
	BuyTax                  string `json:"buy_tax"`
	SellTax                 string `json:"sell_tax"`
	IsBlacklisted           string `json:"is_blacklisted"`
	IsWhitelisted           string `json:"is_whitelisted"`
	IsAntiWhale             string `json:"is_anti_whale"`
	TradingCooldown         string `json:"trading_cooldown"`
	IsProxy                 string `json:"is_proxy"`
	IsOpenSource            string `json:"is_open_source"`
	IsMintable              string `json:"is_mintable"`
	CanTakeBackOwnership    string `json:"can_take_back_ownership"`
	OwnerChangeBalance      string `json:"owner_change_balance"`
	HiddenOwner             string `json:"hidden_owner"`
	ExternalCall            string `json:"external_call"`
	SelfDestruct            string `json:"selfdestruct"`
	Holders                 []struct {
		Percent string `json:"percent"`
	} `json:"holders"`
}

// Screener fetches contract security data from a GoPlus-compatible API.
type Screener struct {
	baseURL string
	rest    *restClient
	// taxes above these thresholds raise the corresponding flag
	maxBuyTaxPct  decimal.Decimal
	maxSellTaxPct decimal.Decimal
}

// NewScreener creates the screener client.
func NewScreener(baseURL string, timeout time.Duration, maxBuyTaxPct, maxSellTaxPct decimal.Decimal, retry *retrier.Retrier) *Screener {
	if baseURL == "" {
		baseURL = "https://api.gopluslabs.io"
	}
	return &Screener{
		baseURL:       strings.TrimRight(baseURL, "/"),
		rest:          newRESTClient("screener", timeout, 1, retry),
		maxBuyTaxPct:  maxBuyTaxPct,
		maxSellTaxPct: maxSellTaxPct,
	}
}

// Screen fetches and normalizes the security report for a token.
func (s *Screener) Screen(ctx context.Context, token domain.TokenRef) (Report, error) {
	chainID, ok := screenerChainIDs[strings.ToLower(token.Chain)]
	if !ok {
		return Report{}, errors.Errorf("screener: unsupported chain %q", token.Chain)
	}

	addr := strings.ToLower(token.Address)
	url := fmt.Sprintf("%s/api/v1/token_security/%s?contract_addresses=%s", s.baseURL, chainID, addr)

	var payload struct {
		Result map[string]screenerToken `json:"result"`
	}
	if err := s.rest.doJSON(ctx, "GET", url, nil, &payload); err != nil {
		return Report{}, errors.Wrap(err, "screener: fetch token security")
	}

	data, ok := payload.Result[addr]
	if !ok {
		return Report{}, errors.Errorf("screener: token %s not in security database", token)
	}
	return s.normalize(token, data), nil
}

func (s *Screener) normalize(token domain.TokenRef, data screenerToken) Report {
	hundred := decimal.NewFromInt(100)
	buyTax := parseFraction(data.BuyTax).Mul(hundred)
	sellTax := parseFraction(data.SellTax).Mul(hundred)

	var flags []string
	set := func(cond bool, flag string) {
		if cond {
			flags = append(flags, flag)
		}
	}
	set(data.IsHoneypot == "1", FlagHoneypot)
	set(data.OwnerChangeBalance == "1", FlagOwnerChangeBalance)
	set(data.SelfDestruct == "1", FlagSelfDestruct)
	set(data.HiddenOwner == "1", FlagHiddenOwner)
	set(data.CanTakeBackOwnership == "1", FlagOwnershipTakeback)
	set(data.IsOpenSource != "1", FlagUnverified)
	set(data.ExternalCall == "1", FlagExternalCalls)
	set(data.IsMintable == "1", FlagMintable)
	set(data.IsProxy == "1", FlagProxy)
	set(data.IsBlacklisted == "1", FlagBlacklistFunc)
	set(data.IsWhitelisted == "1", FlagWhitelistFunc)
	set(data.IsAntiWhale == "1", FlagAntiWhale)
	set(data.TradingCooldown == "1", FlagTradingCooldown)
	set(buyTax.GreaterThan(s.maxBuyTaxPct), FlagHighBuyTax)
	set(sellTax.GreaterThan(s.maxSellTaxPct), FlagHighSellTax)

	reason := ""
	if data.HoneypotWithSameCreator == "1" {
		reason = "creator has deployed honeypots"
	}

	return Report{
		Token:          token,
		Honeypot:       data.IsHoneypot == "1",
		HoneypotReason: reason,
		CanSell:        data.CannotSellAll != "1",
		BuyTaxPct:      buyTax,
		SellTaxPct:     sellTax,
		TopHoldersPct:  topHoldersPct(data),
		Flags:          flags,
		FetchedAt:      time.Now().UTC(),
	}
}

// topHoldersPct sums the stakes of the ten largest holders.
func topHoldersPct(data screenerToken) decimal.Decimal {
	stakes := make([]decimal.Decimal, 0, len(data.Holders))
	for _, h := range data.Holders {
		stakes = append(stakes, parseFraction(h.Percent))
	}
	sort.Slice(stakes, func(i, j int) bool { return stakes[i].GreaterThan(stakes[j]) })
	if len(stakes) > 10 {
		stakes = stakes[:10]
	}

	total := decimal.Zero
	for _, s := range stakes {
		total = total.Add(s)
	}
	return total.Mul(decimal.NewFromInt(100))
}

func parseFraction(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
