// Package internal wires the configured providers, stores and validators
// into a ready-to-serve decision engine.
package internal

import (
	"context"

	binance "github.com/adshao/go-binance/v2"
	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/speraxos/sweepguard/config"
	"github.com/speraxos/sweepguard/internal/chain"
	"github.com/speraxos/sweepguard/internal/consensus"
	"github.com/speraxos/sweepguard/internal/domain"
	"github.com/speraxos/sweepguard/internal/engine"
	"github.com/speraxos/sweepguard/internal/history"
	"github.com/speraxos/sweepguard/internal/lists"
	"github.com/speraxos/sweepguard/internal/oracle"
	"github.com/speraxos/sweepguard/internal/storage/decisions"
	"github.com/speraxos/sweepguard/internal/validator"
)

// App bundles the long-lived components built from one configuration.
type App struct {
	Engine    *engine.Engine
	Consensus *consensus.Aggregator
	Lists     *lists.Registry
	Audit     *decisions.WALStore

	redis *redis.Client
}

// NewApp builds the full pipeline from configuration.
func NewApp(cfg config.Config, logger *zap.Logger) (*App, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})

	historyStore, err := history.NewStore(redisClient, cfg.HistoryMaxAge)
	if err != nil {
		return nil, errors.Wrap(err, "build history store")
	}
	registry, err := lists.NewRegistry(redisClient)
	if err != nil {
		return nil, errors.Wrap(err, "build list registry")
	}
	cache, err := consensus.NewRedisCache(redisClient, cfg.ConsensusCacheTTL)
	if err != nil {
		return nil, errors.Wrap(err, "build consensus cache")
	}

	dexScreener := oracle.NewDexScreener(cfg.DexScreenerURL, cfg.SourceTimeout, nil)
	sources := []oracle.Source{
		oracle.NewCoinGecko(cfg.CoinGeckoURL, cfg.SourceTimeout, nil),
		oracle.NewDefiLlama(cfg.DefiLlamaURL, cfg.SourceTimeout, nil),
		dexScreener,
	}
	if len(cfg.BinanceSymbols) > 0 {
		sources = append(sources, oracle.NewBinance(binance.NewClient("", ""), cfg.BinanceSymbols))
	}
	if len(cfg.BybitSymbols) > 0 {
		sources = append(sources, oracle.NewBybit(bybit.NewClient(), cfg.BybitSymbols))
	}

	aggregator, err := consensus.New(sources, cache, historyStore, consensus.Config{
		Budget:              cfg.ConsensusBudget,
		SourceTimeout:       cfg.SourceTimeout,
		OutlierTolerancePct: cfg.OutlierTolerancePct,
		SpreadTolerancePct:  cfg.SpreadTolerancePct,
		MinQuorum:           cfg.MinQuorum,
	}, logger.Named("consensus"))
	if err != nil {
		return nil, errors.Wrap(err, "build consensus aggregator")
	}

	anomaly, err := validator.NewAnomalyDetector(historyStore, validator.AnomalyConfig{
		MaxDeviationPct: cfg.AnomalyMaxDeviationPct,
		MinSamples:      cfg.AnomalyMinSamples,
		Window:          cfg.HistoryWindow,
	})
	if err != nil {
		return nil, errors.Wrap(err, "build anomaly detector")
	}

	liquidity, err := validator.NewLiquidityValidator(dexScreener, validator.LiquidityConfig{
		MinPoolUSD:      cfg.MinPoolUSD,
		MinVolume24hUSD: cfg.MinVolume24hUSD,
	})
	if err != nil {
		return nil, errors.Wrap(err, "build liquidity validator")
	}

	screener := chain.NewScreener(cfg.ScreenerURL, cfg.SourceTimeout, cfg.MaxBuyTaxPct, cfg.MaxSellTaxPct, nil)
	var simulator validator.Simulator
	if cfg.SimulatorURL != "" {
		sim, err := chain.NewSimulator(cfg.SimulatorURL, cfg.SourceTimeout, nil)
		if err != nil {
			return nil, errors.Wrap(err, "build sell simulator")
		}
		simulator = sim
	}
	security, err := validator.NewSecurityValidator(screener, simulator, dexScreener, validator.SecurityConfig{
		MaxSellTaxPct:    cfg.MaxSellTaxPct,
		MaxTopHoldersPct: cfg.MaxTopHoldersPct,
		MinAgeDays:       cfg.MinAgeDays,
	}, logger.Named("security"))
	if err != nil {
		return nil, errors.Wrap(err, "build security validator")
	}

	twap, err := validator.NewTWAPComparator(historyStore, validator.TWAPConfig{
		MaxDeviationPct: cfg.TWAPMaxDeviationPct,
		Window:          cfg.HistoryWindow,
	})
	if err != nil {
		return nil, errors.Wrap(err, "build twap comparator")
	}

	var feedSource validator.FeedSource = noFeeds{}
	if cfg.EVMRPCURL != "" && len(cfg.Feeds) > 0 {
		client, err := chain.Dial(cfg.EVMRPCURL)
		if err != nil {
			return nil, errors.Wrap(err, "dial evm rpc")
		}
		reader, err := chain.NewFeedReader(client, cfg.Feeds, cfg.FeedStaleAfter)
		if err != nil {
			return nil, errors.Wrap(err, "build feed reader")
		}
		feedSource = reader
	}
	crossCheck, err := validator.NewOracleChecker(feedSource, validator.CrossCheckConfig{
		MaxDeviationPct: cfg.FeedMaxDeviationPct,
	})
	if err != nil {
		return nil, errors.Wrap(err, "build oracle checker")
	}

	audit, err := decisions.NewWALStore(cfg.AuditDir)
	if err != nil {
		return nil, errors.Wrap(err, "build audit log")
	}

	eng, err := engine.New(registry, aggregator, engine.Checkers{
		Anomaly:   anomaly,
		Liquidity: liquidity,
		Security:  security,
		TWAP:      twap,
		Feed:      crossCheck,
	}, audit, engine.Config{
		ValueCapUSD:   cfg.ValueCapUSD,
		MinConfidence: cfg.MinConfidence,
	}, logger.Named("engine"))
	if err != nil {
		return nil, errors.Wrap(err, "build engine")
	}

	return &App{
		Engine:    eng,
		Consensus: aggregator,
		Lists:     registry,
		Audit:     audit,
		redis:     redisClient,
	}, nil
}

// Close releases the app's long-lived resources.
func (a *App) Close() error {
	var firstErr error
	if err := a.Audit.Close(); err != nil {
		firstErr = err
	}
	if err := a.redis.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// noFeeds is the cross-check source used when no RPC endpoint is configured;
// every token simply has no feed.
type noFeeds struct{}

func (noFeeds) FeedPrice(context.Context, domain.TokenRef) (decimal.Decimal, error) {
	return decimal.Zero, domain.ErrNoFeed
}
