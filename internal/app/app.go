// Package app builds the engines and their collaborators from config.
package app

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/metaproph3t/futarchy-ui/internal/cache"
	"github.com/metaproph3t/futarchy-ui/internal/chain"
	"github.com/metaproph3t/futarchy-ui/internal/config"
	"github.com/metaproph3t/futarchy-ui/internal/market"
	"github.com/metaproph3t/futarchy-ui/internal/programs"
	"github.com/metaproph3t/futarchy-ui/internal/proposals"
	"github.com/metaproph3t/futarchy-ui/internal/refresh"
	"github.com/metaproph3t/futarchy-ui/internal/swapengine"
	"github.com/metaproph3t/futarchy-ui/internal/units"
	"github.com/metaproph3t/futarchy-ui/internal/vault"
	"github.com/metaproph3t/futarchy-ui/internal/wallet"
	"github.com/sirupsen/logrus"
)

// App owns every long-lived component of a binary.
type App struct {
	Config     *config.Config
	Logger     *logrus.Logger
	ProgramIDs programs.ProgramIDs
	Units      *units.Table

	Wallet *wallet.Wallet
	Chain  chain.Client

	// Optional; nil when not configured or unreachable.
	Cache    *cache.RedisCache
	Activity *cache.ClickHouseStore

	Proposals *proposals.Reader
	Markets   *market.Resolver
	Vaults    *vault.Resolver
	Deposits  *vault.DepositEngine
	Swaps     *swapengine.Engine
	Poller    *refresh.Poller
}

// New connects to the RPC node and, when configured, Redis and ClickHouse.
// Storage that cannot be reached is logged and skipped.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*App, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	ids, err := cfg.ProgramIDs()
	if err != nil {
		return nil, err
	}
	table, err := cfg.Units()
	if err != nil {
		return nil, err
	}

	w, err := wallet.NewWallet(wallet.WalletConfig{
		RPCURL:              cfg.RPCUrl,
		Timeout:             cfg.HTTPTimeout,
		MaxRetries:          cfg.MaxRetries,
		RetryBackoff:        cfg.RetryBackoff,
		PrivateKey:          cfg.WalletPrivateKey,
		DefaultCommitment:   cfg.Commitment,
		PreflightCommitment: "processed",
		ConfirmTimeout:      cfg.ConfirmTimeout,
		Logger:              logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}

	a := &App{
		Config:     cfg,
		Logger:     logger,
		ProgramIDs: ids,
		Units:      table,
		Wallet:     w,
	}
	a.Chain = chain.NewRPCClient(w, logger)

	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:   cfg.RedisAddr,
			TTL:    cfg.CacheTTL,
			Logger: logger,
		})
		if err != nil {
			logger.WithError(err).Warn("redis unavailable, running without snapshot cache")
		} else {
			a.Cache = rc
		}
	}

	if cfg.ClickHouseAddr != "" {
		ch, err := cache.NewClickHouseStore(ctx, cache.ClickHouseConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
			Logger:   logger,
		})
		if err != nil {
			logger.WithError(err).Warn("clickhouse unavailable, activity will not be stored")
		} else {
			a.Activity = ch
		}
	}

	a.wire()

	logger.WithFields(logrus.Fields{
		"wallet":     a.walletLabel(),
		"cache":      a.Cache != nil,
		"activity":   a.Activity != nil,
		"base":       cfg.BaseSymbol,
		"quote":      cfg.QuoteSymbol,
		"commitment": cfg.Commitment,
	}).Info("app initialized")

	return a, nil
}

// NewWithClient wires the engines over an existing chain client and
// optional storage. Tests use it with an in-memory ledger.
func NewWithClient(cfg *config.Config, client chain.Client, rc *cache.RedisCache, logger *logrus.Logger) (*App, error) {
	if logger == nil {
		logger = logrus.New()
	}
	ids, err := cfg.ProgramIDs()
	if err != nil {
		return nil, err
	}
	table, err := cfg.Units()
	if err != nil {
		return nil, err
	}
	a := &App{
		Config:     cfg,
		Logger:     logger,
		ProgramIDs: ids,
		Units:      table,
		Chain:      client,
		Cache:      rc,
	}
	a.wire()
	return a, nil
}

func (a *App) wire() {
	recorders := cache.NewRecorders(a.Logger, a.Cache, a.Activity)

	var (
		recorder    cache.Recorder
		invalidator cache.Invalidator
	)
	if recorders.Len() > 0 {
		recorder = recorders
	}
	if a.Cache != nil {
		invalidator = a.Cache
	}

	a.Proposals = proposals.NewReader(a.Chain, a.ProgramIDs, a.Logger)
	a.Markets = market.NewResolver(a.Chain, a.Logger)
	a.Vaults = vault.NewResolver(a.Chain, a.Logger)

	a.Deposits = vault.NewDepositEngine(a.Chain, a.Vaults, vault.DepositConfig{
		ProgramIDs:  a.ProgramIDs,
		Units:       a.Units,
		Recorder:    recorder,
		Invalidator: invalidator,
		Logger:      a.Logger,
	})

	a.Swaps = swapengine.NewEngine(a.Chain, swapengine.EngineConfig{
		ProgramIDs:    a.ProgramIDs,
		Units:         a.Units,
		BaseSymbol:    a.Config.BaseSymbol,
		QuoteSymbol:   a.Config.QuoteSymbol,
		DefaultWallet: a.DefaultWallet(),
		Recorder:      recorder,
		Invalidator:   invalidator,
		Proposals:     a.Proposals,
		Markets:       a.Markets,
		Logger:        a.Logger,
	})

	var store refresh.SnapshotStore
	if a.Cache != nil {
		store = a.Cache
	}
	a.Poller = refresh.NewPoller(refresh.PollerConfig{
		Resolver: a.Vaults,
		Store:    store,
		Interval: a.Config.RefreshInterval,
		Logger:   a.Logger,
	})
}

// DefaultWallet is the signing wallet's address, or zero when read-only.
func (a *App) DefaultWallet() solana.PublicKey {
	if a.Wallet == nil || !a.Wallet.CanSign() {
		return solana.PublicKey{}
	}
	return a.Wallet.PublicKey()
}

func (a *App) walletLabel() string {
	if pk := a.DefaultWallet(); !pk.IsZero() {
		return pk.String()
	}
	return "read-only"
}

// Close cleans up all resources
func (a *App) Close() error {
	var errs []error

	if a.Poller != nil {
		_ = a.Poller.Stop()
	}
	if a.Wallet != nil {
		if err := a.Wallet.Close(); err != nil {
			errs = append(errs, fmt.Errorf("wallet close: %w", err))
		}
	}
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if a.Activity != nil {
		if err := a.Activity.Close(); err != nil {
			errs = append(errs, fmt.Errorf("clickhouse close: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
