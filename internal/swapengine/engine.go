package swapengine

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
	"github.com/metaproph3t/futarchy-ui/internal/cache"
	"github.com/metaproph3t/futarchy-ui/internal/chain"
	"github.com/metaproph3t/futarchy-ui/internal/market"
	"github.com/metaproph3t/futarchy-ui/internal/programs"
	"github.com/metaproph3t/futarchy-ui/internal/proposals"
	"github.com/metaproph3t/futarchy-ui/internal/units"
	"github.com/sirupsen/logrus"
)

// ErrNoWallet means neither the intent nor the engine names a wallet.
var ErrNoWallet = errors.New("no wallet: set one on the request or configure WALLET_PRIVATE_KEY")

// Engine is the main orchestrator for conditional swap operations
type Engine struct {
	executor      *Executor
	decisions     *DecisionEngine
	proposals     *proposals.Reader
	markets       *market.Resolver
	defaultWallet solana.PublicKey
	logger        *logrus.Logger
}

// EngineConfig holds configuration for the swap engine
type EngineConfig struct {
	ProgramIDs  programs.ProgramIDs
	Units       *units.Table
	BaseSymbol  string
	QuoteSymbol string

	// DefaultWallet is used when an intent carries no wallet.
	DefaultWallet solana.PublicKey

	// Optional; nil disables event recording / snapshot invalidation.
	Recorder    cache.Recorder
	Invalidator cache.Invalidator

	// Optional; built from the client when nil.
	Proposals *proposals.Reader
	Markets   *market.Resolver

	Logger *logrus.Logger
}

// DefaultEngineConfig returns sensible defaults
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		ProgramIDs:  programs.DefaultProgramIDs(),
		Units:       units.DefaultTable(),
		BaseSymbol:  "META",
		QuoteSymbol: "USDC",
	}
}

// NewEngine creates a swap engine on top of a chain client.
func NewEngine(client chain.Client, cfg EngineConfig) *Engine {
	def := DefaultEngineConfig()
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Units == nil {
		cfg.Units = def.Units
	}
	if cfg.BaseSymbol == "" {
		cfg.BaseSymbol = def.BaseSymbol
	}
	if cfg.QuoteSymbol == "" {
		cfg.QuoteSymbol = def.QuoteSymbol
	}
	if cfg.ProgramIDs == (programs.ProgramIDs{}) {
		cfg.ProgramIDs = def.ProgramIDs
	}
	if cfg.Proposals == nil {
		cfg.Proposals = proposals.NewReader(client, cfg.ProgramIDs, cfg.Logger)
	}
	if cfg.Markets == nil {
		cfg.Markets = market.NewResolver(client, cfg.Logger)
	}

	decisions := NewDecisionEngine(cfg.Units, cfg.BaseSymbol, cfg.QuoteSymbol)

	return &Engine{
		executor: &Executor{
			client:      client,
			proposals:   cfg.Proposals,
			markets:     cfg.Markets,
			accounts:    chain.NewATAResolver(client),
			decisions:   decisions,
			ids:         cfg.ProgramIDs,
			recorder:    cfg.Recorder,
			invalidator: cfg.Invalidator,
			logger:      cfg.Logger,
		},
		decisions:     decisions,
		proposals:     cfg.Proposals,
		markets:       cfg.Markets,
		defaultWallet: cfg.DefaultWallet,
		logger:        cfg.Logger,
	}
}

// SimulateSwap dry-runs the take order and reports the expected output.
// An order the book cannot fill returns a Quote with Insufficient set.
func (e *Engine) SimulateSwap(ctx context.Context, intent SwapIntent) (*Quote, error) {
	wallet, err := e.walletFor(&intent)
	if err != nil {
		return nil, err
	}
	return e.executor.simulate(ctx, &intent, wallet)
}

// ExecuteSwap submits the same take order SimulateSwap would dry-run and
// waits for confirmation.
func (e *Engine) ExecuteSwap(ctx context.Context, intent SwapIntent) (*SwapResult, error) {
	wallet, err := e.walletFor(&intent)
	if err != nil {
		return nil, err
	}
	return e.executor.execute(ctx, &intent, wallet)
}

// Proposals returns the reader the engine resolves proposals with.
func (e *Engine) Proposals() *proposals.Reader { return e.proposals }

// Markets returns the resolver the engine resolves branch markets with.
func (e *Engine) Markets() *market.Resolver { return e.markets }

// Symbols returns the market's base and quote symbols.
func (e *Engine) Symbols() (base, quote string) {
	return e.decisions.baseSymbol, e.decisions.quoteSymbol
}

func (e *Engine) walletFor(intent *SwapIntent) (solana.PublicKey, error) {
	if !intent.Wallet.IsZero() {
		return intent.Wallet, nil
	}
	if e.defaultWallet.IsZero() {
		return solana.PublicKey{}, ErrNoWallet
	}
	return e.defaultWallet, nil
}
