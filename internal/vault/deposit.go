package vault

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/metaproph3t/futarchy-ui/internal/cache"
	"github.com/metaproph3t/futarchy-ui/internal/chain"
	"github.com/metaproph3t/futarchy-ui/internal/programs"
	"github.com/metaproph3t/futarchy-ui/internal/units"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type DepositState string

const (
	StateIdle       DepositState = "idle"
	StateValidating DepositState = "validating"
	StateResolving  DepositState = "resolving"
	StateBuilding   DepositState = "building"
	StateSubmitted  DepositState = "submitted"
	StateConfirmed  DepositState = "confirmed"
	StateFailed     DepositState = "failed"
)

// DepositFailedError is any deposit failure after input validation. Stage
// is the state the deposit was in when it failed.
type DepositFailedError struct {
	Stage DepositState
	Err   error
}

func (e *DepositFailedError) Error() string {
	return fmt.Sprintf("deposit failed while %s: %v", e.Stage, e.Err)
}

func (e *DepositFailedError) Unwrap() error { return e.Err }

// DepositPlan is a validated, built but unsubmitted deposit.
type DepositPlan struct {
	ExecutionID  string               `json:"execution_id"`
	Symbol       string               `json:"symbol"`
	Amount       string               `json:"amount"`
	AmountRaw    uint64               `json:"amount_raw"`
	Creates      []solana.PublicKey   `json:"creates"`
	Vault        *VaultView           `json:"vault"`
	Instructions []solana.Instruction `json:"-"`
}

// TxResult is the outcome of a confirmed deposit.
type TxResult struct {
	ExecutionID string        `json:"execution_id"`
	Signature   string        `json:"signature"`
	State       DepositState  `json:"state"`
	Symbol      string        `json:"symbol"`
	AmountRaw   uint64        `json:"amount_raw"`
	Vault       *VaultView    `json:"vault"`
	Duration    time.Duration `json:"duration"`
}

type DepositConfig struct {
	ProgramIDs  programs.ProgramIDs
	Units       *units.Table
	Recorder    cache.Recorder
	Invalidator cache.Invalidator
	Logger      *logrus.Logger
}

// DepositEngine mints conditional tokens by depositing the underlying token
// into a vault.
type DepositEngine struct {
	client      chain.Client
	resolver    *Resolver
	ids         programs.ProgramIDs
	units       *units.Table
	recorder    cache.Recorder
	invalidator cache.Invalidator
	logger      *logrus.Logger
}

func NewDepositEngine(client chain.Client, resolver *Resolver, cfg DepositConfig) *DepositEngine {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Units == nil {
		cfg.Units = units.DefaultTable()
	}
	return &DepositEngine{
		client:      client,
		resolver:    resolver,
		ids:         cfg.ProgramIDs,
		units:       cfg.Units,
		recorder:    cfg.Recorder,
		invalidator: cfg.Invalidator,
		logger:      cfg.Logger,
	}
}

type depositRun struct {
	id     string
	state  DepositState
	logger *logrus.Entry
}

func (d *depositRun) transition(to DepositState) {
	d.logger.WithFields(logrus.Fields{
		"from": d.state,
		"to":   to,
	}).Info("deposit state")
	d.state = to
}

func (d *depositRun) fail(err error) error {
	stage := d.state
	d.transition(StateFailed)
	d.logger.WithError(err).WithField("stage", stage).Warn("deposit failed")
	return &DepositFailedError{Stage: stage, Err: err}
}

func (e *DepositEngine) newRun(vaultAddr, walletAddr solana.PublicKey) *depositRun {
	id := uuid.NewString()
	return &depositRun{
		id:    id,
		state: StateIdle,
		logger: e.logger.WithFields(logrus.Fields{
			"execution_id": id,
			"vault":        vaultAddr.String(),
			"wallet":       walletAddr.String(),
		}),
	}
}

// BuildDeposit validates the input, resolves the vault and builds the
// instruction list without submitting it.
func (e *DepositEngine) BuildDeposit(ctx context.Context, vaultAddr, walletAddr solana.PublicKey, amount, symbol string) (*DepositPlan, error) {
	return e.build(ctx, e.newRun(vaultAddr, walletAddr), vaultAddr, walletAddr, amount, symbol)
}

func (e *DepositEngine) build(ctx context.Context, run *depositRun, vaultAddr, walletAddr solana.PublicKey, amount, symbol string) (*DepositPlan, error) {
	run.transition(StateValidating)
	display, err := units.ParseAmount(amount)
	if err != nil {
		run.transition(StateFailed)
		return nil, err
	}
	if symbol != "" {
		if _, err := e.rawAmount(symbol, amount, display); err != nil {
			run.transition(StateFailed)
			return nil, err
		}
	}

	run.transition(StateResolving)
	view, err := e.resolver.ResolveVault(ctx, vaultAddr, walletAddr)
	if err != nil {
		return nil, run.fail(err)
	}

	// the scale must be the underlying mint's
	symbol, err = view.ResolveSymbol(e.units, symbol)
	if err != nil {
		run.transition(StateFailed)
		return nil, err
	}
	raw, err := e.rawAmount(symbol, amount, display)
	if err != nil {
		run.transition(StateFailed)
		return nil, err
	}

	run.transition(StateBuilding)
	plan := &DepositPlan{
		ExecutionID: run.id,
		Symbol:      symbol,
		Amount:      display.String(),
		AmountRaw:   raw,
		Vault:       view,
	}

	// pass before fail; the underlying account must already exist
	for _, p := range []*Position{&view.Pass, &view.Fail} {
		if p.NeedsCreation {
			plan.Instructions = append(plan.Instructions, p.PreIxs...)
			plan.Creates = append(plan.Creates, p.Account)
		}
	}

	mint, err := programs.NewMintConditionalTokensInstruction(e.ids.ConditionalVault, programs.MintConditionalTokensAccounts{
		Authority:                          walletAddr,
		Vault:                              vaultAddr,
		VaultUnderlyingTokenAccount:        view.Vault.UnderlyingTokenAccount,
		UserUnderlyingTokenAccount:         view.Underlying.Account,
		ConditionalOnFinalizeTokenMint:     view.Vault.ConditionalOnFinalizeTokenMint,
		UserConditionalOnFinalizeTokenAcct: view.Pass.Account,
		ConditionalOnRevertTokenMint:       view.Vault.ConditionalOnRevertTokenMint,
		UserConditionalOnRevertTokenAcct:   view.Fail.Account,
	}, raw)
	if err != nil {
		return nil, run.fail(err)
	}
	plan.Instructions = append(plan.Instructions, mint)

	return plan, nil
}

func (e *DepositEngine) rawAmount(symbol, input string, display decimal.Decimal) (uint64, error) {
	raw, err := e.units.ToSmallestUnits(symbol, display)
	if err != nil {
		return 0, err
	}
	if raw == 0 {
		return 0, &units.InvalidAmountError{Input: input, Reason: "below the smallest unit"}
	}
	return raw, nil
}

// DepositConditional deposits amount of symbol into the vault (symbol may be
// empty to use the underlying mint's asset), creating the
// wallet's pass/fail accounts first when they are missing, and waits for
// confirmation. There are no retries.
func (e *DepositEngine) DepositConditional(ctx context.Context, vaultAddr, walletAddr solana.PublicKey, amount, symbol string) (*TxResult, error) {
	start := time.Now()
	run := e.newRun(vaultAddr, walletAddr)

	plan, err := e.build(ctx, run, vaultAddr, walletAddr, amount, symbol)
	if err != nil {
		return nil, err
	}

	sig, bh, err := e.client.Send(ctx, plan.Instructions, walletAddr)
	if err != nil {
		return nil, run.fail(err)
	}
	run.transition(StateSubmitted)
	run.logger.WithField("signature", sig).Info("deposit submitted")

	ev := cache.Event{
		ID:        run.id,
		Kind:      cache.EventDeposit,
		Signature: sig,
		Wallet:    walletAddr.String(),
		Subject:   vaultAddr.String(),
		TokenIn:   plan.Symbol,
		Amount:    plan.Amount,
		AmountRaw: plan.AmountRaw,
	}

	if err := e.client.Confirm(ctx, sig, bh); err != nil {
		failed := run.fail(err)
		ev.Error = err.Error()
		e.finish(ctx, ev, start)
		return nil, failed
	}
	run.transition(StateConfirmed)

	ev.Success = true
	e.finish(ctx, ev, start)

	if e.invalidator != nil {
		if err := e.invalidator.InvalidateVault(ctx, vaultAddr.String(), walletAddr.String()); err != nil {
			run.logger.WithError(err).Warn("failed to invalidate vault snapshot")
		}
	}

	result := &TxResult{
		ExecutionID: run.id,
		Signature:   sig,
		State:       StateConfirmed,
		Symbol:      plan.Symbol,
		AmountRaw:   plan.AmountRaw,
		Vault:       plan.Vault,
		Duration:    time.Since(start),
	}

	// balances changed; a failed re-read keeps the pre-deposit view
	if fresh, err := e.resolver.ResolveVault(ctx, vaultAddr, walletAddr); err == nil {
		result.Vault = fresh
	} else {
		run.logger.WithError(err).Warn("failed to refresh vault after deposit")
	}

	return result, nil
}

func (e *DepositEngine) finish(ctx context.Context, ev cache.Event, start time.Time) {
	if e.recorder == nil {
		return
	}
	ev.Duration = time.Since(start)
	ev.ExecutedAt = time.Now().UTC()
	if err := e.recorder.Record(ctx, ev); err != nil {
		e.logger.WithError(err).WithField("execution_id", ev.ID).Debug("failed to record deposit event")
	}
}
