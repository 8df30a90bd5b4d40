package swapengine

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/metaproph3t/futarchy-ui/internal/cache"
	"github.com/metaproph3t/futarchy-ui/internal/chain"
	"github.com/metaproph3t/futarchy-ui/internal/market"
	"github.com/metaproph3t/futarchy-ui/internal/programs"
	"github.com/metaproph3t/futarchy-ui/internal/proposals"
	"github.com/metaproph3t/futarchy-ui/internal/rpc"
	"github.com/sirupsen/logrus"
)

// Executor resolves, builds, simulates and submits take orders.
type Executor struct {
	client      chain.Client
	proposals   *proposals.Reader
	markets     *market.Resolver
	accounts    chain.TokenAccountResolver
	decisions   *DecisionEngine
	ids         programs.ProgramIDs
	recorder    cache.Recorder
	invalidator cache.Invalidator
	logger      *logrus.Logger
}

// preparedOrder is everything simulate and execute share.
type preparedOrder struct {
	id           string
	wallet       solana.PublicKey
	order        *OrderRequest
	market       *market.MarketView
	base         *chain.ResolvedTokenAccount
	quote        *chain.ResolvedTokenAccount
	preIxs       []solana.Instruction
	takeIx       solana.Instruction
	instructions []solana.Instruction
	creates      []solana.PublicKey
}

func (e *Executor) prepare(ctx context.Context, intent *SwapIntent, wallet solana.PublicKey, mode Mode) (*preparedOrder, error) {
	if err := e.decisions.ValidateIntent(intent); err != nil {
		return nil, err
	}

	proposal, err := e.proposals.Get(ctx, intent.Proposal)
	if err != nil {
		return nil, failed(StageProposal, err)
	}

	mkt, err := e.markets.ResolveMarket(ctx, intent.Proposal, proposal.Proposal, intent.Branch)
	if err != nil {
		return nil, failed(StageMarket, err)
	}

	order, err := e.decisions.SizeOrder(intent, mkt.Lots(), mode)
	if err != nil {
		return nil, err
	}

	book := mkt.Market
	base, err := e.accounts.Resolve(ctx, wallet, book.BaseMint, wallet)
	if err != nil {
		return nil, failed(StageAccounts, fmt.Errorf("base account: %w", err))
	}
	quote, err := e.accounts.Resolve(ctx, wallet, book.QuoteMint, wallet)
	if err != nil {
		return nil, failed(StageAccounts, fmt.Errorf("quote account: %w", err))
	}

	p := &preparedOrder{
		id:     uuid.NewString(),
		wallet: wallet,
		order:  order,
		market: mkt,
		base:   base,
		quote:  quote,
	}
	for _, leg := range []*chain.ResolvedTokenAccount{base, quote} {
		if leg.NeedsCreation {
			p.preIxs = append(p.preIxs, leg.PreIxs...)
			p.creates = append(p.creates, leg.Account)
		}
	}

	p.takeIx, err = programs.NewPlaceTakeOrderInstruction(e.ids, programs.PlaceTakeOrderAccounts{
		Signer:           wallet,
		Market:           mkt.Address,
		MarketAuthority:  book.MarketAuthority,
		Bids:             book.Bids,
		Asks:             book.Asks,
		MarketBaseVault:  book.MarketBaseVault,
		MarketQuoteVault: book.MarketQuoteVault,
		EventHeap:        book.EventHeap,
		UserBaseAccount:  base.Account,
		UserQuoteAccount: quote.Account,
		OracleA:          book.OracleA,
		OracleB:          book.OracleB,
		TwapMarket:       mkt.TwapMarket,
	}, order.Args())
	if err != nil {
		return nil, failed(StageBuild, err)
	}
	p.instructions = append(append([]solana.Instruction{}, p.preIxs...), p.takeIx)

	e.logger.WithFields(logrus.Fields{
		"execution_id":   p.id,
		"mode":           mode,
		"proposal":       intent.Proposal.String(),
		"branch":         intent.Branch.String(),
		"direction":      order.Direction,
		"max_base_lots":  order.MaxBaseLots,
		"max_quote_lots": order.MaxQuoteLotsIncludingFees,
		"creates":        len(p.creates),
	}).Debug("order prepared")

	return p, nil
}

func (e *Executor) simulate(ctx context.Context, intent *SwapIntent, wallet solana.PublicKey) (*Quote, error) {
	p, err := e.prepare(ctx, intent, wallet, ModeSimulate)
	if err != nil {
		return nil, err
	}

	res, err := e.client.Simulate(ctx, p.instructions, wallet, []solana.PublicKey{p.base.Account, p.quote.Account})
	if err != nil {
		return nil, failed(StageSimulate, err)
	}

	q := &Quote{
		TokenOut:      intent.TokenOut,
		PreBase:       p.base.Balance,
		PreQuote:      p.quote.Balance,
		Creates:       p.creates,
		UnitsConsumed: res.UnitsConsumed,
		Order:         p.order,
		Market:        p.market.Address,
		QuotedAt:      time.Now(),
	}

	if !res.Success || len(res.Accounts) < 2 || res.Accounts[0] == nil || res.Accounts[1] == nil {
		q.Insufficient = true
		q.SimulationError = res.Error
		e.logger.WithFields(logrus.Fields{
			"execution_id": p.id,
			"error":        res.Error,
		}).Info("simulation cannot fill order")
		return q, nil
	}

	q.PostBase, err = projectedBalance(res.Accounts[0])
	if err != nil {
		return nil, failed(StageSimulate, fmt.Errorf("base projection: %w", err))
	}
	q.PostQuote, err = projectedBalance(res.Accounts[1])
	if err != nil {
		return nil, failed(StageSimulate, fmt.Errorf("quote projection: %w", err))
	}

	if p.order.Direction == DirectionBuy {
		q.ExpectedOutRaw = int64(q.PostBase) - int64(q.PreBase)
	} else {
		q.ExpectedOutRaw = int64(q.PostQuote) - int64(q.PreQuote)
	}
	q.ExpectedOut, err = e.decisions.units.ToDisplayUnits(intent.TokenOut, q.ExpectedOutRaw)
	if err != nil {
		return nil, err
	}

	return q, nil
}

func projectedBalance(info *rpc.AccountInfo) (uint64, error) {
	data, err := rpc.DecodeData(info.Data)
	if err != nil {
		return 0, err
	}
	return programs.DecodeTokenBalance(data)
}

func (e *Executor) execute(ctx context.Context, intent *SwapIntent, wallet solana.PublicKey) (*SwapResult, error) {
	start := time.Now()

	p, err := e.prepare(ctx, intent, wallet, ModeExecute)
	if err != nil {
		return &SwapResult{Success: false, Error: err.Error()}, err
	}

	result := &SwapResult{
		ExecutionID: p.id,
		Order:       p.order,
		Market:      p.market.Address,
		Creates:     p.creates,
	}
	log := e.logger.WithField("execution_id", p.id)

	ev := cache.Event{
		ID:        p.id,
		Kind:      cache.EventSwap,
		Wallet:    wallet.String(),
		Subject:   intent.Proposal.String(),
		Branch:    intent.Branch.String(),
		TokenIn:   intent.TokenIn,
		TokenOut:  intent.TokenOut,
		Amount:    p.order.InputAmount,
		AmountRaw: p.order.InputRaw,
	}

	sig, bh, err := e.client.Send(ctx, p.instructions, wallet)
	if err != nil {
		err = failed(StageSend, err)
		result.Error = err.Error()
		result.Duration = time.Since(start)
		log.WithError(err).Warn("swap send failed")
		return result, err
	}
	result.Signature = sig
	ev.Signature = sig
	log.WithField("signature", sig).Info("swap submitted")

	if err := e.client.Confirm(ctx, sig, bh); err != nil {
		err = failed(StageConfirm, err)
		result.Error = err.Error()
		result.Duration = time.Since(start)
		ev.Error = err.Error()
		e.record(ctx, ev, start)
		log.WithError(err).Warn("swap confirmation failed")
		return result, err
	}

	result.Success = true
	result.Duration = time.Since(start)
	ev.Success = true
	e.record(ctx, ev, start)

	if e.invalidator != nil {
		if err := e.invalidator.InvalidateMarket(ctx, intent.Proposal.String(), intent.Branch.String()); err != nil {
			log.WithError(err).Warn("failed to invalidate market snapshot")
		}
	}

	log.WithField("duration", result.Duration).Info("swap confirmed")
	return result, nil
}

func (e *Executor) record(ctx context.Context, ev cache.Event, start time.Time) {
	if e.recorder == nil {
		return
	}
	ev.Duration = time.Since(start)
	ev.ExecutedAt = time.Now().UTC()
	if err := e.recorder.Record(ctx, ev); err != nil {
		e.logger.WithError(err).WithField("execution_id", ev.ID).Debug("failed to record swap event")
	}
}
