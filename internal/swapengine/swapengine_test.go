package swapengine

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/metaproph3t/futarchy-ui/internal/cache"
	"github.com/metaproph3t/futarchy-ui/internal/chain"
	"github.com/metaproph3t/futarchy-ui/internal/chain/chaintest"
	"github.com/metaproph3t/futarchy-ui/internal/market"
	"github.com/metaproph3t/futarchy-ui/internal/programs"
	"github.com/metaproph3t/futarchy-ui/internal/rpc"
	"github.com/metaproph3t/futarchy-ui/internal/units"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey() solana.PublicKey { return solana.NewWallet().PublicKey() }

// 1 META per base lot, 0.0001 USDC per quote lot
var testLots = units.Lots{BaseLotSize: 1_000_000_000, QuoteLotSize: 100, BaseDecimals: 9, QuoteDecimals: 6}

type fixture struct {
	ledger   *chaintest.Ledger
	wallet   solana.PublicKey
	proposal solana.PublicKey
	market   solana.PublicKey
	failTwap solana.PublicKey
	book     programs.OpenbookMarket
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ledger:   chaintest.NewLedger(),
		wallet:   newKey(),
		proposal: newKey(),
		market:   newKey(),
		failTwap: newKey(),
		book: programs.OpenbookMarket{
			BaseDecimals:     uint8(testLots.BaseDecimals),
			QuoteDecimals:    uint8(testLots.QuoteDecimals),
			MarketAuthority:  newKey(),
			Bids:             newKey(),
			Asks:             newKey(),
			EventHeap:        newKey(),
			BaseMint:         newKey(),
			QuoteMint:        newKey(),
			MarketBaseVault:  newKey(),
			MarketQuoteVault: newKey(),
			BaseLotSize:      testLots.BaseLotSize,
			QuoteLotSize:     testLots.QuoteLotSize,
		},
	}
	twap := newKey()
	require.NoError(t, f.ledger.PutAnchor(f.proposal, "Proposal", programs.Proposal{
		Number:                 3,
		OpenbookTwapPassMarket: twap,
		OpenbookTwapFailMarket: f.failTwap,
	}))
	require.NoError(t, f.ledger.PutAnchor(twap, programs.AccountNameTwapMarket, programs.TwapMarket{Market: f.market}))
	require.NoError(t, f.ledger.PutAnchor(f.market, programs.AccountNameOpenbookMarket, f.book))
	return f
}

// withFailMarket stores the fail-branch TWAP market and a book trading its
// own conditional mints.
func (f *fixture) withFailMarket(t *testing.T) (solana.PublicKey, programs.OpenbookMarket) {
	t.Helper()
	book := f.book
	book.Bids, book.Asks, book.EventHeap = newKey(), newKey(), newKey()
	book.BaseMint, book.QuoteMint = newKey(), newKey()
	book.MarketBaseVault, book.MarketQuoteVault = newKey(), newKey()
	addr := newKey()
	require.NoError(t, f.ledger.PutAnchor(f.failTwap, programs.AccountNameTwapMarket, programs.TwapMarket{Market: addr}))
	require.NoError(t, f.ledger.PutAnchor(addr, programs.AccountNameOpenbookMarket, book))
	return addr, book
}

func (f *fixture) fund(t *testing.T, base, quote uint64) (baseATA, quoteATA solana.PublicKey) {
	t.Helper()
	var err error
	baseATA, err = f.ledger.PutTokenAccount(f.wallet, f.book.BaseMint, base)
	require.NoError(t, err)
	quoteATA, err = f.ledger.PutTokenAccount(f.wallet, f.book.QuoteMint, quote)
	require.NoError(t, err)
	return baseATA, quoteATA
}

// projectAfter makes simulations report the given post-trade balances.
func (f *fixture) projectAfter(t *testing.T, base, quote uint64) {
	t.Helper()
	baseInfo, err := chaintest.TokenAccountInfo(f.book.BaseMint, f.wallet, base)
	require.NoError(t, err)
	quoteInfo, err := chaintest.TokenAccountInfo(f.book.QuoteMint, f.wallet, quote)
	require.NoError(t, err)
	f.ledger.SimulateFunc = func(chaintest.Submission) (*chain.SimulationResult, error) {
		return &chain.SimulationResult{
			Success:       true,
			UnitsConsumed: 42_000,
			Accounts:      []*rpc.AccountInfo{baseInfo, quoteInfo},
		}, nil
	}
}

func (f *fixture) intent(in, out, amount string) SwapIntent {
	return SwapIntent{
		Proposal: f.proposal,
		Branch:   market.BranchPass,
		TokenIn:  in,
		TokenOut: out,
		Amount:   amount,
		Wallet:   f.wallet,
	}
}

type recordingSink struct {
	events      []cache.Event
	invalidated []string
}

func (r *recordingSink) Record(_ context.Context, ev cache.Event) error {
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingSink) InvalidateVault(context.Context, string, string) error { return nil }

func (r *recordingSink) InvalidateMarket(_ context.Context, proposal, branch string) error {
	r.invalidated = append(r.invalidated, cache.MarketKey(proposal, branch))
	return nil
}

func newEngine(f *fixture, sink *recordingSink) *Engine {
	cfg := DefaultEngineConfig()
	if sink != nil {
		cfg.Recorder = sink
		cfg.Invalidator = sink
	}
	return NewEngine(f.ledger, cfg)
}

func TestSizeOrder(t *testing.T) {
	de := NewDecisionEngine(units.DefaultTable(), "META", "USDC")

	t.Run("buy caps quote only", func(t *testing.T) {
		order, err := de.SizeOrder(&SwapIntent{TokenIn: "USDC", TokenOut: "META", Amount: "10"}, testLots, ModeSimulate)
		require.NoError(t, err)
		assert.Equal(t, DirectionBuy, order.Direction)
		assert.Equal(t, programs.SideBid, order.Side)
		assert.Equal(t, programs.MaxPriceLots, order.PriceLots)
		assert.Equal(t, UncappedLots, order.MaxBaseLots)
		assert.Equal(t, int64(100_000), order.MaxQuoteLotsIncludingFees)
		assert.Equal(t, uint64(10_000_000), order.InputRaw)
		assert.Equal(t, programs.OrderTypeMarket, order.OrderType)
		assert.Equal(t, programs.SelfTradeDecrementTake, order.SelfTradeBehavior)
		assert.Equal(t, uint8(programs.MaxFillLimit), order.Limit)
	})

	t.Run("sell caps base only", func(t *testing.T) {
		order, err := de.SizeOrder(&SwapIntent{TokenIn: "META", TokenOut: "USDC", Amount: "2.5"}, testLots, ModeExecute)
		require.NoError(t, err)
		assert.Equal(t, DirectionSell, order.Direction)
		assert.Equal(t, programs.SideAsk, order.Side)
		assert.Equal(t, programs.MinPriceLots, order.PriceLots)
		assert.Equal(t, int64(2), order.MaxBaseLots)
		assert.Equal(t, UncappedLots, order.MaxQuoteLotsIncludingFees)
		assert.Equal(t, ModeExecute, order.Mode)
	})

	t.Run("below one lot", func(t *testing.T) {
		_, err := de.SizeOrder(&SwapIntent{TokenIn: "META", TokenOut: "USDC", Amount: "0.5"}, testLots, ModeSimulate)
		assert.ErrorIs(t, err, units.ErrInvalidAmount)

		_, err = de.SizeOrder(&SwapIntent{TokenIn: "USDC", TokenOut: "META", Amount: "0.00001"}, testLots, ModeSimulate)
		assert.ErrorIs(t, err, units.ErrInvalidAmount)
	})

	t.Run("market decimals must match", func(t *testing.T) {
		lots := testLots
		lots.QuoteDecimals = 9
		_, err := de.SizeOrder(&SwapIntent{TokenIn: "USDC", TokenOut: "META", Amount: "10"}, lots, ModeSimulate)
		var mismatch *units.ScaleMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, "USDC", mismatch.Symbol)
		assert.Equal(t, int32(9), mismatch.OnChain)

		lots = testLots
		lots.BaseDecimals = 6
		_, err = de.SizeOrder(&SwapIntent{TokenIn: "META", TokenOut: "USDC", Amount: "1"}, lots, ModeSimulate)
		assert.ErrorIs(t, err, units.ErrScaleMismatch)
	})
}

func TestValidateIntent(t *testing.T) {
	de := NewDecisionEngine(units.DefaultTable(), "META", "USDC")
	p := newKey()

	assert.NoError(t, de.ValidateIntent(&SwapIntent{Proposal: p, TokenIn: "USDC", TokenOut: "META", Amount: "1"}))
	assert.ErrorIs(t, de.ValidateIntent(&SwapIntent{Proposal: p, TokenIn: "META", TokenOut: "META", Amount: "1"}), ErrInvalidPair)
	assert.ErrorIs(t, de.ValidateIntent(&SwapIntent{Proposal: p, TokenIn: "SOL", TokenOut: "META", Amount: "1"}), units.ErrUnknownAsset)
	assert.ErrorIs(t, de.ValidateIntent(&SwapIntent{Proposal: p, TokenIn: "USDC", TokenOut: "META", Amount: "-3"}), units.ErrInvalidAmount)
	assert.ErrorIs(t, de.ValidateIntent(&SwapIntent{Proposal: p, TokenIn: "USDC", TokenOut: "META", Amount: "abc"}), units.ErrInvalidAmount)
	assert.Error(t, de.ValidateIntent(&SwapIntent{TokenIn: "USDC", TokenOut: "META", Amount: "1"}))
}

func TestSimulateSwap_BuyExpectedOut(t *testing.T) {
	f := newFixture(t)
	f.fund(t, 1_000_000_000, 50_000_000)
	f.projectAfter(t, 3_000_000_000, 40_000_000)

	q, err := newEngine(f, nil).SimulateSwap(context.Background(), f.intent("USDC", "META", "10"))
	require.NoError(t, err)

	assert.False(t, q.Insufficient)
	assert.Equal(t, int64(2_000_000_000), q.ExpectedOutRaw)
	assert.Equal(t, 2.0, q.ExpectedOut)
	assert.Equal(t, "META", q.TokenOut)
	assert.Equal(t, uint64(1_000_000_000), q.PreBase)
	assert.Equal(t, uint64(40_000_000), q.PostQuote)
	assert.Equal(t, uint64(42_000), q.UnitsConsumed)
	assert.Equal(t, f.market, q.Market)
	assert.Empty(t, q.Creates)

	require.Len(t, f.ledger.Simulated, 1)
	sub := f.ledger.Simulated[0]
	assert.Equal(t, f.wallet, sub.Payer)
	require.Len(t, sub.Instructions, 1)
	assert.Equal(t, programs.DefaultProgramIDs().OpenbookTwap, sub.Instructions[0].ProgramID())

	baseATA, _ := chain.DeriveAssociatedAddress(f.wallet, f.book.BaseMint)
	quoteATA, _ := chain.DeriveAssociatedAddress(f.wallet, f.book.QuoteMint)
	assert.Equal(t, []solana.PublicKey{baseATA, quoteATA}, sub.Projected)
}

func TestSimulateSwap_SellExpectedOut(t *testing.T) {
	f := newFixture(t)
	f.fund(t, 5_000_000_000, 0)
	f.projectAfter(t, 3_000_000_000, 1_234_567)

	q, err := newEngine(f, nil).SimulateSwap(context.Background(), f.intent("META", "USDC", "2"))
	require.NoError(t, err)
	assert.Equal(t, int64(1_234_567), q.ExpectedOutRaw)
	assert.Equal(t, 1.23, q.ExpectedOut)
	assert.Equal(t, int64(2), q.Order.MaxBaseLots)
}

func TestSimulateSwap_MissingAccountsAddCreation(t *testing.T) {
	f := newFixture(t)

	// default ledger simulation projects nothing for accounts that do not
	// exist yet
	q, err := newEngine(f, nil).SimulateSwap(context.Background(), f.intent("USDC", "META", "10"))
	require.NoError(t, err)
	assert.True(t, q.Insufficient)
	assert.Len(t, q.Creates, 2)

	require.Len(t, f.ledger.Simulated, 1)
	ixs := f.ledger.Simulated[0].Instructions
	require.Len(t, ixs, 3)
	assert.Equal(t, solana.SPLAssociatedTokenAccountProgramID, ixs[0].ProgramID())
	assert.Equal(t, solana.SPLAssociatedTokenAccountProgramID, ixs[1].ProgramID())
	assert.Equal(t, programs.DefaultProgramIDs().OpenbookTwap, ixs[2].ProgramID())
	assert.Empty(t, f.ledger.Sent)
}

func TestSimulateSwap_FailedSimulationIsInsufficient(t *testing.T) {
	f := newFixture(t)
	f.fund(t, 0, 1_000_000)
	f.ledger.SimulateFunc = func(chaintest.Submission) (*chain.SimulationResult, error) {
		return &chain.SimulationResult{Success: false, Error: "custom program error: 0x1"}, nil
	}

	q, err := newEngine(f, nil).SimulateSwap(context.Background(), f.intent("USDC", "META", "1"))
	require.NoError(t, err)
	assert.True(t, q.Insufficient)
	assert.Equal(t, "custom program error: 0x1", q.SimulationError)
	assert.Zero(t, q.ExpectedOut)
}

func TestSimulateSwap_TransportErrorFails(t *testing.T) {
	f := newFixture(t)
	f.fund(t, 0, 1_000_000)
	f.ledger.SimulateFunc = func(chaintest.Submission) (*chain.SimulationResult, error) {
		return nil, errors.New("connection refused")
	}

	_, err := newEngine(f, nil).SimulateSwap(context.Background(), f.intent("USDC", "META", "1"))
	var sf *SwapFailedError
	require.ErrorAs(t, err, &sf)
	assert.Equal(t, StageSimulate, sf.Stage)
}

func TestSimulateSwap_MarketDecimalsMustMatch(t *testing.T) {
	f := newFixture(t)
	f.book.BaseDecimals = 6
	require.NoError(t, f.ledger.PutAnchor(f.market, programs.AccountNameOpenbookMarket, f.book))
	f.fund(t, 5_000_000_000, 0)

	_, err := newEngine(f, nil).SimulateSwap(context.Background(), f.intent("META", "USDC", "2"))
	assert.ErrorIs(t, err, units.ErrScaleMismatch)
	var sf *SwapFailedError
	assert.False(t, errors.As(err, &sf))
	assert.Empty(t, f.ledger.Simulated)
}

func TestSimulateSwap_ValidationBeforeNetwork(t *testing.T) {
	mc := &chaintest.MockClient{}
	e := NewEngine(mc, DefaultEngineConfig())

	_, err := e.SimulateSwap(context.Background(), SwapIntent{
		Proposal: newKey(), TokenIn: "META", TokenOut: "META", Amount: "1", Wallet: newKey(),
	})
	assert.ErrorIs(t, err, ErrInvalidPair)

	_, err = e.SimulateSwap(context.Background(), SwapIntent{
		Proposal: newKey(), TokenIn: "USDC", TokenOut: "META", Amount: "0", Wallet: newKey(),
	})
	assert.ErrorIs(t, err, units.ErrInvalidAmount)

	var sf *SwapFailedError
	assert.False(t, errors.As(err, &sf))
	mc.AssertNotCalled(t, "FetchAccount")
}

func TestSimulateSwap_NoWallet(t *testing.T) {
	f := newFixture(t)
	in := f.intent("USDC", "META", "1")
	in.Wallet = solana.PublicKey{}

	_, err := newEngine(f, nil).SimulateSwap(context.Background(), in)
	assert.ErrorIs(t, err, ErrNoWallet)

	cfg := DefaultEngineConfig()
	cfg.DefaultWallet = f.wallet
	f.fund(t, 0, 1_000_000)
	f.projectAfter(t, 1_000_000_000, 0)
	q, err := NewEngine(f.ledger, cfg).SimulateSwap(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, f.wallet, f.ledger.Simulated[0].Payer)
	assert.Equal(t, 1.0, q.ExpectedOut)
}

func TestSimulateSwap_ProposalNotFound(t *testing.T) {
	f := newFixture(t)
	in := f.intent("USDC", "META", "1")
	in.Proposal = newKey()

	_, err := newEngine(f, nil).SimulateSwap(context.Background(), in)
	var sf *SwapFailedError
	require.ErrorAs(t, err, &sf)
	assert.Equal(t, StageProposal, sf.Stage)
	var nf *chain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "proposal", nf.Kind)
	assert.ErrorIs(t, err, chain.ErrAccountNotFound)
}

func TestExecuteSwap_MatchesSimulatedOrder(t *testing.T) {
	f := newFixture(t)
	f.fund(t, 0, 20_000_000)
	f.projectAfter(t, 1_000_000_000, 10_000_000)
	sink := &recordingSink{}
	e := newEngine(f, sink)

	q, err := e.SimulateSwap(context.Background(), f.intent("USDC", "META", "10"))
	require.NoError(t, err)
	res, err := e.ExecuteSwap(context.Background(), f.intent("USDC", "META", "10"))
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "sig-1", res.Signature)
	assert.NotEmpty(t, res.ExecutionID)
	assert.Equal(t, []string{"sig-1"}, f.ledger.Confirmed)

	want := *q.Order
	want.Mode = ModeExecute
	assert.Equal(t, want, *res.Order)

	require.Len(t, f.ledger.Simulated, 1)
	require.Len(t, f.ledger.Sent, 1)
	simIxs, sentIxs := f.ledger.Simulated[0].Instructions, f.ledger.Sent[0].Instructions
	require.Len(t, sentIxs, len(simIxs))
	for i := range simIxs {
		simData, err := simIxs[i].Data()
		require.NoError(t, err)
		sentData, err := sentIxs[i].Data()
		require.NoError(t, err)
		assert.Equal(t, simData, sentData)
		assert.Equal(t, simIxs[i].Accounts(), sentIxs[i].Accounts())
	}

	require.Len(t, sink.events, 1)
	ev := sink.events[0]
	assert.Equal(t, cache.EventSwap, ev.Kind)
	assert.True(t, ev.Success)
	assert.Equal(t, "sig-1", ev.Signature)
	assert.Equal(t, "pass", ev.Branch)
	assert.Equal(t, uint64(10_000_000), ev.AmountRaw)
	assert.Equal(t, []string{cache.MarketKey(f.proposal.String(), "pass")}, sink.invalidated)
}

func TestExecuteSwap_IncludesCreationInstructions(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.PutTokenAccount(f.wallet, f.book.QuoteMint, 20_000_000)
	require.NoError(t, err)

	res, err := newEngine(f, nil).ExecuteSwap(context.Background(), f.intent("USDC", "META", "10"))
	require.NoError(t, err)

	baseATA, _ := chain.DeriveAssociatedAddress(f.wallet, f.book.BaseMint)
	assert.Equal(t, []solana.PublicKey{baseATA}, res.Creates)
	require.Len(t, f.ledger.Sent, 1)
	ixs := f.ledger.Sent[0].Instructions
	require.Len(t, ixs, 2)
	assert.Equal(t, solana.SPLAssociatedTokenAccountProgramID, ixs[0].ProgramID())
}

func TestExecuteSwap_SendFailure(t *testing.T) {
	f := newFixture(t)
	f.fund(t, 0, 20_000_000)
	f.ledger.SendErr = errors.New("blockhash not found")
	sink := &recordingSink{}

	res, err := newEngine(f, sink).ExecuteSwap(context.Background(), f.intent("USDC", "META", "10"))
	var sf *SwapFailedError
	require.ErrorAs(t, err, &sf)
	assert.Equal(t, StageSend, sf.Stage)
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "blockhash not found")
	assert.Empty(t, sink.events)
	assert.Empty(t, sink.invalidated)
}

func TestExecuteSwap_ConfirmFailure(t *testing.T) {
	f := newFixture(t)
	f.fund(t, 0, 20_000_000)
	f.ledger.ConfirmErr = errors.New("transaction failed on chain")
	sink := &recordingSink{}

	res, err := newEngine(f, sink).ExecuteSwap(context.Background(), f.intent("USDC", "META", "10"))
	var sf *SwapFailedError
	require.ErrorAs(t, err, &sf)
	assert.Equal(t, StageConfirm, sf.Stage)
	assert.Equal(t, "sig-1", res.Signature)
	assert.False(t, res.Success)

	require.Len(t, sink.events, 1)
	assert.False(t, sink.events[0].Success)
	assert.NotEmpty(t, sink.events[0].Error)
	assert.Empty(t, sink.invalidated)
}

func TestExecuteSwap_FailBranchMarketMissing(t *testing.T) {
	f := newFixture(t)
	in := f.intent("USDC", "META", "10")
	in.Branch = market.BranchFail

	// fail-branch twap market was never stored
	_, err := newEngine(f, nil).ExecuteSwap(context.Background(), in)
	var nf *chain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "twap market", nf.Kind)
	var sf *SwapFailedError
	require.ErrorAs(t, err, &sf)
	assert.Equal(t, StageMarket, sf.Stage)
	assert.Empty(t, f.ledger.Sent)
}

func TestSwap_FailBranchSellSimulateThenExecute(t *testing.T) {
	f := newFixture(t)
	failMarket, book := f.withFailMarket(t)
	_, err := f.ledger.PutTokenAccount(f.wallet, book.BaseMint, 5_000_000_000)
	require.NoError(t, err)
	_, err = f.ledger.PutTokenAccount(f.wallet, book.QuoteMint, 0)
	require.NoError(t, err)

	baseInfo, err := chaintest.TokenAccountInfo(book.BaseMint, f.wallet, 3_000_000_000)
	require.NoError(t, err)
	quoteInfo, err := chaintest.TokenAccountInfo(book.QuoteMint, f.wallet, 1_500_000)
	require.NoError(t, err)
	f.ledger.SimulateFunc = func(chaintest.Submission) (*chain.SimulationResult, error) {
		return &chain.SimulationResult{Success: true, Accounts: []*rpc.AccountInfo{baseInfo, quoteInfo}}, nil
	}

	in := f.intent("META", "USDC", "2")
	in.Branch = market.BranchFail
	sink := &recordingSink{}
	e := newEngine(f, sink)

	q, err := e.SimulateSwap(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, q.Insufficient)
	assert.Equal(t, failMarket, q.Market)
	assert.Equal(t, 1.5, q.ExpectedOut)
	assert.Equal(t, programs.SideAsk, q.Order.Side)
	assert.Equal(t, programs.MinPriceLots, q.Order.PriceLots)
	assert.Equal(t, int64(2), q.Order.MaxBaseLots)
	assert.Equal(t, UncappedLots, q.Order.MaxQuoteLotsIncludingFees)

	res, err := e.ExecuteSwap(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, res.Success)

	want := *q.Order
	want.Mode = ModeExecute
	assert.Equal(t, want, *res.Order)
	assert.Equal(t, market.BranchFail, res.Order.Branch)

	// the take order runs against the fail-branch book
	require.Len(t, f.ledger.Sent, 1)
	sent := f.ledger.Sent[0].Instructions
	require.Len(t, sent, 1)
	var keys []solana.PublicKey
	for _, m := range sent[0].Accounts() {
		keys = append(keys, m.PublicKey)
	}
	assert.Contains(t, keys, failMarket)
	assert.Contains(t, keys, book.MarketBaseVault)
	assert.Contains(t, keys, book.MarketQuoteVault)
	assert.NotContains(t, keys, f.book.MarketQuoteVault)

	assert.Equal(t, []string{cache.MarketKey(f.proposal.String(), "fail")}, sink.invalidated)
}

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, cache.Event) error {
	return errors.New("clickhouse: connection reset")
}

func TestExecuteSwap_RecorderErrorIsLogged(t *testing.T) {
	f := newFixture(t)
	f.fund(t, 0, 20_000_000)
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	cfg := DefaultEngineConfig()
	cfg.Recorder = failingRecorder{}
	cfg.Logger = logger
	res, err := NewEngine(f.ledger, cfg).ExecuteSwap(context.Background(), f.intent("USDC", "META", "10"))
	require.NoError(t, err)
	assert.True(t, res.Success)

	var found bool
	for _, entry := range hook.AllEntries() {
		if entry.Message == "failed to record swap event" {
			found = true
			assert.Equal(t, logrus.DebugLevel, entry.Level)
			assert.EqualError(t, entry.Data[logrus.ErrorKey].(error), "clickhouse: connection reset")
			assert.Equal(t, res.ExecutionID, entry.Data["execution_id"])
		}
	}
	assert.True(t, found)
}
