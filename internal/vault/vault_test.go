package vault

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/metaproph3t/futarchy-ui/internal/cache"
	"github.com/metaproph3t/futarchy-ui/internal/chain"
	"github.com/metaproph3t/futarchy-ui/internal/chain/chaintest"
	"github.com/metaproph3t/futarchy-ui/internal/programs"
	"github.com/metaproph3t/futarchy-ui/internal/units"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	ledger *chaintest.Ledger
	vault  solana.PublicKey
	wallet solana.PublicKey
	state  programs.ConditionalVault
}

func newKey() solana.PublicKey { return solana.NewWallet().PublicKey() }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ledger: chaintest.NewLedger(),
		vault:  newKey(),
		wallet: newKey(),
		state: programs.ConditionalVault{
			SettlementAuthority:            newKey(),
			UnderlyingTokenMint:            newKey(),
			UnderlyingTokenAccount:         newKey(),
			ConditionalOnFinalizeTokenMint: newKey(),
			ConditionalOnRevertTokenMint:   newKey(),
		},
	}
	require.NoError(t, f.ledger.PutAnchor(f.vault, "ConditionalVault", f.state))
	return f
}

type recordingSink struct {
	events      []cache.Event
	invalidated []string
}

func (r *recordingSink) Record(_ context.Context, ev cache.Event) error {
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingSink) InvalidateVault(_ context.Context, vault, wallet string) error {
	r.invalidated = append(r.invalidated, cache.VaultKey(vault, wallet))
	return nil
}

func (r *recordingSink) InvalidateMarket(context.Context, string, string) error { return nil }

func newEngine(f *fixture, sink *recordingSink) *DepositEngine {
	cfg := DepositConfig{ProgramIDs: programs.DefaultProgramIDs()}
	if sink != nil {
		cfg.Recorder = sink
		cfg.Invalidator = sink
	}
	return NewDepositEngine(f.ledger, NewResolver(f.ledger, nil), cfg)
}

func TestResolveVault_AllPositionsExist(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ledger.PutMint(f.state.UnderlyingTokenMint, 9))
	_, err := f.ledger.PutTokenAccount(f.wallet, f.state.UnderlyingTokenMint, 5_000_000_000)
	require.NoError(t, err)
	_, err = f.ledger.PutTokenAccount(f.wallet, f.state.ConditionalOnFinalizeTokenMint, 2)
	require.NoError(t, err)
	_, err = f.ledger.PutTokenAccount(f.wallet, f.state.ConditionalOnRevertTokenMint, 3)
	require.NoError(t, err)

	view, err := NewResolver(f.ledger, nil).ResolveVault(context.Background(), f.vault, f.wallet)
	require.NoError(t, err)

	assert.Equal(t, f.state, *view.Vault)
	assert.Equal(t, uint64(5_000_000_000), view.Underlying.Balance)
	assert.Equal(t, uint64(2), view.Pass.Balance)
	assert.Equal(t, uint64(3), view.Fail.Balance)
	for _, p := range view.Positions() {
		assert.False(t, p.NeedsCreation)
	}

	wantPass, err := chain.DeriveAssociatedAddress(f.wallet, f.state.ConditionalOnFinalizeTokenMint)
	require.NoError(t, err)
	assert.Equal(t, wantPass, view.Pass.Account)

	require.NotNil(t, view.UnderlyingDecimals)
	assert.Equal(t, uint8(9), *view.UnderlyingDecimals)

	sym, err := view.WithDisplay(units.DefaultTable(), "")
	require.NoError(t, err)
	assert.Equal(t, "META", sym)
	require.NotNil(t, view.Underlying.Display)
	assert.Equal(t, 5.0, *view.Underlying.Display)

	_, err = view.WithDisplay(units.DefaultTable(), "USDC")
	assert.ErrorIs(t, err, units.ErrScaleMismatch)
}

func TestResolveSymbol(t *testing.T) {
	table := units.DefaultTable()
	six := uint8(6)

	known := &VaultView{UnderlyingDecimals: &six}
	sym, err := known.ResolveSymbol(table, "")
	require.NoError(t, err)
	assert.Equal(t, "USDC", sym)

	sym, err = known.ResolveSymbol(table, "USDC")
	require.NoError(t, err)
	assert.Equal(t, "USDC", sym)

	_, err = known.ResolveSymbol(table, "META")
	var mismatch *units.ScaleMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, int32(9), mismatch.Configured)
	assert.Equal(t, int32(6), mismatch.OnChain)

	unknown := &VaultView{}
	_, err = unknown.ResolveSymbol(table, "")
	assert.ErrorIs(t, err, units.ErrUnknownAsset)

	sym, err = unknown.ResolveSymbol(table, "META")
	require.NoError(t, err)
	assert.Equal(t, "META", sym)
}

func TestResolveVault_MintFetchErrorAborts(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("rpc unavailable")
	f.ledger.FailFetch(f.state.UnderlyingTokenMint, boom)

	_, err := NewResolver(f.ledger, nil).ResolveVault(context.Background(), f.vault, f.wallet)
	assert.ErrorIs(t, err, boom)
}

func TestResolveVault_MissingAccountsAreZero(t *testing.T) {
	f := newFixture(t)

	view, err := NewResolver(f.ledger, nil).ResolveVault(context.Background(), f.vault, f.wallet)
	require.NoError(t, err)
	for _, p := range view.Positions() {
		assert.True(t, p.NeedsCreation)
		assert.Zero(t, p.Balance)
		assert.Len(t, p.PreIxs, 1)
	}
}

func TestResolveVault_NotFound(t *testing.T) {
	f := newFixture(t)
	missing := newKey()

	_, err := NewResolver(f.ledger, nil).ResolveVault(context.Background(), missing, f.wallet)
	var nf *chain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "vault", nf.Kind)
	assert.Equal(t, missing, nf.Address)
}

func TestResolveVault_TransportErrorAborts(t *testing.T) {
	f := newFixture(t)
	passATA, err := chain.DeriveAssociatedAddress(f.wallet, f.state.ConditionalOnFinalizeTokenMint)
	require.NoError(t, err)
	boom := errors.New("rpc unavailable")
	f.ledger.FailFetch(passATA, boom)

	_, err = NewResolver(f.ledger, nil).ResolveVault(context.Background(), f.vault, f.wallet)
	assert.ErrorIs(t, err, boom)
}

func TestBuildDeposit_ValidationBeforeNetwork(t *testing.T) {
	m := new(chaintest.MockClient)
	e := NewDepositEngine(m, NewResolver(m, nil), DepositConfig{})

	_, err := e.BuildDeposit(context.Background(), newKey(), newKey(), "abc", "META")
	assert.ErrorIs(t, err, units.ErrInvalidAmount)

	_, err = e.BuildDeposit(context.Background(), newKey(), newKey(), "0", "META")
	assert.ErrorIs(t, err, units.ErrInvalidAmount)

	_, err = e.BuildDeposit(context.Background(), newKey(), newKey(), "1", "DOGE")
	assert.ErrorIs(t, err, units.ErrUnknownAsset)

	_, err = e.DepositConditional(context.Background(), newKey(), newKey(), "-5", "USDC")
	assert.ErrorIs(t, err, units.ErrInvalidAmount)

	// no chain call was made
	m.AssertExpectations(t)
	assert.Empty(t, m.Calls)
}

func TestBuildDeposit_CreatesPassBeforeFail(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.PutTokenAccount(f.wallet, f.state.UnderlyingTokenMint, 10_000_000_000)
	require.NoError(t, err)

	plan, err := newEngine(f, nil).BuildDeposit(context.Background(), f.vault, f.wallet, "1.5", "META")
	require.NoError(t, err)

	assert.Equal(t, uint64(1_500_000_000), plan.AmountRaw)
	require.Len(t, plan.Instructions, 3)
	require.Len(t, plan.Creates, 2)
	assert.Equal(t, plan.Vault.Pass.Account, plan.Creates[0])
	assert.Equal(t, plan.Vault.Fail.Account, plan.Creates[1])

	assert.Equal(t, solana.SPLAssociatedTokenAccountProgramID, plan.Instructions[0].ProgramID())
	assert.Equal(t, plan.Vault.Pass.Account, plan.Instructions[0].Accounts()[1].PublicKey)
	assert.Equal(t, plan.Vault.Fail.Account, plan.Instructions[1].Accounts()[1].PublicKey)

	mint := plan.Instructions[2]
	assert.Equal(t, programs.DefaultProgramIDs().ConditionalVault, mint.ProgramID())
	accts := mint.Accounts()
	assert.Equal(t, f.wallet, accts[0].PublicKey)
	assert.Equal(t, f.vault, accts[1].PublicKey)
	assert.Equal(t, f.state.UnderlyingTokenAccount, accts[2].PublicKey)
	assert.Equal(t, plan.Vault.Underlying.Account, accts[3].PublicKey)
}

func TestBuildDeposit_OnlyMissingAccountsCreated(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ledger.PutMint(f.state.UnderlyingTokenMint, 6))
	_, err := f.ledger.PutTokenAccount(f.wallet, f.state.UnderlyingTokenMint, 1_000_000)
	require.NoError(t, err)
	_, err = f.ledger.PutTokenAccount(f.wallet, f.state.ConditionalOnFinalizeTokenMint, 0)
	require.NoError(t, err)

	plan, err := newEngine(f, nil).BuildDeposit(context.Background(), f.vault, f.wallet, "1", "USDC")
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), plan.AmountRaw)
	require.Len(t, plan.Instructions, 2)
	assert.Equal(t, []solana.PublicKey{plan.Vault.Fail.Account}, plan.Creates)
}

func TestBuildDeposit_SymbolMustMatchUnderlyingMint(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ledger.PutMint(f.state.UnderlyingTokenMint, 6))

	_, err := newEngine(f, nil).DepositConditional(context.Background(), f.vault, f.wallet, "5", "META")
	assert.ErrorIs(t, err, units.ErrScaleMismatch)
	var dfe *DepositFailedError
	assert.False(t, errors.As(err, &dfe))
	assert.Empty(t, f.ledger.Sent)
}

func TestBuildDeposit_InfersSymbolFromMint(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ledger.PutMint(f.state.UnderlyingTokenMint, 6))

	plan, err := newEngine(f, nil).BuildDeposit(context.Background(), f.vault, f.wallet, "5", "")
	require.NoError(t, err)
	assert.Equal(t, "USDC", plan.Symbol)
	assert.Equal(t, uint64(5_000_000), plan.AmountRaw)
}

func TestBuildDeposit_NoSymbolWithoutMint(t *testing.T) {
	f := newFixture(t)

	_, err := newEngine(f, nil).BuildDeposit(context.Background(), f.vault, f.wallet, "5", "")
	assert.ErrorIs(t, err, units.ErrUnknownAsset)
}

func TestDepositConditional_Confirmed(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.PutTokenAccount(f.wallet, f.state.UnderlyingTokenMint, 3_000_000_000)
	require.NoError(t, err)

	// apply the mint on send so the re-resolved view reflects it
	f.ledger.OnSend = func(l *chaintest.Ledger, _ chaintest.Submission) {
		_, _ = l.PutTokenAccount(f.wallet, f.state.UnderlyingTokenMint, 2_000_000_000)
		_, _ = l.PutTokenAccount(f.wallet, f.state.ConditionalOnFinalizeTokenMint, 1_000_000_000)
		_, _ = l.PutTokenAccount(f.wallet, f.state.ConditionalOnRevertTokenMint, 1_000_000_000)
	}

	sink := &recordingSink{}
	res, err := newEngine(f, sink).DepositConditional(context.Background(), f.vault, f.wallet, "1", "META")
	require.NoError(t, err)

	assert.Equal(t, StateConfirmed, res.State)
	assert.Equal(t, "META", res.Symbol)
	assert.Equal(t, "sig-1", res.Signature)
	assert.Equal(t, uint64(1_000_000_000), res.Vault.Pass.Balance)
	assert.Equal(t, uint64(2_000_000_000), res.Vault.Underlying.Balance)
	assert.Equal(t, []string{"sig-1"}, f.ledger.Confirmed)

	require.Len(t, f.ledger.Sent, 1)
	assert.Len(t, f.ledger.Sent[0].Instructions, 3)
	assert.Equal(t, f.wallet, f.ledger.Sent[0].Payer)

	require.Len(t, sink.events, 1)
	assert.True(t, sink.events[0].Success)
	assert.Equal(t, cache.EventDeposit, sink.events[0].Kind)
	assert.Equal(t, res.ExecutionID, sink.events[0].ID)
	assert.Equal(t, []string{cache.VaultKey(f.vault.String(), f.wallet.String())}, sink.invalidated)
}

func TestDepositConditional_SendFails(t *testing.T) {
	f := newFixture(t)
	f.ledger.SendErr = errors.New("blockhash not found")

	_, err := newEngine(f, nil).DepositConditional(context.Background(), f.vault, f.wallet, "1", "META")
	var dfe *DepositFailedError
	require.ErrorAs(t, err, &dfe)
	assert.Equal(t, StateBuilding, dfe.Stage)
	assert.Contains(t, err.Error(), "blockhash not found")
}

func TestDepositConditional_ConfirmFails(t *testing.T) {
	f := newFixture(t)
	f.ledger.ConfirmErr = errors.New("transaction failed: insufficient funds")

	sink := &recordingSink{}
	_, err := newEngine(f, sink).DepositConditional(context.Background(), f.vault, f.wallet, "1", "META")
	var dfe *DepositFailedError
	require.ErrorAs(t, err, &dfe)
	assert.Equal(t, StateSubmitted, dfe.Stage)

	require.Len(t, sink.events, 1)
	assert.False(t, sink.events[0].Success)
	assert.Empty(t, sink.invalidated)
}

func TestDepositConditional_MissingVault(t *testing.T) {
	f := newFixture(t)

	_, err := newEngine(f, nil).DepositConditional(context.Background(), newKey(), f.wallet, "1", "META")
	var dfe *DepositFailedError
	require.ErrorAs(t, err, &dfe)
	assert.Equal(t, StateResolving, dfe.Stage)
	assert.ErrorIs(t, err, chain.ErrAccountNotFound)
	assert.Empty(t, f.ledger.Sent)
}

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, cache.Event) error {
	return errors.New("redis: connection refused")
}

func TestDepositConditional_RecorderErrorIsLogged(t *testing.T) {
	f := newFixture(t)
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	e := NewDepositEngine(f.ledger, NewResolver(f.ledger, nil), DepositConfig{
		ProgramIDs: programs.DefaultProgramIDs(),
		Recorder:   failingRecorder{},
		Logger:     logger,
	})
	_, err := e.DepositConditional(context.Background(), f.vault, f.wallet, "1", "META")
	require.NoError(t, err)

	var found bool
	for _, entry := range hook.AllEntries() {
		if entry.Message == "failed to record deposit event" {
			found = true
			assert.Equal(t, logrus.DebugLevel, entry.Level)
			assert.Contains(t, entry.Data[logrus.ErrorKey].(error).Error(), "connection refused")
		}
	}
	assert.True(t, found)
}
