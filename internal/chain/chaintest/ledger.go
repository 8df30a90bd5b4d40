// Package chaintest provides in-memory chain.Client fakes for tests.
package chaintest

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/metaproph3t/futarchy-ui/internal/chain"
	"github.com/metaproph3t/futarchy-ui/internal/programs"
	"github.com/metaproph3t/futarchy-ui/internal/rpc"
	"github.com/stretchr/testify/mock"
)

// Submission records one Simulate or Send call.
type Submission struct {
	Instructions []solana.Instruction
	Payer        solana.PublicKey
	Projected    []solana.PublicKey
}

// Ledger is an in-memory account store implementing chain.Client.
type Ledger struct {
	mu        sync.Mutex
	accounts  map[solana.PublicKey][]byte
	fetchErrs map[solana.PublicKey]error
	sigSeq    int

	// SimulateFunc overrides the default simulation, which projects the
	// current ledger state of the requested accounts.
	SimulateFunc func(s Submission) (*chain.SimulationResult, error)
	// OnSend runs after a successful Send, e.g. to apply balance changes.
	OnSend     func(l *Ledger, s Submission)
	SendErr    error
	ConfirmErr error

	Simulated []Submission
	Sent      []Submission
	Confirmed []string
}

var _ chain.Client = (*Ledger)(nil)

func NewLedger() *Ledger {
	return &Ledger{
		accounts:  make(map[solana.PublicKey][]byte),
		fetchErrs: make(map[solana.PublicKey]error),
	}
}

func (l *Ledger) Put(addr solana.PublicKey, data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts[addr] = data
}

func (l *Ledger) Delete(addr solana.PublicKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.accounts, addr)
}

// FailFetch makes FetchAccount(addr) return err.
func (l *Ledger) FailFetch(addr solana.PublicKey, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fetchErrs[addr] = err
}

// PutAnchor stores v encoded as the Anchor account name.
func (l *Ledger) PutAnchor(addr solana.PublicKey, name string, v interface{}) error {
	data, err := programs.EncodeAnchorAccount(name, v)
	if err != nil {
		return err
	}
	l.Put(addr, data)
	return nil
}

// PutMint stores an initialized SPL mint with the given decimals.
func (l *Ledger) PutMint(mint solana.PublicKey, decimals uint8) error {
	data, err := programs.EncodeMint(decimals, 0)
	if err != nil {
		return err
	}
	l.Put(mint, data)
	return nil
}

// PutTokenAccount stores the owner's ATA for mint with amount and returns
// its address.
func (l *Ledger) PutTokenAccount(owner, mint solana.PublicKey, amount uint64) (solana.PublicKey, error) {
	ata, err := chain.DeriveAssociatedAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, err
	}
	data, err := programs.EncodeTokenAccount(mint, owner, amount)
	if err != nil {
		return solana.PublicKey{}, err
	}
	l.Put(ata, data)
	return ata, nil
}

// TokenAccountInfo renders a token account as a simulation projection.
func TokenAccountInfo(mint, owner solana.PublicKey, amount uint64) (*rpc.AccountInfo, error) {
	data, err := programs.EncodeTokenAccount(mint, owner, amount)
	if err != nil {
		return nil, err
	}
	return &rpc.AccountInfo{
		Owner: solana.TokenProgramID.String(),
		Data:  []string{base64.StdEncoding.EncodeToString(data), "base64"},
	}, nil
}

func (l *Ledger) FetchAccount(_ context.Context, addr solana.PublicKey) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err, ok := l.fetchErrs[addr]; ok {
		return nil, err
	}
	data, ok := l.accounts[addr]
	if !ok {
		return nil, chain.ErrAccountNotFound
	}
	return append([]byte(nil), data...), nil
}

func (l *Ledger) FetchProgramAccounts(_ context.Context, _ solana.PublicKey, discriminator []byte) ([]chain.KeyedAccount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []chain.KeyedAccount
	for addr, data := range l.accounts {
		if len(data) >= len(discriminator) && string(data[:len(discriminator)]) == string(discriminator) {
			out = append(out, chain.KeyedAccount{Address: addr, Data: append([]byte(nil), data...)})
		}
	}
	return out, nil
}

func (l *Ledger) DeriveAssociatedAddress(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	return chain.DeriveAssociatedAddress(owner, mint)
}

func (l *Ledger) Simulate(_ context.Context, ixs []solana.Instruction, payer solana.PublicKey, projected []solana.PublicKey) (*chain.SimulationResult, error) {
	sub := Submission{Instructions: ixs, Payer: payer, Projected: projected}

	l.mu.Lock()
	l.Simulated = append(l.Simulated, sub)
	fn := l.SimulateFunc
	l.mu.Unlock()

	if fn != nil {
		return fn(sub)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	res := &chain.SimulationResult{Success: true, Accounts: make([]*rpc.AccountInfo, len(projected))}
	for i, addr := range projected {
		if data, ok := l.accounts[addr]; ok {
			res.Accounts[i] = &rpc.AccountInfo{
				Owner: solana.TokenProgramID.String(),
				Data:  []string{base64.StdEncoding.EncodeToString(data), "base64"},
			}
		}
	}
	return res, nil
}

func (l *Ledger) Send(_ context.Context, ixs []solana.Instruction, payer solana.PublicKey) (string, chain.BlockhashContext, error) {
	if l.SendErr != nil {
		return "", chain.BlockhashContext{}, l.SendErr
	}
	sub := Submission{Instructions: ixs, Payer: payer}

	l.mu.Lock()
	l.sigSeq++
	sig := fmt.Sprintf("sig-%d", l.sigSeq)
	l.Sent = append(l.Sent, sub)
	onSend := l.OnSend
	l.mu.Unlock()

	if onSend != nil {
		onSend(l, sub)
	}
	return sig, chain.BlockhashContext{Blockhash: solana.Hash{9}, LastValidBlockHeight: 1000}, nil
}

func (l *Ledger) Confirm(_ context.Context, signature string, _ chain.BlockhashContext) error {
	if l.ConfirmErr != nil {
		return l.ConfirmErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Confirmed = append(l.Confirmed, signature)
	return nil
}

// MockClient is a testify mock of chain.Client.
type MockClient struct {
	mock.Mock
}

var _ chain.Client = (*MockClient)(nil)

func (m *MockClient) FetchAccount(ctx context.Context, addr solana.PublicKey) ([]byte, error) {
	args := m.Called(ctx, addr)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *MockClient) FetchProgramAccounts(ctx context.Context, program solana.PublicKey, discriminator []byte) ([]chain.KeyedAccount, error) {
	args := m.Called(ctx, program, discriminator)
	accts, _ := args.Get(0).([]chain.KeyedAccount)
	return accts, args.Error(1)
}

func (m *MockClient) DeriveAssociatedAddress(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	return chain.DeriveAssociatedAddress(owner, mint)
}

func (m *MockClient) Simulate(ctx context.Context, ixs []solana.Instruction, payer solana.PublicKey, projected []solana.PublicKey) (*chain.SimulationResult, error) {
	args := m.Called(ctx, ixs, payer, projected)
	res, _ := args.Get(0).(*chain.SimulationResult)
	return res, args.Error(1)
}

func (m *MockClient) Send(ctx context.Context, ixs []solana.Instruction, payer solana.PublicKey) (string, chain.BlockhashContext, error) {
	args := m.Called(ctx, ixs, payer)
	bh, _ := args.Get(1).(chain.BlockhashContext)
	return args.String(0), bh, args.Error(2)
}

func (m *MockClient) Confirm(ctx context.Context, signature string, bh chain.BlockhashContext) error {
	args := m.Called(ctx, signature, bh)
	return args.Error(0)
}
