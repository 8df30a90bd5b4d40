package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/metaproph3t/futarchy-ui/internal/wallet"
)

// ErrAccountNotFound means the address holds no account. Resolvers absorb
// it for token accounts; for required accounts it surfaces as *NotFoundError.
var ErrAccountNotFound = errors.New("account not found")

// NotFoundError reports a required account (vault, market, proposal) that
// does not exist.
type NotFoundError struct {
	Kind    string
	Address solana.PublicKey
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Address)
}

func (e *NotFoundError) Unwrap() error { return ErrAccountNotFound }

// Required converts ErrAccountNotFound into a *NotFoundError for kind.
func Required(err error, kind string, addr solana.PublicKey) error {
	if errors.Is(err, ErrAccountNotFound) {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return err
		}
		return &NotFoundError{Kind: kind, Address: addr}
	}
	return err
}

type (
	BlockhashContext = wallet.BlockhashContext
	SimulationResult = wallet.SimulationResult
)

// KeyedAccount is a decoded-address program account.
type KeyedAccount struct {
	Address solana.PublicKey
	Data    []byte
}

// Client is the narrow chain surface the engines depend on.
type Client interface {
	FetchAccount(ctx context.Context, addr solana.PublicKey) ([]byte, error)
	FetchProgramAccounts(ctx context.Context, program solana.PublicKey, discriminator []byte) ([]KeyedAccount, error)
	DeriveAssociatedAddress(owner, mint solana.PublicKey) (solana.PublicKey, error)
	Simulate(ctx context.Context, ixs []solana.Instruction, payer solana.PublicKey, projected []solana.PublicKey) (*SimulationResult, error)
	Send(ctx context.Context, ixs []solana.Instruction, payer solana.PublicKey) (string, BlockhashContext, error)
	Confirm(ctx context.Context, signature string, bh BlockhashContext) error
}

// DeriveAssociatedAddress is the pure ATA derivation shared by every Client.
func DeriveAssociatedAddress(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive associated address: %w", err)
	}
	return ata, nil
}
