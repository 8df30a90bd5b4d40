package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/metaproph3t/futarchy-ui/internal/programs"
)

// ResolvedTokenAccount is a wallet's associated token account for one mint
// plus whatever is needed to make it usable.
type ResolvedTokenAccount struct {
	Account       solana.PublicKey     `json:"account"`
	Mint          solana.PublicKey     `json:"mint"`
	Balance       uint64               `json:"balance"`
	NeedsCreation bool                 `json:"needs_creation"`
	PreIxs        []solana.Instruction `json:"-"`
}

// TokenAccountResolver resolves an owner's token account for a mint.
type TokenAccountResolver interface {
	Resolve(ctx context.Context, owner, mint, payer solana.PublicKey) (*ResolvedTokenAccount, error)
}

// ATAResolver resolves the owner's associated token account. A missing
// account is not an error: it resolves with zero balance and a creation
// instruction paid by payer.
type ATAResolver struct {
	client Client
}

func NewATAResolver(client Client) *ATAResolver {
	return &ATAResolver{client: client}
}

var _ TokenAccountResolver = (*ATAResolver)(nil)

func (r *ATAResolver) Resolve(ctx context.Context, owner, mint, payer solana.PublicKey) (*ResolvedTokenAccount, error) {
	if r == nil || r.client == nil {
		return nil, fmt.Errorf("token account resolver: client is nil")
	}

	ata, err := r.client.DeriveAssociatedAddress(owner, mint)
	if err != nil {
		return nil, err
	}

	data, err := r.client.FetchAccount(ctx, ata)
	if errors.Is(err, ErrAccountNotFound) {
		return &ResolvedTokenAccount{
			Account:       ata,
			Mint:          mint,
			NeedsCreation: true,
			PreIxs: []solana.Instruction{
				associatedtokenaccount.NewCreateInstruction(payer, owner, mint).Build(),
			},
		}, nil
	}
	if err != nil {
		return nil, err
	}

	balance, err := programs.DecodeTokenBalance(data)
	if err != nil {
		return nil, fmt.Errorf("token account %s: %w", ata, err)
	}

	return &ResolvedTokenAccount{Account: ata, Mint: mint, Balance: balance}, nil
}
