package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/metaproph3t/futarchy-ui/internal/chain"
	"github.com/metaproph3t/futarchy-ui/internal/programs"
	"github.com/metaproph3t/futarchy-ui/internal/units"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Position is one of the wallet's three token accounts for a vault.
type Position struct {
	chain.ResolvedTokenAccount
	Display *float64 `json:"display_balance,omitempty"`
}

// VaultView is a vault plus the wallet's underlying, pass and fail positions.
type VaultView struct {
	Address    solana.PublicKey           `json:"address"`
	Wallet     solana.PublicKey           `json:"wallet"`
	Vault      *programs.ConditionalVault `json:"vault"`
	Underlying Position                   `json:"underlying"`
	Pass       Position                   `json:"pass"`
	Fail       Position                   `json:"fail"`

	// UnderlyingDecimals is read from the underlying mint; nil when the mint
	// could not be found.
	UnderlyingDecimals *uint8 `json:"underlying_decimals,omitempty"`
}

// Positions returns pointers to the three positions in underlying, pass,
// fail order.
func (v *VaultView) Positions() []*Position {
	return []*Position{&v.Underlying, &v.Pass, &v.Fail}
}

// ResolveSymbol checks symbol against the underlying mint's decimals. An
// empty symbol is inferred from those decimals.
func (v *VaultView) ResolveSymbol(table *units.Table, symbol string) (string, error) {
	if v.UnderlyingDecimals == nil {
		if symbol == "" {
			return "", fmt.Errorf("%w: underlying mint unknown, a symbol is required", units.ErrUnknownAsset)
		}
		if _, err := table.Lookup(symbol); err != nil {
			return "", err
		}
		return symbol, nil
	}
	dec := int32(*v.UnderlyingDecimals)
	if symbol == "" {
		return table.SymbolForDecimals(dec)
	}
	if err := table.CheckDecimals(symbol, dec); err != nil {
		return "", err
	}
	return symbol, nil
}

// WithDisplay fills display balances using the scale of symbol, or of the
// underlying mint when symbol is empty. It returns the symbol used.
func (v *VaultView) WithDisplay(table *units.Table, symbol string) (string, error) {
	sym, err := v.ResolveSymbol(table, symbol)
	if err != nil {
		return "", err
	}
	for _, p := range v.Positions() {
		d, err := table.ToDisplayUnitsU(sym, p.Balance)
		if err != nil {
			return "", err
		}
		p.Display = &d
	}
	return sym, nil
}

// Resolver reads a vault and the wallet's positions in it.
type Resolver struct {
	client   chain.Client
	accounts chain.TokenAccountResolver
	logger   *logrus.Logger
}

func NewResolver(client chain.Client, logger *logrus.Logger) *Resolver {
	if logger == nil {
		logger = logrus.New()
	}
	return &Resolver{
		client:   client,
		accounts: chain.NewATAResolver(client),
		logger:   logger,
	}
}

// FetchVault loads and decodes a conditional vault.
func (r *Resolver) FetchVault(ctx context.Context, addr solana.PublicKey) (*programs.ConditionalVault, error) {
	data, err := r.client.FetchAccount(ctx, addr)
	if err != nil {
		return nil, chain.Required(err, "vault", addr)
	}
	return programs.DecodeConditionalVault(data)
}

// ResolveVault returns the vault's accounts, the underlying mint's decimals
// and the wallet's three positions. A missing token account resolves to a zero balance flagged for
// creation; any other fetch failure aborts.
func (r *Resolver) ResolveVault(ctx context.Context, vaultAddr, walletAddr solana.PublicKey) (*VaultView, error) {
	v, err := r.FetchVault(ctx, vaultAddr)
	if err != nil {
		return nil, err
	}

	view := &VaultView{Address: vaultAddr, Wallet: walletAddr, Vault: v}
	mints := []solana.PublicKey{
		v.UnderlyingTokenMint,
		v.ConditionalOnFinalizeTokenMint,
		v.ConditionalOnRevertTokenMint,
	}
	slots := view.Positions()

	g, gctx := errgroup.WithContext(ctx)
	for i := range mints {
		i := i
		g.Go(func() error {
			acct, err := r.accounts.Resolve(gctx, walletAddr, mints[i], walletAddr)
			if err != nil {
				return fmt.Errorf("resolve position for mint %s: %w", mints[i], err)
			}
			slots[i].ResolvedTokenAccount = *acct
			return nil
		})
	}
	g.Go(func() error {
		data, err := r.client.FetchAccount(gctx, v.UnderlyingTokenMint)
		if errors.Is(err, chain.ErrAccountNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("fetch underlying mint %s: %w", v.UnderlyingTokenMint, err)
		}
		dec, err := programs.DecodeMintDecimals(data)
		if err != nil {
			return fmt.Errorf("underlying mint %s: %w", v.UnderlyingTokenMint, err)
		}
		view.UnderlyingDecimals = &dec
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.logger.WithFields(logrus.Fields{
		"vault":      vaultAddr.String(),
		"wallet":     walletAddr.String(),
		"underlying": view.Underlying.Balance,
		"pass":       view.Pass.Balance,
		"fail":       view.Fail.Balance,
	}).Debug("resolved vault")

	return view, nil
}
