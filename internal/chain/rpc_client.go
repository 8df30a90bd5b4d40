package chain

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/metaproph3t/futarchy-ui/internal/rpc"
	"github.com/metaproph3t/futarchy-ui/internal/wallet"
	"github.com/sirupsen/logrus"
)

// RPCClient implements Client over JSON-RPC with the configured wallet as
// the only signer.
type RPCClient struct {
	w      *wallet.Wallet
	logger *logrus.Logger
}

func NewRPCClient(w *wallet.Wallet, logger *logrus.Logger) *RPCClient {
	if logger == nil {
		logger = logrus.New()
	}
	return &RPCClient{w: w, logger: logger}
}

var _ Client = (*RPCClient)(nil)

func (c *RPCClient) FetchAccount(ctx context.Context, addr solana.PublicKey) ([]byte, error) {
	data, ok, err := c.w.FetchAccountData(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", addr, err)
	}
	if !ok {
		return nil, ErrAccountNotFound
	}
	return data, nil
}

func (c *RPCClient) FetchProgramAccounts(ctx context.Context, program solana.PublicKey, discriminator []byte) ([]KeyedAccount, error) {
	raw, err := c.w.RPC().GetProgramAccounts(ctx, program.String(), discriminator)
	if err != nil {
		return nil, err
	}

	out := make([]KeyedAccount, 0, len(raw))
	for _, ka := range raw {
		addr, err := solana.PublicKeyFromBase58(ka.Pubkey)
		if err != nil {
			return nil, fmt.Errorf("invalid account address %q: %w", ka.Pubkey, err)
		}
		data, err := rpc.DecodeData(ka.Account.Data)
		if err != nil {
			c.logger.WithError(err).WithField("account", ka.Pubkey).Warn("skipping undecodable account")
			continue
		}
		out = append(out, KeyedAccount{Address: addr, Data: data})
	}
	return out, nil
}

func (c *RPCClient) DeriveAssociatedAddress(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	return DeriveAssociatedAddress(owner, mint)
}

func (c *RPCClient) Simulate(ctx context.Context, ixs []solana.Instruction, payer solana.PublicKey, projected []solana.PublicKey) (*SimulationResult, error) {
	return c.w.Simulate(ctx, ixs, payer, projected)
}

// Send submits with the wallet as fee payer. A payer other than the wallet
// cannot be signed for and is rejected.
func (c *RPCClient) Send(ctx context.Context, ixs []solana.Instruction, payer solana.PublicKey) (string, BlockhashContext, error) {
	if !payer.Equals(c.w.PublicKey()) {
		return "", BlockhashContext{}, fmt.Errorf("cannot sign for %s: %w", payer, wallet.ErrNoSigner)
	}
	return c.w.Send(ctx, ixs)
}

func (c *RPCClient) Confirm(ctx context.Context, signature string, bh BlockhashContext) error {
	return c.w.ConfirmTransaction(ctx, signature, bh)
}
