package wallet

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/metaproph3t/futarchy-ui/internal/rpc"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNoSigner is returned by Send when the wallet was built without a key.
	ErrNoSigner = errors.New("wallet: no private key configured")

	// ErrBlockhashExpired means the chain moved past the transaction's
	// last valid block height without confirming it.
	ErrBlockhashExpired = errors.New("wallet: blockhash expired before confirmation")
)

// BlockhashContext is the blockhash a transaction was built with and the
// last block height at which it can still land.
type BlockhashContext struct {
	Blockhash            solana.Hash `json:"blockhash"`
	LastValidBlockHeight uint64      `json:"last_valid_block_height"`
}

// SendOptions configures transaction sending behavior
type SendOptions struct {
	SkipPreflight       bool
	PreflightCommitment string
	MaxRetries          *int
}

// SimulationResult contains simulation output. Accounts holds the post-state
// of the requested addresses in request order; entries are nil for accounts
// the runtime did not return, and the slice is nil when the simulation
// returned no projections at all.
type SimulationResult struct {
	Success       bool
	Error         string
	Logs          []string
	UnitsConsumed uint64
	Accounts      []*rpc.AccountInfo
}

func (w *Wallet) sendOptions() SendOptions {
	maxRetries := 0
	return SendOptions{
		SkipPreflight:       w.cfg.SkipPreflight,
		PreflightCommitment: w.cfg.PreflightCommitment,
		MaxRetries:          &maxRetries,
	}
}

// SignTx signs a transaction with the wallet's private key
func (w *Wallet) SignTx(tx *solana.Transaction) error {
	if !w.CanSign() {
		return ErrNoSigner
	}
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(w.pub) {
			return &w.priv
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}
	return nil
}

// SendTx sends a signed transaction with configurable options
func (w *Wallet) SendTx(ctx context.Context, tx *solana.Transaction, opts *SendOptions) (string, error) {
	if opts == nil {
		defaultOpts := w.sendOptions()
		opts = &defaultOpts
	}

	txBytes, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to serialize transaction: %w", err)
	}

	cfg := map[string]any{
		"encoding":            "base64",
		"skipPreflight":       opts.SkipPreflight,
		"preflightCommitment": opts.PreflightCommitment,
	}
	if opts.MaxRetries != nil {
		cfg["maxRetries"] = *opts.MaxRetries
	}
	params := []any{base64.StdEncoding.EncodeToString(txBytes), cfg}

	var resp struct {
		Result string        `json:"result"`
		Error  *rpc.RPCError `json:"error"`
	}

	if err := w.rpc.Call(ctx, "sendTransaction", params, &resp); err != nil {
		return "", fmt.Errorf("sendTransaction RPC failed: %w", err)
	}

	if resp.Error != nil {
		return "", fmt.Errorf("sendTransaction error: code=%d, message=%s",
			resp.Error.Code, resp.Error.Message)
	}

	return resp.Result, nil
}

// GetLatestBlockhash fetches the most recent blockhash with commitment level
func (w *Wallet) GetLatestBlockhash(ctx context.Context, commitment string) (BlockhashContext, error) {
	var resp struct {
		Result struct {
			Value struct {
				Blockhash            string `json:"blockhash"`
				LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
			} `json:"value"`
		} `json:"result"`
		Error *rpc.RPCError `json:"error"`
	}

	params := []any{
		map[string]any{"commitment": commitment},
	}

	if err := w.rpc.Call(ctx, "getLatestBlockhash", params, &resp); err != nil {
		return BlockhashContext{}, fmt.Errorf("getLatestBlockhash failed: %w", err)
	}

	if resp.Error != nil {
		return BlockhashContext{}, fmt.Errorf("getLatestBlockhash error: %s", resp.Error.Message)
	}

	hash, err := solana.HashFromBase58(resp.Result.Value.Blockhash)
	if err != nil {
		return BlockhashContext{}, fmt.Errorf("invalid blockhash format: %w", err)
	}

	return BlockhashContext{
		Blockhash:            hash,
		LastValidBlockHeight: resp.Result.Value.LastValidBlockHeight,
	}, nil
}

// BuildTransaction creates a new unsigned transaction with a recent blockhash
func (w *Wallet) BuildTransaction(
	ctx context.Context,
	instructions []solana.Instruction,
	payer solana.PublicKey,
) (*solana.Transaction, BlockhashContext, error) {

	bh, err := w.GetLatestBlockhash(ctx, w.cfg.DefaultCommitment)
	if err != nil {
		return nil, BlockhashContext{}, fmt.Errorf("failed to get blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		instructions,
		bh.Blockhash,
		solana.TransactionPayer(payer),
	)
	if err != nil {
		return nil, BlockhashContext{}, fmt.Errorf("failed to create transaction: %w", err)
	}

	return tx, bh, nil
}

// Send builds, signs and submits instructions as one transaction paid by the
// wallet. The returned blockhash context is what Confirm needs.
func (w *Wallet) Send(ctx context.Context, instructions []solana.Instruction) (string, BlockhashContext, error) {
	if !w.CanSign() {
		return "", BlockhashContext{}, ErrNoSigner
	}

	tx, bh, err := w.BuildTransaction(ctx, instructions, w.pub)
	if err != nil {
		return "", BlockhashContext{}, err
	}

	if err := w.SignTx(tx); err != nil {
		return "", BlockhashContext{}, err
	}

	sig, err := w.SendTx(ctx, tx, nil)
	if err != nil {
		return "", BlockhashContext{}, err
	}

	w.logger.WithFields(logrus.Fields{
		"signature":    sig,
		"instructions": len(instructions),
	}).Debug("transaction submitted")

	return sig, bh, nil
}

// Simulate dry-runs instructions against the current chain state and
// returns the post-state of the projected accounts. The transaction is
// signed when the payer is this wallet; otherwise signature verification is
// skipped so any payer can be simulated.
func (w *Wallet) Simulate(
	ctx context.Context,
	instructions []solana.Instruction,
	payer solana.PublicKey,
	projected []solana.PublicKey,
) (*SimulationResult, error) {

	tx, _, err := w.BuildTransaction(ctx, instructions, payer)
	if err != nil {
		return nil, err
	}

	sigVerify := false
	if w.CanSign() && payer.Equals(w.pub) {
		if err := w.SignTx(tx); err != nil {
			return nil, err
		}
		sigVerify = true
	} else {
		tx.Signatures = make([]solana.Signature, int(tx.Message.Header.NumRequiredSignatures))
	}

	return w.SimulateTransaction(ctx, tx, projected, sigVerify)
}

// SimulateTransaction simulates a transaction and projects the given
// accounts. A runtime error inside the simulation is reported in the result,
// not as a Go error.
func (w *Wallet) SimulateTransaction(
	ctx context.Context,
	tx *solana.Transaction,
	projected []solana.PublicKey,
	sigVerify bool,
) (*SimulationResult, error) {

	txBytes, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize transaction: %w", err)
	}

	var resp struct {
		Result struct {
			Value struct {
				Err           json.RawMessage    `json:"err"`
				Logs          []string           `json:"logs"`
				Accounts      []*rpc.AccountInfo `json:"accounts"`
				UnitsConsumed uint64             `json:"unitsConsumed,omitempty"`
			} `json:"value"`
		} `json:"result"`
		Error *rpc.RPCError `json:"error"`
	}

	cfg := map[string]any{
		"encoding":   "base64",
		"commitment": w.cfg.PreflightCommitment,
		"sigVerify":  sigVerify,
	}
	if len(projected) > 0 {
		addrs := make([]string, len(projected))
		for i, pk := range projected {
			addrs[i] = pk.String()
		}
		cfg["accounts"] = map[string]any{
			"encoding":  "base64",
			"addresses": addrs,
		}
	}

	params := []any{base64.StdEncoding.EncodeToString(txBytes), cfg}

	if err := w.rpc.Call(ctx, "simulateTransaction", params, &resp); err != nil {
		return nil, fmt.Errorf("simulateTransaction failed: %w", err)
	}

	if resp.Error != nil {
		return nil, fmt.Errorf("simulateTransaction error: %s", resp.Error.Message)
	}

	value := resp.Result.Value
	result := &SimulationResult{
		Success:       true,
		Logs:          value.Logs,
		UnitsConsumed: value.UnitsConsumed,
		Accounts:      value.Accounts,
	}

	if len(value.Err) > 0 && string(value.Err) != "null" {
		result.Success = false
		result.Error = string(value.Err)
		w.logger.WithFields(logrus.Fields{
			"error": result.Error,
			"logs":  len(value.Logs),
		}).Debug("simulation reported a runtime error")
	}

	return result, nil
}

// ConfirmTransaction polls until the signature reaches the wallet's default
// commitment, the transaction fails, the blockhash expires, or the confirm
// timeout elapses.
func (w *Wallet) ConfirmTransaction(ctx context.Context, signature string, bh BlockhashContext) error {
	deadline := time.Now().Add(w.cfg.ConfirmTimeout)
	backoff := 500 * time.Millisecond
	maxBackoff := 4 * time.Second

	for time.Now().Before(deadline) {
		confirmed, err := w.checkSignatureStatus(ctx, signature, w.cfg.DefaultCommitment)
		if err != nil {
			return fmt.Errorf("failed to check signature: %w", err)
		}

		if confirmed {
			return nil
		}

		if bh.LastValidBlockHeight > 0 {
			height, err := w.getBlockHeight(ctx)
			if err != nil {
				return fmt.Errorf("failed to get block height: %w", err)
			}
			if height > bh.LastValidBlockHeight {
				return ErrBlockhashExpired
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}

	return fmt.Errorf("transaction confirmation timeout after %v", w.cfg.ConfirmTimeout)
}

func (w *Wallet) getBlockHeight(ctx context.Context) (uint64, error) {
	var resp struct {
		Result uint64        `json:"result"`
		Error  *rpc.RPCError `json:"error"`
	}

	params := []any{
		map[string]any{"commitment": w.cfg.DefaultCommitment},
	}

	if err := w.rpc.Call(ctx, "getBlockHeight", params, &resp); err != nil {
		return 0, err
	}
	if resp.Error != nil {
		return 0, resp.Error
	}
	return resp.Result, nil
}

// checkSignatureStatus checks if a signature is confirmed
func (w *Wallet) checkSignatureStatus(ctx context.Context, signature string, commitment string) (bool, error) {
	var resp struct {
		Result struct {
			Value []*struct {
				Slot               uint64          `json:"slot"`
				Confirmations      *int            `json:"confirmations"`
				Err                json.RawMessage `json:"err"`
				ConfirmationStatus string          `json:"confirmationStatus"`
			} `json:"value"`
		} `json:"result"`
		Error *rpc.RPCError `json:"error"`
	}

	params := []any{
		[]string{signature},
		map[string]any{"searchTransactionHistory": true},
	}

	if err := w.rpc.Call(ctx, "getSignatureStatuses", params, &resp); err != nil {
		return false, err
	}

	if resp.Error != nil {
		return false, fmt.Errorf("getSignatureStatuses error: %s", resp.Error.Message)
	}

	if len(resp.Result.Value) == 0 || resp.Result.Value[0] == nil || resp.Result.Value[0].ConfirmationStatus == "" {
		return false, nil // not yet processed
	}

	status := resp.Result.Value[0]

	if len(status.Err) > 0 && string(status.Err) != "null" {
		return false, fmt.Errorf("transaction failed: %s", string(status.Err))
	}

	switch commitment {
	case "confirmed":
		return status.ConfirmationStatus == "confirmed" || status.ConfirmationStatus == "finalized", nil
	case "finalized":
		return status.ConfirmationStatus == "finalized", nil
	default:
		return true, nil
	}
}
