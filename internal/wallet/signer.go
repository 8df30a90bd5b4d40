package wallet

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/metaproph3t/futarchy-ui/internal/rpc"
	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"
)

type WalletConfig struct {
	RPCURL       string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	// PrivateKey is a base58-encoded 64-byte key or a solana-keygen JSON
	// array. Empty makes a read-only wallet: it can fetch, simulate and
	// derive, but Send fails.
	PrivateKey string

	DefaultCommitment   string // e.g. "confirmed"
	SkipPreflight       bool
	PreflightCommitment string // e.g. "processed"
	ConfirmTimeout      time.Duration

	Logger *logrus.Logger
}

type Wallet struct {
	cfg    WalletConfig
	rpc    *rpc.Client
	priv   solana.PrivateKey
	pub    solana.PublicKey
	logger *logrus.Logger
}

func NewWallet(cfg WalletConfig) (*Wallet, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("wallet: RPCURL is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = 1 * time.Second
	}
	if cfg.DefaultCommitment == "" {
		cfg.DefaultCommitment = "confirmed"
	}
	if cfg.PreflightCommitment == "" {
		cfg.PreflightCommitment = "processed"
	}
	if cfg.ConfirmTimeout == 0 {
		cfg.ConfirmTimeout = 60 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	w := &Wallet{
		cfg:    cfg,
		logger: cfg.Logger,
		rpc: rpc.NewClient(rpc.ClientConfig{
			BaseURL:      cfg.RPCURL,
			Timeout:      cfg.Timeout,
			MaxRetries:   cfg.MaxRetries,
			RetryBackoff: cfg.RetryBackoff,
			Commitment:   cfg.DefaultCommitment,
			Logger:       cfg.Logger,
		}),
	}

	if strings.TrimSpace(cfg.PrivateKey) != "" {
		priv, err := parsePrivateKey(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		w.priv = priv
		w.pub = priv.PublicKey()
	}

	return w, nil
}

func (w *Wallet) Address() string             { return w.pub.String() }
func (w *Wallet) PublicKey() solana.PublicKey { return w.pub }
func (w *Wallet) CanSign() bool               { return len(w.priv) == ed25519.PrivateKeySize }
func (w *Wallet) RPC() *rpc.Client            { return w.rpc }
func (w *Wallet) Close() error                { return nil }

// FetchAccountData returns the raw data of an account, or nil when the
// account does not exist.
func (w *Wallet) FetchAccountData(ctx context.Context, pubkey solana.PublicKey) ([]byte, bool, error) {
	info, err := w.rpc.GetAccountInfo(ctx, pubkey.String())
	if err != nil {
		return nil, false, err
	}
	if info == nil {
		return nil, false, nil
	}
	data, err := rpc.DecodeData(info.Data)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func parsePrivateKey(s string) (solana.PrivateKey, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		var ints []int
		if err := json.Unmarshal([]byte(s), &ints); err != nil {
			return nil, fmt.Errorf("wallet: invalid JSON private key: %w", err)
		}
		b := make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("wallet: invalid byte at %d: %d", i, v)
			}
			b[i] = byte(v)
		}
		if len(b) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("wallet: expected %d bytes, got %d", ed25519.PrivateKeySize, len(b))
		}
		return solana.PrivateKey(ed25519.PrivateKey(b)), nil
	}

	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("wallet: invalid base58 private key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("wallet: expected %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}
	return solana.PrivateKey(ed25519.PrivateKey(raw)), nil
}
