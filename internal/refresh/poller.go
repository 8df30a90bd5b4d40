// Package refresh keeps vault snapshots warm for a registered set of wallets.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/metaproph3t/futarchy-ui/internal/cache"
	"github.com/metaproph3t/futarchy-ui/internal/vault"
	"github.com/sirupsen/logrus"
)

// SnapshotStore is where refreshed views are written.
type SnapshotStore interface {
	SetJSON(ctx context.Context, key string, v interface{}) error
}

// Target is one (vault, wallet) pair to keep refreshed.
type Target struct {
	Vault  solana.PublicKey
	Wallet solana.PublicKey
}

// Poller re-resolves every registered target on a fixed interval.
type Poller struct {
	resolver *vault.Resolver
	store    SnapshotStore
	interval time.Duration
	logger   *logrus.Logger

	mu      sync.RWMutex
	targets map[Target]struct{}
	running bool
	cancel  context.CancelFunc
}

// PollerConfig holds configuration for the poller
type PollerConfig struct {
	Resolver *vault.Resolver
	Store    SnapshotStore
	Interval time.Duration
	Logger   *logrus.Logger
}

func NewPoller(cfg PollerConfig) *Poller {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	return &Poller{
		resolver: cfg.Resolver,
		store:    cfg.Store,
		interval: cfg.Interval,
		logger:   cfg.Logger,
		targets:  make(map[Target]struct{}),
	}
}

// Register adds a target. Registering twice is a no-op.
func (p *Poller) Register(vaultAddr, walletAddr solana.PublicKey) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.targets[Target{Vault: vaultAddr, Wallet: walletAddr}] = struct{}{}
}

func (p *Poller) Unregister(vaultAddr, walletAddr solana.PublicKey) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.targets, Target{Vault: vaultAddr, Wallet: walletAddr})
}

func (p *Poller) Targets() []Target {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Target, 0, len(p.targets))
	for t := range p.targets {
		out = append(out, t)
	}
	return out
}

// Start refreshes on every tick until ctx is cancelled or Stop is called.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("poller already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	p.running = true
	p.cancel = cancel
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.cancel = nil
		p.mu.Unlock()
		cancel()
	}()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.WithField("interval", p.interval).Info("starting vault refresh")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n, err := p.RefreshNow(ctx); err != nil {
				p.logger.WithError(err).WithField("refreshed", n).Warn("refresh incomplete")
			}
		}
	}
}

// Stop stops the poller
func (p *Poller) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}

// RefreshNow re-resolves every target once and stores the snapshots. It
// returns how many succeeded and the first error seen; one failing target
// does not stop the rest.
func (p *Poller) RefreshNow(ctx context.Context) (int, error) {
	var (
		refreshed int
		firstErr  error
	)
	for _, t := range p.Targets() {
		if err := ctx.Err(); err != nil {
			return refreshed, err
		}
		if err := p.refresh(ctx, t); err != nil {
			p.logger.WithError(err).WithFields(logrus.Fields{
				"vault":  t.Vault.String(),
				"wallet": t.Wallet.String(),
			}).Debug("refresh failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		refreshed++
	}
	return refreshed, firstErr
}

func (p *Poller) refresh(ctx context.Context, t Target) error {
	view, err := p.resolver.ResolveVault(ctx, t.Vault, t.Wallet)
	if err != nil {
		return err
	}
	if p.store == nil {
		return nil
	}
	return p.store.SetJSON(ctx, cache.VaultKey(t.Vault.String(), t.Wallet.String()), view)
}
