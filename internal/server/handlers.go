package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/labstack/echo/v4"
	"github.com/metaproph3t/futarchy-ui/internal/app"
	"github.com/metaproph3t/futarchy-ui/internal/cache"
	"github.com/metaproph3t/futarchy-ui/internal/market"
	"github.com/metaproph3t/futarchy-ui/internal/proposals"
	"github.com/metaproph3t/futarchy-ui/internal/refresh"
	"github.com/metaproph3t/futarchy-ui/internal/swapengine"
	"github.com/metaproph3t/futarchy-ui/internal/units"
	"github.com/metaproph3t/futarchy-ui/internal/vault"
	"github.com/sirupsen/logrus"
)

// SnapshotCache stores short-lived JSON read snapshots
type SnapshotCache interface {
	GetJSON(ctx context.Context, key string, v interface{}) error
	SetJSON(ctx context.Context, key string, v interface{}) error
}

// Handlers contains all dependencies for API endpoint handlers
type Handlers struct {
	Proposals *proposals.Reader
	Markets   *market.Resolver
	Vaults    *vault.Resolver
	Deposits  *vault.DepositEngine
	Swaps     *swapengine.Engine
	Units     *units.Table

	Cache  SnapshotCache   // Redis-backed snapshots (optional)
	Poller *refresh.Poller // Keeps viewed vaults warm (optional)

	DefaultWallet solana.PublicKey // Signing wallet, zero when read-only
	Activity      bool             // Whether executions are stored
	DevMode       bool             // Enable detailed error responses in development
	Logger        *logrus.Logger   // Structured logger
}

// NewHandlers builds handlers over an initialized app
func NewHandlers(a *app.App) *Handlers {
	h := &Handlers{
		Proposals:     a.Proposals,
		Markets:       a.Markets,
		Vaults:        a.Vaults,
		Deposits:      a.Deposits,
		Swaps:         a.Swaps,
		Units:         a.Units,
		Poller:        a.Poller,
		DefaultWallet: a.DefaultWallet(),
		Activity:      a.Activity != nil,
		DevMode:       a.Config.DevMode,
		Logger:        a.Logger,
	}
	if a.Cache != nil {
		h.Cache = a.Cache
	}
	return h
}

// err returns a standardized JSON error response
// In dev mode, includes additional error details for debugging
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

// fail maps an engine error to its status. The message is the error text so
// the UI can show it as a notification.
func (h *Handlers) fail(c echo.Context, op string, err error) error {
	code := statusFor(err)
	entry := h.Logger.WithError(err).WithFields(logrus.Fields{"op": op, "status": code})
	if code >= http.StatusInternalServerError {
		entry.Warn("request failed")
	} else {
		entry.Debug("request rejected")
	}
	if code == http.StatusInternalServerError && !h.DevMode {
		return h.err(c, code, "internal server error", nil)
	}
	return h.err(c, code, err.Error(), map[string]any{"op": op})
}

// withTimeout creates a context with timeout, defaulting to 10 seconds if duration <= 0
func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

// Health returns a simple health check endpoint
func (h *Handlers) Health(c echo.Context) error {
	resp := HealthResponse{OK: true, Cache: h.Cache != nil, Activity: h.Activity}
	if !h.DefaultWallet.IsZero() {
		resp.Wallet = h.DefaultWallet.String()
	}
	return c.JSON(http.StatusOK, resp)
}

// ListProposals returns every proposal, newest first
func (h *Handlers) ListProposals(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	items, err := h.Proposals.List(ctx)
	if err != nil {
		return h.fail(c, "list_proposals", err)
	}
	return c.JSON(http.StatusOK, ProposalsResponse{Items: items})
}

// GetProposal returns a single proposal by address
func (h *Handlers) GetProposal(c echo.Context) error {
	addr, err := parseKey(c.Param("address"))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid address", map[string]any{"address": err.Error()})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p, err := h.Proposals.Get(ctx, addr)
	if err != nil {
		return h.fail(c, "get_proposal", err)
	}
	return c.JSON(http.StatusOK, p)
}

// GetVault returns a vault and the wallet's underlying, pass and fail
// balances. Accepts wallet (defaults to the signing wallet) and symbol
// (defaults to the asset matching the underlying mint) query parameters.
func (h *Handlers) GetVault(c echo.Context) error {
	vaultAddr, err := parseKey(c.Param("address"))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid address", map[string]any{"address": err.Error()})
	}
	walletAddr, err := h.walletParam(c.QueryParam("wallet"))
	if err != nil {
		return h.fail(c, "get_vault", err)
	}
	symbol := strings.ToUpper(strings.TrimSpace(c.QueryParam("symbol")))
	if symbol != "" {
		if _, err := h.Units.Lookup(symbol); err != nil {
			return h.fail(c, "get_vault", err)
		}
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	key := cache.VaultKey(vaultAddr.String(), walletAddr.String())
	var resp VaultResponse

	var cached vault.VaultView
	if h.cacheGet(ctx, key, &cached) {
		resp.VaultView = &cached
		resp.Cached = true
	} else {
		view, err := h.Vaults.ResolveVault(ctx, vaultAddr, walletAddr)
		if err != nil {
			return h.fail(c, "get_vault", err)
		}
		h.cacheSet(ctx, key, view)
		resp.VaultView = view
	}

	if h.Poller != nil {
		h.Poller.Register(vaultAddr, walletAddr)
	}

	resp.Symbol, err = resp.WithDisplay(h.Units, symbol)
	if err != nil {
		return h.fail(c, "get_vault", err)
	}
	return c.JSON(http.StatusOK, resp)
}

// GetMarket returns the order book behind a proposal's pass or fail branch
func (h *Handlers) GetMarket(c echo.Context) error {
	proposalAddr, err := parseKey(c.Param("address"))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid address", map[string]any{"address": err.Error()})
	}
	branch, err := market.ParseBranch(c.Param("branch"))
	if err != nil {
		return h.fail(c, "get_market", err)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	key := cache.MarketKey(proposalAddr.String(), branch.String())
	var cached market.MarketView
	if h.cacheGet(ctx, key, &cached) {
		return c.JSON(http.StatusOK, &cached)
	}

	p, err := h.Proposals.Get(ctx, proposalAddr)
	if err != nil {
		return h.fail(c, "get_market", err)
	}
	view, err := h.Markets.ResolveMarket(ctx, proposalAddr, p.Proposal, branch)
	if err != nil {
		return h.fail(c, "get_market", err)
	}
	h.cacheSet(ctx, key, view)
	return c.JSON(http.StatusOK, view)
}

// Deposit mints pass and fail tokens by depositing into a vault and waits
// for confirmation
func (h *Handlers) Deposit(c echo.Context) error {
	var req DepositRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	vaultAddr, err := parseKey(req.Vault)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid vault", map[string]any{"vault": err.Error()})
	}
	walletAddr, err := h.walletParam(req.Wallet)
	if err != nil {
		return h.fail(c, "deposit", err)
	}
	// empty means the vault's underlying asset
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))

	ctx, cancel := h.withTimeout(c.Request().Context(), 90*time.Second)
	defer cancel()

	res, err := h.Deposits.DepositConditional(ctx, vaultAddr, walletAddr, req.Amount, symbol)
	if err != nil {
		return h.fail(c, "deposit", err)
	}
	return c.JSON(http.StatusOK, res)
}

// SimulateSwap dry-runs a take order and returns the expected output
func (h *Handlers) SimulateSwap(c echo.Context) error {
	intent, err := h.bindSwap(c)
	if err != nil {
		return err
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 20*time.Second)
	defer cancel()

	q, err := h.Swaps.SimulateSwap(ctx, *intent)
	if err != nil {
		return h.fail(c, "simulate_swap", err)
	}
	return c.JSON(http.StatusOK, q)
}

// ExecuteSwap submits a take order and waits for confirmation
func (h *Handlers) ExecuteSwap(c echo.Context) error {
	intent, err := h.bindSwap(c)
	if err != nil {
		return err
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 90*time.Second)
	defer cancel()

	res, err := h.Swaps.ExecuteSwap(ctx, *intent)
	if err != nil {
		return h.fail(c, "execute_swap", err)
	}
	return c.JSON(http.StatusOK, res)
}

// bindSwap decodes and parses a swap request. On failure the error response
// has already been written and the returned error is what the handler
// should return.
func (h *Handlers) bindSwap(c echo.Context) (*swapengine.SwapIntent, error) {
	var req SwapRequest
	if err := c.Bind(&req); err != nil {
		return nil, h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	proposalAddr, err := parseKey(req.Proposal)
	if err != nil {
		return nil, h.err(c, http.StatusBadRequest, "invalid proposal", map[string]any{"proposal": err.Error()})
	}
	branch, err := market.ParseBranch(req.Branch)
	if err != nil {
		return nil, h.fail(c, "swap", err)
	}

	intent := &swapengine.SwapIntent{
		Proposal: proposalAddr,
		Branch:   branch,
		TokenIn:  strings.ToUpper(strings.TrimSpace(req.TokenIn)),
		TokenOut: strings.ToUpper(strings.TrimSpace(req.TokenOut)),
		Amount:   strings.TrimSpace(req.Amount),
	}
	if req.Wallet != "" {
		intent.Wallet, err = parseKey(req.Wallet)
		if err != nil {
			return nil, h.err(c, http.StatusBadRequest, "invalid wallet", map[string]any{"wallet": err.Error()})
		}
	}
	return intent, nil
}

func (h *Handlers) walletParam(raw string) (solana.PublicKey, error) {
	if strings.TrimSpace(raw) != "" {
		pk, err := parseKey(raw)
		if err != nil {
			return solana.PublicKey{}, fmt.Errorf("%w: wallet %q: %v", errInvalidAddress, raw, err)
		}
		return pk, nil
	}
	if h.DefaultWallet.IsZero() {
		return solana.PublicKey{}, swapengine.ErrNoWallet
	}
	return h.DefaultWallet, nil
}

func (h *Handlers) cacheGet(ctx context.Context, key string, v interface{}) bool {
	if h.Cache == nil {
		return false
	}
	err := h.Cache.GetJSON(ctx, key, v)
	if err != nil && !errors.Is(err, cache.ErrMiss) {
		h.Logger.WithError(err).WithField("key", key).Debug("snapshot read failed")
	}
	return err == nil
}

func (h *Handlers) cacheSet(ctx context.Context, key string, v interface{}) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.SetJSON(ctx, key, v); err != nil {
		h.Logger.WithError(err).WithField("key", key).Debug("snapshot write failed")
	}
}

func parseKey(raw string) (solana.PublicKey, error) {
	return solana.PublicKeyFromBase58(strings.TrimSpace(raw))
}
