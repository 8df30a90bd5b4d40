package units

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

var (
	ErrUnknownAsset  = errors.New("unknown asset")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrScaleMismatch = errors.New("scale mismatch")
)

// UnknownAssetError names the symbol that has no registered scale.
type UnknownAssetError struct {
	Symbol string
}

func (e *UnknownAssetError) Error() string {
	return fmt.Sprintf("unknown asset %q", e.Symbol)
}

func (e *UnknownAssetError) Is(target error) bool { return target == ErrUnknownAsset }

// InvalidAmountError carries the rejected input and the reason.
type InvalidAmountError struct {
	Input  string
	Reason string
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid amount %q: %s", e.Input, e.Reason)
}

func (e *InvalidAmountError) Is(target error) bool { return target == ErrInvalidAmount }

// ScaleMismatchError means a symbol's configured decimals disagree with the
// token it is applied to on chain.
type ScaleMismatchError struct {
	Symbol     string
	Configured int32
	OnChain    int32
}

func (e *ScaleMismatchError) Error() string {
	return fmt.Sprintf("%s has %d decimals but the on-chain token has %d", e.Symbol, e.Configured, e.OnChain)
}

func (e *ScaleMismatchError) Is(target error) bool { return target == ErrScaleMismatch }

// Asset is a token symbol and its decimal scale.
type Asset struct {
	Symbol   string `json:"symbol"`
	Decimals int32  `json:"decimals"`
}

// Scale returns 10^decimals.
func (a Asset) Scale() decimal.Decimal {
	return decimal.New(1, a.Decimals)
}

// Table maps symbols to assets. Registration happens at startup; lookups
// are safe for concurrent use.
type Table struct {
	mu     sync.RWMutex
	assets map[string]Asset
}

func NewTable(assets ...Asset) *Table {
	t := &Table{assets: make(map[string]Asset, len(assets))}
	for _, a := range assets {
		t.assets[a.Symbol] = a
	}
	return t
}

// DefaultTable registers META (9 decimals) and USDC (6 decimals).
func DefaultTable() *Table {
	return NewTable(
		Asset{Symbol: "META", Decimals: 9},
		Asset{Symbol: "USDC", Decimals: 6},
	)
}

// ParseTable parses "SYM:decimals,SYM:decimals" on top of the defaults.
func ParseTable(list string) (*Table, error) {
	t := DefaultTable()
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		sym, dec, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("asset %q: expected SYMBOL:DECIMALS", part)
		}
		n, err := strconv.Atoi(strings.TrimSpace(dec))
		if err != nil || n < 0 || n > 18 {
			return nil, fmt.Errorf("asset %q: decimals must be 0..18", part)
		}
		t.Register(Asset{Symbol: strings.TrimSpace(sym), Decimals: int32(n)})
	}
	return t, nil
}

func (t *Table) Register(a Asset) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.assets[a.Symbol] = a
}

func (t *Table) Lookup(symbol string) (Asset, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	a, ok := t.assets[symbol]
	if !ok {
		return Asset{}, &UnknownAssetError{Symbol: symbol}
	}
	return a, nil
}

// CheckDecimals verifies symbol's scale against decimals read from chain.
func (t *Table) CheckDecimals(symbol string, onChain int32) error {
	a, err := t.Lookup(symbol)
	if err != nil {
		return err
	}
	if a.Decimals != onChain {
		return &ScaleMismatchError{Symbol: symbol, Configured: a.Decimals, OnChain: onChain}
	}
	return nil
}

// SymbolForDecimals returns the only registered asset with the given
// decimals.
func (t *Table) SymbolForDecimals(decimals int32) (string, error) {
	var found []string
	for _, a := range t.Assets() {
		if a.Decimals == decimals {
			found = append(found, a.Symbol)
		}
	}
	if len(found) != 1 {
		return "", fmt.Errorf("%w: %d assets have %d decimals, a symbol is required", ErrUnknownAsset, len(found), decimals)
	}
	return found[0], nil
}

// Assets returns the registered assets sorted by symbol.
func (t *Table) Assets() []Asset {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Asset, 0, len(t.assets))
	for _, a := range t.assets {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// ParseAmount parses a user-entered display amount. Non-numeric, zero and
// negative inputs are rejected.
func ParseAmount(input string) (decimal.Decimal, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return decimal.Zero, &InvalidAmountError{Input: input, Reason: "empty"}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &InvalidAmountError{Input: input, Reason: "not a number"}
	}
	if !d.IsPositive() {
		return decimal.Zero, &InvalidAmountError{Input: input, Reason: "must be greater than zero"}
	}
	return d, nil
}

// ToSmallestUnits converts a display amount to integer base units,
// truncating any precision beyond the asset's decimals.
func (t *Table) ToSmallestUnits(symbol string, display decimal.Decimal) (uint64, error) {
	a, err := t.Lookup(symbol)
	if err != nil {
		return 0, err
	}
	if display.IsNegative() {
		return 0, &InvalidAmountError{Input: display.String(), Reason: "must not be negative"}
	}
	v := display.Mul(a.Scale()).Truncate(0)
	if !v.BigInt().IsUint64() {
		return 0, &InvalidAmountError{Input: display.String(), Reason: "too large"}
	}
	return v.BigInt().Uint64(), nil
}

// ToDisplayUnits converts base units to a display value rounded to two
// decimal places. The result is for display only.
func (t *Table) ToDisplayUnits(symbol string, smallest int64) (float64, error) {
	a, err := t.Lookup(symbol)
	if err != nil {
		return 0, err
	}
	f, _ := decimal.NewFromInt(smallest).Div(a.Scale()).Round(2).Float64()
	return f, nil
}

// ToDisplayUnitsU is ToDisplayUnits for unsigned balances.
func (t *Table) ToDisplayUnitsU(symbol string, smallest uint64) (float64, error) {
	a, err := t.Lookup(symbol)
	if err != nil {
		return 0, err
	}
	d := decimal.NewFromBigInt(new(big.Int).SetUint64(smallest), 0)
	f, _ := d.Div(a.Scale()).Round(2).Float64()
	return f, nil
}
