package swapengine

import (
	"fmt"

	"github.com/metaproph3t/futarchy-ui/internal/programs"
	"github.com/metaproph3t/futarchy-ui/internal/units"
)

// DecisionEngine validates intents and sizes take orders.
type DecisionEngine struct {
	units       *units.Table
	baseSymbol  string
	quoteSymbol string
}

func NewDecisionEngine(table *units.Table, baseSymbol, quoteSymbol string) *DecisionEngine {
	return &DecisionEngine{units: table, baseSymbol: baseSymbol, quoteSymbol: quoteSymbol}
}

// Direction reports whether the intent buys the base token with the quote
// token or sells it. Any other pair is rejected.
func (de *DecisionEngine) Direction(intent *SwapIntent) (Direction, error) {
	switch {
	case intent.TokenIn == de.quoteSymbol && intent.TokenOut == de.baseSymbol:
		return DirectionBuy, nil
	case intent.TokenIn == de.baseSymbol && intent.TokenOut == de.quoteSymbol:
		return DirectionSell, nil
	default:
		return "", fmt.Errorf("%w: %s -> %s (market trades %s/%s)",
			ErrInvalidPair, intent.TokenIn, intent.TokenOut, de.baseSymbol, de.quoteSymbol)
	}
}

// ValidateIntent checks everything that can be checked without the network.
func (de *DecisionEngine) ValidateIntent(intent *SwapIntent) error {
	if intent == nil {
		return fmt.Errorf("intent is nil")
	}
	if intent.Proposal.IsZero() {
		return fmt.Errorf("proposal is required")
	}
	if _, err := de.units.Lookup(intent.TokenIn); err != nil {
		return err
	}
	if _, err := de.units.Lookup(intent.TokenOut); err != nil {
		return err
	}
	if _, err := de.Direction(intent); err != nil {
		return err
	}
	_, err := units.ParseAmount(intent.Amount)
	return err
}

// SizeOrder turns an intent into a take order against a market with the
// given lot sizes. The market's token decimals must match the configured
// base and quote scales.
//
// Buying caps only the quote spent: max quote lots is the input converted to
// quote units over the quote lot size, max base lots is uncapped, and the
// price is the maximum. Selling caps only the base sold: max base lots is
// the input converted to base units over the base lot size, max quote lots
// is uncapped, and the price is the minimum.
func (de *DecisionEngine) SizeOrder(intent *SwapIntent, lots units.Lots, mode Mode) (*OrderRequest, error) {
	dir, err := de.Direction(intent)
	if err != nil {
		return nil, err
	}
	amount, err := units.ParseAmount(intent.Amount)
	if err != nil {
		return nil, err
	}
	if err := lots.Validate(); err != nil {
		return nil, err
	}
	if err := de.units.CheckDecimals(de.baseSymbol, lots.BaseDecimals); err != nil {
		return nil, err
	}
	if err := de.units.CheckDecimals(de.quoteSymbol, lots.QuoteDecimals); err != nil {
		return nil, err
	}

	order := &OrderRequest{
		Mode:              mode,
		Branch:            intent.Branch,
		Direction:         dir,
		InputSymbol:       intent.TokenIn,
		InputAmount:       amount.String(),
		OrderType:         programs.OrderTypeMarket,
		SelfTradeBehavior: programs.SelfTradeDecrementTake,
		Limit:             programs.MaxFillLimit,
	}

	order.InputRaw, err = de.units.ToSmallestUnits(intent.TokenIn, amount)
	if err != nil {
		return nil, err
	}

	if dir == DirectionBuy {
		quoteLots, err := lots.QuoteLots(order.InputRaw)
		if err != nil {
			return nil, err
		}
		order.Side = programs.SideBid
		order.PriceLots = programs.MaxPriceLots
		order.MaxBaseLots = UncappedLots
		order.MaxQuoteLotsIncludingFees = quoteLots
		if quoteLots == 0 {
			return nil, &units.InvalidAmountError{Input: intent.Amount, Reason: "smaller than one quote lot"}
		}
		return order, nil
	}

	baseLots, err := lots.BaseLots(order.InputRaw)
	if err != nil {
		return nil, err
	}
	order.Side = programs.SideAsk
	order.PriceLots = programs.MinPriceLots
	order.MaxBaseLots = baseLots
	order.MaxQuoteLotsIncludingFees = UncappedLots
	if baseLots == 0 {
		return nil, &units.InvalidAmountError{Input: intent.Amount, Reason: "smaller than one base lot"}
	}
	return order, nil
}
