package swapengine

import (
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/metaproph3t/futarchy-ui/internal/market"
	"github.com/metaproph3t/futarchy-ui/internal/programs"
)

// UncappedLots is the ceiling used for the side of a take order that should
// not limit the fill, so the dry-run consumes liquidity up to the real
// limiting side without knowing book depth in advance.
const UncappedLots int64 = 1_000_000_000_000

// ErrInvalidPair means token_in/token_out are not the market's two symbols.
var ErrInvalidPair = errors.New("invalid token pair")

// SwapIntent is a user's swap request in display units.
type SwapIntent struct {
	Proposal solana.PublicKey `json:"proposal"`
	Branch   market.Branch    `json:"branch"`
	TokenIn  string           `json:"token_in"`
	TokenOut string           `json:"token_out"`
	Amount   string           `json:"amount"`

	// Wallet owns the token accounts and pays fees. Zero means the engine's
	// configured wallet.
	Wallet solana.PublicKey `json:"wallet"`
}

// Mode is the only difference between a simulated and an executed order.
type Mode string

const (
	ModeSimulate Mode = "simulate"
	ModeExecute  Mode = "execute"
)

type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// OrderRequest is one sized take order. It lives for a single simulate or
// execute call and is never persisted.
type OrderRequest struct {
	Mode                      Mode                       `json:"mode"`
	Branch                    market.Branch              `json:"branch"`
	Direction                 Direction                  `json:"direction"`
	InputSymbol               string                     `json:"input_symbol"`
	InputAmount               string                     `json:"input_amount"`
	InputRaw                  uint64                     `json:"input_raw"`
	Side                      programs.Side              `json:"side"`
	PriceLots                 int64                      `json:"price_lots"`
	MaxBaseLots               int64                      `json:"max_base_lots"`
	MaxQuoteLotsIncludingFees int64                      `json:"max_quote_lots_including_fees"`
	OrderType                 programs.OrderType         `json:"order_type"`
	SelfTradeBehavior         programs.SelfTradeBehavior `json:"self_trade_behavior"`
	Limit                     uint8                      `json:"limit"`
}

// Args converts the request to place_take_order arguments.
func (o *OrderRequest) Args() programs.PlaceTakeOrderArgs {
	return programs.PlaceTakeOrderArgs{
		Side:                      o.Side,
		PriceLots:                 o.PriceLots,
		MaxBaseLots:               o.MaxBaseLots,
		MaxQuoteLotsIncludingFees: o.MaxQuoteLotsIncludingFees,
		OrderType:                 o.OrderType,
		SelfTradeBehavior:         o.SelfTradeBehavior,
		Limit:                     o.Limit,
	}
}

// Quote is the expected result of a simulated order. Insufficient is a
// valid answer meaning the order cannot be filled as sized.
type Quote struct {
	Insufficient    bool               `json:"insufficient"`
	SimulationError string             `json:"simulation_error,omitempty"`
	TokenOut        string             `json:"token_out"`
	ExpectedOut     float64            `json:"expected_out"`
	ExpectedOutRaw  int64              `json:"expected_out_raw"`
	PreBase         uint64             `json:"pre_base"`
	PreQuote        uint64             `json:"pre_quote"`
	PostBase        uint64             `json:"post_base"`
	PostQuote       uint64             `json:"post_quote"`
	Creates         []solana.PublicKey `json:"creates,omitempty"`
	UnitsConsumed   uint64             `json:"units_consumed"`
	Order           *OrderRequest      `json:"order"`
	Market          solana.PublicKey   `json:"market"`
	QuotedAt        time.Time          `json:"quoted_at"`
}

// SwapResult is the outcome of an executed order.
type SwapResult struct {
	ExecutionID string             `json:"execution_id"`
	Signature   string             `json:"signature,omitempty"`
	Success     bool               `json:"success"`
	Error       string             `json:"error,omitempty"`
	Order       *OrderRequest      `json:"order,omitempty"`
	Market      solana.PublicKey   `json:"market"`
	Creates     []solana.PublicKey `json:"creates,omitempty"`
	Duration    time.Duration      `json:"duration"`
}

// Stage names where a swap failed.
type Stage string

const (
	StageProposal Stage = "resolve_proposal"
	StageMarket   Stage = "resolve_market"
	StageAccounts Stage = "resolve_accounts"
	StageBuild    Stage = "build"
	StageSimulate Stage = "simulate"
	StageSend     Stage = "send"
	StageConfirm  Stage = "confirm"
)

// SwapFailedError wraps any chain-side failure of a swap.
type SwapFailedError struct {
	Stage Stage
	Err   error
}

func (e *SwapFailedError) Error() string {
	return fmt.Sprintf("swap failed at %s: %v", e.Stage, e.Err)
}

func (e *SwapFailedError) Unwrap() error { return e.Err }

func failed(stage Stage, err error) error {
	return &SwapFailedError{Stage: stage, Err: err}
}
