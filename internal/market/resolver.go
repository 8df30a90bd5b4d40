package market

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/metaproph3t/futarchy-ui/internal/chain"
	"github.com/metaproph3t/futarchy-ui/internal/programs"
	"github.com/metaproph3t/futarchy-ui/internal/units"
	"github.com/sirupsen/logrus"
)

// Branch selects the pass or fail conditional market of a proposal.
type Branch uint8

const (
	BranchPass Branch = iota
	BranchFail
)

// InvalidBranchError is returned by ParseBranch for anything but pass/fail.
type InvalidBranchError struct {
	Input string
}

func (e *InvalidBranchError) Error() string {
	return fmt.Sprintf("invalid branch %q: expected pass or fail", e.Input)
}

func ParseBranch(s string) (Branch, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pass":
		return BranchPass, nil
	case "fail":
		return BranchFail, nil
	default:
		return 0, &InvalidBranchError{Input: s}
	}
}

func (b Branch) String() string {
	if b == BranchFail {
		return "fail"
	}
	return "pass"
}

func (b Branch) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

func (b *Branch) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseBranch(s)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// MarketView is a proposal branch's TWAP wrapper and the order book it wraps.
type MarketView struct {
	Proposal   solana.PublicKey         `json:"proposal"`
	Branch     Branch                   `json:"branch"`
	TwapMarket solana.PublicKey         `json:"twap_market"`
	Address    solana.PublicKey         `json:"market"`
	Market     *programs.OpenbookMarket `json:"book"`
}

// Lots returns the lot table and token decimals of the fetched market.
func (v *MarketView) Lots() units.Lots {
	return units.Lots{
		BaseLotSize:   v.Market.BaseLotSize,
		QuoteLotSize:  v.Market.QuoteLotSize,
		BaseDecimals:  int32(v.Market.BaseDecimals),
		QuoteDecimals: int32(v.Market.QuoteDecimals),
	}
}

// Resolver fetches the market behind a proposal branch.
type Resolver struct {
	client chain.Client
	logger *logrus.Logger
}

func NewResolver(client chain.Client, logger *logrus.Logger) *Resolver {
	if logger == nil {
		logger = logrus.New()
	}
	return &Resolver{client: client, logger: logger}
}

// TwapMarketFor picks the proposal's TWAP market for branch.
func TwapMarketFor(p *programs.Proposal, branch Branch) solana.PublicKey {
	if branch == BranchFail {
		return p.OpenbookTwapFailMarket
	}
	return p.OpenbookTwapPassMarket
}

// ResolveMarket fetches the branch's TWAP market and then the order book it
// wraps. Either account missing is a hard error.
func (r *Resolver) ResolveMarket(ctx context.Context, proposalAddr solana.PublicKey, proposal *programs.Proposal, branch Branch) (*MarketView, error) {
	twapAddr := TwapMarketFor(proposal, branch)

	data, err := r.client.FetchAccount(ctx, twapAddr)
	if err != nil {
		return nil, chain.Required(err, "twap market", twapAddr)
	}
	twap, err := programs.DecodeTwapMarket(data)
	if err != nil {
		return nil, err
	}

	data, err = r.client.FetchAccount(ctx, twap.Market)
	if err != nil {
		return nil, chain.Required(err, "openbook market", twap.Market)
	}
	book, err := programs.DecodeOpenbookMarket(data)
	if err != nil {
		return nil, err
	}

	r.logger.WithFields(logrus.Fields{
		"proposal":       proposalAddr.String(),
		"branch":         branch.String(),
		"market":         twap.Market.String(),
		"base_lot_size":  book.BaseLotSize,
		"quote_lot_size": book.QuoteLotSize,
	}).Debug("resolved market")

	return &MarketView{
		Proposal:   proposalAddr,
		Branch:     branch,
		TwapMarket: twapAddr,
		Address:    twap.Market,
		Market:     book,
	}, nil
}
