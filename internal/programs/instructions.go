package programs

import (
	"bytes"
	"fmt"
	"math"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Side of a take order.
type Side uint8

const (
	SideBid Side = iota
	SideAsk
)

func (s Side) String() string {
	if s == SideAsk {
		return "ask"
	}
	return "bid"
}

// OrderType is OpenBook v2's PlaceOrderType.
type OrderType uint8

const (
	OrderTypeLimit OrderType = iota
	OrderTypeImmediateOrCancel
	OrderTypePostOnly
	OrderTypeMarket
	OrderTypePostOnlySlide
)

// SelfTradeBehavior controls how a taker crossing its own maker order is
// handled.
type SelfTradeBehavior uint8

const (
	SelfTradeDecrementTake SelfTradeBehavior = iota
	SelfTradeCancelProvide
	SelfTradeAbortTransaction
)

const (
	// MaxPriceLots is the price ceiling of a market buy.
	MaxPriceLots int64 = math.MaxInt64
	// MinPriceLots is the price floor of a market sell.
	MinPriceLots int64 = 1
	// MaxFillLimit bounds the order-matching iterations of one take order.
	MaxFillLimit uint8 = 255
)

// PlaceTakeOrderArgs are the arguments of place_take_order.
type PlaceTakeOrderArgs struct {
	Side                      Side
	PriceLots                 int64
	MaxBaseLots               int64
	MaxQuoteLotsIncludingFees int64
	ClientOrderID             uint64
	OrderType                 OrderType
	SelfTradeBehavior         SelfTradeBehavior
	Limit                     uint8
}

// NewAnchorInstruction builds an Anchor instruction: the 8-byte
// discriminator of method followed by the Borsh encoding of each arg.
func NewAnchorInstruction(
	program solana.PublicKey,
	method string,
	accounts []*solana.AccountMeta,
	args ...interface{},
) (solana.Instruction, error) {
	buf := new(bytes.Buffer)
	buf.Write(InstructionDiscriminator(method))

	enc := bin.NewBorshEncoder(buf)
	for i, arg := range args {
		if err := enc.Encode(arg); err != nil {
			return nil, fmt.Errorf("%s: encode arg %d: %w", method, i, err)
		}
	}

	return solana.NewInstruction(program, accounts, buf.Bytes()), nil
}

// MintConditionalTokensAccounts are the accounts of mint_conditional_tokens.
type MintConditionalTokensAccounts struct {
	Authority                          solana.PublicKey
	Vault                              solana.PublicKey
	VaultUnderlyingTokenAccount        solana.PublicKey
	UserUnderlyingTokenAccount         solana.PublicKey
	ConditionalOnFinalizeTokenMint     solana.PublicKey
	UserConditionalOnFinalizeTokenAcct solana.PublicKey
	ConditionalOnRevertTokenMint       solana.PublicKey
	UserConditionalOnRevertTokenAcct   solana.PublicKey
}

// NewMintConditionalTokensInstruction deposits amount of the underlying token
// into the vault and mints the same amount of pass and fail tokens.
func NewMintConditionalTokensInstruction(
	programID solana.PublicKey,
	accts MintConditionalTokensAccounts,
	amount uint64,
) (solana.Instruction, error) {
	metas := []*solana.AccountMeta{
		{PublicKey: accts.Authority, IsSigner: true, IsWritable: false},
		{PublicKey: accts.Vault, IsSigner: false, IsWritable: false},
		{PublicKey: accts.VaultUnderlyingTokenAccount, IsSigner: false, IsWritable: true},
		{PublicKey: accts.UserUnderlyingTokenAccount, IsSigner: false, IsWritable: true},
		{PublicKey: accts.ConditionalOnFinalizeTokenMint, IsSigner: false, IsWritable: true},
		{PublicKey: accts.UserConditionalOnFinalizeTokenAcct, IsSigner: false, IsWritable: true},
		{PublicKey: accts.ConditionalOnRevertTokenMint, IsSigner: false, IsWritable: true},
		{PublicKey: accts.UserConditionalOnRevertTokenAcct, IsSigner: false, IsWritable: true},
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
	}
	return NewAnchorInstruction(programID, "mint_conditional_tokens", metas, amount)
}

// PlaceTakeOrderAccounts are the accounts of the TWAP wrapper's
// place_take_order. Zero oracles are passed as the wrapper program ID, which
// is how Anchor encodes an absent optional account.
type PlaceTakeOrderAccounts struct {
	Signer           solana.PublicKey
	Market           solana.PublicKey
	MarketAuthority  solana.PublicKey
	Bids             solana.PublicKey
	Asks             solana.PublicKey
	MarketBaseVault  solana.PublicKey
	MarketQuoteVault solana.PublicKey
	EventHeap        solana.PublicKey
	UserBaseAccount  solana.PublicKey
	UserQuoteAccount solana.PublicKey
	OracleA          solana.PublicKey
	OracleB          solana.PublicKey
	TwapMarket       solana.PublicKey
}

// NewPlaceTakeOrderInstruction builds the TWAP wrapper call that forwards a
// take order to OpenBook v2.
func NewPlaceTakeOrderInstruction(
	ids ProgramIDs,
	accts PlaceTakeOrderAccounts,
	args PlaceTakeOrderArgs,
) (solana.Instruction, error) {
	optional := func(pk solana.PublicKey) solana.PublicKey {
		if pk.IsZero() {
			return ids.OpenbookTwap
		}
		return pk
	}

	metas := []*solana.AccountMeta{
		{PublicKey: accts.Signer, IsSigner: true, IsWritable: true},
		{PublicKey: accts.Market, IsSigner: false, IsWritable: true},
		{PublicKey: accts.MarketAuthority, IsSigner: false, IsWritable: false},
		{PublicKey: accts.Bids, IsSigner: false, IsWritable: true},
		{PublicKey: accts.Asks, IsSigner: false, IsWritable: true},
		{PublicKey: accts.MarketBaseVault, IsSigner: false, IsWritable: true},
		{PublicKey: accts.MarketQuoteVault, IsSigner: false, IsWritable: true},
		{PublicKey: accts.EventHeap, IsSigner: false, IsWritable: true},
		{PublicKey: accts.UserBaseAccount, IsSigner: false, IsWritable: true},
		{PublicKey: accts.UserQuoteAccount, IsSigner: false, IsWritable: true},
		{PublicKey: optional(accts.OracleA), IsSigner: false, IsWritable: false},
		{PublicKey: optional(accts.OracleB), IsSigner: false, IsWritable: false},
		{PublicKey: accts.TwapMarket, IsSigner: false, IsWritable: true},
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: ids.Openbook, IsSigner: false, IsWritable: false},
	}
	return NewAnchorInstruction(ids.OpenbookTwap, "place_take_order", metas, args)
}
