package programs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
)

// DiscriminatorSize is the length of an Anchor account or instruction prefix.
const DiscriminatorSize = 8

// AccountDiscriminator returns sha256("account:<name>")[:8].
func AccountDiscriminator(name string) []byte {
	return bin.Sighash(bin.SIGHASH_ACCOUNT_NAMESPACE, name)
}

// InstructionDiscriminator returns sha256("global:<name>")[:8]; name is the
// snake_case instruction name.
func InstructionDiscriminator(name string) []byte {
	return bin.Sighash(bin.SIGHASH_GLOBAL_NAMESPACE, name)
}

// Anchor account names as declared by the on-chain programs.
const (
	AccountNameConditionalVault = "ConditionalVault"
	AccountNameProposal         = "Proposal"
	AccountNameTwapMarket       = "TWAPMarket"
	AccountNameOpenbookMarket   = "Market"
)

var (
	conditionalVaultDiscriminator = AccountDiscriminator(AccountNameConditionalVault)
	proposalDiscriminator         = AccountDiscriminator(AccountNameProposal)
	twapMarketDiscriminator       = AccountDiscriminator(AccountNameTwapMarket)
	marketDiscriminator           = AccountDiscriminator(AccountNameOpenbookMarket)
)

// ProposalDiscriminator is the getProgramAccounts filter prefix for proposals.
func ProposalDiscriminator() []byte {
	return append([]byte(nil), proposalDiscriminator...)
}

// VaultStatus is the lifecycle of a conditional vault.
type VaultStatus uint8

const (
	VaultActive VaultStatus = iota
	VaultFinalized
	VaultReverted
)

func (s VaultStatus) String() string {
	switch s {
	case VaultActive:
		return "active"
	case VaultFinalized:
		return "finalized"
	case VaultReverted:
		return "reverted"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

func (s VaultStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *VaultStatus) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for _, v := range []VaultStatus{VaultActive, VaultFinalized, VaultReverted} {
		if v.String() == name {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown vault status %q", name)
}

// ConditionalVault escrows an underlying token and mints pass/fail
// conditional tokens against it.
type ConditionalVault struct {
	Status                         VaultStatus      `json:"status"`
	SettlementAuthority            solana.PublicKey `json:"settlement_authority"`
	UnderlyingTokenMint            solana.PublicKey `json:"underlying_token_mint"`
	Nonce                          uint64           `json:"nonce"`
	UnderlyingTokenAccount         solana.PublicKey `json:"underlying_token_account"`
	ConditionalOnFinalizeTokenMint solana.PublicKey `json:"conditional_on_finalize_token_mint"`
	ConditionalOnRevertTokenMint   solana.PublicKey `json:"conditional_on_revert_token_mint"`
	PdaBump                        uint8            `json:"pda_bump"`
}

// ProposalState is decoded once at the boundary; the rest of the code only
// sees the enum.
type ProposalState uint8

const (
	ProposalPending ProposalState = iota
	ProposalPassed
	ProposalFailed
)

func (s ProposalState) String() string {
	switch s {
	case ProposalPending:
		return "pending"
	case ProposalPassed:
		return "passed"
	case ProposalFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// MarshalJSON renders the state as a plain string ("pending").
func (s ProposalState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts both the Anchor object form ({"pending":{}}) and the
// plain string form.
func (s *ProposalState) UnmarshalJSON(data []byte) error {
	var name string
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		if len(obj) != 1 {
			return fmt.Errorf("proposal state: expected exactly one variant, got %d", len(obj))
		}
		for k := range obj {
			name = k
		}
	} else if err := json.Unmarshal(data, &name); err != nil {
		return err
	}

	parsed, err := ParseProposalState(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseProposalState maps a variant name to the enum.
func ParseProposalState(name string) (ProposalState, error) {
	switch strings.ToLower(name) {
	case "pending":
		return ProposalPending, nil
	case "passed":
		return ProposalPassed, nil
	case "failed":
		return ProposalFailed, nil
	default:
		return 0, fmt.Errorf("unknown proposal state %q", name)
	}
}

// ProposalAccount is one account meta of the instruction a proposal executes.
type ProposalAccount struct {
	Pubkey     solana.PublicKey `json:"pubkey"`
	IsSigner   bool             `json:"is_signer"`
	IsWritable bool             `json:"is_writable"`
}

// ProposalInstruction is the instruction executed if the proposal passes.
type ProposalInstruction struct {
	ProgramID solana.PublicKey  `json:"program_id"`
	Accounts  []ProposalAccount `json:"accounts"`
	Data      []byte            `json:"data"`
}

// Proposal is the autocrat proposal account.
type Proposal struct {
	Number                 uint32              `json:"number"`
	Proposer               solana.PublicKey    `json:"proposer"`
	DescriptionURL         string              `json:"description_url"`
	SlotEnqueued           uint64              `json:"slot_enqueued"`
	State                  ProposalState       `json:"state"`
	Instruction            ProposalInstruction `json:"instruction"`
	OpenbookTwapPassMarket solana.PublicKey    `json:"openbook_twap_pass_market"`
	OpenbookTwapFailMarket solana.PublicKey    `json:"openbook_twap_fail_market"`
	OpenbookPassMarket     solana.PublicKey    `json:"openbook_pass_market"`
	OpenbookFailMarket     solana.PublicKey    `json:"openbook_fail_market"`
	BaseVault              solana.PublicKey    `json:"base_vault"`
	QuoteVault             solana.PublicKey    `json:"quote_vault"`
}

// TwapMarket wraps an OpenBook market. The trailing TWAP oracle is not
// decoded.
type TwapMarket struct {
	Market  solana.PublicKey `json:"market"`
	PdaBump uint8            `json:"pda_bump"`
}

// OracleConfig mirrors OpenBook v2's oracle configuration.
type OracleConfig struct {
	ConfFilter        float64  `json:"conf_filter"`
	MaxStalenessSlots int64    `json:"max_staleness_slots"`
	Reserved          [72]byte `json:"-"`
}

// OpenbookMarket is the OpenBook v2 market account (840 bytes after the
// discriminator).
type OpenbookMarket struct {
	Bump               uint8            `json:"bump"`
	BaseDecimals       uint8            `json:"base_decimals"`
	QuoteDecimals      uint8            `json:"quote_decimals"`
	Padding1           [5]byte          `json:"-"`
	MarketAuthority    solana.PublicKey `json:"market_authority"`
	TimeExpiry         int64            `json:"time_expiry"`
	CollectFeeAdmin    solana.PublicKey `json:"collect_fee_admin"`
	OpenOrdersAdmin    solana.PublicKey `json:"open_orders_admin"`
	ConsumeEventsAdmin solana.PublicKey `json:"consume_events_admin"`
	CloseMarketAdmin   solana.PublicKey `json:"close_market_admin"`
	Name               [16]byte         `json:"-"`
	Bids               solana.PublicKey `json:"bids"`
	Asks               solana.PublicKey `json:"asks"`
	EventHeap          solana.PublicKey `json:"event_heap"`
	OracleA            solana.PublicKey `json:"oracle_a"`
	OracleB            solana.PublicKey `json:"oracle_b"`
	OracleConfig       OracleConfig     `json:"oracle_config"`
	QuoteLotSize       int64            `json:"quote_lot_size"`
	BaseLotSize        int64            `json:"base_lot_size"`
	SeqNum             uint64           `json:"seq_num"`
	RegistrationTime   int64            `json:"registration_time"`
	MakerFee           int64            `json:"maker_fee"`
	TakerFee           int64            `json:"taker_fee"`

	FeesAccrued            bin.Uint128 `json:"-"`
	FeesToReferrers        bin.Uint128 `json:"-"`
	ReferrerRebatesAccrued uint64      `json:"referrer_rebates_accrued"`
	FeesAvailable          uint64      `json:"fees_available"`
	MakerVolume            bin.Uint128 `json:"-"`
	TakerVolumeWoOo        bin.Uint128 `json:"-"`

	BaseMint          solana.PublicKey `json:"base_mint"`
	QuoteMint         solana.PublicKey `json:"quote_mint"`
	MarketBaseVault   solana.PublicKey `json:"market_base_vault"`
	BaseDepositTotal  uint64           `json:"base_deposit_total"`
	MarketQuoteVault  solana.PublicKey `json:"market_quote_vault"`
	QuoteDepositTotal uint64           `json:"quote_deposit_total"`
	Reserved          [128]byte        `json:"-"`
}

// MarketName returns the NUL-trimmed market name.
func (m *OpenbookMarket) MarketName() string {
	return string(bytes.TrimRight(m.Name[:], "\x00"))
}

func decodeAnchor(kind string, disc []byte, data []byte, v interface{}) error {
	if len(data) < DiscriminatorSize {
		return fmt.Errorf("decode %s: account too short (%d bytes)", kind, len(data))
	}
	if !bytes.Equal(data[:DiscriminatorSize], disc) {
		return fmt.Errorf("decode %s: discriminator mismatch", kind)
	}
	if err := bin.NewBorshDecoder(data[DiscriminatorSize:]).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", kind, err)
	}
	return nil
}

func DecodeConditionalVault(data []byte) (*ConditionalVault, error) {
	var v ConditionalVault
	if err := decodeAnchor("conditional vault", conditionalVaultDiscriminator, data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func DecodeProposal(data []byte) (*Proposal, error) {
	var p Proposal
	if err := decodeAnchor("proposal", proposalDiscriminator, data, &p); err != nil {
		return nil, err
	}
	if p.State > ProposalFailed {
		return nil, fmt.Errorf("decode proposal: unknown state %d", uint8(p.State))
	}
	return &p, nil
}

func DecodeTwapMarket(data []byte) (*TwapMarket, error) {
	var m TwapMarket
	if err := decodeAnchor("twap market", twapMarketDiscriminator, data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func DecodeOpenbookMarket(data []byte) (*OpenbookMarket, error) {
	var m OpenbookMarket
	if err := decodeAnchor("openbook market", marketDiscriminator, data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// DecodeTokenBalance decodes an SPL token account and returns its amount.
func DecodeTokenBalance(data []byte) (uint64, error) {
	var acc token.Account
	if err := bin.NewBinDecoder(data).Decode(&acc); err != nil {
		return 0, fmt.Errorf("decode token account: %w", err)
	}
	return acc.Amount, nil
}

// DecodeMintDecimals decodes an SPL mint and returns its decimals.
func DecodeMintDecimals(data []byte) (uint8, error) {
	var m token.Mint
	if err := bin.NewBinDecoder(data).Decode(&m); err != nil {
		return 0, fmt.Errorf("decode mint: %w", err)
	}
	if !m.IsInitialized {
		return 0, fmt.Errorf("decode mint: not initialized")
	}
	return m.Decimals, nil
}

// EncodeAnchorAccount prefixes the Borsh encoding of v with the account
// discriminator for name. Used to build fixtures and local ledgers.
func EncodeAnchorAccount(name string, v interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(AccountDiscriminator(name))
	if err := bin.NewBorshEncoder(buf).Encode(v); err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// EncodeTokenAccount serializes an initialized SPL token account.
func EncodeTokenAccount(mint, owner solana.PublicKey, amount uint64) ([]byte, error) {
	buf := new(bytes.Buffer)
	acc := token.Account{
		Mint:   mint,
		Owner:  owner,
		Amount: amount,
		State:  token.Initialized,
	}
	if err := bin.NewBinEncoder(buf).Encode(acc); err != nil {
		return nil, fmt.Errorf("encode token account: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeMint serializes an initialized SPL mint without authorities.
func EncodeMint(decimals uint8, supply uint64) ([]byte, error) {
	buf := new(bytes.Buffer)
	m := token.Mint{
		Supply:        supply,
		Decimals:      decimals,
		IsInitialized: true,
	}
	if err := bin.NewBinEncoder(buf).Encode(m); err != nil {
		return nil, fmt.Errorf("encode mint: %w", err)
	}
	return buf.Bytes(), nil
}
