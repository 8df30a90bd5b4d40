package programs

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Mainnet deployments used when configuration leaves an ID empty.
const (
	DefaultAutocratProgramID         = "meta3cxKzFBmWYgCVozmvCQAS3y9b3fGxrG9HkHL7Wi"
	DefaultConditionalVaultProgramID = "vaU1tVLj8RFk7mNj1BxqgAsMKKaL8UvEUHvU3tdbZPe"
	DefaultOpenbookProgramID         = "opnb2LAfJYbRMAHHvqjCwQxanZn7ReEHp1k81EohpZb"
	DefaultOpenbookTwapProgramID     = "TWAPrdhADy2aTKN5iFZtNnkQYXERD9NvKjPFVPMSCNN"
)

// ProgramIDs is the set of on-chain programs this client talks to.
type ProgramIDs struct {
	Autocrat         solana.PublicKey
	ConditionalVault solana.PublicKey
	Openbook         solana.PublicKey
	OpenbookTwap     solana.PublicKey
}

// DefaultProgramIDs returns the mainnet program set.
func DefaultProgramIDs() ProgramIDs {
	return ProgramIDs{
		Autocrat:         solana.MustPublicKeyFromBase58(DefaultAutocratProgramID),
		ConditionalVault: solana.MustPublicKeyFromBase58(DefaultConditionalVaultProgramID),
		Openbook:         solana.MustPublicKeyFromBase58(DefaultOpenbookProgramID),
		OpenbookTwap:     solana.MustPublicKeyFromBase58(DefaultOpenbookTwapProgramID),
	}
}

// ParseProgramIDs builds a ProgramIDs from base58 strings; empty strings fall
// back to the mainnet default for that program.
func ParseProgramIDs(autocrat, conditionalVault, openbook, openbookTwap string) (ProgramIDs, error) {
	ids := DefaultProgramIDs()

	for _, f := range []struct {
		name string
		raw  string
		dst  *solana.PublicKey
	}{
		{"autocrat", autocrat, &ids.Autocrat},
		{"conditional vault", conditionalVault, &ids.ConditionalVault},
		{"openbook", openbook, &ids.Openbook},
		{"openbook twap", openbookTwap, &ids.OpenbookTwap},
	} {
		if f.raw == "" {
			continue
		}
		pk, err := solana.PublicKeyFromBase58(f.raw)
		if err != nil {
			return ProgramIDs{}, fmt.Errorf("invalid %s program id %q: %w", f.name, f.raw, err)
		}
		*f.dst = pk
	}

	return ids, nil
}
