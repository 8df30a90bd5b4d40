package server

import (
	"github.com/metaproph3t/futarchy-ui/internal/proposals"
	"github.com/metaproph3t/futarchy-ui/internal/vault"
)

// ErrorResponse represents a standardized error response format
type ErrorResponse struct {
	Error   string `json:"error"`             // Human-readable error message
	Code    int    `json:"code"`              // HTTP status code
	Details any    `json:"details,omitempty"` // Additional error details (dev mode only)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	OK       bool   `json:"ok"`
	Wallet   string `json:"wallet,omitempty"` // Signing wallet, empty when read-only
	Cache    bool   `json:"cache"`
	Activity bool   `json:"activity"`
}

// ProposalsResponse lists proposals newest first
type ProposalsResponse struct {
	Items []*proposals.Proposal `json:"items"`
}

// VaultResponse is a vault view plus where it came from
type VaultResponse struct {
	*vault.VaultView
	Symbol string `json:"symbol"`
	Cached bool   `json:"cached"`
}

// DepositRequest deposits an underlying token into a conditional vault
type DepositRequest struct {
	Vault  string `json:"vault"`
	Amount string `json:"amount"`
	Symbol string `json:"symbol"`
	Wallet string `json:"wallet,omitempty"` // Optional, defaults to the signing wallet
}

// SwapRequest is the body of both swap simulation and execution
type SwapRequest struct {
	Proposal string `json:"proposal"`
	Branch   string `json:"branch"`
	TokenIn  string `json:"token_in"`
	TokenOut string `json:"token_out"`
	Amount   string `json:"amount"`
	Wallet   string `json:"wallet,omitempty"` // Optional, defaults to the signing wallet
}
