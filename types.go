package x402

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// Protocol versions understood by the client
const (
	ProtocolVersionV1 = 1
	ProtocolVersion   = 2
)

// Network represents a blockchain network identifier.
// Both the legacy names ("base-sepolia") and CAIP-2 ids ("eip155:84532") are accepted.
type Network string

// Parse splits a CAIP-2 network into namespace and reference components
func (n Network) Parse() (namespace, reference string, err error) {
	parts := strings.Split(string(n), ":")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid network format: %s", n)
	}
	return parts[0], parts[1], nil
}

// DefaultSpendCeiling is 1 unit of a 6-decimal asset (1 USDC)
var DefaultSpendCeiling = NewSpendCeiling(big.NewInt(1_000_000))

// SpendCeiling is the maximum amount, in the asset's smallest unit, that the client
// authorizes for a single challenge. It applies per request, not per session.
type SpendCeiling struct {
	amount *big.Int
}

// NewSpendCeiling creates a ceiling. The value is copied.
func NewSpendCeiling(amount *big.Int) SpendCeiling {
	if amount == nil {
		return SpendCeiling{amount: new(big.Int)}
	}
	return SpendCeiling{amount: new(big.Int).Set(amount)}
}

// Amount returns a copy of the ceiling value
func (c SpendCeiling) Amount() *big.Int {
	if c.amount == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(c.amount)
}

// Allows reports whether amount fits under the ceiling
func (c SpendCeiling) Allows(amount *big.Int) bool {
	return amount != nil && amount.Cmp(c.Amount()) <= 0
}

func (c SpendCeiling) String() string {
	return c.Amount().String()
}

// Asset describes the token a payment is denominated in
type Asset struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// PaymentRequirement is one set of payment terms parsed from a 402 challenge.
// It is immutable once parsed and lives for a single request attempt.
type PaymentRequirement struct {
	X402Version       int
	Scheme            string
	Network           Network
	Asset             string
	PayTo             string
	Amount            *big.Int
	MaxTimeoutSeconds int
	Resource          string
	Description       string
	Extra             map[string]interface{}

	// ReceivedAt is when the challenge carrying this requirement arrived
	ReceivedAt time.Time

	// Raw is the requirement exactly as the server sent it. v2 envelopes echo it back.
	Raw json.RawMessage
}

// ValidUntil returns the end of the requirement's validity window.
// The zero time means the server did not bound it.
func (r PaymentRequirement) ValidUntil() time.Time {
	if r.MaxTimeoutSeconds <= 0 || r.ReceivedAt.IsZero() {
		return time.Time{}
	}
	return r.ReceivedAt.Add(time.Duration(r.MaxTimeoutSeconds) * time.Second)
}

// Expired reports whether the validity window closed before now
func (r PaymentRequirement) Expired(now time.Time) bool {
	until := r.ValidUntil()
	return !until.IsZero() && now.After(until)
}

// PaymentAuthorization is a signed value transfer produced by the signing identity
// for exactly one requirement. Its signature binds (recipient, amount, nonce, validity);
// it must never be reused for another requirement.
type PaymentAuthorization struct {
	Requirement PaymentRequirement
	Asset       Asset

	From        string
	To          string
	Amount      *big.Int
	ValidAfter  int64
	ValidBefore int64
	Nonce       string
	Signature   string

	// Payload is the scheme-specific body placed in the envelope
	Payload map[string]interface{}
}

// PaymentEnvelope is the transport encoding of a PaymentAuthorization:
// an opaque value carried in a request header.
type PaymentEnvelope struct {
	Header string
	Value  string
}

// SettlementReceipt is the settlement acknowledgment returned by the server
// after it accepted a payment.
type SettlementReceipt struct {
	// TxHash is empty when the server did not report a transaction
	TxHash  string   `json:"txHash,omitempty"`
	Amount  *big.Int `json:"amount"`
	Settled bool     `json:"settled"`
	Network Network  `json:"network"`
	Payer   string   `json:"payer,omitempty"`
}
