package evm

import (
	"context"
	"math/big"
)

// ExactEIP3009Authorization represents the EIP-3009 TransferWithAuthorization data
type ExactEIP3009Authorization struct {
	From        string `json:"from"`        // Ethereum address (hex)
	To          string `json:"to"`          // Ethereum address (hex)
	Value       string `json:"value"`       // Amount in smallest unit as string
	ValidAfter  string `json:"validAfter"`  // Unix timestamp as string
	ValidBefore string `json:"validBefore"` // Unix timestamp as string
	Nonce       string `json:"nonce"`       // 32-byte nonce as hex string
}

// ExactEIP3009Payload represents the exact payment payload for EVM networks
type ExactEIP3009Payload struct {
	Signature     string                    `json:"signature,omitempty"`
	Authorization ExactEIP3009Authorization `json:"authorization"`
}

// ToMap converts the payload to the map placed in the payment envelope
func (p *ExactEIP3009Payload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"signature": p.Signature,
		"authorization": map[string]interface{}{
			"from":        p.Authorization.From,
			"to":          p.Authorization.To,
			"value":       p.Authorization.Value,
			"validAfter":  p.Authorization.ValidAfter,
			"validBefore": p.Authorization.ValidBefore,
			"nonce":       p.Authorization.Nonce,
		},
	}
}

// PayloadFromMap reads an ExactEIP3009Payload back from its map form
func PayloadFromMap(data map[string]interface{}) (*ExactEIP3009Payload, bool) {
	auth, ok := data["authorization"].(map[string]interface{})
	if !ok {
		return nil, false
	}
	str := func(m map[string]interface{}, key string) string {
		v, _ := m[key].(string)
		return v
	}
	return &ExactEIP3009Payload{
		Signature: str(data, "signature"),
		Authorization: ExactEIP3009Authorization{
			From:        str(auth, "from"),
			To:          str(auth, "to"),
			Value:       str(auth, "value"),
			ValidAfter:  str(auth, "validAfter"),
			ValidBefore: str(auth, "validBefore"),
			Nonce:       str(auth, "nonce"),
		},
	}, true
}

// ClientEvmSigner defines the interface for client-side EVM signing operations
type ClientEvmSigner interface {
	// Address returns the signer's Ethereum address
	Address() string

	// SignTypedData signs EIP-712 typed data
	SignTypedData(ctx context.Context, domain TypedDataDomain, types map[string][]TypedDataField, primaryType string, message map[string]interface{}) ([]byte, error)
}

// TypedDataDomain represents the EIP-712 domain separator
type TypedDataDomain struct {
	Name              string   `json:"name"`
	Version           string   `json:"version"`
	ChainID           *big.Int `json:"chainId"`
	VerifyingContract string   `json:"verifyingContract"`
}

// TypedDataField represents a field in EIP-712 typed data
type TypedDataField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// NetworkConfig holds network-specific configuration
type NetworkConfig struct {
	ChainID      *big.Int
	Name         string
	Alias        string
	DefaultAsset AssetInfo
}

// AssetInfo contains information about a token asset
type AssetInfo struct {
	Address  string
	Name     string
	Version  string
	Decimals int
	Symbol   string
}
