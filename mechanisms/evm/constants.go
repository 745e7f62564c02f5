package evm

import (
	"math/big"
)

const (
	// Scheme identifier
	SchemeExact = "exact"

	// Default token decimals for USDC
	DefaultDecimals = 6

	// DefaultSymbol is the display symbol of the default asset on every supported network
	DefaultSymbol = "USDC"

	// Default validity period when the server does not set maxTimeoutSeconds (10 minutes)
	DefaultValidityPeriod = 600 // seconds

	// ValidAfterSkew backdates validAfter to absorb clock drift between client and chain
	ValidAfterSkew = 600 // seconds

	// Primary type signed for EIP-3009
	PrimaryTypeTransferWithAuthorization = "TransferWithAuthorization"

	// Error codes matching the facilitator vocabulary
	ErrInvalidSignature   = "invalid_exact_evm_payload_signature"
	ErrUnsupportedNetwork = "unsupported_network"
)

var (
	// Network chain IDs
	ChainIDBase        = big.NewInt(8453)
	ChainIDBaseSepolia = big.NewInt(84532)

	baseUSDC = AssetInfo{
		Address:  "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		Name:     "USD Coin",
		Version:  "2",
		Decimals: DefaultDecimals,
		Symbol:   DefaultSymbol,
	}

	baseSepoliaUSDC = AssetInfo{
		Address:  "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		Name:     "USDC",
		Version:  "2",
		Decimals: DefaultDecimals,
		Symbol:   DefaultSymbol,
	}

	// NetworkConfigs lists supported networks keyed by CAIP-2 id
	NetworkConfigs = map[string]NetworkConfig{
		"eip155:8453": {
			ChainID:      ChainIDBase,
			Name:         "Base",
			Alias:        "base",
			DefaultAsset: baseUSDC,
		},
		"eip155:84532": {
			ChainID:      ChainIDBaseSepolia,
			Name:         "Base Sepolia",
			Alias:        "base-sepolia",
			DefaultAsset: baseSepoliaUSDC,
		},
	}

	// EIP712DomainTypes is the domain type used by EIP-3009 tokens
	EIP712DomainTypes = []TypedDataField{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	}

	// TransferWithAuthorizationTypes is the EIP-3009 message type
	TransferWithAuthorizationTypes = []TypedDataField{
		{Name: "from", Type: "address"},
		{Name: "to", Type: "address"},
		{Name: "value", Type: "uint256"},
		{Name: "validAfter", Type: "uint256"},
		{Name: "validBefore", Type: "uint256"},
		{Name: "nonce", Type: "bytes32"},
	}
)

// GetEIP3009Types returns the complete EIP-712 types map for TransferWithAuthorization
func GetEIP3009Types() map[string][]TypedDataField {
	return map[string][]TypedDataField{
		"EIP712Domain":                       EIP712DomainTypes,
		PrimaryTypeTransferWithAuthorization: TransferWithAuthorizationTypes,
	}
}
