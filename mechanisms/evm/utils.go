package evm

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	x402 "github.com/x402-foundation/x402-fetch"
)

// CreateNonce generates a random 32-byte nonce as a 0x-prefixed hex string
func CreateNonce() (string, error) {
	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return BytesToHex(nonce), nil
}

// BytesToHex encodes bytes as a 0x-prefixed hex string
func BytesToHex(data []byte) string {
	return "0x" + hex.EncodeToString(data)
}

// HexToBytes decodes a hex string with or without 0x prefix
func HexToBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	return hex.DecodeString(s)
}

// IsValidAddress reports whether s is a 20-byte hex address
func IsValidAddress(s string) bool {
	return common.IsHexAddress(s)
}

// CanonicalNetwork maps a legacy alias ("base-sepolia") to its CAIP-2 id.
// Unknown networks are returned unchanged.
func CanonicalNetwork(network x402.Network) x402.Network {
	if _, ok := NetworkConfigs[string(network)]; ok {
		return network
	}
	for caip, config := range NetworkConfigs {
		if config.Alias == string(network) {
			return x402.Network(caip)
		}
	}
	return network
}

// IsValidNetwork checks if the network is supported
func IsValidNetwork(network string) bool {
	_, ok := NetworkConfigs[string(CanonicalNetwork(x402.Network(network)))]
	return ok
}

// GetNetworkConfig returns the configuration for a network given by CAIP-2 id or alias
func GetNetworkConfig(network string) (NetworkConfig, error) {
	if namespace, _, err := x402.Network(network).Parse(); err == nil && namespace != "eip155" {
		return NetworkConfig{}, fmt.Errorf("%s: %s is not an EVM network", ErrUnsupportedNetwork, network)
	}
	config, ok := NetworkConfigs[string(CanonicalNetwork(x402.Network(network)))]
	if !ok {
		return NetworkConfig{}, fmt.Errorf("%s: %s", ErrUnsupportedNetwork, network)
	}
	return config, nil
}

// GetAssetInfo returns information about an asset on a network.
// An empty asset or the default asset address yields the network's default asset;
// any other address is treated as an EIP-3009 token with default decimals.
func GetAssetInfo(network string, assetAddress string) (AssetInfo, error) {
	config, err := GetNetworkConfig(network)
	if err != nil {
		return AssetInfo{}, err
	}
	if assetAddress == "" || strings.EqualFold(assetAddress, config.DefaultAsset.Address) {
		return config.DefaultAsset, nil
	}
	if !IsValidAddress(assetAddress) {
		return AssetInfo{}, fmt.Errorf("invalid asset address: %s", assetAddress)
	}
	return AssetInfo{
		Address:  common.HexToAddress(assetAddress).Hex(),
		Decimals: DefaultDecimals,
	}, nil
}

// CreateValidityWindow returns (validAfter, validBefore) around now.
// validAfter is backdated by ValidAfterSkew.
func CreateValidityWindow(now time.Time, duration time.Duration) (*big.Int, *big.Int) {
	validAfter := big.NewInt(now.Unix() - ValidAfterSkew)
	validBefore := big.NewInt(now.Add(duration).Unix())
	return validAfter, validBefore
}
