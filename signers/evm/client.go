package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	x402evm "github.com/x402-foundation/x402-fetch/mechanisms/evm"
)

// ClientSigner implements x402evm.ClientEvmSigner using an ECDSA private key.
// The key is read-only after construction, so a single signer may be shared by
// concurrent calls without locking.
type ClientSigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewClientSignerFromPrivateKey creates a client signer from a hex-encoded private key.
//
// Args:
//
//	privateKeyHex: Hex-encoded private key (with or without "0x" prefix)
//
// Returns:
//
//	ClientSigner ready for use with x402evm.NewExactEvmScheme()
//	Error if private key is invalid
//
// Example:
//
//	signer, err := evm.NewClientSignerFromPrivateKey(os.Getenv("EVM_PRIVATE_KEY"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	authorizer := x402evm.NewExactEvmScheme(signer)
func NewClientSignerFromPrivateKey(privateKeyHex string) (*ClientSigner, error) {
	privateKeyHex = strings.TrimSpace(privateKeyHex)
	privateKeyHex = strings.TrimPrefix(strings.TrimPrefix(privateKeyHex, "0x"), "0X")

	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		// the key itself never goes into the error
		return nil, fmt.Errorf("invalid private key: expected 32 bytes of hex")
	}

	return NewClientSigner(privateKey), nil
}

// NewClientSigner wraps an already parsed private key
func NewClientSigner(privateKey *ecdsa.PrivateKey) *ClientSigner {
	return &ClientSigner{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
	}
}

// Address returns the checksummed Ethereum address of the signer.
func (s *ClientSigner) Address() string {
	return s.address.Hex()
}

// SignTypedData signs EIP-712 typed data.
//
// Returns the 65-byte signature (r, s, v) with v in {27, 28}.
func (s *ClientSigner) SignTypedData(
	ctx context.Context,
	domain x402evm.TypedDataDomain,
	types map[string][]x402evm.TypedDataField,
	primaryType string,
	message map[string]interface{},
) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	digest, err := x402evm.HashTypedData(domain, types, primaryType, message)
	if err != nil {
		return nil, err
	}

	signature, err := crypto.Sign(digest, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}

	// Adjust v value for Ethereum (recovery ID 0/1 to 27/28)
	signature[64] += 27

	return signature, nil
}
