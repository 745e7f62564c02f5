package evm

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// HashTypedData computes the EIP-712 digest of typed data
//
// The hash is computed as: keccak256("\x19\x01" + domainSeparator + structHash)
func HashTypedData(
	domain TypedDataDomain,
	types map[string][]TypedDataField,
	primaryType string,
	message map[string]interface{},
) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types:       make(apitypes.Types),
		PrimaryType: primaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              domain.Name,
			Version:           domain.Version,
			ChainId:           (*math.HexOrDecimal256)(domain.ChainID),
			VerifyingContract: domain.VerifyingContract,
		},
		Message: message,
	}

	for typeName, fields := range types {
		typedFields := make([]apitypes.Type, len(fields))
		for i, field := range fields {
			typedFields[i] = apitypes.Type{
				Name: field.Name,
				Type: field.Type,
			}
		}
		typedData.Types[typeName] = typedFields
	}

	if _, exists := typedData.Types["EIP712Domain"]; !exists {
		typedData.Types["EIP712Domain"] = []apitypes.Type{
			{Name: "name", Type: "string"},
			{Name: "version", Type: "string"},
			{Name: "chainId", Type: "uint256"},
			{Name: "verifyingContract", Type: "address"},
		}
	}

	dataHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash struct: %w", err)
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}

	// Create EIP-712 digest: 0x19 0x01 <domainSeparator> <dataHash>
	rawData := []byte{0x19, 0x01}
	rawData = append(rawData, domainSeparator...)
	rawData = append(rawData, dataHash...)
	return crypto.Keccak256(rawData), nil
}

// EIP3009Message converts an authorization into the EIP-712 message map
func EIP3009Message(authorization ExactEIP3009Authorization) (map[string]interface{}, error) {
	value, ok := new(big.Int).SetString(authorization.Value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid authorization value: %s", authorization.Value)
	}
	validAfter, ok := new(big.Int).SetString(authorization.ValidAfter, 10)
	if !ok {
		return nil, fmt.Errorf("invalid validAfter: %s", authorization.ValidAfter)
	}
	validBefore, ok := new(big.Int).SetString(authorization.ValidBefore, 10)
	if !ok {
		return nil, fmt.Errorf("invalid validBefore: %s", authorization.ValidBefore)
	}
	nonceBytes, err := HexToBytes(authorization.Nonce)
	if err != nil {
		return nil, fmt.Errorf("invalid nonce: %w", err)
	}
	if len(nonceBytes) != 32 {
		return nil, fmt.Errorf("invalid nonce length: %d", len(nonceBytes))
	}

	return map[string]interface{}{
		"from":        common.HexToAddress(authorization.From).Hex(),
		"to":          common.HexToAddress(authorization.To).Hex(),
		"value":       value,
		"validAfter":  validAfter,
		"validBefore": validBefore,
		"nonce":       nonceBytes,
	}, nil
}

// EIP3009Domain builds the token's EIP-712 domain
func EIP3009Domain(chainID *big.Int, verifyingContract, tokenName, tokenVersion string) TypedDataDomain {
	return TypedDataDomain{
		Name:              tokenName,
		Version:           tokenVersion,
		ChainID:           chainID,
		VerifyingContract: verifyingContract,
	}
}

// HashEIP3009Authorization hashes a TransferWithAuthorization message for EIP-3009
func HashEIP3009Authorization(
	authorization ExactEIP3009Authorization,
	chainID *big.Int,
	verifyingContract string,
	tokenName string,
	tokenVersion string,
) ([]byte, error) {
	message, err := EIP3009Message(authorization)
	if err != nil {
		return nil, err
	}
	domain := EIP3009Domain(chainID, verifyingContract, tokenName, tokenVersion)
	return HashTypedData(domain, GetEIP3009Types(), PrimaryTypeTransferWithAuthorization, message)
}

// RecoverSigner returns the address that produced signature over digest.
// Both 0/1 and 27/28 recovery ids are accepted.
func RecoverSigner(digest []byte, signature []byte) (common.Address, error) {
	if len(signature) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%s: signature length %d", ErrInvalidSignature, len(signature))
	}
	sig := make([]byte, len(signature))
	copy(sig, signature)
	if sig[64] == 27 || sig[64] == 28 {
		sig[64] -= 27
	}
	pubkey, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%s: %w", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pubkey), nil
}

// VerifyEIP3009Signature checks that signature over authorization was produced by authorization.From
func VerifyEIP3009Signature(
	authorization ExactEIP3009Authorization,
	signature []byte,
	chainID *big.Int,
	verifyingContract string,
	tokenName string,
	tokenVersion string,
) (bool, error) {
	digest, err := HashEIP3009Authorization(authorization, chainID, verifyingContract, tokenName, tokenVersion)
	if err != nil {
		return false, err
	}
	signer, err := RecoverSigner(digest, signature)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(signer.Hex(), common.HexToAddress(authorization.From).Hex()), nil
}
