package evm

import (
	"context"
	"math/big"
	"time"

	x402 "github.com/x402-foundation/x402-fetch"
)

// ExactEvmScheme signs EIP-3009 authorizations for the exact scheme.
// It implements x402.Authorizer.
type ExactEvmScheme struct {
	signer ClientEvmSigner
	now    func() time.Time
}

// SchemeOption configures an ExactEvmScheme
type SchemeOption func(*ExactEvmScheme)

// WithClock overrides the time source used for validity windows
func WithClock(now func() time.Time) SchemeOption {
	return func(s *ExactEvmScheme) {
		s.now = now
	}
}

// NewExactEvmScheme creates a new ExactEvmScheme
func NewExactEvmScheme(signer ClientEvmSigner, opts ...SchemeOption) *ExactEvmScheme {
	s := &ExactEvmScheme{
		signer: signer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scheme returns the scheme identifier
func (s *ExactEvmScheme) Scheme() string {
	return SchemeExact
}

// Address returns the paying wallet address
func (s *ExactEvmScheme) Address() string {
	return s.signer.Address()
}

// Authorize signs a TransferWithAuthorization for exactly amount to requirement.PayTo.
// The signature is recovered before returning; a signer that does not own its
// reported address fails here rather than at the server.
func (s *ExactEvmScheme) Authorize(
	ctx context.Context,
	requirement x402.PaymentRequirement,
	amount *big.Int,
) (*x402.PaymentAuthorization, error) {
	if decision, rejected := x402.RejectScheme(requirement, s.Scheme()); rejected {
		return nil, decision.Err()
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, x402.NewPaymentError(x402.ErrCodeSigningFailure, "amount must be positive", nil)
	}
	if !IsValidAddress(requirement.PayTo) {
		return nil, x402.NewPaymentError(x402.ErrCodeSigningFailure, "invalid payTo address", map[string]interface{}{
			"payTo": requirement.PayTo,
		})
	}

	network := string(requirement.Network)
	config, err := GetNetworkConfig(network)
	if err != nil {
		return nil, x402.WrapPaymentError(x402.ErrCodeSigningFailure, "unsupported network", err)
	}
	assetInfo, err := GetAssetInfo(network, requirement.Asset)
	if err != nil {
		return nil, x402.WrapPaymentError(x402.ErrCodeSigningFailure, "unsupported asset", err)
	}

	tokenName := assetInfo.Name
	tokenVersion := assetInfo.Version
	if name, ok := requirement.Extra["name"].(string); ok && name != "" {
		tokenName = name
	}
	if version, ok := requirement.Extra["version"].(string); ok && version != "" {
		tokenVersion = version
	}
	if tokenName == "" || tokenVersion == "" {
		return nil, x402.NewPaymentError(x402.ErrCodeSigningFailure, "missing EIP-712 domain name or version for asset", map[string]interface{}{
			"asset": assetInfo.Address,
		})
	}

	nonce, err := CreateNonce()
	if err != nil {
		return nil, x402.WrapPaymentError(x402.ErrCodeSigningFailure, "nonce generation failed", err)
	}

	timeout := time.Duration(requirement.MaxTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = DefaultValidityPeriod * time.Second
	}
	validAfter, validBefore := CreateValidityWindow(s.now(), timeout)

	authorization := ExactEIP3009Authorization{
		From:        s.signer.Address(),
		To:          requirement.PayTo,
		Value:       amount.String(),
		ValidAfter:  validAfter.String(),
		ValidBefore: validBefore.String(),
		Nonce:       nonce,
	}

	message, err := EIP3009Message(authorization)
	if err != nil {
		return nil, x402.WrapPaymentError(x402.ErrCodeSigningFailure, "invalid authorization", err)
	}
	domain := EIP3009Domain(config.ChainID, assetInfo.Address, tokenName, tokenVersion)
	signature, err := s.signer.SignTypedData(ctx, domain, GetEIP3009Types(), PrimaryTypeTransferWithAuthorization, message)
	if err != nil {
		return nil, x402.WrapPaymentError(x402.ErrCodeSigningFailure, "failed to sign authorization", err)
	}

	valid, err := VerifyEIP3009Signature(authorization, signature, config.ChainID, assetInfo.Address, tokenName, tokenVersion)
	if err != nil {
		return nil, x402.WrapPaymentError(x402.ErrCodeSigningFailure, "signature does not recover", err)
	}
	if !valid {
		return nil, x402.NewPaymentError(x402.ErrCodeSigningFailure, "signature does not match signer address", map[string]interface{}{
			"address": s.signer.Address(),
		})
	}

	payload := &ExactEIP3009Payload{
		Signature:     BytesToHex(signature),
		Authorization: authorization,
	}

	symbol := assetInfo.Symbol
	if symbol == "" {
		symbol = assetInfo.Address
	}

	return &x402.PaymentAuthorization{
		Requirement: requirement,
		Asset: x402.Asset{
			Address:  assetInfo.Address,
			Symbol:   symbol,
			Decimals: assetInfo.Decimals,
		},
		From:        authorization.From,
		To:          authorization.To,
		Amount:      new(big.Int).Set(amount),
		ValidAfter:  validAfter.Int64(),
		ValidBefore: validBefore.Int64(),
		Nonce:       nonce,
		Signature:   payload.Signature,
		Payload:     payload.ToMap(),
	}, nil
}
