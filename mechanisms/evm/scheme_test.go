package evm_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	x402 "github.com/x402-foundation/x402-fetch"
	"github.com/x402-foundation/x402-fetch/mechanisms/evm"
	evmsigners "github.com/x402-foundation/x402-fetch/signers/evm"
)

const (
	testPrivateKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	otherKey       = "0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
	payTo          = "0x209693Bc6afc0C5328bA36FaF03C514EF312287C"
)

func newScheme(t *testing.T, opts ...evm.SchemeOption) *evm.ExactEvmScheme {
	t.Helper()
	signer, err := evmsigners.NewClientSignerFromPrivateKey(testPrivateKey)
	require.NoError(t, err)
	return evm.NewExactEvmScheme(signer, opts...)
}

func requirement() x402.PaymentRequirement {
	return x402.PaymentRequirement{
		X402Version:       2,
		Scheme:            evm.SchemeExact,
		Network:           "eip155:84532",
		Asset:             "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		PayTo:             payTo,
		Amount:            big.NewInt(500000),
		MaxTimeoutSeconds: 300,
		Extra:             map[string]interface{}{"name": "USDC", "version": "2"},
	}
}

func TestAuthorizeProducesVerifiableSignature(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	scheme := newScheme(t, evm.WithClock(func() time.Time { return now }))

	auth, err := scheme.Authorize(context.Background(), requirement(), big.NewInt(500000))
	require.NoError(t, err)

	assert.Equal(t, scheme.Address(), auth.From)
	assert.Equal(t, payTo, auth.To)
	assert.Equal(t, "500000", auth.Amount.String())
	assert.Equal(t, now.Unix()-evm.ValidAfterSkew, auth.ValidAfter)
	assert.Equal(t, now.Unix()+300, auth.ValidBefore)
	assert.Equal(t, "USDC", auth.Asset.Symbol)
	assert.Equal(t, 6, auth.Asset.Decimals)

	payload, ok := evm.PayloadFromMap(auth.Payload)
	require.True(t, ok)
	sig, err := evm.HexToBytes(payload.Signature)
	require.NoError(t, err)

	valid, err := evm.VerifyEIP3009Signature(payload.Authorization, sig, evm.ChainIDBaseSepolia,
		"0x036CbD53842c5426634e7929541eC2318f3dCF7e", "USDC", "2")
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestAuthorizeUsesFreshNonces(t *testing.T) {
	scheme := newScheme(t)
	a, err := scheme.Authorize(context.Background(), requirement(), big.NewInt(500000))
	require.NoError(t, err)
	b, err := scheme.Authorize(context.Background(), requirement(), big.NewInt(500000))
	require.NoError(t, err)

	assert.NotEqual(t, a.Nonce, b.Nonce)
	assert.NotEqual(t, a.Signature, b.Signature)
}

func TestAuthorizeDefaultsValidityAndDomain(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	scheme := newScheme(t, evm.WithClock(func() time.Time { return now }))

	req := requirement()
	req.Network = "base"
	req.Asset = ""
	req.Extra = nil
	req.MaxTimeoutSeconds = 0

	auth, err := scheme.Authorize(context.Background(), req, big.NewInt(10))
	require.NoError(t, err)
	assert.Equal(t, now.Unix()+evm.DefaultValidityPeriod, auth.ValidBefore)
	assert.Equal(t, "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", auth.Asset.Address)

	payload, ok := evm.PayloadFromMap(auth.Payload)
	require.True(t, ok)
	sig, err := evm.HexToBytes(payload.Signature)
	require.NoError(t, err)
	valid, err := evm.VerifyEIP3009Signature(payload.Authorization, sig, evm.ChainIDBase,
		"0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", "USD Coin", "2")
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestAuthorizeFailures(t *testing.T) {
	scheme := newScheme(t)

	tests := []struct {
		name   string
		mutate func(*x402.PaymentRequirement)
		amount *big.Int
	}{
		{name: "zero amount", amount: big.NewInt(0)},
		{name: "nil amount"},
		{name: "unknown network", mutate: func(r *x402.PaymentRequirement) { r.Network = "solana" }, amount: big.NewInt(1)},
		{name: "bad payTo", mutate: func(r *x402.PaymentRequirement) { r.PayTo = "nobody" }, amount: big.NewInt(1)},
		{name: "custom asset without domain", mutate: func(r *x402.PaymentRequirement) {
			r.Asset = "0x1111111111111111111111111111111111111111"
			r.Extra = nil
		}, amount: big.NewInt(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := requirement()
			if tt.mutate != nil {
				tt.mutate(&req)
			}
			_, err := scheme.Authorize(context.Background(), req, tt.amount)
			require.Error(t, err)
			assert.True(t, x402.IsErrorCode(err, x402.ErrCodeSigningFailure), "got %v", err)
		})
	}
}

// lyingSigner reports one address but signs with another key
type lyingSigner struct {
	evm.ClientEvmSigner
	address string
}

func (s lyingSigner) Address() string { return s.address }

func TestAuthorizeRejectsSignatureFromWrongKey(t *testing.T) {
	inner, err := evmsigners.NewClientSignerFromPrivateKey(otherKey)
	require.NoError(t, err)
	scheme := evm.NewExactEvmScheme(lyingSigner{ClientEvmSigner: inner, address: "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"})

	_, err = scheme.Authorize(context.Background(), requirement(), big.NewInt(1))
	require.Error(t, err)
	assert.True(t, x402.IsErrorCode(err, x402.ErrCodeSigningFailure))
}

type failingSigner struct {
	evm.ClientEvmSigner
}

func (failingSigner) SignTypedData(context.Context, evm.TypedDataDomain, map[string][]evm.TypedDataField, string, map[string]interface{}) ([]byte, error) {
	return nil, errors.New("hsm unavailable")
}

func TestAuthorizeWrapsSignerError(t *testing.T) {
	inner, err := evmsigners.NewClientSignerFromPrivateKey(testPrivateKey)
	require.NoError(t, err)
	scheme := evm.NewExactEvmScheme(failingSigner{ClientEvmSigner: inner})

	_, err = scheme.Authorize(context.Background(), requirement(), big.NewInt(1))
	require.Error(t, err)
	assert.True(t, x402.IsErrorCode(err, x402.ErrCodeSigningFailure))
	assert.Contains(t, err.Error(), "hsm unavailable")
}

func TestAuthorizeRefusesOtherSchemes(t *testing.T) {
	inner, err := evmsigners.NewClientSignerFromPrivateKey(testPrivateKey)
	require.NoError(t, err)
	scheme := evm.NewExactEvmScheme(failingSigner{ClientEvmSigner: inner})
	assert.Equal(t, evm.SchemeExact, scheme.Scheme())

	for _, name := range []string{"upto", "permit2", ""} {
		req := requirement()
		req.Scheme = name

		// the failing signer would surface a SigningFailure if it were reached
		_, err := scheme.Authorize(context.Background(), req, big.NewInt(1))
		require.Error(t, err, name)
		reason, ok := x402.DeclineReasonOf(err)
		require.True(t, ok, "%q: %v", name, err)
		assert.Equal(t, x402.DeclineSchemeMismatch, reason)
	}
}
