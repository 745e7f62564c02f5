package http

import (
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	x402 "github.com/x402-foundation/x402-fetch"
	"github.com/x402-foundation/x402-fetch/types"
)

var received = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func encodeJSON(t *testing.T, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(data)
}

func v2Header(t *testing.T, accepts ...string) http.Header {
	t.Helper()
	raw := make([]json.RawMessage, len(accepts))
	for i, a := range accepts {
		raw[i] = json.RawMessage(a)
	}
	h := http.Header{}
	h.Set(HeaderPaymentRequired, encodeJSON(t, types.PaymentRequiredV2{
		X402Version: 2,
		Resource:    &types.ResourceInfoV2{URL: "https://api.example.com/data", Description: "data"},
		Accepts:     raw,
	}))
	return h
}

const v2Accept = `{"scheme":"exact","network":"eip155:84532","asset":"0x036CbD53842c5426634e7929541eC2318f3dCF7e","amount":"500000","payTo":"0x209693Bc6afc0C5328bA36FaF03C514EF312287C","maxTimeoutSeconds":60,"extra":{"name":"USDC","version":"2"}}`

func TestDecodeChallengeIgnoresOtherStatuses(t *testing.T) {
	for _, status := range []int{200, 201, 301, 400, 401, 403, 404, 500} {
		_, err := DecodeChallenge(status, v2Header(t, v2Accept), nil, received)
		assert.ErrorIs(t, err, ErrNotAChallenge, "status %d", status)
	}
}

func TestDecodeChallengeV2Header(t *testing.T) {
	challenge, err := DecodeChallenge(402, v2Header(t, v2Accept), []byte(`{}`), received)
	require.NoError(t, err)
	require.Len(t, challenge.Requirements, 1)

	req := challenge.Requirements[0]
	assert.Equal(t, 2, req.X402Version)
	assert.Equal(t, "exact", req.Scheme)
	assert.Equal(t, x402.Network("eip155:84532"), req.Network)
	assert.Equal(t, "500000", req.Amount.String())
	assert.Equal(t, 60, req.MaxTimeoutSeconds)
	assert.Equal(t, "https://api.example.com/data", req.Resource)
	assert.Equal(t, "USDC", req.Extra["name"])
	assert.Equal(t, received, req.ReceivedAt)
	assert.JSONEq(t, v2Accept, string(req.Raw))
}

func TestDecodeChallengeV1Body(t *testing.T) {
	body := `{"x402Version":1,"error":"X-PAYMENT header is required","accepts":[{"scheme":"exact","network":"base-sepolia","maxAmountRequired":"10000","resource":"https://api.example.com/weather","description":"weather","payTo":"0x209693Bc6afc0C5328bA36FaF03C514EF312287C","maxTimeoutSeconds":300,"asset":"0x036CbD53842c5426634e7929541eC2318f3dCF7e"}]}`

	challenge, err := DecodeChallenge(402, http.Header{}, []byte(body), received)
	require.NoError(t, err)
	assert.Equal(t, 1, challenge.X402Version)
	assert.Equal(t, "X-PAYMENT header is required", challenge.Error)

	req := challenge.Requirements[0]
	assert.Equal(t, x402.Network("base-sepolia"), req.Network)
	assert.Equal(t, "10000", req.Amount.String())
	assert.Equal(t, "https://api.example.com/weather", req.Resource)
}

func TestDecodeChallengeMalformed(t *testing.T) {
	tests := []struct {
		name   string
		header http.Header
		body   string
	}{
		{name: "no header, empty body", header: http.Header{}},
		{name: "no header, text body", header: http.Header{}, body: "Payment Required"},
		{name: "bad base64", header: http.Header{HeaderPaymentRequired: []string{"%%%"}}},
		{name: "header not JSON", header: http.Header{HeaderPaymentRequired: []string{base64.StdEncoding.EncodeToString([]byte("nope"))}}},
		{name: "missing accepts", header: http.Header{}, body: `{"x402Version":1}`},
		{name: "empty accepts", header: http.Header{}, body: `{"x402Version":1,"accepts":[]}`},
		{name: "unknown version in body", header: http.Header{}, body: `{"x402Version":3,"accepts":[{}]}`},
		{name: "v2 document in body", header: http.Header{}, body: `{"x402Version":2,"accepts":[{}]}`},
		{name: "no version in body", header: http.Header{}, body: `{"accepts":[{}]}`},
		{name: "v1 document in header", header: http.Header{HeaderPaymentRequired: []string{base64.StdEncoding.EncodeToString([]byte(`{"x402Version":1,"accepts":[{}]}`))}}},
		{name: "missing amount", header: v2Header(t, `{"scheme":"exact","network":"base","payTo":"0x1"}`)},
		{name: "numeric amount", header: v2Header(t, `{"scheme":"exact","network":"base","amount":100,"payTo":"0x1"}`)},
		{name: "decimal amount", header: v2Header(t, `{"scheme":"exact","network":"base","amount":"1.5","payTo":"0x1"}`)},
		{name: "zero amount", header: v2Header(t, `{"scheme":"exact","network":"base","amount":"0","payTo":"0x1"}`)},
		{name: "negative amount", header: v2Header(t, `{"scheme":"exact","network":"base","amount":"-5","payTo":"0x1"}`)},
		{name: "missing payTo", header: v2Header(t, `{"scheme":"exact","network":"base","amount":"5"}`)},
		{name: "one bad option", header: v2Header(t, v2Accept, `{"scheme":"exact"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeChallenge(402, tt.header, []byte(tt.body), received)
			require.Error(t, err)
			assert.True(t, x402.IsErrorCode(err, x402.ErrCodeMalformedChallenge), "got %v", err)
		})
	}
}

func TestChallengeSelect(t *testing.T) {
	other := `{"scheme":"exact","network":"eip155:8453","amount":"1","payTo":"0x209693Bc6afc0C5328bA36FaF03C514EF312287C"}`
	upto := `{"scheme":"upto","network":"eip155:84532","amount":"2","payTo":"0x209693Bc6afc0C5328bA36FaF03C514EF312287C"}`

	challenge, err := DecodeChallenge(402, v2Header(t, other, upto, v2Accept), nil, received)
	require.NoError(t, err)

	onSepolia := func(n x402.Network) bool { return n == "eip155:84532" }
	assert.Equal(t, "500000", challenge.Select("exact", onSepolia).Amount.String())

	nowhere := func(x402.Network) bool { return false }
	assert.Equal(t, "1", challenge.Select("exact", nowhere).Amount.String())

	// no option in the scheme falls back to the first one
	assert.Equal(t, "1", challenge.Select("permit2", onSepolia).Amount.String())

	uptoOnly, err := DecodeChallenge(402, v2Header(t, upto), nil, received)
	require.NoError(t, err)
	assert.Equal(t, "upto", uptoOnly.Select("exact", onSepolia).Scheme)
}

func testAuthorization(version int) *x402.PaymentAuthorization {
	return &x402.PaymentAuthorization{
		Requirement: x402.PaymentRequirement{
			X402Version: version,
			Scheme:      "exact",
			Network:     "eip155:84532",
			Resource:    "https://api.example.com/data",
			Raw:         json.RawMessage(v2Accept),
		},
		From:   "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		Amount: big.NewInt(500000),
		Payload: map[string]interface{}{
			"signature":     "0xdead",
			"authorization": map[string]interface{}{"value": "500000"},
		},
	}
}

func TestEncodeEnvelopeV2(t *testing.T) {
	envelope, err := EncodeEnvelope(testAuthorization(2))
	require.NoError(t, err)
	assert.Equal(t, HeaderPaymentSignature, envelope.Header)

	data, err := base64.StdEncoding.DecodeString(envelope.Value)
	require.NoError(t, err)
	var payload types.PaymentPayloadV2
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, 2, payload.X402Version)
	assert.JSONEq(t, v2Accept, string(payload.Accepted))
	assert.Equal(t, "0xdead", payload.Payload["signature"])
	require.NotNil(t, payload.Resource)
	assert.Equal(t, "https://api.example.com/data", payload.Resource.URL)
}

func TestEncodeEnvelopeV1(t *testing.T) {
	envelope, err := EncodeEnvelope(testAuthorization(1))
	require.NoError(t, err)
	assert.Equal(t, HeaderPayment, envelope.Header)

	data, err := base64.StdEncoding.DecodeString(envelope.Value)
	require.NoError(t, err)
	var payload types.PaymentPayloadV1
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, 1, payload.X402Version)
	assert.Equal(t, "exact", payload.Scheme)
	assert.Equal(t, "eip155:84532", payload.Network)
}

func TestEncodeEnvelopeIsDeterministic(t *testing.T) {
	a, err := EncodeEnvelope(testAuthorization(2))
	require.NoError(t, err)
	b, err := EncodeEnvelope(testAuthorization(2))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEncodeEnvelopeRejectsEmpty(t *testing.T) {
	_, err := EncodeEnvelope(nil)
	assert.Error(t, err)

	auth := testAuthorization(7)
	_, err = EncodeEnvelope(auth)
	assert.Error(t, err)
}

func TestDecodeSettlementAbsent(t *testing.T) {
	receipt, err := DecodeSettlement(http.Header{}, nil)
	assert.NoError(t, err)
	assert.Nil(t, receipt)
}

func TestDecodeSettlementPrimaryHeader(t *testing.T) {
	h := http.Header{}
	h.Set(HeaderPaymentResponse, encodeJSON(t, map[string]interface{}{
		"txHash": "0xabc", "amount": "500000", "settled": true, "network": "base-sepolia",
	}))

	receipt, err := DecodeSettlement(h, nil)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", receipt.TxHash)
	assert.Equal(t, "500000", receipt.Amount.String())
	assert.True(t, receipt.Settled)
	assert.Equal(t, x402.Network("base-sepolia"), receipt.Network)
}

func TestDecodeSettlementFallbackHeader(t *testing.T) {
	h := http.Header{}
	h.Set(HeaderPaymentResponseLegacy, encodeJSON(t, map[string]interface{}{
		"transaction": "0xdef", "success": true,
	}))

	auth := testAuthorization(1)
	receipt, err := DecodeSettlement(h, auth)
	require.NoError(t, err)
	assert.Equal(t, "0xdef", receipt.TxHash)
	assert.True(t, receipt.Settled)
	assert.Equal(t, "500000", receipt.Amount.String(), "amount falls back to the authorization")
	assert.Equal(t, x402.Network("eip155:84532"), receipt.Network)
	assert.Equal(t, auth.From, receipt.Payer)
}

func TestDecodeSettlementPrimaryWinsWithoutMerging(t *testing.T) {
	h := http.Header{}
	h.Set(HeaderPaymentResponse, encodeJSON(t, map[string]interface{}{"amount": "1"}))
	h.Set(HeaderPaymentResponseLegacy, encodeJSON(t, map[string]interface{}{"amount": "2", "txHash": "0xlegacy", "settled": true}))

	receipt, err := DecodeSettlement(h, nil)
	require.NoError(t, err)
	assert.Equal(t, "1", receipt.Amount.String())
	assert.Empty(t, receipt.TxHash)
	assert.False(t, receipt.Settled)
}

func TestDecodeSettlementMalformedPrimaryDoesNotFallBack(t *testing.T) {
	h := http.Header{}
	h.Set(HeaderPaymentResponse, "%%%")
	h.Set(HeaderPaymentResponseLegacy, encodeJSON(t, map[string]interface{}{"amount": "2"}))

	_, err := DecodeSettlement(h, nil)
	require.Error(t, err)
	assert.True(t, x402.IsErrorCode(err, x402.ErrCodeMalformedSettlement))
}

func TestDecodeSettlementMalformed(t *testing.T) {
	for name, value := range map[string]string{
		"not base64":     "%%%",
		"not JSON":       base64.StdEncoding.EncodeToString([]byte("settled")),
		"array":          base64.StdEncoding.EncodeToString([]byte(`[1]`)),
		"numeric amount": base64.StdEncoding.EncodeToString([]byte(`{"amount":5}`)),
		"string settled": base64.StdEncoding.EncodeToString([]byte(`{"settled":"yes"}`)),
	} {
		t.Run(name, func(t *testing.T) {
			h := http.Header{}
			h.Set(HeaderPaymentResponse, value)
			_, err := DecodeSettlement(h, nil)
			require.Error(t, err)
			assert.True(t, x402.IsErrorCode(err, x402.ErrCodeMalformedSettlement))
		})
	}
}

func TestDecodeSettlementAcceptsUnpaddedBase64(t *testing.T) {
	h := http.Header{}
	h.Set(HeaderPaymentResponse, base64.RawURLEncoding.EncodeToString([]byte(`{"amount":"7","settled":true}`)))

	receipt, err := DecodeSettlement(h, nil)
	require.NoError(t, err)
	assert.Equal(t, "7", receipt.Amount.String())
}
