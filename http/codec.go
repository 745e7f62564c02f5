package http

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	x402 "github.com/x402-foundation/x402-fetch"
	"github.com/x402-foundation/x402-fetch/types"
)

// Header names of the x402 HTTP transport
const (
	HeaderPaymentRequired       = "PAYMENT-REQUIRED"
	HeaderPaymentSignature      = "PAYMENT-SIGNATURE"
	HeaderPayment               = "X-PAYMENT"
	HeaderPaymentResponse       = "PAYMENT-RESPONSE"
	HeaderPaymentResponseLegacy = "X-PAYMENT-RESPONSE"
)

// SettlementHeaders lists the settlement header names in lookup order.
// The first present header is decoded; later names are never consulted.
var SettlementHeaders = []string{HeaderPaymentResponse, HeaderPaymentResponseLegacy}

// ErrNotAChallenge is returned by DecodeChallenge for any status other than 402
var ErrNotAChallenge = errors.New("not a payment challenge")

// Challenge is a decoded 402 response
type Challenge struct {
	X402Version  int
	Error        string
	Requirements []x402.PaymentRequirement
}

// Select picks the requirement to pay: the first option in scheme on a network the
// matcher accepts, then the first option in scheme, then the first option at all,
// so the caller can report why it declines.
func (c *Challenge) Select(scheme string, matches func(x402.Network) bool) x402.PaymentRequirement {
	for _, requirement := range c.Requirements {
		if requirement.Scheme == scheme && matches(requirement.Network) {
			return requirement
		}
	}
	for _, requirement := range c.Requirements {
		if requirement.Scheme == scheme {
			return requirement
		}
	}
	return c.Requirements[0]
}

// DecodeChallenge extracts payment requirements from a 402 response.
// The v2 header is checked first, then the v1 JSON body.
func DecodeChallenge(status int, header http.Header, body []byte, receivedAt time.Time) (*Challenge, error) {
	if status != http.StatusPaymentRequired {
		return nil, ErrNotAChallenge
	}

	if encoded := header.Get(HeaderPaymentRequired); encoded != "" {
		data, err := decodeBase64(encoded)
		if err != nil {
			return nil, malformedChallenge("invalid base64 in "+HeaderPaymentRequired, err)
		}
		if err := expectVersion(data, x402.ProtocolVersion); err != nil {
			return nil, malformedChallenge("invalid payment required header", err)
		}
		return decodeChallengeV2(data, receivedAt)
	}

	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, x402.NewPaymentError(x402.ErrCodeMalformedChallenge, "402 response carries no payment requirements", nil)
	}
	if err := expectVersion(body, x402.ProtocolVersionV1); err != nil {
		return nil, malformedChallenge("invalid payment required body", err)
	}
	return decodeChallengeV1(body, receivedAt)
}

// expectVersion checks the x402Version of a challenge document against the
// version its location implies: header documents are v2, body documents v1
func expectVersion(data []byte, want int) error {
	version, err := types.DetectVersion(data)
	if err != nil {
		return err
	}
	if version != want {
		return fmt.Errorf("unsupported x402Version %d, expected %d", version, want)
	}
	return nil
}

func decodeChallengeV2(data []byte, receivedAt time.Time) (*Challenge, error) {
	if err := validateDocument(paymentRequiredV2, data); err != nil {
		return nil, malformedChallenge("invalid payment required header", err)
	}
	required, err := types.ToPaymentRequiredV2(data)
	if err != nil {
		return nil, malformedChallenge("invalid payment required header", err)
	}

	challenge := &Challenge{X402Version: x402.ProtocolVersion, Error: required.Error}
	for i, raw := range required.Accepts {
		if err := validateDocument(requirementsV2, raw); err != nil {
			return nil, malformedChallenge(fmt.Sprintf("accepts[%d]", i), err)
		}
		accept, err := types.ToPaymentRequirementsV2(raw)
		if err != nil {
			return nil, malformedChallenge(fmt.Sprintf("accepts[%d]", i), err)
		}
		amount, err := parseAmount(accept.Amount)
		if err != nil {
			return nil, malformedChallenge(fmt.Sprintf("accepts[%d].amount", i), err)
		}

		requirement := x402.PaymentRequirement{
			X402Version:       x402.ProtocolVersion,
			Scheme:            accept.Scheme,
			Network:           x402.Network(accept.Network),
			Asset:             accept.Asset,
			PayTo:             accept.PayTo,
			Amount:            amount,
			MaxTimeoutSeconds: accept.MaxTimeoutSeconds,
			Extra:             accept.Extra,
			ReceivedAt:        receivedAt,
			Raw:               raw,
		}
		if required.Resource != nil {
			requirement.Resource = required.Resource.URL
			requirement.Description = required.Resource.Description
		}
		challenge.Requirements = append(challenge.Requirements, requirement)
	}
	return challenge, nil
}

func decodeChallengeV1(data []byte, receivedAt time.Time) (*Challenge, error) {
	if err := validateDocument(paymentRequiredV1, data); err != nil {
		return nil, malformedChallenge("invalid payment required body", err)
	}
	required, err := types.ToPaymentRequiredV1(data)
	if err != nil {
		return nil, malformedChallenge("invalid payment required body", err)
	}

	challenge := &Challenge{X402Version: x402.ProtocolVersionV1, Error: required.Error}
	for i, raw := range required.Accepts {
		if err := validateDocument(requirementsV1, raw); err != nil {
			return nil, malformedChallenge(fmt.Sprintf("accepts[%d]", i), err)
		}
		accept, err := types.ToPaymentRequirementsV1(raw)
		if err != nil {
			return nil, malformedChallenge(fmt.Sprintf("accepts[%d]", i), err)
		}
		amount, err := parseAmount(accept.MaxAmountRequired)
		if err != nil {
			return nil, malformedChallenge(fmt.Sprintf("accepts[%d].maxAmountRequired", i), err)
		}

		challenge.Requirements = append(challenge.Requirements, x402.PaymentRequirement{
			X402Version:       x402.ProtocolVersionV1,
			Scheme:            accept.Scheme,
			Network:           x402.Network(accept.Network),
			Asset:             accept.Asset,
			PayTo:             accept.PayTo,
			Amount:            amount,
			MaxTimeoutSeconds: accept.MaxTimeoutSeconds,
			Resource:          accept.Resource,
			Description:       accept.Description,
			Extra:             accept.Extra,
			ReceivedAt:        receivedAt,
			Raw:               raw,
		})
	}
	return challenge, nil
}

// EncodeEnvelope encodes an authorization into the request header the server expects.
// The header name follows the protocol version of the requirement it answers.
func EncodeEnvelope(auth *x402.PaymentAuthorization) (x402.PaymentEnvelope, error) {
	if auth == nil || auth.Payload == nil {
		return x402.PaymentEnvelope{}, fmt.Errorf("empty payment authorization")
	}
	requirement := auth.Requirement

	var (
		data   []byte
		err    error
		header string
	)
	switch requirement.X402Version {
	case x402.ProtocolVersion:
		payload := types.PaymentPayloadV2{
			X402Version: x402.ProtocolVersion,
			Payload:     auth.Payload,
			Accepted:    requirement.Raw,
		}
		if requirement.Resource != "" {
			payload.Resource = &types.ResourceInfoV2{
				URL:         requirement.Resource,
				Description: requirement.Description,
			}
		}
		data, err = json.Marshal(payload)
		header = HeaderPaymentSignature
	case x402.ProtocolVersionV1:
		data, err = json.Marshal(types.PaymentPayloadV1{
			X402Version: x402.ProtocolVersionV1,
			Scheme:      requirement.Scheme,
			Network:     string(requirement.Network),
			Payload:     auth.Payload,
		})
		header = HeaderPayment
	default:
		return x402.PaymentEnvelope{}, fmt.Errorf("unsupported x402 version: %d", requirement.X402Version)
	}
	if err != nil {
		return x402.PaymentEnvelope{}, fmt.Errorf("failed to marshal payment payload: %w", err)
	}

	return x402.PaymentEnvelope{
		Header: header,
		Value:  base64.StdEncoding.EncodeToString(data),
	}, nil
}

// DecodeSettlement reads the settlement receipt from a response.
// It returns (nil, nil) when no settlement header is present. The authorization,
// when given, supplies the amount and network the server left out.
func DecodeSettlement(header http.Header, auth *x402.PaymentAuthorization) (*x402.SettlementReceipt, error) {
	for _, name := range SettlementHeaders {
		value := header.Get(name)
		if value == "" {
			continue
		}
		receipt, err := decodeSettlementValue(value, auth)
		if err != nil {
			return nil, x402.WrapPaymentError(x402.ErrCodeMalformedSettlement, "invalid "+name+" header", err)
		}
		return receipt, nil
	}
	return nil, nil
}

func decodeSettlementValue(value string, auth *x402.PaymentAuthorization) (*x402.SettlementReceipt, error) {
	data, err := decodeBase64(value)
	if err != nil {
		return nil, err
	}
	if err := validateDocument(settleResponse, data); err != nil {
		return nil, err
	}

	var response types.SettleResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, err
	}

	receipt := &x402.SettlementReceipt{
		TxHash:  response.TransactionHash(),
		Settled: response.IsSettled(),
		Network: x402.Network(response.Network),
		Payer:   response.Payer,
	}
	if response.Amount != "" {
		amount, ok := new(big.Int).SetString(response.Amount, 10)
		if !ok {
			return nil, fmt.Errorf("invalid amount: %s", response.Amount)
		}
		receipt.Amount = amount
	} else if auth != nil && auth.Amount != nil {
		receipt.Amount = new(big.Int).Set(auth.Amount)
	}
	if receipt.Network == "" && auth != nil {
		receipt.Network = auth.Requirement.Network
	}
	if receipt.Payer == "" && auth != nil {
		receipt.Payer = auth.From
	}
	return receipt, nil
}

// decodeBase64 accepts padded and unpadded, standard and URL-safe alphabets
func decodeBase64(value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	for _, encoding := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if data, err := encoding.DecodeString(value); err == nil {
			return data, nil
		}
	}
	return nil, fmt.Errorf("invalid base64 encoding")
}

func parseAmount(value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("not an integer: %q", value)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("must be positive, got %s", amount)
	}
	return amount, nil
}

func malformedChallenge(message string, err error) error {
	return x402.WrapPaymentError(x402.ErrCodeMalformedChallenge, message, err)
}
