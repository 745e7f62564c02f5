// Package paywall is a paid resource server for tests. It answers x402 challenges,
// verifies EIP-3009 signatures and returns settlement headers, without touching a chain.
package paywall

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	x402 "github.com/x402-foundation/x402-fetch"
	"github.com/x402-foundation/x402-fetch/mechanisms/evm"
	"github.com/x402-foundation/x402-fetch/types"
)

// Defaults used when Options leaves a field empty
const (
	DefaultAmount = "500000"
	DefaultPayTo  = "0x209693Bc6afc0C5328bA36FaF03C514EF312287C"
	DefaultTxHash = "0xabc123"
)

// Options shapes the behaviour of the paid route
type Options struct {
	// Version selects the challenge format, 1 (JSON body) or 2 (header). Default 2.
	Version int

	// Scheme is advertised in the requirement. Default exact.
	Scheme string

	Network           string
	Amount            string
	PayTo             string
	MaxTimeoutSeconds int

	// ReChallenge answers a paid request with another 402
	ReChallenge bool

	// SettlementHeader overrides the header the receipt is written to
	SettlementHeader string

	// SettlementValue replaces the encoded receipt verbatim
	SettlementValue string

	// OmitSettlement sends no settlement header at all
	OmitSettlement bool

	// OmitSettlementAmount leaves amount out of the receipt
	OmitSettlementAmount bool
}

// Payment is a payment envelope received by the server
type Payment struct {
	Header        string
	Version       int
	Authorization evm.ExactEIP3009Authorization
	Valid         bool
	Method        string
	Body          string
	Headers       http.Header
}

// Server is a running paywall
type Server struct {
	*httptest.Server

	opts     Options
	mu       sync.Mutex
	payments []Payment
	requests int
}

// New starts a paywall on a local port. Call Close when done.
func New(opts Options) *Server {
	if opts.Version == 0 {
		opts.Version = x402.ProtocolVersion
	}
	if opts.Network == "" {
		if opts.Version == x402.ProtocolVersionV1 {
			opts.Network = "base-sepolia"
		} else {
			opts.Network = "eip155:84532"
		}
	}
	if opts.Scheme == "" {
		opts.Scheme = evm.SchemeExact
	}
	if opts.Amount == "" {
		opts.Amount = DefaultAmount
	}
	if opts.PayTo == "" {
		opts.PayTo = DefaultPayTo
	}
	if opts.MaxTimeoutSeconds == 0 {
		opts.MaxTimeoutSeconds = 300
	}

	gin.SetMode(gin.TestMode)
	s := &Server{opts: opts}

	router := gin.New()
	router.Use(s.count)
	router.GET("/free", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "free content"})
	})
	router.GET("/text", func(c *gin.Context) {
		c.String(http.StatusOK, "plain text content")
	})
	router.GET("/status/:code", func(c *gin.Context) {
		var code int
		fmt.Sscanf(c.Param("code"), "%d", &code)
		c.String(code, http.StatusText(code))
	})
	router.GET("/malformed", func(c *gin.Context) {
		c.Header("PAYMENT-REQUIRED", "%%%not-base64%%%")
		c.Status(http.StatusPaymentRequired)
	})
	router.Any("/paid", s.paid)

	s.Server = httptest.NewServer(router)
	return s
}

// Payments returns the envelopes received so far
func (s *Server) Payments() []Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Payment(nil), s.payments...)
}

// Requests returns the number of requests served
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// Requirement returns the requirement the paid route advertises
func (s *Server) Requirement() map[string]interface{} {
	config, _ := evm.GetNetworkConfig(s.opts.Network)
	requirement := map[string]interface{}{
		"scheme":            s.opts.Scheme,
		"network":           s.opts.Network,
		"asset":             config.DefaultAsset.Address,
		"payTo":             s.opts.PayTo,
		"maxTimeoutSeconds": s.opts.MaxTimeoutSeconds,
		"extra": map[string]interface{}{
			"name":    config.DefaultAsset.Name,
			"version": config.DefaultAsset.Version,
		},
	}
	if s.opts.Version == x402.ProtocolVersionV1 {
		requirement["maxAmountRequired"] = s.opts.Amount
		requirement["resource"] = s.URL + "/paid"
		requirement["description"] = "premium content"
	} else {
		requirement["amount"] = s.opts.Amount
	}
	return requirement
}

func (s *Server) count(c *gin.Context) {
	s.mu.Lock()
	s.requests++
	s.mu.Unlock()
	c.Next()
}

func (s *Server) paid(c *gin.Context) {
	header := "PAYMENT-SIGNATURE"
	if s.opts.Version == x402.ProtocolVersionV1 {
		header = "X-PAYMENT"
	}
	value := c.GetHeader(header)
	if value == "" {
		s.challenge(c, "payment required")
		return
	}

	body, _ := io.ReadAll(c.Request.Body)
	payment, err := s.verify(value)
	payment.Header = header
	payment.Method = c.Request.Method
	payment.Body = string(body)
	payment.Headers = c.Request.Header.Clone()
	s.mu.Lock()
	s.payments = append(s.payments, payment)
	s.mu.Unlock()

	if err != nil || !payment.Valid || s.opts.ReChallenge {
		reason := "payment rejected"
		if err != nil {
			reason = err.Error()
		}
		s.challenge(c, reason)
		return
	}

	if !s.opts.OmitSettlement {
		name := s.opts.SettlementHeader
		if name == "" {
			name = "PAYMENT-RESPONSE"
			if s.opts.Version == x402.ProtocolVersionV1 {
				name = "X-PAYMENT-RESPONSE"
			}
		}
		c.Header(name, s.settlement(payment))
	}

	c.JSON(http.StatusOK, gin.H{
		"data":   "premium content",
		"method": c.Request.Method,
		"body":   string(body),
	})
}

func (s *Server) challenge(c *gin.Context, reason string) {
	raw, _ := json.Marshal(s.Requirement())
	if s.opts.Version == x402.ProtocolVersionV1 {
		c.JSON(http.StatusPaymentRequired, types.PaymentRequiredV1{
			X402Version: x402.ProtocolVersionV1,
			Error:       reason,
			Accepts:     []json.RawMessage{raw},
		})
		return
	}

	required, _ := json.Marshal(types.PaymentRequiredV2{
		X402Version: x402.ProtocolVersion,
		Error:       reason,
		Resource:    &types.ResourceInfoV2{URL: s.URL + "/paid", Description: "premium content"},
		Accepts:     []json.RawMessage{raw},
	})
	c.Header("PAYMENT-REQUIRED", base64.StdEncoding.EncodeToString(required))
	c.JSON(http.StatusPaymentRequired, gin.H{})
}

// verify decodes an envelope and checks its signature against the advertised terms
func (s *Server) verify(value string) (Payment, error) {
	var payment Payment
	data, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return payment, fmt.Errorf("invalid base64: %w", err)
	}

	var envelope struct {
		X402Version int                    `json:"x402Version"`
		Network     string                 `json:"network"`
		Payload     map[string]interface{} `json:"payload"`
		Accepted    json.RawMessage        `json:"accepted"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return payment, fmt.Errorf("invalid payload: %w", err)
	}
	payment.Version = envelope.X402Version
	if envelope.X402Version != s.opts.Version {
		return payment, fmt.Errorf("unexpected x402Version %d", envelope.X402Version)
	}
	if envelope.X402Version == x402.ProtocolVersion && len(envelope.Accepted) == 0 {
		return payment, fmt.Errorf("missing accepted requirements")
	}

	evmPayload, ok := evm.PayloadFromMap(envelope.Payload)
	if !ok {
		return payment, fmt.Errorf("missing authorization")
	}
	payment.Authorization = evmPayload.Authorization

	if !strings.EqualFold(evmPayload.Authorization.To, s.opts.PayTo) {
		return payment, fmt.Errorf("wrong recipient %s", evmPayload.Authorization.To)
	}
	if evmPayload.Authorization.Value != s.opts.Amount {
		return payment, fmt.Errorf("wrong amount %s", evmPayload.Authorization.Value)
	}

	config, err := evm.GetNetworkConfig(s.opts.Network)
	if err != nil {
		return payment, err
	}
	signature, err := evm.HexToBytes(evmPayload.Signature)
	if err != nil {
		return payment, fmt.Errorf("invalid signature encoding: %w", err)
	}
	asset := config.DefaultAsset
	payment.Valid, err = evm.VerifyEIP3009Signature(evmPayload.Authorization, signature, config.ChainID, asset.Address, asset.Name, asset.Version)
	return payment, err
}

func (s *Server) settlement(payment Payment) string {
	if s.opts.SettlementValue != "" {
		return s.opts.SettlementValue
	}
	success := true
	response := types.SettleResponse{
		Success:     &success,
		Transaction: DefaultTxHash,
		Network:     s.opts.Network,
		Payer:       payment.Authorization.From,
	}
	if !s.opts.OmitSettlementAmount {
		response.Amount = payment.Authorization.Value
	}
	data, _ := json.Marshal(response)
	return base64.StdEncoding.EncodeToString(data)
}
