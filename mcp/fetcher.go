package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	x402 "github.com/x402-foundation/x402-fetch"
	x402http "github.com/x402-foundation/x402-fetch/http"
	"github.com/x402-foundation/x402-fetch/mechanisms/evm"
)

// maxContentBytes bounds the response body returned to the agent.
// Longer bodies are cut and flagged as truncated.
var maxContentBytes = 10 << 20

// Fetcher adapts tool arguments to one challenge-retry call and normalizes the outcome.
// It never returns an error or panics past its boundary.
type Fetcher struct {
	client *x402http.PaymentClient
	logger *zap.Logger
}

// FetcherOption configures a Fetcher
type FetcherOption func(*Fetcher)

// WithLogger sets the logger for recovered faults and settlement warnings
func WithLogger(logger *zap.Logger) FetcherOption {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFetcher creates a Fetcher over a payment client
func NewFetcher(client *x402http.PaymentClient, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client: client,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch performs one logical fetch
func (f *Fetcher) Fetch(ctx context.Context, args FetchArgs) (result FetchResult) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("fetch panicked", zap.Any("panic", r), zap.String("url", args.URL))
			result = FetchResult{Success: false, Error: fmt.Sprintf("internal error: %v", r)}
		}
	}()

	req, err := buildRequest(ctx, args)
	if err != nil {
		return failure(err)
	}

	outcome, err := f.client.Do(req)
	if err != nil {
		return failure(err)
	}
	defer outcome.Response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(outcome.Response.Body, int64(maxContentBytes)+1))
	if err != nil {
		return failure(x402.WrapPaymentError(x402.ErrCodeTransportFailure, "failed to read response body", err))
	}
	truncated := len(body) > maxContentBytes
	if truncated {
		body = body[:maxContentBytes]
	}

	resp := outcome.Response
	result = FetchResult{
		Success:     resp.StatusCode >= 200 && resp.StatusCode < 300,
		Status:      resp.StatusCode,
		StatusText:  http.StatusText(resp.StatusCode),
		PaymentMade: outcome.PaymentMade,
		Truncated:   truncated,
	}
	if truncated {
		result.Content = string(body)
		f.logger.Warn("response body truncated",
			zap.String("call_id", outcome.CallID),
			zap.String("url", args.URL),
			zap.Int("limit", maxContentBytes),
		)
	} else {
		result.Content = formatContent(resp.Header.Get("Content-Type"), body)
	}
	if outcome.PaymentMade {
		result.Payment = paymentInfo(outcome)
	}
	if outcome.SettlementErr != nil {
		f.logger.Warn("settlement receipt unreadable",
			zap.String("call_id", outcome.CallID),
			zap.String("url", args.URL),
			zap.Error(outcome.SettlementErr),
		)
		result.PaymentWarning = outcome.SettlementErr.Error()
	}
	return result
}

// WalletInfo reports the paying identity and its network
func (f *Fetcher) WalletInfo() (WalletInfo, error) {
	network := f.client.Policy().Network()
	config, err := evm.GetNetworkConfig(string(network))
	if err != nil {
		return WalletInfo{}, x402.WrapPaymentError(x402.ErrCodeConfig, "unsupported network", err)
	}
	return WalletInfo{
		Address: f.client.Authorizer().Address(),
		Network: string(network),
		Chain:   config.Name,
		ChainID: config.ChainID.Int64(),
	}, nil
}

func buildRequest(ctx context.Context, args FetchArgs) (*http.Request, error) {
	if strings.TrimSpace(args.URL) == "" {
		return nil, fmt.Errorf("url is required")
	}
	target, err := url.Parse(args.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, fmt.Errorf("unsupported url scheme %q", target.Scheme)
	}

	method := strings.ToUpper(strings.TrimSpace(args.Method))
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if args.Body != "" {
		body = strings.NewReader(args.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	for name, value := range args.Headers {
		req.Header.Set(name, value)
	}
	return req, nil
}

func paymentInfo(outcome *x402http.Outcome) *PaymentInfo {
	auth := outcome.Authorization
	info := &PaymentInfo{}

	amount := auth.Amount
	network := auth.Requirement.Network
	if receipt := outcome.Receipt; receipt != nil {
		if receipt.Amount != nil {
			amount = receipt.Amount
		}
		if receipt.Network != "" {
			network = receipt.Network
		}
		if receipt.TxHash != "" {
			txHash := receipt.TxHash
			info.TxHash = &txHash
		}
		info.Settled = receipt.Settled
	}

	info.Amount = x402.FormatAmount(amount, auth.Asset.Decimals, auth.Asset.Symbol)
	info.AmountRaw = amount.String()
	info.Network = string(network)
	return info
}

// formatContent pretty-prints JSON bodies and returns everything else as text
func formatContent(contentType string, body []byte) string {
	if !isJSON(contentType) {
		return string(body)
	}
	var out bytes.Buffer
	if err := json.Indent(&out, body, "", "  "); err != nil {
		return string(body)
	}
	return out.String()
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || mediaType == "text/json" || strings.HasSuffix(mediaType, "+json")
}
