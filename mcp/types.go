package mcp

import (
	"encoding/json"
)

// Tool names
const (
	ToolFetch      = "fetch"
	ToolWalletInfo = "walletInfo"
)

// FetchArgs are the arguments of the fetch tool
type FetchArgs struct {
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// PaymentInfo describes a payment made during a fetch
type PaymentInfo struct {
	// TxHash is null when the server reported no transaction
	TxHash    *string `json:"txHash"`
	Amount    string  `json:"amount"`
	AmountRaw string  `json:"amountRaw"`
	Network   string  `json:"network"`
	Settled   bool    `json:"settled"`
}

// FetchResult is the normalized outcome of one fetch.
// A non-empty Error marks a failure; only success and error are serialized then.
type FetchResult struct {
	Success     bool
	Status      int
	StatusText  string
	PaymentMade bool
	Payment     *PaymentInfo
	Content     string

	// Truncated is set when Content was cut at the size limit
	Truncated bool

	// PaymentWarning is set when the server's settlement receipt could not be read
	PaymentWarning string

	Error string
}

type fetchResultJSON struct {
	Success        bool         `json:"success"`
	Status         int          `json:"status"`
	StatusText     string       `json:"statusText"`
	PaymentMade    bool         `json:"paymentMade"`
	Payment        *PaymentInfo `json:"payment"`
	PaymentWarning string       `json:"paymentWarning,omitempty"`
	Content        string       `json:"content"`
	Truncated      bool         `json:"truncated,omitempty"`
}

type fetchFailureJSON struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// MarshalJSON implements json.Marshaler
func (r FetchResult) MarshalJSON() ([]byte, error) {
	if r.Error != "" {
		return json.Marshal(fetchFailureJSON{Success: false, Error: r.Error})
	}
	return json.Marshal(fetchResultJSON{
		Success:        r.Success,
		Status:         r.Status,
		StatusText:     r.StatusText,
		PaymentMade:    r.PaymentMade,
		Payment:        r.Payment,
		PaymentWarning: r.PaymentWarning,
		Content:        r.Content,
		Truncated:      r.Truncated,
	})
}

// failure builds a failed FetchResult
func failure(err error) FetchResult {
	return FetchResult{Success: false, Error: err.Error()}
}

// WalletInfo is the result of the walletInfo tool
type WalletInfo struct {
	Address string `json:"address"`
	Network string `json:"network"`
	Chain   string `json:"chain"`
	ChainID int64  `json:"chainId"`
}
