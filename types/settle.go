package types

import (
	"encoding/json"
	"fmt"
)

// SettleResponse is the settlement acknowledgment a resource server attaches to a paid response.
// Servers differ in field naming, so both spellings are accepted.
type SettleResponse struct {
	Success     *bool  `json:"success,omitempty"`
	Settled     *bool  `json:"settled,omitempty"`
	Transaction string `json:"transaction,omitempty"`
	TxHash      string `json:"txHash,omitempty"`
	Network     string `json:"network,omitempty"`
	Payer       string `json:"payer,omitempty"`
	Amount      string `json:"amount,omitempty"`
	ErrorReason string `json:"errorReason,omitempty"`
}

// IsSettled prefers the explicit settled flag over success
func (r SettleResponse) IsSettled() bool {
	if r.Settled != nil {
		return *r.Settled
	}
	if r.Success != nil {
		return *r.Success
	}
	return false
}

// TransactionHash prefers txHash over transaction
func (r SettleResponse) TransactionHash() string {
	if r.TxHash != "" {
		return r.TxHash
	}
	return r.Transaction
}

// DetectVersion reads x402Version from a JSON document
func DetectVersion(data []byte) (int, error) {
	var probe struct {
		X402Version *int `json:"x402Version"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return 0, err
	}
	if probe.X402Version == nil {
		return 0, fmt.Errorf("missing x402Version")
	}
	return *probe.X402Version, nil
}
