package x402

import (
	"errors"
	"fmt"
)

// PaymentError represents a payment-specific error
type PaymentError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

func (e *PaymentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}

// Error codes
const (
	ErrCodeConfig                 = "ConfigError"
	ErrCodeMalformedChallenge     = "MalformedChallenge"
	ErrCodeMalformedSettlement    = "MalformedSettlement"
	ErrCodePaymentDeclined        = "PaymentDeclined"
	ErrCodeDoublePaymentChallenge = "DoublePaymentChallenge"
	ErrCodeSigningFailure         = "SigningFailure"
	ErrCodeTransportFailure       = "TransportFailure"
)

// NewPaymentError creates a new payment error
func NewPaymentError(code, message string, details map[string]interface{}) *PaymentError {
	return &PaymentError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// WrapPaymentError creates a payment error caused by err
func WrapPaymentError(code, message string, err error) *PaymentError {
	return &PaymentError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ErrorCode returns the code of the first PaymentError in err's chain, or "".
func ErrorCode(err error) string {
	var paymentErr *PaymentError
	if errors.As(err, &paymentErr) {
		return paymentErr.Code
	}
	return ""
}

// IsErrorCode reports whether err carries the given code
func IsErrorCode(err error, code string) bool {
	return ErrorCode(err) == code
}

// DeclineReasonOf returns the policy reason attached to a PaymentDeclined error
func DeclineReasonOf(err error) (DeclineReason, bool) {
	var paymentErr *PaymentError
	if !errors.As(err, &paymentErr) || paymentErr.Code != ErrCodePaymentDeclined {
		return "", false
	}
	reason, ok := paymentErr.Details["reason"].(DeclineReason)
	return reason, ok
}
