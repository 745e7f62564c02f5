package x402

import (
	"time"
)

// State is a state of one logical fetch call
type State string

const (
	StateInitial           State = "initial"
	StateRequested         State = "requested"
	StateChallengeDetected State = "challenge_detected"
	StateAuthorizing       State = "authorizing"
	StateRetried           State = "retried"
	StateCompleted         State = "completed"
	StateFailed            State = "failed"
)

// Event is emitted on every transition. Fields that do not apply to
// the state are left at their zero value.
type Event struct {
	CallID    string
	State     State
	Method    string
	URL       string
	Status    int
	Timestamp time.Time
	Duration  time.Duration

	Requirement   *PaymentRequirement
	Decision      *Decision
	Authorization *PaymentAuthorization
	Receipt       *SettlementReceipt

	// Err is set on StateFailed, and on StateCompleted when settlement could not be decoded
	Err error
}

// PaymentMade reports whether an authorization was sent during the call
func (e Event) PaymentMade() bool {
	return e.Authorization != nil
}
