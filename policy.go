package x402

import (
	"fmt"
	"math/big"
	"time"
)

// DeclineReason explains why the policy refused to pay
type DeclineReason string

const (
	DeclineCeilingExceeded DeclineReason = "ceiling-exceeded"
	DeclineNetworkMismatch DeclineReason = "network-mismatch"
	DeclineExpired         DeclineReason = "expired"
	DeclineSchemeMismatch  DeclineReason = "scheme-mismatch"
)

// Decision is the policy verdict for one requirement.
// When Accepted, Amount is exactly the required amount.
type Decision struct {
	Accepted bool
	Amount   *big.Int
	Reason   DeclineReason
	Detail   string
}

// Err converts a rejection into a PaymentDeclined error. Accepted decisions return nil.
func (d Decision) Err() error {
	if d.Accepted {
		return nil
	}
	return &PaymentError{
		Code:    ErrCodePaymentDeclined,
		Message: fmt.Sprintf("%s: %s", d.Reason, d.Detail),
		Details: map[string]interface{}{
			"reason": d.Reason,
		},
	}
}

// NetworkResolver maps a network alias to its canonical identifier
type NetworkResolver func(Network) Network

// Policy decides whether and how much to pay for a requirement.
// It has no side effects; the only input besides its configuration is the clock value passed in.
type Policy struct {
	network  Network
	ceiling  SpendCeiling
	resolver NetworkResolver
}

// PolicyOption configures the policy
type PolicyOption func(*Policy)

// WithNetworkResolver lets the policy treat aliases of the operating network as equal
func WithNetworkResolver(resolver NetworkResolver) PolicyOption {
	return func(p *Policy) {
		p.resolver = resolver
	}
}

// NewPolicy creates a policy for the operating network and ceiling
func NewPolicy(network Network, ceiling SpendCeiling, opts ...PolicyOption) Policy {
	p := Policy{
		network:  network,
		ceiling:  ceiling,
		resolver: func(n Network) Network { return n },
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// Network returns the operating network
func (p Policy) Network() Network {
	return p.network
}

// Ceiling returns the configured spend ceiling
func (p Policy) Ceiling() SpendCeiling {
	return p.ceiling
}

// Matches reports whether a requirement's network is the operating network
func (p Policy) Matches(network Network) bool {
	return p.resolver(network) == p.resolver(p.network)
}

// Decide evaluates the requirement against the ceiling, the operating network and
// its validity window, in that order. It never pays more than asked and never pays partially.
func (p Policy) Decide(requirement PaymentRequirement, now time.Time) Decision {
	if requirement.Amount == nil {
		return Decision{
			Reason: DeclineCeilingExceeded,
			Detail: "requirement carries no amount",
		}
	}
	if !p.ceiling.Allows(requirement.Amount) {
		return Decision{
			Reason: DeclineCeilingExceeded,
			Detail: fmt.Sprintf("requirement %s exceeds ceiling %s", requirement.Amount, p.ceiling),
		}
	}
	if !p.Matches(requirement.Network) {
		return Decision{
			Reason: DeclineNetworkMismatch,
			Detail: fmt.Sprintf("requirement network %s is not %s", requirement.Network, p.network),
		}
	}
	if requirement.Expired(now) {
		return Decision{
			Reason: DeclineExpired,
			Detail: fmt.Sprintf("requirement expired at %s", requirement.ValidUntil().UTC().Format(time.RFC3339)),
		}
	}
	return Decision{
		Accepted: true,
		Amount:   new(big.Int).Set(requirement.Amount),
	}
}

// RejectScheme declines a requirement offered under a scheme other than the one
// the authorizer signs. The zero Decision is returned when the schemes agree.
func RejectScheme(requirement PaymentRequirement, scheme string) (Decision, bool) {
	if requirement.Scheme == scheme {
		return Decision{}, false
	}
	return Decision{
		Reason: DeclineSchemeMismatch,
		Detail: fmt.Sprintf("requirement scheme %q is not %q", requirement.Scheme, scheme),
	}, true
}
