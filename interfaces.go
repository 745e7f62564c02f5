package x402

import (
	"context"
	"math/big"
)

// Authorizer is the signing identity as seen by the protocol core.
// It is the only component allowed to touch key material and must be safe for
// concurrent use: calls share the key, never per-call state.
type Authorizer interface {
	// Address returns the wallet address payments are made from
	Address() string

	// Scheme returns the payment scheme the authorizer signs for, e.g. "exact"
	Scheme() string

	// Authorize signs a fresh authorization for exactly amount under requirement.
	// Every call produces a new nonce, so two authorizations are never equal.
	Authorize(ctx context.Context, requirement PaymentRequirement, amount *big.Int) (*PaymentAuthorization, error)
}

// Observer receives state-machine transitions of the challenge-retry client
type Observer interface {
	Observe(ctx context.Context, event Event)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(ctx context.Context, event Event)

// Observe implements Observer
func (f ObserverFunc) Observe(ctx context.Context, event Event) {
	f(ctx, event)
}

// NopObserver discards events
type NopObserver struct{}

// Observe implements Observer
func (NopObserver) Observe(context.Context, Event) {}
