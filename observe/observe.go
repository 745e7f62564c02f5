// Package observe turns challenge-retry state transitions into logs and metrics.
package observe

import (
	"context"

	x402 "github.com/x402-foundation/x402-fetch"
)

// Multi fans an event out to several observers in order
type Multi []x402.Observer

// Observe implements x402.Observer
func (m Multi) Observe(ctx context.Context, event x402.Event) {
	for _, observer := range m {
		if observer != nil {
			observer.Observe(ctx, event)
		}
	}
}
