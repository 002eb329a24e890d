// Package dispatch delivers the actions a run decides to its collaborators.
//
// Delivery is fire-and-forget. A dispatcher never blocks the transition that
// produced the actions and never waits for an acknowledgement: collaborators
// report completion later with new signals.
package dispatch

import (
	"context"

	"github.com/louisbranch/dungeonrun/internal/services/run/domain/action"
)

// Envelope is one action addressed by the run that issued it.
type Envelope struct {
	RunID string
	// Seq is the run sequence of the decision that produced the action.
	Seq    uint64
	Action action.Action
}

// Dispatcher delivers envelopes. Implementations must not block.
type Dispatcher interface {
	Dispatch(ctx context.Context, env Envelope)
}

// Func adapts a function to Dispatcher.
type Func func(ctx context.Context, env Envelope)

// Dispatch calls f.
func (f Func) Dispatch(ctx context.Context, env Envelope) {
	f(ctx, env)
}

// Multi delivers every envelope to each dispatcher in order.
type Multi []Dispatcher

// Dispatch delivers env to every non-nil dispatcher.
func (m Multi) Dispatch(ctx context.Context, env Envelope) {
	for _, d := range m {
		if d != nil {
			d.Dispatch(ctx, env)
		}
	}
}

// Discard drops every envelope.
var Discard Dispatcher = Func(func(context.Context, Envelope) {})
