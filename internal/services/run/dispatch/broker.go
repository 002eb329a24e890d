package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
)

// DefaultBuffer is the subscription buffer used when none is requested.
const DefaultBuffer = 64

// Broker fans envelopes out to subscribers with non-blocking sends. A
// subscriber that falls behind loses envelopes instead of stalling the run.
type Broker struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]*Subscription
	// OnDrop is called for every envelope a subscriber could not take.
	OnDrop  func(env Envelope)
	dropped atomic.Uint64
}

// NewBroker returns an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[uint64]*Subscription)}
}

// Subscription receives envelopes for one run, or every run when RunID is empty.
type Subscription struct {
	RunID  string
	C      <-chan Envelope
	ch     chan Envelope
	id     uint64
	broker *Broker
	once   sync.Once
}

// Subscribe registers a subscriber. A non-positive buffer uses DefaultBuffer.
func (b *Broker) Subscribe(runID string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan Envelope, buffer)
	b.mu.Lock()
	b.nextID++
	sub := &Subscription{RunID: runID, C: ch, ch: ch, id: b.nextID, broker: b}
	b.subs[sub.id] = sub
	b.mu.Unlock()
	return sub
}

// Close unregisters the subscription and closes its channel. It is safe to
// call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.broker.mu.Lock()
		delete(s.broker.subs, s.id)
		close(s.ch)
		s.broker.mu.Unlock()
	})
}

// Dispatch offers env to every matching subscriber without blocking.
func (b *Broker) Dispatch(_ context.Context, env Envelope) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if sub.RunID != "" && sub.RunID != env.RunID {
			continue
		}
		select {
		case sub.ch <- env:
		default:
			b.dropped.Add(1)
			if b.OnDrop != nil {
				b.OnDrop(env)
			}
		}
	}
}

// Dropped returns the number of envelopes lost to slow subscribers.
func (b *Broker) Dropped() uint64 {
	return b.dropped.Load()
}

// Subscribers returns the number of open subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
