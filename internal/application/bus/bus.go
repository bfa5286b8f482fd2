// Package bus provides the change-notification fan-out between the
// mutation service and reactive readers. Notifications carry no payload:
// they are a "something changed, re-query" signal, not a replication
// channel, so a missed notification never leaves an observer wrong,
// only momentarily stale.
package bus

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Change identifies what kind of mutation happened
type Change string

const (
	ChangeJobCreated    Change = "job.created"
	ChangeJobUpdated    Change = "job.updated"
	ChangeEventAppended Change = "event.appended"
)

// String returns the string representation of the change kind
func (c Change) String() string {
	return string(c)
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Subscription is a live handle on the bus. Readers drain Changes and
// call Unsubscribe when done; an abandoned subscription only costs its
// buffer, publishes to it are dropped once the buffer fills.
type Subscription struct {
	id  uuid.UUID
	ch  chan Change
	bus *Bus

	once sync.Once
}

// Changes returns the channel notifications are delivered on. The
// channel is closed by Unsubscribe or when the bus shuts down.
func (s *Subscription) Changes() <-chan Change {
	return s.ch
}

// Unsubscribe removes the subscription from the bus and closes its
// channel. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	// The once closure must not take the bus mutex: Close runs these
	// closures while holding it.
	s.bus.remove(s.id)
	s.once.Do(func() {
		close(s.ch)
	})
}

// Bus is the process-wide publish point. It is constructed at startup,
// shared by value-free injection, and closed on shutdown; it is never a
// package-level global.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]*Subscription
	logger Logger
	closed atomic.Bool
}

// Option configures the bus
type Option func(*Bus)

// WithLogger sets a logger for the bus
func WithLogger(logger Logger) Option {
	return func(b *Bus) {
		b.logger = logger
	}
}

// subscriberBuffer is the per-subscription channel depth. Delivery is
// best-effort: a subscriber that falls further behind than this misses
// signals and catches up on its next query.
const subscriberBuffer = 8

// New creates a notification bus
func New(opts ...Option) *Bus {
	b := &Bus{
		subs: make(map[uuid.UUID]*Subscription),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Subscribe registers a new observer and returns its handle
func (b *Bus) Subscribe() *Subscription {
	sub := &Subscription{
		id:  uuid.New(),
		ch:  make(chan Change, subscriberBuffer),
		bus: b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed.Load() {
		// Late subscriber on a closed bus gets an already-closed channel
		// rather than one that never delivers.
		sub.once.Do(func() {
			close(sub.ch)
		})
		return sub
	}

	b.subs[sub.id] = sub

	if b.logger != nil {
		b.logger.Info("Bus subscriber registered", "subscriber_id", sub.id.String())
	}

	return sub
}

// Publish notifies every current subscriber that something changed.
// Sends never block the publisher: a full subscriber buffer drops the
// signal for that subscriber only.
func (b *Bus) Publish(change Change) {
	if b.closed.Load() {
		if b.logger != nil {
			b.logger.Error("Publish on closed bus dropped", "change", change.String())
		}
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		select {
		case sub.ch <- change:
		default:
			// Subscriber is behind; it re-queries on its next signal.
		}
	}
}

// SubscriberCount returns the number of live subscriptions
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close shuts the bus down, closing every subscriber channel. Further
// publishes are dropped and further subscribes receive closed handles.
func (b *Bus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("bus already closed")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subs {
		sub.once.Do(func() {
			close(sub.ch)
		})
		delete(b.subs, id)
	}

	if b.logger != nil {
		b.logger.Info("Notification bus closed")
	}

	return nil
}

func (b *Bus) remove(id uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}
