package event

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Kind names a change that dependent views refresh on.
type Kind string

const (
	ReceiptCreated    Kind = "receiptCreated"
	ReceiptUpdated    Kind = "receiptUpdated"
	ReceiptDeleted    Kind = "receiptDeleted"
	MemberDataUpdated Kind = "memberDataUpdated"
)

// Domain errors
var (
	ErrUnknownKind = errors.New("unknown event kind")
	ErrEmptyMember = errors.New("event member ID cannot be empty")
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case ReceiptCreated, ReceiptUpdated, ReceiptDeleted, MemberDataUpdated:
		return true
	}
	return false
}

// Event is one change notification. Consumers treat delivery as at-least-once
// and reload state by ID, so a repeated event is harmless.
type Event struct {
	Kind       Kind      `json:"kind"`
	MemberID   string    `json:"member_id"`
	ReceiptID  string    `json:"receipt_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Validate checks if the Event has valid data.
func (e Event) Validate() error {
	if !e.Kind.Valid() {
		return ErrUnknownKind
	}
	if e.MemberID == "" {
		return ErrEmptyMember
	}
	return nil
}

// ChangeSet is the ordered list of events produced by one write.
type ChangeSet []Event

// Kinds returns the kinds in order.
func (c ChangeSet) Kinds() []Kind {
	kinds := make([]Kind, len(c))
	for i, e := range c {
		kinds[i] = e.Kind
	}
	return kinds
}

// Notifier delivers events after a successful write.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, e Event) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, e Event) error {
	return f(ctx, e)
}

// Handler receives events from a Bus.
type Handler func(e Event)

// Bus fans events out to in-process subscribers.
// Handlers run synchronously on the notifying goroutine.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[int]Handler)}
}

// Subscribe registers h and returns a function that removes it.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = h
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers, id)
			b.mu.Unlock()
		})
	}
}

// Notify delivers e to every current subscriber.
// PRE: e is valid
// POST: All handlers subscribed at call time have been invoked
func (b *Bus) Notify(_ context.Context, e Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	b.mu.RLock()
	hs := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		hs = append(hs, h)
	}
	b.mu.RUnlock()

	for _, h := range hs {
		h(e)
	}
	return nil
}

// Len returns the number of subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}

// Multi notifies each notifier in order and joins their errors.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, e Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
