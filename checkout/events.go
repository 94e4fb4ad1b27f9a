package checkout

import (
	"context"
	"sync"
)

type EventKind string

const (
	CartChanged       EventKind = "cart_changed"
	PromotionsChanged EventKind = "promotions_changed"
	CustomerChanged   EventKind = "customer_changed"
	PaymentsChanged   EventKind = "payments_changed"
	Settled           EventKind = "settled"
)

type Event struct {
	Kind        EventKind
	CartVersion uint64
	// TransactionRef is only set on Settled.
	TransactionRef string
}

type Handler func(ctx context.Context, ev Event)

// Bus delivers events synchronously to subscribers in subscription order.
// Handlers may publish further events; those are delivered before Publish
// returns.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventKind][]Handler
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[EventKind][]Handler)}
}

func (b *Bus) Subscribe(kind EventKind, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], h)
}

func (b *Bus) Publish(ctx context.Context, ev Event) {
	b.mu.RLock()
	hs := append([]Handler(nil), b.handlers[ev.Kind]...)
	b.mu.RUnlock()

	for _, h := range hs {
		h(ctx, ev)
	}
}
