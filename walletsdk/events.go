package walletsdk

import (
	"sync"

	"github.com/sparkwallet/spark-wallet-sdk/internal/leafstore"
	"github.com/sparkwallet/spark-wallet-sdk/internal/orchestrator"
	"github.com/sparkwallet/spark-wallet-sdk/internal/transfer"
)

// EventKind distinguishes the events add_event_listener callers can
// subscribe to (spec section 6).
type EventKind string

const (
	EventSynced                EventKind = "Synced"
	EventPaymentSucceeded      EventKind = "PaymentSucceeded"
	EventPaymentFailed         EventKind = "PaymentFailed"
	EventDepositConfirmed      EventKind = "DepositConfirmed"
	EventStreamConnected       EventKind = "StreamConnected"
	EventStreamDisconnected    EventKind = "StreamDisconnected"
	EventTransferClaimed       EventKind = "TransferClaimed"
	EventTransferClaimStarting EventKind = "TransferClaimStarting"
	EventOptimizationProgress  EventKind = "OptimizationProgress"
)

// Event is the value delivered to every registered listener. Only the
// field matching Kind is populated.
type Event struct {
	Kind EventKind

	Payment       *orchestrator.Payment
	DepositLeafID string
	Transfer      *transfer.Transfer
	Optimization  *leafstore.OptimizationProgress
}

// Listener receives events from add_event_listener.
type Listener func(Event)

// eventBus fans out wallet lifecycle events to every registered listener.
// Emit and add/remove all serialize through the same mutex; listeners run
// synchronously on the emitting goroutine, which is either one of the
// background forwarding loops or, for payment events, the goroutine of the
// SendPayment call that the orchestrator's sink reports from.
type eventBus struct {
	mu        sync.Mutex
	nextID    uint64
	listeners map[uint64]Listener
}

func newEventBus() *eventBus {
	return &eventBus{listeners: make(map[uint64]Listener)}
}

func (b *eventBus) addListener(fn Listener) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.listeners[id] = fn
	return id
}

func (b *eventBus) removeListener(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.listeners, id)
}

func (b *eventBus) emit(e Event) {
	b.mu.Lock()
	fns := make([]Listener, 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}

// AddEventListener registers fn to receive every subsequent wallet event
// and returns a handle for RemoveEventListener.
func (w *Wallet) AddEventListener(fn func(Event)) uint64 {
	return w.events.addListener(fn)
}

// RemoveEventListener unregisters a listener added by AddEventListener.
func (w *Wallet) RemoveEventListener(id uint64) {
	w.events.removeListener(id)
}
