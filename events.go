package thirdweb

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// EventStatus marks the phase of a transaction or signature event.
type EventStatus string

const (
	// StatusSubmitted fires as soon as the transaction enters the
	// network (direct broadcast or accepted by a relay), or right
	// before a signature is produced.
	StatusSubmitted EventStatus = "submitted"
	// StatusCompleted fires once the receipt is obtained, or right
	// after a signature is produced.
	StatusCompleted EventStatus = "completed"
)

// TransactionEvent is an append-only notification about a transaction's
// lifecycle. No entity state is derived from it; it exists for
// observability only (progress bars, logging).
type TransactionEvent struct {
	Status          EventStatus
	TransactionHash common.Hash
}

// SignatureEvent reports exactly what was cryptographically approved:
// the message or hash that was signed and the resulting signature.
// Signature is empty on the "submitted" phase.
type SignatureEvent struct {
	Status    EventStatus
	Message   []byte
	Signature []byte
}

// TransactionListener receives transaction lifecycle events.
type TransactionListener func(TransactionEvent)

// SignatureListener receives signature lifecycle events.
type SignatureListener func(SignatureEvent)

// EventBus fans lifecycle events out to registered listeners. Listeners
// are invoked in registration order on the emitting goroutine; consumers
// must not assume delivery is synchronous relative to the pipeline
// call's return.
type EventBus struct {
	mu           sync.RWMutex
	txListeners  []TransactionListener
	sigListeners []SignatureListener
}

// NewEventBus creates an empty event bus.
func NewEventBus() *EventBus {
	return &EventBus{}
}

// OnTransaction registers a listener for transaction events.
func (b *EventBus) OnTransaction(l TransactionListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.txListeners = append(b.txListeners, l)
}

// OnSignature registers a listener for signature events.
func (b *EventBus) OnSignature(l SignatureListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sigListeners = append(b.sigListeners, l)
}

// EmitTransaction delivers ev to every registered transaction listener.
// A nil bus is a no-op so pipeline code never has to branch.
func (b *EventBus) EmitTransaction(ev TransactionEvent) {
	if b == nil {
		return
	}
	b.mu.RLock()
	listeners := make([]TransactionListener, len(b.txListeners))
	copy(listeners, b.txListeners)
	b.mu.RUnlock()

	for _, l := range listeners {
		l(ev)
	}
}

// EmitSignature delivers ev to every registered signature listener.
// A nil bus is a no-op.
func (b *EventBus) EmitSignature(ev SignatureEvent) {
	if b == nil {
		return
	}
	b.mu.RLock()
	listeners := make([]SignatureListener, len(b.sigListeners))
	copy(listeners, b.sigListeners)
	b.mu.RUnlock()

	for _, l := range listeners {
		l(ev)
	}
}
