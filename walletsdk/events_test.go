package walletsdk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkwallet/spark-wallet-sdk/internal/leafstore"
)

func TestEventBusDeliversToEveryListener(t *testing.T) {
	b := newEventBus()
	var gotA, gotB []EventKind

	b.addListener(func(e Event) { gotA = append(gotA, e.Kind) })
	b.addListener(func(e Event) { gotB = append(gotB, e.Kind) })

	b.emit(Event{Kind: EventSynced})

	assert.Equal(t, []EventKind{EventSynced}, gotA)
	assert.Equal(t, []EventKind{EventSynced}, gotB)
}

func TestEventBusRemoveListenerStopsDelivery(t *testing.T) {
	b := newEventBus()
	var count int

	id := b.addListener(func(e Event) { count++ })
	b.emit(Event{Kind: EventSynced})
	require.Equal(t, 1, count)

	b.removeListener(id)
	b.emit(Event{Kind: EventSynced})
	assert.Equal(t, 1, count, "listener should not fire after removal")
}

func TestEventBusRemoveUnknownIDIsNoop(t *testing.T) {
	b := newEventBus()
	b.removeListener(9999)
}

func TestEventBusIndependentHandles(t *testing.T) {
	b := newEventBus()
	var firstCount, secondCount int

	first := b.addListener(func(e Event) { firstCount++ })
	b.addListener(func(e Event) { secondCount++ })

	b.removeListener(first)
	b.emit(Event{Kind: EventPaymentSucceeded})

	assert.Equal(t, 0, firstCount)
	assert.Equal(t, 1, secondCount)
}

func TestEventCarriesKindSpecificPayload(t *testing.T) {
	b := newEventBus()
	var received Event
	b.addListener(func(e Event) { received = e })

	progress := &leafstore.OptimizationProgress{}
	b.emit(Event{Kind: EventOptimizationProgress, Optimization: progress})
	assert.Equal(t, EventOptimizationProgress, received.Kind)
	assert.Same(t, progress, received.Optimization)
	assert.Nil(t, received.Payment)
}
