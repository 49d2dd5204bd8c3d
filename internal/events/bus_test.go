package events_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/atlas-desktop/papertrade-engine/internal/events"
	"github.com/atlas-desktop/papertrade-engine/internal/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorder struct {
	mu     sync.Mutex
	events []orchestrator.Event
}

func (r *recorder) Notify(e orchestrator.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestBus_RoutesByType(t *testing.T) {
	bus := events.NewBus(zap.NewNop(), events.Config{NumWorkers: 2, BufferSize: 16})
	defer bus.Close()

	var mu sync.Mutex
	var closed, triggered int
	bus.Subscribe(orchestrator.EventPositionClosed, func(orchestrator.Event) error {
		mu.Lock()
		closed++
		mu.Unlock()
		return nil
	})
	bus.Subscribe(orchestrator.EventAlertTriggered, func(orchestrator.Event) error {
		mu.Lock()
		triggered++
		mu.Unlock()
		return nil
	})
	all := &recorder{}
	bus.Forward(all)

	bus.Notify(orchestrator.Event{Type: orchestrator.EventPositionClosed, Channel: "positions:u1", Symbol: "AAPL"})
	bus.Notify(orchestrator.Event{Type: orchestrator.EventPositionClosed, Channel: "positions:u1", Symbol: "MSFT"})
	bus.Notify(orchestrator.Event{Type: orchestrator.EventAlertTriggered, Channel: "alerts:u1", Symbol: "AAPL"})

	require.Eventually(t, func() bool { return all.count() == 3 }, time.Second, 5*time.Millisecond)
	mu.Lock()
	assert.Equal(t, 2, closed)
	assert.Equal(t, 1, triggered)
	mu.Unlock()

	stats := bus.Stats()
	assert.Equal(t, int64(3), stats.EventsPublished)
	assert.Equal(t, int64(3), stats.ActiveSubscribers)
}

func TestBus_HandlerFailuresAreIsolated(t *testing.T) {
	bus := events.NewBus(zap.NewNop(), events.Config{NumWorkers: 1, BufferSize: 8})
	defer bus.Close()

	bus.SubscribeAll(func(orchestrator.Event) error { return errors.New("boom") })
	bus.SubscribeAll(func(orchestrator.Event) error { panic("handler panic") })
	rec := &recorder{}
	bus.Forward(rec)

	bus.Notify(orchestrator.Event{Type: orchestrator.EventIdeaClosed, Channel: "ideas:g1"})

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(2), bus.Stats().HandlerErrors)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := events.NewBus(zap.NewNop(), events.Config{NumWorkers: 1, BufferSize: 8})

	rec := &recorder{}
	sub := bus.Forward(rec)
	bus.Unsubscribe(sub)
	assert.False(t, sub.IsActive())
	bus.Unsubscribe(sub)

	bus.Notify(orchestrator.Event{Type: orchestrator.EventAlertTriggered})
	bus.Close()

	assert.Equal(t, 0, rec.count())
	assert.Equal(t, int64(0), bus.Stats().ActiveSubscribers)
}

func TestBus_DropsAfterClose(t *testing.T) {
	bus := events.NewBus(zap.NewNop(), events.DefaultConfig())
	bus.Close()
	bus.Close()

	bus.Notify(orchestrator.Event{Type: orchestrator.EventAlertTriggered})
	assert.Equal(t, int64(1), bus.Stats().EventsDropped)
}
