package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeReceivesEvents(t *testing.T) {
	b := New()
	ch, unsubscribe := b.Subscribe("run-1")
	defer unsubscribe()

	b.Publish("run-1", Event{Type: KindRunStarted, Payload: map[string]any{"total_probes": 4}})
	ev := <-ch
	assert.Equal(t, KindRunStarted, ev.Type)
}

func TestTerminalEventClosesChannel(t *testing.T) {
	b := New()
	ch, unsubscribe := b.Subscribe("run-1")
	defer unsubscribe()

	b.Publish("run-1", Event{Type: KindRunComplete})

	ev, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, KindRunComplete, ev.Type)

	_, ok = <-ch
	assert.False(t, ok, "channel must be closed after the terminal event")
}

func TestOverflowDropsOldestNonTerminal(t *testing.T) {
	b := New()
	ch, unsubscribe := b.Subscribe("run-1")
	defer unsubscribe()

	for i := 0; i < backlogSize+10; i++ {
		b.Publish("run-1", Event{Type: KindProbeResult, Payload: i})
	}
	b.Publish("run-1", Event{Type: KindRunComplete})

	var last Event
	count := 0
	for ev := range ch {
		last = ev
		count++
	}
	assert.Equal(t, KindRunComplete, last.Type, "terminal event must always arrive even after overflow")
	assert.LessOrEqual(t, count, backlogSize+1)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New()
	ch, unsubscribe := b.Subscribe("run-1")
	unsubscribe()

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, b.SubscriberCount("run-1"))
}

func TestIndependentRunsDoNotInterfere(t *testing.T) {
	b := New()
	chA, unsubA := b.Subscribe("run-a")
	defer unsubA()
	chB, unsubB := b.Subscribe("run-b")
	defer unsubB()

	b.Publish("run-a", Event{Type: KindRunStarted})

	select {
	case ev := <-chA:
		assert.Equal(t, KindRunStarted, ev.Type)
	default:
		t.Fatal("expected event on run-a")
	}

	select {
	case <-chB:
		t.Fatal("run-b must not receive run-a's events")
	default:
	}
}
