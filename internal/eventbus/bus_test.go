package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := New()
	id1, ch1 := bus.Subscribe(4)
	_, ch2 := bus.Subscribe(4)

	bus.PublishNew(EventTypeTaskCreated, "task-1", "ws-1", map[string]string{"title": "build"})

	for _, ch := range []<-chan *Event{ch1, ch2} {
		ev := <-ch
		require.NotNil(t, ev)
		assert.NotEmpty(t, ev.ID)
		assert.Equal(t, EventTypeTaskCreated, ev.Type)
		assert.Equal(t, "task-1", ev.ResourceID)
		assert.Equal(t, "ws-1", ev.WorkspaceID)
		assert.Equal(t, "build", ev.Metadata["title"])
		assert.False(t, ev.CreatedAt.IsZero())
	}

	bus.Unsubscribe(id1)
	_, ok := <-ch1
	assert.False(t, ok, "channel should be closed after unsubscribe")

	// Unsubscribing twice is harmless.
	bus.Unsubscribe(id1)
}

func TestBusDropsWhenFull(t *testing.T) {
	bus := New()
	_, ch := bus.Subscribe(1)

	bus.PublishNew(EventTypeProcessStarted, "p1", "ws", nil)
	bus.PublishNew(EventTypeProcessExited, "p1", "ws", nil)

	ev := <-ch
	assert.Equal(t, EventTypeProcessStarted, ev.Type)
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %v", ev.Type)
	default:
	}
}

func TestNilBusPublishNew(t *testing.T) {
	var bus *Bus
	assert.NotPanics(t, func() {
		bus.PublishNew(EventTypeQuestionAsked, "q", "ws", nil)
	})
}

func TestIsKnownType(t *testing.T) {
	assert.True(t, IsKnownType(EventTypeQuestionAsked))
	assert.True(t, IsKnownType(EventTypeProcessExited))
	assert.False(t, IsKnownType("agent_spawned"))
	assert.False(t, IsKnownType(""))
}
