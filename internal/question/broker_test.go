package question

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/delegate/internal/eventbus"
	"github.com/kazz187/delegate/pkg/cerr"
)

var sampleQuestions = []Question{{
	Question: "Which database?",
	Options:  []Option{{Label: "postgres"}, {Label: "sqlite"}},
}}

func receive(t *testing.T, ch <-chan Outcome) Outcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(5 * time.Second):
		t.Fatal("no outcome")
		return Outcome{}
	}
}

func TestBrokerCancelThenCancelAgain(t *testing.T) {
	b := NewBroker(nil)
	ch, err := b.Register("W", "call1", sampleQuestions)
	require.NoError(t, err)

	assert.True(t, b.Cancel("W", "call1", "Interrupted"))
	o := receive(t, ch)
	require.Error(t, o.Err)
	assert.Equal(t, "Interrupted", cerr.Message(o.Err))
	assert.True(t, cerr.IsInterrupted(o.Err))
	assert.Nil(t, o.Answers)

	assert.False(t, b.Cancel("W", "call1", "Interrupted"))
	assert.False(t, b.Resolve("W", "call1", Answers{"Which database?": "postgres"}))
	assert.Empty(t, b.List("W"))
}

func TestBrokerResolve(t *testing.T) {
	b := NewBroker(nil)
	ch, err := b.Register("W", "call1", sampleQuestions)
	require.NoError(t, err)

	assert.True(t, b.Resolve("W", "call1", Answers{"Which database?": "sqlite"}))
	o := receive(t, ch)
	require.NoError(t, o.Err)
	assert.Equal(t, "sqlite", o.Answers["Which database?"])

	assert.False(t, b.Resolve("W", "call1", Answers{}))
	assert.False(t, b.Cancel("W", "call1", "late"))
}

func TestBrokerRegisterValidation(t *testing.T) {
	b := NewBroker(nil)
	_, err := b.Register("", "c", nil)
	assert.True(t, cerr.IsCode(err, cerr.FailedPrecondition))
	_, err = b.Register("W", "", nil)
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))

	_, err = b.Register("W", "dup", nil)
	require.NoError(t, err)
	_, err = b.Register("W", "dup", nil)
	assert.True(t, cerr.IsCode(err, cerr.AlreadyExists))

	// Same call id in another workspace is a different key.
	_, err = b.Register("other", "dup", nil)
	assert.NoError(t, err)
}

func TestBrokerAskResolved(t *testing.T) {
	b := NewBroker(nil)
	go func() {
		assert.Eventually(t, func() bool {
			return b.Resolve("W", "call1", Answers{"Which database?": "postgres"})
		}, 5*time.Second, time.Millisecond)
	}()

	answers, err := b.Ask(context.Background(), "W", "call1", sampleQuestions)
	require.NoError(t, err)
	assert.Equal(t, Answers{"Which database?": "postgres"}, answers)
}

func TestBrokerAskCancelledContext(t *testing.T) {
	bus := eventbus.New()
	_, events := bus.Subscribe(8)
	b := NewBroker(bus)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.Ask(ctx, "W", "call1", sampleQuestions)
	require.Error(t, err)
	assert.True(t, cerr.IsInterrupted(err))

	// Nothing was registered.
	assert.Empty(t, b.List(""))
	assert.Empty(t, events)
}

func TestBrokerAskInterrupted(t *testing.T) {
	b := NewBroker(nil)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := b.Ask(ctx, "W", "call1", sampleQuestions)
		errCh <- err
	}()
	require.Eventually(t, func() bool { return len(b.List("W")) == 1 }, 5*time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.True(t, cerr.IsInterrupted(err))
	case <-time.After(5 * time.Second):
		t.Fatal("Ask did not return")
	}
	assert.Empty(t, b.List("W"), "cancellation must release the prompt")
	assert.False(t, b.Resolve("W", "call1", Answers{}))
}

func TestBrokerAskResolvedBeforeCancel(t *testing.T) {
	b := NewBroker(nil)
	ctx, cancel := context.WithCancel(context.Background())

	type result struct {
		answers Answers
		err     error
	}
	resCh := make(chan result, 1)
	go func() {
		a, err := b.Ask(ctx, "W", "call1", sampleQuestions)
		resCh <- result{answers: a, err: err}
	}()
	require.Eventually(t, func() bool { return len(b.List("W")) == 1 }, 5*time.Second, time.Millisecond)
	require.True(t, b.Resolve("W", "call1", Answers{"Which database?": "postgres"}))
	cancel()

	res := <-resCh
	require.NoError(t, res.err)
	assert.Equal(t, "postgres", res.answers["Which database?"])
}

func TestBrokerResolveCancelRace(t *testing.T) {
	for range 200 {
		b := NewBroker(nil)
		ch, err := b.Register("W", "c", nil)
		require.NoError(t, err)

		var wins atomic.Int32
		var wg sync.WaitGroup
		start := make(chan struct{})
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			if b.Resolve("W", "c", Answers{}) {
				wins.Add(1)
			}
		}()
		go func() {
			defer wg.Done()
			<-start
			if b.Cancel("W", "c", cerr.InterruptedMessage) {
				wins.Add(1)
			}
		}()
		close(start)
		wg.Wait()

		assert.Equal(t, int32(1), wins.Load())
		receive(t, ch)
		select {
		case <-ch:
			t.Fatal("second outcome delivered")
		default:
		}
	}
}

func TestBrokerListAndEvents(t *testing.T) {
	bus := eventbus.New()
	_, events := bus.Subscribe(8)
	b := NewBroker(bus)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	b.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	_, err := b.Register("W", "second", sampleQuestions)
	require.NoError(t, err)
	_, err = b.Register("W", "first", sampleQuestions)
	require.NoError(t, err)
	_, err = b.Register("X", "other", sampleQuestions)
	require.NoError(t, err)

	list := b.List("W")
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].CallID)
	assert.Equal(t, "first", list[1].CallID)
	assert.Len(t, b.List(""), 3)

	p, ok := b.Get("X", "other")
	require.True(t, ok)
	assert.Equal(t, sampleQuestions, p.Questions)

	b.Cancel("X", "other", "gone")
	ev := <-events
	assert.Equal(t, eventbus.EventTypeQuestionAsked, ev.Type)
	<-events
	<-events
	ev = <-events
	assert.Equal(t, eventbus.EventTypeQuestionCancelled, ev.Type)
	assert.Equal(t, "gone", ev.Metadata["reason"])
	assert.Equal(t, "X", ev.WorkspaceID)
}
