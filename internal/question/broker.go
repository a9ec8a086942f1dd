package question

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/kazz187/delegate/internal/eventbus"
	"github.com/kazz187/delegate/pkg/cerr"
)

type key struct {
	workspaceID string
	callID      string
}

type entry struct {
	pending Pending
	ch      chan Outcome
}

// Broker holds prompts that wait for a user's answer. Each prompt completes
// exactly once: the first of Resolve or Cancel removes it from the broker and
// the other becomes a no-op.
//
// Broker is safe for concurrent use.
type Broker struct {
	mu       sync.Mutex
	pending  map[key]*entry
	eventBus *eventbus.Bus
	now      func() time.Time
}

// NewBroker creates a broker. eventBus may be nil.
func NewBroker(eventBus *eventbus.Bus) *Broker {
	return &Broker{
		pending:  make(map[key]*entry),
		eventBus: eventBus,
		now:      time.Now,
	}
}

// Register creates an unresolved prompt. The returned channel receives one
// Outcome once the prompt is resolved or cancelled.
func (b *Broker) Register(workspaceID, callID string, questions []Question) (<-chan Outcome, error) {
	if workspaceID == "" {
		return nil, cerr.NewError(cerr.FailedPrecondition, "workspace id is required", nil)
	}
	if callID == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "call id is required", nil)
	}
	k := key{workspaceID: workspaceID, callID: callID}

	b.mu.Lock()
	if _, exists := b.pending[k]; exists {
		b.mu.Unlock()
		return nil, cerr.NewError(cerr.AlreadyExists,
			fmt.Sprintf("question %s is already pending in workspace %s", callID, workspaceID), nil)
	}
	e := &entry{
		pending: Pending{
			WorkspaceID: workspaceID,
			CallID:      callID,
			Questions:   questions,
			CreatedAt:   b.now(),
		},
		ch: make(chan Outcome, 1),
	}
	b.pending[k] = e
	b.mu.Unlock()

	b.eventBus.PublishNew(eventbus.EventTypeQuestionAsked, callID, workspaceID, map[string]string{
		"questions": strconv.Itoa(len(questions)),
	})
	return e.ch, nil
}

func (b *Broker) take(workspaceID, callID string) (*entry, bool) {
	k := key{workspaceID: workspaceID, callID: callID}
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.pending[k]
	if ok {
		delete(b.pending, k)
	}
	return e, ok
}

// Resolve completes a prompt with answers. It reports false when the prompt
// is no longer pending.
func (b *Broker) Resolve(workspaceID, callID string, answers Answers) bool {
	e, ok := b.take(workspaceID, callID)
	if !ok {
		return false
	}
	e.ch <- Outcome{Answers: answers}
	b.eventBus.PublishNew(eventbus.EventTypeQuestionResolved, callID, workspaceID, nil)
	return true
}

// Cancel fails a prompt with a Canceled error whose message is reason. It
// reports false when the prompt is no longer pending.
func (b *Broker) Cancel(workspaceID, callID, reason string) bool {
	e, ok := b.take(workspaceID, callID)
	if !ok {
		return false
	}
	e.ch <- Outcome{Err: cerr.NewError(cerr.Canceled, reason, nil)}
	b.eventBus.PublishNew(eventbus.EventTypeQuestionCancelled, callID, workspaceID, map[string]string{
		"reason": reason,
	})
	return true
}

// Ask registers a prompt and waits for its outcome. Cancelling ctx cancels
// the prompt with the "Interrupted" reason; a ctx that is already done fails
// without registering anything.
func (b *Broker) Ask(ctx context.Context, workspaceID, callID string, questions []Question) (Answers, error) {
	if err := ctx.Err(); err != nil {
		return nil, cerr.Interrupted(err)
	}
	ch, err := b.Register(workspaceID, callID, questions)
	if err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, func() {
		b.Cancel(workspaceID, callID, cerr.InterruptedMessage)
	})
	defer stop()

	outcome := <-ch
	return outcome.Answers, outcome.Err
}

// List returns the prompts pending in workspaceID, or in every workspace
// when it is empty, oldest first.
func (b *Broker) List(workspaceID string) []Pending {
	b.mu.Lock()
	result := make([]Pending, 0, len(b.pending))
	for k, e := range b.pending {
		if workspaceID != "" && k.workspaceID != workspaceID {
			continue
		}
		result = append(result, e.pending)
	}
	b.mu.Unlock()

	slices.SortFunc(result, func(a, b Pending) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.CallID, b.CallID)
	})
	return result
}

// Get returns a pending prompt.
func (b *Broker) Get(workspaceID, callID string) (Pending, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.pending[key{workspaceID: workspaceID, callID: callID}]
	if !ok {
		return Pending{}, false
	}
	return e.pending, true
}
