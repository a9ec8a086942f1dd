package eventbus

import (
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type EventType string

const (
	EventTypeTaskCreated       EventType = "task_created"
	EventTypeTaskStatusChanged EventType = "task_status_changed"
	EventTypeProcessStarted    EventType = "process_started"
	EventTypeProcessExited     EventType = "process_exited"
	EventTypeQuestionAsked     EventType = "question_asked"
	EventTypeQuestionResolved  EventType = "question_resolved"
	EventTypeQuestionCancelled EventType = "question_cancelled"
)

var knownTypes = []EventType{
	EventTypeTaskCreated,
	EventTypeTaskStatusChanged,
	EventTypeProcessStarted,
	EventTypeProcessExited,
	EventTypeQuestionAsked,
	EventTypeQuestionResolved,
	EventTypeQuestionCancelled,
}

func IsKnownType(t EventType) bool {
	return slices.Contains(knownTypes, t)
}

type Event struct {
	ID          string            `json:"id"`
	Type        EventType         `json:"type"`
	ResourceID  string            `json:"resource_id"`
	WorkspaceID string            `json:"workspace_id,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]chan *Event
}

func New() *Bus {
	return &Bus{
		subscribers: make(map[string]chan *Event),
	}
}

func (b *Bus) Subscribe(bufSize int) (string, <-chan *Event) {
	id := ulid.Make().String()
	ch := make(chan *Event, bufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

func (b *Bus) Publish(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// buffer full, drop event for this subscriber
		}
	}
}

// PublishNew is safe to call on a nil Bus, which discards the event.
func (b *Bus) PublishNew(eventType EventType, resourceID, workspaceID string, metadata map[string]string) {
	if b == nil {
		return
	}
	b.Publish(&Event{
		ID:          ulid.Make().String(),
		Type:        eventType,
		ResourceID:  resourceID,
		WorkspaceID: workspaceID,
		Metadata:    metadata,
		CreatedAt:   time.Now(),
	})
}
