package pushnotification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kazz187/delegate/internal/eventbus"
	"github.com/kazz187/delegate/internal/pushsubscription"
	"github.com/kazz187/delegate/internal/question"
)

// PendingQuestions looks up a pending prompt by workspace and call id.
type PendingQuestions interface {
	Get(workspaceID, callID string) (question.Pending, bool)
}

// Scope reports whether candidate lies below ancestor in the task tree.
type Scope interface {
	IsDescendant(ancestorWorkspaceID, candidateWorkspaceID string) bool
}

// Dispatcher turns question_asked events into web push notifications.
type Dispatcher struct {
	eventBus  *eventbus.Bus
	questions PendingQuestions
	scope     Scope
	sender    *Sender
}

// NewDispatcher creates a dispatcher. scope may be nil, in which case a
// workspace subscription only matches questions asked in that exact
// workspace.
func NewDispatcher(eventBus *eventbus.Bus, questions PendingQuestions, scope Scope, sender *Sender) *Dispatcher {
	return &Dispatcher{
		eventBus:  eventBus,
		questions: questions,
		scope:     scope,
		sender:    sender,
	}
}

// Start consumes events until ctx is done.
func (d *Dispatcher) Start(ctx context.Context) {
	subID, ch := d.eventBus.Subscribe(256)
	defer d.eventBus.Unsubscribe(subID)

	slog.Info("push notification dispatcher started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("push notification dispatcher stopped")
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if event.Type == eventbus.EventTypeQuestionAsked {
				d.handleQuestionAsked(ctx, event)
			}
		}
	}
}

func (d *Dispatcher) handleQuestionAsked(ctx context.Context, event *eventbus.Event) {
	pending, ok := d.questions.Get(event.WorkspaceID, event.ResourceID)
	if !ok {
		// Answered or cancelled before we got to it.
		return
	}
	d.sender.Send(ctx, payloadFor(pending), func(sub *pushsubscription.Subscription) bool {
		return d.matches(sub, pending.WorkspaceID)
	})
}

func (d *Dispatcher) matches(sub *pushsubscription.Subscription, workspaceID string) bool {
	if sub.WorkspaceID == "" || sub.WorkspaceID == workspaceID {
		return true
	}
	return d.scope != nil && d.scope.IsDescendant(sub.WorkspaceID, workspaceID)
}

func payloadFor(p question.Pending) *NotificationPayload {
	body := "An agent is waiting for your answer"
	if len(p.Questions) > 0 {
		body = p.Questions[0].Question
		if len(p.Questions) > 1 {
			body = fmt.Sprintf("%s (+%d more)", body, len(p.Questions)-1)
		}
	}
	return &NotificationPayload{
		Title: "Question from agent",
		Body:  body,
		URL:   fmt.Sprintf("/workspaces/%s/questions/%s", p.WorkspaceID, p.CallID),
		Tag:   p.CallID,
	}
}
