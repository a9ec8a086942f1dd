package event

import (
	"context"

	"connectrpc.com/connect"

	"github.com/kazz187/delegate/internal/eventbus"
	"github.com/kazz187/delegate/pkg/cerr"
)

const subscriberBuffer = 64

var _ ServiceHandler = (*Server)(nil)

// Scope reports whether candidate lies below ancestor in the task tree.
type Scope interface {
	IsDescendant(ancestorWorkspaceID, candidateWorkspaceID string) bool
}

type Server struct {
	eventBus *eventbus.Bus
	scope    Scope
}

// NewServer creates the event stream server. scope may be nil, which
// disables descendant matching.
func NewServer(eventBus *eventbus.Bus, scope Scope) *Server {
	if eventBus == nil {
		panic("event: nil event bus")
	}
	return &Server{eventBus: eventBus, scope: scope}
}

func (s *Server) WatchEvents(ctx context.Context, req *connect.Request[WatchEventsRequest], stream *connect.ServerStream[eventbus.Event]) error {
	typeFilter := make(map[eventbus.EventType]struct{}, len(req.Msg.EventTypes))
	for _, et := range req.Msg.EventTypes {
		if !eventbus.IsKnownType(et) {
			return cerr.NewError(cerr.InvalidArgument, "unknown event type: "+string(et), nil)
		}
		typeFilter[et] = struct{}{}
	}

	subID, ch := s.eventBus.Subscribe(subscriberBuffer)
	defer s.eventBus.Unsubscribe(subID)

	// Flush headers so the client's call returns before the first event.
	if err := stream.Send(nil); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-ch:
			if !ok {
				return nil
			}
			if len(typeFilter) > 0 {
				if _, match := typeFilter[event.Type]; !match {
					continue
				}
			}
			if !s.inWorkspace(req.Msg, event) {
				continue
			}
			if err := stream.Send(event); err != nil {
				return err
			}
		}
	}
}

func (s *Server) inWorkspace(req *WatchEventsRequest, event *eventbus.Event) bool {
	if req.WorkspaceID == "" || event.WorkspaceID == req.WorkspaceID {
		return true
	}
	return req.IncludeDescendants && s.scope != nil && s.scope.IsDescendant(req.WorkspaceID, event.WorkspaceID)
}
