package event

import "github.com/kazz187/delegate/internal/eventbus"

type WatchEventsRequest struct {
	WorkspaceID        string               `json:"workspace_id,omitempty"`
	IncludeDescendants bool                 `json:"include_descendants,omitempty"`
	EventTypes         []eventbus.EventType `json:"event_types,omitempty"`
}
