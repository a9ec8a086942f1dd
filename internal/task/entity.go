package task

import (
	"fmt"
	"slices"
	"time"

	"github.com/kazz187/delegate/pkg/cerr"
)

type Status string

const (
	StatusQueued         Status = "queued"
	StatusRunning        Status = "running"
	StatusAwaitingReport Status = "awaiting_report"
	StatusReported       Status = "reported"
	StatusTerminated     Status = "terminated"
	StatusError          Status = "error"
)

// ActiveStatuses are the statuses of outstanding work. They are also the
// default filter for descendant listings.
var ActiveStatuses = []Status{StatusQueued, StatusRunning, StatusAwaitingReport}

var allStatuses = []Status{
	StatusQueued, StatusRunning, StatusAwaitingReport,
	StatusReported, StatusTerminated, StatusError,
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !slices.Contains(allStatuses, st) {
		return "", cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("unknown task status %q", s), nil)
	}
	return st, nil
}

func (s Status) IsActive() bool {
	return slices.Contains(ActiveStatuses, s)
}

func (s Status) IsTerminal() bool {
	return !s.IsActive()
}

var transitions = map[Status][]Status{
	StatusQueued:         {StatusRunning, StatusTerminated, StatusError},
	StatusRunning:        {StatusAwaitingReport, StatusReported, StatusTerminated, StatusError},
	StatusAwaitingReport: {StatusReported, StatusTerminated, StatusError},
}

// CanTransition reports whether a task may move from one status to another.
// Terminal statuses are final.
func CanTransition(from, to Status) bool {
	return slices.Contains(transitions[from], to)
}

// Task is a node of a workspace's task tree. A task is itself the workspace
// of the tasks and processes it spawns.
type Task struct {
	ID                string    `yaml:"id"`
	ParentWorkspaceID string    `yaml:"parent_workspace_id"`
	Title             string    `yaml:"title"`
	Status            Status    `yaml:"status"`
	Depth             int       `yaml:"depth"`
	CreatedAt         time.Time `yaml:"created_at"`
	UpdatedAt         time.Time `yaml:"updated_at"`
}
