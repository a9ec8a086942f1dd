package task

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kazz187/delegate/internal/eventbus"
	"github.com/kazz187/delegate/pkg/cerr"
)

// Registry owns the task tree of every workspace. The tree lives in memory
// and is written through to the repository.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	tasks    map[string]*Task
	children map[string][]string

	repo     Repository
	eventBus *eventbus.Bus
	now      func() time.Time
}

// NewRegistry creates an empty registry. repo and eventBus may be nil.
func NewRegistry(repo Repository, eventBus *eventbus.Bus) *Registry {
	return &Registry{
		tasks:    make(map[string]*Task),
		children: make(map[string][]string),
		repo:     repo,
		eventBus: eventBus,
		now:      time.Now,
	}
}

// Load replaces the in-memory tree with the tasks stored in the repository.
func (r *Registry) Load(ctx context.Context) error {
	if r.repo == nil {
		return nil
	}
	all, err := r.repo.List(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = make(map[string]*Task, len(all))
	r.children = make(map[string][]string)
	slices.SortFunc(all, compareTasks)
	for _, t := range all {
		r.insertLocked(t)
	}
	slog.InfoContext(ctx, "task tree loaded", "tasks", len(all))
	return nil
}

func compareTasks(a, b *Task) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func (r *Registry) insertLocked(t *Task) {
	r.tasks[t.ID] = t
	r.children[t.ParentWorkspaceID] = append(r.children[t.ParentWorkspaceID], t.ID)
}

// Create adds a queued task under parentWorkspaceID. A parent that is not a
// known task is treated as a root workspace at depth 0.
func (r *Registry) Create(ctx context.Context, parentWorkspaceID, title string) (*Task, error) {
	if parentWorkspaceID == "" {
		return nil, cerr.NewError(cerr.FailedPrecondition, "workspace id is required", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	depth := 1
	if parent, ok := r.tasks[parentWorkspaceID]; ok {
		if parent.Status.IsTerminal() {
			return nil, cerr.NewError(cerr.FailedPrecondition,
				fmt.Sprintf("parent task %s is %s", parent.ID, parent.Status), nil)
		}
		depth = parent.Depth + 1
	}

	now := r.now()
	t := &Task{
		ID:                ulid.Make().String(),
		ParentWorkspaceID: parentWorkspaceID,
		Title:             title,
		Status:            StatusQueued,
		Depth:             depth,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if r.repo != nil {
		if err := r.repo.Create(ctx, t); err != nil {
			return nil, err
		}
	}
	r.insertLocked(t)

	r.eventBus.PublishNew(eventbus.EventTypeTaskCreated, t.ID, parentWorkspaceID, map[string]string{
		"title": t.Title,
	})

	c := *t
	return &c, nil
}

func (r *Registry) Get(id string) (*Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, cerr.NewError(cerr.NotFound, "task not found: "+id, nil)
	}
	c := *t
	return &c, nil
}

// Depth returns the depth of a workspace: the task's depth, or 0 for a root
// workspace.
func (r *Registry) Depth(workspaceID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.tasks[workspaceID]; ok {
		return t.Depth
	}
	return 0
}

// UpdateStatus moves a task to status. Setting the current status again is a
// no-op.
func (r *Registry) UpdateStatus(ctx context.Context, id string, status Status) (*Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.updateStatusLocked(ctx, id, status)
}

// Complete moves a task to reported. It fails with FailedPrecondition while
// any task below it is still active; the check and the transition happen
// under one lock so no child can be created in between.
func (r *Registry) Complete(ctx context.Context, id string) (*Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[id]; !ok {
		return nil, cerr.NewError(cerr.NotFound, "task not found: "+id, nil)
	}
	for _, t := range r.subtreeLocked(id) {
		if t.Status.IsActive() {
			return nil, cerr.NewError(cerr.FailedPrecondition, "task has active descendant tasks: "+id, nil)
		}
	}
	return r.updateStatusLocked(ctx, id, StatusReported)
}

func (r *Registry) updateStatusLocked(ctx context.Context, id string, status Status) (*Task, error) {
	t, ok := r.tasks[id]
	if !ok {
		return nil, cerr.NewError(cerr.NotFound, "task not found: "+id, nil)
	}
	if t.Status == status {
		c := *t
		return &c, nil
	}
	if !CanTransition(t.Status, status) {
		return nil, cerr.NewError(cerr.FailedPrecondition,
			fmt.Sprintf("task %s cannot move from %s to %s", id, t.Status, status), nil)
	}
	if err := r.setStatusLocked(ctx, t, status); err != nil {
		return nil, err
	}
	c := *t
	return &c, nil
}

func (r *Registry) setStatusLocked(ctx context.Context, t *Task, status Status) error {
	updated := *t
	updated.Status = status
	updated.UpdatedAt = r.now()
	if r.repo != nil {
		if err := r.repo.Update(ctx, &updated); err != nil {
			return err
		}
	}
	from := t.Status
	*t = updated

	r.eventBus.PublishNew(eventbus.EventTypeTaskStatusChanged, t.ID, t.ParentWorkspaceID, map[string]string{
		"from": string(from),
		"to":   string(status),
	})
	return nil
}

// ListDescendants returns the tasks below workspaceID, excluding workspaceID
// itself, whose status is in statuses. An empty statuses means
// ActiveStatuses. Parents come before their children.
func (r *Registry) ListDescendants(workspaceID string, statuses []Status) []*Task {
	if len(statuses) == 0 {
		statuses = ActiveStatuses
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*Task
	for _, t := range r.subtreeLocked(workspaceID) {
		if slices.Contains(statuses, t.Status) {
			c := *t
			result = append(result, &c)
		}
	}
	return result
}

// subtreeLocked walks the tree breadth first below root.
func (r *Registry) subtreeLocked(root string) []*Task {
	var result []*Task
	queue := slices.Clone(r.children[root])
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		t, ok := r.tasks[id]
		if !ok {
			continue
		}
		result = append(result, t)
		queue = append(queue, r.children[id]...)
	}
	return result
}

// IsDescendant reports whether candidate lies strictly below ancestor.
func (r *Registry) IsDescendant(ancestorWorkspaceID, candidateWorkspaceID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isDescendantLocked(ancestorWorkspaceID, candidateWorkspaceID)
}

func (r *Registry) isDescendantLocked(ancestor, candidate string) bool {
	seen := make(map[string]struct{})
	for {
		t, ok := r.tasks[candidate]
		if !ok {
			return false
		}
		if t.ParentWorkspaceID == ancestor {
			return true
		}
		if _, loop := seen[t.ID]; loop {
			return false
		}
		seen[t.ID] = struct{}{}
		candidate = t.ParentWorkspaceID
	}
}

// TerminateDescendant terminates taskID and every active task below it.
// It returns the ids whose status changed.
//
// The error is NotFound when the task is unknown or nothing under it is
// active any more, and PermissionDenied when the task is outside the
// workspace's subtree.
func (r *Registry) TerminateDescendant(ctx context.Context, workspaceID, taskID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[taskID]
	if !ok {
		return nil, cerr.NewError(cerr.NotFound, "task not found: "+taskID, nil)
	}
	if !r.isDescendantLocked(workspaceID, taskID) {
		return nil, cerr.NewError(cerr.PermissionDenied,
			fmt.Sprintf("task %s is not a descendant of workspace %s", taskID, workspaceID), nil)
	}

	targets := append([]*Task{t}, r.subtreeLocked(taskID)...)
	var terminated []string
	for _, target := range targets {
		if target.Status.IsTerminal() {
			continue
		}
		if err := r.setStatusLocked(ctx, target, StatusTerminated); err != nil {
			if len(terminated) == 0 {
				return nil, err
			}
			slog.ErrorContext(ctx, "failed to persist cascaded termination",
				"task_id", target.ID, "root_task_id", taskID, "error", err)
			continue
		}
		terminated = append(terminated, target.ID)
	}
	if len(terminated) == 0 {
		return nil, cerr.NewError(cerr.NotFound, "task already finished: "+taskID, nil)
	}
	return terminated, nil
}

// HasActiveDescendants reports whether any task below workspaceID has one of
// the ActiveStatuses.
func (r *Registry) HasActiveDescendants(workspaceID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.subtreeLocked(workspaceID) {
		if t.Status.IsActive() {
			return true
		}
	}
	return false
}
