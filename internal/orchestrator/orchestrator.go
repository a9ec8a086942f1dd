package orchestrator

import (
	"context"
	"log/slog"
	"regexp"
	"slices"
	"time"

	"github.com/sourcegraph/conc/iter"

	"github.com/kazz187/delegate/internal/process"
	"github.com/kazz187/delegate/internal/task"
	"github.com/kazz187/delegate/internal/taskid"
	"github.com/kazz187/delegate/pkg/cerr"
)

const (
	DefaultOutputWait = 30 * time.Second
	MaxOutputWait     = 10 * time.Minute
)

const invalidProcessTaskIDMessage = "Invalid bash taskId."

// TaskRegistry is the part of task.Registry the orchestrator reads and
// terminates through.
type TaskRegistry interface {
	ListDescendants(workspaceID string, statuses []task.Status) []*task.Task
	IsDescendant(ancestorWorkspaceID, candidateWorkspaceID string) bool
	TerminateDescendant(ctx context.Context, workspaceID, taskID string) ([]string, error)
	Depth(workspaceID string) int
	Complete(ctx context.Context, id string) (*task.Task, error)
}

// ProcessSupervisor is the part of process.Supervisor the orchestrator uses.
type ProcessSupervisor interface {
	List(workspaceID string) []process.Process
	Get(id string) *process.Process
	GetOutput(ctx context.Context, id string, req process.OutputRequest) (*process.OutputResult, error)
	Terminate(id string) error
}

// Orchestrator merges the task tree and the supervised processes into one
// task namespace scoped by workspace. It holds no state of its own.
type Orchestrator struct {
	registry    TaskRegistry
	supervisor  ProcessSupervisor
	defaultWait time.Duration
	maxWait     time.Duration
}

type Option func(*Orchestrator)

// WithSupervisor enables the process half of the namespace. Without it
// process ids cannot be listed, read or terminated.
func WithSupervisor(s ProcessSupervisor) Option {
	return func(o *Orchestrator) {
		o.supervisor = s
	}
}

func WithOutputWait(defaultWait, maxWait time.Duration) Option {
	return func(o *Orchestrator) {
		if defaultWait > 0 {
			o.defaultWait = defaultWait
		}
		if maxWait > 0 {
			o.maxWait = maxWait
		}
	}
}

func New(registry TaskRegistry, opts ...Option) *Orchestrator {
	if registry == nil {
		panic("orchestrator: nil task registry")
	}
	o := &Orchestrator{
		registry:    registry,
		defaultWait: DefaultOutputWait,
		maxWait:     MaxOutputWait,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.defaultWait > o.maxWait {
		o.defaultWait = o.maxWait
	}
	return o
}

func requireWorkspace(workspaceID string) error {
	if workspaceID == "" {
		return cerr.NewError(cerr.FailedPrecondition, "workspace id is required", nil)
	}
	return nil
}

func (o *Orchestrator) inScope(workspaceID, owner string) bool {
	return owner == workspaceID || o.registry.IsDescendant(workspaceID, owner)
}

func logicalStatus(s process.Status) task.Status {
	if s == process.StatusRunning {
		return task.StatusRunning
	}
	return task.StatusReported
}

// ListTasks returns the tasks below workspaceID whose status is in statuses,
// followed by the processes owned by the workspace or one of its
// descendants. Processes appear as synthetic tasks with a composite id. An
// empty statuses means task.ActiveStatuses.
func (o *Orchestrator) ListTasks(ctx context.Context, workspaceID string, statuses []task.Status) ([]task.Info, error) {
	if err := requireWorkspace(workspaceID); err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		statuses = task.ActiveStatuses
	}

	tasks := o.registry.ListDescendants(workspaceID, statuses)
	depths := make(map[string]int, len(tasks)+1)
	depths[workspaceID] = o.registry.Depth(workspaceID)
	result := make([]task.Info, 0, len(tasks))
	for _, t := range tasks {
		depths[t.ID] = t.Depth
		result = append(result, task.ToInfo(t))
	}

	if o.supervisor == nil {
		return result, nil
	}
	for _, p := range o.supervisor.List("") {
		if !o.inScope(workspaceID, p.WorkspaceID) {
			continue
		}
		status := logicalStatus(p.Status)
		if !slices.Contains(statuses, status) {
			continue
		}
		depth, ok := depths[p.WorkspaceID]
		if !ok {
			depth = o.registry.Depth(p.WorkspaceID)
		}
		result = append(result, task.Info{
			TaskID:            taskid.MustEncode(p.ID),
			Status:            string(status),
			ParentWorkspaceID: p.WorkspaceID,
			Title:             p.Title(),
			CreatedAt:         p.StartTime,
			Depth:             depth + 1,
		})
	}
	return result, nil
}

type ResultStatus string

const (
	ResultTerminated   ResultStatus = "terminated"
	ResultNotFound     ResultStatus = "not_found"
	ResultInvalidScope ResultStatus = "invalid_scope"
	ResultError        ResultStatus = "error"
)

// TerminationResult is the outcome for one requested id.
type TerminationResult struct {
	TaskID            string       `json:"taskId"`
	Status            ResultStatus `json:"status"`
	TerminatedTaskIDs []string     `json:"terminatedTaskIds,omitempty"`
	Error             string       `json:"error,omitempty"`
}

// TerminateTasks terminates each distinct id independently. Composite ids
// terminate a process, any other id terminates a task and its subtree. One
// id failing never affects the others.
func (o *Orchestrator) TerminateTasks(ctx context.Context, workspaceID string, taskIDs []string) ([]TerminationResult, error) {
	if err := requireWorkspace(workspaceID); err != nil {
		return nil, err
	}

	ids := dedupe(taskIDs)
	results := iter.Map(ids, func(id *string) TerminationResult {
		return o.terminateOne(ctx, workspaceID, *id)
	})
	for _, r := range results {
		slog.InfoContext(ctx, "task termination",
			"workspace_id", workspaceID, "task_id", r.TaskID, "result", r.Status, "terminated", r.TerminatedTaskIDs)
	}
	return results, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}

func (o *Orchestrator) terminateOne(ctx context.Context, workspaceID, id string) TerminationResult {
	if processID, ok := taskid.Decode(id); ok {
		return o.terminateProcess(workspaceID, id, processID)
	}
	if taskid.HasPrefix(id) {
		return TerminationResult{TaskID: id, Status: ResultError, Error: invalidProcessTaskIDMessage}
	}

	terminated, err := o.registry.TerminateDescendant(ctx, workspaceID, id)
	if err != nil {
		return failure(id, err)
	}
	return TerminationResult{TaskID: id, Status: ResultTerminated, TerminatedTaskIDs: terminated}
}

func (o *Orchestrator) terminateProcess(workspaceID, id, processID string) TerminationResult {
	if o.supervisor == nil {
		return TerminationResult{TaskID: id, Status: ResultError, Error: "process supervisor is not configured"}
	}
	p := o.supervisor.Get(processID)
	if p == nil {
		return TerminationResult{TaskID: id, Status: ResultNotFound}
	}
	if !o.inScope(workspaceID, p.WorkspaceID) {
		return TerminationResult{TaskID: id, Status: ResultInvalidScope}
	}
	if err := o.supervisor.Terminate(processID); err != nil {
		return failure(id, err)
	}
	return TerminationResult{TaskID: id, Status: ResultTerminated, TerminatedTaskIDs: []string{id}}
}

func failure(id string, err error) TerminationResult {
	switch cerr.CodeOf(err) {
	case cerr.NotFound:
		return TerminationResult{TaskID: id, Status: ResultNotFound}
	case cerr.PermissionDenied:
		return TerminationResult{TaskID: id, Status: ResultInvalidScope}
	default:
		return TerminationResult{TaskID: id, Status: ResultError, Error: cerr.Message(err)}
	}
}

// OutputQuery selects the output of a process task. Include and Exclude are
// regular expressions matched against single lines.
type OutputQuery struct {
	TaskID  string
	Include string
	Exclude string
	Timeout time.Duration
}

// GetTaskOutput blocks until the process behind a composite task id has
// produced output the workspace has not read yet. Each workspace keeps its
// own read position.
func (o *Orchestrator) GetTaskOutput(ctx context.Context, workspaceID string, q OutputQuery) (*process.OutputResult, error) {
	if err := requireWorkspace(workspaceID); err != nil {
		return nil, err
	}
	if o.supervisor == nil {
		return nil, cerr.NewError(cerr.FailedPrecondition, "process supervisor is not configured", nil)
	}
	processID, ok := taskid.Decode(q.TaskID)
	if !ok {
		if taskid.HasPrefix(q.TaskID) {
			return nil, cerr.NewError(cerr.InvalidArgument, invalidProcessTaskIDMessage, nil)
		}
		return nil, cerr.NewError(cerr.InvalidArgument, "output is only available for process tasks: "+q.TaskID, nil)
	}

	p := o.supervisor.Get(processID)
	if p == nil {
		return nil, cerr.NewError(cerr.NotFound, "process not found: "+q.TaskID, nil)
	}
	if !o.inScope(workspaceID, p.WorkspaceID) {
		return nil, cerr.NewError(cerr.PermissionDenied, "process is outside the workspace: "+q.TaskID, nil)
	}

	include, err := compileFilter("include", q.Include)
	if err != nil {
		return nil, err
	}
	exclude, err := compileFilter("exclude", q.Exclude)
	if err != nil {
		return nil, err
	}

	return o.supervisor.GetOutput(ctx, processID, process.OutputRequest{
		CallerID: workspaceID,
		Include:  include,
		Exclude:  exclude,
		Timeout:  o.clampWait(q.Timeout),
	})
}

func (o *Orchestrator) clampWait(d time.Duration) time.Duration {
	switch {
	case d <= 0:
		return o.defaultWait
	case d > o.maxWait:
		return o.maxWait
	default:
		return d
	}
}

func compileFilter(name, pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, cerr.NewError(cerr.InvalidArgument, "invalid "+name+" filter: "+err.Error(), err)
	}
	return re, nil
}

// CompleteTask marks a task reported. It fails with FailedPrecondition while
// any task below it is still active.
func (o *Orchestrator) CompleteTask(ctx context.Context, taskID string) (*task.Task, error) {
	if taskID == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "task id is required", nil)
	}
	return o.registry.Complete(ctx, taskID)
}
