package orchestrator

import (
	"github.com/kazz187/delegate/internal/process"
	"github.com/kazz187/delegate/internal/task"
)

type ListTasksRequest struct {
	WorkspaceID string   `json:"workspace_id"`
	Statuses    []string `json:"statuses,omitempty"`
}

type ListTasksResponse struct {
	Tasks []task.Info `json:"tasks"`
}

type TerminateTasksRequest struct {
	WorkspaceID string   `json:"workspace_id"`
	TaskIDs     []string `json:"task_ids"`
}

type TerminateTasksResponse struct {
	Results []TerminationResult `json:"results"`
}

type GetTaskOutputRequest struct {
	WorkspaceID    string `json:"workspace_id"`
	TaskID         string `json:"task_id"`
	Include        string `json:"include,omitempty"`
	Exclude        string `json:"exclude,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

type GetTaskOutputResponse struct {
	Output   []string       `json:"output"`
	Status   process.Status `json:"status"`
	ExitCode *int           `json:"exit_code,omitempty"`
	TimedOut bool           `json:"timed_out"`
}

type CompleteTaskRequest struct {
	TaskID string `json:"task_id"`
}

type CompleteTaskResponse struct {
	Task task.Info `json:"task"`
}

const terminateTasksSchema = `{
  "type": "object",
  "required": ["task_ids"],
  "properties": {
    "task_ids": {
      "type": "array",
      "minItems": 1,
      "items": {"type": "string", "minLength": 1}
    }
  }
}`

const getTaskOutputSchema = `{
  "type": "object",
  "required": ["task_id"],
  "properties": {
    "task_id": {"type": "string", "minLength": 1},
    "timeout_seconds": {"type": "integer", "minimum": 0}
  }
}`
