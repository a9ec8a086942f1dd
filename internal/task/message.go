package task

import "time"

// Info is the wire form of a task listing entry.
type Info struct {
	TaskID            string    `json:"taskId"`
	Status            string    `json:"status"`
	ParentWorkspaceID string    `json:"parentWorkspaceId"`
	Title             string    `json:"title"`
	CreatedAt         time.Time `json:"createdAt"`
	Depth             int       `json:"depth"`
}

func ToInfo(t *Task) Info {
	return Info{
		TaskID:            t.ID,
		Status:            string(t.Status),
		ParentWorkspaceID: t.ParentWorkspaceID,
		Title:             t.Title,
		CreatedAt:         t.CreatedAt,
		Depth:             t.Depth,
	}
}

type CreateTaskRequest struct {
	ParentWorkspaceID string `json:"parent_workspace_id"`
	Title             string `json:"title"`
}

type CreateTaskResponse struct {
	Task Info `json:"task"`
}

type GetTaskRequest struct {
	TaskID string `json:"task_id"`
}

type GetTaskResponse struct {
	Task Info `json:"task"`
}

type UpdateTaskStatusRequest struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

type UpdateTaskStatusResponse struct {
	Task Info `json:"task"`
}
