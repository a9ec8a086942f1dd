package process

import (
	"time"

	"github.com/kazz187/delegate/internal/report"
)

// Info is the wire form of a process listing entry.
type Info struct {
	ProcessID   string    `json:"process_id"`
	WorkspaceID string    `json:"workspace_id"`
	Status      Status    `json:"status"`
	Script      string    `json:"script"`
	DisplayName string    `json:"display_name"`
	UptimeMS    int64     `json:"uptime_ms"`
	ExitCode    *int      `json:"exitCode"`
	StartTime   time.Time `json:"start_time"`
}

func toInfo(p Process, now time.Time) Info {
	return Info{
		ProcessID:   p.ID,
		WorkspaceID: p.WorkspaceID,
		Status:      p.Status,
		Script:      p.Script,
		DisplayName: p.DisplayName,
		UptimeMS:    p.Uptime(now).Milliseconds(),
		ExitCode:    p.ExitCode,
		StartTime:   p.StartTime,
	}
}

type StartProcessRequest struct {
	WorkspaceID string `json:"workspace_id"`
	Script      string `json:"script"`
	DisplayName string `json:"display_name,omitempty"`
}

type StartProcessResponse struct {
	Process Info   `json:"process"`
	TaskID  string `json:"task_id"`
}

type ListProcessesRequest struct {
	WorkspaceID string `json:"workspace_id,omitempty"`
}

type ListProcessesResponse struct {
	Processes []Info `json:"processes"`
}

type GetProcessReportRequest struct {
	ProcessID string `json:"process_id"`
}

type GetProcessReportResponse struct {
	Text   string        `json:"text"`
	Report report.Report `json:"report"`
}

type ParseReportRequest struct {
	Text string `json:"text"`
}

type ParseReportResponse struct {
	Report report.Report `json:"report"`
}
