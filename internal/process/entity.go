package process

import "time"

type Status string

const (
	StatusRunning    Status = "running"
	StatusExited     Status = "exited"
	StatusTerminated Status = "terminated"
	StatusError      Status = "error"
)

func (s Status) IsTerminal() bool {
	return s != StatusRunning
}

// Process is a point-in-time snapshot of a supervised background process.
// ExitTime and ExitCode are set once, when the process leaves running.
type Process struct {
	ID          string     `json:"id"`
	WorkspaceID string     `json:"workspace_id"`
	Status      Status     `json:"status"`
	Script      string     `json:"script"`
	DisplayName string     `json:"display_name"`
	StartTime   time.Time  `json:"start_time"`
	ExitTime    *time.Time `json:"exit_time,omitempty"`
	ExitCode    *int       `json:"exit_code,omitempty"`
}

// Uptime is measured up to ExitTime for finished processes and up to now
// otherwise.
func (p *Process) Uptime(now time.Time) time.Duration {
	end := now
	if p.ExitTime != nil {
		end = *p.ExitTime
	}
	return end.Sub(p.StartTime)
}

// Title is the label used when the process is listed alongside tasks.
func (p *Process) Title() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.ID
}

func (p *Process) exitCodeOr(def int) int {
	if p.ExitCode == nil {
		return def
	}
	return *p.ExitCode
}
