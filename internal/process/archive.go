package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/kazz187/delegate/internal/eventbus"
	"github.com/kazz187/delegate/internal/report"
	"github.com/kazz187/delegate/pkg/cerr"
	"github.com/kazz187/delegate/pkg/storage"
)

const reportsPrefix = "reports"

// Archive keeps the reports of finished processes in storage so they remain
// readable after the supervisor has pruned them.
type Archive struct {
	storage storage.Storage
}

func NewArchive(s storage.Storage) *Archive {
	return &Archive{storage: s}
}

func reportPath(id string) string {
	return fmt.Sprintf("%s/%s.txt", reportsPrefix, id)
}

func (a *Archive) Save(ctx context.Context, r report.Report) error {
	if err := a.storage.Write(ctx, reportPath(r.ProcessID), []byte(r.String())); err != nil {
		return cerr.WrapStorageWriteError("report", err)
	}
	return nil
}

func (a *Archive) Load(ctx context.Context, id string) (report.Report, error) {
	data, err := a.storage.Read(ctx, reportPath(id))
	if err != nil {
		return report.Report{}, cerr.WrapStorageReadError("report", err)
	}
	r, ok := report.Parse(string(data))
	if !ok {
		return report.Report{}, cerr.NewError(cerr.Internal, "server error", errors.New("archived report is malformed: "+id))
	}
	return r, nil
}

// ReportOf builds the report of a process from its captured output lines.
func ReportOf(p Process, lines []string) report.Report {
	return report.Report{
		ProcessID: p.ID,
		Status:    string(p.Status),
		ExitCode:  p.exitCodeOr(exitCodeStartFailure),
		Output:    strings.Join(lines, "\n"),
	}
}

// ArchiveOnExit stores the report of every finished process.
func ArchiveOnExit(a *Archive) ExitHandler {
	return func(p Process, output []string) {
		if err := a.Save(context.Background(), ReportOf(p, output)); err != nil {
			slog.Error("failed to archive process report", "process_id", p.ID, "error", err)
		}
	}
}

// PublishOnExit announces finished processes on the event bus.
func PublishOnExit(bus *eventbus.Bus) ExitHandler {
	return func(p Process, _ []string) {
		bus.PublishNew(eventbus.EventTypeProcessExited, p.ID, p.WorkspaceID, map[string]string{
			"status":    string(p.Status),
			"exit_code": strconv.Itoa(p.exitCodeOr(exitCodeStartFailure)),
		})
	}
}
