package process

import (
	"context"
	"time"

	"connectrpc.com/connect"

	"github.com/kazz187/delegate/internal/eventbus"
	"github.com/kazz187/delegate/internal/report"
	"github.com/kazz187/delegate/internal/taskid"
	"github.com/kazz187/delegate/pkg/cerr"
)

var _ ServiceHandler = (*Server)(nil)

type Server struct {
	supervisor *Supervisor
	archive    *Archive
	eventBus   *eventbus.Bus
	now        func() time.Time
}

func NewServer(supervisor *Supervisor, archive *Archive, eventBus *eventbus.Bus) *Server {
	if supervisor == nil {
		panic("process: nil supervisor")
	}
	return &Server{
		supervisor: supervisor,
		archive:    archive,
		eventBus:   eventBus,
		now:        time.Now,
	}
}

func (s *Server) StartProcess(ctx context.Context, req *connect.Request[StartProcessRequest]) (*connect.Response[StartProcessResponse], error) {
	p, err := s.supervisor.Start(ctx, req.Msg.WorkspaceID, req.Msg.Script, req.Msg.DisplayName)
	if err != nil {
		return nil, err
	}

	s.eventBus.PublishNew(eventbus.EventTypeProcessStarted, p.ID, p.WorkspaceID, map[string]string{
		"display_name": p.DisplayName,
	})

	return connect.NewResponse(&StartProcessResponse{
		Process: toInfo(*p, s.now()),
		TaskID:  taskid.MustEncode(p.ID),
	}), nil
}

func (s *Server) ListProcesses(ctx context.Context, req *connect.Request[ListProcessesRequest]) (*connect.Response[ListProcessesResponse], error) {
	now := s.now()
	procs := s.supervisor.List(req.Msg.WorkspaceID)
	infos := make([]Info, len(procs))
	for i, p := range procs {
		infos[i] = toInfo(p, now)
	}
	return connect.NewResponse(&ListProcessesResponse{Processes: infos}), nil
}

func (s *Server) GetProcessReport(ctx context.Context, req *connect.Request[GetProcessReportRequest]) (*connect.Response[GetProcessReportResponse], error) {
	r, err := s.Report(ctx, req.Msg.ProcessID)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&GetProcessReportResponse{
		Text:   r.String(),
		Report: r,
	}), nil
}

func (s *Server) ParseReport(ctx context.Context, req *connect.Request[ParseReportRequest]) (*connect.Response[ParseReportResponse], error) {
	r, err := report.ParseOrError(req.Msg.Text)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&ParseReportResponse{Report: r}), nil
}

// Report returns the report of a live process, falling back to the archive
// for processes the supervisor no longer holds. Composite task ids are
// accepted as well.
func (s *Server) Report(ctx context.Context, id string) (report.Report, error) {
	if decoded, ok := taskid.Decode(id); ok {
		id = decoded
	}
	if id == "" {
		return report.Report{}, cerr.NewError(cerr.InvalidArgument, "process id is required", nil)
	}
	if p := s.supervisor.Get(id); p != nil {
		lines, err := s.supervisor.Output(id)
		if err != nil {
			return report.Report{}, err
		}
		return ReportOf(*p, lines), nil
	}
	if s.archive == nil {
		return report.Report{}, cerr.NewError(cerr.NotFound, "process not found: "+id, nil)
	}
	return s.archive.Load(ctx, id)
}
