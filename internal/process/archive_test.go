package process

import (
	"context"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/delegate/internal/eventbus"
	"github.com/kazz187/delegate/internal/report"
	"github.com/kazz187/delegate/pkg/cerr"
	"github.com/kazz187/delegate/pkg/storage"
)

func TestArchiveSaveLoad(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	a := NewArchive(store)

	r := report.Report{ProcessID: "p1", Status: "exited", ExitCode: 1, Output: "x\n```\ny"}
	require.NoError(t, a.Save(ctx, r))

	got, err := a.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, r, got)

	_, err = a.Load(ctx, "missing")
	assert.True(t, cerr.IsCode(err, cerr.NotFound))

	require.NoError(t, store.Write(ctx, "reports/bad.txt", []byte("garbage")))
	_, err = a.Load(ctx, "bad")
	assert.True(t, cerr.IsCode(err, cerr.Internal))
}

func TestArchiveReadsLegacyReports(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	legacy := "Process report: old\nstatus: exited\nexitCode: 0\n\n```text\nbefore\n```\nafter\n```\n"
	require.NoError(t, store.Write(ctx, "reports/old.txt", []byte(legacy)))

	got, err := NewArchive(store).Load(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, "before\n```\nafter", got.Output)
}

func TestServerReportFallsBackToArchive(t *testing.T) {
	ctx := context.Background()
	archive := NewArchive(storage.NewMemoryStorage())
	bus := eventbus.New()
	_, events := bus.Subscribe(8)

	sup := NewSupervisor(
		WithRetainFinished(20*time.Millisecond),
		WithExitHandler(ArchiveOnExit(archive)),
		WithExitHandler(PublishOnExit(bus)),
	)
	srv := NewServer(sup, archive, bus)

	started, err := srv.StartProcess(ctx, connect.NewRequest(&StartProcessRequest{
		WorkspaceID: "ws",
		Script:      "printf 'a\\nb\\n'",
	}))
	require.NoError(t, err)
	id := started.Msg.Process.ProcessID
	assert.Equal(t, "bash:"+id, started.Msg.TaskID)
	assert.Equal(t, "printf 'a\\nb\\n'", started.Msg.Process.DisplayName)

	var sawExit bool
	timeout := time.After(testWait)
	for !sawExit {
		select {
		case ev := <-events:
			sawExit = ev.Type == eventbus.EventTypeProcessExited && ev.ResourceID == id
		case <-timeout:
			t.Fatal("no exit event")
		}
	}
	assert.Eventually(t, func() bool { return sup.Get(id) == nil }, testWait, 10*time.Millisecond)

	resp, err := srv.GetProcessReport(ctx, connect.NewRequest(&GetProcessReportRequest{ProcessID: "bash:" + id}))
	require.NoError(t, err)
	assert.Equal(t, report.Report{ProcessID: id, Status: "exited", ExitCode: 0, Output: "a\nb"}, resp.Msg.Report)
	assert.Equal(t, resp.Msg.Report.String(), resp.Msg.Text)

	_, err = srv.GetProcessReport(ctx, connect.NewRequest(&GetProcessReportRequest{ProcessID: "nope"}))
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
}

func TestServerListProcesses(t *testing.T) {
	ctx := context.Background()
	sup := NewSupervisor()
	srv := NewServer(sup, nil, nil)

	p := startProcess(t, sup, "ws", "echo hi")
	waitProcess(t, sup, p.ID)

	resp, err := srv.ListProcesses(ctx, connect.NewRequest(&ListProcessesRequest{WorkspaceID: "ws"}))
	require.NoError(t, err)
	require.Len(t, resp.Msg.Processes, 1)
	info := resp.Msg.Processes[0]
	assert.Equal(t, p.ID, info.ProcessID)
	assert.Equal(t, StatusExited, info.Status)
	assert.Equal(t, "echo hi", info.Script)
	assert.Equal(t, "echo hi", info.DisplayName)
	require.NotNil(t, info.ExitCode)
	assert.Equal(t, 0, *info.ExitCode)
	assert.GreaterOrEqual(t, info.UptimeMS, int64(0))

	resp, err = srv.ListProcesses(ctx, connect.NewRequest(&ListProcessesRequest{WorkspaceID: "other"}))
	require.NoError(t, err)
	assert.Empty(t, resp.Msg.Processes)
}

func TestServerParseReport(t *testing.T) {
	srv := NewServer(NewSupervisor(), nil, nil)
	ctx := context.Background()

	resp, err := srv.ParseReport(ctx, connect.NewRequest(&ParseReportRequest{
		Text: report.Format("proc_123", "exited", 0, "before\n```\nafter\n"),
	}))
	require.NoError(t, err)
	assert.Equal(t, "before\n```\nafter", resp.Msg.Report.Output)

	_, err = srv.ParseReport(ctx, connect.NewRequest(&ParseReportRequest{Text: "hello"}))
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
}
