package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"

	"github.com/kazz187/delegate/internal/config"
	"github.com/kazz187/delegate/internal/event"
	"github.com/kazz187/delegate/internal/eventbus"
	"github.com/kazz187/delegate/internal/orchestrator"
	"github.com/kazz187/delegate/internal/process"
	"github.com/kazz187/delegate/internal/question"
	"github.com/kazz187/delegate/internal/task"
)

var (
	app       = kingpin.New("delegate", "Command line client for the delegate server")
	workspace = app.Flag("workspace", "Workspace id (DELEGATE_WORKSPACE_ID)").Short('w').String()

	tasksCmd      = app.Command("tasks", "List tasks and processes below the workspace")
	tasksStatuses = tasksCmd.Flag("status", "Status filter, repeatable").Strings()

	killCmd = app.Command("kill", "Terminate tasks or bash processes below the workspace")
	killIDs = killCmd.Arg("ids", "Task ids").Required().Strings()

	outputCmd     = app.Command("output", "Read new output of a bash task")
	outputID      = outputCmd.Arg("id", "Task id (bash:<process id>)").Required().String()
	outputInclude = outputCmd.Flag("include", "Only lines matching this pattern").String()
	outputExclude = outputCmd.Flag("exclude", "Drop lines matching this pattern").String()
	outputTimeout = outputCmd.Flag("timeout", "Seconds to wait for new output").Int()

	createCmd   = app.Command("create", "Create a task under the workspace")
	createTitle = createCmd.Arg("title", "Task title").Required().String()

	statusCmd   = app.Command("status", "Change a task's status")
	statusID    = statusCmd.Arg("id", "Task id").Required().String()
	statusValue = statusCmd.Arg("status", "New status").Required().String()

	completeCmd = app.Command("complete", "Mark a task reported once its subtree is idle")
	completeID  = completeCmd.Arg("id", "Task id").Required().String()

	startCmd    = app.Command("start", "Start a shell script in the workspace")
	startScript = startCmd.Arg("script", "Shell script").Required().String()
	startName   = startCmd.Flag("name", "Display name").String()

	processesCmd = app.Command("processes", "List processes of the workspace")

	reportCmd = app.Command("report", "Print a process report")
	reportID  = reportCmd.Arg("id", "Process or task id").Required().String()

	askCmd      = app.Command("ask", "Ask a question and wait for the answer")
	askQuestion = askCmd.Arg("question", "Question text").Required().String()
	askOptions  = askCmd.Flag("option", "Answer option, repeatable").Strings()
	askCallID   = askCmd.Flag("call-id", "Call id").String()

	answerCmd     = app.Command("answer", "Answer a pending question")
	answerCallID  = answerCmd.Arg("call-id", "Call id").Required().String()
	answerAnswers = answerCmd.Arg("answers", "question=answer pairs").Required().Strings()

	cancelCmd    = app.Command("cancel", "Cancel a pending question")
	cancelCallID = cancelCmd.Arg("call-id", "Call id").Required().String()
	cancelReason = cancelCmd.Flag("reason", "Reason").String()

	pendingCmd = app.Command("pending", "List pending questions")

	eventsCmd         = app.Command("events", "Stream server events")
	eventsTypes       = eventsCmd.Flag("type", "Event type filter, repeatable").Strings()
	eventsDescendants = eventsCmd.Flag("descendants", "Include events from descendant workspaces").Bool()
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	env, err := config.LoadClientEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if *workspace == "" {
		*workspace = env.WorkspaceID
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := dispatch(ctx, command, newClients(env)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func dispatch(ctx context.Context, command string, c *clients) error {
	switch command {
	case tasksCmd.FullCommand():
		resp, err := c.orchestrator.ListTasks(ctx, connect.NewRequest(&orchestrator.ListTasksRequest{
			WorkspaceID: *workspace,
			Statuses:    *tasksStatuses,
		}))
		if err != nil {
			return err
		}
		printTasks(os.Stdout, resp.Msg.Tasks)

	case killCmd.FullCommand():
		resp, err := c.orchestrator.TerminateTasks(ctx, connect.NewRequest(&orchestrator.TerminateTasksRequest{
			WorkspaceID: *workspace,
			TaskIDs:     *killIDs,
		}))
		if err != nil {
			return err
		}
		printTerminationResults(os.Stdout, resp.Msg.Results)

	case outputCmd.FullCommand():
		resp, err := c.orchestrator.GetTaskOutput(ctx, connect.NewRequest(&orchestrator.GetTaskOutputRequest{
			WorkspaceID:    *workspace,
			TaskID:         *outputID,
			Include:        *outputInclude,
			Exclude:        *outputExclude,
			TimeoutSeconds: *outputTimeout,
		}))
		if err != nil {
			return err
		}
		printOutput(os.Stdout, resp.Msg)

	case createCmd.FullCommand():
		resp, err := c.task.CreateTask(ctx, connect.NewRequest(&task.CreateTaskRequest{
			ParentWorkspaceID: *workspace,
			Title:             *createTitle,
		}))
		if err != nil {
			return err
		}
		printTask(os.Stdout, resp.Msg.Task)

	case statusCmd.FullCommand():
		resp, err := c.task.UpdateTaskStatus(ctx, connect.NewRequest(&task.UpdateTaskStatusRequest{
			TaskID: *statusID,
			Status: *statusValue,
		}))
		if err != nil {
			return err
		}
		printTask(os.Stdout, resp.Msg.Task)

	case completeCmd.FullCommand():
		resp, err := c.orchestrator.CompleteTask(ctx, connect.NewRequest(&orchestrator.CompleteTaskRequest{
			TaskID: *completeID,
		}))
		if err != nil {
			return err
		}
		printTask(os.Stdout, resp.Msg.Task)

	case startCmd.FullCommand():
		resp, err := c.process.StartProcess(ctx, connect.NewRequest(&process.StartProcessRequest{
			WorkspaceID: *workspace,
			Script:      *startScript,
			DisplayName: *startName,
		}))
		if err != nil {
			return err
		}
		fmt.Println(resp.Msg.TaskID)

	case processesCmd.FullCommand():
		resp, err := c.process.ListProcesses(ctx, connect.NewRequest(&process.ListProcessesRequest{
			WorkspaceID: *workspace,
		}))
		if err != nil {
			return err
		}
		printProcesses(os.Stdout, resp.Msg.Processes)

	case reportCmd.FullCommand():
		resp, err := c.process.GetProcessReport(ctx, connect.NewRequest(&process.GetProcessReportRequest{
			ProcessID: *reportID,
		}))
		if err != nil {
			return err
		}
		fmt.Print(resp.Msg.Text)

	case askCmd.FullCommand():
		q := question.Question{Question: *askQuestion}
		for _, o := range *askOptions {
			q.Options = append(q.Options, question.Option{Label: o})
		}
		resp, err := c.question.AskQuestions(ctx, connect.NewRequest(&question.AskQuestionsRequest{
			WorkspaceID: *workspace,
			CallID:      *askCallID,
			Questions:   []question.Question{q},
		}))
		if err != nil {
			return err
		}
		printAnswers(os.Stdout, resp.Msg.Answers)

	case answerCmd.FullCommand():
		answers, err := parseAnswers(*answerAnswers)
		if err != nil {
			return err
		}
		resp, err := c.question.AnswerQuestions(ctx, connect.NewRequest(&question.AnswerQuestionsRequest{
			WorkspaceID: *workspace,
			CallID:      *answerCallID,
			Answers:     answers,
		}))
		if err != nil {
			return err
		}
		if !resp.Msg.Resolved {
			return fmt.Errorf("question %s is no longer pending", *answerCallID)
		}

	case cancelCmd.FullCommand():
		resp, err := c.question.CancelQuestions(ctx, connect.NewRequest(&question.CancelQuestionsRequest{
			WorkspaceID: *workspace,
			CallID:      *cancelCallID,
			Reason:      *cancelReason,
		}))
		if err != nil {
			return err
		}
		if !resp.Msg.Cancelled {
			return fmt.Errorf("question %s is no longer pending", *cancelCallID)
		}

	case pendingCmd.FullCommand():
		resp, err := c.question.ListPendingQuestions(ctx, connect.NewRequest(&question.ListPendingQuestionsRequest{
			WorkspaceID: *workspace,
		}))
		if err != nil {
			return err
		}
		printPending(os.Stdout, resp.Msg.Pending)

	case eventsCmd.FullCommand():
		return watchEvents(ctx, c)
	}
	return nil
}

func watchEvents(ctx context.Context, c *clients) error {
	types := make([]eventbus.EventType, 0, len(*eventsTypes))
	for _, t := range *eventsTypes {
		types = append(types, eventbus.EventType(t))
	}
	stream, err := c.event.WatchEvents(ctx, connect.NewRequest(&event.WatchEventsRequest{
		WorkspaceID:        *workspace,
		IncludeDescendants: *eventsDescendants,
		EventTypes:         types,
	}))
	if err != nil {
		return err
	}
	defer stream.Close()

	for stream.Receive() {
		if err := printEvent(os.Stdout, stream.Msg()); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
