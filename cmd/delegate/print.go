package main

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/kazz187/delegate/internal/eventbus"
	"github.com/kazz187/delegate/internal/orchestrator"
	"github.com/kazz187/delegate/internal/process"
	"github.com/kazz187/delegate/internal/question"
	"github.com/kazz187/delegate/internal/task"
)

func colorStatus(status string) string {
	switch status {
	case "running":
		return color.CyanString(status)
	case "queued", "awaiting_report":
		return color.YellowString(status)
	case "reported", "exited", "terminated":
		return color.GreenString(status)
	case "error", "not_found", "invalid_scope":
		return color.RedString(status)
	default:
		return status
	}
}

var workspaceColors = []*color.Color{
	color.New(color.FgHiRed),
	color.New(color.FgHiGreen),
	color.New(color.FgHiYellow),
	color.New(color.FgHiBlue),
	color.New(color.FgHiMagenta),
	color.New(color.FgHiCyan),
	color.New(color.FgRed),
	color.New(color.FgGreen),
	color.New(color.FgYellow),
	color.New(color.FgBlue),
	color.New(color.FgMagenta),
	color.New(color.FgCyan),
}

// workspacePrefix renders "[id]" in a color that is stable per workspace.
func workspacePrefix(workspaceID string) string {
	h := fnv.New32a()
	h.Write([]byte(workspaceID))
	c := workspaceColors[h.Sum32()%uint32(len(workspaceColors))]
	return c.Sprintf("[%s]", workspaceID)
}

func printTasks(w io.Writer, tasks []task.Info) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK ID\tSTATUS\tDEPTH\tPARENT\tTITLE")
	for _, t := range tasks {
		indent := strings.Repeat("  ", max(t.Depth-1, 0))
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s%s\n", t.TaskID, colorStatus(t.Status), t.Depth, t.ParentWorkspaceID, indent, t.Title)
	}
	tw.Flush()
}

func printTask(w io.Writer, t task.Info) {
	fmt.Fprintf(w, "%s %s %s\n", t.TaskID, colorStatus(t.Status), t.Title)
}

func printTerminationResults(w io.Writer, results []orchestrator.TerminationResult) {
	for _, r := range results {
		line := fmt.Sprintf("%s %s", r.TaskID, colorStatus(string(r.Status)))
		if len(r.TerminatedTaskIDs) > 0 {
			line += " " + strings.Join(r.TerminatedTaskIDs, ",")
		}
		if r.Error != "" {
			line += ": " + r.Error
		}
		fmt.Fprintln(w, line)
	}
}

func printProcesses(w io.Writer, procs []process.Info) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROCESS ID\tSTATUS\tEXIT\tWORKSPACE\tUPTIME\tNAME")
	for _, p := range procs {
		exit := "-"
		if p.ExitCode != nil {
			exit = fmt.Sprint(*p.ExitCode)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%dms\t%s\n", p.ProcessID, colorStatus(string(p.Status)), exit, p.WorkspaceID, p.UptimeMS, p.DisplayName)
	}
	tw.Flush()
}

func printOutput(w io.Writer, resp *orchestrator.GetTaskOutputResponse) {
	for _, line := range resp.Output {
		fmt.Fprintln(w, line)
	}
	summary := colorStatus(string(resp.Status))
	if resp.ExitCode != nil {
		summary += fmt.Sprintf(" (exit %d)", *resp.ExitCode)
	}
	if resp.TimedOut {
		summary += color.YellowString(" timed out")
	}
	fmt.Fprintln(w, color.HiBlackString("--")+" "+summary)
}

func printPending(w io.Writer, pending []question.Pending) {
	for _, p := range pending {
		fmt.Fprintf(w, "%s %s %s\n", color.MagentaString(p.CallID), p.WorkspaceID, p.CreatedAt.Format("15:04:05"))
		for _, q := range p.Questions {
			fmt.Fprintf(w, "  ? %s\n", q.Question)
			for _, o := range q.Options {
				fmt.Fprintf(w, "    - %s\n", o.Label)
			}
		}
	}
}

func printAnswers(w io.Writer, answers question.Answers) {
	keys := make([]string, 0, len(answers))
	for k := range answers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s: %s\n", k, answers[k])
	}
}

func printEvent(w io.Writer, e *eventbus.Event) error {
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s %s %s %s %s\n",
		e.CreatedAt.Format("15:04:05.000"), workspacePrefix(e.WorkspaceID), color.BlueString(string(e.Type)), e.ResourceID, meta)
	return nil
}

// parseAnswers reads "question=answer" pairs.
func parseAnswers(pairs []string) (question.Answers, error) {
	answers := make(question.Answers, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid answer %q, expected question=answer", pair)
		}
		answers[k] = v
	}
	return answers, nil
}
