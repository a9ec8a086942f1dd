package main

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/delegate/internal/orchestrator"
	"github.com/kazz187/delegate/internal/question"
	"github.com/kazz187/delegate/internal/task"
)

func init() {
	color.NoColor = true
}

func TestParseAnswers(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    question.Answers
		wantErr bool
	}{
		{name: "single", pairs: []string{"Proceed?=yes"}, want: question.Answers{"Proceed?": "yes"}},
		{name: "value with equals", pairs: []string{"expr=a=b"}, want: question.Answers{"expr": "a=b"}},
		{name: "empty value", pairs: []string{"note="}, want: question.Answers{"note": ""}},
		{name: "missing separator", pairs: []string{"yes"}, wantErr: true},
		{name: "empty key", pairs: []string{"=yes"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAnswers(tt.pairs)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrintTerminationResults(t *testing.T) {
	var buf bytes.Buffer
	printTerminationResults(&buf, []orchestrator.TerminationResult{
		{TaskID: "A", Status: orchestrator.ResultTerminated, TerminatedTaskIDs: []string{"A", "B"}},
		{TaskID: "bash:", Status: orchestrator.ResultError, Error: "Invalid bash taskId."},
	})
	assert.Equal(t, "A terminated A,B\nbash: error: Invalid bash taskId.\n", buf.String())
}

func TestPrintTasksIndentsByDepth(t *testing.T) {
	var buf bytes.Buffer
	printTasks(&buf, []task.Info{
		{TaskID: "A", Status: "running", Depth: 1, ParentWorkspaceID: "W", Title: "parent"},
		{TaskID: "bash:p1", Status: "running", Depth: 2, ParentWorkspaceID: "A", Title: "make"},
	})
	out := buf.String()
	assert.Contains(t, out, "TASK ID")
	assert.Contains(t, out, "  parent\n")
	assert.Contains(t, out, "    make\n")
}

func TestWorkspacePrefixIsStable(t *testing.T) {
	assert.Equal(t, "[W1]", workspacePrefix("W1"))
	assert.Equal(t, workspacePrefix("W2"), workspacePrefix("W2"))
}
