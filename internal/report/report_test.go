package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/delegate/pkg/cerr"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		expected string
	}{
		{
			name:   "simple output",
			output: "line1\nline2\n",
			expected: "Process report: proc_123\nstatus: exited\nexitCode: 0\n\n" +
				"```text\nline1\nline2\n```\n",
		},
		{
			name:   "output containing a fence",
			output: "before\n```\nafter\n",
			expected: "Process report: proc_123\nstatus: exited\nexitCode: 0\n\n" +
				"````text\nbefore\n```\nafter\n````\n",
		},
		{
			name:     "empty output",
			output:   "",
			expected: "Process report: proc_123\nstatus: exited\nexitCode: 0\n",
		},
		{
			name:     "newline only output",
			output:   "\n",
			expected: "Process report: proc_123\nstatus: exited\nexitCode: 0\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Format("proc_123", "exited", 0, tt.output))
		})
	}
}

func TestFenceLen(t *testing.T) {
	tests := []struct {
		body string
		want int
	}{
		{body: "no fences", want: 3},
		{body: "one ` tick", want: 3},
		{body: "``", want: 3},
		{body: "```", want: 4},
		{body: "a ````` b\n```", want: 6},
		{body: "`x`x`", want: 3},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			assert.Equal(t, tt.want, FenceLen(tt.body))
		})
	}
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		status   string
		exitCode int
		output   string
		want     string
	}{
		{name: "lines", status: "exited", exitCode: 0, output: "line1\nline2\n", want: "line1\nline2"},
		{name: "fence in output", status: "exited", exitCode: 0, output: "before\n```\nafter\n", want: "before\n```\nafter"},
		{name: "long fence run", status: "error", exitCode: 2, output: "``````\n`````\n", want: "``````\n`````"},
		{name: "no trailing newline", status: "terminated", exitCode: -1, output: "partial", want: "partial"},
		{name: "only one newline stripped", status: "exited", exitCode: 1, output: "a\n\n", want: "a\n"},
		{name: "leading blank lines", status: "exited", exitCode: 0, output: "\n\nx", want: "\n\nx"},
		{name: "metadata lookalikes", status: "exited", exitCode: 3, output: "status: ok\nexitCode: 1\nProcess report: other", want: "status: ok\nexitCode: 1\nProcess report: other"},
		{name: "empty", status: "running", exitCode: 0, output: "", want: ""},
		{name: "fence with info string inside", status: "exited", exitCode: 0, output: "```go\nfmt.Println()\n```", want: "```go\nfmt.Println()\n```"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := Format("proc_123", tt.status, tt.exitCode, tt.output)
			got, ok := Parse(text)
			require.True(t, ok, text)
			assert.Equal(t, Report{
				ProcessID: "proc_123",
				Status:    tt.status,
				ExitCode:  tt.exitCode,
				Output:    tt.want,
			}, got)
		})
	}
}

func TestParseIgnoresMetadataInBody(t *testing.T) {
	text := Format("p1", "exited", 0, "status: ok\nexitCode: 1\n")
	r, ok := Parse(text)
	require.True(t, ok)
	assert.Equal(t, "exited", r.Status)
	assert.Equal(t, 0, r.ExitCode)
	assert.Equal(t, "status: ok\nexitCode: 1", r.Output)
}

func TestParseLegacy(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "plain legacy block",
			text: "Process report: p\nstatus: exited\nexitCode: 0\n\n```\nhello\n```\n",
			want: "hello",
		},
		{
			name: "legacy block with text info",
			text: "Process report: p\nstatus: exited\nexitCode: 0\n\n```text\nhello\n```\n",
			want: "hello",
		},
		{
			name: "ambiguous fence folds into body",
			text: "Process report: p\nstatus: exited\nexitCode: 0\n\n```text\nbefore\n```\nafter\n```\n",
			want: "before\n```\nafter",
		},
		{
			name: "several inner fences",
			text: "Process report: p\nstatus: exited\nexitCode: 0\n\n```\n```\nx\n```\n```\n",
			want: "```\nx\n```",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := Parse(tt.text)
			require.True(t, ok)
			assert.Equal(t, "p", r.ProcessID)
			assert.Equal(t, tt.want, r.Output)
		})
	}
}

func TestParseEdgeCases(t *testing.T) {
	t.Run("unterminated block runs to the end", func(t *testing.T) {
		r, ok := Parse("Process report: p\nstatus: running\nexitCode: 0\n\n````text\na\n```\nb\n")
		require.True(t, ok)
		assert.Equal(t, "a\n```\nb", r.Output)
	})
	t.Run("no block", func(t *testing.T) {
		r, ok := Parse("Process report: p\nstatus: exited\nexitCode: 0\n\ntrailing prose\n")
		require.True(t, ok)
		assert.Equal(t, "", r.Output)
	})
	t.Run("no trailing newline", func(t *testing.T) {
		r, ok := Parse("Process report: p\nstatus: exited\nexitCode: 7")
		require.True(t, ok)
		assert.Equal(t, 7, r.ExitCode)
	})
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "empty", text: ""},
		{name: "not a report", text: "hello world\nstatus: exited\nexitCode: 0\n"},
		{name: "missing process id", text: "Process report: \nstatus: exited\nexitCode: 0\n"},
		{name: "missing status", text: "Process report: p\nexitCode: 0\n\n"},
		{name: "swapped metadata", text: "Process report: p\nexitCode: 0\nstatus: exited\n"},
		{name: "non numeric exit code", text: "Process report: p\nstatus: exited\nexitCode: zero\n"},
		{name: "header not first", text: "\nProcess report: p\nstatus: exited\nexitCode: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := Parse(tt.text)
			assert.False(t, ok)

			_, err := ParseOrError(tt.text)
			require.Error(t, err)
			assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
		})
	}
}

func TestReportString(t *testing.T) {
	r := Report{ProcessID: "p", Status: "exited", ExitCode: 0, Output: strings.Repeat("`", 5)}
	got, ok := Parse(r.String())
	require.True(t, ok)
	assert.Equal(t, r, got)
}
