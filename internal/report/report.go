// Package report formats a finished process's outcome as a text block that
// can be handed across a transport boundary and parsed back losslessly.
//
// The layout is:
//
//	Process report: <process id>
//	status: <status>
//	exitCode: <exit code>
//
//	````text
//	<output, verbatim>
//	````
//
// The fenced block is omitted when there is no output. Its fence is one
// backtick longer than the longest backtick run in the output, and never
// shorter than three, so no output line can close it early.
package report

import (
	"strconv"
	"strings"

	"github.com/kazz187/delegate/pkg/cerr"
)

const (
	headerPrefix   = "Process report: "
	statusPrefix   = "status: "
	exitCodePrefix = "exitCode: "
	fenceChar      = '`'
	fenceInfo      = "text"
	minFenceLen    = 3
)

type Report struct {
	ProcessID string `json:"process_id"`
	Status    string `json:"status"`
	ExitCode  int    `json:"exit_code"`
	Output    string `json:"output"`
}

// Format renders a report. A single trailing newline is dropped from output
// before it is embedded. processID must not be empty for the result to parse.
func Format(processID, status string, exitCode int, output string) string {
	var b strings.Builder
	b.WriteString(headerPrefix + processID + "\n")
	b.WriteString(statusPrefix + status + "\n")
	b.WriteString(exitCodePrefix + strconv.Itoa(exitCode) + "\n")

	body := strings.TrimSuffix(output, "\n")
	if body == "" {
		return b.String()
	}
	fence := strings.Repeat(string(fenceChar), FenceLen(body))
	b.WriteString("\n")
	b.WriteString(fence + fenceInfo + "\n")
	b.WriteString(body + "\n")
	b.WriteString(fence + "\n")
	return b.String()
}

func (r Report) String() string {
	return Format(r.ProcessID, r.Status, r.ExitCode, r.Output)
}

// FenceLen returns the fence length needed to embed body.
func FenceLen(body string) int {
	longest, run := 0, 0
	for i := 0; i < len(body); i++ {
		if body[i] == fenceChar {
			run++
			longest = max(longest, run)
			continue
		}
		run = 0
	}
	return max(minFenceLen, longest+1)
}

// Parse reads a report produced by Format. It also reads reports written
// with a fixed three backtick fence, where a fence line inside the output is
// ambiguous: everything between the first fence line after the metadata and
// the last fence line of the same length is taken as output.
//
// ok is false if text does not start with a report header or its metadata
// lines are malformed.
func Parse(text string) (r Report, ok bool) {
	lines := strings.Split(text, "\n")
	if len(lines) < 3 {
		return Report{}, false
	}

	id, found := strings.CutPrefix(lines[0], headerPrefix)
	if !found || strings.TrimSpace(id) == "" {
		return Report{}, false
	}
	status, found := strings.CutPrefix(lines[1], statusPrefix)
	if !found {
		return Report{}, false
	}
	code, found := strings.CutPrefix(lines[2], exitCodePrefix)
	if !found {
		return Report{}, false
	}
	exitCode, err := strconv.Atoi(strings.TrimSpace(code))
	if err != nil {
		return Report{}, false
	}

	r = Report{ProcessID: id, Status: status, ExitCode: exitCode}
	r.Output = parseBody(lines[3:])
	return r, true
}

// ParseOrError is Parse with a typed error for callers that report failures.
func ParseOrError(text string) (Report, error) {
	r, ok := Parse(text)
	if !ok {
		return Report{}, cerr.NewError(cerr.InvalidArgument, "text is not a process report", nil)
	}
	return r, nil
}

func parseBody(lines []string) string {
	i := 0
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	if i == len(lines) {
		return ""
	}
	n, isFence := openingFence(lines[i])
	if !isFence {
		return ""
	}
	body := lines[i+1:]

	closing := strings.Repeat(string(fenceChar), n)
	for j := len(body) - 1; j >= 0; j-- {
		if body[j] == closing {
			return strings.Join(body[:j], "\n")
		}
	}
	// Unterminated block: keep everything, minus the final newline.
	if len(body) > 0 && body[len(body)-1] == "" {
		body = body[:len(body)-1]
	}
	return strings.Join(body, "\n")
}

// openingFence reports the fence length of line if it opens a fenced block:
// at least three backticks optionally followed by an info string.
func openingFence(line string) (int, bool) {
	n := 0
	for n < len(line) && line[n] == fenceChar {
		n++
	}
	if n < minFenceLen {
		return 0, false
	}
	if strings.ContainsRune(line[n:], fenceChar) {
		return 0, false
	}
	return n, true
}
