package process

import (
	"bytes"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/kazz187/delegate/pkg/cerr"
)

const maxDisplayNameLen = 80

func parseScript(script string) (*syntax.File, error) {
	parser := syntax.NewParser(syntax.KeepComments(false), syntax.Variant(syntax.LangBash))
	return parser.Parse(strings.NewReader(script), "")
}

// ValidateScript rejects empty scripts and scripts the shell could not parse.
func ValidateScript(script string) error {
	if strings.TrimSpace(script) == "" {
		return cerr.NewError(cerr.InvalidArgument, "script must not be empty", nil)
	}
	f, err := parseScript(script)
	if err != nil {
		return cerr.NewError(cerr.InvalidArgument, "script does not parse: "+err.Error(), err)
	}
	if len(f.Stmts) == 0 {
		return cerr.NewError(cerr.InvalidArgument, "script has no commands", nil)
	}
	return nil
}

// DisplayName renders the first statement of script on one line. Scripts
// with more statements get a trailing " ...".
func DisplayName(script string) string {
	f, err := parseScript(script)
	if err != nil || len(f.Stmts) == 0 {
		return truncate(firstLine(script))
	}

	var buf bytes.Buffer
	printer := syntax.NewPrinter(syntax.SingleLine(true))
	if err := printer.Print(&buf, f.Stmts[0]); err != nil {
		return truncate(firstLine(script))
	}
	name := strings.Join(strings.Fields(buf.String()), " ")
	if len(f.Stmts) > 1 {
		name += " ..."
	}
	return truncate(name)
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxDisplayNameLen {
		return s
	}
	return string(r[:maxDisplayNameLen-3]) + "..."
}
