// Package taskid maps background process ids into the task id namespace.
//
// A composite task id is Prefix followed by a process id. Any other string is
// a native task id owned by the task registry.
package taskid

import (
	"strings"

	"github.com/kazz187/delegate/pkg/cerr"
)

const Prefix = "bash:"

// Encode wraps a process id into a composite task id. Callers must not pass
// ids that are already composite.
func Encode(processID string) (string, error) {
	trimmed := strings.TrimSpace(processID)
	if trimmed == "" {
		return "", cerr.NewError(cerr.InvalidArgument, "process id must not be empty", nil)
	}
	return Prefix + trimmed, nil
}

// MustEncode is Encode for ids already known to be valid, such as ids handed
// out by the supervisor.
func MustEncode(processID string) string {
	id, err := Encode(processID)
	if err != nil {
		panic(err)
	}
	return id
}

// Decode returns the process id embedded in taskID. ok is false when taskID
// does not carry the prefix or nothing but whitespace follows it.
func Decode(taskID string) (processID string, ok bool) {
	rest, found := strings.CutPrefix(taskID, Prefix)
	if !found {
		return "", false
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "", false
	}
	return rest, true
}

func IsComposite(taskID string) bool {
	_, ok := Decode(taskID)
	return ok
}

// HasPrefix reports whether taskID claims the process namespace, whether or
// not it decodes to a usable process id.
func HasPrefix(taskID string) bool {
	return strings.HasPrefix(taskID, Prefix)
}
