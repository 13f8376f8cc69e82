package cli

import (
	"fmt"
	"strconv"
)

// UsageError reports a malformed invocation. No process is created when it is returned.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string {
	return "usage: " + e.Msg
}

func usagef(format string, args ...interface{}) error {
	return &UsageError{Msg: fmt.Sprintf(format, args...)}
}

// Invocation is the positional part of the command line
type Invocation struct {
	Target      string
	Modules     []string
	Passthrough []string
}

// ParseArgs splits <target> <count> <module_1..module_count> [passthrough...]
func ParseArgs(args []string) (Invocation, error) {
	if len(args) < 2 {
		return Invocation{}, usagef("expected <target> <moduleCount> [modules...] [args...], got %d argument(s)", len(args))
	}

	n, err := strconv.ParseUint(args[1], 10, 31)
	if err != nil {
		return Invocation{}, usagef("moduleCount must be a non-negative integer, got %q", args[1])
	}
	count := int(n)
	if args[0] == "" {
		return Invocation{}, usagef("target path is empty")
	}

	rest := args[2:]
	if len(rest) < count {
		return Invocation{}, usagef("moduleCount is %d but only %d module path(s) given", count, len(rest))
	}

	return Invocation{
		Target:      args[0],
		Modules:     append([]string(nil), rest[:count]...),
		Passthrough: append([]string(nil), rest[count:]...),
	}, nil
}
