package orchestrator

import (
	"fmt"
	"strings"

	"github.com/whispin/modloader/internal/process"
)

// Policy decides what a failed module injection means for the session
type Policy int

const (
	// FailFast stops at the first failed module and terminates the target
	FailFast Policy = iota
	// BestEffort attempts every module and leaves the target running
	BestEffort
)

func (p Policy) String() string {
	switch p {
	case FailFast:
		return "fail-fast"
	case BestEffort:
		return "best-effort"
	default:
		return "unknown"
	}
}

// ParsePolicy parses "fail-fast" or "best-effort"
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fail-fast", "failfast", "a":
		return FailFast, nil
	case "best-effort", "besteffort", "b":
		return BestEffort, nil
	default:
		return 0, fmt.Errorf("unknown failure policy %q", s)
	}
}

// DefaultPolicy is FailFast for frozen launches and BestEffort for running ones
func DefaultPolicy(mode process.Mode) Policy {
	if mode == process.Running {
		return BestEffort
	}
	return FailFast
}

// State is a step of an injection session
type State int

const (
	Launching State = iota
	WaitingReady
	Injecting
	Finalizing
	Done
)

func (s State) String() string {
	switch s {
	case Launching:
		return "launching"
	case WaitingReady:
		return "waiting-ready"
	case Injecting:
		return "injecting"
	case Finalizing:
		return "finalizing"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Status is the overall result of a session
type Status int

const (
	Success Status = iota
	LaunchFailed
	ReadinessTimedOut
	TargetExited
	Aborted
	ResumeFailed
	Canceled
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case LaunchFailed:
		return "launch failed"
	case ReadinessTimedOut:
		return "readiness timed out"
	case TargetExited:
		return "target exited"
	case Aborted:
		return "aborted"
	case ResumeFailed:
		return "resume failed"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}
