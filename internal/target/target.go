// Package target describes the OS capabilities needed to launch a process,
// observe its loaded modules and drive a remote library load inside it.
package target

import (
	"errors"
	"time"
)

var (
	// ErrWaitTimeout is returned by Thread.Wait when the thread did not finish in time
	ErrWaitTimeout = errors.New("wait timed out")
	// ErrUnsupported is returned by the controller on platforms without remote thread support
	ErrUnsupported = errors.New("remote injection is not supported on this platform")
)

// Process is a launched target process and the OS handles held for it.
type Process struct {
	PID         uint32
	ThreadID    uint32
	Handle      uintptr // process handle
	Thread      uintptr // primary thread handle
	Dir         string
	CommandLine string
	Suspended   bool
}

// LaunchRequest describes how to create a target process.
type LaunchRequest struct {
	Path        string
	CommandLine string
	Dir         string
	Suspended   bool
}

// Charset selects the loader entry point and the width of the path characters.
type Charset int

const (
	// UTF16 uses LoadLibraryW with two byte characters
	UTF16 Charset = iota
	// ANSI uses LoadLibraryA with single byte characters
	ANSI
)

// Width returns the size in bytes of one character
func (c Charset) Width() int {
	if c == ANSI {
		return 1
	}
	return 2
}

func (c Charset) String() string {
	switch c {
	case UTF16:
		return "utf16"
	case ANSI:
		return "ansi"
	default:
		return "unknown"
	}
}

// Launcher creates processes.
type Launcher interface {
	Launch(req LaunchRequest) (*Process, error)
}

// ModuleLister enumerates the modules mapped into a process.
type ModuleLister interface {
	Modules(p *Process) ([]string, error)
}

// Thread is a thread created inside a target process.
type Thread interface {
	ID() uint32
	// Wait blocks until the thread exits or timeout elapses, returning ErrWaitTimeout in the latter case.
	Wait(timeout time.Duration) error
	ExitCode() (uint32, error)
	Terminate(code uint32) error
	Close() error
}

// Remote performs memory and thread operations inside a target process.
type Remote interface {
	Alloc(p *Process, size uintptr) (uintptr, error)
	Write(p *Process, addr uintptr, data []byte) (int, error)
	Free(p *Process, addr uintptr) error
	// LoaderEntry resolves the library loader in the injector's own process.
	// kernel32 is mapped at the same base in every process of a boot session.
	LoaderEntry(cs Charset) (uintptr, error)
	CreateThread(p *Process, start, arg uintptr) (Thread, error)
}

// Lifecycle resumes, terminates and releases a target process.
type Lifecycle interface {
	Resume(p *Process) error
	Terminate(p *Process, exitCode uint32) error
	Release(p *Process) error
}

// Controller is the full set of capabilities used by an injection session.
type Controller interface {
	Launcher
	ModuleLister
	Remote
	Lifecycle
}
