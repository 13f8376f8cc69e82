// Package targettest provides a scripted in-memory target.Controller for tests.
package targettest

import (
	"errors"
	"fmt"
	"time"

	"github.com/whispin/modloader/internal/target"
)

// Loader entry addresses handed out by the fake
const (
	LoadLibraryW uintptr = 0x7ffa0000
	LoadLibraryA uintptr = 0x7ffa1000
)

// Behavior scripts one injection attempt. Attempts are counted by Alloc calls.
type Behavior struct {
	AllocErr     error
	WriteErr     error
	ShortWrite   bool
	ThreadErr    error
	Hang         bool // remote thread never finishes
	LoaderFails  bool // loader returns a NULL module handle
	ExitCode     uint32
	ExitCodeErr  error
	TerminateErr error
	FreeErr      error
	AfterWrite   func() // runs once the path has been written
}

// Poll scripts one module enumeration.
type Poll struct {
	Modules []string
	Err     error
}

// Fake implements target.Controller without touching the OS.
type Fake struct {
	PID       uint32
	LaunchErr error
	LoaderErr error
	ResumeErr error
	Script    []Behavior
	Polls     []Poll

	// Recorded calls
	Launches     []target.LaunchRequest
	Allocs       []uintptr
	Writes       [][]byte
	Frees        []uintptr
	Threads      []*Thread
	ModuleCalls  int
	Resumes      int
	Terminations []uint32
	Releases     int
	Calls        []string

	memory  map[uintptr][]byte
	next    uintptr
	current Behavior
}

// New creates a Fake with the given PID
func New(pid uint32) *Fake {
	return &Fake{PID: pid}
}

func (f *Fake) record(call string) {
	f.Calls = append(f.Calls, call)
}

// Launch implements target.Launcher
func (f *Fake) Launch(req target.LaunchRequest) (*target.Process, error) {
	f.record("launch")
	f.Launches = append(f.Launches, req)
	if f.LaunchErr != nil {
		return nil, f.LaunchErr
	}
	return &target.Process{
		PID:         f.PID,
		ThreadID:    f.PID + 4,
		Handle:      0x100,
		Thread:      0x104,
		Dir:         req.Dir,
		CommandLine: req.CommandLine,
		Suspended:   req.Suspended,
	}, nil
}

// Modules implements target.ModuleLister
func (f *Fake) Modules(p *target.Process) ([]string, error) {
	f.record("modules")
	call := f.ModuleCalls
	f.ModuleCalls++
	if len(f.Polls) == 0 {
		return nil, nil
	}
	if call >= len(f.Polls) {
		return f.Polls[len(f.Polls)-1].Modules, nil
	}
	return f.Polls[call].Modules, f.Polls[call].Err
}

// Alloc implements target.Remote and starts the next scripted attempt
func (f *Fake) Alloc(p *target.Process, size uintptr) (uintptr, error) {
	f.record("alloc")
	attempt := len(f.Allocs)
	f.Allocs = append(f.Allocs, size)
	f.current = Behavior{}
	if attempt < len(f.Script) {
		f.current = f.Script[attempt]
	}
	switch {
	case f.current.LoaderFails:
		f.current.ExitCode = 0
	case f.current.ExitCode == 0:
		f.current.ExitCode = uint32(0x10000000 + attempt)
	}
	if f.current.AllocErr != nil {
		return 0, f.current.AllocErr
	}
	if f.memory == nil {
		f.memory = make(map[uintptr][]byte)
		f.next = 0x20000
	}
	addr := f.next
	f.next += 0x1000
	f.memory[addr] = make([]byte, size)
	return addr, nil
}

// Write implements target.Remote
func (f *Fake) Write(p *target.Process, addr uintptr, data []byte) (int, error) {
	f.record("write")
	f.Writes = append(f.Writes, append([]byte(nil), data...))
	if f.current.WriteErr != nil {
		return 0, f.current.WriteErr
	}
	block, ok := f.memory[addr]
	if !ok {
		return 0, fmt.Errorf("address 0x%x not allocated", addr)
	}
	if len(data) > len(block) {
		return 0, errors.New("write past end of block")
	}
	n := copy(block, data)
	if f.current.AfterWrite != nil {
		f.current.AfterWrite()
	}
	if f.current.ShortWrite {
		n--
	}
	return n, nil
}

// Free implements target.Remote
func (f *Fake) Free(p *target.Process, addr uintptr) error {
	f.record("free")
	f.Frees = append(f.Frees, addr)
	if f.current.FreeErr != nil {
		return f.current.FreeErr
	}
	delete(f.memory, addr)
	return nil
}

// LoaderEntry implements target.Remote
func (f *Fake) LoaderEntry(cs target.Charset) (uintptr, error) {
	if f.LoaderErr != nil {
		return 0, f.LoaderErr
	}
	if cs == target.ANSI {
		return LoadLibraryA, nil
	}
	return LoadLibraryW, nil
}

// CreateThread implements target.Remote
func (f *Fake) CreateThread(p *target.Process, start, arg uintptr) (target.Thread, error) {
	f.record("thread")
	if f.current.ThreadErr != nil {
		return nil, f.current.ThreadErr
	}
	t := &Thread{
		id:       uint32(0x500 + len(f.Threads)),
		Start:    start,
		Arg:      arg,
		behavior: f.current,
	}
	f.Threads = append(f.Threads, t)
	return t, nil
}

// Resume implements target.Lifecycle
func (f *Fake) Resume(p *target.Process) error {
	f.record("resume")
	if f.ResumeErr != nil {
		return f.ResumeErr
	}
	f.Resumes++
	p.Suspended = false
	return nil
}

// Terminate implements target.Lifecycle
func (f *Fake) Terminate(p *target.Process, exitCode uint32) error {
	f.record("terminate")
	f.Terminations = append(f.Terminations, exitCode)
	return nil
}

// Release implements target.Lifecycle
func (f *Fake) Release(p *target.Process) error {
	f.record("release")
	f.Releases++
	return nil
}

// Outstanding returns the number of remote blocks that were never freed
func (f *Fake) Outstanding() int {
	return len(f.memory)
}

// Count returns how many times call was recorded
func (f *Fake) Count(call string) int {
	n := 0
	for _, c := range f.Calls {
		if c == call {
			n++
		}
	}
	return n
}

// Thread is a fake remote thread.
type Thread struct {
	id         uint32
	Start      uintptr
	Arg        uintptr
	Waited     []time.Duration
	Terminated bool
	Closed     bool
	behavior   Behavior
}

// ID implements target.Thread
func (t *Thread) ID() uint32 {
	return t.id
}

// Wait implements target.Thread
func (t *Thread) Wait(timeout time.Duration) error {
	t.Waited = append(t.Waited, timeout)
	if t.behavior.Hang && !t.Terminated {
		return target.ErrWaitTimeout
	}
	return nil
}

// ExitCode implements target.Thread
func (t *Thread) ExitCode() (uint32, error) {
	if t.behavior.ExitCodeErr != nil {
		return 0, t.behavior.ExitCodeErr
	}
	return t.behavior.ExitCode, nil
}

// Terminate implements target.Thread
func (t *Thread) Terminate(code uint32) error {
	if t.behavior.TerminateErr != nil {
		return t.behavior.TerminateErr
	}
	t.Terminated = true
	return nil
}

// Close implements target.Thread
func (t *Thread) Close() error {
	t.Closed = true
	return nil
}
