//go:build windows

package target

import (
	"errors"
	"fmt"
	"time"
	"unsafe"

	"go.uber.org/multierr"
	"golang.org/x/sys/windows"
)

// Windows API function calls
var (
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procVirtualAllocEx     = kernel32.NewProc("VirtualAllocEx")
	procVirtualFreeEx      = kernel32.NewProc("VirtualFreeEx")
	procCreateRemoteThread = kernel32.NewProc("CreateRemoteThread")
	procGetExitCodeThread  = kernel32.NewProc("GetExitCodeThread")
	procTerminateThread    = kernel32.NewProc("TerminateThread")
	procLoadLibraryW       = kernel32.NewProc("LoadLibraryW")
	procLoadLibraryA       = kernel32.NewProc("LoadLibraryA")
)

const waitTimeout = 0x00000102

// VirtualAllocEx allocates memory in remote process
func VirtualAllocEx(process windows.Handle, lpAddress uintptr, dwSize uintptr, flAllocationType uint32, flProtect uint32) (uintptr, error) {
	r1, _, e1 := procVirtualAllocEx.Call(
		uintptr(process),
		lpAddress,
		dwSize,
		uintptr(flAllocationType),
		uintptr(flProtect))
	if r1 == 0 {
		return 0, e1
	}
	return r1, nil
}

// VirtualFreeEx frees memory in remote process
func VirtualFreeEx(process windows.Handle, lpAddress uintptr, dwSize uintptr, dwFreeType uint32) error {
	r1, _, e1 := procVirtualFreeEx.Call(
		uintptr(process),
		lpAddress,
		dwSize,
		uintptr(dwFreeType))
	if r1 == 0 {
		return e1
	}
	return nil
}

// CreateRemoteThread creates a thread in remote process
func CreateRemoteThread(process windows.Handle, threadAttributes *windows.SecurityAttributes, stackSize uint32, startAddress uintptr, parameter uintptr, creationFlags uint32, threadID *uint32) (windows.Handle, error) {
	r1, _, e1 := procCreateRemoteThread.Call(
		uintptr(process),
		uintptr(unsafe.Pointer(threadAttributes)),
		uintptr(stackSize),
		startAddress,
		parameter,
		uintptr(creationFlags),
		uintptr(unsafe.Pointer(threadID)))
	if r1 == 0 {
		return 0, e1
	}
	return windows.Handle(r1), nil
}

// windowsController drives real processes through the Win32 API.
type windowsController struct{}

// NewController returns the Win32 backed controller
func NewController() Controller {
	return windowsController{}
}

func (windowsController) Launch(req LaunchRequest) (*Process, error) {
	si := windows.StartupInfo{}
	pi := windows.ProcessInformation{}
	si.Cb = uint32(unsafe.Sizeof(si))

	cmdLine, err := windows.UTF16PtrFromString(req.CommandLine)
	if err != nil {
		return nil, fmt.Errorf("convert command line to UTF16: %w", err)
	}

	var dir *uint16
	if req.Dir != "" {
		dir, err = windows.UTF16PtrFromString(req.Dir)
		if err != nil {
			return nil, fmt.Errorf("convert working directory to UTF16: %w", err)
		}
	}

	var flags uint32
	if req.Suspended {
		flags |= windows.CREATE_SUSPENDED
	}

	err = windows.CreateProcess(nil, cmdLine, nil, nil, false, flags, nil, dir, &si, &pi)
	if err != nil {
		return nil, err
	}

	return &Process{
		PID:         pi.ProcessId,
		ThreadID:    pi.ThreadId,
		Handle:      uintptr(pi.Process),
		Thread:      uintptr(pi.Thread),
		Dir:         req.Dir,
		CommandLine: req.CommandLine,
		Suspended:   req.Suspended,
	}, nil
}

func (windowsController) Modules(p *Process) ([]string, error) {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPMODULE|windows.TH32CS_SNAPMODULE32, p.PID)
	if err != nil {
		return nil, fmt.Errorf("CreateToolhelp32Snapshot failed: %w", err)
	}
	defer windows.CloseHandle(snapshot)

	var me windows.ModuleEntry32
	me.Size = uint32(unsafe.Sizeof(me))

	if err := windows.Module32First(snapshot, &me); err != nil {
		return nil, fmt.Errorf("Module32First failed: %w", err)
	}

	var names []string
	for {
		names = append(names, windows.UTF16ToString(me.Module[:]))

		err = windows.Module32Next(snapshot, &me)
		if err != nil {
			if errors.Is(err, windows.ERROR_NO_MORE_FILES) {
				break
			}
			return nil, fmt.Errorf("Module32Next failed: %w", err)
		}
	}

	return names, nil
}

func (windowsController) Alloc(p *Process, size uintptr) (uintptr, error) {
	return VirtualAllocEx(windows.Handle(p.Handle), 0, size,
		windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
}

func (windowsController) Write(p *Process, addr uintptr, data []byte) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}
	var bytesWritten uintptr
	err := windows.WriteProcessMemory(windows.Handle(p.Handle), addr, &data[0], uintptr(len(data)), &bytesWritten)
	return int(bytesWritten), err
}

func (windowsController) Free(p *Process, addr uintptr) error {
	return VirtualFreeEx(windows.Handle(p.Handle), addr, 0, windows.MEM_RELEASE)
}

func (windowsController) LoaderEntry(cs Charset) (uintptr, error) {
	proc := procLoadLibraryW
	if cs == ANSI {
		proc = procLoadLibraryA
	}
	if err := proc.Find(); err != nil {
		return 0, fmt.Errorf("find %s: %w", proc.Name, err)
	}
	return proc.Addr(), nil
}

func (windowsController) CreateThread(p *Process, start, arg uintptr) (Thread, error) {
	var threadID uint32
	h, err := CreateRemoteThread(windows.Handle(p.Handle), nil, 0, start, arg, 0, &threadID)
	if err != nil {
		return nil, err
	}
	return &remoteThread{handle: h, id: threadID}, nil
}

func (windowsController) Resume(p *Process) error {
	r, err := windows.ResumeThread(windows.Handle(p.Thread))
	if r == ^uint32(0) {
		return err
	}
	p.Suspended = false
	return nil
}

func (windowsController) Terminate(p *Process, exitCode uint32) error {
	return windows.TerminateProcess(windows.Handle(p.Handle), exitCode)
}

func (windowsController) Release(p *Process) error {
	var errs error
	if p.Thread != 0 {
		if err := windows.CloseHandle(windows.Handle(p.Thread)); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close thread handle: %w", err))
		}
		p.Thread = 0
	}
	if p.Handle != 0 {
		if err := windows.CloseHandle(windows.Handle(p.Handle)); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close process handle: %w", err))
		}
		p.Handle = 0
	}
	return errs
}

type remoteThread struct {
	handle windows.Handle
	id     uint32
}

func (t *remoteThread) ID() uint32 {
	return t.id
}

func (t *remoteThread) Wait(timeout time.Duration) error {
	event, err := windows.WaitForSingleObject(t.handle, WaitMillis(timeout))
	if event == waitTimeout {
		return ErrWaitTimeout
	}
	if event == windows.WAIT_FAILED {
		return fmt.Errorf("WaitForSingleObject failed: %w", err)
	}
	return nil
}

func (t *remoteThread) ExitCode() (uint32, error) {
	var exitCode uint32
	r1, _, err := procGetExitCodeThread.Call(
		uintptr(t.handle),
		uintptr(unsafe.Pointer(&exitCode)))
	if r1 == 0 {
		return 0, fmt.Errorf("GetExitCodeThread failed: %w", err)
	}
	return exitCode, nil
}

func (t *remoteThread) Terminate(code uint32) error {
	r1, _, err := procTerminateThread.Call(uintptr(t.handle), uintptr(code))
	if r1 == 0 {
		return err
	}
	return nil
}

func (t *remoteThread) Close() error {
	return windows.CloseHandle(t.handle)
}
