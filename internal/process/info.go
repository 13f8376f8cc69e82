package process

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessEntry represents a process entry
type ProcessEntry struct {
	PID        int32
	Name       string
	Executable string
}

// Alive reports whether pid still names a running process
func Alive(pid uint32) (bool, error) {
	exists, err := process.PidExists(int32(pid))
	if err != nil {
		return false, fmt.Errorf("Failed to check process %d: %v", pid, err)
	}
	return exists, nil
}

// Describe looks up the name and executable of pid
func Describe(pid uint32) (ProcessEntry, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return ProcessEntry{}, fmt.Errorf("Failed to open process %d: %v", pid, err)
	}

	name, err := p.Name()
	if err != nil {
		return ProcessEntry{}, fmt.Errorf("Failed to get process name: %v", err)
	}

	exe, err := p.Exe()
	if err != nil {
		// If unable to get executable path, use name only
		exe = ""
	}

	return ProcessEntry{
		PID:        p.Pid,
		Name:       name,
		Executable: exe,
	}, nil
}
