package process

import (
	"errors"
	"fmt"
	"strings"
	"syscall"

	"github.com/whispin/modloader/internal/injector"
	"github.com/whispin/modloader/internal/target"
)

// Mode selects whether the target starts suspended or running
type Mode int

const (
	// Frozen creates the primary thread suspended
	Frozen Mode = iota
	// Running lets the target execute immediately
	Running
)

func (m Mode) String() string {
	switch m {
	case Frozen:
		return "frozen"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// ParseMode parses "frozen" or "running"
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "frozen", "suspended":
		return Frozen, nil
	case "running":
		return Running, nil
	default:
		return 0, fmt.Errorf("unknown launch mode %q", s)
	}
}

// LaunchError reports that the target process could not be created
type LaunchError struct {
	Path string
	Code uint32 // OS error code, 0 when unknown
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s failed (code %d): %v", e.Path, e.Code, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// Options describes the target to launch
type Options struct {
	Path string
	Mode Mode
	Args []string
}

// CommandLine quotes the executable path and appends args verbatim, space separated
func CommandLine(path string, args []string) string {
	var b strings.Builder
	b.WriteString(`"` + path + `"`)
	for _, arg := range args {
		b.WriteString(" ")
		b.WriteString(arg)
	}
	return b.String()
}

// WorkingDir returns the directory containing path, or "" when path has none.
// Both separators are accepted so Windows paths resolve on any host.
func WorkingDir(path string) string {
	i := strings.LastIndexAny(path, `\/`)
	if i < 0 {
		return ""
	}
	dir := path[:i]
	if dir == "" || strings.HasSuffix(dir, ":") {
		// keep the separator of a root such as "/" or "C:\"
		return path[:i+1]
	}
	return dir
}

// Launcher starts target processes
type Launcher struct {
	starter target.Launcher
	logger  injector.Logger
}

// NewLauncher creates a Launcher backed by starter
func NewLauncher(starter target.Launcher, logger injector.Logger) *Launcher {
	return &Launcher{starter: starter, logger: injector.OrSilent(logger)}
}

// Launch creates the target process. In Frozen mode the caller must resume or terminate it.
func (l *Launcher) Launch(opts Options) (*target.Process, error) {
	if opts.Path == "" {
		return nil, &LaunchError{Err: errors.New("target path cannot be empty")}
	}

	req := target.LaunchRequest{
		Path:        opts.Path,
		CommandLine: CommandLine(opts.Path, opts.Args),
		Dir:         WorkingDir(opts.Path),
		Suspended:   opts.Mode == Frozen,
	}

	l.logger.Info("Launching target", "path", opts.Path, "mode", opts.Mode.String())
	l.logger.Debug("Target command line", "command_line", req.CommandLine, "dir", req.Dir)

	p, err := l.starter.Launch(req)
	if err != nil {
		launchErr := &LaunchError{Path: opts.Path, Err: err}
		var errno syscall.Errno
		if errors.As(err, &errno) {
			launchErr.Code = uint32(errno)
		}
		l.logger.Error("CreateProcess failed", "path", opts.Path, "code", launchErr.Code, "error", err)
		return nil, launchErr
	}

	l.logger.Info("Created target process", "pid", p.PID, "tid", p.ThreadID, "suspended", p.Suspended)
	return p, nil
}
