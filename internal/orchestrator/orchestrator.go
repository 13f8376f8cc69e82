// Package orchestrator sequences a launch-and-inject session: launch the target,
// optionally wait for it to become ready, inject each module in order, then resume
// or terminate the target according to the failure policy.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/whispin/modloader/internal/injector"
	"github.com/whispin/modloader/internal/module"
	"github.com/whispin/modloader/internal/process"
	"github.com/whispin/modloader/internal/target"
)

var (
	// ErrReadinessTimeout the marker module never appeared
	ErrReadinessTimeout = errors.New("target never loaded the readiness marker")
	// ErrTargetExited the target went away before modules could be injected
	ErrTargetExited = errors.New("target exited before injection")
	// ErrInjectionAborted a module failed under the fail-fast policy
	ErrInjectionAborted = errors.New("injection aborted")
	// ErrResumeFailed the suspended primary thread could not be resumed
	ErrResumeFailed = errors.New("failed to resume target")
)

// terminateExitCode is the exit code given to targets killed by a failed session
const terminateExitCode = 1

// Config describes one injection session
type Config struct {
	Target  string
	Mode    process.Mode
	Policy  Policy
	Args    []string
	Modules []string

	// Readiness, used in Running mode
	Marker       string
	PollInterval time.Duration
	MaxAttempts  int

	Inject injector.Options
}

// Validate checks the session configuration before any process is created
func (c Config) Validate() error {
	if c.Target == "" {
		return errors.New("target executable path is required")
	}
	if c.Mode == process.Running && c.Marker == "" {
		return errors.New("running mode requires a readiness marker")
	}
	for i, m := range c.Modules {
		if m == "" {
			return fmt.Errorf("module %d has an empty path", i+1)
		}
	}
	return nil
}

// Report is the outcome of a session
type Report struct {
	Session    string
	PID        uint32
	Mode       process.Mode
	Policy     Policy
	Status     Status
	Err        error
	Readiness  *process.WaitResult
	Outcomes   []injector.Outcome
	Resumed    bool
	Terminated bool
	Trace      []State
}

// Failed returns the outcomes that did not succeed
func (r *Report) Failed() []injector.Outcome {
	var failed []injector.Outcome
	for _, o := range r.Outcomes {
		if !o.OK() {
			failed = append(failed, o)
		}
	}
	return failed
}

// ExitCode maps the report to the process exit code
func (r *Report) ExitCode() int {
	if r.Status == Success {
		return 0
	}
	return 1
}

// Option customises an Orchestrator
type Option func(*Orchestrator)

// WithAliveFunc lets the readiness wait notice a target that exits
func WithAliveFunc(alive process.AliveFunc) Option {
	return func(o *Orchestrator) { o.alive = alive }
}

// WithInspector logs details about the launched process
func WithInspector(inspect func(pid uint32) (process.ProcessEntry, error)) Option {
	return func(o *Orchestrator) { o.inspect = inspect }
}

// WithModuleCheck inspects each module file before injection. Problems are logged, never fatal:
// the target's loader has the final say.
func WithModuleCheck(check func(path string) (module.Header, error)) Option {
	return func(o *Orchestrator) { o.check = check }
}

// WithSessionID overrides the session id generator
func WithSessionID(newID func() string) Option {
	return func(o *Orchestrator) { o.newID = newID }
}

// Orchestrator runs injection sessions one at a time
type Orchestrator struct {
	ctrl    target.Controller
	logger  injector.Logger
	alive   process.AliveFunc
	inspect func(pid uint32) (process.ProcessEntry, error)
	check   func(path string) (module.Header, error)
	newID   func() string
}

// New creates an Orchestrator using ctrl for every OS operation
func New(ctrl target.Controller, logger injector.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		ctrl:   ctrl,
		logger: injector.OrSilent(logger),
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type session struct {
	*Orchestrator
	cfg    Config
	log    injector.Logger
	report *Report
	proc   *target.Process
}

func (s *session) enter(st State) {
	s.report.Trace = append(s.report.Trace, st)
	s.log.Debug("Session state", "state", st.String())
}

// Run executes one session. The target's handles are always released before Run returns.
func (o *Orchestrator) Run(ctx context.Context, cfg Config) *Report {
	id := o.newID()
	s := &session{
		Orchestrator: o,
		cfg:          cfg,
		log:          with(o.logger, "session", id),
		report:       &Report{Session: id, Mode: cfg.Mode, Policy: cfg.Policy},
	}
	defer s.enter(Done)

	s.enter(Launching)
	if err := cfg.Validate(); err != nil {
		s.report.Status = LaunchFailed
		s.report.Err = err
		s.log.Error("Invalid session configuration", "error", err)
		return s.report
	}
	if !s.launch() {
		return s.report
	}
	defer s.release()

	if cfg.Mode == process.Running {
		s.enter(WaitingReady)
		if !s.waitReady(ctx) {
			return s.report
		}
	}

	s.enter(Injecting)
	failed, canceled := s.injectAll(ctx)

	s.enter(Finalizing)
	s.finalize(ctx, failed, canceled)
	return s.report
}

func (s *session) launch() bool {
	launcher := process.NewLauncher(s.ctrl, s.log)
	p, err := launcher.Launch(process.Options{Path: s.cfg.Target, Mode: s.cfg.Mode, Args: s.cfg.Args})
	if err != nil {
		s.report.Status = LaunchFailed
		s.report.Err = err
		return false
	}
	s.proc = p
	s.report.PID = p.PID

	if s.inspect != nil {
		if entry, err := s.inspect(p.PID); err != nil {
			s.log.Debug("Failed to inspect target", "pid", p.PID, "error", err)
		} else {
			s.log.Debug("Target process", "pid", entry.PID, "name", entry.Name, "executable", entry.Executable)
		}
	}
	return true
}

func (s *session) waitReady(ctx context.Context) bool {
	det := process.NewDetector(s.ctrl, s.cfg.PollInterval, s.cfg.MaxAttempts, s.alive, s.log)
	res, err := det.Wait(ctx, s.proc, s.cfg.Marker)
	s.report.Readiness = &res

	switch {
	case err != nil:
		s.report.Status = Canceled
		s.report.Err = err
		s.terminate("readiness wait canceled")
		return false
	case res.State == process.Exited:
		s.report.Status = TargetExited
		s.report.Err = ErrTargetExited
		return false
	case res.State == process.TimedOut:
		s.report.Status = ReadinessTimedOut
		s.report.Err = fmt.Errorf("%w %q after %d attempts", ErrReadinessTimeout, s.cfg.Marker, res.Attempts)
		s.terminate("readiness marker never appeared")
		return false
	}
	return true
}

// injectAll injects modules strictly in order. Under FailFast it stops at the first failure.
func (s *session) injectAll(ctx context.Context) (failed, canceled bool) {
	inj := injector.NewInjector(s.ctrl, s.cfg.Inject, s.log)
	total := len(s.cfg.Modules)

	for i, path := range s.cfg.Modules {
		if ctx.Err() != nil {
			s.log.Warn("Session canceled, skipping remaining modules", "remaining", total-i)
			return failed, true
		}

		s.log.Info("Injecting", "module", path, "index", i+1, "count", total)
		s.checkModule(path)
		out := inj.Inject(ctx, s.proc, path)
		s.report.Outcomes = append(s.report.Outcomes, out)
		if out.OK() {
			continue
		}
		if ctx.Err() != nil && errors.Is(out.Err, ctx.Err()) {
			s.log.Warn("Session canceled during injection", "module", path, "remaining", total-i-1)
			return true, true
		}

		failed = true
		if s.cfg.Policy == FailFast {
			s.log.Error("Module failed, aborting session", "module", path, "result", out.Result.String())
			return failed, false
		}
		s.log.Warn("Module failed, continuing", "module", path, "result", out.Result.String())
	}
	return failed, false
}

func (s *session) checkModule(path string) {
	if s.check == nil {
		return
	}
	h, err := s.check(path)
	if err != nil {
		s.log.Warn("Module pre-check failed", "module", path, "error", err)
		return
	}
	s.log.Debug("Module header", "module", path, "arch", h.Arch(), "pe32plus", h.Is64)
}

func (s *session) finalize(ctx context.Context, failed, canceled bool) {
	switch {
	case canceled:
		s.report.Status = Canceled
		s.report.Err = ctx.Err()
		s.terminate("session canceled")
		return
	case failed && s.cfg.Policy == FailFast:
		last := s.report.Outcomes[len(s.report.Outcomes)-1]
		s.report.Status = Aborted
		s.report.Err = fmt.Errorf("%w: %s: %s: %v", ErrInjectionAborted, last.Module, last.Result, last.Err)
		s.terminate("injection failed")
		return
	}

	if s.proc.Suspended {
		s.log.Info("Resuming target", "pid", s.proc.PID)
		if err := s.ctrl.Resume(s.proc); err != nil {
			s.log.Error("ResumeThread failed", "pid", s.proc.PID, "error", err)
			s.report.Status = ResumeFailed
			s.report.Err = fmt.Errorf("%w: %v", ErrResumeFailed, err)
			s.terminate("target could not be resumed")
			return
		}
		s.report.Resumed = true
	}

	s.report.Status = Success
	if n := len(s.report.Failed()); n > 0 {
		s.log.Warn("Session finished with failed modules", "failed", n, "count", len(s.cfg.Modules))
		return
	}
	s.log.Info("Session finished", "pid", s.proc.PID, "modules", len(s.report.Outcomes))
}

func (s *session) terminate(reason string) {
	s.log.Warn("Terminating target", "pid", s.proc.PID, "reason", reason)
	if err := s.ctrl.Terminate(s.proc, terminateExitCode); err != nil {
		s.log.Error("TerminateProcess failed", "pid", s.proc.PID, "error", err)
		return
	}
	s.report.Terminated = true
}

func (s *session) release() {
	if err := s.ctrl.Release(s.proc); err != nil {
		s.log.Warn("Failed to release target handles", "pid", s.proc.PID, "error", err)
	}
}
