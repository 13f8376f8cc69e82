package process

import (
	"context"
	"strings"
	"time"

	"github.com/whispin/modloader/internal/injector"
	"github.com/whispin/modloader/internal/target"
)

const (
	// DefaultPollInterval between module enumerations
	DefaultPollInterval = 100 * time.Millisecond
	// DefaultMaxAttempts bounds the readiness wait to about 20 seconds
	DefaultMaxAttempts = 200
)

// Readiness is the result of waiting for the readiness marker
type Readiness int

const (
	// Ready the marker module was found
	Ready Readiness = iota
	// TimedOut the attempt budget was exhausted
	TimedOut
	// Exited the target process went away while waiting
	Exited
)

func (r Readiness) String() string {
	switch r {
	case Ready:
		return "ready"
	case TimedOut:
		return "timed out"
	case Exited:
		return "exited"
	default:
		return "unknown"
	}
}

// WaitResult describes a finished readiness wait
type WaitResult struct {
	State    Readiness
	Attempts int
	Module   string // matching module name when Ready
}

// AliveFunc reports whether a process is still running
type AliveFunc func(pid uint32) (bool, error)

// Detector polls a target's module list until a marker module appears
type Detector struct {
	lister      target.ModuleLister
	interval    time.Duration
	maxAttempts int
	alive       AliveFunc
	logger      injector.Logger
}

// NewDetector creates a Detector. Non-positive interval or attempts fall back to the defaults.
// alive may be nil.
func NewDetector(lister target.ModuleLister, interval time.Duration, maxAttempts int, alive AliveFunc, logger injector.Logger) *Detector {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Detector{
		lister:      lister,
		interval:    interval,
		maxAttempts: maxAttempts,
		alive:       alive,
		logger:      injector.OrSilent(logger),
	}
}

// MatchModule returns the first module whose name contains marker, ignoring case
func MatchModule(modules []string, marker string) (string, bool) {
	needle := strings.ToLower(marker)
	for _, name := range modules {
		if strings.Contains(strings.ToLower(name), needle) {
			return name, true
		}
	}
	return "", false
}

// Wait polls until the marker is loaded, the attempts run out, or the target exits.
// A failed enumeration only costs one attempt. The error is non-nil only when ctx is done.
func (d *Detector) Wait(ctx context.Context, p *target.Process, marker string) (WaitResult, error) {
	d.logger.Info("Waiting for target to load marker module",
		"marker", marker, "interval", d.interval.String(), "attempts", d.maxAttempts)

	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		modules, err := d.lister.Modules(p)
		if err != nil {
			d.logger.Debug("Module enumeration failed", "attempt", attempt, "error", err)
		} else if name, ok := MatchModule(modules, marker); ok {
			d.logger.Info("Target is ready", "module", name, "attempts", attempt)
			return WaitResult{State: Ready, Attempts: attempt, Module: name}, nil
		}

		if d.alive != nil {
			if alive, err := d.alive(p.PID); err == nil && !alive {
				d.logger.Warn("Target exited while waiting for marker", "pid", p.PID, "attempts", attempt)
				return WaitResult{State: Exited, Attempts: attempt}, nil
			}
		}

		if attempt == d.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return WaitResult{State: TimedOut, Attempts: attempt}, ctx.Err()
		case <-time.After(d.interval):
		}
	}

	d.logger.Warn("Marker module never appeared", "marker", marker, "attempts", d.maxAttempts)
	return WaitResult{State: TimedOut, Attempts: d.maxAttempts}, nil
}
