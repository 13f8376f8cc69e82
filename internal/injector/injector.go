package injector

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/whispin/modloader/internal/target"
)

// DefaultTimeout bounds the wait for the remote loader thread
const DefaultTimeout = 10 * time.Second

// terminateGrace is how long to wait for a terminated remote thread before giving up on its memory
const terminateGrace = time.Second

// Options configures the remote loader call
type Options struct {
	// Timeout waiting for the remote thread, DefaultTimeout when zero
	Timeout time.Duration
	// VerifyLoaderExitCode treats a zero thread exit code as a failed load
	VerifyLoaderExitCode bool
	// Charset selects LoadLibraryW or LoadLibraryA
	Charset target.Charset
}

// Injector forces a target process to load modules through CreateRemoteThread + LoadLibrary
type Injector struct {
	remote target.Remote
	opts   Options
	logger Logger // Logger for all operations
}

// NewInjector creates a new Injector instance
func NewInjector(remote target.Remote, opts Options, logger Logger) *Injector {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Injector{
		remote: remote,
		opts:   opts,
		logger: OrSilent(logger),
	}
}

func hex(v uintptr) string {
	return "0x" + strconv.FormatUint(uint64(v), 16)
}

// Inject loads one module into p and waits for the loader thread to finish.
// A done ctx stops the attempt before the remote thread is created; once the
// thread runs, the wait is bounded by the timeout only.
func (i *Injector) Inject(ctx context.Context, p *target.Process, modulePath string) Outcome {
	out := Outcome{Module: modulePath}
	fail := func(r Result, err error) Outcome {
		out.Result = r
		out.Err = err
		i.logger.Error("Injection failed", "module", modulePath, "result", r.String(), "error", err)
		return out
	}

	pathBytes, err := EncodePath(modulePath, i.opts.Charset)
	if err != nil {
		return fail(WriteFailed, err)
	}

	// kernel32 shares its base across processes, so the local address is valid in the target
	loaderAddr, err := i.remote.LoaderEntry(i.opts.Charset)
	if err != nil {
		return fail(ThreadCreationFailed, fmt.Errorf("resolve loader entry: %w", err))
	}
	i.logger.Debug("Found loader entry point", "address", hex(loaderAddr), "charset", i.opts.Charset.String())

	size := uintptr(len(pathBytes))
	remotePath, err := i.remote.Alloc(p, size)
	if err != nil {
		return fail(AllocationFailed, fmt.Errorf("allocate memory in target process: %w", err))
	}
	i.logger.Debug("Allocated memory for module path", "address", hex(remotePath), "size", size)

	written, err := i.remote.Write(p, remotePath, pathBytes)
	if err == nil && written != len(pathBytes) {
		err = fmt.Errorf("short write: %d of %d bytes", written, len(pathBytes))
	}
	if err != nil {
		i.release(p, remotePath)
		return fail(WriteFailed, fmt.Errorf("write module path to target process memory: %w", err))
	}

	if err := ctx.Err(); err != nil {
		i.release(p, remotePath)
		return fail(ThreadCreationFailed, fmt.Errorf("canceled before creating remote thread: %w", err))
	}

	thread, err := i.remote.CreateThread(p, loaderAddr, remotePath)
	if err != nil {
		i.release(p, remotePath)
		return fail(ThreadCreationFailed, fmt.Errorf("create remote thread: %w", err))
	}
	defer thread.Close()

	i.logger.Debug("Created remote thread", "thread_id", thread.ID())

	if err := thread.Wait(i.opts.Timeout); err != nil {
		if i.stop(thread) {
			i.release(p, remotePath)
		} else {
			i.logger.Warn("Remote thread still running, leaving path block mapped",
				"thread_id", thread.ID(), "address", hex(remotePath))
		}
		if !errors.Is(err, target.ErrWaitTimeout) {
			err = fmt.Errorf("wait for remote thread: %w", err)
		} else {
			err = fmt.Errorf("remote thread did not finish within %s: %w", i.opts.Timeout, err)
		}
		return fail(TimedOut, err)
	}

	i.release(p, remotePath)

	exitCode, err := thread.ExitCode()
	if i.opts.VerifyLoaderExitCode {
		if err != nil {
			return fail(LoaderReturnedFailure, err)
		}
		if exitCode == 0 {
			return fail(LoaderReturnedFailure, errors.New("LoadLibrary returned NULL"))
		}
	}
	out.ModuleHandle = exitCode
	out.Result = Succeeded

	i.logger.Info("Module injected", "module", modulePath, "module_handle", hex(uintptr(exitCode)))
	return out
}

// stop terminates a remote thread that overran its wait and reports whether it is gone
func (i *Injector) stop(thread target.Thread) bool {
	if err := thread.Terminate(1); err != nil {
		i.logger.Warn("Failed to terminate remote thread", "thread_id", thread.ID(), "error", err)
		return false
	}
	if err := thread.Wait(terminateGrace); err != nil {
		i.logger.Warn("Terminated remote thread did not exit", "thread_id", thread.ID(), "error", err)
		return false
	}
	return true
}

// release frees the remote path block; the target keeps a valid mapping if this fails
func (i *Injector) release(p *target.Process, addr uintptr) {
	if err := i.remote.Free(p, addr); err != nil {
		i.logger.Warn("Failed to release remote memory", "address", hex(addr), "error", err)
	}
}
