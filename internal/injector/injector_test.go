package injector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whispin/modloader/internal/target"
	"github.com/whispin/modloader/internal/target/targettest"
)

func newTarget(t *testing.T, fake *targettest.Fake) *target.Process {
	t.Helper()
	p, err := fake.Launch(target.LaunchRequest{CommandLine: `"game.exe"`, Suspended: true})
	require.NoError(t, err)
	return p
}

func TestNewInjectorDefaults(t *testing.T) {
	fake := targettest.New(1)
	p := newTarget(t, fake)
	inj := NewInjector(fake, Options{}, nil)

	out := inj.Inject(context.Background(), p, "a.dll")

	require.True(t, out.OK())
	require.Len(t, fake.Threads, 1)
	assert.Equal(t, []time.Duration{DefaultTimeout}, fake.Threads[0].Waited)
	assert.Equal(t, targettest.LoadLibraryW, fake.Threads[0].Start)
	assert.IsType(t, &SilentLogger{}, inj.logger)
}

func TestInjectUTF16(t *testing.T) {
	fake := targettest.New(100)
	p := newTarget(t, fake)
	logger := &mockLogger{}
	inj := NewInjector(fake, Options{VerifyLoaderExitCode: true}, logger)

	out := inj.Inject(context.Background(), p, `C:\game\samp.dll`)

	require.True(t, out.OK(), "unexpected error: %v", out.Err)
	assert.Equal(t, Succeeded, out.Result)
	assert.NotZero(t, out.ModuleHandle)

	want, err := EncodePath(`C:\game\samp.dll`, target.UTF16)
	require.NoError(t, err)
	require.Len(t, fake.Allocs, 1)
	assert.Equal(t, uintptr((len(`C:\game\samp.dll`)+1)*2), fake.Allocs[0])
	require.Len(t, fake.Writes, 1)
	assert.Equal(t, want, fake.Writes[0])

	require.Len(t, fake.Threads, 1)
	th := fake.Threads[0]
	assert.Equal(t, targettest.LoadLibraryW, th.Start)
	assert.Equal(t, fake.Frees[0], th.Arg)
	assert.Equal(t, []time.Duration{DefaultTimeout}, th.Waited)
	assert.True(t, th.Closed)
	assert.False(t, th.Terminated)

	assert.Zero(t, fake.Outstanding())
	assert.True(t, logger.has("INFO: Module injected"))
}

func TestInjectANSI(t *testing.T) {
	fake := targettest.New(100)
	p := newTarget(t, fake)
	inj := NewInjector(fake, Options{Charset: target.ANSI, Timeout: 5 * time.Second}, nil)

	out := inj.Inject(context.Background(), p, "omp-client.dll")

	require.True(t, out.OK())
	assert.Equal(t, []uintptr{uintptr(len("omp-client.dll") + 1)}, fake.Allocs)
	assert.Equal(t, append([]byte("omp-client.dll"), 0), fake.Writes[0])
	assert.Equal(t, targettest.LoadLibraryA, fake.Threads[0].Start)
	assert.Equal(t, []time.Duration{5 * time.Second}, fake.Threads[0].Waited)
}

func TestInjectFailures(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name        string
		behavior    targettest.Behavior
		want        Result
		threads     int
		frees       int
		outstanding int
	}{
		{
			name:     "allocation",
			behavior: targettest.Behavior{AllocErr: boom},
			want:     AllocationFailed,
		},
		{
			name:     "write",
			behavior: targettest.Behavior{WriteErr: boom},
			want:     WriteFailed,
			frees:    1,
		},
		{
			name:     "short write",
			behavior: targettest.Behavior{ShortWrite: true},
			want:     WriteFailed,
			frees:    1,
		},
		{
			name:     "thread creation",
			behavior: targettest.Behavior{ThreadErr: boom},
			want:     ThreadCreationFailed,
			frees:    1,
		},
		{
			name:     "timeout",
			behavior: targettest.Behavior{Hang: true},
			want:     TimedOut,
			threads:  1,
			frees:    1,
		},
		{
			name:        "timeout with stuck thread",
			behavior:    targettest.Behavior{Hang: true, TerminateErr: boom},
			want:        TimedOut,
			threads:     1,
			outstanding: 1,
		},
		{
			name:     "loader rejected path",
			behavior: targettest.Behavior{LoaderFails: true},
			want:     LoaderReturnedFailure,
			threads:  1,
			frees:    1,
		},
		{
			name:     "exit code unavailable",
			behavior: targettest.Behavior{ExitCodeErr: boom},
			want:     LoaderReturnedFailure,
			threads:  1,
			frees:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := targettest.New(7)
			fake.Script = []targettest.Behavior{tt.behavior}
			p := newTarget(t, fake)
			logger := &mockLogger{}
			inj := NewInjector(fake, Options{VerifyLoaderExitCode: true}, logger)

			out := inj.Inject(context.Background(), p, "missing.dll")

			assert.Equal(t, tt.want, out.Result)
			assert.Error(t, out.Err)
			assert.Len(t, fake.Threads, tt.threads)
			assert.Len(t, fake.Frees, tt.frees)
			assert.Equal(t, tt.outstanding, fake.Outstanding())
			for _, th := range fake.Threads {
				assert.True(t, th.Closed)
			}
			assert.True(t, logger.has("ERROR: Injection failed"))
		})
	}
}

func TestInjectTimeoutTerminatesThread(t *testing.T) {
	fake := targettest.New(7)
	fake.Script = []targettest.Behavior{{Hang: true}}
	p := newTarget(t, fake)
	inj := NewInjector(fake, Options{Timeout: 50 * time.Millisecond}, nil)

	out := inj.Inject(context.Background(), p, "hang.dll")

	assert.Equal(t, TimedOut, out.Result)
	assert.ErrorIs(t, out.Err, target.ErrWaitTimeout)
	require.Len(t, fake.Threads, 1)
	assert.True(t, fake.Threads[0].Terminated)
	assert.Equal(t, []time.Duration{50 * time.Millisecond, terminateGrace}, fake.Threads[0].Waited)
}

func TestInjectWithoutExitCodeVerification(t *testing.T) {
	fake := targettest.New(7)
	fake.Script = []targettest.Behavior{{LoaderFails: true}}
	p := newTarget(t, fake)
	inj := NewInjector(fake, Options{VerifyLoaderExitCode: false}, nil)

	out := inj.Inject(context.Background(), p, "missing.dll")

	assert.Equal(t, Succeeded, out.Result)
	assert.NoError(t, out.Err)
	assert.Zero(t, out.ModuleHandle)
}

func TestInjectFreeFailureIsNotFatal(t *testing.T) {
	fake := targettest.New(7)
	fake.Script = []targettest.Behavior{{FreeErr: errors.New("access denied")}}
	p := newTarget(t, fake)
	logger := &mockLogger{}
	inj := NewInjector(fake, Options{VerifyLoaderExitCode: true}, logger)

	out := inj.Inject(context.Background(), p, "a.dll")

	assert.Equal(t, Succeeded, out.Result)
	assert.True(t, logger.has("WARN: Failed to release remote memory"))
}

func TestInjectLoaderEntryUnavailable(t *testing.T) {
	fake := targettest.New(7)
	fake.LoaderErr = errors.New("proc not found")
	p := newTarget(t, fake)
	inj := NewInjector(fake, Options{}, nil)

	out := inj.Inject(context.Background(), p, "a.dll")

	assert.Equal(t, ThreadCreationFailed, out.Result)
	assert.Empty(t, fake.Allocs)
}

func TestInjectCanceledBeforeRemoteThread(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fake := targettest.New(7)
	fake.Script = []targettest.Behavior{{AfterWrite: cancel}}
	p := newTarget(t, fake)
	inj := NewInjector(fake, Options{VerifyLoaderExitCode: true}, nil)

	out := inj.Inject(ctx, p, "a.dll")

	assert.Equal(t, ThreadCreationFailed, out.Result)
	assert.ErrorIs(t, out.Err, context.Canceled)
	assert.Empty(t, fake.Threads)
	assert.Len(t, fake.Frees, 1)
	assert.Zero(t, fake.Outstanding())
}

func TestInjectInvalidPath(t *testing.T) {
	fake := targettest.New(7)
	p := newTarget(t, fake)
	inj := NewInjector(fake, Options{}, nil)

	out := inj.Inject(context.Background(), p, "")

	assert.Equal(t, WriteFailed, out.Result)
	assert.ErrorIs(t, out.Err, errEmptyPath)
	assert.Empty(t, fake.Allocs)
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "Succeeded", Succeeded.String())
	assert.Equal(t, "LoaderReturnedFailure", LoaderReturnedFailure.String())
	assert.Equal(t, "TimedOut", TimedOut.String())
	assert.Equal(t, "Unknown", Result(42).String())
}
