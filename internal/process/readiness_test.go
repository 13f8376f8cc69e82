package process

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

func runningTarget(t *testing.T, fake *targettest.Fake) *target.Process {
	t.Helper()
	p, err := fake.Launch(target.LaunchRequest{CommandLine: `"game.exe"`})
	require.NoError(t, err)
	return p
}

func TestMatchModule(t *testing.T) {
	name, ok := MatchModule([]string{"gta_sa.exe", "ntdll.dll", "VorbisFile.DLL"}, "vorbis")
	assert.True(t, ok)
	assert.Equal(t, "VorbisFile.DLL", name)

	_, ok = MatchModule([]string{"gta_sa.exe"}, "samp")
	assert.False(t, ok)

	_, ok = MatchModule(nil, "samp")
	assert.False(t, ok)
}

func TestNewDetectorDefaults(t *testing.T) {
	d := NewDetector(targettest.New(1), 0, -1, nil, nil)

	assert.Equal(t, DefaultPollInterval, d.interval)
	assert.Equal(t, DefaultMaxAttempts, d.maxAttempts)
}

func TestWaitReadyStopsAtFirstMatch(t *testing.T) {
	fake := targettest.New(9)
	fake.Polls = []targettest.Poll{
		{Modules: []string{"gta_sa.exe", "ntdll.dll"}},
		{Err: errors.New("ERROR_BAD_LENGTH")},
		{Modules: []string{"gta_sa.exe", "ntdll.dll", "VORBISFILE.DLL"}},
		{Modules: []string{"never.dll"}},
	}
	p := runningTarget(t, fake)
	d := NewDetector(fake, time.Millisecond, 10, nil, nil)

	res, err := d.Wait(context.Background(), p, "vorbisfile")
	require.NoError(t, err)

	assert.Equal(t, Ready, res.State)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, "VORBISFILE.DLL", res.Module)
	assert.Equal(t, 3, fake.ModuleCalls)
}

func TestWaitTimesOutAtCeiling(t *testing.T) {
	fake := targettest.New(9)
	fake.Polls = []targettest.Poll{{Modules: []string{"gta_sa.exe"}}}
	p := runningTarget(t, fake)
	d := NewDetector(fake, time.Millisecond, 25, nil, nil)

	start := time.Now()
	res, err := d.Wait(context.Background(), p, "samp")
	require.NoError(t, err)

	assert.Equal(t, TimedOut, res.State)
	assert.Equal(t, 25, res.Attempts)
	assert.Equal(t, 25, fake.ModuleCalls)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestWaitToleratesEnumerationFailures(t *testing.T) {
	fake := targettest.New(9)
	fail := targettest.Poll{Err: errors.New("snapshot failed")}
	fake.Polls = []targettest.Poll{fail, fail, fail, fail, {Modules: []string{"samp.dll"}}}
	p := runningTarget(t, fake)
	d := NewDetector(fake, time.Millisecond, 10, nil, nil)

	res, err := d.Wait(context.Background(), p, "SAMP")
	require.NoError(t, err)

	assert.Equal(t, Ready, res.State)
	assert.Equal(t, 5, res.Attempts)
}

func TestWaitDetectsExitedTarget(t *testing.T) {
	fake := targettest.New(9)
	p := runningTarget(t, fake)
	calls := 0
	alive := func(pid uint32) (bool, error) {
		calls++
		assert.Equal(t, uint32(9), pid)
		return calls < 3, nil
	}
	d := NewDetector(fake, time.Millisecond, 50, alive, nil)

	res, err := d.Wait(context.Background(), p, "samp")
	require.NoError(t, err)

	assert.Equal(t, Exited, res.State)
	assert.Equal(t, 3, res.Attempts)
}

func TestWaitIgnoresLivenessErrors(t *testing.T) {
	fake := targettest.New(9)
	p := runningTarget(t, fake)
	alive := func(uint32) (bool, error) { return false, errors.New("access denied") }
	d := NewDetector(fake, time.Millisecond, 4, alive, nil)

	res, err := d.Wait(context.Background(), p, "samp")
	require.NoError(t, err)

	assert.Equal(t, TimedOut, res.State)
	assert.Equal(t, 4, fake.ModuleCalls)
}

func TestWaitCanceled(t *testing.T) {
	fake := targettest.New(9)
	p := runningTarget(t, fake)
	d := NewDetector(fake, time.Hour, 200, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := d.Wait(ctx, p, "samp")

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 1, fake.ModuleCalls)
}

func TestReadinessString(t *testing.T) {
	assert.Equal(t, "ready", Ready.String())
	assert.Equal(t, "timed out", TimedOut.String())
	assert.Equal(t, "exited", Exited.String())
}
