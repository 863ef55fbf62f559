package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	calls atomic.Int64
	err   error
}

func (f *fakeRunner) Run(ctx context.Context) error {
	f.calls.Add(1)
	return f.err
}

type fakeSettings struct{ spec, tz string }

func (f fakeSettings) Schedule() string { return f.spec }
func (f fakeSettings) Timezone() string { return f.tz }

type noopCronLogger struct{ errors atomic.Int64 }

func (n *noopCronLogger) Info(msg string, keysAndValues ...any) {}
func (n *noopCronLogger) Error(err error, msg string, keysAndValues ...any) {
	n.errors.Add(1)
}

func TestScheduler_StartStop(t *testing.T) {
	t.Parallel()
	s := New(&fakeRunner{}, &noopCronLogger{})

	require.NoError(t, s.Start(context.Background(), fakeSettings{spec: "0 9 * * *", tz: "Europe/London"}))
	next := s.Next()
	assert.False(t, next.IsZero())
	assert.Equal(t, 9, next.Hour())
	assert.Equal(t, "Europe/London", next.Location().String())

	s.Stop()
	assert.True(t, s.Next().IsZero())
	s.Stop()
}

func TestScheduler_StartRejectsBadInput(t *testing.T) {
	t.Parallel()
	s := New(&fakeRunner{}, &noopCronLogger{})
	assert.Error(t, s.Start(context.Background(), fakeSettings{spec: "0 9 * * *", tz: "Nope/Nope"}))
	assert.Error(t, s.Start(context.Background(), fakeSettings{spec: "every day", tz: "UTC"}))
}

func TestScheduler_StartTwiceFails(t *testing.T) {
	t.Parallel()
	s := New(&fakeRunner{}, &noopCronLogger{})
	require.NoError(t, s.Start(context.Background(), fakeSettings{spec: "@hourly", tz: "UTC"}))
	defer s.Stop()
	assert.Error(t, s.Start(context.Background(), fakeSettings{spec: "@hourly", tz: "UTC"}))
}

func TestScheduler_TriggersRunner(t *testing.T) {
	r := &fakeRunner{err: errors.New("boom")}
	log := &noopCronLogger{}
	s := New(r, log)

	require.NoError(t, s.Start(context.Background(), fakeSettings{spec: "@every 1s", tz: "UTC"}))
	defer s.Stop()

	assert.Eventually(t, func() bool { return r.calls.Load() > 0 }, 5*time.Second, 100*time.Millisecond)
	assert.Eventually(t, func() bool { return log.errors.Load() > 0 }, time.Second, 50*time.Millisecond)
}

func TestScheduler_SkipsRunsAfterCancel(t *testing.T) {
	r := &fakeRunner{}
	s := New(r, &noopCronLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, s.Start(ctx, fakeSettings{spec: "@every 1s", tz: "UTC"}))
	time.Sleep(1500 * time.Millisecond)
	s.Stop()
	assert.Zero(t, r.calls.Load())
}

func TestValidate(t *testing.T) {
	t.Parallel()
	assert.NoError(t, Validate("0 9 * * 1-5"))
	assert.NoError(t, Validate("@every 1h"))
	assert.Error(t, Validate("61 * * * *"))
}
