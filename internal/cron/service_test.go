package cron

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"investment-core/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLock struct {
	mu         sync.Mutex
	held       bool
	acquireErr error
	releases   int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.acquireErr != nil {
		return false, f.acquireErr
	}
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.held = false
	f.releases++
	return nil
}

type testJob struct {
	mu   sync.Mutex
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runs++
	return t.err
}

func (t *testJob) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runs
}

func newTestService(t *testing.T, lock Lock, reg prometheus.Registerer, jobs ...Job) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Logger:   zerolog.New(io.Discard),
		Registry: NewRegistry(jobs...),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(reg),
		Interval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	return svc
}

func TestNewService_RequiresLock(t *testing.T) {
	_, err := NewService(ServiceParams{Logger: zerolog.Nop()})
	require.Error(t, err)
}

func TestRunOnce_RunsAllJobsEvenOnFailure(t *testing.T) {
	ok := &testJob{name: "success"}
	bad := &testJob{name: "fail", err: errors.New("boom")}
	lock := &fakeLock{}
	reg := prometheus.NewRegistry()

	svc := newTestService(t, lock, reg, bad, ok)
	require.NoError(t, svc.RunOnce(context.Background()))

	assert.Equal(t, 1, ok.count())
	assert.Equal(t, 1, bad.count())
	assert.Equal(t, 1, lock.releases)
	assert.False(t, lock.held)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["job_success"])
	assert.True(t, names["job_failure"])
	assert.True(t, names["job_duration_seconds"])
}

func TestRunOnce_SkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "yield-accrual"}
	lock := &fakeLock{held: true}

	svc := newTestService(t, lock, nil, job)
	require.NoError(t, svc.RunOnce(context.Background()))

	assert.Equal(t, 0, job.count())
	assert.Equal(t, 0, lock.releases)
}

func TestRunOnce_LockError(t *testing.T) {
	job := &testJob{name: "yield-accrual"}
	svc := newTestService(t, &fakeLock{acquireErr: errors.New("redis down")}, nil, job)

	err := svc.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis down")
	assert.Equal(t, 0, job.count())
}

func TestRun_TicksUntilCanceled(t *testing.T) {
	job := &testJob{name: "tick"}
	svc := newTestService(t, &fakeLock{}, nil, job)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.Eventually(t, func() bool { return job.count() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
