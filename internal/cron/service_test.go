package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/fooddash-backend/pkg/logger"
	"github.com/angelmondragon/fooddash-backend/pkg/metrics"
)

type fakeLock struct {
	held     bool
	released int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.released++
	return nil
}

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func newTestService(t *testing.T, lock Lock, jobs ...Job) (*Service, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	svc, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Registry: NewRegistry(jobs...),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(reg),
	})
	require.NoError(t, err)
	return svc, reg
}

func TestTickRunsEveryJobAndCombinesErrors(t *testing.T) {
	expiry := &testJob{name: "topup-expiry", err: errors.New("gateway down")}
	reconcile := &testJob{name: "wallet-reconcile"}
	lock := &fakeLock{}
	svc, _ := newTestService(t, lock, expiry, reconcile)

	err := svc.Tick(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "topup-expiry: gateway down")
	assert.Equal(t, 1, expiry.runs)
	assert.Equal(t, 1, reconcile.runs)
	assert.Equal(t, 1, lock.released)
	assert.False(t, lock.held)
}

func TestTickSkipsWhenLockHeldElsewhere(t *testing.T) {
	job := &testJob{name: "wallet-reconcile"}
	lock := &fakeLock{held: true}
	svc, reg := newTestService(t, lock, job)

	require.NoError(t, svc.Tick(context.Background()))
	assert.Zero(t, job.runs)
	assert.Zero(t, lock.released)

	families, err := reg.Gather()
	require.NoError(t, err)
	var skipped float64
	for _, mf := range families {
		if mf.GetName() != "fooddash_cron_job_runs_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "result" && l.GetValue() == "skipped" {
					skipped += m.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Equal(t, float64(1), skipped)
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &testJob{name: "read-notification-cleanup"}
	svc, _ := newTestService(t, &fakeLock{}, job)
	svc.interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := svc.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, job.runs)
}
