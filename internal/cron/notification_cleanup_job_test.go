package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/fooddash-backend/pkg/logger"
)

type fakePruner struct {
	batches []int64
	cutoffs []time.Time
	err     error
}

func (f *fakePruner) DeleteReadBatch(_ context.Context, _ *gorm.DB, cutoff time.Time, _ int) (int64, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	if f.err != nil {
		return 0, f.err
	}
	if len(f.batches) == 0 {
		return 0, nil
	}
	n := f.batches[0]
	f.batches = f.batches[1:]
	return n, nil
}

type passthroughTx struct{ calls int }

func (p *passthroughTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	p.calls++
	return fn(nil)
}

func newCleanupJob(t *testing.T, pruner *fakePruner, tx *passthroughTx) *notificationCleanupJob {
	t.Helper()
	job, err := NewNotificationCleanupJob(NotificationCleanupJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		DB:         tx,
		Repository: pruner,
		BatchSize:  2,
	})
	require.NoError(t, err)
	return job.(*notificationCleanupJob)
}

func TestNotificationCleanupDrainsBatchesUntilShort(t *testing.T) {
	now := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	pruner := &fakePruner{batches: []int64{2, 2, 1}}
	tx := &passthroughTx{}
	job := newCleanupJob(t, pruner, tx)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 3, tx.calls)
	require.Len(t, pruner.cutoffs, 3)
	assert.Equal(t, now.Add(-defaultNotificationRetention), pruner.cutoffs[0])
}

func TestNotificationCleanupPropagatesErrors(t *testing.T) {
	job := newCleanupJob(t, &fakePruner{err: errors.New("boom")}, &passthroughTx{})
	require.Error(t, job.Run(context.Background()))
}

func TestNotificationCleanupRequiresDeps(t *testing.T) {
	_, err := NewNotificationCleanupJob(NotificationCleanupJobParams{Logger: logger.New(logger.Options{})})
	require.Error(t, err)
}
