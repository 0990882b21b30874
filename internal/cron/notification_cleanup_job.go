package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/fooddash-backend/pkg/logger"
)

const (
	defaultNotificationRetention = 30 * 24 * time.Hour
	defaultCleanupBatch          = 500
	// Bounds one run so a large backlog drains over several ticks.
	maxCleanupBatches = 20
)

type NotificationCleanupJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository notificationPruner
	Retention  time.Duration
	BatchSize  int
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type notificationPruner interface {
	DeleteReadBatch(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) (int64, error)
}

type notificationCleanupJob struct {
	logg      *logger.Logger
	db        txRunner
	pruner    notificationPruner
	retention time.Duration
	batch     int
	now       func() time.Time
}

func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("notification cleanup: logger required")
	case params.DB == nil:
		return nil, errors.New("notification cleanup: db required")
	case params.Repository == nil:
		return nil, errors.New("notification cleanup: repository required")
	}
	job := &notificationCleanupJob{
		logg:      params.Logger,
		db:        params.DB,
		pruner:    params.Repository,
		retention: params.Retention,
		batch:     params.BatchSize,
		now:       time.Now,
	}
	if job.retention <= 0 {
		job.retention = defaultNotificationRetention
	}
	if job.batch <= 0 {
		job.batch = defaultCleanupBatch
	}
	return job, nil
}

func (j *notificationCleanupJob) Name() string { return "read-notification-cleanup" }

// Run deletes read notifications older than the retention window, one short
// transaction per batch.
func (j *notificationCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var total int64
	for i := 0; i < maxCleanupBatches; i++ {
		var n int64
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			n, err = j.pruner.DeleteReadBatch(ctx, tx, cutoff, j.batch)
			return err
		})
		if err != nil {
			return fmt.Errorf("delete read notifications: %w", err)
		}
		total += n
		if n < int64(j.batch) {
			break
		}
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": total,
	}), "read notifications pruned")
	return nil
}
