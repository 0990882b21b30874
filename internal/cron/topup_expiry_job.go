package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/angelmondragon/fooddash-backend/internal/topups"
	"github.com/angelmondragon/fooddash-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/fooddash-backend/pkg/errors"
	"github.com/angelmondragon/fooddash-backend/pkg/logger"
	"github.com/angelmondragon/fooddash-backend/pkg/midtrans"
	"go.uber.org/multierr"
)

const (
	defaultTopupVerifyAfter = 15 * time.Minute
	defaultTopupExpireAfter = 24 * time.Hour
	defaultTopupBatchSize   = 200
)

type topupReconciler interface {
	ListStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]models.WalletTopup, error)
	VerifyExternalPayment(ctx context.Context, reference string) (*topups.VerificationResult, error)
	CompleteTopup(ctx context.Context, reference string, payload json.RawMessage) (*topups.CompletionResult, error)
	FailTopup(ctx context.Context, reference, reason string, payload json.RawMessage) (*models.WalletTopup, error)
}

// TopupExpiryJobParams configure the pending top-up sweeper. VerifyAfter is
// how old a pending row must be before the gateway is polled. ExpireAfter
// is when a still-pending row is failed as expired.
type TopupExpiryJobParams struct {
	Logger      *logger.Logger
	Topups      topupReconciler
	VerifyAfter time.Duration
	ExpireAfter time.Duration
	BatchSize   int
}

func NewTopupExpiryJob(params TopupExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Topups == nil {
		return nil, fmt.Errorf("topup service required")
	}
	verifyAfter := params.VerifyAfter
	if verifyAfter <= 0 {
		verifyAfter = defaultTopupVerifyAfter
	}
	expireAfter := params.ExpireAfter
	if expireAfter <= 0 {
		expireAfter = defaultTopupExpireAfter
	}
	if expireAfter < verifyAfter {
		return nil, fmt.Errorf("expire-after must not be shorter than verify-after")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultTopupBatchSize
	}
	return &topupExpiryJob{
		logg:        params.Logger,
		topups:      params.Topups,
		verifyAfter: verifyAfter,
		expireAfter: expireAfter,
		batch:       batch,
		now:         time.Now,
	}, nil
}

type topupExpiryJob struct {
	logg        *logger.Logger
	topups      topupReconciler
	verifyAfter time.Duration
	expireAfter time.Duration
	batch       int
	now         func() time.Time
}

func (j *topupExpiryJob) Name() string { return "topup-expiry" }

func (j *topupExpiryJob) Run(ctx context.Context) error {
	rows, err := j.topups.ListStalePending(ctx, j.verifyAfter, j.batch)
	if err != nil {
		return fmt.Errorf("list stale top-ups: %w", err)
	}

	var errs error
	counts := map[string]int{}
	for _, row := range rows {
		outcome, err := j.settle(ctx, row)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("top-up %s: %w", row.PaymentReference, err))
			counts["error"]++
			continue
		}
		counts[outcome]++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"scanned":   len(rows),
		"completed": counts["completed"],
		"failed":    counts["failed"],
		"expired":   counts["expired"],
		"pending":   counts["pending"],
		"errors":    counts["error"],
	})
	j.logg.Info(logCtx, "topup expiry sweep complete")
	return errs
}

func (j *topupExpiryJob) settle(ctx context.Context, row models.WalletTopup) (string, error) {
	verification, err := j.topups.VerifyExternalPayment(ctx, row.PaymentReference)
	if err != nil {
		return "", err
	}

	switch verification.Status {
	case midtrans.StatusSuccess:
		_, err = j.topups.CompleteTopup(ctx, row.PaymentReference, verification.Raw)
		return settledOr("completed", err)
	case midtrans.StatusFailed:
		_, err = j.topups.FailTopup(ctx, row.PaymentReference, "payment failed at gateway", verification.Raw)
		return settledOr("failed", err)
	}

	if j.now().UTC().Sub(row.CreatedAt) < j.expireAfter {
		return "pending", nil
	}
	_, err = j.topups.FailTopup(ctx, row.PaymentReference, "expired", verification.Raw)
	return settledOr("expired", err)
}

// settledOr treats a row that a webhook settled concurrently as handled.
func settledOr(outcome string, err error) (string, error) {
	if err == nil {
		return outcome, nil
	}
	if pkgerrors.IsCode(err, pkgerrors.CodeAlreadyCompleted) || pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		return "settled", nil
	}
	return "", err
}
