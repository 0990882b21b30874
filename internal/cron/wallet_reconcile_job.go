package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/fooddash-backend/internal/wallet"
	"github.com/angelmondragon/fooddash-backend/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

const defaultReconcilePageSize = 500

type walletOwnerLister interface {
	ListOwnersAfter(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
}

type walletReconciler interface {
	Reconcile(ctx context.Context, userID uuid.UUID) (*wallet.Reconciliation, error)
}

type WalletReconcileJobParams struct {
	Logger   *logger.Logger
	Owners   walletOwnerLister
	Ledger   walletReconciler
	PageSize int
}

// NewWalletReconcileJob builds the job that compares every cached wallet
// balance with the sum of its ledger rows. Drift is reported, never repaired.
func NewWalletReconcileJob(params WalletReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Owners == nil {
		return nil, fmt.Errorf("wallet owner lister required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("wallet ledger required")
	}
	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = defaultReconcilePageSize
	}
	return &walletReconcileJob{
		logg:     params.Logger,
		owners:   params.Owners,
		ledger:   params.Ledger,
		pageSize: pageSize,
	}, nil
}

type walletReconcileJob struct {
	logg     *logger.Logger
	owners   walletOwnerLister
	ledger   walletReconciler
	pageSize int
}

func (j *walletReconcileJob) Name() string { return "wallet-reconcile" }

func (j *walletReconcileJob) Run(ctx context.Context) error {
	var (
		errs    error
		checked int
		drifted int
		after   = uuid.Nil
	)
	for {
		owners, err := j.owners.ListOwnersAfter(ctx, after, j.pageSize)
		if err != nil {
			return multierr.Append(errs, fmt.Errorf("list wallet owners: %w", err))
		}
		for _, userID := range owners {
			result, err := j.ledger.Reconcile(ctx, userID)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("reconcile wallet of %s: %w", userID, err))
				continue
			}
			checked++
			if result.Consistent {
				continue
			}
			drifted++
			logCtx := j.logg.WithWalletID(ctx, result.WalletID.String())
			logCtx = j.logg.WithFields(logCtx, map[string]any{
				"balance_minor": result.BalanceMinor,
				"credits_minor": result.CreditsMinor,
				"debits_minor":  result.DebitsMinor,
				"drift_minor":   result.DriftMinor,
			})
			j.logg.Warn(logCtx, "wallet balance drifted from ledger")
		}
		if len(owners) < j.pageSize {
			break
		}
		after = owners[len(owners)-1]
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{"checked": checked, "drifted": drifted})
	j.logg.Info(logCtx, "wallet reconciliation complete")
	if drifted > 0 {
		errs = multierr.Append(errs, fmt.Errorf("%d wallets drifted from their ledger", drifted))
	}
	return errs
}
