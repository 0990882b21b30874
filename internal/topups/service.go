package topups

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/fooddash-backend/internal/notifications"
	"github.com/angelmondragon/fooddash-backend/internal/wallet"
	"github.com/angelmondragon/fooddash-backend/pkg/db/models"
	"github.com/angelmondragon/fooddash-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fooddash-backend/pkg/errors"
	"github.com/angelmondragon/fooddash-backend/pkg/logger"
	"github.com/angelmondragon/fooddash-backend/pkg/metrics"
	"github.com/angelmondragon/fooddash-backend/pkg/midtrans"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PaymentGateway is the hosted checkout provider used for midtrans top-ups.
type PaymentGateway interface {
	InitializePayment(ctx context.Context, req midtrans.PaymentRequest) (*midtrans.PaymentSession, error)
	VerifyPayment(ctx context.Context, reference string) (*midtrans.Verification, error)
}

type ledger interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	CreditTx(ctx context.Context, tx *gorm.DB, input wallet.CreditInput) (*wallet.Entry, error)
	Announce(ctx context.Context, entries ...*wallet.Entry)
}

// Service moves top-ups from pending to completed or failed. A top-up is
// credited to the wallet at most once.
type Service interface {
	InitializeTopup(ctx context.Context, input InitializeTopupInput) (*InitializeResult, error)
	CompleteTopup(ctx context.Context, reference string, payload json.RawMessage) (*CompletionResult, error)
	FailTopup(ctx context.Context, reference, reason string, payload json.RawMessage) (*models.WalletTopup, error)
	VerifyExternalPayment(ctx context.Context, reference string) (*VerificationResult, error)
	Get(ctx context.Context, reference string) (*models.WalletTopup, error)
	ListStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]models.WalletTopup, error)
}

type Config struct {
	MinAmountMinor int64
	MaxAmountMinor int64
	DemoEnabled    bool
}

type InitializeTopupInput struct {
	UserID      uuid.UUID
	AmountMinor int64
	Gateway     enums.TopupGateway
}

type InitializeResult struct {
	Topup       models.WalletTopup
	Reference   string
	RedirectURL string
	Token       string
}

type CompletionResult struct {
	Topup        models.WalletTopup
	BalanceMinor int64
}

type VerificationResult struct {
	Reference string          `json:"reference"`
	Status    midtrans.Status `json:"status"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}

type service struct {
	repo     Repository
	tx       txRunner
	ledger   ledger
	gateway  PaymentGateway
	notifier notifications.Gateway
	metrics  *metrics.LedgerMetrics
	logg     *logger.Logger
	cfg      Config
	now      func() time.Time
}

// ServiceParams wires the top-up reconciler. Gateway may be nil when only
// demo top-ups are enabled.
type ServiceParams struct {
	Repo     Repository
	DB       txRunner
	Ledger   ledger
	Gateway  PaymentGateway
	Notifier notifications.Gateway
	Metrics  *metrics.LedgerMetrics
	Logger   *logger.Logger
	Config   Config
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("topup repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("wallet ledger required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notification gateway required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Config.MinAmountMinor <= 0 {
		return nil, fmt.Errorf("minimum top-up must be positive")
	}
	if params.Config.MaxAmountMinor < params.Config.MinAmountMinor {
		return nil, fmt.Errorf("maximum top-up below minimum")
	}
	return &service{
		repo:     params.Repo,
		tx:       params.DB,
		ledger:   params.Ledger,
		gateway:  params.Gateway,
		notifier: params.Notifier,
		metrics:  params.Metrics,
		logg:     params.Logger,
		cfg:      params.Config,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) InitializeTopup(ctx context.Context, input InitializeTopupInput) (*InitializeResult, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.AmountMinor < s.cfg.MinAmountMinor || input.AmountMinor > s.cfg.MaxAmountMinor {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "top-up amount out of range").
			WithDetails(map[string]any{
				"amount_minor": input.AmountMinor,
				"min_minor":    s.cfg.MinAmountMinor,
				"max_minor":    s.cfg.MaxAmountMinor,
			})
	}
	if err := s.gatewayAvailable(input.Gateway); err != nil {
		return nil, err
	}

	w, err := s.ledger.GetOrCreate(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	if w.Status != enums.WalletStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "wallet is not active").
			WithDetails(map[string]any{"reason": "WALLET_INACTIVE", "status": string(w.Status)})
	}

	topup := models.WalletTopup{
		ID:               uuid.New(),
		UserID:           input.UserID,
		WalletID:         w.ID,
		AmountMinor:      input.AmountMinor,
		PaymentReference: NewReference(),
		Gateway:          input.Gateway,
		Status:           enums.TopupStatusPending,
		CreatedAt:        s.now(),
		UpdatedAt:        s.now(),
	}
	if err := s.repo.Create(ctx, &topup); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create top-up")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"topup_reference": topup.PaymentReference,
		"gateway":         string(topup.Gateway),
	})
	result := &InitializeResult{Reference: topup.PaymentReference}

	if topup.Gateway == enums.TopupGatewayMidtrans {
		session, err := s.gateway.InitializePayment(ctx, midtrans.PaymentRequest{
			Reference:   topup.PaymentReference,
			AmountMinor: topup.AmountMinor,
			ItemName:    "Wallet top up",
		})
		if err != nil {
			s.metrics.IncTopup(string(topup.Gateway), "gateway_error")
			s.logg.Error(logCtx, "top-up checkout initialization failed", err)
			if pkgerrors.As(err) == nil {
				err = pkgerrors.Wrap(pkgerrors.CodeGateway, err, "initialize payment")
			}
			return nil, err
		}
		if err := s.repo.SetRedirectURL(ctx, topup.ID, session.RedirectURL); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store checkout url")
		}
		url := session.RedirectURL
		topup.RedirectURL = &url
		result.RedirectURL = session.RedirectURL
		result.Token = session.Token
	}

	s.metrics.IncTopup(string(topup.Gateway), "initialized")
	s.logg.Info(logCtx, "top-up initialized")
	result.Topup = topup
	return result, nil
}

func (s *service) gatewayAvailable(gateway enums.TopupGateway) error {
	switch gateway {
	case enums.TopupGatewayMidtrans:
		if s.gateway == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "payment gateway not configured").
				WithDetails(map[string]any{"gateway": string(gateway)})
		}
		return nil
	case enums.TopupGatewayDemo:
		if !s.cfg.DemoEnabled {
			return pkgerrors.New(pkgerrors.CodeValidation, "demo top-ups are disabled").
				WithDetails(map[string]any{"gateway": string(gateway)})
		}
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown payment gateway").
			WithDetails(map[string]any{"gateway": string(gateway)})
	}
}

func (s *service) CompleteTopup(ctx context.Context, reference string, payload json.RawMessage) (*CompletionResult, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference required")
	}

	var (
		result *CompletionResult
		entry  *wallet.Entry
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		topup, err := repo.LockByReference(ctx, reference)
		if err != nil {
			return translateLookup(err)
		}
		if err := requirePending(topup); err != nil {
			return err
		}

		now := s.now()
		ok, err := repo.MarkCompleted(ctx, topup.ID, payload, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark top-up completed")
		}
		if !ok {
			return alreadyCompleted(topup)
		}

		topupID := topup.ID
		entry, err = s.ledger.CreditTx(ctx, tx, wallet.CreditInput{
			UserID:      topup.UserID,
			AmountMinor: topup.AmountMinor,
			Description: "topup via " + string(topup.Gateway),
			TopupID:     &topupID,
		})
		if err != nil {
			return err
		}

		topup.Status = enums.TopupStatusCompleted
		topup.CompletedAt = &now
		if len(payload) > 0 {
			topup.GatewayPayload = payload
		}
		result = &CompletionResult{Topup: *topup, BalanceMinor: entry.Wallet.BalanceMinor}
		return nil
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeAlreadyCompleted) {
			s.metrics.IncTopup(gatewayLabel(err), "duplicate")
		}
		return nil, err
	}

	s.ledger.Announce(ctx, entry)
	s.metrics.IncTopup(string(result.Topup.Gateway), "completed")
	logCtx := s.logg.WithWalletID(ctx, result.Topup.WalletID.String())
	logCtx = s.logg.WithTopupReference(logCtx, reference)
	s.logg.Info(logCtx, "top-up completed")
	return result, nil
}

func (s *service) FailTopup(ctx context.Context, reference, reason string, payload json.RawMessage) (*models.WalletTopup, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference required")
	}
	if strings.TrimSpace(reason) == "" {
		reason = "payment failed"
	}

	var failed *models.WalletTopup
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		topup, err := repo.LockByReference(ctx, reference)
		if err != nil {
			return translateLookup(err)
		}
		if err := requirePending(topup); err != nil {
			return err
		}

		now := s.now()
		ok, err := repo.MarkFailed(ctx, topup.ID, reason, payload, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark top-up failed")
		}
		if !ok {
			return alreadyCompleted(topup)
		}
		topup.Status = enums.TopupStatusFailed
		topup.FailureReason = &reason
		topup.FailedAt = &now
		failed = topup
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTopup(string(failed.Gateway), "failed")
	s.notifier.Notify(ctx, notifications.Message{
		UserID: failed.UserID,
		Type:   enums.NotificationTypeTopupFailed,
		Title:  "Top-up failed",
		Body:   "Your wallet top-up " + failed.PaymentReference + " did not go through: " + reason + ".",
	})
	logCtx := s.logg.WithFields(ctx, map[string]any{"topup_reference": reference, "reason": reason})
	s.logg.Warn(logCtx, "top-up failed")
	return failed, nil
}

// VerifyExternalPayment reports what the gateway knows about a reference.
// Demo top-ups are answered from the local row.
func (s *service) VerifyExternalPayment(ctx context.Context, reference string) (*VerificationResult, error) {
	topup, err := s.Get(ctx, reference)
	if err != nil {
		return nil, err
	}
	if topup.Gateway != enums.TopupGatewayMidtrans {
		return &VerificationResult{Reference: topup.PaymentReference, Status: localStatus(topup.Status)}, nil
	}
	if s.gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeGateway, "payment gateway not configured")
	}

	verification, err := s.gateway.VerifyPayment(ctx, topup.PaymentReference)
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeGateway, err, "verify payment")
		}
		return nil, err
	}
	return &VerificationResult{
		Reference: topup.PaymentReference,
		Status:    verification.Status,
		Raw:       verification.Raw,
	}, nil
}

func (s *service) Get(ctx context.Context, reference string) (*models.WalletTopup, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference required")
	}
	topup, err := s.repo.FindByReference(ctx, reference)
	if err != nil {
		return nil, translateLookup(err)
	}
	return topup, nil
}

func (s *service) ListStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]models.WalletTopup, error) {
	cutoff := s.now().Add(-olderThan)
	rows, err := s.repo.ListPendingBefore(ctx, cutoff, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale top-ups")
	}
	return rows, nil
}

func requirePending(topup *models.WalletTopup) error {
	switch topup.Status {
	case enums.TopupStatusPending:
		return nil
	case enums.TopupStatusCompleted:
		return alreadyCompleted(topup)
	default:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "top-up already failed").
			WithDetails(map[string]any{"reference": topup.PaymentReference, "status": string(topup.Status), "gateway": string(topup.Gateway)})
	}
}

func alreadyCompleted(topup *models.WalletTopup) error {
	return pkgerrors.New(pkgerrors.CodeAlreadyCompleted, "top-up already completed").
		WithDetails(map[string]any{"reference": topup.PaymentReference, "status": string(topup.Status), "gateway": string(topup.Gateway)})
}

func gatewayLabel(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		if details, ok := typed.Details().(map[string]any); ok {
			if gw, ok := details["gateway"].(string); ok {
				return gw
			}
		}
	}
	return "unknown"
}

func translateLookup(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "top-up not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load top-up")
}

func localStatus(status enums.TopupStatus) midtrans.Status {
	switch status {
	case enums.TopupStatusCompleted:
		return midtrans.StatusSuccess
	case enums.TopupStatusFailed:
		return midtrans.StatusFailed
	default:
		return midtrans.StatusPending
	}
}

// NewReference returns a fresh top-up payment reference.
func NewReference() string {
	return "TOPUP-" + uuid.NewString()
}
