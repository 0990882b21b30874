// Package midtranswebhook applies Midtrans HTTP notifications to pending
// wallet top-ups.
package midtranswebhook

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/angelmondragon/fooddash-backend/internal/topups"
	"github.com/angelmondragon/fooddash-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/fooddash-backend/pkg/errors"
	"github.com/angelmondragon/fooddash-backend/pkg/logger"
	"github.com/angelmondragon/fooddash-backend/pkg/midtrans"
	"github.com/angelmondragon/fooddash-backend/pkg/money"
)

// Notification is the subset of the Midtrans notification body we act on.
type Notification struct {
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	TransactionID     string `json:"transaction_id"`
	PaymentType       string `json:"payment_type"`
}

// Outcome describes what a notification did.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomePending   Outcome = "pending"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeSettled   Outcome = "already_settled"
)

type signatureVerifier interface {
	VerifySignature(orderID, statusCode, grossAmount, signature string) bool
}

type guard interface {
	CheckAndMark(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

type ServiceParams struct {
	Topups         topups.Service
	Verifier       signatureVerifier
	Guard          guard
	Logger         *logger.Logger
	CurrencyDigits int32
}

type Service struct {
	topups   topups.Service
	verifier signatureVerifier
	guard    guard
	logg     *logger.Logger
	digits   int32
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Topups == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "topup service required")
	}
	if params.Verifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "signature verifier required")
	}
	if params.Guard == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		topups:   params.Topups,
		verifier: params.Verifier,
		guard:    params.Guard,
		logg:     params.Logger,
		digits:   params.CurrencyDigits,
	}, nil
}

// HandleNotification authenticates and applies a raw notification body.
func (s *Service) HandleNotification(ctx context.Context, body []byte) (Outcome, error) {
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode midtrans notification")
	}
	if n.OrderID == "" || n.StatusCode == "" || n.GrossAmount == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "notification missing order_id, status_code or gross_amount")
	}
	if !s.verifier.VerifySignature(n.OrderID, n.StatusCode, n.GrossAmount, n.SignatureKey) {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid notification signature")
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"topup_reference":    n.OrderID,
		"transaction_status": n.TransactionStatus,
	})

	status := midtrans.MapStatus(n.TransactionStatus, n.FraudStatus)
	if status == midtrans.StatusPending {
		s.logg.Debug(ctx, "midtrans notification still pending")
		return OutcomePending, nil
	}

	key := idempotencyKey(n)
	seen, err := s.guard.CheckAndMark(ctx, key)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check notification idempotency")
	}
	if seen {
		s.logg.Info(ctx, "duplicate midtrans notification ignored")
		return OutcomeDuplicate, nil
	}

	outcome, err := s.apply(ctx, n, status, body)
	if err != nil {
		if releaseErr := s.guard.Release(ctx, key); releaseErr != nil {
			s.logg.Error(ctx, "release notification idempotency key", releaseErr)
		}
		return "", err
	}
	return outcome, nil
}

func (s *Service) apply(ctx context.Context, n Notification, status midtrans.Status, body []byte) (Outcome, error) {
	if status == midtrans.StatusFailed {
		_, err := s.topups.FailTopup(ctx, n.OrderID, "gateway reported "+strings.ToLower(n.TransactionStatus), body)
		if settled(err) {
			return OutcomeSettled, nil
		}
		if err != nil {
			return "", err
		}
		s.logg.Info(ctx, "topup failed by gateway notification")
		return OutcomeFailed, nil
	}

	topup, err := s.topups.Get(ctx, n.OrderID)
	if err != nil {
		return "", err
	}
	if err := s.checkAmount(topup, n.GrossAmount); err != nil {
		s.logg.Error(ctx, "notification amount mismatch", err)
		return "", err
	}

	_, err = s.topups.CompleteTopup(ctx, n.OrderID, body)
	if settled(err) {
		return OutcomeSettled, nil
	}
	if err != nil {
		return "", err
	}
	s.logg.Info(ctx, "topup completed by gateway notification")
	return OutcomeCompleted, nil
}

func (s *Service) checkAmount(topup *models.WalletTopup, gross string) error {
	paid, err := money.FromMajorString(gross, s.digits)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse gross amount")
	}
	if paid != topup.AmountMinor {
		return pkgerrors.New(pkgerrors.CodeDataIntegrity, "gross amount does not match top-up").
			WithDetails(map[string]any{"expected_minor": topup.AmountMinor, "reported_minor": paid})
	}
	return nil
}

// settled reports errors meaning the top-up already reached a terminal state.
func settled(err error) bool {
	return pkgerrors.IsCode(err, pkgerrors.CodeAlreadyCompleted) || pkgerrors.IsCode(err, pkgerrors.CodeStateConflict)
}

func idempotencyKey(n Notification) string {
	id := n.TransactionID
	if id == "" {
		id = n.OrderID
	}
	return id + ":" + strings.ToLower(n.TransactionStatus)
}
