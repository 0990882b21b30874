// Package delivery verifies the handoff code a rider collects from the
// customer and completes the order on a match.
package delivery

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/fooddash-backend/internal/orders"
	"github.com/angelmondragon/fooddash-backend/pkg/db/models"
	"github.com/angelmondragon/fooddash-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fooddash-backend/pkg/errors"
	"github.com/angelmondragon/fooddash-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type orderReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

type statusChanger interface {
	ChangeStatus(ctx context.Context, input orders.ChangeStatusInput) (*orders.OrderView, error)
}

type Service interface {
	VerifyDelivery(ctx context.Context, input VerifyDeliveryInput) (*VerifyResult, error)
}

type VerifyDeliveryInput struct {
	OrderID uuid.UUID
	Code    string
	RiderID uuid.UUID
}

// VerifyResult reports whether the code matched. Order is set only on a match.
type VerifyResult struct {
	Verified          bool              `json:"verified"`
	AttemptsRemaining int               `json:"attempts_remaining"`
	Order             *orders.OrderView `json:"order,omitempty"`
}

type service struct {
	orders  orderReader
	changer statusChanger
	limiter *AttemptLimiter
	logg    *logger.Logger
}

func NewService(reader orderReader, changer statusChanger, limiter *AttemptLimiter, logg *logger.Logger) (Service, error) {
	if reader == nil {
		return nil, fmt.Errorf("order reader required")
	}
	if changer == nil {
		return nil, fmt.Errorf("order state machine required")
	}
	if limiter == nil {
		return nil, fmt.Errorf("attempt limiter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{orders: reader, changer: changer, limiter: limiter, logg: logg}, nil
}

func (s *service) VerifyDelivery(ctx context.Context, input VerifyDeliveryInput) (*VerifyResult, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.RiderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	code := strings.TrimSpace(input.Code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery code required")
	}

	order, err := s.orders.FindByID(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.RiderID == nil || *order.RiderID != input.RiderID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order is not assigned to this rider")
	}
	if order.DeliveryCode == nil || *order.DeliveryCode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no delivery code issued for order")
	}

	key := order.ID.String()
	logCtx := s.logg.WithOrderID(ctx, key)
	logCtx = s.logg.WithUserID(logCtx, input.RiderID.String())

	remaining, allowed, err := s.limiter.Reserve(ctx, key)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve delivery attempt")
	}
	if !allowed {
		s.logg.Warn(logCtx, "delivery code attempts exhausted")
		return nil, pkgerrors.New(pkgerrors.CodeRateLimit, "too many incorrect delivery codes").
			WithDetails(map[string]any{"retry_after_seconds": int(s.limiter.Window().Seconds())})
	}

	if subtle.ConstantTimeCompare([]byte(code), []byte(*order.DeliveryCode)) != 1 {
		s.logg.Warn(s.logg.WithField(logCtx, "attempts_remaining", remaining), "delivery code mismatch")
		return &VerifyResult{Verified: false, AttemptsRemaining: remaining}, nil
	}
	if err := s.limiter.Reset(ctx, key); err != nil {
		s.logg.Warn(logCtx, "reset delivery attempts failed: "+err.Error())
	}

	view, err := s.changer.ChangeStatus(ctx, orders.ChangeStatusInput{
		OrderID:     order.ID,
		Target:      enums.OrderStatusDelivered,
		ActorUserID: input.RiderID,
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(logCtx, "delivery verified")
	return &VerifyResult{Verified: true, AttemptsRemaining: s.limiter.Max(), Order: view}, nil
}
