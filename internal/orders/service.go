package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/fooddash-backend/internal/catalog"
	"github.com/angelmondragon/fooddash-backend/internal/notifications"
	"github.com/angelmondragon/fooddash-backend/internal/users"
	"github.com/angelmondragon/fooddash-backend/internal/wallet"
	"github.com/angelmondragon/fooddash-backend/pkg/db/models"
	"github.com/angelmondragon/fooddash-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fooddash-backend/pkg/errors"
	"github.com/angelmondragon/fooddash-backend/pkg/logger"
	"github.com/angelmondragon/fooddash-backend/pkg/metrics"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ledger interface {
	Balance(ctx context.Context, userID uuid.UUID) (*wallet.BalanceView, error)
	DebitTx(ctx context.Context, tx *gorm.DB, input wallet.DebitInput) (*wallet.Entry, error)
	CreditTx(ctx context.Context, tx *gorm.DB, input wallet.CreditInput) (*wallet.Entry, error)
	Announce(ctx context.Context, entries ...*wallet.Entry)
}

// Service is the only writer of order status.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderView, error)
	ChangeStatus(ctx context.Context, input ChangeStatusInput) (*OrderView, error)
	AssignRider(ctx context.Context, input AssignRiderInput) (*OrderView, error)
	Get(ctx context.Context, orderID, actorUserID uuid.UUID) (*OrderView, error)
	History(ctx context.Context, orderID, actorUserID uuid.UUID) ([]StatusEventView, error)
}

// Config controls wallet charging and amount rendering.
type Config struct {
	// ChargeOnConfirmation defers the wallet debit from placement to the
	// placed -> confirmed transition.
	ChargeOnConfirmation bool
	Currency             string
	CurrencyDigits       int32
}

type ServiceParams struct {
	Repo      Repository
	DB        txRunner
	Directory users.Directory
	Catalog   catalog.Repository
	Ledger    ledger
	Notifier  notifications.Gateway
	Metrics   *metrics.OrderMetrics
	Logger    *logger.Logger
	Config    Config
	// Clock defaults to time.Now in UTC.
	Clock     func() time.Time
}

type service struct {
	repo      Repository
	tx        txRunner
	directory users.Directory
	catalog   catalog.Repository
	ledger    ledger
	notifier  notifications.Gateway
	metrics   *metrics.OrderMetrics
	logg      *logger.Logger
	cfg       Config
	now       func() time.Time
	newCode   func() (string, error)
}

// NewService builds the order state machine with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if err := ValidateTables(); err != nil {
		return nil, fmt.Errorf("order state tables: %w", err)
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Directory == nil {
		return nil, fmt.Errorf("user directory required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog repository required")
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
	if params.Config.Currency == "" {
		return nil, fmt.Errorf("currency required")
	}
	clock := params.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:      params.Repo,
		tx:        params.DB,
		directory: params.Directory,
		catalog:   params.Catalog,
		ledger:    params.Ledger,
		notifier:  params.Notifier,
		metrics:   params.Metrics,
		logg:      params.Logger,
		cfg:       params.Config,
		now:       clock,
		newCode:   NewDeliveryCode,
	}, nil
}

// transitionOutcome carries what must be announced once the transaction commits.
type transitionOutcome struct {
	order   *models.Order
	from    enums.OrderStatus
	entries []*wallet.Entry
}

func (s *service) ChangeStatus(ctx context.Context, input ChangeStatusInput) (*OrderView, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown target status").
			WithDetails(map[string]any{"requested": string(input.Target)})
	}

	actor, err := s.directory.Resolve(ctx, input.ActorUserID)
	if err != nil {
		return nil, err
	}

	var outcome transitionOutcome
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.LockByID(ctx, input.OrderID)
		if err != nil {
			return translateLookup(err)
		}
		if !RoleMayRequest(actor.Role, input.Target) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "role may not request this status").
				WithDetails(map[string]any{"role": string(actor.Role), "requested": string(input.Target)})
		}
		if err := authorizeActor(order, actor); err != nil {
			return err
		}

		outcome, err = s.applyTransition(ctx, tx, order, input.Target, actor)
		return err
	})
	if err != nil {
		s.metrics.IncRejected(string(codeOf(err)))
		return nil, err
	}

	s.announceTransition(ctx, outcome)
	return s.render(ctx, outcome.order.ID, actor.Role)
}

// applyTransition runs inside the caller's transaction with the order row locked.
func (s *service) applyTransition(ctx context.Context, tx *gorm.DB, order *models.Order, target enums.OrderStatus, actor users.Actor) (transitionOutcome, error) {
	current := order.Status
	allowed, known := CanTransition(current, target)
	if !known {
		logCtx := s.logg.WithOrderID(ctx, order.ID.String())
		s.logg.Error(logCtx, "order carries unknown status", nil)
		return transitionOutcome{}, pkgerrors.New(pkgerrors.CodeDataIntegrity, "order has unknown status").
			WithDetails(map[string]any{"current": string(current)})
	}
	if !allowed {
		return transitionOutcome{}, pkgerrors.New(pkgerrors.CodeInvalidTransition, "order status transition not allowed").
			WithDetails(map[string]any{"current": string(current), "requested": string(target)})
	}

	now := s.now()
	updates := map[string]any{"updated_at": now}
	var entries []*wallet.Entry

	switch target {
	case enums.OrderStatusDelivered:
		updates["delivery_time"] = now
		order.DeliveryTime = &now
	case enums.OrderStatusConfirmed:
		if order.PaymentMethod == enums.PaymentMethodWallet && order.PaymentStatus == enums.PaymentStatusPending {
			orderID := order.ID
			entry, err := s.ledger.DebitTx(ctx, tx, wallet.DebitInput{
				UserID:      order.CustomerID,
				AmountMinor: order.TotalMinor,
				OrderID:     &orderID,
				Description: "payment for order " + order.ID.String(),
			})
			if err != nil {
				return transitionOutcome{}, err
			}
			entries = append(entries, entry)
			updates["payment_status"] = enums.PaymentStatusPaid
			order.PaymentStatus = enums.PaymentStatusPaid
		}
	case enums.OrderStatusCancelled:
		if order.PaymentMethod == enums.PaymentMethodWallet && order.PaymentStatus == enums.PaymentStatusPaid {
			orderID := order.ID
			entry, err := s.ledger.CreditTx(ctx, tx, wallet.CreditInput{
				UserID:      order.CustomerID,
				AmountMinor: order.TotalMinor,
				OrderID:     &orderID,
				Description: "refund for order " + order.ID.String(),
			})
			if err != nil {
				return transitionOutcome{}, err
			}
			entries = append(entries, entry)
			updates["payment_status"] = enums.PaymentStatusRefunded
			order.PaymentStatus = enums.PaymentStatusRefunded
		}
	}

	repo := s.repo.WithTx(tx)
	ok, err := repo.UpdateStatus(ctx, order.ID, current, target, updates)
	if err != nil {
		return transitionOutcome{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !ok {
		return transitionOutcome{}, pkgerrors.New(pkgerrors.CodeConflict, "order changed concurrently")
	}

	from := string(current)
	if err := repo.AppendStatusEvent(ctx, &models.OrderStatusEvent{
		ID:          uuid.New(),
		OrderID:     order.ID,
		FromStatus:  &from,
		ToStatus:    target,
		ActorUserID: actor.ID,
		ActorRole:   actor.Role,
		CreatedAt:   now,
	}); err != nil {
		return transitionOutcome{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record status event")
	}

	order.Status = target
	order.UpdatedAt = now
	return transitionOutcome{order: order, from: current, entries: entries}, nil
}

func (s *service) announceTransition(ctx context.Context, outcome transitionOutcome) {
	order := outcome.order
	s.ledger.Announce(ctx, outcome.entries...)
	s.metrics.ObserveTransition(string(outcome.from), string(order.Status))

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{"from": string(outcome.from), "to": string(order.Status)})
	s.logg.Info(logCtx, "order status changed")

	orderID := order.ID
	payload := map[string]any{"order_id": order.ID, "status": order.Status}
	recipients := []uuid.UUID{order.CustomerID}
	if order.RiderID != nil {
		recipients = append(recipients, *order.RiderID)
	}
	for _, userID := range recipients {
		s.notifier.Notify(ctx, notifications.Message{
			UserID:  userID,
			Type:    enums.NotificationTypeOrderStatus,
			Title:   "Order update",
			Body:    fmt.Sprintf("Order %s is now %s.", shortID(order.ID), order.Status),
			OrderID: &orderID,
		})
		s.notifier.Push(ctx, notifications.RealtimeEvent{
			UserID:  userID,
			Event:   notifications.EventOrderStatusChanged,
			Payload: payload,
		})
	}
}

func (s *service) AssignRider(ctx context.Context, input AssignRiderInput) (*OrderView, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.RiderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rider id required")
	}

	actor, err := s.directory.Resolve(ctx, input.ActorUserID)
	if err != nil {
		return nil, err
	}
	if actor.Role != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins assign riders")
	}
	rider, err := s.directory.Resolve(ctx, input.RiderID)
	if err != nil {
		return nil, err
	}

	var (
		assigned *models.Order
		previous *uuid.UUID
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.LockByID(ctx, input.OrderID)
		if err != nil {
			return translateLookup(err)
		}
		if !order.Status.AcceptsRiderAssignment() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "rider cannot be assigned in current status").
				WithDetails(map[string]any{"current": string(order.Status)})
		}
		if rider.Role != enums.UserRoleRider {
			return pkgerrors.New(pkgerrors.CodeForbidden, "assignee is not a rider").
				WithDetails(map[string]any{"role": string(rider.Role)})
		}

		code := ""
		if order.DeliveryCode != nil && *order.DeliveryCode != "" {
			code = *order.DeliveryCode
		} else {
			code, err = s.newCode()
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate delivery code")
			}
		}

		now := s.now()
		ok, err := repo.AssignRider(ctx, order.ID, order.Status, rider.ID, code, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign rider")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "order changed concurrently")
		}

		previous = order.RiderID
		riderID := rider.ID
		order.RiderID = &riderID
		order.DeliveryCode = &code
		order.UpdatedAt = now
		assigned = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.announceAssignment(ctx, assigned, previous)
	return s.render(ctx, assigned.ID, actor.Role)
}

func (s *service) announceAssignment(ctx context.Context, order *models.Order, previous *uuid.UUID) {
	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	logCtx = s.logg.WithField(logCtx, "rider_id", order.RiderID.String())
	if previous != nil && *previous != *order.RiderID {
		logCtx = s.logg.WithField(logCtx, "previous_rider_id", previous.String())
	}
	s.logg.Info(logCtx, "rider assigned")

	orderID := order.ID
	payload := map[string]any{"order_id": order.ID, "rider_id": *order.RiderID}
	s.notifier.Notify(ctx, notifications.Message{
		UserID:  *order.RiderID,
		Type:    enums.NotificationTypeRiderAssigned,
		Title:   "New delivery",
		Body:    fmt.Sprintf("You have been assigned order %s.", shortID(order.ID)),
		OrderID: &orderID,
	})
	s.notifier.Notify(ctx, notifications.Message{
		UserID:  order.CustomerID,
		Type:    enums.NotificationTypeRiderAssigned,
		Title:   "Rider on the way",
		Body:    fmt.Sprintf("A rider has been assigned to order %s. Share your delivery code only at handoff.", shortID(order.ID)),
		OrderID: &orderID,
	})
	for _, userID := range []uuid.UUID{*order.RiderID, order.CustomerID} {
		s.notifier.Push(ctx, notifications.RealtimeEvent{
			UserID:  userID,
			Event:   notifications.EventRiderAssigned,
			Payload: payload,
		})
	}
}

func (s *service) Get(ctx context.Context, orderID, actorUserID uuid.UUID) (*OrderView, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	actor, err := s.directory.Resolve(ctx, actorUserID)
	if err != nil {
		return nil, err
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, translateLookup(err)
	}
	if err := authorizeActor(order, actor); err != nil {
		return nil, err
	}
	return toView(order, actor.Role, s.cfg.Currency, s.cfg.CurrencyDigits), nil
}

func (s *service) History(ctx context.Context, orderID, actorUserID uuid.UUID) ([]StatusEventView, error) {
	if _, err := s.Get(ctx, orderID, actorUserID); err != nil {
		return nil, err
	}
	events, err := s.repo.ListStatusEvents(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list status events")
	}
	out := make([]StatusEventView, 0, len(events))
	for _, ev := range events {
		out = append(out, StatusEventView{
			FromStatus:  ev.FromStatus,
			ToStatus:    ev.ToStatus,
			ActorUserID: ev.ActorUserID,
			ActorRole:   ev.ActorRole,
			CreatedAt:   ev.CreatedAt,
		})
	}
	return out, nil
}

func (s *service) render(ctx context.Context, orderID uuid.UUID, viewer enums.UserRole) (*OrderView, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, translateLookup(err)
	}
	return toView(order, viewer, s.cfg.Currency, s.cfg.CurrencyDigits), nil
}

// authorizeActor applies ownership: customers act on their own orders,
// riders on orders assigned to them, admins on any order.
func authorizeActor(order *models.Order, actor users.Actor) error {
	switch actor.Role {
	case enums.UserRoleAdmin:
		return nil
	case enums.UserRoleCustomer:
		if order.CustomerID == actor.ID {
			return nil
		}
		return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another customer")
	case enums.UserRoleRider:
		if order.RiderID != nil && *order.RiderID == actor.ID {
			return nil
		}
		return pkgerrors.New(pkgerrors.CodeForbidden, "order is not assigned to this rider")
	default:
		return pkgerrors.New(pkgerrors.CodeForbidden, "unknown role")
	}
}

func translateLookup(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}

func codeOf(err error) pkgerrors.Code {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Code()
	}
	return pkgerrors.CodeInternal
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
