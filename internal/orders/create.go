package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/fooddash-backend/internal/notifications"
	"github.com/angelmondragon/fooddash-backend/internal/users"
	"github.com/angelmondragon/fooddash-backend/internal/wallet"
	"github.com/angelmondragon/fooddash-backend/pkg/db/models"
	"github.com/angelmondragon/fooddash-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fooddash-backend/pkg/errors"
	"github.com/angelmondragon/fooddash-backend/pkg/money"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateOrder places an order at the catalog's current prices. With wallet
// payment in placement mode the debit shares the order's transaction, so an
// unpaid order is never persisted.
func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderView, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}
	actor, err := s.directory.Resolve(ctx, input.CustomerID)
	if err != nil {
		return nil, err
	}
	if actor.Role != enums.UserRoleCustomer {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only customers place orders")
	}

	address, err := s.catalog.FindAddress(ctx, input.AddressID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
	}
	if address.UserID != actor.ID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "address belongs to another user")
	}

	priced, total, err := s.priceItems(ctx, input.Items)
	if err != nil {
		return nil, err
	}

	chargeNow := input.PaymentMethod == enums.PaymentMethodWallet && !s.cfg.ChargeOnConfirmation
	paymentStatus := enums.PaymentStatusNotRequired
	if input.PaymentMethod == enums.PaymentMethodWallet {
		paymentStatus = enums.PaymentStatusPending
		if !chargeNow {
			if err := s.ensureAffordable(ctx, actor.ID, total); err != nil {
				return nil, err
			}
		}
	}

	now := s.now()
	order := &models.Order{
		ID:            uuid.New(),
		CustomerID:    actor.ID,
		AddressID:     address.ID,
		TotalMinor:    total,
		Status:        enums.OrderStatusPlaced,
		PaymentMethod: input.PaymentMethod,
		PaymentStatus: paymentStatus,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for i := range priced {
		priced[i].ID = uuid.New()
		priced[i].OrderID = order.ID
		priced[i].CreatedAt = now
	}

	var entry *wallet.Entry
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if chargeNow {
			order.PaymentStatus = enums.PaymentStatusPaid
		}
		if err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		if err := repo.CreateItems(ctx, priced); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
		}
		if err := repo.AppendStatusEvent(ctx, &models.OrderStatusEvent{
			ID:          uuid.New(),
			OrderID:     order.ID,
			ToStatus:    enums.OrderStatusPlaced,
			ActorUserID: actor.ID,
			ActorRole:   actor.Role,
			CreatedAt:   now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record status event")
		}
		if !chargeNow {
			return nil
		}

		orderID := order.ID
		var err error
		entry, err = s.ledger.DebitTx(ctx, tx, wallet.DebitInput{
			UserID:      actor.ID,
			AmountMinor: total,
			OrderID:     &orderID,
			Description: "payment for order " + order.ID.String(),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.announcePlacement(ctx, order, actor, entry)
	return s.render(ctx, order.ID, actor.Role)
}

func (s *service) announcePlacement(ctx context.Context, order *models.Order, actor users.Actor, entry *wallet.Entry) {
	if entry != nil {
		s.ledger.Announce(ctx, entry)
	}
	s.metrics.ObserveTransition("", string(enums.OrderStatusPlaced))

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	logCtx = s.logg.WithUserID(logCtx, actor.ID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"total_minor":    order.TotalMinor,
		"payment_method": string(order.PaymentMethod),
	})
	s.logg.Info(logCtx, "order placed")

	orderID := order.ID
	total := money.New(order.TotalMinor, s.cfg.Currency, s.cfg.CurrencyDigits)
	s.notifier.Notify(ctx, notifications.Message{
		UserID:  order.CustomerID,
		Type:    enums.NotificationTypeOrderPlaced,
		Title:   "Order placed",
		Body:    fmt.Sprintf("Order %s for %s %s has been placed.", shortID(order.ID), total.Formatted, total.Currency),
		OrderID: &orderID,
	})
}

// priceItems snapshots catalog prices onto new order items and sums the total.
func (s *service) priceItems(ctx context.Context, items []OrderItemInput) ([]models.OrderItem, int64, error) {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.FoodID)
	}
	foods, err := s.catalog.FindFoods(ctx, ids)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load foods")
	}
	byID := make(map[uuid.UUID]models.Food, len(foods))
	for _, food := range foods {
		byID[food.ID] = food
	}

	var (
		missing     []string
		unavailable []string
		total       int64
		out         = make([]models.OrderItem, 0, len(items))
	)
	for _, item := range items {
		food, ok := byID[item.FoodID]
		if !ok {
			missing = append(missing, item.FoodID.String())
			continue
		}
		if !food.Available {
			unavailable = append(unavailable, food.ID.String())
			continue
		}
		line := models.OrderItem{
			FoodID:         food.ID,
			Quantity:       item.Quantity,
			UnitPriceMinor: food.PriceMinor,
		}
		total += line.LineTotalMinor()
		out = append(out, line)
	}
	if len(missing) > 0 {
		return nil, 0, pkgerrors.New(pkgerrors.CodeNotFound, "food not found").
			WithDetails(map[string]any{"food_ids": missing})
	}
	if len(unavailable) > 0 {
		return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "food is not available").
			WithDetails(map[string]any{"food_ids": unavailable})
	}
	return out, total, nil
}

func (s *service) ensureAffordable(ctx context.Context, userID uuid.UUID, total int64) error {
	balance, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		return err
	}
	if balance.Status != enums.WalletStatusActive {
		return pkgerrors.New(pkgerrors.CodeForbidden, "wallet is not active").
			WithDetails(map[string]any{"reason": "WALLET_INACTIVE", "status": string(balance.Status)})
	}
	if balance.Balance.Minor < total {
		return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "insufficient wallet balance").
			WithDetails(map[string]any{
				"balance_minor":   balance.Balance.Minor,
				"required_minor":  total,
				"shortfall_minor": total - balance.Balance.Minor,
			})
	}
	return nil
}

func validateCreateInput(input CreateOrderInput) error {
	if input.CustomerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.AddressID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "address id required")
	}
	if !input.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method").
			WithDetails(map[string]any{"payment_method": string(input.PaymentMethod)})
	}
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item")
	}
	seen := make(map[uuid.UUID]struct{}, len(input.Items))
	for i, item := range input.Items {
		if item.FoodID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "food id required").
				WithDetails(map[string]any{"index": i})
		}
		if item.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
				WithDetails(map[string]any{"index": i, "quantity": item.Quantity})
		}
		if _, dup := seen[item.FoodID]; dup {
			return pkgerrors.New(pkgerrors.CodeValidation, "duplicate food in order").
				WithDetails(map[string]any{"food_id": item.FoodID.String()})
		}
		seen[item.FoodID] = struct{}{}
	}
	return nil
}
