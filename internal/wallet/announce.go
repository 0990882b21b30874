package wallet

import (
	"context"

	"github.com/angelmondragon/fooddash-backend/internal/notifications"
	"github.com/angelmondragon/fooddash-backend/pkg/db/models"
	"github.com/angelmondragon/fooddash-backend/pkg/enums"
	"github.com/angelmondragon/fooddash-backend/pkg/money"
)

// BalanceUpdate is the realtime payload pushed after every committed movement.
type BalanceUpdate struct {
	WalletID      string       `json:"wallet_id"`
	Balance       money.Amount `json:"balance"`
	TransactionID string       `json:"transaction_id"`
	Type          string       `json:"type"`
	Reference     string       `json:"reference"`
}

// Announce records metrics and emits notifications for committed entries.
// Call it only once the surrounding transaction has committed.
func (s *service) Announce(ctx context.Context, entries ...*Entry) {
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		txn := entry.Transaction
		s.metrics.ObserveEntry(string(txn.Type), txn.AmountMinor)

		if entry.WalletCreated {
			s.announceCreated(ctx, &entry.Wallet)
		}

		amount := money.New(txn.AmountMinor, entry.Wallet.Currency, s.cfg.CurrencyDigits)
		msg := notifications.Message{
			UserID:  entry.Wallet.UserID,
			OrderID: txn.OrderID,
		}
		switch txn.Type {
		case enums.WalletTransactionTypeDebit:
			msg.Type = enums.NotificationTypePaymentConfirmation
			msg.Title = "Payment confirmed"
			msg.Body = "Paid " + amount.Formatted + " " + amount.Currency + " from your wallet."
		default:
			msg.Type = enums.NotificationTypeWalletCredited
			msg.Title = "Wallet credited"
			msg.Body = amount.Formatted + " " + amount.Currency + " was added to your wallet."
		}
		s.notifier.Notify(ctx, msg)

		s.notifier.Push(ctx, notifications.RealtimeEvent{
			UserID: entry.Wallet.UserID,
			Event:  notifications.EventWalletBalanceUpdated,
			Payload: BalanceUpdate{
				WalletID:      entry.Wallet.ID.String(),
				Balance:       money.New(entry.Wallet.BalanceMinor, entry.Wallet.Currency, s.cfg.CurrencyDigits),
				TransactionID: txn.ID.String(),
				Type:          string(txn.Type),
				Reference:     txn.Reference,
			},
		})
	}
}

func (s *service) announceCreated(ctx context.Context, wallet *models.Wallet) {
	s.notifier.Notify(ctx, notifications.Message{
		UserID: wallet.UserID,
		Type:   enums.NotificationTypeWalletCreated,
		Title:  "Wallet ready",
		Body:   "Your wallet has been created.",
	})
}
