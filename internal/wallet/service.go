package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/fooddash-backend/internal/notifications"
	"github.com/angelmondragon/fooddash-backend/pkg/db/models"
	"github.com/angelmondragon/fooddash-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fooddash-backend/pkg/errors"
	"github.com/angelmondragon/fooddash-backend/pkg/logger"
	"github.com/angelmondragon/fooddash-backend/pkg/metrics"
	"github.com/angelmondragon/fooddash-backend/pkg/money"
	"github.com/angelmondragon/fooddash-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the only writer of wallet balances. Every balance change
// appends exactly one WalletTransaction in the same transaction, so a
// wallet's balance always equals its credits minus its debits.
type Service interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	Balance(ctx context.Context, userID uuid.UUID) (*BalanceView, error)
	Debit(ctx context.Context, input DebitInput) (*Entry, error)
	Credit(ctx context.Context, input CreditInput) (*Entry, error)
	// DebitTx and CreditTx join the caller's transaction. The caller must
	// pass the returned entry to Announce after commit.
	DebitTx(ctx context.Context, tx *gorm.DB, input DebitInput) (*Entry, error)
	CreditTx(ctx context.Context, tx *gorm.DB, input CreditInput) (*Entry, error)
	Announce(ctx context.Context, entries ...*Entry)
	ListTransactions(ctx context.Context, userID uuid.UUID, params pagination.Params) (*TransactionPage, error)
	Reconcile(ctx context.Context, userID uuid.UUID) (*Reconciliation, error)
}

// Config carries the ledger currency settings.
type Config struct {
	Currency       string
	CurrencyDigits int32
}

type service struct {
	repo     Repository
	tx       txRunner
	notifier notifications.Gateway
	metrics  *metrics.LedgerMetrics
	logg     *logger.Logger
	cfg      Config
	now      func() time.Time
}

type DebitInput struct {
	UserID      uuid.UUID
	AmountMinor int64
	OrderID     *uuid.UUID
	Description string
}

type CreditInput struct {
	UserID      uuid.UUID
	AmountMinor int64
	Description string
	TopupID     *uuid.UUID
	OrderID     *uuid.UUID
}

// Entry is the committed (or about to be committed) result of one movement.
type Entry struct {
	Wallet        models.Wallet
	Transaction   models.WalletTransaction
	WalletCreated bool
}

type BalanceView struct {
	WalletID uuid.UUID          `json:"wallet_id"`
	Balance  money.Amount       `json:"balance"`
	Status   enums.WalletStatus `json:"status"`
}

type TransactionPage = pagination.Page[models.WalletTransaction]

// Reconciliation compares the stored balance with the ledger sum.
type Reconciliation struct {
	WalletID     uuid.UUID `json:"wallet_id"`
	BalanceMinor int64     `json:"balance_minor"`
	CreditsMinor int64     `json:"credits_minor"`
	DebitsMinor  int64     `json:"debits_minor"`
	DriftMinor   int64     `json:"drift_minor"`
	Consistent   bool      `json:"consistent"`
}

// NewService wires the wallet ledger.
func NewService(repo Repository, tx txRunner, notifier notifications.Gateway, ledgerMetrics *metrics.LedgerMetrics, logg *logger.Logger, cfg Config) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notification gateway required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.Currency == "" {
		return nil, fmt.Errorf("wallet currency required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		notifier: notifier,
		metrics:  ledgerMetrics,
		logg:     logg,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	wallet, created, err := s.ensureWallet(ctx, s.repo, userID, false)
	if err != nil {
		return nil, err
	}
	if created {
		s.announceCreated(ctx, wallet)
	}
	return wallet, nil
}

func (s *service) Balance(ctx context.Context, userID uuid.UUID) (*BalanceView, error) {
	wallet, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &BalanceView{
		WalletID: wallet.ID,
		Balance:  money.New(wallet.BalanceMinor, wallet.Currency, s.cfg.CurrencyDigits),
		Status:   wallet.Status,
	}, nil
}

func (s *service) Debit(ctx context.Context, input DebitInput) (*Entry, error) {
	var entry *Entry
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		entry, err = s.DebitTx(ctx, tx, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.Announce(ctx, entry)
	return entry, nil
}

func (s *service) Credit(ctx context.Context, input CreditInput) (*Entry, error) {
	var entry *Entry
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		entry, err = s.CreditTx(ctx, tx, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.Announce(ctx, entry)
	return entry, nil
}

func (s *service) DebitTx(ctx context.Context, tx *gorm.DB, input DebitInput) (*Entry, error) {
	if err := validateMovement(input.UserID, input.AmountMinor); err != nil {
		return nil, err
	}
	repo := s.repo.WithTx(tx)

	wallet, created, err := s.ensureWallet(ctx, repo, input.UserID, true)
	if err != nil {
		return nil, err
	}
	if err := requireActive(wallet); err != nil {
		return nil, err
	}
	if wallet.BalanceMinor < input.AmountMinor {
		s.metrics.IncInsufficientFunds()
		return nil, insufficientFunds(wallet.BalanceMinor, input.AmountMinor)
	}

	description := input.Description
	if description == "" {
		description = "wallet payment"
	}
	return s.apply(ctx, repo, wallet, created, movement{
		kind:        enums.WalletTransactionTypeDebit,
		amount:      input.AmountMinor,
		description: description,
		orderID:     input.OrderID,
	})
}

func (s *service) CreditTx(ctx context.Context, tx *gorm.DB, input CreditInput) (*Entry, error) {
	if err := validateMovement(input.UserID, input.AmountMinor); err != nil {
		return nil, err
	}
	repo := s.repo.WithTx(tx)

	wallet, created, err := s.ensureWallet(ctx, repo, input.UserID, true)
	if err != nil {
		return nil, err
	}
	if err := requireActive(wallet); err != nil {
		return nil, err
	}

	description := input.Description
	if description == "" {
		description = "wallet credit"
	}
	return s.apply(ctx, repo, wallet, created, movement{
		kind:        enums.WalletTransactionTypeCredit,
		amount:      input.AmountMinor,
		description: description,
		orderID:     input.OrderID,
		topupID:     input.TopupID,
	})
}

type movement struct {
	kind        enums.WalletTransactionType
	amount      int64
	description string
	orderID     *uuid.UUID
	topupID     *uuid.UUID
}

// apply must run on a repository bound to the transaction holding the
// wallet row lock.
func (s *service) apply(ctx context.Context, repo Repository, wallet *models.Wallet, created bool, m movement) (*Entry, error) {
	before := wallet.BalanceMinor
	next := before + m.amount
	if m.kind == enums.WalletTransactionTypeDebit {
		next = before - m.amount
	}
	now := s.now()

	ok, err := repo.CompareAndSetBalance(ctx, wallet.ID, before, next, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update wallet balance")
	}
	if !ok {
		ctx = s.logg.WithWalletID(ctx, wallet.ID.String())
		s.logg.Warn(ctx, "wallet balance changed between read and write")
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "wallet balance changed concurrently")
	}

	txn := models.WalletTransaction{
		ID:                 uuid.New(),
		WalletID:           wallet.ID,
		Type:               m.kind,
		AmountMinor:        m.amount,
		BalanceBeforeMinor: before,
		BalanceAfterMinor:  next,
		Reference:          NewTransactionReference(),
		Description:        m.description,
		OrderID:            m.orderID,
		TopupID:            m.topupID,
		Status:             models.WalletTransactionStatusCompleted,
		CreatedAt:          now,
	}
	if err := repo.AppendTransaction(ctx, &txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append wallet transaction")
	}

	updated := *wallet
	updated.BalanceMinor = next
	updated.UpdatedAt = now
	return &Entry{Wallet: updated, Transaction: txn, WalletCreated: created}, nil
}

// ensureWallet loads the user's wallet, creating an empty active wallet on
// first access. Concurrent first accesses converge on a single row.
func (s *service) ensureWallet(ctx context.Context, repo Repository, userID uuid.UUID, lock bool) (*models.Wallet, bool, error) {
	find := repo.FindByUserID
	if lock {
		find = repo.LockByUserID
	}

	wallet, err := find(ctx, userID)
	if err == nil {
		return wallet, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}

	created, err := repo.CreateIfAbsent(ctx, &models.Wallet{
		ID:           uuid.New(),
		UserID:       userID,
		BalanceMinor: 0,
		Currency:     s.cfg.Currency,
		Status:       enums.WalletStatusActive,
	})
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create wallet")
	}
	wallet, err = find(ctx, userID)
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload wallet")
	}
	return wallet, created, nil
}

func (s *service) ListTransactions(ctx context.Context, userID uuid.UUID, params pagination.Params) (*TransactionPage, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	wallet, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &TransactionPage{Items: []models.WalletTransaction{}}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}

	rows, err := s.repo.ListTransactions(ctx, wallet.ID, pagination.LimitWithBuffer(params.Limit), cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wallet transactions")
	}
	page := pagination.Trim(rows, params.Limit, func(row models.WalletTransaction) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
	return &page, nil
}

func (s *service) Reconcile(ctx context.Context, userID uuid.UUID) (*Reconciliation, error) {
	wallet, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	totals, err := s.repo.SumByType(ctx, wallet.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum wallet transactions")
	}

	credits := totals[enums.WalletTransactionTypeCredit]
	debits := totals[enums.WalletTransactionTypeDebit]
	drift := wallet.BalanceMinor - (credits - debits)
	result := &Reconciliation{
		WalletID:     wallet.ID,
		BalanceMinor: wallet.BalanceMinor,
		CreditsMinor: credits,
		DebitsMinor:  debits,
		DriftMinor:   drift,
		Consistent:   drift == 0,
	}
	if !result.Consistent {
		ctx = s.logg.WithWalletID(ctx, wallet.ID.String())
		ctx = s.logg.WithField(ctx, "drift_minor", drift)
		s.logg.Error(ctx, "wallet ledger drift detected", nil)
	}
	return result, nil
}

func validateMovement(userID uuid.UUID, amount int64) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if amount <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive").
			WithDetails(map[string]any{"amount_minor": amount})
	}
	return nil
}

func requireActive(wallet *models.Wallet) error {
	if wallet.Status == enums.WalletStatusActive {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "wallet is not active").
		WithDetails(map[string]any{"reason": "WALLET_INACTIVE", "status": string(wallet.Status)})
}

func insufficientFunds(balance, required int64) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "insufficient wallet balance").
		WithDetails(map[string]any{
			"balance_minor":   balance,
			"required_minor":  required,
			"shortfall_minor": required - balance,
		})
}

// NewTransactionReference returns a fresh globally unique ledger reference.
func NewTransactionReference() string {
	return "TXN-" + uuid.NewString()
}
