package topups

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/fooddash-backend/internal/notifications/notificationstest"
	"github.com/angelmondragon/fooddash-backend/internal/wallet"
	"github.com/angelmondragon/fooddash-backend/pkg/db"
	"github.com/angelmondragon/fooddash-backend/pkg/db/dbtest"
	"github.com/angelmondragon/fooddash-backend/pkg/db/models"
	"github.com/angelmondragon/fooddash-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fooddash-backend/pkg/errors"
	"github.com/angelmondragon/fooddash-backend/pkg/logger"
	"github.com/angelmondragon/fooddash-backend/pkg/midtrans"
)

type fakeGateway struct {
	mu          sync.Mutex
	initErr     error
	verifyErr   error
	status      midtrans.Status
	initialized []midtrans.PaymentRequest
	verified    []string
}

func (f *fakeGateway) InitializePayment(ctx context.Context, req midtrans.PaymentRequest) (*midtrans.PaymentSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.initErr != nil {
		return nil, f.initErr
	}
	f.initialized = append(f.initialized, req)
	return &midtrans.PaymentSession{
		Reference:   req.Reference,
		RedirectURL: "https://pay.example/" + req.Reference,
		Token:       "tok-" + req.Reference,
	}, nil
}

func (f *fakeGateway) VerifyPayment(ctx context.Context, reference string) (*midtrans.Verification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	f.verified = append(f.verified, reference)
	return &midtrans.Verification{
		Reference: reference,
		Status:    f.status,
		Raw:       json.RawMessage(`{"transaction_status":"settlement"}`),
	}, nil
}

type harness struct {
	conn     *gorm.DB
	svc      Service
	ledger   wallet.Service
	gateway  *fakeGateway
	recorder *notificationstest.Recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	recorder := &notificationstest.Recorder{}
	ledger, err := wallet.NewService(wallet.NewRepository(conn), db.NewFromGorm(conn), recorder, nil, logger.Nop(), wallet.Config{Currency: "IDR"})
	require.NoError(t, err)

	gw := &fakeGateway{status: midtrans.StatusPending}
	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(conn),
		DB:       db.NewFromGorm(conn),
		Ledger:   ledger,
		Gateway:  gw,
		Notifier: recorder,
		Logger:   logger.Nop(),
		Config:   Config{MinAmountMinor: 10000, MaxAmountMinor: 5000000, DemoEnabled: true},
	})
	require.NoError(t, err)
	return &harness{conn: conn, svc: svc, ledger: ledger, gateway: gw, recorder: recorder}
}

func (h *harness) customer(t *testing.T) models.User {
	return dbtest.SeedUser(t, h.conn, enums.UserRoleCustomer)
}

func (h *harness) transactionCount(t *testing.T, userID uuid.UUID) int64 {
	t.Helper()
	var count int64
	require.NoError(t, h.conn.Model(&models.WalletTransaction{}).
		Joins("JOIN wallets ON wallets.id = wallet_transactions.wallet_id").
		Where("wallets.user_id = ?", userID).
		Count(&count).Error)
	return count
}

func TestInitializeDemoTopupCreatesPendingRow(t *testing.T) {
	h := newHarness(t)
	user := h.customer(t)

	res, err := h.svc.InitializeTopup(context.Background(), InitializeTopupInput{UserID: user.ID, AmountMinor: 50000, Gateway: enums.TopupGatewayDemo})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Reference, "TOPUP-"))
	assert.Empty(t, res.RedirectURL)
	assert.Empty(t, h.gateway.initialized)

	stored, err := h.svc.Get(context.Background(), res.Reference)
	require.NoError(t, err)
	assert.Equal(t, enums.TopupStatusPending, stored.Status)
	assert.Equal(t, int64(50000), stored.AmountMinor)
}

func TestInitializeTopupValidatesInput(t *testing.T) {
	h := newHarness(t)
	user := h.customer(t)
	ctx := context.Background()

	for _, amount := range []int64{0, 9999, 5000001} {
		_, err := h.svc.InitializeTopup(ctx, InitializeTopupInput{UserID: user.ID, AmountMinor: amount, Gateway: enums.TopupGatewayDemo})
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "amount %d", amount)
	}
	_, err := h.svc.InitializeTopup(ctx, InitializeTopupInput{UserID: user.ID, AmountMinor: 20000, Gateway: "paypal"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestInitializeDemoTopupDisabled(t *testing.T) {
	h := newHarness(t)
	h.svc.(*service).cfg.DemoEnabled = false
	user := h.customer(t)

	_, err := h.svc.InitializeTopup(context.Background(), InitializeTopupInput{UserID: user.ID, AmountMinor: 20000, Gateway: enums.TopupGatewayDemo})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestInitializeMidtransTopupStoresRedirect(t *testing.T) {
	h := newHarness(t)
	user := h.customer(t)

	res, err := h.svc.InitializeTopup(context.Background(), InitializeTopupInput{UserID: user.ID, AmountMinor: 75000, Gateway: enums.TopupGatewayMidtrans})
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/"+res.Reference, res.RedirectURL)
	require.Len(t, h.gateway.initialized, 1)
	assert.Equal(t, int64(75000), h.gateway.initialized[0].AmountMinor)

	stored, err := h.svc.Get(context.Background(), res.Reference)
	require.NoError(t, err)
	require.NotNil(t, stored.RedirectURL)
	assert.Equal(t, res.RedirectURL, *stored.RedirectURL)
}

func TestInitializeMidtransGatewayErrorLeavesPendingRow(t *testing.T) {
	h := newHarness(t)
	h.gateway.initErr = errors.New("connection refused")
	user := h.customer(t)

	_, err := h.svc.InitializeTopup(context.Background(), InitializeTopupInput{UserID: user.ID, AmountMinor: 75000, Gateway: enums.TopupGatewayMidtrans})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeGateway, typed.Code())
	assert.True(t, pkgerrors.MetadataFor(typed.Code()).Retryable)

	var rows []models.WalletTopup
	require.NoError(t, h.conn.Where("user_id = ?", user.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.TopupStatusPending, rows[0].Status)
}

func TestCompleteTopupCreditsExactlyOnce(t *testing.T) {
	h := newHarness(t)
	user := h.customer(t)
	ctx := context.Background()

	res, err := h.svc.InitializeTopup(ctx, InitializeTopupInput{UserID: user.ID, AmountMinor: 50000, Gateway: enums.TopupGatewayDemo})
	require.NoError(t, err)

	done, err := h.svc.CompleteTopup(ctx, res.Reference, json.RawMessage(`{"source":"demo"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(50000), done.BalanceMinor)
	assert.Equal(t, enums.TopupStatusCompleted, done.Topup.Status)
	require.NotNil(t, done.Topup.CompletedAt)

	_, err = h.svc.CompleteTopup(ctx, res.Reference, nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeAlreadyCompleted))

	view, err := h.ledger.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), view.Balance.Minor)
	assert.Equal(t, int64(1), h.transactionCount(t, user.ID))

	var txn models.WalletTransaction
	require.NoError(t, h.conn.Where("topup_id = ?", done.Topup.ID).First(&txn).Error)
	assert.Equal(t, "topup via demo", txn.Description)
	assert.Len(t, h.recorder.MessagesOfType(enums.NotificationTypeWalletCredited, user.ID), 1)
}

func TestConcurrentCompletionsCreditOnce(t *testing.T) {
	h := newHarness(t)
	user := h.customer(t)
	ctx := context.Background()

	res, err := h.svc.InitializeTopup(ctx, InitializeTopupInput{UserID: user.ID, AmountMinor: 30000, Gateway: enums.TopupGatewayDemo})
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		duplicate int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.CompleteTopup(ctx, res.Reference, nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case pkgerrors.IsCode(err, pkgerrors.CodeAlreadyCompleted):
				duplicate++
			default:
				t.Errorf("unexpected completion error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 4, duplicate)
	assert.Equal(t, int64(1), h.transactionCount(t, user.ID))
}

func TestCompleteTopupUnknownReference(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.CompleteTopup(context.Background(), "TOPUP-missing", nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestCompleteTopupRollsBackWhenCreditFails(t *testing.T) {
	h := newHarness(t)
	user := h.customer(t)
	ctx := context.Background()

	res, err := h.svc.InitializeTopup(ctx, InitializeTopupInput{UserID: user.ID, AmountMinor: 30000, Gateway: enums.TopupGatewayDemo})
	require.NoError(t, err)
	require.NoError(t, h.conn.Model(&models.Wallet{}).Where("user_id = ?", user.ID).Update("status", enums.WalletStatusSuspended).Error)

	_, err = h.svc.CompleteTopup(ctx, res.Reference, nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	stored, err := h.svc.Get(ctx, res.Reference)
	require.NoError(t, err)
	assert.Equal(t, enums.TopupStatusPending, stored.Status)
	assert.Nil(t, stored.CompletedAt)
	assert.Equal(t, int64(0), h.transactionCount(t, user.ID))
}

func TestFailTopupIsTerminal(t *testing.T) {
	h := newHarness(t)
	user := h.customer(t)
	ctx := context.Background()

	res, err := h.svc.InitializeTopup(ctx, InitializeTopupInput{UserID: user.ID, AmountMinor: 30000, Gateway: enums.TopupGatewayDemo})
	require.NoError(t, err)

	failed, err := h.svc.FailTopup(ctx, res.Reference, "expired", nil)
	require.NoError(t, err)
	assert.Equal(t, enums.TopupStatusFailed, failed.Status)
	require.NotNil(t, failed.FailureReason)
	assert.Equal(t, "expired", *failed.FailureReason)
	assert.Len(t, h.recorder.MessagesOfType(enums.NotificationTypeTopupFailed, user.ID), 1)

	_, err = h.svc.CompleteTopup(ctx, res.Reference, nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	_, err = h.svc.FailTopup(ctx, res.Reference, "again", nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.Equal(t, int64(0), h.transactionCount(t, user.ID))
}

func TestVerifyExternalPaymentDoesNotMutate(t *testing.T) {
	h := newHarness(t)
	h.gateway.status = midtrans.StatusSuccess
	user := h.customer(t)
	ctx := context.Background()

	res, err := h.svc.InitializeTopup(ctx, InitializeTopupInput{UserID: user.ID, AmountMinor: 30000, Gateway: enums.TopupGatewayMidtrans})
	require.NoError(t, err)

	v, err := h.svc.VerifyExternalPayment(ctx, res.Reference)
	require.NoError(t, err)
	assert.Equal(t, midtrans.StatusSuccess, v.Status)
	assert.NotEmpty(t, v.Raw)

	stored, err := h.svc.Get(ctx, res.Reference)
	require.NoError(t, err)
	assert.Equal(t, enums.TopupStatusPending, stored.Status)
	assert.Equal(t, int64(0), h.transactionCount(t, user.ID))
}

func TestVerifyExternalPaymentDemoUsesLocalState(t *testing.T) {
	h := newHarness(t)
	user := h.customer(t)
	ctx := context.Background()

	res, err := h.svc.InitializeTopup(ctx, InitializeTopupInput{UserID: user.ID, AmountMinor: 30000, Gateway: enums.TopupGatewayDemo})
	require.NoError(t, err)
	_, err = h.svc.CompleteTopup(ctx, res.Reference, nil)
	require.NoError(t, err)

	v, err := h.svc.VerifyExternalPayment(ctx, res.Reference)
	require.NoError(t, err)
	assert.Equal(t, midtrans.StatusSuccess, v.Status)
	assert.Empty(t, h.gateway.verified)
}

func TestVerifyExternalPaymentGatewayError(t *testing.T) {
	h := newHarness(t)
	user := h.customer(t)
	ctx := context.Background()
	res, err := h.svc.InitializeTopup(ctx, InitializeTopupInput{UserID: user.ID, AmountMinor: 30000, Gateway: enums.TopupGatewayMidtrans})
	require.NoError(t, err)

	h.gateway.verifyErr = errors.New("timeout")
	_, err = h.svc.VerifyExternalPayment(ctx, res.Reference)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeGateway))
}

func TestListStalePending(t *testing.T) {
	h := newHarness(t)
	user := h.customer(t)
	ctx := context.Background()

	old, err := h.svc.InitializeTopup(ctx, InitializeTopupInput{UserID: user.ID, AmountMinor: 30000, Gateway: enums.TopupGatewayDemo})
	require.NoError(t, err)
	_, err = h.svc.InitializeTopup(ctx, InitializeTopupInput{UserID: user.ID, AmountMinor: 30000, Gateway: enums.TopupGatewayDemo})
	require.NoError(t, err)
	require.NoError(t, h.conn.Model(&models.WalletTopup{}).
		Where("payment_reference = ?", old.Reference).
		Update("created_at", time.Now().UTC().Add(-48*time.Hour)).Error)

	stale, err := h.svc.ListStalePending(ctx, 24*time.Hour, 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, old.Reference, stale[0].PaymentReference)
}
