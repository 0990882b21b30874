package wallet

import (
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/fooddash-backend/api/middleware"
	"github.com/angelmondragon/fooddash-backend/api/responses"
	"github.com/angelmondragon/fooddash-backend/api/validators"
	"github.com/angelmondragon/fooddash-backend/internal/topups"
	walletsvc "github.com/angelmondragon/fooddash-backend/internal/wallet"
	"github.com/angelmondragon/fooddash-backend/pkg/db/models"
	"github.com/angelmondragon/fooddash-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fooddash-backend/pkg/errors"
	"github.com/angelmondragon/fooddash-backend/pkg/logger"
	"github.com/angelmondragon/fooddash-backend/pkg/pagination"
)

type initializeTopupRequest struct {
	AmountMinor int64  `json:"amount_minor" validate:"required,gt=0"`
	Gateway     string `json:"gateway" validate:"required,oneof=midtrans demo"`
}

// TopupView is the caller-facing rendition of a top-up row.
type TopupView struct {
	Reference     string             `json:"reference"`
	AmountMinor   int64              `json:"amount_minor"`
	Gateway       enums.TopupGateway `json:"gateway"`
	Status        enums.TopupStatus  `json:"status"`
	RedirectURL   *string            `json:"redirect_url,omitempty"`
	FailureReason *string            `json:"failure_reason,omitempty"`
	CompletedAt   *time.Time         `json:"completed_at,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

func newTopupView(topup models.WalletTopup) TopupView {
	return TopupView{
		Reference:     topup.PaymentReference,
		AmountMinor:   topup.AmountMinor,
		Gateway:       topup.Gateway,
		Status:        topup.Status,
		RedirectURL:   topup.RedirectURL,
		FailureReason: topup.FailureReason,
		CompletedAt:   topup.CompletedAt,
		CreatedAt:     topup.CreatedAt,
	}
}

// GetWallet returns the caller's balance, creating the wallet on first use.
func GetWallet(svc walletsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := middleware.ActorID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.Balance(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func ListTransactions(svc walletsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := middleware.ActorID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListTransactions(r.Context(), userID, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// InitializeTopup opens a pending top-up and, for hosted checkout, returns the redirect.
func InitializeTopup(svc topups.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := middleware.ActorID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req initializeTopupRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		gateway, err := enums.ParseTopupGateway(req.Gateway)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid gateway"))
			return
		}

		result, err := svc.InitializeTopup(r.Context(), topups.InitializeTopupInput{
			UserID:      userID,
			AmountMinor: req.AmountMinor,
			Gateway:     gateway,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := map[string]any{
			"reference": result.Reference,
			"topup":     newTopupView(result.Topup),
		}
		if result.RedirectURL != "" {
			resp["redirect_url"] = result.RedirectURL
		}
		if result.Token != "" {
			resp["token"] = result.Token
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, resp)
	}
}

// CompleteDemoTopup settles a demo top-up. Hosted checkout top-ups only settle
// through the gateway notification.
func CompleteDemoTopup(svc topups.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topup, ok := ownedTopup(w, r, svc, logg)
		if !ok {
			return
		}
		if topup.Gateway != enums.TopupGatewayDemo {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "only demo top-ups can be completed directly").
				WithDetails(map[string]any{"gateway": string(topup.Gateway)}))
			return
		}

		result, err := svc.CompleteTopup(r.Context(), topup.PaymentReference, nil)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"topup":         newTopupView(result.Topup),
			"balance_minor": result.BalanceMinor,
		})
	}
}

// VerifyTopup asks the gateway for the payment status without changing state.
func VerifyTopup(svc topups.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topup, ok := ownedTopup(w, r, svc, logg)
		if !ok {
			return
		}
		result, err := svc.VerifyExternalPayment(r.Context(), topup.PaymentReference)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// Reconcile compares a wallet's stored balance with its ledger. Admin only.
func Reconcile(svc walletsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := validators.PathUUID(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		report, err := svc.Reconcile(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

// ownedTopup loads the referenced top-up and hides rows owned by other users.
func ownedTopup(w http.ResponseWriter, r *http.Request, svc topups.Service, logg *logger.Logger) (*models.WalletTopup, bool) {
	userID, err := middleware.ActorID(r.Context())
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil, false
	}
	reference, err := validators.PathString(r, "reference")
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil, false
	}
	topup, err := svc.Get(r.Context(), reference)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil, false
	}
	if topup.UserID != userID {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "top-up not found"))
		return nil, false
	}
	return topup, true
}

