package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/angelmondragon/fooddash-backend/api/responses"
	midtranswebhook "github.com/angelmondragon/fooddash-backend/internal/webhooks/midtrans"
	pkgerrors "github.com/angelmondragon/fooddash-backend/pkg/errors"
	"github.com/angelmondragon/fooddash-backend/pkg/logger"
)

const maxNotificationBytes = 64 << 10

type MidtransWebhookService interface {
	HandleNotification(ctx context.Context, body []byte) (midtranswebhook.Outcome, error)
}

// MidtransWebhook handles payment notifications posted by Midtrans. The body
// carries its own signature so no bearer auth is applied.
func MidtransWebhook(svc MidtransWebhookService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxNotificationBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		outcome, err := svc.HandleNotification(ctx, payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		logg.Info(logg.WithField(ctx, "outcome", string(outcome)), "midtrans notification processed")
		responses.WriteSuccess(w, map[string]string{"outcome": string(outcome)})
	}
}
