package midtrans

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gomidtrans "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"

	"github.com/angelmondragon/fooddash-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/fooddash-backend/pkg/errors"
	"github.com/angelmondragon/fooddash-backend/pkg/logger"
	"github.com/angelmondragon/fooddash-backend/pkg/money"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"
)

var (
	errServerKeyRequired = errors.New("midtrans server key is required")
	errInvalidEnv        = fmt.Errorf("midtrans environment must be %q or %q", sandboxEnv, productionEnv)
)

// Status is the normalized outcome of a gateway transaction.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// PaymentRequest describes one hosted checkout session.
type PaymentRequest struct {
	Reference     string
	AmountMinor   int64
	CustomerName  string
	CustomerEmail string
	ItemName      string
}

// PaymentSession is what the customer needs to complete payment.
type PaymentSession struct {
	Reference   string
	RedirectURL string
	Token       string
}

// Verification is the gateway's view of a reference. Raw carries the
// gateway response for storage.
type Verification struct {
	Reference         string
	Status            Status
	TransactionStatus string
	FraudStatus       string
	GrossAmountMinor  int64
	Raw               json.RawMessage
}

type snapAPI interface {
	CreateTransaction(req *snap.Request) (*snap.Response, *gomidtrans.Error)
}

type statusAPI interface {
	CheckTransaction(param string) (*coreapi.TransactionStatusResponse, *gomidtrans.Error)
}

// Client wraps the Midtrans Snap and Core API clients plus env metadata.
type Client struct {
	snap        snapAPI
	core        statusAPI
	environment string
	serverKey   string
	timeout     time.Duration
	digits      int32
}

// NewClient initializes Midtrans once with the configured keys and env.
func NewClient(ctx context.Context, cfg config.PaymentsConfig, digits int32, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	serverKey := strings.TrimSpace(cfg.MidtransServerKey)
	if serverKey == "" {
		return nil, errServerKeyRequired
	}
	if err := validateServerKey(env, serverKey); err != nil {
		return nil, err
	}

	sdkEnv := gomidtrans.Sandbox
	if env == productionEnv {
		sdkEnv = gomidtrans.Production
	}

	var snapClient snap.Client
	snapClient.New(serverKey, sdkEnv)
	var coreClient coreapi.Client
	coreClient.New(serverKey, sdkEnv)

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("midtrans client initialized (%s)", env))
	}

	return &Client{
		snap:        &snapClient,
		core:        &coreClient,
		environment: env,
		serverKey:   serverKey,
		timeout:     cfg.GatewayTimeout,
		digits:      digits,
	}, nil
}

// Environment reports the normalized Midtrans environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// InitializePayment opens a Snap hosted checkout for the reference. The
// reference doubles as the Midtrans order_id.
func (c *Client) InitializePayment(ctx context.Context, req PaymentRequest) (*PaymentSession, error) {
	if strings.TrimSpace(req.Reference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}
	gross, err := money.ToMajorUnits(req.AmountMinor, c.digits)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "amount not payable through gateway")
	}

	snapReq := &snap.Request{
		TransactionDetails: gomidtrans.TransactionDetails{
			OrderID:  req.Reference,
			GrossAmt: gross,
		},
		CreditCard: &snap.CreditCardDetails{Secure: true},
	}
	if req.CustomerName != "" || req.CustomerEmail != "" {
		snapReq.CustomerDetail = &gomidtrans.CustomerDetails{
			FName: req.CustomerName,
			Email: req.CustomerEmail,
		}
	}
	if req.ItemName != "" {
		snapReq.Items = &[]gomidtrans.ItemDetails{{
			ID:    req.Reference,
			Name:  req.ItemName,
			Price: gross,
			Qty:   1,
		}}
	}

	resp, err := call(ctx, c.timeout, func() (*snap.Response, *gomidtrans.Error) {
		return c.snap.CreateTransaction(snapReq)
	})
	if err != nil {
		return nil, err
	}
	if resp == nil || resp.RedirectURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeGateway, "gateway returned no checkout url")
	}
	return &PaymentSession{
		Reference:   req.Reference,
		RedirectURL: resp.RedirectURL,
		Token:       resp.Token,
	}, nil
}

// VerifyPayment asks the gateway for the current state of a reference. It
// never mutates local state.
func (c *Client) VerifyPayment(ctx context.Context, reference string) (*Verification, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}

	resp, err := call(ctx, c.timeout, func() (*coreapi.TransactionStatusResponse, *gomidtrans.Error) {
		return c.core.CheckTransaction(reference)
	})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, pkgerrors.New(pkgerrors.CodeGateway, "gateway returned empty status")
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode gateway status")
	}
	verification := &Verification{
		Reference:         reference,
		Status:            MapStatus(resp.TransactionStatus, resp.FraudStatus),
		TransactionStatus: resp.TransactionStatus,
		FraudStatus:       resp.FraudStatus,
		Raw:               raw,
	}
	if resp.GrossAmount != "" {
		if amount, err := money.FromMajorString(resp.GrossAmount, c.digits); err == nil {
			verification.GrossAmountMinor = amount
		}
	}
	return verification, nil
}

// VerifySignature checks a notification's signature_key.
func (c *Client) VerifySignature(orderID, statusCode, grossAmount, signature string) bool {
	return VerifySignature(c.serverKey, orderID, statusCode, grossAmount, signature)
}

// MapStatus collapses Midtrans transaction and fraud statuses into a Status.
func MapStatus(transactionStatus, fraudStatus string) Status {
	switch strings.ToLower(strings.TrimSpace(transactionStatus)) {
	case "settlement":
		return StatusSuccess
	case "capture":
		if strings.EqualFold(fraudStatus, "accept") {
			return StatusSuccess
		}
		if strings.EqualFold(fraudStatus, "deny") {
			return StatusFailed
		}
		return StatusPending
	case "deny", "cancel", "expire", "failure":
		return StatusFailed
	default:
		return StatusPending
	}
}

// call runs a blocking SDK request and abandons it once ctx or the
// configured timeout expires.
func call[T any](ctx context.Context, timeout time.Duration, fn func() (T, *gomidtrans.Error)) (T, error) {
	var zero T
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		value T
		err   *gomidtrans.Error
	}
	done := make(chan result, 1)
	go func() {
		value, err := fn()
		done <- result{value: value, err: err}
	}()

	select {
	case <-ctx.Done():
		return zero, pkgerrors.Wrap(pkgerrors.CodeGateway, ctx.Err(), "payment gateway timed out")
	case res := <-done:
		if res.err != nil {
			return zero, pkgerrors.Wrap(pkgerrors.CodeGateway, res.err, "payment gateway request failed").
				WithDetails(map[string]any{"gateway_status": res.err.StatusCode})
		}
		return res.value, nil
	}
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = sandboxEnv
	}
	switch env {
	case sandboxEnv, productionEnv:
		return env, nil
	default:
		return "", errInvalidEnv
	}
}

func validateServerKey(env, key string) error {
	switch env {
	case sandboxEnv:
		if strings.HasPrefix(key, "SB-Mid-server-") {
			return nil
		}
		return fmt.Errorf("midtrans environment %q requires a sandbox server key (SB-Mid-server-)", sandboxEnv)
	case productionEnv:
		if strings.HasPrefix(key, "Mid-server-") {
			return nil
		}
		return fmt.Errorf("midtrans environment %q requires a production server key (Mid-server-)", productionEnv)
	default:
		return errInvalidEnv
	}
}
