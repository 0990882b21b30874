package orders

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/fooddash-backend/api/middleware"
	"github.com/angelmondragon/fooddash-backend/api/responses"
	"github.com/angelmondragon/fooddash-backend/api/validators"
	"github.com/angelmondragon/fooddash-backend/internal/delivery"
	ordersvc "github.com/angelmondragon/fooddash-backend/internal/orders"
	"github.com/angelmondragon/fooddash-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fooddash-backend/pkg/errors"
	"github.com/angelmondragon/fooddash-backend/pkg/logger"
)

const deliveryCodeMaxLen = 16

type createOrderItem struct {
	FoodID   string `json:"food_id" validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"required,gt=0,max=99"`
}

type createOrderRequest struct {
	AddressID     string            `json:"address_id" validate:"required,uuid"`
	PaymentMethod string            `json:"payment_method" validate:"required,oneof=wallet cash"`
	Items         []createOrderItem `json:"items" validate:"required,min=1,dive"`
}

type changeStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type assignRiderRequest struct {
	RiderID string `json:"rider_id" validate:"required,uuid"`
}

type verifyDeliveryRequest struct {
	Code string `json:"code" validate:"required"`
}

// Create places a new order for the authenticated customer.
func Create(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		customerID, err := middleware.ActorID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := req.toInput(customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.CreateOrder(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

func (req createOrderRequest) toInput(customerID uuid.UUID) (ordersvc.CreateOrderInput, error) {
	addressID, err := uuid.Parse(req.AddressID)
	if err != nil {
		return ordersvc.CreateOrderInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid address_id")
	}
	method, err := enums.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return ordersvc.CreateOrderInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment_method")
	}

	items := make([]ordersvc.OrderItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		foodID, err := uuid.Parse(item.FoodID)
		if err != nil {
			return ordersvc.CreateOrderInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid food_id")
		}
		items = append(items, ordersvc.OrderItemInput{FoodID: foodID, Quantity: item.Quantity})
	}

	return ordersvc.CreateOrderInput{
		CustomerID:    customerID,
		AddressID:     addressID,
		Items:         items,
		PaymentMethod: method,
	}, nil
}

// Detail returns one order as seen by the caller.
func Detail(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, orderID, ok := actorAndOrder(w, r, logg)
		if !ok {
			return
		}
		view, err := svc.Get(r.Context(), orderID, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func History(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, orderID, ok := actorAndOrder(w, r, logg)
		if !ok {
			return
		}
		events, err := svc.History(r.Context(), orderID, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"order_id": orderID, "events": events})
	}
}

// ChangeStatus moves an order along its lifecycle on behalf of the caller.
func ChangeStatus(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, orderID, ok := actorAndOrder(w, r, logg)
		if !ok {
			return
		}

		var req changeStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		target, err := enums.ParseOrderStatus(strings.ToLower(strings.TrimSpace(req.Status)))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").
				WithDetails(map[string]any{"status": req.Status, "allowed": enums.AllOrderStatuses()}))
			return
		}

		view, err := svc.ChangeStatus(r.Context(), ordersvc.ChangeStatusInput{
			OrderID:     orderID,
			Target:      target,
			ActorUserID: actorID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// AssignRider attaches a rider to an order. Mounted under the admin group.
func AssignRider(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, orderID, ok := actorAndOrder(w, r, logg)
		if !ok {
			return
		}

		var req assignRiderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		riderID, err := uuid.Parse(req.RiderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid rider_id"))
			return
		}

		view, err := svc.AssignRider(r.Context(), ordersvc.AssignRiderInput{
			OrderID:     orderID,
			RiderID:     riderID,
			ActorUserID: actorID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// VerifyDelivery checks the customer's handoff code for the assigned rider.
func VerifyDelivery(svc delivery.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "delivery service unavailable"))
			return
		}
		riderID, orderID, ok := actorAndOrder(w, r, logg)
		if !ok {
			return
		}

		var req verifyDeliveryRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.VerifyDelivery(r.Context(), delivery.VerifyDeliveryInput{
			OrderID: orderID,
			Code:    validators.SanitizeString(req.Code, deliveryCodeMaxLen),
			RiderID: riderID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func actorAndOrder(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (uuid.UUID, uuid.UUID, bool) {
	actorID, err := middleware.ActorID(r.Context())
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return uuid.Nil, uuid.Nil, false
	}
	orderID, err := validators.PathUUID(r, "orderId")
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return uuid.Nil, uuid.Nil, false
	}
	return actorID, orderID, true
}
