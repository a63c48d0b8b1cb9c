package orders

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/tradebridge-io/tradebridge-backend/api/controllers"
	"github.com/tradebridge-io/tradebridge-backend/api/responses"
	"github.com/tradebridge-io/tradebridge-backend/api/validators"
	internalorders "github.com/tradebridge-io/tradebridge-backend/internal/orders"
	"github.com/tradebridge-io/tradebridge-backend/pkg/enums"
	pkgerrors "github.com/tradebridge-io/tradebridge-backend/pkg/errors"
	"github.com/tradebridge-io/tradebridge-backend/pkg/logger"
	"github.com/tradebridge-io/tradebridge-backend/pkg/pagination"
)

type updateStatusRequest struct {
	Status         string  `json:"status" validate:"required"`
	Reason         string  `json:"reason,omitempty" validate:"max=2000"`
	AssignmentMode *string `json:"assignmentType,omitempty" validate:"omitempty,oneof=specific free"`
	TransporterID  *string `json:"transporterId,omitempty" validate:"omitempty,uuid"`
	TTLMinutes     int     `json:"ttlMinutes,omitempty" validate:"omitempty,min=1"`
}

type disputeRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

type handleReturnRequest struct {
	Action string `json:"action" validate:"required,oneof=accept reject"`
	Reason string `json:"reason,omitempty" validate:"max=2000"`
}

// List returns the order page scoped to the caller's store (admins see all).
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := controllers.ActorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		query := internalorders.ListQuery{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		if raw := strings.TrimSpace(r.URL.Query().Get("family")); raw != "" {
			family, err := enums.ParseOrderFamily(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid family"))
				return
			}
			query.Family = &family
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseOrderStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			query.Status = &status
		}

		list, err := svc.ListOrders(r.Context(), actor, query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// Detail returns one order with its items, audit trail and assignment history.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := controllers.ActorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := validators.PathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := svc.GetOrder(r.Context(), actor, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

// UpdateStatus applies one lifecycle transition to an order.
func UpdateStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := controllers.ActorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := validators.PathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req updateStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParseOrderStatus(req.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		input := internalorders.UpdateStatusInput{
			Status:     status,
			Reason:     strings.TrimSpace(req.Reason),
			TTLMinutes: req.TTLMinutes,
		}
		if req.AssignmentMode != nil {
			mode, err := enums.ParseAssignmentMode(*req.AssignmentMode)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid assignment mode"))
				return
			}
			input.AssignmentMode = &mode
		}
		if req.TransporterID != nil {
			transporterID, err := uuid.Parse(*req.TransporterID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid transporter id"))
				return
			}
			input.TransporterID = &transporterID
		}

		detail, err := svc.UpdateStatus(r.Context(), actor, orderID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

// Dispute opens a dispute on a delivered retail order.
func Dispute(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := controllers.ActorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := validators.PathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req disputeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := svc.RaiseDispute(r.Context(), actor, orderID, internalorders.DisputeInput{
			Reason: strings.TrimSpace(req.Reason),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

// HandleReturn resolves a retail return sitting at the wholesaler.
func HandleReturn(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := controllers.ActorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := validators.PathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req handleReturnRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		action, err := enums.ParseReturnAction(req.Action)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid return action"))
			return
		}

		detail, err := svc.HandleReturn(r.Context(), actor, orderID, internalorders.HandleReturnInput{
			Action: action,
			Reason: strings.TrimSpace(req.Reason),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}
