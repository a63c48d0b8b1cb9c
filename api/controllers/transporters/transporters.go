package transporters

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/tradebridge-io/tradebridge-backend/api/controllers"
	"github.com/tradebridge-io/tradebridge-backend/api/responses"
	"github.com/tradebridge-io/tradebridge-backend/api/validators"
	"github.com/tradebridge-io/tradebridge-backend/internal/assignments"
	"github.com/tradebridge-io/tradebridge-backend/pkg/enums"
	pkgerrors "github.com/tradebridge-io/tradebridge-backend/pkg/errors"
	"github.com/tradebridge-io/tradebridge-backend/pkg/logger"
	"github.com/tradebridge-io/tradebridge-backend/pkg/pagination"
)

type rejectRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

func transporterFromRequest(r *http.Request) (uuid.UUID, error) {
	actor, err := controllers.ActorFromRequest(r)
	if err != nil {
		return uuid.Nil, err
	}
	if actor.Role != enums.ActorRoleTransporter {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "transporter role required")
	}
	return actor.ID, nil
}

// Accept claims a delivery offer, either directed or from the free pool.
// First accept wins; losers get an assignment conflict.
func Accept(coord *assignments.Coordinator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		transporterID, err := transporterFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := validators.PathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := coord.Accept(r.Context(), transporterID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

// Reject declines a directed delivery offer with a reason.
func Reject(coord *assignments.Coordinator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		transporterID, err := transporterFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := validators.PathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req rejectRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := coord.Reject(r.Context(), transporterID, orderID, strings.TrimSpace(req.Reason))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

// FreePool lists unclaimed free-mode offers, newest first. With returnLeg it
// serves the returns pool instead of the delivery pool.
func FreePool(coord *assignments.Coordinator, logg *logger.Logger, returnLeg bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := transporterFromRequest(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := coord.FreePool(r.Context(), returnLeg, limit, strings.TrimSpace(r.URL.Query().Get("cursor")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// Queue lists the transporter's own active workload.
func Queue(coord *assignments.Coordinator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		transporterID, err := transporterFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := coord.Queue(r.Context(), transporterID, limit, strings.TrimSpace(r.URL.Query().Get("cursor")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}
