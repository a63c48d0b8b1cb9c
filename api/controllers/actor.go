package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/tradebridge-io/tradebridge-backend/api/middleware"
	internalorders "github.com/tradebridge-io/tradebridge-backend/internal/orders"
	"github.com/tradebridge-io/tradebridge-backend/pkg/enums"
	pkgerrors "github.com/tradebridge-io/tradebridge-backend/pkg/errors"
)

// ActorFromRequest rebuilds the acting identity from the authenticated context.
func ActorFromRequest(r *http.Request) (internalorders.Actor, error) {
	ctx := r.Context()

	rawActor := middleware.ActorIDFromContext(ctx)
	if rawActor == "" {
		return internalorders.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor context missing")
	}
	actorID, err := uuid.Parse(rawActor)
	if err != nil {
		return internalorders.Actor{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid actor id")
	}

	role, err := enums.ParseActorRole(middleware.RoleFromContext(ctx))
	if err != nil {
		return internalorders.Actor{}, pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "unknown actor role")
	}

	actor := internalorders.Actor{ID: actorID, Role: role}
	if rawStore := middleware.StoreIDFromContext(ctx); rawStore != "" {
		storeID, err := uuid.Parse(rawStore)
		if err != nil {
			return internalorders.Actor{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid store id")
		}
		actor.StoreID = &storeID
	}
	return actor, nil
}
