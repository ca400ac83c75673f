package controllers

import (
	"net/http"

	"github.com/pairspace/pairspace-backend/api/responses"
	"github.com/pairspace/pairspace-backend/api/validators"
	"github.com/pairspace/pairspace-backend/internal/pairing"
	"github.com/pairspace/pairspace-backend/internal/presence"
	"github.com/pairspace/pairspace-backend/internal/spaces"
	pkgerrors "github.com/pairspace/pairspace-backend/pkg/errors"
	"github.com/pairspace/pairspace-backend/pkg/logger"
)

// MySpace returns the caller's space projected from their side.
func MySpace(svc spaces.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "spaces service unavailable"))
			return
		}

		userID, ok := callerID(r, logg, w)
		if !ok {
			return
		}

		view, err := svc.GetForUser(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// DissolveSpace tears down the caller's space and tells any live sessions.
func DissolveSpace(svc pairing.Service, hub *presence.Hub, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pairing service unavailable"))
			return
		}

		userID, ok := callerID(r, logg, w)
		if !ok {
			return
		}

		result, err := svc.DissolveSpace(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if hub != nil {
			hub.NotifySpaceDissolved(result.SpaceID.String())
		}
		responses.WriteSuccess(w, result)
	}
}

// ReportLocation stores the caller's self-reported position on their member row.
func ReportLocation(svc spaces.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "spaces service unavailable"))
			return
		}

		userID, ok := callerID(r, logg, w)
		if !ok {
			return
		}

		var input spaces.LocationInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		view, err := svc.ReportLocation(ctx, userID, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}
