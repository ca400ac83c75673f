package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pairspace/pairspace-backend/api/middleware"
	"github.com/pairspace/pairspace-backend/api/responses"
	"github.com/pairspace/pairspace-backend/api/validators"
	"github.com/pairspace/pairspace-backend/internal/pairing"
	pkgerrors "github.com/pairspace/pairspace-backend/pkg/errors"
	"github.com/pairspace/pairspace-backend/pkg/logger"
)

func callerID(r *http.Request, logg *logger.Logger, w http.ResponseWriter) (string, bool) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing identity"))
		return "", false
	}
	return userID, true
}

func invitationID(r *http.Request, logg *logger.Logger, w http.ResponseWriter) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid invitation id"))
		return uuid.Nil, false
	}
	return id, true
}

// SendInvitation proposes pairing to the holder of an invite code.
func SendInvitation(svc pairing.Service, logg *logger.Logger) http.HandlerFunc {
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

		var input pairing.SendInvitationInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		view, err := svc.SendInvitation(ctx, userID, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

// IncomingInvitations lists pending proposals addressed to the caller.
func IncomingInvitations(svc pairing.Service, logg *logger.Logger) http.HandlerFunc {
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

		views, err := svc.IncomingInvitations(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, views)
	}
}

// OutgoingInvitation returns the caller's single pending proposal, if any.
func OutgoingInvitation(svc pairing.Service, logg *logger.Logger) http.HandlerFunc {
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

		view, err := svc.OutgoingInvitation(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// GetInvitation returns one invitation, visible to its participants only.
func GetInvitation(svc pairing.Service, logg *logger.Logger) http.HandlerFunc {
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
		id, ok := invitationID(r, logg, w)
		if !ok {
			return
		}

		view, err := svc.GetInvitation(ctx, userID, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// AcceptInvitation resolves a pending proposal and forms the shared space.
func AcceptInvitation(svc pairing.Service, logg *logger.Logger) http.HandlerFunc {
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
		id, ok := invitationID(r, logg, w)
		if !ok {
			return
		}

		// The display name body is optional.
		var input pairing.AcceptInvitationInput
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &input); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}

		view, err := svc.AcceptInvitation(ctx, userID, id, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// RejectInvitation declines a pending proposal addressed to the caller.
func RejectInvitation(svc pairing.Service, logg *logger.Logger) http.HandlerFunc {
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
		id, ok := invitationID(r, logg, w)
		if !ok {
			return
		}

		view, err := svc.RejectInvitation(ctx, userID, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CancelInvitation withdraws the caller's own pending proposal.
func CancelInvitation(svc pairing.Service, logg *logger.Logger) http.HandlerFunc {
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
		id, ok := invitationID(r, logg, w)
		if !ok {
			return
		}

		if err := svc.CancelInvitation(ctx, userID, id); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"cancelled": true})
	}
}
