package controllers

import (
	"net/http"

	"github.com/pairspace/pairspace-backend/api/middleware"
	"github.com/pairspace/pairspace-backend/api/responses"
	"github.com/pairspace/pairspace-backend/api/validators"
	"github.com/pairspace/pairspace-backend/internal/users"
	pkgerrors "github.com/pairspace/pairspace-backend/pkg/errors"
	"github.com/pairspace/pairspace-backend/pkg/logger"
)

type registerPayload struct {
	UserID string `json:"userId" validate:"required,max=64"`
}

// Register signs a device-generated identity in, minting an invite code on
// first contact and returning the existing one afterwards.
func Register(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "users service unavailable"))
			return
		}

		var payload registerPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.Register(ctx, payload.UserID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		status := http.StatusOK
		if result.Created {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}

// MyInviteCode returns the caller's pairing code.
func MyInviteCode(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "users service unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(ctx)
		if userID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing identity"))
			return
		}

		code, err := svc.InviteCode(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"inviteCode": code})
	}
}
