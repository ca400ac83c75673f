package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/pairspace/pairspace-backend/api/responses"
	"github.com/pairspace/pairspace-backend/api/validators"
	"github.com/pairspace/pairspace-backend/internal/photos"
	pkgerrors "github.com/pairspace/pairspace-backend/pkg/errors"
	"github.com/pairspace/pairspace-backend/pkg/logger"
)

// SharePhoto attaches a photo to the caller's space feed.
func SharePhoto(svc photos.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "photos service unavailable"))
			return
		}

		userID, ok := callerID(r, logg, w)
		if !ok {
			return
		}

		var input photos.ShareInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		share, err := svc.Share(ctx, userID, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, share)
	}
}

// PhotoFeed lists the caller's space feed newest first.
func PhotoFeed(svc photos.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "photos service unavailable"))
			return
		}

		userID, ok := callerID(r, logg, w)
		if !ok {
			return
		}

		limit := 0
		if limitStr := strings.TrimSpace(r.URL.Query().Get("limit")); limitStr != "" {
			value, err := strconv.Atoi(limitStr)
			if err != nil || value <= 0 {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "limit must be a positive integer"))
				return
			}
			limit = value
		}

		feed, err := svc.Feed(ctx, userID, limit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, feed)
	}
}

// PhotoUploadSignature hands out a short-lived direct upload signature.
func PhotoUploadSignature(svc photos.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "photos service unavailable"))
			return
		}

		userID, ok := callerID(r, logg, w)
		if !ok {
			return
		}

		sig, err := svc.UploadSignature(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, sig)
	}
}
