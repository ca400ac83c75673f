package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/pairspace/pairspace-backend/api/middleware"
	"github.com/pairspace/pairspace-backend/internal/photos"
	"github.com/pairspace/pairspace-backend/pkg/db/models"
	pkgerrors "github.com/pairspace/pairspace-backend/pkg/errors"
)

type testPhotosService struct {
	shareFn     func(ctx context.Context, userID string, input photos.ShareInput) (*models.PhotoShare, error)
	feedFn      func(ctx context.Context, userID string, limit int) ([]models.PhotoShare, error)
	signatureFn func(ctx context.Context, userID string) (*photos.UploadSignature, error)
}

func (s *testPhotosService) Share(ctx context.Context, userID string, input photos.ShareInput) (*models.PhotoShare, error) {
	if s.shareFn != nil {
		return s.shareFn(ctx, userID, input)
	}
	return nil, nil
}

func (s *testPhotosService) Feed(ctx context.Context, userID string, limit int) ([]models.PhotoShare, error) {
	if s.feedFn != nil {
		return s.feedFn(ctx, userID, limit)
	}
	return nil, nil
}

func (s *testPhotosService) UploadSignature(ctx context.Context, userID string) (*photos.UploadSignature, error) {
	if s.signatureFn != nil {
		return s.signatureFn(ctx, userID)
	}
	return nil, nil
}

func TestSharePhotoCreated(t *testing.T) {
	svc := &testPhotosService{
		shareFn: func(ctx context.Context, userID string, input photos.ShareInput) (*models.PhotoShare, error) {
			if input.ImageURL != "https://cdn.example.com/p.jpg" {
				t.Fatalf("unexpected image url %q", input.ImageURL)
			}
			return &models.PhotoShare{ID: uuid.New(), UserID: userID}, nil
		},
	}

	body := `{"imageUrl":"https://cdn.example.com/p.jpg","caption":"sunset"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/photos", strings.NewReader(body))
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-a"))
	resp := httptest.NewRecorder()
	SharePhoto(svc, testControllerLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d body %s", resp.Code, resp.Body.String())
	}
}

func TestPhotoFeedRejectsBadLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/photos?limit=abc", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-a"))
	resp := httptest.NewRecorder()
	PhotoFeed(&testPhotosService{}, testControllerLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", resp.Code)
	}
}

func TestPhotoFeedPassesLimit(t *testing.T) {
	svc := &testPhotosService{
		feedFn: func(ctx context.Context, userID string, limit int) ([]models.PhotoShare, error) {
			if limit != 10 {
				t.Fatalf("unexpected limit %d", limit)
			}
			return []models.PhotoShare{{ID: uuid.New()}}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/photos?limit=10", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-a"))
	resp := httptest.NewRecorder()
	PhotoFeed(svc, testControllerLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	var envelope struct {
		Data []models.PhotoShare `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data) != 1 {
		t.Fatalf("expected one photo, got %d", len(envelope.Data))
	}
}

func TestPhotoUploadSignatureNotConfigured(t *testing.T) {
	svc := &testPhotosService{
		signatureFn: func(ctx context.Context, userID string) (*photos.UploadSignature, error) {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "direct upload is not configured")
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/photos/upload-signature", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-a"))
	resp := httptest.NewRecorder()
	PhotoUploadSignature(svc, testControllerLogger())(resp, req)

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status %d", resp.Code)
	}
}
