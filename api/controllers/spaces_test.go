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
	"github.com/pairspace/pairspace-backend/internal/pairing"
	"github.com/pairspace/pairspace-backend/internal/spaces"
	pkgerrors "github.com/pairspace/pairspace-backend/pkg/errors"
)

type testSpacesService struct {
	getFn      func(ctx context.Context, userID string) (*spaces.SpaceView, error)
	isMemberFn func(ctx context.Context, spaceID uuid.UUID, userID string) (bool, error)
	reportFn   func(ctx context.Context, userID string, input spaces.LocationInput) (*spaces.SpaceView, error)
}

func (s *testSpacesService) GetForUser(ctx context.Context, userID string) (*spaces.SpaceView, error) {
	if s.getFn != nil {
		return s.getFn(ctx, userID)
	}
	return nil, nil
}

func (s *testSpacesService) IsMember(ctx context.Context, spaceID uuid.UUID, userID string) (bool, error) {
	if s.isMemberFn != nil {
		return s.isMemberFn(ctx, spaceID, userID)
	}
	return false, nil
}

func (s *testSpacesService) ReportLocation(ctx context.Context, userID string, input spaces.LocationInput) (*spaces.SpaceView, error) {
	if s.reportFn != nil {
		return s.reportFn(ctx, userID, input)
	}
	return nil, nil
}

func TestMySpaceReturnsView(t *testing.T) {
	spaceID := uuid.New()
	svc := &testSpacesService{
		getFn: func(ctx context.Context, userID string) (*spaces.SpaceView, error) {
			if userID != "user-a" {
				t.Fatalf("unexpected user %q", userID)
			}
			return &spaces.SpaceView{ID: spaceID, Name: "Our Space", StreakDays: 4}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/spaces/mine", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-a"))
	resp := httptest.NewRecorder()
	MySpace(svc, testControllerLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	var envelope struct {
		Data spaces.SpaceView `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.StreakDays != 4 {
		t.Fatalf("unexpected streak %d", envelope.Data.StreakDays)
	}
}

func TestMySpaceUnpairedNotFound(t *testing.T) {
	svc := &testSpacesService{
		getFn: func(ctx context.Context, userID string) (*spaces.SpaceView, error) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user has no space")
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/spaces/mine", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-a"))
	resp := httptest.NewRecorder()
	MySpace(svc, testControllerLogger())(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("unexpected status %d", resp.Code)
	}
}

func TestDissolveSpaceReturnsResult(t *testing.T) {
	spaceID := uuid.New()
	svc := &testPairingService{
		dissolveFn: func(ctx context.Context, userID string) (*pairing.DissolveResult, error) {
			return &pairing.DissolveResult{SpaceID: spaceID, MemberIDs: []string{"user-a", "user-b"}}, nil
		},
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/spaces/mine", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-a"))
	resp := httptest.NewRecorder()
	DissolveSpace(svc, nil, testControllerLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	var envelope struct {
		Data pairing.DissolveResult `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.SpaceID != spaceID {
		t.Fatalf("unexpected space id %s", envelope.Data.SpaceID)
	}
	if len(envelope.Data.MemberIDs) != 2 {
		t.Fatalf("unexpected members %v", envelope.Data.MemberIDs)
	}
}

func TestReportLocationForwardsInput(t *testing.T) {
	lat := 40.0
	svc := &testSpacesService{
		reportFn: func(ctx context.Context, userID string, input spaces.LocationInput) (*spaces.SpaceView, error) {
			if input.Latitude == nil || *input.Latitude != lat {
				t.Fatalf("unexpected latitude %v", input.Latitude)
			}
			return &spaces.SpaceView{}, nil
		},
	}

	body := `{"latitude":40.0,"longitude":-73.5,"city":"Boston"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/spaces/mine/location", strings.NewReader(body))
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-a"))
	resp := httptest.NewRecorder()
	ReportLocation(svc, testControllerLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d body %s", resp.Code, resp.Body.String())
	}
}

func TestReportLocationRejectsOutOfRange(t *testing.T) {
	body := `{"latitude":123.0,"longitude":-73.5}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/spaces/mine/location", strings.NewReader(body))
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-a"))
	resp := httptest.NewRecorder()
	ReportLocation(&testSpacesService{}, testControllerLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", resp.Code)
	}
}
