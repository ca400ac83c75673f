package spaces

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pairspace/pairspace-backend/pkg/db/models"
	pkgerrors "github.com/pairspace/pairspace-backend/pkg/errors"
	"github.com/pairspace/pairspace-backend/pkg/logger"
)

type fakeRepository struct {
	findByIDFn             func(ctx context.Context, id uuid.UUID) (*models.Space, error)
	findByUserIDFn         func(ctx context.Context, userID string) (*models.Space, error)
	hasMemberFn            func(ctx context.Context, spaceID uuid.UUID, userID string) (bool, error)
	updateMemberLocationFn func(ctx context.Context, spaceID uuid.UUID, userID string, loc MemberLocation, now time.Time) (bool, error)
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeRepository) Create(ctx context.Context, space *models.Space) error {
	return nil
}

func (f *fakeRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Space, error) {
	if f.findByIDFn != nil {
		return f.findByIDFn(ctx, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) FindByUserID(ctx context.Context, userID string) (*models.Space, error) {
	if f.findByUserIDFn != nil {
		return f.findByUserIDFn(ctx, userID)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) HasMember(ctx context.Context, spaceID uuid.UUID, userID string) (bool, error) {
	if f.hasMemberFn != nil {
		return f.hasMemberFn(ctx, spaceID, userID)
	}
	return false, nil
}

func (f *fakeRepository) Delete(ctx context.Context, spaceID uuid.UUID) (int64, error) {
	return 0, nil
}

func (f *fakeRepository) UpdateMemberLocation(ctx context.Context, spaceID uuid.UUID, userID string, loc MemberLocation, now time.Time) (bool, error) {
	if f.updateMemberLocationFn != nil {
		return f.updateMemberLocationFn(ctx, spaceID, userID, loc, now)
	}
	return false, nil
}

func newServiceWithRepo(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:   repo,
		Logger: logger.New(logger.Options{ServiceName: "spaces-test"}),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func sampleSpace() *models.Space {
	return &models.Space{
		ID:         uuid.New(),
		Name:       "our space",
		StreakDays: 4,
		Members: []models.SpaceMember{
			{ID: uuid.New(), UserID: "user-a", DisplayName: "A"},
			{ID: uuid.New(), UserID: "user-b", DisplayName: "B"},
		},
	}
}

func TestService_GetForUserProjectsPartner(t *testing.T) {
	space := sampleSpace()
	repo := &fakeRepository{
		findByUserIDFn: func(ctx context.Context, userID string) (*models.Space, error) {
			return space, nil
		},
	}

	svc := newServiceWithRepo(t, repo)
	view, err := svc.GetForUser(context.Background(), "user-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Me.UserID != "user-a" {
		t.Fatalf("expected caller perspective, got %+v", view.Me)
	}
	if view.Partner == nil || view.Partner.UserID != "user-b" {
		t.Fatalf("expected partner user-b, got %+v", view.Partner)
	}
	if view.StreakDays != 4 {
		t.Fatalf("expected streak 4, got %d", view.StreakDays)
	}
}

func TestService_GetForUserUnpaired(t *testing.T) {
	svc := newServiceWithRepo(t, &fakeRepository{})
	_, err := svc.GetForUser(context.Background(), "loner")
	if err == nil {
		t.Fatal("expected not found error")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestService_ReportLocationUpdatesMemberRow(t *testing.T) {
	space := sampleSpace()
	lat, lng := 31.23, 121.47
	city := "Shanghai"
	var gotLoc MemberLocation

	repo := &fakeRepository{
		findByUserIDFn: func(ctx context.Context, userID string) (*models.Space, error) {
			return space, nil
		},
		findByIDFn: func(ctx context.Context, id uuid.UUID) (*models.Space, error) {
			return space, nil
		},
		updateMemberLocationFn: func(ctx context.Context, spaceID uuid.UUID, userID string, loc MemberLocation, now time.Time) (bool, error) {
			if spaceID != space.ID || userID != "user-a" {
				t.Fatalf("unexpected update target %s/%s", spaceID, userID)
			}
			gotLoc = loc
			return true, nil
		},
	}

	svc := newServiceWithRepo(t, repo)
	view, err := svc.ReportLocation(context.Background(), "user-a", LocationInput{
		Latitude:  &lat,
		Longitude: &lng,
		City:      &city,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotLoc.Latitude == nil || *gotLoc.Latitude != lat {
		t.Fatalf("latitude not forwarded: %+v", gotLoc)
	}
	if gotLoc.City == nil || *gotLoc.City != city {
		t.Fatalf("city not forwarded: %+v", gotLoc)
	}
	if view.ID != space.ID {
		t.Fatalf("unexpected view %+v", view)
	}
}

func TestService_ReportLocationRejectsHalfCoordinates(t *testing.T) {
	lat := 10.0
	svc := newServiceWithRepo(t, &fakeRepository{})
	_, err := svc.ReportLocation(context.Background(), "user-a", LocationInput{Latitude: &lat})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestService_IsMember(t *testing.T) {
	spaceID := uuid.New()
	repo := &fakeRepository{
		hasMemberFn: func(ctx context.Context, id uuid.UUID, userID string) (bool, error) {
			return id == spaceID && userID == "user-a", nil
		},
	}
	svc := newServiceWithRepo(t, repo)

	ok, err := svc.IsMember(context.Background(), spaceID, "user-a")
	if err != nil || !ok {
		t.Fatalf("expected membership, got ok=%v err=%v", ok, err)
	}
	ok, err = svc.IsMember(context.Background(), spaceID, "stranger")
	if err != nil || ok {
		t.Fatalf("expected no membership, got ok=%v err=%v", ok, err)
	}
	ok, err = svc.IsMember(context.Background(), uuid.Nil, "user-a")
	if err != nil || ok {
		t.Fatalf("nil space id must not match, got ok=%v err=%v", ok, err)
	}
}
