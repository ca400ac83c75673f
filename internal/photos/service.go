package photos

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pairspace/pairspace-backend/internal/spaces"
	"github.com/pairspace/pairspace-backend/pkg/db/models"
	pkgerrors "github.com/pairspace/pairspace-backend/pkg/errors"
	"github.com/pairspace/pairspace-backend/pkg/logger"
)

const defaultFeedLimit = 50

// ShareInput carries a photo posted into the space feed.
type ShareInput struct {
	ImageURL    string `json:"imageUrl" validate:"required,url"`
	Caption     string `json:"caption" validate:"max=280"`
	UserName    string `json:"userName" validate:"max=64"`
	Avatar      string `json:"avatar" validate:"omitempty,url"`
	ExifTime    string `json:"exifTime"`
	Location    string `json:"location" validate:"max=128"`
	DeviceModel string `json:"deviceModel" validate:"max=64"`
}

// Service defines the shared photo feed operations.
type Service interface {
	Share(ctx context.Context, userID string, input ShareInput) (*models.PhotoShare, error)
	Feed(ctx context.Context, userID string, limit int) ([]models.PhotoShare, error)
	UploadSignature(ctx context.Context, userID string) (*UploadSignature, error)
}

// ServiceParams wires photos dependencies.
type ServiceParams struct {
	Repo      Repository
	SpaceRepo spaces.Repository
	Signer    *Signer
	Logger    *logger.Logger
}

type service struct {
	repo      Repository
	spaceRepo spaces.Repository
	signer    *Signer
	logg      *logger.Logger
}

// NewService wires photos dependencies. Signer may be nil when direct upload
// is not configured; UploadSignature then fails with a dependency error.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "photos repository required")
	}
	if params.SpaceRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "spaces repository required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{
		repo:      params.Repo,
		spaceRepo: params.SpaceRepo,
		signer:    params.Signer,
		logg:      params.Logger,
	}, nil
}

func (s *service) Share(ctx context.Context, userID string, input ShareInput) (*models.PhotoShare, error) {
	space, err := s.requireSpace(ctx, userID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.ImageURL) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "image url required")
	}

	photo := &models.PhotoShare{
		ID:          uuid.New(),
		SpaceID:     space.ID,
		UserID:      userID,
		UserName:    strings.TrimSpace(input.UserName),
		Avatar:      strings.TrimSpace(input.Avatar),
		ImageURL:    strings.TrimSpace(input.ImageURL),
		Caption:     strings.TrimSpace(input.Caption),
		ExifTime:    strings.TrimSpace(input.ExifTime),
		Location:    strings.TrimSpace(input.Location),
		DeviceModel: strings.TrimSpace(input.DeviceModel),
	}
	if err := s.repo.Create(ctx, photo); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create photo share")
	}

	ctx = s.logg.WithSpaceID(ctx, space.ID.String())
	s.logg.Info(ctx, "photo shared")

	return photo, nil
}

func (s *service) Feed(ctx context.Context, userID string, limit int) ([]models.PhotoShare, error) {
	space, err := s.requireSpace(ctx, userID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > defaultFeedLimit {
		limit = defaultFeedLimit
	}
	photos, err := s.repo.ListBySpace(ctx, space.ID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list photos")
	}
	return photos, nil
}

func (s *service) UploadSignature(ctx context.Context, userID string) (*UploadSignature, error) {
	if _, err := s.requireSpace(ctx, userID); err != nil {
		return nil, err
	}
	if s.signer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "direct upload is not configured")
	}
	sig := s.signer.Sign()
	return &sig, nil
}

func (s *service) requireSpace(ctx context.Context, userID string) (*models.Space, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	space, err := s.spaceRepo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user has no space")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load space")
	}
	return space, nil
}
