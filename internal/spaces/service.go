package spaces

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pairspace/pairspace-backend/pkg/db/models"
	pkgerrors "github.com/pairspace/pairspace-backend/pkg/errors"
	"github.com/pairspace/pairspace-backend/pkg/logger"
)

// Service defines space queries and member location reporting.
type Service interface {
	GetForUser(ctx context.Context, userID string) (*SpaceView, error)
	IsMember(ctx context.Context, spaceID uuid.UUID, userID string) (bool, error)
	ReportLocation(ctx context.Context, userID string, input LocationInput) (*SpaceView, error)
}

// LocationInput is a member's self-reported position.
type LocationInput struct {
	Latitude  *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	City      *string  `json:"city"`
	Country   *string  `json:"country"`
	District  *string  `json:"district"`
}

// MemberView is the API shape of one space member.
type MemberView struct {
	UserID            string     `json:"userId"`
	DisplayName       string     `json:"displayName"`
	Latitude          *float64   `json:"latitude,omitempty"`
	Longitude         *float64   `json:"longitude,omitempty"`
	City              *string    `json:"city,omitempty"`
	Country           *string    `json:"country,omitempty"`
	District          *string    `json:"district,omitempty"`
	LocationUpdatedAt *time.Time `json:"locationUpdatedAt,omitempty"`
	LastFedDate       string     `json:"lastFedDate"`
}

// SpaceView is the API shape of a space from one member's perspective.
type SpaceView struct {
	ID             uuid.UUID   `json:"id"`
	Name           string      `json:"name"`
	StreakDays     int         `json:"streakDays"`
	LastStreakDate string      `json:"lastStreakDate"`
	CreatedAt      time.Time   `json:"createdAt"`
	Me             MemberView  `json:"me"`
	Partner        *MemberView `json:"partner,omitempty"`
}

// ServiceParams wires spaces dependencies.
type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService wires spaces dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "spaces repository required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{repo: params.Repo, logg: params.Logger}, nil
}

func (s *service) GetForUser(ctx context.Context, userID string) (*SpaceView, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	space, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user has no space")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load space")
	}
	return BuildView(space, userID), nil
}

func (s *service) IsMember(ctx context.Context, spaceID uuid.UUID, userID string) (bool, error) {
	if spaceID == uuid.Nil || strings.TrimSpace(userID) == "" {
		return false, nil
	}
	ok, err := s.repo.HasMember(ctx, spaceID, userID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check membership")
	}
	return ok, nil
}

func (s *service) ReportLocation(ctx context.Context, userID string, input LocationInput) (*SpaceView, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if (input.Latitude == nil) != (input.Longitude == nil) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "latitude and longitude must be provided together")
	}

	space, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user has no space")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load space")
	}

	loc := MemberLocation{
		Latitude:  input.Latitude,
		Longitude: input.Longitude,
		City:      input.City,
		Country:   input.Country,
		District:  input.District,
	}
	updated, err := s.repo.UpdateMemberLocation(ctx, space.ID, userID, loc, time.Now().UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update member location")
	}
	if !updated {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "membership not found")
	}

	refreshed, err := s.repo.FindByID(ctx, space.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload space")
	}
	return BuildView(refreshed, userID), nil
}

// BuildView projects a space row onto the caller's perspective.
func BuildView(space *models.Space, userID string) *SpaceView {
	view := &SpaceView{
		ID:             space.ID,
		Name:           space.Name,
		StreakDays:     space.StreakDays,
		LastStreakDate: space.LastStreakDate,
		CreatedAt:      space.CreatedAt,
	}
	for i := range space.Members {
		member := memberView(space.Members[i])
		if space.Members[i].UserID == userID {
			view.Me = member
		} else {
			partner := member
			view.Partner = &partner
		}
	}
	return view
}

func memberView(m models.SpaceMember) MemberView {
	return MemberView{
		UserID:            m.UserID,
		DisplayName:       m.DisplayName,
		Latitude:          m.Latitude,
		Longitude:         m.Longitude,
		City:              m.City,
		Country:           m.Country,
		District:          m.District,
		LocationUpdatedAt: m.LocationUpdatedAt,
		LastFedDate:       m.LastFedDate,
	}
}
