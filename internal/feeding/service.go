package feeding

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pairspace/pairspace-backend/internal/spaces"
	pkgerrors "github.com/pairspace/pairspace-backend/pkg/errors"
	"github.com/pairspace/pairspace-backend/pkg/logger"
	"github.com/pairspace/pairspace-backend/pkg/metrics"
)

// Result describes the outcome of one feeding action.
type Result struct {
	Recorded          bool      `json:"recorded"`
	SpaceID           uuid.UUID `json:"spaceId,omitempty"`
	Day               DayKey    `json:"day,omitempty"`
	FedUserIDs        []string  `json:"fedUserIds,omitempty"`
	AllFed            bool      `json:"allFed"`
	StreakDays        int       `json:"streakDays"`
	StreakIncremented bool      `json:"streakIncremented"`
}

// Service records feeding actions and advances the cooperative streak.
type Service interface {
	RecordFeeding(ctx context.Context, userID string) (*Result, error)
}

// ServiceParams wires feeding dependencies.
type ServiceParams struct {
	Repo      Repository
	SpaceRepo spaces.Repository
	Metrics   *metrics.PresenceMetrics
	Logger    *logger.Logger
	Now       func() time.Time
}

type service struct {
	repo      Repository
	spaceRepo spaces.Repository
	metrics   *metrics.PresenceMetrics
	logg      *logger.Logger
	now       func() time.Time
}

// NewService wires feeding dependencies. Metrics may be nil.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "feeding repository required")
	}
	if params.SpaceRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "spaces repository required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:      params.Repo,
		spaceRepo: params.SpaceRepo,
		metrics:   params.Metrics,
		logg:      params.Logger,
		now:       now,
	}, nil
}

// RecordFeeding is best-effort: a caller without a space gets a quiet no-op
// rather than an error, so a stale client cannot crash the realtime loop.
// The streak advances at most once per UTC day, and only once every member
// has acted within that day.
func (s *service) RecordFeeding(ctx context.Context, userID string) (*Result, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	ctx = s.logg.WithUserID(ctx, userID)

	space, err := s.spaceRepo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logg.Warn(ctx, "feeding ignored, user has no space")
			s.metrics.IncFeeding("noop")
			return &Result{Recorded: false}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load space")
	}

	day := DayOf(s.now())
	ctx = s.logg.WithSpaceID(ctx, space.ID.String())

	marked, err := s.repo.MarkFed(ctx, space.ID, userID, day)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark member fed")
	}
	if !marked {
		s.logg.Warn(ctx, "feeding ignored, membership row missing")
		s.metrics.IncFeeding("noop")
		return &Result{Recorded: false}, nil
	}

	fed, err := s.repo.FedMembers(ctx, space.ID, day)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "collect fed members")
	}
	memberCount, err := s.repo.MemberCount(ctx, space.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count members")
	}

	result := &Result{
		Recorded:   true,
		SpaceID:    space.ID,
		Day:        day,
		FedUserIDs: fed,
		AllFed:     memberCount > 0 && int64(len(fed)) == memberCount,
	}

	if result.AllFed {
		incremented, err := s.repo.IncrementStreak(ctx, space.ID, day)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment streak")
		}
		result.StreakIncremented = incremented
	}

	streak, err := s.repo.StreakDays(ctx, space.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read streak")
	}
	result.StreakDays = streak

	switch {
	case result.StreakIncremented:
		s.metrics.IncFeeding("streak_incremented")
		s.logg.Info(ctx, "streak advanced")
	default:
		s.metrics.IncFeeding("recorded")
	}

	return result, nil
}
