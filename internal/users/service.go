package users

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/pairspace/pairspace-backend/pkg/auth"
	"github.com/pairspace/pairspace-backend/pkg/config"
	"github.com/pairspace/pairspace-backend/pkg/db"
	"github.com/pairspace/pairspace-backend/pkg/db/models"
	pkgerrors "github.com/pairspace/pairspace-backend/pkg/errors"
	"github.com/pairspace/pairspace-backend/pkg/logger"
)

const (
	inviteCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	inviteCodeLength   = 6

	// Collision retries before giving up on code generation.
	inviteCodeAttempts = 5
)

// Service defines identity registration and invite code lookups.
type Service interface {
	Register(ctx context.Context, userID string) (*RegisterResult, error)
	Profile(ctx context.Context, userID string) (*models.User, error)
	InviteCode(ctx context.Context, userID string) (string, error)
	ResolveInviteCode(ctx context.Context, code string) (*models.User, error)
}

// RegisterResult carries the identity and access token handed back on sign-in.
type RegisterResult struct {
	User    *models.User `json:"user"`
	Token   string       `json:"token"`
	Created bool         `json:"created"`
}

// ServiceParams wires users dependencies.
type ServiceParams struct {
	Repo   Repository
	JWT    config.JWTConfig
	Logger *logger.Logger
}

type service struct {
	repo Repository
	jwt  config.JWTConfig
	logg *logger.Logger
}

// NewService wires users dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users repository required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{repo: params.Repo, jwt: params.JWT, logg: params.Logger}, nil
}

// Register finds or creates the identity and mints a fresh access token.
// The invite code is assigned on first registration and never changes.
func (s *service) Register(ctx context.Context, userID string) (*RegisterResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	user, err := s.repo.FindByID(ctx, userID)
	created := false
	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		user, err = s.createWithInviteCode(ctx, userID)
		if err != nil {
			return nil, err
		}
		created = true
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	token, err := auth.MintAccessToken(s.jwt, time.Now().UTC(), auth.AccessTokenPayload{UserID: user.ID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}

	if created {
		s.logg.Info(s.logg.WithUserID(ctx, user.ID), "registered new user")
	}

	return &RegisterResult{User: user, Token: token, Created: created}, nil
}

func (s *service) Profile(ctx context.Context, userID string) (*models.User, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user, nil
}

func (s *service) InviteCode(ctx context.Context, userID string) (string, error) {
	user, err := s.Profile(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.InviteCode, nil
}

// ResolveInviteCode maps a code to its owner.
func (s *service) ResolveInviteCode(ctx context.Context, code string) (*models.User, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != inviteCodeLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invite code must be 6 characters")
	}
	user, err := s.repo.FindByInviteCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invite code not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve invite code")
	}
	return user, nil
}

func (s *service) createWithInviteCode(ctx context.Context, userID string) (*models.User, error) {
	for attempt := 0; attempt < inviteCodeAttempts; attempt++ {
		code, err := generateInviteCode()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate invite code")
		}

		user := &models.User{ID: userID, InviteCode: code}
		createErr := s.repo.Create(ctx, user)
		if createErr == nil {
			return user, nil
		}
		if db.IsUniqueViolation(createErr, "") {
			// Either the code collided or a concurrent register won; re-read.
			existing, findErr := s.repo.FindByID(ctx, userID)
			if findErr == nil {
				return existing, nil
			}
			continue
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, createErr, "create user")
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "could not allocate a unique invite code")
}

func generateInviteCode() (string, error) {
	buf := make([]byte, inviteCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	out := make([]byte, inviteCodeLength)
	for i, b := range buf {
		out[i] = inviteCodeAlphabet[int(b)%len(inviteCodeAlphabet)]
	}
	return string(out), nil
}
