package pairing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pairspace/pairspace-backend/internal/spaces"
	"github.com/pairspace/pairspace-backend/internal/users"
	"github.com/pairspace/pairspace-backend/pkg/db"
	"github.com/pairspace/pairspace-backend/pkg/db/models"
	"github.com/pairspace/pairspace-backend/pkg/enums"
	pkgerrors "github.com/pairspace/pairspace-backend/pkg/errors"
	"github.com/pairspace/pairspace-backend/pkg/logger"
)

// TxRunner abstracts transactional execution for the pairing flows.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines the invitation lifecycle and space formation.
type Service interface {
	SendInvitation(ctx context.Context, requesterID string, input SendInvitationInput) (*InvitationView, error)
	AcceptInvitation(ctx context.Context, targetID string, invitationID uuid.UUID, input AcceptInvitationInput) (*InvitationView, error)
	RejectInvitation(ctx context.Context, targetID string, invitationID uuid.UUID) (*InvitationView, error)
	CancelInvitation(ctx context.Context, requesterID string, invitationID uuid.UUID) error
	DissolveSpace(ctx context.Context, userID string) (*DissolveResult, error)
	GetInvitation(ctx context.Context, callerID string, invitationID uuid.UUID) (*InvitationView, error)
	IncomingInvitations(ctx context.Context, targetID string) ([]InvitationView, error)
	OutgoingInvitation(ctx context.Context, requesterID string) (*InvitationView, error)
}

// ServiceParams groups dependencies for the pairing service.
type ServiceParams struct {
	Repo      Repository
	UserRepo  users.Repository
	SpaceRepo spaces.Repository
	Tx        TxRunner
	Logger    *logger.Logger
}

type service struct {
	repo      Repository
	userRepo  users.Repository
	spaceRepo spaces.Repository
	tx        TxRunner
	logg      *logger.Logger
}

// NewService builds a pairing service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "invitations repository required")
	}
	if params.UserRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users repository required")
	}
	if params.SpaceRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "spaces repository required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "tx runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{
		repo:      params.Repo,
		userRepo:  params.UserRepo,
		spaceRepo: params.SpaceRepo,
		tx:        params.Tx,
		logg:      params.Logger,
	}, nil
}

// SendInvitation runs the precondition chain in a fixed order so callers get
// deterministic failures, then persists the pending invitation. The partial
// unique index on the requester's pending row backs the duplicate check under
// concurrency.
func (s *service) SendInvitation(ctx context.Context, requesterID string, input SendInvitationInput) (*InvitationView, error) {
	requesterID = strings.TrimSpace(requesterID)
	if requesterID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "requester id required")
	}

	requester, err := s.userRepo.FindByID(ctx, requesterID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "requester not registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load requester")
	}

	targetCode := strings.ToUpper(strings.TrimSpace(input.TargetCode))
	target, err := s.userRepo.FindByInviteCode(ctx, targetCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invite code not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve invite code")
	}

	if target.ID == requester.ID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot invite yourself")
	}

	if err := s.ensureUnpaired(ctx, target.ID, "target already belongs to a space"); err != nil {
		return nil, err
	}
	if err := s.ensureUnpaired(ctx, requester.ID, "you already belong to a space"); err != nil {
		return nil, err
	}

	_, err = s.repo.FindPendingByRequester(ctx, requester.ID)
	switch {
	case err == nil:
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "a pending invitation already exists")
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check pending invitation")
	}

	invitation := &models.Invitation{
		ID:            uuid.New(),
		RequesterID:   requester.ID,
		RequesterCode: requester.InviteCode,
		RequesterName: strings.TrimSpace(input.RequesterName),
		TargetID:      target.ID,
		TargetCode:    target.InviteCode,
		Message:       strings.TrimSpace(input.Message),
		SpaceName:     strings.TrimSpace(input.SpaceName),
		Status:        enums.InvitationStatusPending,
	}
	if err := s.repo.Create(ctx, invitation); err != nil {
		if db.IsUniqueViolation(err, "idx_invitations_requester_pending") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "a pending invitation already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create invitation")
	}

	ctx = s.logg.WithFields(ctx, map[string]any{"invitation_id": invitation.ID.String(), "target_id": target.ID})
	s.logg.Info(ctx, "invitation sent")

	view := viewOf(invitation)
	return &view, nil
}

// AcceptInvitation transitions the invitation, cancels every other pending
// proposal between the same two users, and creates the space, all inside one
// transaction. Pairing state is re-checked here because it may have changed
// since the invitation was sent; the unique index on space membership is the
// last line of defense against a concurrent pairing of either user.
func (s *service) AcceptInvitation(ctx context.Context, targetID string, invitationID uuid.UUID, input AcceptInvitationInput) (*InvitationView, error) {
	invitation, err := s.loadInvitation(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if invitation.TargetID != targetID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the invited user may accept")
	}
	if invitation.Status != enums.InvitationStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "invitation is no longer pending")
	}

	if err := s.ensureUnpaired(ctx, invitation.RequesterID, "requester already belongs to a space"); err != nil {
		return nil, err
	}
	if err := s.ensureUnpaired(ctx, invitation.TargetID, "you already belong to a space"); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	space := &models.Space{
		ID:   uuid.New(),
		Name: invitation.SpaceName,
		Members: []models.SpaceMember{
			{ID: uuid.New(), UserID: invitation.RequesterID, DisplayName: displayNameOr(invitation.RequesterName, invitation.RequesterID)},
			{ID: uuid.New(), UserID: invitation.TargetID, DisplayName: displayNameOr(input.DisplayName, invitation.TargetID)},
		},
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		spaceRepo := s.spaceRepo.WithTx(tx)

		rows, err := repo.MarkStatus(ctx, invitation.ID, enums.InvitationStatusPending, enums.InvitationStatusAccepted, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "accept invitation")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "invitation is no longer pending")
		}

		if _, err := repo.CancelPendingBetween(ctx, invitation.RequesterID, invitation.TargetID, invitation.ID, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel competing invitations")
		}

		if err := spaceRepo.Create(ctx, space); err != nil {
			if db.IsUniqueViolation(err, "idx_space_members_user_id") {
				return pkgerrors.New(pkgerrors.CodeConflict, "a participant already belongs to a space")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create space")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	invitation.Status = enums.InvitationStatusAccepted
	invitation.UpdatedAt = now

	ctx = s.logg.WithSpaceID(ctx, space.ID.String())
	s.logg.Info(ctx, "invitation accepted, space created")

	view := viewOf(invitation)
	return &view, nil
}

func (s *service) RejectInvitation(ctx context.Context, targetID string, invitationID uuid.UUID) (*InvitationView, error) {
	invitation, err := s.loadInvitation(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if invitation.TargetID != targetID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the invited user may reject")
	}
	return s.transition(ctx, invitation, enums.InvitationStatusRejected)
}

// CancelInvitation removes a still pending invitation entirely. Once the
// invitation has been decided the record is kept and the cancel fails.
func (s *service) CancelInvitation(ctx context.Context, requesterID string, invitationID uuid.UUID) error {
	invitation, err := s.loadInvitation(ctx, invitationID)
	if err != nil {
		return err
	}
	if invitation.RequesterID != requesterID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only the requester may cancel")
	}

	rows, err := s.repo.DeletePending(ctx, invitation.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete invitation")
	}
	if rows == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "invitation already processed")
	}

	ctx = s.logg.WithFields(ctx, map[string]any{"invitation_id": invitation.ID.String()})
	s.logg.Info(ctx, "invitation cancelled")
	return nil
}

// DissolveSpace tears down the caller's space. Member and photo rows cascade
// with the space row.
func (s *service) DissolveSpace(ctx context.Context, userID string) (*DissolveResult, error) {
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

	memberIDs := make([]string, 0, len(space.Members))
	for _, member := range space.Members {
		memberIDs = append(memberIDs, member.UserID)
	}

	rows, err := s.spaceRepo.Delete(ctx, space.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete space")
	}
	if rows == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "space already dissolved")
	}

	ctx = s.logg.WithSpaceID(ctx, space.ID.String())
	s.logg.Info(ctx, "space dissolved")

	return &DissolveResult{SpaceID: space.ID, MemberIDs: memberIDs}, nil
}

func (s *service) GetInvitation(ctx context.Context, callerID string, invitationID uuid.UUID) (*InvitationView, error) {
	invitation, err := s.loadInvitation(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if invitation.RequesterID != callerID && invitation.TargetID != callerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not a participant of this invitation")
	}
	view := viewOf(invitation)
	return &view, nil
}

func (s *service) IncomingInvitations(ctx context.Context, targetID string) ([]InvitationView, error) {
	if strings.TrimSpace(targetID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	rows, err := s.repo.ListPendingForTarget(ctx, targetID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list incoming invitations")
	}
	views := make([]InvitationView, 0, len(rows))
	for i := range rows {
		views = append(views, viewOf(&rows[i]))
	}
	return views, nil
}

func (s *service) OutgoingInvitation(ctx context.Context, requesterID string) (*InvitationView, error) {
	if strings.TrimSpace(requesterID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	invitation, err := s.repo.FindPendingByRequester(ctx, requesterID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no outgoing invitation")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load outgoing invitation")
	}
	view := viewOf(invitation)
	return &view, nil
}

func (s *service) loadInvitation(ctx context.Context, id uuid.UUID) (*models.Invitation, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invitation id required")
	}
	invitation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invitation not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invitation")
	}
	return invitation, nil
}

func (s *service) transition(ctx context.Context, invitation *models.Invitation, to enums.InvitationStatus) (*InvitationView, error) {
	if invitation.Status != enums.InvitationStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "invitation is no longer pending")
	}
	now := time.Now().UTC()
	rows, err := s.repo.MarkStatus(ctx, invitation.ID, enums.InvitationStatusPending, to, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update invitation status")
	}
	if rows == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "invitation is no longer pending")
	}
	invitation.Status = to
	invitation.UpdatedAt = now
	view := viewOf(invitation)
	return &view, nil
}

func displayNameOr(name, fallback string) string {
	if strings.TrimSpace(name) == "" {
		return fallback
	}
	return name
}

func (s *service) ensureUnpaired(ctx context.Context, userID, conflictMessage string) error {
	_, err := s.spaceRepo.FindByUserID(ctx, userID)
	switch {
	case err == nil:
		return pkgerrors.New(pkgerrors.CodeConflict, conflictMessage)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check pairing state")
	}
}
