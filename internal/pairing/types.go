package pairing

import (
	"time"

	"github.com/google/uuid"

	"github.com/pairspace/pairspace-backend/pkg/db/models"
	"github.com/pairspace/pairspace-backend/pkg/enums"
)

// SendInvitationInput carries the requester's proposal.
type SendInvitationInput struct {
	TargetCode    string `json:"targetCode" validate:"required,len=6"`
	RequesterName string `json:"requesterName" validate:"required,max=64"`
	SpaceName     string `json:"spaceName" validate:"required,max=64"`
	Message       string `json:"message" validate:"max=280"`
}

// InvitationView is the API shape of an invitation.
type InvitationView struct {
	ID            uuid.UUID              `json:"id"`
	RequesterID   string                 `json:"requesterId"`
	RequesterCode string                 `json:"requesterCode"`
	RequesterName string                 `json:"requesterName"`
	TargetID      string                 `json:"targetId"`
	TargetCode    string                 `json:"targetCode"`
	Message       string                 `json:"message"`
	SpaceName     string                 `json:"spaceName"`
	Status        enums.InvitationStatus `json:"status"`
	CreatedAt     time.Time              `json:"createdAt"`
	UpdatedAt     time.Time              `json:"updatedAt"`
}

// AcceptInvitationInput carries the accepting user's display name for the new
// space's member row. The client re-fetches its space after accepting; the
// space itself is not returned synchronously.
type AcceptInvitationInput struct {
	DisplayName string `json:"displayName" validate:"max=64"`
}

// DissolveResult identifies the space that was torn down and who was in it.
type DissolveResult struct {
	SpaceID   uuid.UUID `json:"spaceId"`
	MemberIDs []string  `json:"memberIds"`
}

func viewOf(inv *models.Invitation) InvitationView {
	return InvitationView{
		ID:            inv.ID,
		RequesterID:   inv.RequesterID,
		RequesterCode: inv.RequesterCode,
		RequesterName: inv.RequesterName,
		TargetID:      inv.TargetID,
		TargetCode:    inv.TargetCode,
		Message:       inv.Message,
		SpaceName:     inv.SpaceName,
		Status:        inv.Status,
		CreatedAt:     inv.CreatedAt,
		UpdatedAt:     inv.UpdatedAt,
	}
}
