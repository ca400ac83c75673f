package pairing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/pairspace/pairspace-backend/pkg/db"
	"github.com/pairspace/pairspace-backend/pkg/db/models"
	"github.com/pairspace/pairspace-backend/pkg/enums"
)

func setupInvitationsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	invitations := `
CREATE TABLE IF NOT EXISTS invitations (
  id TEXT PRIMARY KEY,
  requester_id TEXT NOT NULL,
  requester_code TEXT NOT NULL,
  requester_name TEXT NOT NULL,
  target_id TEXT NOT NULL,
  target_code TEXT NOT NULL,
  message TEXT NOT NULL DEFAULT '',
  space_name TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  created_at DATETIME,
  updated_at DATETIME
);`
	pendingIdx := `
CREATE UNIQUE INDEX IF NOT EXISTS idx_invitations_requester_pending
  ON invitations (requester_id) WHERE status = 'pending';`

	require.NoError(t, gdb.Exec(invitations).Error)
	require.NoError(t, gdb.Exec(pendingIdx).Error)
	return gdb
}

func seedInvitation(t *testing.T, repo Repository, requesterID, targetID string, status enums.InvitationStatus) *models.Invitation {
	t.Helper()
	inv := &models.Invitation{
		ID:            uuid.New(),
		RequesterID:   requesterID,
		RequesterCode: "AAAAAA",
		RequesterName: "Alex",
		TargetID:      targetID,
		TargetCode:    "BBBBBB",
		SpaceName:     "Our Space",
		Status:        status,
	}
	require.NoError(t, repo.Create(context.Background(), inv))
	return inv
}

func TestInvitationRepoCreateAndFind(t *testing.T) {
	repo := NewRepository(setupInvitationsTestDB(t))
	requester := uuid.NewString()
	target := uuid.NewString()

	created := seedInvitation(t, repo, requester, target, enums.InvitationStatusPending)

	found, err := repo.FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, requester, found.RequesterID)
	assert.Equal(t, enums.InvitationStatusPending, found.Status)

	pending, err := repo.FindPendingByRequester(context.Background(), requester)
	require.NoError(t, err)
	assert.Equal(t, created.ID, pending.ID)
}

func TestInvitationRepoListPendingForTarget(t *testing.T) {
	repo := NewRepository(setupInvitationsTestDB(t))
	target := uuid.NewString()

	seedInvitation(t, repo, uuid.NewString(), target, enums.InvitationStatusPending)
	seedInvitation(t, repo, uuid.NewString(), target, enums.InvitationStatusPending)
	seedInvitation(t, repo, uuid.NewString(), target, enums.InvitationStatusRejected)

	pending, err := repo.ListPendingForTarget(context.Background(), target)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	for _, inv := range pending {
		assert.Equal(t, enums.InvitationStatusPending, inv.Status)
	}
}

func TestInvitationRepoMarkStatusCAS(t *testing.T) {
	repo := NewRepository(setupInvitationsTestDB(t))
	inv := seedInvitation(t, repo, uuid.NewString(), uuid.NewString(), enums.InvitationStatusPending)
	now := time.Now().UTC()

	rows, err := repo.MarkStatus(context.Background(), inv.ID, enums.InvitationStatusPending, enums.InvitationStatusAccepted, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	// A second transition from pending finds nothing to update.
	rows, err = repo.MarkStatus(context.Background(), inv.ID, enums.InvitationStatusPending, enums.InvitationStatusRejected, now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows)

	found, err := repo.FindByID(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.InvitationStatusAccepted, found.Status)
}

func TestInvitationRepoCancelPendingBetween(t *testing.T) {
	repo := NewRepository(setupInvitationsTestDB(t))
	userA := uuid.NewString()
	userB := uuid.NewString()
	now := time.Now().UTC()

	accepted := seedInvitation(t, repo, userA, userB, enums.InvitationStatusAccepted)
	reverse := seedInvitation(t, repo, userB, userA, enums.InvitationStatusPending)
	toThirdParty := seedInvitation(t, repo, uuid.NewString(), userA, enums.InvitationStatusPending)

	rows, err := repo.CancelPendingBetween(context.Background(), userA, userB, accepted.ID, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	cancelled, err := repo.FindByID(context.Background(), reverse.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.InvitationStatusCancelled, cancelled.Status)

	// A pending invitation involving only one of the pair is untouched.
	kept, err := repo.FindByID(context.Background(), toThirdParty.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.InvitationStatusPending, kept.Status)

	still, err := repo.FindByID(context.Background(), accepted.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.InvitationStatusAccepted, still.Status)
}

func TestInvitationRepoDeletePending(t *testing.T) {
	repo := NewRepository(setupInvitationsTestDB(t))

	pending := seedInvitation(t, repo, uuid.NewString(), uuid.NewString(), enums.InvitationStatusPending)
	rows, err := repo.DeletePending(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	_, err = repo.FindByID(context.Background(), pending.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	accepted := seedInvitation(t, repo, uuid.NewString(), uuid.NewString(), enums.InvitationStatusAccepted)
	rows, err = repo.DeletePending(context.Background(), accepted.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows)
}

func TestInvitationRepoPendingUniquePerRequester(t *testing.T) {
	repo := NewRepository(setupInvitationsTestDB(t))
	requester := uuid.NewString()

	seedInvitation(t, repo, requester, uuid.NewString(), enums.InvitationStatusPending)

	dup := &models.Invitation{
		ID:            uuid.New(),
		RequesterID:   requester,
		RequesterCode: "AAAAAA",
		RequesterName: "Alex",
		TargetID:      uuid.NewString(),
		TargetCode:    "CCCCCC",
		SpaceName:     "Another Space",
		Status:        enums.InvitationStatusPending,
	}
	err := repo.Create(context.Background(), dup)
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err, ""))

	// A resolved invitation does not block a new proposal.
	now := time.Now().UTC()
	pending, err := repo.FindPendingByRequester(context.Background(), requester)
	require.NoError(t, err)
	_, err = repo.MarkStatus(context.Background(), pending.ID, enums.InvitationStatusPending, enums.InvitationStatusRejected, now)
	require.NoError(t, err)

	require.NoError(t, repo.Create(context.Background(), dup))
}
