package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pairspace/pairspace-backend/pkg/migrate"
)

func TestMigrationsDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}

func TestSpacesMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_spaces.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS spaces",
		"CREATE TABLE IF NOT EXISTS space_members",
		"FOREIGN KEY (space_id) REFERENCES spaces(id) ON DELETE CASCADE",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_space_members_user_id ON space_members (user_id)",
		"CHECK (streak_days >= 0)",
		"DROP TABLE IF EXISTS space_members",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestInvitationsMigrationEnforcesSinglePending(t *testing.T) {
	content := readMigration(t, "*_create_invitations.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS invitations",
		"idx_invitations_requester_pending",
		"WHERE status = 'pending'",
		"CHECK (status IN ('pending', 'accepted', 'rejected', 'cancelled'))",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %s", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
