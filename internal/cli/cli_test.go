package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resolvehub/complaint-engine/internal/auth"
	"github.com/resolvehub/complaint-engine/internal/domain"
)

const seed = `
accounts:
  - id: staff-1
    role: staff
    department: Plumbing
    city: Agra
  - id: admin-1
    role: admin
    city: Agra
`

func setupEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	seedPath := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(seedPath, []byte(seed), 0o600))

	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("RULES_FILE", "")
	t.Setenv("SEED_FILE", seedPath)
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("AUTH_JWT_SECRET", "cli-secret")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := RootCmd("test")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTokenCommand(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "token", "--account", "admin-1")
	require.NoError(t, err)

	claims, err := auth.NewTokenManager("cli-secret", 60).ParseToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "admin-1", claims.AccountID)
	assert.Equal(t, domain.StaffRoleAdmin, claims.Role)

	_, err = run(t, "token", "--account", "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSweepCommandJSON(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "sweep", "--json", "--at", "2025-03-12T09:00:00Z")
	require.NoError(t, err)

	var report map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.EqualValues(t, 0, report["evaluated"])
	assert.Equal(t, "2025-03-12T09:00:00Z", report["started_at"])

	_, err = run(t, "sweep", "--at", "yesterday")
	require.Error(t, err)
}

func TestAssignCommand(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "assign", "--city", "Agra", "--department", "Plumbing")
	require.NoError(t, err)
	assert.Contains(t, out, "0 matched")
	assert.Contains(t, out, "staff-1")

	_, err = run(t, "assign", "--city", "Agra", "--department", "Roads")
	require.Error(t, err)

	_, err = run(t, "assign", "--city", "Pune", "--department", "Plumbing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no eligible staff")
}

func TestLeaderboardAndBackfillCommands(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "leaderboard")
	require.NoError(t, err)
	assert.Contains(t, out, "Staff: 1")
	assert.Contains(t, out, "Average: 0.00")
	assert.Contains(t, out, "staff-1")

	out, err = run(t, "backfill-departments")
	require.NoError(t, err)
	assert.Contains(t, out, "No complaints without a department.")
}
