package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resolvehub/complaint-engine/internal/domain"
	"github.com/resolvehub/complaint-engine/internal/repository"
	apperrors "github.com/resolvehub/complaint-engine/pkg/util/errorutil"
)

func newTestApp(t *testing.T) (*fiber.App, *TokenManager) {
	t.Helper()
	tokens := NewTokenManager("test-secret", 5)
	staff := repository.NewMemoryStaffRepository(
		domain.StaffMember{ID: "admin-1", Role: domain.StaffRoleAdmin, Active: true},
		domain.StaffMember{ID: "staff-1", Role: domain.StaffRoleStaff, Active: true},
		domain.StaffMember{ID: "gone-1", Role: domain.StaffRoleStaff, Active: false},
	)
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var domainErr *apperrors.DomainError
			if errors.As(err, &domainErr) {
				return c.SendStatus(domainErr.HTTPStatus)
			}
			return c.SendStatus(http.StatusInternalServerError)
		},
	})
	mw := NewAuthMiddleware(tokens, staff)
	app.Get("/me", mw.Handle, func(c *fiber.Ctx) error {
		principal, _ := PrincipalFromContext(c)
		return c.SendString(principal.Account.ID)
	})
	app.Get("/admin", mw.Handle, RequireAdmin(), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})
	return app, tokens
}

func request(t *testing.T, app *fiber.App, path, token string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestAuthMiddleware(t *testing.T) {
	app, tokens := newTestApp(t)
	sign := func(id string, role domain.StaffRole) string {
		token, _, err := tokens.GenerateToken(id, role)
		require.NoError(t, err)
		return token
	}

	assert.Equal(t, http.StatusUnauthorized, request(t, app, "/me", ""))
	assert.Equal(t, http.StatusUnauthorized, request(t, app, "/me", "garbage"))
	assert.Equal(t, http.StatusOK, request(t, app, "/me", sign("staff-1", domain.StaffRoleStaff)))
	assert.Equal(t, http.StatusUnauthorized, request(t, app, "/me", sign("staff-1", domain.StaffRoleAdmin)), "role claim must match the account")
	assert.Equal(t, http.StatusUnauthorized, request(t, app, "/me", sign("gone-1", domain.StaffRoleStaff)))
	assert.Equal(t, http.StatusUnauthorized, request(t, app, "/me", sign("nobody", domain.StaffRoleStaff)))

	assert.Equal(t, http.StatusForbidden, request(t, app, "/admin", sign("staff-1", domain.StaffRoleStaff)))
	assert.Equal(t, http.StatusNoContent, request(t, app, "/admin", sign("admin-1", domain.StaffRoleAdmin)))

	other := NewTokenManager("other-secret", 5)
	forged, _, err := other.GenerateToken("admin-1", domain.StaffRoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, request(t, app, "/admin", forged))
}
