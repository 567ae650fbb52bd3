package auth

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/aldoetobex/mediation-crm-backend/pkg/models"
)

const testSecret = "test-secret-0123456789"

func testUser() *models.User {
	return &models.User{TimeStamped: models.TimeStamped{ID: uuid.New()}, Username: "mediator", TokenVersion: 3}
}

func TestIssueAndParse(t *testing.T) {
	tk := NewTokens(testSecret, time.Hour, 24*time.Hour)
	u := testUser()

	pair, err := tk.IssuePair(u)
	require.NoError(t, err)

	claims, err := tk.Parse(pair.Access, TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, u.ID.String(), claims.Sub)
	assert.Equal(t, 3, claims.Ver)

	_, err = tk.Parse(pair.Refresh, TokenRefresh)
	require.NoError(t, err)

	// a refresh token is never an access token and vice versa
	_, err = tk.Parse(pair.Refresh, TokenAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = tk.Parse(pair.Access, TokenRefresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpiredAndForeign(t *testing.T) {
	tk := NewTokens(testSecret, time.Minute, time.Hour)
	access, err := tk.IssueAccess(testUser())
	require.NoError(t, err)

	tk.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = tk.Parse(access, TokenAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewTokens("another-secret-987654321", time.Hour, time.Hour)
	_, err = other.Parse(access, TokenAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = tk.Parse("garbage", TokenAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func newAuthApp(tk *Tokens) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: NewErrorHandler(nil)})
	app.Get("/me", RequireAuth(tk), func(c *fiber.Ctx) error {
		return c.SendString(MustUserID(c))
	})
	return app
}

func decodeError(t *testing.T, body io.Reader) models.ErrorResponse {
	t.Helper()
	var out models.ErrorResponse
	require.NoError(t, json.NewDecoder(body).Decode(&out))
	return out
}

func TestRequireAuth(t *testing.T) {
	tk := NewTokens(testSecret, time.Hour, time.Hour)
	app := newAuthApp(tk)
	u := testUser()
	pair, err := tk.IssuePair(u)
	require.NoError(t, err)

	// no header
	resp, err := app.Test(httptest.NewRequest("GET", "/me", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	body := decodeError(t, resp.Body)
	assert.Equal(t, "UNAUTHORIZED", body.Code)
	assert.Equal(t, "Authentication credentials were not provided.", body.Detail)

	// refresh token used as bearer
	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+pair.Refresh)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	// valid access token
	req = httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+pair.Access)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, u.ID.String(), string(raw))
}

func TestErrorHandler(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: NewErrorHandler(nil)})
	app.Get("/missing", func(c *fiber.Ctx) error { return gorm.ErrRecordNotFound })
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("db down") })
	app.Get("/bad", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusBadRequest, "invalid json") })

	resp, err := app.Test(httptest.NewRequest("GET", "/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", decodeError(t, resp.Body).Code)

	resp, err = app.Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	body := decodeError(t, resp.Body)
	assert.True(t, body.Error)
	// internals are not leaked
	assert.NotContains(t, body.Detail, "db down")

	resp, err = app.Test(httptest.NewRequest("GET", "/bad", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid json", decodeError(t, resp.Body).Detail)
}

func TestActorID(t *testing.T) {
	app := fiber.New()
	id := uuid.New()
	app.Get("/", func(c *fiber.Ctx) error {
		if ActorID(c) != nil {
			return fiber.ErrTeapot
		}
		c.Locals("userID", id.String())
		if got := ActorID(c); got == nil || *got != id {
			return fiber.ErrTeapot
		}
		return nil
	})
	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
