package router

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aldoetobex/mediation-crm-backend/internal/auth"
	"github.com/aldoetobex/mediation-crm-backend/internal/logging"
	"github.com/aldoetobex/mediation-crm-backend/pkg/models"
)

func testApp(t *testing.T) (*Deps, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	return &Deps{
		Tokens:      auth.NewTokens("router-test-secret-123", time.Hour, time.Hour),
		Log:         logging.New(&buf, "mediation-crm", slog.LevelInfo),
		CORSOrigins: []string{"http://localhost:3000"},
	}, &buf
}

func TestPublicRoutes(t *testing.T) {
	d, _ := testApp(t)
	app := New(*d)

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/auth/login/", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(raw), "/api/auth/jwt/create/")
}

func TestSwaggerOnlyWhenEnabled(t *testing.T) {
	d, _ := testApp(t)
	resp, err := New(*d).Test(httptest.NewRequest("GET", "/swagger/index.html", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)

	d.Swagger = true
	resp, err = New(*d).Test(httptest.NewRequest("GET", "/swagger/index.html", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestEntityRoutesRequireToken(t *testing.T) {
	d, buf := testApp(t)
	app := New(*d)

	for _, tc := range []struct{ method, path string }{
		{"GET", "/api/cases/"},
		{"POST", "/api/cases/"},
		{"GET", "/api/cases/export/"},
		{"GET", "/api/cases/" + uuid.NewString() + "/"},
		{"DELETE", "/api/cases/" + uuid.NewString() + "/"},
		{"GET", "/api/parties/"},
		{"GET", "/api/sessions/"},
		{"GET", "/api/todos/"},
		{"POST", "/api/todos/" + uuid.NewString() + "/toggle_complete/"},
		{"GET", "/api/appointments/"},
		{"POST", "/api/auth/change-password/"},
	} {
		resp, err := app.Test(httptest.NewRequest(tc.method, tc.path, nil))
		require.NoError(t, err)
		assert.Equal(t, 401, resp.StatusCode, "%s %s", tc.method, tc.path)

		var body models.ErrorResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "UNAUTHORIZED", body.Code)
	}

	// every request is access-logged with its final status
	assert.Contains(t, buf.String(), `"status":401`)
}

func TestExportRouteIsNotTakenForAnID(t *testing.T) {
	d, _ := testApp(t)
	app := New(*d)
	access, err := d.Tokens.IssueAccess(&models.User{TimeStamped: models.TimeStamped{ID: uuid.New()}})
	require.NoError(t, err)

	// an unsupported format is rejected by the export handler before any query
	req := httptest.NewRequest("GET", "/api/cases/export/?format=xml", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	d, _ := testApp(t)
	app := New(*d)

	req := httptest.NewRequest("OPTIONS", "/api/cases/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}
