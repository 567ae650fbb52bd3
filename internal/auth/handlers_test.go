package auth

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/aldoetobex/mediation-crm-backend/internal/testdb"
	"github.com/aldoetobex/mediation-crm-backend/pkg/models"
)

/* ============================================================================
   Helpers
   ============================================================================ */

func newHandlerApp(db *gorm.DB, tk *Tokens) *fiber.App {
	h := NewHandler(db, tk)
	app := fiber.New(fiber.Config{ErrorHandler: NewErrorHandler(nil)})
	app.Post("/api/auth/jwt/create", h.TokenCreate)
	app.Post("/api/auth/jwt/refresh", h.TokenRefresh)
	app.Get("/api/auth/login", h.LoginInfo)
	app.Post("/api/auth/change-password", RequireAuth(tk), h.ChangePassword)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path, body, bearer string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request %s: %v", path, err)
	}
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func seedUser(t *testing.T, db *gorm.DB) {
	t.Helper()
	created, err := EnsureUser(context.Background(), db, "mediator", "Mediator@Example.com", "s3cret-pass")
	if err != nil || !created {
		t.Fatalf("seed user: created=%v err=%v", created, err)
	}
}

/* ============================================================================
   Tests
   ============================================================================ */

func Test_TokenCreate_ByUsernameOrEmail(t *testing.T) {
	db := testdb.Open(t)
	seedUser(t, db)
	app := newHandlerApp(db, NewTokens(testSecret, time.Hour, time.Hour))

	status, body := postJSON(t, app, "/api/auth/jwt/create/", `{"username":"mediator","password":"s3cret-pass"}`, "")
	if status != 200 || body["access"] == nil || body["refresh"] == nil {
		t.Fatalf("want token pair, got %d %v", status, body)
	}

	status, _ = postJSON(t, app, "/api/auth/jwt/create/", `{"username":"mediator@example.com","password":"s3cret-pass"}`, "")
	if status != 200 {
		t.Fatalf("login by email: status %d", status)
	}

	status, body = postJSON(t, app, "/api/auth/jwt/create/", `{"username":"mediator","password":"wrong"}`, "")
	if status != 401 {
		t.Fatalf("wrong password: want 401, got %d", status)
	}
	if body["detail"] != "No active account found with the given credentials" {
		t.Fatalf("unexpected detail %v", body["detail"])
	}
}

func Test_EnsureUser_IsIdempotent(t *testing.T) {
	db := testdb.Open(t)
	seedUser(t, db)

	created, err := EnsureUser(context.Background(), db, "mediator", "", "other")
	if err != nil || created {
		t.Fatalf("second ensure: created=%v err=%v", created, err)
	}
	var n int64
	db.Model(&models.User{}).Count(&n)
	if n != 1 {
		t.Fatalf("want 1 user, got %d", n)
	}
}

func Test_Refresh_And_ChangePassword_RotatesTokens(t *testing.T) {
	db := testdb.Open(t)
	seedUser(t, db)
	app := newHandlerApp(db, NewTokens(testSecret, time.Hour, time.Hour))

	_, pair := postJSON(t, app, "/api/auth/jwt/create/", `{"username":"mediator","password":"s3cret-pass"}`, "")
	access, _ := pair["access"].(string)
	refresh, _ := pair["refresh"].(string)

	status, body := postJSON(t, app, "/api/auth/jwt/refresh/", `{"refresh":"`+refresh+`"}`, "")
	if status != 200 || body["access"] == nil {
		t.Fatalf("refresh: %d %v", status, body)
	}

	// access token is not a refresh token
	status, _ = postJSON(t, app, "/api/auth/jwt/refresh/", `{"refresh":"`+access+`"}`, "")
	if status != 401 {
		t.Fatalf("access as refresh: want 401, got %d", status)
	}

	status, body = postJSON(t, app, "/api/auth/change-password/", `{"old_password":"s3cret-pass"}`, access)
	if status != 400 || body["detail"] != "Both old and new password are required" {
		t.Fatalf("missing new password: %d %v", status, body)
	}

	status, body = postJSON(t, app, "/api/auth/change-password/", `{"old_password":"nope","new_password":"n3w-pass"}`, access)
	if status != 400 || body["detail"] != "Current password is incorrect" {
		t.Fatalf("wrong old password: %d %v", status, body)
	}

	status, body = postJSON(t, app, "/api/auth/change-password/", `{"old_password":"s3cret-pass","new_password":"n3w-pass"}`, access)
	if status != 200 || body["detail"] != "Password changed successfully" || body["refresh"] == nil {
		t.Fatalf("change password: %d %v", status, body)
	}

	// the old refresh token is retired
	status, _ = postJSON(t, app, "/api/auth/jwt/refresh/", `{"refresh":"`+refresh+`"}`, "")
	if status != 401 {
		t.Fatalf("old refresh after password change: want 401, got %d", status)
	}

	status, _ = postJSON(t, app, "/api/auth/jwt/create/", `{"username":"mediator","password":"n3w-pass"}`, "")
	if status != 200 {
		t.Fatalf("login with new password: %d", status)
	}
}

func Test_LoginInfo_IsPublic(t *testing.T) {
	app := newHandlerApp(nil, NewTokens(testSecret, time.Hour, time.Hour))
	resp, err := app.Test(httptest.NewRequest("GET", "/api/auth/login/", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status %d", resp.StatusCode)
	}
}

// bcrypt refuses input over 72 bytes; that must surface as a 400, not a 500.
func Test_ChangePassword_RejectsOverlongPassword(t *testing.T) {
	tk := NewTokens(testSecret, time.Hour, time.Hour)
	app := newHandlerApp(nil, tk)
	access, err := tk.IssueAccess(testUser())
	if err != nil {
		t.Fatal(err)
	}

	body := `{"old_password":"s3cret-pass","new_password":"` + strings.Repeat("a", 80) + `"}`
	status, out := postJSON(t, app, "/api/auth/change-password/", body, access)
	if status != 400 {
		t.Fatalf("want 400, got %d: %v", status, out)
	}
	if out["detail"] != msgPasswordTooLong {
		t.Fatalf("detail: %v", out["detail"])
	}
}

func Test_EnsureUser_RejectsOverlongPassword(t *testing.T) {
	created, err := EnsureUser(context.Background(), nil, "mediator", "", strings.Repeat("a", 73))
	if err == nil || created {
		t.Fatalf("want error, got created=%v err=%v", created, err)
	}
}
