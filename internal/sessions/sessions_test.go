package sessions

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aldoetobex/mediation-crm-backend/internal/auth"
	"github.com/aldoetobex/mediation-crm-backend/internal/testdb"
	"github.com/aldoetobex/mediation-crm-backend/pkg/models"
	"github.com/aldoetobex/mediation-crm-backend/pkg/serializers"
)

func newTestApp(h *Handler) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: auth.NewErrorHandler(nil)})
	app.Use(testdb.InjectAuth(uuid.New()))
	app.Get("/api/sessions", h.List)
	app.Post("/api/sessions", h.Create)
	app.Get("/api/sessions/:id", h.Get)
	app.Put("/api/sessions/:id", h.Update)
	app.Patch("/api/sessions/:id", h.Update)
	app.Delete("/api/sessions/:id", h.Delete)
	return app
}

func do(t *testing.T, app *fiber.App, method, path, body string, out any) int {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	if out != nil {
		raw, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(raw, out); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return resp.StatusCode
}

func Test_Session_DefaultsAndUpdate(t *testing.T) {
	db := testdb.Open(t)
	testdb.WithTx(t, db, func(tx *gorm.DB) {
		cs := testdb.SeedCase(t, tx, "C-100", models.CaseOpen)
		app := newTestApp(NewHandler(tx))

		// end before start is accepted
		var s serializers.SessionResponse
		status := do(t, app, "POST", "/api/sessions/",
			`{"case":"`+cs.ID.String()+`","start":"2025-02-01T12:00:00Z","end":"2025-02-01T10:00:00Z"}`, &s)
		if status != 201 {
			t.Fatalf("create: %d", status)
		}
		if s.SessionType != models.DefaultSessionType || s.IsCompleted {
			t.Fatalf("defaults: %+v", s)
		}

		path := "/api/sessions/" + s.ID.String() + "/"
		do(t, app, "PATCH", path, `{"is_completed":true,"notes":"agreed parenting plan"}`, &s)
		if !s.IsCompleted || s.Notes != "agreed parenting plan" {
			t.Fatalf("patch: %+v", s)
		}

		var verr models.ValidationErrorResponse
		if status := do(t, app, "PUT", path, `{"notes":"x"}`, &verr); status != 400 || len(verr.Errors["start"]) == 0 {
			t.Fatalf("put missing fields: %d %v", status, verr.Errors)
		}

		if status := do(t, app, "DELETE", path, "", nil); status != 204 {
			t.Fatalf("delete: %d", status)
		}
	})
}

func Test_Session_FilterByCase(t *testing.T) {
	db := testdb.Open(t)
	testdb.WithTx(t, db, func(tx *gorm.DB) {
		a := testdb.SeedCase(t, tx, "C-1", models.CaseOpen)
		b := testdb.SeedCase(t, tx, "C-2", models.CaseOpen)
		app := newTestApp(NewHandler(tx))
		for _, id := range []uuid.UUID{a.ID, a.ID, b.ID} {
			body := `{"case":"` + id.String() + `","start":"2025-02-01T10:00:00Z","end":"2025-02-01T11:00:00Z"}`
			if status := do(t, app, "POST", "/api/sessions/", body, nil); status != 201 {
				t.Fatalf("create: %d", status)
			}
		}

		var got []serializers.SessionResponse
		do(t, app, "GET", "/api/sessions/?case="+a.ID.String(), "", &got)
		if len(got) != 2 {
			t.Fatalf("want 2 sessions for case a, got %d", len(got))
		}
	})
}
