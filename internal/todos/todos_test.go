package todos

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
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
	app.Get("/api/todos", h.List)
	app.Post("/api/todos", h.Create)
	app.Get("/api/todos/:id", h.Get)
	app.Put("/api/todos/:id", h.Update)
	app.Patch("/api/todos/:id", h.Update)
	app.Delete("/api/todos/:id", h.Delete)
	app.Post("/api/todos/:id/toggle_complete", h.ToggleComplete)
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

func createTodo(t *testing.T, app *fiber.App, caseID uuid.UUID, title string) serializers.TodoResponse {
	t.Helper()
	var td serializers.TodoResponse
	status := do(t, app, "POST", "/api/todos/", `{"case":"`+caseID.String()+`","title":"`+title+`"}`, &td)
	if status != 201 {
		t.Fatalf("create todo: status %d", status)
	}
	return td
}

func Test_Create_CarriesCaseFields(t *testing.T) {
	db := testdb.Open(t)
	testdb.WithTx(t, db, func(tx *gorm.DB) {
		cs := testdb.SeedCase(t, tx, "C-100", models.CaseOpen)
		app := newTestApp(NewHandler(tx))

		td := createTodo(t, app, cs.ID, "Send forms")
		if td.CaseReference != "C-100" || td.CaseTitle != "Case C-100" {
			t.Fatalf("case fields: %+v", td)
		}
		if td.IsCompleted || td.CompletedAt != nil {
			t.Fatalf("new todo should be open: %+v", td)
		}

		// parent must exist
		var verr models.ValidationErrorResponse
		status := do(t, app, "POST", "/api/todos/", `{"case":"`+uuid.NewString()+`","title":"x"}`, &verr)
		if status != 400 || len(verr.Errors["case"]) == 0 {
			t.Fatalf("missing case: %d %v", status, verr.Errors)
		}
	})
}

func Test_ToggleTwice_RestoresState(t *testing.T) {
	db := testdb.Open(t)
	testdb.WithTx(t, db, func(tx *gorm.DB) {
		cs := testdb.SeedCase(t, tx, "C-101", models.CaseOpen)
		app := newTestApp(NewHandler(tx))
		td := createTodo(t, app, cs.ID, "Book room")
		path := "/api/todos/" + td.ID.String() + "/toggle_complete/"

		var first serializers.TodoResponse
		if status := do(t, app, "POST", path, "", &first); status != 200 {
			t.Fatalf("toggle: status %d", status)
		}
		if !first.IsCompleted || first.CompletedAt == nil {
			t.Fatalf("after first toggle: %+v", first)
		}

		var second serializers.TodoResponse
		do(t, app, "POST", path, "", &second)
		if second.IsCompleted || second.CompletedAt != nil {
			t.Fatalf("after second toggle: %+v", second)
		}

		var hist []models.CaseHistory
		tx.Where("case_id = ?", cs.ID).Order("created_at").Find(&hist)
		if len(hist) != 2 || hist[0].Action != models.ActionTodoCompleted || hist[1].Action != models.ActionTodoReopened {
			t.Fatalf("history: %+v", hist)
		}

		if status := do(t, app, "POST", "/api/todos/"+uuid.NewString()+"/toggle_complete/", "", nil); status != 404 {
			t.Fatalf("unknown todo: want 404, got %d", status)
		}
	})
}

func Test_Update_KeepsCompletedAtCoupled(t *testing.T) {
	db := testdb.Open(t)
	testdb.WithTx(t, db, func(tx *gorm.DB) {
		cs := testdb.SeedCase(t, tx, "C-102", models.CaseOpen)
		app := newTestApp(NewHandler(tx))
		td := createTodo(t, app, cs.ID, "Draft MoU")
		path := "/api/todos/" + td.ID.String() + "/"

		var got serializers.TodoResponse
		do(t, app, "PATCH", path, `{"is_completed":true,"due_date":"2025-04-01"}`, &got)
		if !got.IsCompleted || got.CompletedAt == nil || got.DueDate == nil || *got.DueDate != "2025-04-01" {
			t.Fatalf("patch complete: %+v", got)
		}

		// completed_at from the client is ignored
		do(t, app, "PATCH", path, `{"is_completed":false,"completed_at":"2020-01-01T00:00:00Z","due_date":null}`, &got)
		if got.IsCompleted || got.CompletedAt != nil || got.DueDate != nil {
			t.Fatalf("patch reopen: %+v", got)
		}
		if got.Title != "Draft MoU" {
			t.Fatalf("title changed by partial update: %q", got.Title)
		}
	})
}

func Test_List_FilterByCaseAndCompletion(t *testing.T) {
	db := testdb.Open(t)
	testdb.WithTx(t, db, func(tx *gorm.DB) {
		a := testdb.SeedCase(t, tx, "C-1", models.CaseOpen)
		b := testdb.SeedCase(t, tx, "C-2", models.CaseOpen)
		app := newTestApp(NewHandler(tx))

		t1 := createTodo(t, app, a.ID, "one")
		createTodo(t, app, a.ID, "two")
		createTodo(t, app, b.ID, "three")
		do(t, app, "POST", "/api/todos/"+t1.ID.String()+"/toggle_complete/", "", nil)

		var forA []serializers.TodoResponse
		do(t, app, "GET", "/api/todos/?case="+a.ID.String(), "", &forA)
		if len(forA) != 2 {
			t.Fatalf("case filter: want 2, got %d", len(forA))
		}
		for _, td := range forA {
			if td.Case != a.ID {
				t.Fatalf("todo from another case: %+v", td)
			}
		}

		var done []serializers.TodoResponse
		do(t, app, "GET", "/api/todos/?is_completed=true", "", &done)
		if len(done) != 1 || done[0].ID != t1.ID {
			t.Fatalf("completion filter: %+v", done)
		}

		var all []serializers.TodoResponse
		do(t, app, "GET", "/api/todos/", "", &all)
		if len(all) != 3 || all[0].Title != "three" {
			t.Fatalf("want newest first across cases, got %+v", all)
		}

		if status := do(t, app, "GET", "/api/todos/?case=nope", "", nil); status != 400 {
			t.Fatalf("malformed case filter: want 400, got %d", status)
		}
	})
}

// Concurrent toggles are serialised by the row lock: an even number of
// toggles leaves the todo open.
func Test_ConcurrentToggles(t *testing.T) {
	db := testdb.Open(t)
	cs := testdb.SeedCase(t, db, "C-500", models.CaseOpen)
	app := newTestApp(NewHandler(db))
	td := createTodo(t, app, cs.ID, "Race")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest("POST", "/api/todos/"+td.ID.String()+"/toggle_complete/", nil)
			if _, err := app.Test(req, -1); err != nil {
				t.Errorf("toggle: %v", err)
			}
		}()
	}
	wg.Wait()

	var got models.Todo
	if err := db.First(&got, "id = ?", td.ID).Error; err != nil {
		t.Fatal(err)
	}
	if got.IsCompleted || got.CompletedAt != nil {
		t.Fatalf("want open after 4 toggles, got %+v", got)
	}
}
