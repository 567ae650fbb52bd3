// Package router assembles the Fiber application: middleware, public routes
// and the authenticated /api surface.
package router

import (
	"log/slog"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	fiberSwagger "github.com/gofiber/swagger"
	"gorm.io/gorm"

	_ "github.com/aldoetobex/mediation-crm-backend/docs"
	"github.com/aldoetobex/mediation-crm-backend/internal/appointments"
	"github.com/aldoetobex/mediation-crm-backend/internal/auth"
	"github.com/aldoetobex/mediation-crm-backend/internal/cases"
	"github.com/aldoetobex/mediation-crm-backend/internal/logging"
	"github.com/aldoetobex/mediation-crm-backend/internal/parties"
	"github.com/aldoetobex/mediation-crm-backend/internal/sessions"
	"github.com/aldoetobex/mediation-crm-backend/internal/todos"
)

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	DB          *gorm.DB
	Tokens      *auth.Tokens
	Log         *slog.Logger
	CORSOrigins []string
	// Swagger serves the API docs under /swagger/.
	Swagger bool
}

func New(d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "mediation-crm",
		ErrorHandler: auth.NewErrorHandler(d.Log),
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	app.Use(requestid.New())
	app.Use(logging.AccessLog(d.Log))
	app.Use(recover.New())
	app.Use(corsMiddleware(d.CORSOrigins))

	app.Get("/health", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"status": "ok"}) })
	if d.Swagger {
		app.Get("/swagger/*", fiberSwagger.HandlerDefault)
	}

	api := app.Group("/api")

	// Auth (public)
	authH := auth.NewHandler(d.DB, d.Tokens)
	api.Post("/auth/jwt/create", authH.TokenCreate)
	api.Post("/auth/jwt/refresh", authH.TokenRefresh)
	api.Get("/auth/login", authH.LoginInfo)

	// Everything below requires a valid access token
	protected := api.Group("", auth.RequireAuth(d.Tokens))
	protected.Post("/auth/change-password", authH.ChangePassword)

	// Cases (export before :id so it is not taken for an id)
	caseH := cases.NewHandler(d.DB)
	protected.Get("/cases", caseH.List)
	protected.Post("/cases", caseH.Create)
	protected.Get("/cases/export", caseH.Export)
	protected.Get("/cases/:id", caseH.Get)
	protected.Put("/cases/:id", caseH.Update)
	protected.Patch("/cases/:id", caseH.Update)
	protected.Delete("/cases/:id", caseH.Delete)
	protected.Get("/cases/:id/history", caseH.History)

	crud(protected, "/parties", parties.NewHandler(d.DB))
	crud(protected, "/sessions", sessions.NewHandler(d.DB))

	todoH := todos.NewHandler(d.DB)
	crud(protected, "/todos", todoH)
	protected.Post("/todos/:id/toggle_complete", todoH.ToggleComplete)

	crud(protected, "/appointments", appointments.NewHandler(d.DB))

	return app
}

// resource is the handler set behind a plain CRUD collection.
type resource interface {
	List(*fiber.Ctx) error
	Create(*fiber.Ctx) error
	Get(*fiber.Ctx) error
	Update(*fiber.Ctx) error
	Delete(*fiber.Ctx) error
}

func crud(r fiber.Router, prefix string, h resource) {
	r.Get(prefix, h.List)
	r.Post(prefix, h.Create)
	r.Get(prefix+"/:id", h.Get)
	r.Put(prefix+"/:id", h.Update)
	r.Patch(prefix+"/:id", h.Update)
	r.Delete(prefix+"/:id", h.Delete)
}

func corsMiddleware(origins []string) fiber.Handler {
	cfg := cors.Config{
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	}
	var clean []string
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			clean = append(clean, o)
		}
	}
	// Credentials cannot be combined with a wildcard origin.
	if len(clean) > 0 {
		cfg.AllowOrigins = strings.Join(clean, ",")
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}
