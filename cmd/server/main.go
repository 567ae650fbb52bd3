// @title           Mediation CRM API
// @version         1.0
// @description     Case management backend for a family mediation practice: cases, parties, sessions, todos and appointments behind JWT auth.
// @contact.name    Aldo Rifki Putra
// @contact.email   aldoetobex@gmail.com
// @BasePath        /api
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
// @description     Format: Bearer <token>
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aldoetobex/mediation-crm-backend/internal/auth"
	"github.com/aldoetobex/mediation-crm-backend/internal/config"
	"github.com/aldoetobex/mediation-crm-backend/internal/logging"
	"github.com/aldoetobex/mediation-crm-backend/internal/router"
	"github.com/aldoetobex/mediation-crm-backend/pkg/database"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.NewLogger("mediation-crm", slog.LevelInfo).Error("config", "error", err)
		os.Exit(1)
	}
	log := logging.NewLogger("mediation-crm", cfg.SlogLevel())

	db, err := database.Init(cfg.DatabaseURL, log)
	if err != nil {
		log.Error("database connect failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}

	if cfg.AdminUsername != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		created, err := auth.EnsureUser(ctx, db, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword)
		cancel()
		if err != nil {
			log.Error("admin bootstrap failed", "error", err)
			os.Exit(1)
		}
		if created {
			log.Info("admin user created", "username", cfg.AdminUsername)
		}
	}

	app := router.New(router.Deps{
		DB:          db,
		Tokens:      auth.NewTokens(cfg.JWTSecret, cfg.AccessTTL, cfg.RefreshTTL),
		Log:         log,
		CORSOrigins: cfg.CORSOrigins,
		Swagger:     cfg.IsDev(),
	})

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
		log.Info("shutting down")
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	log.Info("server running", "port", cfg.Port, "env", cfg.AppEnv)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
