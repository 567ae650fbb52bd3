// Package testdb holds the Postgres fixtures shared by handler tests.
package testdb

import (
	"os"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/aldoetobex/mediation-crm-backend/pkg/database"
	"github.com/aldoetobex/mediation-crm-backend/pkg/models"
)

// Open connects to TEST_DATABASE_URL, runs migrations and truncates every
// table after the test. The test is skipped when no database is configured.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	_ = godotenv.Load()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is empty")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	// Truncate AFTER each test (data survives within a single test).
	t.Cleanup(func() {
		sql := `
TRUNCATE TABLE
	case_histories,
	appointments,
	todos,
	sessions,
	parties,
	cases,
	users
RESTART IDENTITY CASCADE`
		if err := db.Exec(sql).Error; err != nil {
			t.Logf("truncate failed (ignored): %v", err)
		}
	})
	return db
}

// WithTx wraps fn in a transaction and commits it at the end.
// If fn panics, the transaction is rolled back and the panic is rethrown.
func WithTx(t *testing.T, db *gorm.DB, fn func(tx *gorm.DB)) {
	t.Helper()
	tx := db.Begin()
	if tx.Error != nil {
		t.Fatalf("begin tx: %v", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	fn(tx)
	if err := tx.Commit().Error; err != nil {
		t.Fatalf("commit tx: %v", err)
	}
}

// InjectAuth stands in for RequireAuth: it sets the user id the handlers read.
func InjectAuth(userID uuid.UUID) fiber.Handler {
	id := userID.String()
	return func(c *fiber.Ctx) error {
		c.Locals("userID", id)
		return c.Next()
	}
}

// SeedCase inserts a case with the given reference and status.
func SeedCase(t *testing.T, tx *gorm.DB, ref string, status models.CaseStatus) models.Case {
	t.Helper()
	cs := models.Case{
		Reference: ref,
		Title:     "Case " + ref,
		Status:    status,
	}
	if err := tx.Create(&cs).Error; err != nil {
		t.Fatalf("seed case: %v", err)
	}
	return cs
}

// SeedCaseAt is SeedCase with a fixed creation time, for ordering checks.
func SeedCaseAt(t *testing.T, tx *gorm.DB, ref string, createdAt time.Time) models.Case {
	t.Helper()
	cs := models.Case{
		TimeStamped: models.TimeStamped{CreatedAt: createdAt, UpdatedAt: createdAt},
		Reference:   ref,
		Title:       "Case " + ref,
		Status:      models.CaseEnquiry,
	}
	if err := tx.Create(&cs).Error; err != nil {
		t.Fatalf("seed case: %v", err)
	}
	return cs
}
