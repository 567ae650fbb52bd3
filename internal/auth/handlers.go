package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aldoetobex/mediation-crm-backend/pkg/models"
	"github.com/aldoetobex/mediation-crm-backend/pkg/validation"
)

/* ================================ DTOs ================================= */

// TokenObtainRequest is the body for /auth/jwt/create/. Username may also be
// the account email.
type TokenObtainRequest struct {
	Username string `json:"username" validate:"required,max=254"`
	Password string `json:"password" validate:"required"`
}

// TokenRefreshRequest is the body for /auth/jwt/refresh/.
type TokenRefreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

type TokenRefreshResponse struct {
	Access string `json:"access"`
}

// ChangePasswordRequest is the body for /auth/change-password/.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type ChangePasswordResponse struct {
	Detail  string `json:"detail"`
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type DetailResponse struct {
	Detail string `json:"detail"`
}

// bcrypt only hashes the first 72 bytes and refuses longer input.
const maxPasswordBytes = 72

const msgPasswordTooLong = "Ensure the new password has no more than 72 bytes"

/* ============================== Handler ================================= */

type Handler struct {
	db     *gorm.DB
	tokens *Tokens
}

func NewHandler(db *gorm.DB, tokens *Tokens) *Handler {
	return &Handler{db: db, tokens: tokens}
}

/* ============================ Token create ============================== */

// @Summary      Obtain token pair
// @Description  Exchange username (or email) and password for access + refresh tokens
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body  TokenObtainRequest  true  "Credentials"
// @Success      200      {object}  Pair
// @Failure      400      {object}  models.ValidationErrorResponse
// @Failure      401      {object}  models.ErrorResponse
// @Router       /auth/jwt/create/ [post]
func (h *Handler) TokenCreate(c *fiber.Ctx) error {
	var in TokenObtainRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	in.Username = strings.TrimSpace(in.Username)
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	// Find user by username or email
	var u models.User
	err := h.db.WithContext(c.UserContext()).
		Where("username = ? OR LOWER(email) = ?", in.Username, strings.ToLower(in.Username)).
		First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errNoActiveAccount
		}
		return err
	}

	// Verify password
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)) != nil {
		return errNoActiveAccount
	}

	pair, err := h.tokens.IssuePair(&u)
	if err != nil {
		return err
	}
	return c.JSON(pair)
}

var errNoActiveAccount = fiber.NewError(fiber.StatusUnauthorized, "No active account found with the given credentials")

/* ============================ Token refresh ============================= */

// @Summary      Refresh access token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body  TokenRefreshRequest  true  "Refresh token"
// @Success      200      {object}  TokenRefreshResponse
// @Failure      400      {object}  models.ValidationErrorResponse
// @Failure      401      {object}  models.ErrorResponse
// @Router       /auth/jwt/refresh/ [post]
func (h *Handler) TokenRefresh(c *fiber.Ctx) error {
	var in TokenRefreshRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	claims, err := h.tokens.Parse(in.Refresh, TokenRefresh)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "Token is invalid or expired")
	}

	// A password change bumps the version and retires older refresh tokens.
	var u models.User
	if err := h.db.WithContext(c.UserContext()).First(&u, "id = ?", claims.Sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusUnauthorized, "Token is invalid or expired")
		}
		return err
	}
	if u.TokenVersion != claims.Ver {
		return fiber.NewError(fiber.StatusUnauthorized, "Token is invalid or expired")
	}

	access, err := h.tokens.IssueAccess(&u)
	if err != nil {
		return err
	}
	return c.JSON(TokenRefreshResponse{Access: access})
}

/* ================================ Login ================================= */

// @Summary      Login hint
// @Description  Public diagnostic endpoint pointing clients at the token endpoint
// @Tags         auth
// @Produce      json
// @Success      200  {object}  DetailResponse
// @Router       /auth/login/ [get]
func (h *Handler) LoginInfo(c *fiber.Ctx) error {
	return c.JSON(DetailResponse{Detail: "Use /api/auth/jwt/create/ with username + password"})
}

/* =========================== Change password ============================ */

// @Summary      Change password
// @Description  Verify the current password, store the new one and rotate tokens
// @Tags         auth
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  ChangePasswordRequest  true  "Old and new password"
// @Success      200  {object}  ChangePasswordResponse
// @Failure      400  {object}  models.ErrorResponse
// @Failure      401  {object}  models.ErrorResponse
// @Router       /auth/change-password/ [post]
func (h *Handler) ChangePassword(c *fiber.Ctx) error {
	userID := MustUserID(c)

	var in ChangePasswordRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if in.OldPassword == "" || in.NewPassword == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Both old and new password are required")
	}
	if len(in.NewPassword) > maxPasswordBytes {
		return fiber.NewError(fiber.StatusBadRequest, msgPasswordTooLong)
	}

	var (
		u       models.User
		respErr error
	)
	err := h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&u, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				respErr = fiber.ErrUnauthorized
				return nil
			}
			return err
		}
		if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.OldPassword)) != nil {
			respErr = fiber.NewError(fiber.StatusBadRequest, "Current password is incorrect")
			return nil
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		u.PasswordHash = string(hash)
		u.TokenVersion++
		return tx.Model(&u).Updates(map[string]any{
			"password_hash": u.PasswordHash,
			"token_version": u.TokenVersion,
		}).Error
	})
	if err != nil {
		return err
	}
	if respErr != nil {
		return respErr
	}

	// Keep the caller signed in with tokens bound to the new version.
	pair, err := h.tokens.IssuePair(&u)
	if err != nil {
		return err
	}
	return c.JSON(ChangePasswordResponse{
		Detail:  "Password changed successfully",
		Access:  pair.Access,
		Refresh: pair.Refresh,
	})
}

/* =============================== Bootstrap =============================== */

// EnsureUser creates the account when no user with that username exists.
// An existing account is left untouched. It reports whether a user was created.
func EnsureUser(ctx context.Context, db *gorm.DB, username, email, password string) (bool, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return false, errors.New("username and password are required")
	}
	if len(password) > maxPasswordBytes {
		return false, fmt.Errorf("password exceeds %d bytes", maxPasswordBytes)
	}

	var existing models.User
	err := db.WithContext(ctx).Where("username = ?", username).First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}
	u := models.User{
		TimeStamped:  models.TimeStamped{ID: uuid.New()},
		Username:     username,
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: string(hash),
	}
	if err := db.WithContext(ctx).Create(&u).Error; err != nil {
		return false, fmt.Errorf("create user: %w", err)
	}
	return true, nil
}
