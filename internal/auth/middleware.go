package auth

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aldoetobex/mediation-crm-backend/internal/logging"
	"github.com/aldoetobex/mediation-crm-backend/pkg/models"
)

/* ============================== JWT Claims ============================== */

const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

// Claims represents the JWT payload we issue and expect.
type Claims struct {
	Sub       string `json:"sub"`        // user ID
	TokenType string `json:"token_type"` // "access" | "refresh"
	Ver       int    `json:"ver"`        // user token version at issue time
	jwt.RegisteredClaims
}

/* ============================== JWT Helpers ============================= */

var ErrInvalidToken = errors.New("token is invalid or expired")

// Tokens signs and verifies HS256 access/refresh tokens.
type Tokens struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokens(secret string, accessTTL, refreshTTL time.Duration) *Tokens {
	return &Tokens{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// Pair is the access/refresh token pair handed to clients.
type Pair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

func (t *Tokens) issue(u *models.User, kind string, ttl time.Duration) (string, error) {
	now := t.now()
	claims := &Claims{
		Sub:       u.ID.String(),
		TokenType: kind,
		Ver:       u.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// IssueAccess signs an access token for u.
func (t *Tokens) IssueAccess(u *models.User) (string, error) {
	return t.issue(u, TokenAccess, t.accessTTL)
}

// IssuePair signs a fresh access and refresh token for u.
func (t *Tokens) IssuePair(u *models.User) (Pair, error) {
	access, err := t.issue(u, TokenAccess, t.accessTTL)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := t.issue(u, TokenRefresh, t.refreshTTL)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Access: access, Refresh: refresh}, nil
}

// Parse verifies signature, expiry and token type.
func (t *Tokens) Parse(tokenStr, wantType string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(tk *jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != wantType {
		return nil, ErrInvalidToken
	}
	if _, err := uuid.Parse(claims.Sub); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

/* ============================== Middleware ============================== */

// RequireAuth validates a Bearer access token and injects userID into the context.
func RequireAuth(tokens *Tokens) fiber.Handler {
	return func(c *fiber.Ctx) error {
		h := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(h, "Bearer ") {
			return fiber.NewError(fiber.StatusUnauthorized, "Authentication credentials were not provided.")
		}
		claims, err := tokens.Parse(strings.TrimPrefix(h, "Bearer "), TokenAccess)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Given token not valid for any token type")
		}

		c.Locals("userID", claims.Sub)
		return c.Next()
	}
}

// MustUserID reads the authenticated user ID from context or panics (programming error).
func MustUserID(c *fiber.Ctx) string {
	if v := c.Locals("userID"); v != nil {
		return v.(string)
	}
	panic(errors.New("user not in context"))
}

// ActorID returns the authenticated user as a uuid for audit rows, or nil.
func ActorID(c *fiber.Ctx) *uuid.UUID {
	v, ok := c.Locals("userID").(string)
	if !ok {
		return nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil
	}
	return &id
}

/* =========================== Error Formatting =========================== */

// httpCodeToString converts an HTTP status code to a short, stable string.
func httpCodeToString(code int) string {
	switch code {
	case fiber.StatusBadRequest:
		return "BAD_REQUEST"
	case fiber.StatusUnauthorized:
		return "UNAUTHORIZED"
	case fiber.StatusForbidden:
		return "FORBIDDEN"
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case fiber.StatusConflict:
		return "CONFLICT"
	case fiber.StatusUnprocessableEntity:
		return "UNPROCESSABLE_ENTITY"
	case fiber.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	default:
		return "INTERNAL_SERVER_ERROR"
	}
}

// NewErrorHandler returns the global Fiber error handler. Every error leaves
// the API as models.ErrorResponse; 5xx are logged with the request id.
func NewErrorHandler(log *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		msg := fiber.ErrInternalServerError.Message

		var fe *fiber.Error
		switch {
		case errors.As(err, &fe):
			code = fe.Code
			if strings.TrimSpace(fe.Message) != "" {
				msg = fe.Message
			} else {
				msg = fiber.NewError(code).Message
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			code = fiber.StatusNotFound
			msg = fiber.ErrNotFound.Message
		}

		if code >= fiber.StatusInternalServerError && log != nil {
			log.Error("request failed",
				"request_id", logging.RequestID(c),
				"method", c.Method(),
				"path", c.Path(),
				"error", err,
			)
		}

		return c.Status(code).JSON(models.ErrorResponse{
			Error:  true,
			Code:   httpCodeToString(code),
			Detail: msg,
		})
	}
}
