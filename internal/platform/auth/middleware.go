package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	WorkerIDKey  contextKey = "worker_id"
	UserRolesKey contextKey = "user_roles"
)

// devWorkerID is the identity assumed for unauthenticated dev requests.
var devWorkerID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
}

type JWTConfig struct {
	Issuer   string
	Audience string
	// SigningKey is the HMAC secret tokens are verified against.
	SigningKey []byte
}

func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			tokenStr := parts[1]
			claims := &Claims{}

			opts := []jwt.ParserOption{
				jwt.WithValidMethods([]string{"HS256"}),
			}
			if cfg.Issuer != "" {
				opts = append(opts, jwt.WithIssuer(cfg.Issuer))
			}
			if cfg.Audience != "" {
				opts = append(opts, jwt.WithAudience(cfg.Audience))
			}

			token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
				return cfg.SigningKey, nil
			}, opts...)
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			workerID, err := uuid.Parse(claims.Subject)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "token subject is not a valid worker id")
			}

			ctx := c.Request().Context()
			ctx = context.WithValue(ctx, WorkerIDKey, workerID)
			ctx = context.WithValue(ctx, UserRolesKey, claims.Roles)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// DevAuthMiddleware is a permissive middleware for development that allows
// unauthenticated requests. The X-Worker-ID header selects the acting worker;
// without it a fixed dev identity with the admin role is assumed.
func DevAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			workerID := devWorkerID
			if hdr := c.Request().Header.Get("X-Worker-ID"); hdr != "" {
				id, err := uuid.Parse(hdr)
				if err != nil {
					return echo.NewHTTPError(http.StatusBadRequest, "invalid X-Worker-ID header")
				}
				workerID = id
			}

			roles := []string{"admin", "technician"}
			if hdr := c.Request().Header.Get("X-Roles"); hdr != "" {
				roles = strings.Split(hdr, ",")
			}

			ctx := c.Request().Context()
			ctx = context.WithValue(ctx, WorkerIDKey, workerID)
			ctx = context.WithValue(ctx, UserRolesKey, roles)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// WorkerIDFromContext returns the authenticated worker's id.
func WorkerIDFromContext(c echo.Context) (uuid.UUID, error) {
	id, ok := c.Request().Context().Value(WorkerIDKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "no worker identity")
	}
	return id, nil
}

func RolesFromContext(ctx context.Context) []string {
	roles, _ := ctx.Value(UserRolesKey).([]string)
	return roles
}

// HasRole reports whether the authenticated caller carries the given role.
func HasRole(c echo.Context, role string) bool {
	for _, r := range RolesFromContext(c.Request().Context()) {
		if r == role {
			return true
		}
	}
	return false
}
