package middleware

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront/internal/apperr"
	"storefront/internal/auth"
	"storefront/internal/models"
	"storefront/internal/store"
)

// Context keys set on the gin context.
const (
	UserIDKey  = "userID"
	ProfileKey = "profile"
)

// ProfileGetter looks up a caller's profile for role checks.
type ProfileGetter interface {
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
}

func abort(c *gin.Context, kind apperr.Kind, msg string) {
	c.AbortWithStatusJSON(apperr.HTTPStatus(kind), gin.H{"error": kind, "message": msg})
}

// Authenticate resolves the bearer token into an identity carried on the
// request context. With required unset, anonymous requests pass through, but
// a bad token is still rejected.
func Authenticate(resolver auth.Resolver, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			if required {
				abort(c, apperr.AuthenticationRequired, "Authorization header required")
				return
			}
			c.Next()
			return
		}

		// Check if it's a Bearer token
		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			slog.DebugContext(c.Request.Context(), "auth header format is not Bearer")
			abort(c, apperr.AuthenticationRequired, "Invalid authorization header format")
			return
		}

		id, err := resolver.Resolve(c.Request.Context(), parts[1])
		if err != nil {
			slog.InfoContext(c.Request.Context(), "session token rejected", "error", err)
			abort(c, apperr.AuthenticationRequired, "Invalid or expired token")
			return
		}

		c.Set(UserIDKey, id.UserID)
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

// RequireAdmin lets through callers whose profile has the admin role. It must
// run after Authenticate.
func RequireAdmin(profiles ProfileGetter) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := auth.FromContext(c.Request.Context())
		if !ok {
			abort(c, apperr.AuthenticationRequired, "Please sign in.")
			return
		}

		profile, err := profiles.GetProfile(c.Request.Context(), id.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				abort(c, apperr.AuthorizationDenied, "Admin access required.")
				return
			}
			slog.ErrorContext(c.Request.Context(), "failed to load profile for role check", "user_id", id.UserID, "error", err)
			abort(c, apperr.Internal, "Server error.")
			return
		}
		if !profile.IsAdmin() {
			slog.WarnContext(c.Request.Context(), "admin route denied", "user_id", id.UserID, "path", c.FullPath())
			abort(c, apperr.AuthorizationDenied, "Admin access required.")
			return
		}

		c.Set(ProfileKey, profile)
		c.Next()
	}
}

// TokenFromQuery copies a token passed as a query parameter into the
// Authorization header. Browsers cannot set headers on websocket upgrades.
func TokenFromQuery(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			if t := c.Query(param); t != "" {
				c.Request.Header.Set("Authorization", "Bearer "+t)
			}
		}
		c.Next()
	}
}
