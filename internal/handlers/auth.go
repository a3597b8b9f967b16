package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"storefront/internal/apperr"
	"storefront/internal/auth"
	"storefront/internal/models"
	"storefront/internal/store"
)

// ProfileStore is what account handlers read and write.
type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error)
	CreateProfile(ctx context.Context, p models.Profile) (*models.Profile, error)
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(userID, email string) (string, error)
}

// AuthHandler serves local accounts.
type AuthHandler struct {
	Profiles ProfileStore
	Tokens   TokenIssuer
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(profiles ProfileStore, tokens TokenIssuer) *AuthHandler {
	return &AuthHandler{Profiles: profiles, Tokens: tokens}
}

// RegisterRequest defines the JSON struct we expect from the client
type RegisterRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"display_name"`
}

// Register creates a customer account and signs the caller in.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	// We MUST NOT store the plain-text password
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(c, apperr.E(apperr.Internal, "handlers.Register", "", err))
		return
	}

	p := models.Profile{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Role:         models.RoleCustomer,
		PasswordHash: &hash,
	}
	if req.DisplayName != "" {
		p.DisplayName = &req.DisplayName
	}

	profile, err := h.Profiles.CreateProfile(c.Request.Context(), p)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			respondError(c, apperr.E(apperr.Conflict, "handlers.Register", "Email is already in use.", err))
			return
		}
		respondError(c, apperr.E(apperr.Internal, "handlers.Register", "", err))
		return
	}

	token, err := h.Tokens.Issue(profile.ID, profile.Email)
	if err != nil {
		respondError(c, apperr.E(apperr.Internal, "handlers.Register", "", err))
		return
	}

	slog.InfoContext(c.Request.Context(), "account registered", "user_id", profile.ID)
	c.JSON(http.StatusCreated, gin.H{"token": token, "profile": profile})
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	invalid := apperr.E(apperr.AuthenticationRequired, "handlers.Login", "Invalid email or password.", nil)

	profile, err := h.Profiles.GetProfileByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(c, invalid)
			return
		}
		respondError(c, apperr.E(apperr.Internal, "handlers.Login", "", err))
		return
	}

	// Compare stored passwordHash with the user entered password
	if profile.PasswordHash == nil || !auth.CheckPassword(*profile.PasswordHash, req.Password) {
		respondError(c, invalid)
		return
	}

	token, err := h.Tokens.Issue(profile.ID, profile.Email)
	if err != nil {
		respondError(c, apperr.E(apperr.Internal, "handlers.Login", "", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Login successful.", "token": token})
}

// Me returns the caller's profile.
func (h *AuthHandler) Me(c *gin.Context) {
	id, ok := auth.FromContext(c.Request.Context())
	if !ok {
		respondError(c, apperr.E(apperr.AuthenticationRequired, "handlers.Me", "Please sign in.", nil))
		return
	}

	profile, err := h.Profiles.GetProfile(c.Request.Context(), id.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Remote identities get a profile on first purchase.
			c.JSON(http.StatusOK, models.Profile{ID: id.UserID, Email: id.Email, Role: models.RoleCustomer})
			return
		}
		respondError(c, apperr.E(apperr.Internal, "handlers.Me", "", err))
		return
	}
	c.JSON(http.StatusOK, profile)
}
