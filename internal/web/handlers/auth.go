package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/rehanbawakhan/vdetection/internal/config"
	"github.com/rehanbawakhan/vdetection/internal/database"
	"github.com/rehanbawakhan/vdetection/internal/facematch"
	"github.com/rehanbawakhan/vdetection/internal/web/middleware"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	config *config.Config
	store  database.Store
	tokens *middleware.TokenManager
	log    *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(cfg *config.Config, store database.Store, tm *middleware.TokenManager, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		config: cfg,
		store:  store,
		tokens: tm,
		log:    log,
	}
}

type loginRequest struct {
	Username json.RawMessage `json:"username"`
	Password json.RawMessage `json:"password"`
}

type faceLoginRequest struct {
	Username   json.RawMessage `json:"username"`
	Descriptor json.RawMessage `json:"descriptor"`
}

type pinRequest struct {
	PIN json.RawMessage `json:"pin"`
}

// AuthResponse is returned by login endpoints and /me.
type AuthResponse struct {
	OK       bool   `json:"ok"`
	Username string `json:"username"`
}

// Login verifies username and password and sets the token cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	username, _ := parseString(req.Username)
	password, _ := parseString(req.Password)
	if username == "" || password == "" {
		respondError(w, http.StatusBadRequest, "username and password required")
		return
	}

	user, err := h.store.GetUserByUsername(r.Context(), username)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		h.log.Error("failed to load user", zap.String("username", sanitizeForLog(username)), zap.Error(err))
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	h.issue(w, user)
}

// FaceLogin signs a user in when the submitted descriptor matches one of the
// known faces registered under the user's name.
func (h *AuthHandler) FaceLogin(w http.ResponseWriter, r *http.Request) {
	var req faceLoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	username, ok := parseString(req.Username)
	if !ok || strings.TrimSpace(username) == "" {
		username = h.config.Auth.AdminUser
	}
	username = strings.TrimSpace(username)
	if username == "" {
		respondError(w, http.StatusBadRequest, "username required")
		return
	}

	ctx := r.Context()
	user, err := h.store.GetUserByUsername(ctx, username)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusUnauthorized, "User not found")
		return
	}
	if err != nil {
		h.log.Error("failed to load user", zap.String("username", sanitizeForLog(username)), zap.Error(err))
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}

	if isAbsent(req.Descriptor) {
		respondError(w, http.StatusBadRequest, "descriptor required")
		return
	}
	descriptor, err := facematch.ParseDescriptor(req.Descriptor)
	if err != nil {
		respondError(w, http.StatusBadRequest, "descriptor must be JSON array")
		return
	}

	faces, err := h.store.GetFacesByName(ctx, user.Username)
	if err != nil {
		h.log.Error("failed to load faces for face login", zap.Error(err))
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}
	threshold := userThreshold(ctx, h.store, user.ID, h.config.Matcher.DefaultThreshold)
	if result := database.MatchAgainst(descriptor, faces, threshold); !result.Matched {
		h.log.Info("face login rejected",
			zap.String("username", user.Username),
			zap.Float64("distance", result.Distance))
		respondError(w, http.StatusUnauthorized, "Face not recognized")
		return
	}

	h.issue(w, user)
}

func (h *AuthHandler) issue(w http.ResponseWriter, user *database.User) {
	token, _, err := h.tokens.Issue(user.ID, user.Username)
	if err != nil {
		h.log.Error("failed to issue token", zap.Error(err))
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}
	h.tokens.SetCookie(w, token)
	respondJSON(w, http.StatusOK, AuthResponse{OK: true, Username: user.Username})
}

// Logout revokes the current token and clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.tokens.Revoke(middleware.GetClaimsFromContext(r.Context()))
	h.tokens.ClearCookie(w)
	respondOK(w)
}

// Me returns the authenticated username.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, AuthResponse{OK: true, Username: claimsFrom(r).Username})
}

// VerifyPIN checks the second-factor PIN of the authenticated user.
func (h *AuthHandler) VerifyPIN(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	pin, _ := parseString(req.PIN)
	if strings.TrimSpace(pin) == "" {
		respondError(w, http.StatusBadRequest, "pin required")
		return
	}

	user, err := h.store.GetUserByUsername(r.Context(), claimsFrom(r).Username)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusUnauthorized, "Invalid token")
		return
	}
	if err != nil {
		h.log.Error("failed to load user for pin check", zap.Error(err))
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PINHash), []byte(pin)) != nil {
		respondError(w, http.StatusUnauthorized, "Invalid PIN")
		return
	}
	respondOK(w)
}
