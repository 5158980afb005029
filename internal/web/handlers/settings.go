package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/rehanbawakhan/vdetection/internal/config"
	"github.com/rehanbawakhan/vdetection/internal/database"
)

// SettingsHandler serves the per-user detection settings, under both
// /api/settings and the older /api/config path.
type SettingsHandler struct {
	config *config.Config
	store  database.SettingsStore
	log    *zap.Logger
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(cfg *config.Config, store database.SettingsStore, log *zap.Logger) *SettingsHandler {
	return &SettingsHandler{config: cfg, store: store, log: log}
}

// SettingsData is the client view of a settings row.
type SettingsData struct {
	Threshold float64 `json:"threshold"`
	Sound     bool    `json:"sound"`
	Popup     bool    `json:"popup"`
	UpdatedAt string  `json:"updatedAt"`
}

type settingsRequest struct {
	Threshold json.RawMessage `json:"threshold"`
	Sound     json.RawMessage `json:"sound"`
	Popup     json.RawMessage `json:"popup"`
}

// Get returns the caller's settings, or the defaults when none are stored.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.GetSettings(r.Context(), claimsFrom(r).UserID())
	if errors.Is(err, database.ErrNotFound) {
		respondJSON(w, http.StatusOK, map[string]any{"data": SettingsData{
			Threshold: h.config.Matcher.DefaultThreshold,
			Sound:     true,
			Popup:     true,
			UpdatedAt: isoTimestamp(time.Now()),
		}})
		return
	}
	if err != nil {
		h.log.Error("failed to load settings", zap.Error(err))
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": SettingsData{
		Threshold: settings.Threshold,
		Sound:     settings.SoundAlert,
		Popup:     settings.PushNotifications,
		UpdatedAt: database.FormatTimestamp(settings.UpdatedAt),
	}})
}

// UpdateSettings handles POST /api/settings.
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, "Invalid settings body. threshold(0..1), sound(boolean), popup(boolean) are required.")
}

// UpdateConfig handles POST /api/config.
func (h *SettingsHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, "Invalid config body. threshold(0..1), sound(boolean), popup(boolean) are required.")
}

func (h *SettingsHandler) update(w http.ResponseWriter, r *http.Request, invalidMessage string) {
	var req settingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	threshold, okThreshold := parseUnitInterval(req.Threshold)
	sound, okSound := parseLooseBool(req.Sound)
	popup, okPopup := parseLooseBool(req.Popup)
	if !okThreshold || !okSound || !okPopup {
		respondError(w, http.StatusBadRequest, invalidMessage)
		return
	}

	settings := &database.UserSettings{
		UserID:            claimsFrom(r).UserID(),
		Threshold:         threshold,
		SoundAlert:        sound,
		PushNotifications: popup,
	}
	if err := h.store.UpsertSettings(r.Context(), settings); err != nil {
		h.log.Error("failed to save settings", zap.Error(err))
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"data": SettingsData{
			Threshold: threshold,
			Sound:     sound,
			Popup:     popup,
			UpdatedAt: isoTimestamp(time.Now()),
		},
	})
}

// userThreshold returns the user's saved match threshold or the default.
func userThreshold(ctx context.Context, store database.SettingsStore, userID int64, fallback float64) float64 {
	settings, err := store.GetSettings(ctx, userID)
	if err != nil || settings == nil {
		return fallback
	}
	return settings.Threshold
}
