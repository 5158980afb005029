package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/rehanbawakhan/vdetection/internal/config"
	"github.com/rehanbawakhan/vdetection/internal/database"
)

// PushHandler manages Web Push subscriptions
type PushHandler struct {
	config *config.Config
	store  database.SubscriptionStore
	log    *zap.Logger
}

// NewPushHandler creates a new push handler
func NewPushHandler(cfg *config.Config, store database.SubscriptionStore, log *zap.Logger) *PushHandler {
	return &PushHandler{config: cfg, store: store, log: log}
}

type subscribeRequest struct {
	Subscription json.RawMessage `json:"subscription"`
}

// publicKey is the VAPID public key, or nil when push is not configured.
func (h *PushHandler) publicKey() *string {
	if h.config.WebPush.PublicKey == "" {
		return nil
	}
	key := h.config.WebPush.PublicKey
	return &key
}

// Subscribe stores a browser PushSubscription, replacing any with the same endpoint.
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var sub struct {
		Endpoint string `json:"endpoint"`
	}
	if isAbsent(req.Subscription) || json.Unmarshal(req.Subscription, &sub) != nil || strings.TrimSpace(sub.Endpoint) == "" {
		respondError(w, http.StatusBadRequest, "Invalid subscription")
		return
	}

	var payload bytes.Buffer
	if err := json.Compact(&payload, req.Subscription); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid subscription")
		return
	}
	if err := h.store.UpsertSubscription(r.Context(), sub.Endpoint, payload.String()); err != nil {
		h.log.Error("failed to store subscription", zap.Error(err))
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "publicKey": h.publicKey()})
}

// PublicKey returns the VAPID public key the browser subscribes with.
func (h *PushHandler) PublicKey(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"publicKey": h.publicKey()})
}
