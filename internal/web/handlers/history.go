package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rehanbawakhan/vdetection/internal/config"
	"github.com/rehanbawakhan/vdetection/internal/database"
	"github.com/rehanbawakhan/vdetection/internal/snapshot"
)

const dateLayout = "2006-01-02"

// historyTimestampLayout renders stored times as the web client expects (UTC, no millis).
const historyTimestampLayout = "2006-01-02T15:04:05Z"

// HistoryHandler handles the detection history log
type HistoryHandler struct {
	config *config.Config
	store  database.HistoryStore
	log    *zap.Logger
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(cfg *config.Config, store database.HistoryStore, log *zap.Logger) *HistoryHandler {
	return &HistoryHandler{config: cfg, store: store, log: log}
}

// HistoryResponse is one history row.
type HistoryResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Image     string `json:"image"`
	Timestamp string `json:"timestamp"`
}

type createHistoryRequest struct {
	Name  json.RawMessage `json:"name"`
	Image json.RawMessage `json:"image"`
}

// List returns history rows filtered by name substring and inclusive date range.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := database.HistoryFilter{
		Name:  strings.TrimSpace(q.Get("name")),
		From:  strings.TrimSpace(q.Get("from")),
		To:    strings.TrimSpace(q.Get("to")),
		Limit: h.config.Limits.HistoryPageSize,
	}
	for _, p := range [][2]string{{"from", filter.From}, {"to", filter.To}} {
		if p[1] == "" {
			continue
		}
		if _, err := time.Parse(dateLayout, p[1]); err != nil {
			respondError(w, http.StatusBadRequest, p[0]+" must be a date (YYYY-MM-DD)")
			return
		}
	}

	entries, err := h.store.ListHistory(r.Context(), filter)
	if err != nil {
		h.log.Error("failed to list history", zap.Error(err))
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}

	data := make([]HistoryResponse, 0, len(entries))
	for _, e := range entries {
		data = append(data, HistoryResponse{
			ID:        e.ID,
			Name:      e.Name,
			Image:     e.Image,
			Timestamp: e.Timestamp.UTC().Format(historyTimestampLayout),
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": data})
}

// Create appends a history row.
func (h *HistoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createHistoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	name, _ := parseString(req.Name)
	if strings.TrimSpace(name) == "" {
		respondError(w, http.StatusBadRequest, "name required")
		return
	}
	image, _ := parseString(req.Image)

	if _, err := h.store.AddHistory(r.Context(), name, image); err != nil {
		h.log.Error("failed to add history", zap.Error(err))
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"ok":        true,
		"timestamp": isoTimestamp(time.Now()),
	})
}

// Clear deletes all history.
func (h *HistoryHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.store.ClearHistory(r.Context()); err != nil {
		h.log.Error("failed to clear history", zap.Error(err))
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}
	respondOK(w)
}

// Thumbnail returns the snapshot of a history row as a scaled JPEG.
func (h *HistoryHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondError(w, http.StatusNotFound, "History entry not found")
		return
	}

	entry, err := h.store.GetHistory(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, "History entry not found")
		return
	}
	if err != nil {
		h.log.Error("failed to load history entry", zap.Int64("id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}
	if entry.Image == "" {
		respondError(w, http.StatusNotFound, "No image for this entry")
		return
	}

	width := h.config.Limits.ThumbnailWidth
	if s := r.URL.Query().Get("width"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			width = n
		}
	}

	img, err := snapshot.Parse(entry.Image)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "Image cannot be decoded")
		return
	}
	thumb, err := snapshot.Thumbnail(img.Data, width)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "Image cannot be decoded")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.Header().Set("Content-Length", strconv.Itoa(len(thumb)))
	w.WriteHeader(http.StatusOK)
	w.Write(thumb)
}
