package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rehanbawakhan/vdetection/internal/config"
	"github.com/rehanbawakhan/vdetection/internal/database"
	"github.com/rehanbawakhan/vdetection/internal/metrics"
	"github.com/rehanbawakhan/vdetection/internal/notify"
)

const (
	defaultAlertType = "wanted_match"
	defaultStatus    = "unknown"
)

// Notifier delivers alert notifications.
type Notifier interface {
	Dispatch(ctx context.Context, e *notify.Event) bool
}

// AlertStore is what the alerts handler writes to.
type AlertStore interface {
	database.AlertStore
	database.HistoryStore
}

// AlertsHandler records detection alerts and fans out notifications
type AlertsHandler struct {
	config   *config.Config
	store    AlertStore
	notifier Notifier
	metrics  *metrics.Metrics
	log      *zap.Logger
}

// NewAlertsHandler creates a new alerts handler. notifier may be nil.
func NewAlertsHandler(cfg *config.Config, store AlertStore, notifier Notifier, m *metrics.Metrics, log *zap.Logger) *AlertsHandler {
	return &AlertsHandler{config: cfg, store: store, notifier: notifier, metrics: m, log: log}
}

type createAlertRequest struct {
	Name            json.RawMessage `json:"name"`
	AlertType       json.RawMessage `json:"alert_type"`
	Image           json.RawMessage `json:"image"`
	Confidence      json.RawMessage `json:"confidence"`
	DetectionStatus json.RawMessage `json:"detection_status"`
}

// Detection echoes an accepted alert.
type Detection struct {
	Name       string   `json:"name"`
	AlertType  string   `json:"alertType"`
	Confidence *float64 `json:"confidence"`
	Status     string   `json:"status"`
	Timestamp  string   `json:"timestamp"`
}

// AlertResponse is one stored alert.
type AlertResponse struct {
	ID              int64    `json:"id"`
	Name            string   `json:"name"`
	AlertType       string   `json:"alert_type"`
	Confidence      *float64 `json:"confidence"`
	DetectionStatus string   `json:"detection_status"`
	Timestamp       string   `json:"timestamp"`
}

// Create stores an alert and its history row, then notifies.
func (h *AlertsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAlertRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	name, _ := parseString(req.Name)
	if strings.TrimSpace(name) == "" {
		respondError(w, http.StatusBadRequest, "name required")
		return
	}

	var confidence *float64
	if !isAbsent(req.Confidence) {
		c, ok := parseUnitInterval(req.Confidence)
		if !ok {
			respondError(w, http.StatusBadRequest, "confidence must be between 0 and 1")
			return
		}
		confidence = &c
	}

	alertType, _ := parseString(req.AlertType)
	if strings.TrimSpace(alertType) == "" {
		alertType = defaultAlertType
	}
	status, _ := parseString(req.DetectionStatus)
	if status = strings.TrimSpace(status); status == "" {
		status = defaultStatus
	}
	image, _ := parseString(req.Image)

	ctx := r.Context()
	alert := &database.Alert{
		Name:            name,
		AlertType:       alertType,
		Confidence:      confidence,
		DetectionStatus: status,
	}
	if _, err := h.store.AddAlert(ctx, alert); err != nil {
		h.log.Error("failed to store alert", zap.Error(err))
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}
	if _, err := h.store.AddHistory(ctx, name, image); err != nil {
		h.log.Error("failed to store alert history", zap.Error(err))
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}
	h.metrics.RecordAlert(alertType, status)

	now := time.Now()
	if h.notifier != nil {
		h.notifier.Dispatch(ctx, notify.NewEvent(name, alertType, status, confidence, image, now))
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"ok": true,
		"detection": Detection{
			Name:       name,
			AlertType:  alertType,
			Confidence: confidence,
			Status:     status,
			Timestamp:  isoTimestamp(now),
		},
	})
}

// List returns recent alerts, newest first.
func (h *AlertsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := database.DefaultAlertLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = min(n, database.MaxAlertLimit)
		}
	}

	alerts, err := h.store.ListAlerts(r.Context(), limit)
	if err != nil {
		h.log.Error("failed to list alerts", zap.Error(err))
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}

	data := make([]AlertResponse, 0, len(alerts))
	for _, a := range alerts {
		data = append(data, AlertResponse{
			ID:              a.ID,
			Name:            a.Name,
			AlertType:       a.AlertType,
			Confidence:      a.Confidence,
			DetectionStatus: a.DetectionStatus,
			Timestamp:       a.Timestamp.UTC().Format(historyTimestampLayout),
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": data})
}
