package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rehanbawakhan/vdetection/internal/database/mock"
)

type settingsResponse struct {
	OK   bool         `json:"ok"`
	Data SettingsData `json:"data"`
}

func TestSettingsHandler_GetDefaults(t *testing.T) {
	handler := NewSettingsHandler(testConfig(), mock.NewStore(), testLogger)

	recorder := httptest.NewRecorder()
	handler.Get(recorder, requestWithClaims(httptest.NewRequest("GET", "/api/settings", nil), 1, "admin"))

	assertStatusCode(t, recorder, http.StatusOK)
	var resp settingsResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.Data.Threshold != 0.55 || !resp.Data.Sound || !resp.Data.Popup {
		t.Errorf("unexpected defaults: %+v", resp.Data)
	}
	if resp.Data.UpdatedAt == "" {
		t.Error("expected updatedAt to be set")
	}
}

func TestSettingsHandler_UpdateThenGet(t *testing.T) {
	store := mock.NewStore()
	store.Now = func() time.Time { return time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC) }
	handler := NewSettingsHandler(testConfig(), store, testLogger)

	recorder := httptest.NewRecorder()
	handler.UpdateSettings(recorder, requestWithClaims(
		jsonRequest("POST", "/api/settings", `{"threshold":"0.4","sound":0,"popup":"true"}`), 1, "admin"))

	assertStatusCode(t, recorder, http.StatusOK)
	var updated settingsResponse
	parseJSONResponse(t, recorder, &updated)
	if !updated.OK || updated.Data.Threshold != 0.4 || updated.Data.Sound || !updated.Data.Popup {
		t.Errorf("unexpected update response: %+v", updated)
	}

	recorder = httptest.NewRecorder()
	handler.Get(recorder, requestWithClaims(httptest.NewRequest("GET", "/api/settings", nil), 1, "admin"))

	var got settingsResponse
	parseJSONResponse(t, recorder, &got)
	if got.Data.Threshold != 0.4 || got.Data.Sound || !got.Data.Popup {
		t.Errorf("unexpected stored settings: %+v", got.Data)
	}
	if got.Data.UpdatedAt != "2024-05-01 12:30:00" {
		t.Errorf("unexpected updatedAt %q", got.Data.UpdatedAt)
	}

	recorder = httptest.NewRecorder()
	handler.Get(recorder, requestWithClaims(httptest.NewRequest("GET", "/api/settings", nil), 2, "other"))
	parseJSONResponse(t, recorder, &got)
	if got.Data.Threshold != 0.55 {
		t.Errorf("settings leaked across users: %+v", got.Data)
	}
}

func TestSettingsHandler_UpdateValidation(t *testing.T) {
	handler := NewSettingsHandler(testConfig(), mock.NewStore(), testLogger)

	bodies := []string{
		`{}`,
		`{"threshold":1.5,"sound":true,"popup":true}`,
		`{"threshold":0.5,"sound":"yes","popup":true}`,
		`{"threshold":0.5,"sound":true}`,
		`{"threshold":null,"sound":true,"popup":true}`,
	}

	for _, body := range bodies {
		recorder := httptest.NewRecorder()
		handler.UpdateSettings(recorder, requestWithClaims(jsonRequest("POST", "/api/settings", body), 1, "admin"))
		assertStatusCode(t, recorder, http.StatusBadRequest)
		assertJSONError(t, recorder, "Invalid settings body. threshold(0..1), sound(boolean), popup(boolean) are required.")

		recorder = httptest.NewRecorder()
		handler.UpdateConfig(recorder, requestWithClaims(jsonRequest("POST", "/api/config", body), 1, "admin"))
		assertStatusCode(t, recorder, http.StatusBadRequest)
		assertJSONError(t, recorder, "Invalid config body. threshold(0..1), sound(boolean), popup(boolean) are required.")
	}
}

func TestSettingsHandler_StoreErrors(t *testing.T) {
	store := mock.NewStore()
	store.GetSettingsError = errors.New("db down")
	store.UpsertSettingsErr = errors.New("db down")
	handler := NewSettingsHandler(testConfig(), store, testLogger)

	recorder := httptest.NewRecorder()
	handler.Get(recorder, requestWithClaims(httptest.NewRequest("GET", "/api/settings", nil), 1, "admin"))
	assertStatusCode(t, recorder, http.StatusInternalServerError)

	recorder = httptest.NewRecorder()
	handler.UpdateConfig(recorder, requestWithClaims(
		jsonRequest("POST", "/api/config", `{"threshold":0.5,"sound":true,"popup":false}`), 1, "admin"))
	assertStatusCode(t, recorder, http.StatusInternalServerError)
}

func TestUserThreshold(t *testing.T) {
	store := mock.NewStore()
	if got := userThreshold(t.Context(), store, 1, 0.6); got != 0.6 {
		t.Errorf("expected fallback 0.6, got %v", got)
	}

	store.GetSettingsError = errors.New("db down")
	if got := userThreshold(t.Context(), store, 1, 0.6); got != 0.6 {
		t.Errorf("expected fallback on error, got %v", got)
	}
}
