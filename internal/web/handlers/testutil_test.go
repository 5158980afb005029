package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/rehanbawakhan/vdetection/internal/config"
	"github.com/rehanbawakhan/vdetection/internal/database"
	"github.com/rehanbawakhan/vdetection/internal/database/mock"
	"github.com/rehanbawakhan/vdetection/internal/metrics"
	"github.com/rehanbawakhan/vdetection/internal/web/middleware"
)

// testMetrics creates a fresh metrics registry.
func testMetrics(t *testing.T) *metrics.Metrics {
	t.Helper()
	m, err := metrics.New()
	if err != nil {
		t.Fatalf("metrics.New() error: %v", err)
	}
	return m
}

// testConfig creates a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			JWTSecret: "test-secret",
			TokenTTL:  time.Hour,
			AdminUser: "admin",
		},
		Matcher: config.MatcherConfig{DefaultThreshold: 0.55},
		Limits: config.LimitsConfig{
			ThumbnailWidth:  160,
			HistoryPageSize: 300,
		},
	}
}

var testLogger = zap.NewNop()

// seedUser stores a user with the given password and PIN (low bcrypt cost).
func seedUser(t *testing.T, store *mock.Store, username, password, pin string) *database.User {
	t.Helper()
	pw, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	ph, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing pin: %v", err)
	}
	user := &database.User{Username: username, PasswordHash: string(pw), PINHash: string(ph)}
	id, err := store.CreateUser(context.Background(), user)
	if err != nil {
		t.Fatalf("creating user: %v", err)
	}
	user.ID = id
	return user
}

// jsonRequest builds a request with a JSON body.
func jsonRequest(method, path, body string) *http.Request {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// requestWithClaims adds authenticated claims to the request context
func requestWithClaims(r *http.Request, userID int64, username string) *http.Request {
	claims := &middleware.Claims{Username: username}
	claims.Subject = strconv.FormatInt(userID, 10)
	return r.WithContext(middleware.SetClaimsInContext(r.Context(), claims))
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["message"] != expectedMessage {
		t.Errorf("expected message '%s', got '%s'", expectedMessage, result["message"])
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
