package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rehanbawakhan/vdetection/internal/database"
	"github.com/rehanbawakhan/vdetection/internal/database/mock"
	"github.com/rehanbawakhan/vdetection/internal/web/middleware"
)

func newAuthHandler(t *testing.T) (*AuthHandler, *mock.Store, *middleware.TokenManager) {
	t.Helper()
	cfg := testConfig()
	store := mock.NewStore()
	tm := middleware.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, false)
	return NewAuthHandler(cfg, store, tm, testLogger), store, tm
}

func tokenCookie(t *testing.T, recorder *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range recorder.Result().Cookies() {
		if c.Name == middleware.CookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie set", middleware.CookieName)
	return nil
}

func TestAuthHandler_Login(t *testing.T) {
	handler, store, tm := newAuthHandler(t)
	seedUser(t, store, "admin", "admin123", "1234")

	recorder := httptest.NewRecorder()
	handler.Login(recorder, jsonRequest("POST", "/api/auth/login", `{"username":"admin","password":"admin123"}`))

	assertStatusCode(t, recorder, http.StatusOK)
	assertContentType(t, recorder, "application/json")

	var resp AuthResponse
	parseJSONResponse(t, recorder, &resp)
	if !resp.OK || resp.Username != "admin" {
		t.Errorf("unexpected response: %+v", resp)
	}

	cookie := tokenCookie(t, recorder)
	if !cookie.HttpOnly {
		t.Error("token cookie should be HttpOnly")
	}
	claims, err := tm.Parse(cookie.Value)
	if err != nil {
		t.Fatalf("cookie token does not parse: %v", err)
	}
	if claims.Username != "admin" {
		t.Errorf("expected username claim 'admin', got %q", claims.Username)
	}
}

func TestAuthHandler_LoginErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{"invalid json", `{bad`, http.StatusBadRequest, "Invalid request body"},
		{"empty body", ``, http.StatusBadRequest, "username and password required"},
		{"missing password", `{"username":"admin"}`, http.StatusBadRequest, "username and password required"},
		{"unknown user", `{"username":"ghost","password":"x"}`, http.StatusUnauthorized, "Invalid credentials"},
		{"wrong password", `{"username":"admin","password":"nope"}`, http.StatusUnauthorized, "Invalid credentials"},
	}

	handler, store, _ := newAuthHandler(t)
	seedUser(t, store, "admin", "admin123", "1234")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			handler.Login(recorder, jsonRequest("POST", "/api/auth/login", tt.body))

			assertStatusCode(t, recorder, tt.status)
			assertJSONError(t, recorder, tt.message)
			if len(recorder.Result().Cookies()) != 0 {
				t.Error("no cookie should be set on failure")
			}
		})
	}
}

func TestAuthHandler_LoginStoreError(t *testing.T) {
	handler, store, _ := newAuthHandler(t)
	store.GetUserError = errors.New("db down")

	recorder := httptest.NewRecorder()
	handler.Login(recorder, jsonRequest("POST", "/api/auth/login", `{"username":"admin","password":"admin123"}`))

	assertStatusCode(t, recorder, http.StatusInternalServerError)
	assertJSONError(t, recorder, "Internal server error")
}

func TestAuthHandler_FaceLogin(t *testing.T) {
	handler, store, _ := newAuthHandler(t)
	seedUser(t, store, "admin", "admin123", "1234")
	store.AddFace(database.KnownFace{Name: "Admin", Encoding: []float32{0.1, 0.2, 0.3}})

	t.Run("matching descriptor defaults to admin", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		handler.FaceLogin(recorder, jsonRequest("POST", "/api/auth/face-login", `{"descriptor":[0.1,0.2,0.35]}`))

		assertStatusCode(t, recorder, http.StatusOK)
		var resp AuthResponse
		parseJSONResponse(t, recorder, &resp)
		if resp.Username != "admin" {
			t.Errorf("expected admin, got %q", resp.Username)
		}
		tokenCookie(t, recorder)
	})

	t.Run("distant descriptor", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		handler.FaceLogin(recorder, jsonRequest("POST", "/api/auth/face-login", `{"descriptor":[0.9,0.9,0.9]}`))

		assertStatusCode(t, recorder, http.StatusUnauthorized)
		assertJSONError(t, recorder, "Face not recognized")
	})

	t.Run("stricter saved threshold", func(t *testing.T) {
		user, _ := store.GetUserByUsername(t.Context(), "admin")
		store.UpsertSettings(t.Context(), &database.UserSettings{UserID: user.ID, Threshold: 0.01})
		defer store.UpsertSettings(t.Context(), &database.UserSettings{UserID: user.ID, Threshold: 0.55})

		recorder := httptest.NewRecorder()
		handler.FaceLogin(recorder, jsonRequest("POST", "/api/auth/face-login", `{"descriptor":[0.1,0.2,0.35]}`))

		assertStatusCode(t, recorder, http.StatusUnauthorized)
	})
}

func TestAuthHandler_FaceLoginErrors(t *testing.T) {
	handler, store, _ := newAuthHandler(t)
	seedUser(t, store, "admin", "admin123", "1234")

	tests := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{"unknown user", `{"username":"ghost","descriptor":[0.1]}`, http.StatusUnauthorized, "User not found"},
		{"missing descriptor", `{"username":"admin"}`, http.StatusBadRequest, "descriptor required"},
		{"descriptor not an array", `{"descriptor":"abc"}`, http.StatusBadRequest, "descriptor must be JSON array"},
		{"no faces enrolled", `{"descriptor":[0.1,0.2]}`, http.StatusUnauthorized, "Face not recognized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			handler.FaceLogin(recorder, jsonRequest("POST", "/api/auth/face-login", tt.body))

			assertStatusCode(t, recorder, tt.status)
			assertJSONError(t, recorder, tt.message)
		})
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	handler, _, tm := newAuthHandler(t)

	token, claims, err := tm.Issue(1, "admin")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	req := httptest.NewRequest("POST", "/api/auth/logout", nil)
	req = req.WithContext(middleware.SetClaimsInContext(req.Context(), claims))
	recorder := httptest.NewRecorder()
	handler.Logout(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	cookie := tokenCookie(t, recorder)
	if cookie.MaxAge >= 0 {
		t.Errorf("expected cookie to be cleared, MaxAge=%d", cookie.MaxAge)
	}
	if _, err := tm.Parse(token); !errors.Is(err, middleware.ErrTokenRevoked) {
		t.Errorf("expected revoked token, got %v", err)
	}
}

func TestAuthHandler_Me(t *testing.T) {
	handler, _, _ := newAuthHandler(t)

	recorder := httptest.NewRecorder()
	handler.Me(recorder, requestWithClaims(httptest.NewRequest("GET", "/api/auth/me", nil), 7, "operator"))

	assertStatusCode(t, recorder, http.StatusOK)
	var resp AuthResponse
	parseJSONResponse(t, recorder, &resp)
	if !resp.OK || resp.Username != "operator" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestAuthHandler_VerifyPIN(t *testing.T) {
	handler, store, _ := newAuthHandler(t)
	user := seedUser(t, store, "admin", "admin123", "1234")

	tests := []struct {
		name     string
		username string
		body     string
		status   int
		message  string
	}{
		{"correct pin", "admin", `{"pin":"1234"}`, http.StatusOK, ""},
		{"numeric pin", "admin", `{"pin":1234}`, http.StatusOK, ""},
		{"wrong pin", "admin", `{"pin":"0000"}`, http.StatusUnauthorized, "Invalid PIN"},
		{"missing pin", "admin", `{}`, http.StatusBadRequest, "pin required"},
		{"user gone", "ghost", `{"pin":"1234"}`, http.StatusUnauthorized, "Invalid token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := requestWithClaims(jsonRequest("POST", "/api/auth/pin", tt.body), user.ID, tt.username)
			recorder := httptest.NewRecorder()
			handler.VerifyPIN(recorder, req)

			assertStatusCode(t, recorder, tt.status)
			if tt.message != "" {
				assertJSONError(t, recorder, tt.message)
			}
		})
	}
}
