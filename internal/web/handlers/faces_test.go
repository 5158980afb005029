package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rehanbawakhan/vdetection/internal/database"
	"github.com/rehanbawakhan/vdetection/internal/database/mock"
	"github.com/rehanbawakhan/vdetection/internal/facematch"
)

func newFacesHandler(t *testing.T) (*FacesHandler, *mock.Store) {
	t.Helper()
	store := mock.NewStore()
	matcher := database.NewFaceMatcher(store, nil)
	return NewFacesHandler(testConfig(), store, matcher, testMetrics(t), testLogger), store
}

func TestFacesHandler_List(t *testing.T) {
	handler, store := newFacesHandler(t)
	store.AddFace(database.KnownFace{Name: "Alice", Encoding: []float32{0.1, 0.2}})
	store.AddFace(database.KnownFace{Name: "Bob", Encoding: []float32{0.3, 0.4}, Wanted: true})

	recorder := httptest.NewRecorder()
	handler.List(recorder, httptest.NewRequest("GET", "/api/known-faces", nil))

	assertStatusCode(t, recorder, http.StatusOK)

	var resp struct {
		Data []FaceResponse `json:"data"`
	}
	parseJSONResponse(t, recorder, &resp)
	if len(resp.Data) != 2 {
		t.Fatalf("expected 2 faces, got %d", len(resp.Data))
	}
	if resp.Data[0].Name != "Bob" {
		t.Errorf("expected newest face first, got %q", resp.Data[0].Name)
	}
	if resp.Data[0].IsWanted != 1 || resp.Data[1].IsWanted != 0 {
		t.Errorf("unexpected is_wanted values: %d, %d", resp.Data[0].IsWanted, resp.Data[1].IsWanted)
	}
	if resp.Data[1].Encoding != "[0.1,0.2]" {
		t.Errorf("expected encoding as JSON text, got %q", resp.Data[1].Encoding)
	}
}

func TestFacesHandler_ListEmpty(t *testing.T) {
	handler, _ := newFacesHandler(t)

	recorder := httptest.NewRecorder()
	handler.List(recorder, httptest.NewRequest("GET", "/api/known-faces", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	if got := recorder.Body.String(); got != "{\"data\":[]}\n" {
		t.Errorf("expected empty data array, got %q", got)
	}
}

func TestFacesHandler_ListStoreError(t *testing.T) {
	handler, store := newFacesHandler(t)
	store.ListFacesError = errors.New("db down")

	recorder := httptest.NewRecorder()
	handler.List(recorder, httptest.NewRequest("GET", "/api/known-faces", nil))

	assertStatusCode(t, recorder, http.StatusInternalServerError)
	assertJSONError(t, recorder, "Internal server error")
}

func TestFacesHandler_PublicFaces(t *testing.T) {
	handler, store := newFacesHandler(t)
	store.AddFace(database.KnownFace{Name: "admin", Encoding: []float32{0.1}})
	store.AddFace(database.KnownFace{Name: "Admin", Encoding: []float32{0.2}})
	store.AddFace(database.KnownFace{Name: "Carol", Encoding: []float32{0.3}})

	recorder := httptest.NewRecorder()
	handler.PublicFaces(recorder, httptest.NewRequest("GET", "/api/public-faces", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var resp struct {
		Data []FaceResponse `json:"data"`
	}
	parseJSONResponse(t, recorder, &resp)
	if len(resp.Data) != 1 {
		t.Fatalf("expected at most one public face, got %d", len(resp.Data))
	}
	if resp.Data[0].Encoding != "[0.1]" {
		t.Errorf("expected the first enrolled admin face, got %+v", resp.Data[0])
	}
}

func TestFacesHandler_Create(t *testing.T) {
	handler, store := newFacesHandler(t)

	recorder := httptest.NewRecorder()
	handler.Create(recorder, jsonRequest("POST", "/api/known-faces",
		`{"name":"Alice","encoding":[0.1,0.2,0.3],"image_url":"data:image/png;base64,AAAA"}`))

	assertStatusCode(t, recorder, http.StatusCreated)
	var resp map[string]int64
	parseJSONResponse(t, recorder, &resp)

	face, err := store.GetFace(t.Context(), resp["id"])
	if err != nil {
		t.Fatalf("created face not stored: %v", err)
	}
	if face.Name != "Alice" || len(face.Encoding) != 3 || face.Wanted {
		t.Errorf("unexpected stored face: %+v", face)
	}
	if face.ImageURL != "data:image/png;base64,AAAA" {
		t.Errorf("unexpected image url %q", face.ImageURL)
	}
}

func TestFacesHandler_CreateStringEncoding(t *testing.T) {
	handler, store := newFacesHandler(t)

	recorder := httptest.NewRecorder()
	handler.Create(recorder, jsonRequest("POST", "/api/known-faces", `{"name":"Alice","encoding":"[0.5,0.25]"}`))

	assertStatusCode(t, recorder, http.StatusCreated)
	faces, _ := store.ListFaces(t.Context())
	if len(faces) != 1 || len(faces[0].Encoding) != 2 {
		t.Fatalf("expected one face with a 2-value encoding, got %+v", faces)
	}
}

func TestFacesHandler_CreateValidation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"missing name", `{"encoding":[0.1]}`, "name and encoding required"},
		{"blank name", `{"name":"  ","encoding":[0.1]}`, "name and encoding required"},
		{"missing encoding", `{"name":"Alice"}`, "name and encoding required"},
		{"empty encoding string", `{"name":"Alice","encoding":""}`, "name and encoding required"},
		{"null encoding", `{"name":"Alice","encoding":null}`, "name and encoding required"},
		{"encoding not an array", `{"name":"Alice","encoding":"oops"}`, "encoding must be JSON array"},
		{"invalid json", `{"name":`, "Invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, store := newFacesHandler(t)
			recorder := httptest.NewRecorder()
			handler.Create(recorder, jsonRequest("POST", "/api/known-faces", tt.body))

			assertStatusCode(t, recorder, http.StatusBadRequest)
			assertJSONError(t, recorder, tt.message)
			if n, _ := store.CountFaces(t.Context()); n != 0 {
				t.Errorf("no face should be stored, got %d", n)
			}
		})
	}
}

func TestFacesHandler_Update(t *testing.T) {
	handler, store := newFacesHandler(t)
	id := store.AddFace(database.KnownFace{Name: "Alice", Encoding: []float32{0.1, 0.2}, ImageURL: "keep"})

	tests := []struct {
		name   string
		body   string
		verify func(t *testing.T, f *database.KnownFace)
	}{
		{"flag wanted with number", `{"is_wanted":1}`, func(t *testing.T, f *database.KnownFace) {
			if !f.Wanted {
				t.Error("expected face to be wanted")
			}
		}},
		{"unflag with string", `{"is_wanted":"false"}`, func(t *testing.T, f *database.KnownFace) {
			if f.Wanted {
				t.Error("expected face not to be wanted")
			}
		}},
		{"rename keeps other fields", `{"name":"Alicia","image_url":null}`, func(t *testing.T, f *database.KnownFace) {
			if f.Name != "Alicia" || f.ImageURL != "keep" || len(f.Encoding) != 2 {
				t.Errorf("unexpected face after rename: %+v", f)
			}
		}},
		{"replace encoding", `{"encoding":[0.9,0.8,0.7]}`, func(t *testing.T, f *database.KnownFace) {
			if len(f.Encoding) != 3 {
				t.Errorf("expected 3-value encoding, got %v", f.Encoding)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := requestWithChiParams(jsonRequest("PUT", "/api/known-faces/1", tt.body), map[string]string{"id": "1"})
			recorder := httptest.NewRecorder()
			handler.Update(recorder, req)

			assertStatusCode(t, recorder, http.StatusOK)
			face, err := store.GetFace(t.Context(), id)
			if err != nil {
				t.Fatalf("GetFace: %v", err)
			}
			tt.verify(t, face)
		})
	}
}

func TestFacesHandler_UpdateErrors(t *testing.T) {
	handler, store := newFacesHandler(t)
	store.AddFace(database.KnownFace{Name: "Alice", Encoding: []float32{0.1}})

	tests := []struct {
		name    string
		id      string
		body    string
		status  int
		message string
	}{
		{"missing face", "99", `{"name":"x"}`, http.StatusNotFound, "Face not found"},
		{"bad id", "abc", `{"name":"x"}`, http.StatusNotFound, "Face not found"},
		{"blank name", "1", `{"name":""}`, http.StatusBadRequest, "name required"},
		{"bad wanted flag", "1", `{"is_wanted":"yes"}`, http.StatusBadRequest, "is_wanted must be a boolean"},
		{"bad encoding", "1", `{"encoding":"x"}`, http.StatusBadRequest, "encoding must be JSON array"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := requestWithChiParams(jsonRequest("PUT", "/api/known-faces/"+tt.id, tt.body), map[string]string{"id": tt.id})
			recorder := httptest.NewRecorder()
			handler.Update(recorder, req)

			assertStatusCode(t, recorder, tt.status)
			assertJSONError(t, recorder, tt.message)
		})
	}
}

func TestFacesHandler_Delete(t *testing.T) {
	handler, store := newFacesHandler(t)
	id := store.AddFace(database.KnownFace{Name: "Alice", Encoding: []float32{0.1}})

	for _, param := range []string{"1", "1", "42"} {
		req := requestWithChiParams(httptest.NewRequest("DELETE", "/api/known-faces/"+param, nil), map[string]string{"id": param})
		recorder := httptest.NewRecorder()
		handler.Delete(recorder, req)
		assertStatusCode(t, recorder, http.StatusOK)
	}

	if _, err := store.GetFace(t.Context(), id); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected face to be deleted, got %v", err)
	}
}

func TestFacesHandler_Match(t *testing.T) {
	handler, store := newFacesHandler(t)
	store.AddFace(database.KnownFace{Name: "Alice", Encoding: []float32{0, 0}})
	store.AddFace(database.KnownFace{Name: "Mallory", Encoding: []float32{1, 1}, Wanted: true})

	tests := []struct {
		name       string
		body       string
		wantName   string
		wantStatus facematch.Status
	}{
		{"known face", `{"descriptor":[0.1,0]}`, "Alice", facematch.StatusKnown},
		{"wanted face", `{"descriptor":[0.9,1]}`, "Mallory", facematch.StatusWanted},
		{"too far at default threshold", `{"descriptor":[0.6,0]}`, facematch.UnknownName, facematch.StatusUnknown},
		{"explicit loose threshold", `{"descriptor":[0.6,0],"threshold":"0.9"}`, "Alice", facematch.StatusKnown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := requestWithClaims(jsonRequest("POST", "/api/match", tt.body), 1, "admin")
			recorder := httptest.NewRecorder()
			handler.Match(recorder, req)

			assertStatusCode(t, recorder, http.StatusOK)
			var resp struct {
				Data facematch.Result `json:"data"`
			}
			parseJSONResponse(t, recorder, &resp)
			if resp.Data.Name != tt.wantName || resp.Data.Status != tt.wantStatus {
				t.Errorf("got %s/%s, want %s/%s", resp.Data.Name, resp.Data.Status, tt.wantName, tt.wantStatus)
			}
		})
	}
}

func TestFacesHandler_MatchUsesSavedThreshold(t *testing.T) {
	handler, store := newFacesHandler(t)
	store.AddFace(database.KnownFace{Name: "Alice", Encoding: []float32{0, 0}})
	store.UpsertSettings(t.Context(), &database.UserSettings{UserID: 1, Threshold: 0.05})

	req := requestWithClaims(jsonRequest("POST", "/api/match", `{"descriptor":[0.1,0]}`), 1, "admin")
	recorder := httptest.NewRecorder()
	handler.Match(recorder, req)

	var resp struct {
		Data facematch.Result `json:"data"`
	}
	parseJSONResponse(t, recorder, &resp)
	if resp.Data.Matched {
		t.Errorf("expected no match under the saved 0.05 threshold, got %+v", resp.Data)
	}
}

func TestFacesHandler_MatchValidation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"missing descriptor", `{}`, "descriptor required"},
		{"descriptor not an array", `{"descriptor":{"a":1}}`, "descriptor must be JSON array"},
		{"threshold above one", `{"descriptor":[0.1],"threshold":1.5}`, "threshold must be between 0 and 1"},
		{"threshold not numeric", `{"descriptor":[0.1],"threshold":"high"}`, "threshold must be between 0 and 1"},
	}

	handler, _ := newFacesHandler(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			handler.Match(recorder, requestWithClaims(jsonRequest("POST", "/api/match", tt.body), 1, "admin"))

			assertStatusCode(t, recorder, http.StatusBadRequest)
			assertJSONError(t, recorder, tt.message)
		})
	}
}
