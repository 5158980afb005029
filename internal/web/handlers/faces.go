package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/rehanbawakhan/vdetection/internal/config"
	"github.com/rehanbawakhan/vdetection/internal/database"
	"github.com/rehanbawakhan/vdetection/internal/facematch"
	"github.com/rehanbawakhan/vdetection/internal/metrics"
)

const publicFaceName = "admin"

// FacesHandler handles the known-face library and descriptor matching
type FacesHandler struct {
	config  *config.Config
	store   database.Store
	matcher *database.FaceMatcher
	metrics *metrics.Metrics
	log     *zap.Logger
}

// NewFacesHandler creates a new faces handler
func NewFacesHandler(cfg *config.Config, store database.Store, matcher *database.FaceMatcher, m *metrics.Metrics, log *zap.Logger) *FacesHandler {
	return &FacesHandler{
		config:  cfg,
		store:   store,
		matcher: matcher,
		metrics: m,
		log:     log,
	}
}

// FaceResponse is a known face as the web client expects it: the encoding
// is JSON text and is_wanted is 0 or 1.
type FaceResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Encoding string `json:"encoding"`
	ImageURL string `json:"image_url"`
	IsWanted int    `json:"is_wanted"`
}

func toFaceResponse(f database.KnownFace) FaceResponse {
	wanted := 0
	if f.Wanted {
		wanted = 1
	}
	return FaceResponse{
		ID:       f.ID,
		Name:     f.Name,
		Encoding: facematch.EncodeDescriptor(f.Encoding),
		ImageURL: f.ImageURL,
		IsWanted: wanted,
	}
}

func toFaceResponses(faces []database.KnownFace) []FaceResponse {
	out := make([]FaceResponse, 0, len(faces))
	for _, f := range faces {
		out = append(out, toFaceResponse(f))
	}
	return out
}

type createFaceRequest struct {
	Name     json.RawMessage `json:"name"`
	Encoding json.RawMessage `json:"encoding"`
	ImageURL json.RawMessage `json:"image_url"`
}

type updateFaceRequest struct {
	Name     json.RawMessage `json:"name"`
	Encoding json.RawMessage `json:"encoding"`
	ImageURL json.RawMessage `json:"image_url"`
	IsWanted json.RawMessage `json:"is_wanted"`
}

type matchRequest struct {
	Descriptor json.RawMessage `json:"descriptor"`
	Threshold  json.RawMessage `json:"threshold"`
}

// List returns all known faces, newest first.
func (h *FacesHandler) List(w http.ResponseWriter, r *http.Request) {
	faces, err := h.store.ListFaces(r.Context())
	if err != nil {
		h.log.Error("failed to list faces", zap.Error(err))
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": toFaceResponses(faces)})
}

// PublicFaces returns the admin face (at most one) for the face-login page.
func (h *FacesHandler) PublicFaces(w http.ResponseWriter, r *http.Request) {
	faces, err := h.store.GetFacesByName(r.Context(), publicFaceName)
	if err != nil {
		h.log.Error("failed to load public faces", zap.Error(err))
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}
	if len(faces) > 1 {
		faces = faces[:1]
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": toFaceResponses(faces)})
}

// Create enrolls a new face. New faces are never wanted.
func (h *FacesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createFaceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	name, _ := parseString(req.Name)
	if strings.TrimSpace(name) == "" || isFalsy(req.Encoding) {
		respondError(w, http.StatusBadRequest, "name and encoding required")
		return
	}
	encoding, err := facematch.ParseDescriptor(req.Encoding)
	if err != nil {
		respondError(w, http.StatusBadRequest, "encoding must be JSON array")
		return
	}
	imageURL, _ := parseString(req.ImageURL)

	face := &database.KnownFace{Name: name, Encoding: encoding, ImageURL: imageURL}
	id, err := h.store.CreateFace(r.Context(), face)
	if err != nil {
		h.log.Error("failed to create face", zap.Error(err))
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}
	face.ID = id
	h.matcher.Upsert(*face)
	h.refreshCount(r.Context())

	respondJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

// Update applies a partial update. Omitted or null fields keep their value.
func (h *FacesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondError(w, http.StatusNotFound, "Face not found")
		return
	}
	var req updateFaceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	if _, err := h.store.GetFace(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Face not found")
			return
		}
		h.log.Error("failed to load face", zap.Int64("id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}

	var update database.KnownFaceUpdate
	if !isAbsent(req.Name) {
		name, ok := parseString(req.Name)
		if !ok || strings.TrimSpace(name) == "" {
			respondError(w, http.StatusBadRequest, "name required")
			return
		}
		update.Name = &name
	}
	if !isAbsent(req.Encoding) {
		encoding, err := facematch.ParseDescriptor(req.Encoding)
		if err != nil {
			respondError(w, http.StatusBadRequest, "encoding must be JSON array")
			return
		}
		update.Encoding = encoding
	}
	if !isAbsent(req.ImageURL) {
		imageURL, _ := parseString(req.ImageURL)
		update.ImageURL = &imageURL
	}
	if !isAbsent(req.IsWanted) {
		wanted, ok := parseLooseBool(req.IsWanted)
		if !ok {
			respondError(w, http.StatusBadRequest, "is_wanted must be a boolean")
			return
		}
		update.Wanted = &wanted
	}

	face, err := h.store.UpdateFace(ctx, id, update)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Face not found")
		return
	}
	if err != nil {
		h.log.Error("failed to update face", zap.Int64("id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}
	h.matcher.Upsert(*face)
	respondOK(w)
}

// Delete removes a face. Deleting a missing face succeeds.
func (h *FacesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondOK(w)
		return
	}
	if err := h.store.DeleteFace(r.Context(), id); err != nil && !errors.Is(err, database.ErrNotFound) {
		h.log.Error("failed to delete face", zap.Int64("id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}
	h.matcher.Remove(id)
	h.refreshCount(r.Context())
	respondOK(w)
}

// Match classifies a descriptor against the library. The threshold defaults
// to the caller's saved setting.
func (h *FacesHandler) Match(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if !decodeJSON(w, r, &req) {
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

	ctx := r.Context()
	var threshold float64
	if isAbsent(req.Threshold) {
		threshold = userThreshold(ctx, h.store, claimsFrom(r).UserID(), h.config.Matcher.DefaultThreshold)
	} else {
		var ok bool
		if threshold, ok = parseUnitInterval(req.Threshold); !ok {
			respondError(w, http.StatusBadRequest, "threshold must be between 0 and 1")
			return
		}
	}

	result, err := h.matcher.Match(ctx, descriptor, threshold)
	if err != nil {
		h.log.Error("failed to match descriptor", zap.Error(err))
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}
	h.metrics.RecordDetection(string(result.Status))
	respondJSON(w, http.StatusOK, map[string]any{"data": result})
}

func (h *FacesHandler) refreshCount(ctx context.Context) {
	if h.metrics == nil {
		return
	}
	if n, err := h.store.CountFaces(ctx); err == nil {
		h.metrics.SetKnownFaces(n)
	}
}
