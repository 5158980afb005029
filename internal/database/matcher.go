package database

import (
	"context"
	"fmt"
	"sync"

	"github.com/rehanbawakhan/vdetection/internal/facematch"
)

// FaceMatcher classifies descriptors against the known face library.
// In linear mode every match reads the faces from the store. In HNSW mode
// the nearest face comes from the in-memory index, which the known-face
// handlers keep in sync through Upsert and Remove.
type FaceMatcher struct {
	faces FaceReader
	index *HNSWIndex // nil in linear mode
	mu    sync.RWMutex
}

// NewFaceMatcher creates a matcher. Pass a nil index for linear scans.
func NewFaceMatcher(faces FaceReader, index *HNSWIndex) *FaceMatcher {
	return &FaceMatcher{faces: faces, index: index}
}

// Candidates converts stored faces into matcher candidates.
func Candidates(faces []KnownFace) []facematch.Candidate {
	out := make([]facematch.Candidate, 0, len(faces))
	for _, f := range faces {
		out = append(out, facematch.Candidate{
			ID:         f.ID,
			Name:       f.Name,
			Descriptor: f.Encoding,
			Wanted:     f.Wanted,
		})
	}
	return out
}

// Match returns the classification of descriptor at the given threshold.
func (m *FaceMatcher) Match(ctx context.Context, descriptor []float32, threshold float64) (facematch.Result, error) {
	if m.useIndex(descriptor) {
		faces, distances, err := m.index.Search(descriptor, 1)
		if err == nil {
			if len(faces) == 0 || distances[0] >= 1 {
				return facematch.Match(descriptor, nil, threshold), nil
			}
			c := Candidates(faces[:1])[0]
			return facematch.Classify(c, distances[0], threshold), nil
		}
		// Fall through to a linear scan when the index cannot answer.
	}

	if finder, ok := m.faces.(NearestFaceFinder); ok {
		faces, distances, err := finder.NearestFaces(ctx, descriptor, 1)
		if err != nil {
			return facematch.Result{}, fmt.Errorf("nearest face search: %w", err)
		}
		if len(faces) == 0 || distances[0] >= 1 {
			return facematch.Match(descriptor, nil, threshold), nil
		}
		return facematch.Classify(Candidates(faces)[0], distances[0], threshold), nil
	}

	faces, err := m.faces.ListFaces(ctx)
	if err != nil {
		return facematch.Result{}, fmt.Errorf("loading known faces: %w", err)
	}
	// Library order is newest first, so the newest face wins exact ties.
	return facematch.Match(descriptor, Candidates(faces), threshold), nil
}

// MatchAgainst classifies descriptor against an explicit face list.
func MatchAgainst(descriptor []float32, faces []KnownFace, threshold float64) facematch.Result {
	return facematch.Match(descriptor, Candidates(faces), threshold)
}

func (m *FaceMatcher) useIndex(descriptor []float32) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.index != nil && m.index.Complete() && m.index.Dims() == len(descriptor)
}

// Upsert reflects a created or updated face in the index.
func (m *FaceMatcher) Upsert(face KnownFace) {
	if m.index != nil {
		m.index.Add(face)
	}
}

// Remove reflects a deleted face in the index.
func (m *FaceMatcher) Remove(id int64) {
	if m.index != nil {
		m.index.Delete(id)
	}
}

// RebuildHNSW rebuilds the in-memory HNSW index from the store.
func (m *FaceMatcher) RebuildHNSW(ctx context.Context) error {
	if m.index == nil {
		return nil
	}
	faces, err := m.faces.ListFaces(ctx)
	if err != nil {
		return fmt.Errorf("loading known faces: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index.BuildFromFaces(faces)
	return nil
}

// LoadHNSW restores a persisted index and reconciles it with the store.
// Falls back to a full rebuild when nothing usable is on disk.
func (m *FaceMatcher) LoadHNSW(ctx context.Context, path string) (int, error) {
	if m.index == nil {
		return 0, nil
	}
	m.index.SetPath(path)
	if path != "" {
		if err := m.index.Load(path); err == nil && !m.index.IsEmpty() {
			faces, err := m.faces.ListFaces(ctx)
			if err != nil {
				return 0, fmt.Errorf("loading known faces: %w", err)
			}
			return m.index.Reconcile(faces), nil
		}
	}
	if err := m.RebuildHNSW(ctx); err != nil {
		return 0, err
	}
	return m.index.Count(), nil
}

// HNSWCount returns the number of items in the HNSW index
func (m *FaceMatcher) HNSWCount() int {
	if m.index == nil {
		return 0
	}
	return m.index.Count()
}

// IsHNSWEnabled returns whether HNSW is enabled
func (m *FaceMatcher) IsHNSWEnabled() bool {
	return m.index != nil
}

// SaveHNSWIndex saves the current index to disk (if path configured)
func (m *FaceMatcher) SaveHNSWIndex() error {
	if m.index == nil {
		return nil
	}
	return m.index.Save()
}
