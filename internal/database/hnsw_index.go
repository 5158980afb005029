package database

import (
	"bufio"
	"bytes"
	"cmp"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/coder/hnsw"

	"github.com/rehanbawakhan/vdetection/internal/facematch"
)

// HNSWIndexMetadata stores metadata for validating cached HNSW indexes.
type HNSWIndexMetadata struct {
	FaceCount int64     `json:"face_count"`
	MaxFaceID int64     `json:"max_face_id"`
	Dims      int       `json:"dims"`
	BuildTime time.Time `json:"build_time"`
	Version   int       `json:"version"`
}

const hnswMetadataVersion = 1

// ErrIndexEmpty is returned by Search when nothing has been indexed.
var ErrIndexEmpty = errors.New("index not initialized")

// HNSWIndex wraps the HNSW graph for known face search.
// Deleted faces stay in the graph as tombstones and are filtered on search.
type HNSWIndex struct {
	graph    *hnsw.Graph[int64]
	idToFace map[int64]*KnownFace
	dims     int
	skipped  int // faces whose descriptor length differs from dims
	mu       sync.RWMutex
	path     string
}

// NewHNSWIndex creates a new empty HNSW index.
func NewHNSWIndex() *HNSWIndex {
	return &HNSWIndex{
		idToFace: make(map[int64]*KnownFace),
	}
}

func newFaceGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.EuclideanDistance
	return g
}

// BuildFromFaces builds the index from a slice of faces.
func (h *HNSWIndex) BuildFromFaces(faces []KnownFace) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.graph = nil
	h.dims = 0
	h.skipped = 0
	h.idToFace = make(map[int64]*KnownFace, len(faces))

	for i := range faces {
		h.addLocked(faces[i])
	}
}

// addLocked inserts or replaces a face. The first indexed face fixes the dimension.
func (h *HNSWIndex) addLocked(face KnownFace) {
	if len(face.Encoding) == 0 {
		return
	}
	if h.graph == nil {
		h.graph = newFaceGraph()
		h.dims = len(face.Encoding)
	}
	if len(face.Encoding) != h.dims {
		h.skipped++
		return
	}
	if _, exists := h.graph.Lookup(face.ID); exists {
		h.graph.Delete(face.ID)
	}
	h.graph.Add(hnsw.MakeNode(face.ID, face.Encoding))
	h.idToFace[face.ID] = &face
}

// Add adds or replaces a single face in the index.
func (h *HNSWIndex) Add(face KnownFace) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.addLocked(face)
}

// Delete removes a face from search results.
func (h *HNSWIndex) Delete(id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.idToFace, id)
}

// Search finds up to k live faces nearest to the query.
// Returns faces and their Euclidean distances, closest first.
func (h *HNSWIndex) Search(query []float32, k int) ([]KnownFace, []float64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil || len(h.idToFace) == 0 {
		return nil, nil, ErrIndexEmpty
	}
	if len(query) != h.dims {
		return nil, nil, fmt.Errorf("query has %d dimensions, index has %d", len(query), h.dims)
	}

	neighbors := h.graph.Search(query, k*HNSWSearchMultiplier)

	faces := make([]KnownFace, 0, k)
	distances := make([]float64, 0, k)
	for _, n := range neighbors {
		face, ok := h.idToFace[n.Key]
		if !ok {
			continue
		}
		faces = append(faces, *face)
		distances = append(distances, facematch.Distance(query, n.Value))
	}

	// The graph returns approximate order; sort by exact distance, newest ID breaks ties.
	idx := make([]int, len(faces))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		if distances[idx[a]] != distances[idx[b]] {
			return distances[idx[a]] < distances[idx[b]]
		}
		return faces[idx[a]].ID > faces[idx[b]].ID
	})

	outFaces := make([]KnownFace, 0, min(k, len(idx)))
	outDist := make([]float64, 0, min(k, len(idx)))
	for _, i := range idx[:min(k, len(idx))] {
		outFaces = append(outFaces, faces[i])
		outDist = append(outDist, distances[i])
	}
	return outFaces, outDist, nil
}

// GetFace returns the face for a given ID.
func (h *HNSWIndex) GetFace(id int64) *KnownFace {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.idToFace[id]
}

// Count returns the number of indexed faces.
func (h *HNSWIndex) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.idToFace)
}

// Dims returns the descriptor length of the index, 0 when empty.
func (h *HNSWIndex) Dims() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dims
}

// Complete reports whether every face given to the index was indexed.
func (h *HNSWIndex) Complete() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.skipped == 0
}

// IsEmpty returns true if the index has no graph data loaded.
func (h *HNSWIndex) IsEmpty() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.graph == nil
}

// SetPath sets the path for saving/loading the index.
func (h *HNSWIndex) SetPath(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.path = path
}

// Path returns the configured persistence path.
func (h *HNSWIndex) Path() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.path
}

// Save persists the graph, metadata and face records to the configured path.
func (h *HNSWIndex) Save() error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.path == "" {
		return nil // No path set
	}

	if h.graph == nil {
		// Remove existing files if index is empty (best-effort cleanup).
		_ = os.Remove(h.path)
		_ = os.Remove(h.path + ".meta")
		_ = os.Remove(h.path + ".faces")
		return nil
	}

	f, err := os.Create(h.path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to create HNSW index file: %w", err)
	}
	if err := h.graph.Export(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("exporting HNSW graph: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing HNSW index file: %w", err)
	}

	faces := make([]KnownFace, 0, len(h.idToFace))
	var maxID int64
	for _, face := range h.idToFace {
		faces = append(faces, *face)
		maxID = max(maxID, face.ID)
	}
	slices.SortFunc(faces, func(a, b KnownFace) int { return cmp.Compare(a.ID, b.ID) })

	metadata := HNSWIndexMetadata{
		FaceCount: int64(len(faces)),
		MaxFaceID: maxID,
		Dims:      h.dims,
		BuildTime: time.Now().UTC(),
		Version:   hnswMetadataVersion,
	}
	metaData, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(h.path+".meta", metaData, 0600); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}

	return saveFaceRecords(h.path, faces)
}

// Load restores a graph saved with Save. A missing file is not an error.
func (h *HNSWIndex) Load(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.path = path

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // No index file, will build from faces
	}

	metadata, err := LoadHNSWMetadata(path)
	if err != nil {
		return err
	}
	if metadata.Version != hnswMetadataVersion {
		return fmt.Errorf("unsupported HNSW metadata version %d", metadata.Version)
	}

	faces, err := loadFaceRecords(path)
	if err != nil {
		return err
	}

	f, err := os.Open(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to open HNSW index: %w", err)
	}
	defer f.Close()

	g := newFaceGraph()
	if err := g.Import(bufio.NewReader(f)); err != nil {
		return fmt.Errorf("failed to load HNSW index: %w", err)
	}

	h.graph = g
	h.dims = metadata.Dims
	h.skipped = 0
	h.idToFace = make(map[int64]*KnownFace, len(faces))
	for i := range faces {
		h.idToFace[faces[i].ID] = &faces[i]
	}
	return nil
}

// Reconcile brings a loaded index in line with the database rows.
// Missing or changed faces are re-added, removed faces are tombstoned.
// Returns the number of faces that had to be changed.
func (h *HNSWIndex) Reconcile(faces []KnownFace) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	live := make(map[int64]struct{}, len(faces))
	changed := 0
	for _, face := range faces {
		live[face.ID] = struct{}{}
		current, ok := h.idToFace[face.ID]
		if ok && slices.Equal(current.Encoding, face.Encoding) {
			// Metadata may have changed without touching the vector.
			stored := face
			h.idToFace[face.ID] = &stored
			continue
		}
		h.addLocked(face)
		changed++
	}
	for id := range h.idToFace {
		if _, ok := live[id]; !ok {
			delete(h.idToFace, id)
			changed++
		}
	}
	return changed
}

// LoadHNSWMetadata loads metadata from a separate .meta file.
func LoadHNSWMetadata(path string) (HNSWIndexMetadata, error) {
	var metadata HNSWIndexMetadata

	data, err := os.ReadFile(path + ".meta") //nolint:gosec // path is from trusted config
	if err != nil {
		return metadata, fmt.Errorf("failed to read metadata file: %w", err)
	}

	if err := json.Unmarshal(data, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return metadata, nil
}

// saveFaceRecords writes face records to a .faces file for fast loading at startup.
func saveFaceRecords(path string, faces []KnownFace) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(faces); err != nil {
		return fmt.Errorf("failed to encode faces: %w", err)
	}

	if err := os.WriteFile(path+".faces", buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write faces file: %w", err)
	}
	return nil
}

func loadFaceRecords(path string) ([]KnownFace, error) {
	data, err := os.ReadFile(path + ".faces") //nolint:gosec // path is from trusted config
	if err != nil {
		return nil, fmt.Errorf("failed to read faces file: %w", err)
	}

	var faces []KnownFace
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&faces); err != nil {
		return nil, fmt.Errorf("failed to decode faces: %w", err)
	}
	return faces, nil
}
