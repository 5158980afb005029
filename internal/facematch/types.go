// Package facematch classifies face descriptors against the known-face library.
// Descriptors come from the browser's recognition model; this package only compares them.
package facematch

// Status is the classification of a detected face.
type Status string

const (
	StatusKnown   Status = "known"   // Matched a known face that is not wanted
	StatusWanted  Status = "wanted"  // Matched a face flagged as wanted
	StatusUnknown Status = "unknown" // No known face within the threshold
)

// UnknownName is the label reported for faces that did not match.
const UnknownName = "Unknown"

// Candidate is one known face considered by the matcher.
type Candidate struct {
	ID         int64
	Name       string
	Descriptor []float32
	Wanted     bool
}

// Result describes the outcome of matching one descriptor.
type Result struct {
	Matched    bool    `json:"matched"`
	ID         int64   `json:"id,omitempty"`
	Name       string  `json:"name"`
	Wanted     bool    `json:"is_wanted"`
	Distance   float64 `json:"distance"`
	Confidence float64 `json:"confidence"`
	Status     Status  `json:"status"`
}
