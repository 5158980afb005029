package facematch

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidDescriptor is returned when an encoding is not a JSON array of numbers.
var ErrInvalidDescriptor = errors.New("encoding must be JSON array")

// ParseDescriptor accepts either a JSON array or a JSON string that contains one,
// which is how the browser sends encodings depending on the page.
// Values are kept at float32 precision, the precision of browser face
// descriptors; digits beyond that are not stored.
func ParseDescriptor(raw json.RawMessage) ([]float32, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, ErrInvalidDescriptor
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		raw = json.RawMessage(text)
	}

	var values []float32
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
	}
	if values == nil {
		return nil, ErrInvalidDescriptor
	}
	return values, nil
}

// DecodeStored parses the JSON text kept in the known_faces.encoding column.
func DecodeStored(encoding string) ([]float32, error) {
	var values []float32
	if err := json.Unmarshal([]byte(encoding), &values); err != nil {
		return nil, fmt.Errorf("decode stored encoding: %w", err)
	}
	return values, nil
}

// EncodeDescriptor renders a descriptor as the JSON text stored in the database.
func EncodeDescriptor(values []float32) string {
	if values == nil {
		values = []float32{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		// float32 slices always marshal unless they hold NaN/Inf
		return "[]"
	}
	return string(data)
}
