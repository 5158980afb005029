package handlers

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// The browser sends loosely typed JSON: numbers as strings, booleans as 0/1.
// These helpers accept exactly the spellings the web client produces.

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || string(trimmed) == "null"
}

// isFalsy reports values a JavaScript client treats as missing: absent,
// null, "", 0 or false.
func isFalsy(raw json.RawMessage) bool {
	if isAbsent(raw) {
		return true
	}
	switch string(bytes.TrimSpace(raw)) {
	case `""`, "0", "false":
		return true
	}
	return false
}

// parseUnitInterval reads a number (or numeric string) in [0, 1].
func parseUnitInterval(raw json.RawMessage) (float64, bool) {
	if isAbsent(raw) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	}
	if math.IsNaN(f) || f < 0 || f > 1 {
		return 0, false
	}
	return f, true
}

// parseLooseBool accepts true/false, 1/0, "1"/"0" and "true"/"false".
func parseLooseBool(raw json.RawMessage) (bool, bool) {
	switch string(bytes.TrimSpace(raw)) {
	case "true", "1", `"1"`, `"true"`:
		return true, true
	case "false", "0", `"0"`, `"false"`:
		return false, true
	}
	return false, false
}

// parseString reads a JSON string; numbers are rendered as text.
func parseString(raw json.RawMessage) (string, bool) {
	if isAbsent(raw) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}
