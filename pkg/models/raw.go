package models

import (
	"time"
)

// RawRecord is a row as returned by the store or carried by a change event.
// Accessors apply the defaulting rules once, at the boundary: a missing or
// mistyped field yields the zero value, never an error.
type RawRecord map[string]any

// String returns the field as a string, or "" when absent.
func (r RawRecord) String(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// Int returns the field as an int. Numeric JSON and CBOR decode variously
// into float64, int64 or uint64, so all are accepted.
func (r RawRecord) Int(key string) int {
	switch v := r[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Bool returns the field as a bool, or false when absent.
func (r RawRecord) Bool(key string) bool {
	if v, ok := r[key].(bool); ok {
		return v
	}
	return false
}

// Time parses the field as RFC 3339, or returns the zero time. Decoders that
// produce time.Time directly are accepted as-is.
func (r RawRecord) Time(key string) time.Time {
	switch v := r[key].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Records returns a nested list of rows, as produced by an expanded
// (joined) query. Elements that are not objects are skipped.
func (r RawRecord) Records(key string) []RawRecord {
	list, ok := r[key].([]any)
	if !ok {
		return nil
	}
	out := make([]RawRecord, 0, len(list))
	for _, el := range list {
		switch m := el.(type) {
		case RawRecord:
			out = append(out, m)
		case map[string]any:
			out = append(out, RawRecord(m))
		case map[any]any:
			// CBOR maps decode with interface keys.
			conv := make(RawRecord, len(m))
			for k, v := range m {
				if ks, ok := k.(string); ok {
					conv[ks] = v
				}
			}
			out = append(out, conv)
		}
	}
	return out
}
