package models

import (
	"strings"

	"github.com/google/uuid"
)

// TempIDPrefix marks locally-originated ids that have not been confirmed by
// the store.
const TempIDPrefix = "temp_"

// NewTempID returns a fresh temporary id for a speculative entity.
func NewTempID() string {
	return TempIDPrefix + uuid.NewString()
}

// IsTempID reports whether id names a speculative, unconfirmed entity.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}
