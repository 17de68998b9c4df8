package common

import (
	"strings"

	"github.com/google/uuid"
)

// NewReportID generates a random 128-bit report identifier.
// Format: canonical UUID v4 string, safe for use as a file name.
func NewReportID() string {
	return uuid.New().String()
}

// IsValidReportID reports whether id parses as a UUID.
// Download and lookup paths use it to reject traversal attempts.
func IsValidReportID(id string) bool {
	if len(id) != 36 || strings.TrimSpace(id) != id {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}
