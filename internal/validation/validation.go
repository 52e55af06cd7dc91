// Package validation centralizes identifier and header shape checks shared
// across the bridge.
package validation

import (
	"fmt"
	"regexp"
)

var (
	// uuidRegex matches standard UUID format
	uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

	// voxSessionRegex matches vox_YYYYMMDD_HHMMSS_RANDOMHEX format minted by the bridge
	voxSessionRegex = regexp.MustCompile(`^vox_\d{8}_\d{6}_[0-9a-fA-F]+$`)

	// tokenRegex matches opaque session tokens minted by the dispatcher
	tokenRegex = regexp.MustCompile(`^[0-9A-Za-z._-]{8,128}$`)

	// headerTokenRegex rejects header values that could smuggle control
	// characters into a response
	headerTokenRegex = regexp.MustCompile(`^[\x20-\x7e]*$`)
)

// ValidateUUID checks if the string is a valid UUID
func ValidateUUID(id string) error {
	if id == "" {
		return fmt.Errorf("ID cannot be empty")
	}
	if !uuidRegex.MatchString(id) {
		return fmt.Errorf("invalid UUID format: %s", id)
	}
	return nil
}

// ValidateSessionID validates a session identifier: a UUID, a bridge-minted
// vox_* id, or an opaque dispatcher token.
func ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("session ID cannot be empty")
	}
	if voxSessionRegex.MatchString(id) || uuidRegex.MatchString(id) || tokenRegex.MatchString(id) {
		return nil
	}
	return fmt.Errorf("invalid session ID format: %s", id)
}

// ValidateHeaderValue rejects header values containing control characters
func ValidateHeaderValue(v string) error {
	if !headerTokenRegex.MatchString(v) {
		return fmt.Errorf("header value contains control characters")
	}
	return nil
}
