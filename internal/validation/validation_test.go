package validation

import (
	"strings"
	"testing"
)

func TestValidateUUID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"valid lowercase", "a1b2c3d4-e5f6-7890-abcd-ef1234567890", false},
		{"valid uppercase", "A1B2C3D4-E5F6-7890-ABCD-EF1234567890", false},
		{"empty", "", true},
		{"missing dashes", "a1b2c3d4e5f67890abcdef1234567890", true},
		{"too short", "a1b2c3d4-e5f6-7890-abcd", true},
		{"non-hex", "g1b2c3d4-e5f6-7890-abcd-ef1234567890", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUUID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUUID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestValidateSessionID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"minted format", "vox_20260826_141530_a1b2c3d4", false},
		{"uuid format", "a1b2c3d4-e5f6-7890-abcd-ef1234567890", false},
		{"opaque dispatcher token", "Nt2ahM3kPq8xYz4wLd9r", false},
		{"empty", "", true},
		{"too short", "hello", true},
		{"spaces", "not a session id", true},
		{"control characters", "abc\r\ndefghijk", true},
		{"too long", strings.Repeat("a", 200), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSessionID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSessionID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestValidateHeaderValue(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"plain", "application/json", false},
		{"empty", "", false},
		{"crlf injection", "x\r\nSet-Cookie: evil", true},
		{"bare newline", "a\nb", true},
		{"tab", "a\tb", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHeaderValue(tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateHeaderValue(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
		})
	}
}
